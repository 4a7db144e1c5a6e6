package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres://localhost/none", Options{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported postgres driver "mysql"`)
}
