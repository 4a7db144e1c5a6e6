package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeNotFound, "document not found"))
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeConflict))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "storage unavailable")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "storage unavailable: connection refused", err.Error())
}

func TestWithEntityAndActionCopy(t *testing.T) {
	base := New(CodeInvalidTransition, "cannot approve from draft")
	tagged := base.WithEntity("doc-1").WithAction("approve")

	assert.Empty(t, base.EntityID)
	assert.Empty(t, base.Action)
	assert.Equal(t, "doc-1", tagged.EntityID)
	assert.Equal(t, "approve", tagged.Action)
	assert.Equal(t, CodeInvalidTransition, tagged.Code)
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeInvalidTransition: http.StatusConflict,
		CodeConflict:          http.StatusConflict,
		CodeUnavailable:       http.StatusServiceUnavailable,
		CodeAttachment:        http.StatusBadGateway,
		CodeInternal:          http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
