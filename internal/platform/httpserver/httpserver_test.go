package httpserver

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docflow/internal/platform/config"
)

func TestNew(t *testing.T) {
	h := http.NewServeMux()

	t.Run("uses configured timeouts", func(t *testing.T) {
		srv := New(config.Server{
			Addr:              ":9090",
			ReadHeaderTimeout: time.Second,
			ReadTimeout:       2 * time.Second,
			WriteTimeout:      3 * time.Second,
			IdleTimeout:       4 * time.Second,
		}, h)

		assert.Equal(t, ":9090", srv.Addr)
		assert.Equal(t, time.Second, srv.ReadHeaderTimeout)
		assert.Equal(t, 2*time.Second, srv.ReadTimeout)
		assert.Equal(t, 3*time.Second, srv.WriteTimeout)
		assert.Equal(t, 4*time.Second, srv.IdleTimeout)
	})

	t.Run("zero header and idle timeouts fall back", func(t *testing.T) {
		srv := New(config.Server{Addr: ":8080"}, h)

		assert.Equal(t, defaultReadHeaderTimeout, srv.ReadHeaderTimeout)
		assert.Equal(t, defaultIdleTimeout, srv.IdleTimeout)
		assert.Zero(t, srv.ReadTimeout)
		assert.Zero(t, srv.WriteTimeout)
	})
}
