package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"docflow/pkg/requestcontext"
)

func TestMiddlewarePinsRequestTime(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var seen []time.Time
	h := middleware(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, requestcontext.Now(r.Context()), requestcontext.Now(r.Context()))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []time.Time{fixed, fixed}, seen)
}
