// Package requesttime pins one "now" per request so the head's updated_at,
// the version row's created_at and the emitted event all agree.
package requesttime

import (
	"net/http"
	"time"

	"docflow/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return middleware(time.Now)(next)
}

func middleware(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
