package testutil

import (
	"net/http"
	"time"

	"docflow/pkg/requestcontext"
)

// WithActor places an actor and role on the request context the way the
// auth middleware does, for handlers mounted without it.
func WithActor(req *http.Request, actorID, role string) *http.Request {
	ctx := requestcontext.WithActorID(req.Context(), actorID)
	ctx = requestcontext.WithRole(ctx, role)
	return req.WithContext(ctx)
}

// WithRequestTime pins requestcontext.Now for the request.
func WithRequestTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
