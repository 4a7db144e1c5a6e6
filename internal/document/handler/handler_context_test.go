package handler

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docflow/internal/document/service"
	"docflow/internal/document/store/memory"
	"docflow/internal/policy"
	"docflow/pkg/testutil"
)

// newBareRouter mounts the handler without auth middleware so tests control
// the request context directly.
func newBareRouter(t *testing.T, gate policy.Gate) http.Handler {
	t.Helper()
	store := memory.New()
	svc, err := service.New(store.Documents(), store.Versions(), memory.NewSequenceAllocator(), store)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(svc, gate, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestMissingActorIsUnauthorized(t *testing.T) {
	router := newBareRouter(t, nil)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents", createBody("Anonymous"))

	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
}

func TestIssueDateDefaultsToRequestTime(t *testing.T) {
	router := newBareRouter(t, nil)
	now := time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)

	body := map[string]any{"doc_type": "notice", "subject": "Holiday", "content": "Office closed"}
	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents", body)
	req = testutil.WithRequestTime(testutil.WithActor(req, "clerk-9", "clerk"), now)

	rr := testutil.DoRequest(router, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	doc := testutil.UnmarshalResponse[DocumentResponse](t, rr)
	assert.Equal(t, "TB-001/2026", doc.DocNo)
	assert.Equal(t, "2026-01-02", doc.IssueDate)
	assert.Equal(t, "clerk-9", doc.CreatedBy)
	assert.True(t, now.Equal(doc.CreatedAt))
}

func TestUnknownRoleIsForbidden(t *testing.T) {
	router := newBareRouter(t, policy.Static{Roles: policy.DefaultRoles()})
	req := testutil.NewJSONRequest(t, http.MethodPost, "/documents", createBody("Guest"))
	req = testutil.WithActor(req, "guest-1", "guest")

	rr := testutil.DoRequest(router, req)
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")
}
