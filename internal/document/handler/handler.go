package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docflow/internal/document/models"
	"docflow/internal/document/service"
	"docflow/internal/policy"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/httputil"
	"docflow/pkg/requestcontext"
)

// Service defines the document operations the handler exposes.
type Service interface {
	Create(ctx context.Context, req *models.CreateRequest) (*models.Document, error)
	Get(ctx context.Context, docID id.DocumentID) (*models.Document, error)
	Update(ctx context.Context, docID id.DocumentID, req *models.UpdateRequest, actorID string) (*models.Document, error)
	Transition(ctx context.Context, docID id.DocumentID, action models.Action, actorID, note string) (*models.Document, error)
	Restore(ctx context.Context, docID id.DocumentID, versionID id.VersionID, actorID, note string) (*models.Document, error)
	Delete(ctx context.Context, docID id.DocumentID, actorID string) error
	ListVersions(ctx context.Context, docID id.DocumentID, page models.PageRequest) (*models.VersionPage, error)
	GetVersion(ctx context.Context, docID id.DocumentID, versionID id.VersionID) (*models.DocumentVersion, error)
	AttachFile(ctx context.Context, docID id.DocumentID, upload service.Upload, actorID, note string) (*models.Document, error)
	AttachmentURL(ctx context.Context, docID id.DocumentID, ttl time.Duration) (string, error)
}

// Handler wires document endpoints to the document service.
type Handler struct {
	service       Service
	gate          policy.Gate
	logger        *slog.Logger
	maxUpload     int64
	attachmentTTL time.Duration
}

type Option func(*Handler)

// WithMaxUpload caps attachment bodies in bytes.
func WithMaxUpload(n int64) Option {
	return func(h *Handler) {
		h.maxUpload = n
	}
}

// WithAttachmentTTL sets the default signed URL lifetime.
func WithAttachmentTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		h.attachmentTTL = ttl
	}
}

// New constructs a document handler. A nil gate allows everything.
func New(svc Service, gate policy.Gate, logger *slog.Logger, opts ...Option) *Handler {
	if gate == nil {
		gate = policy.AllowAll{}
	}
	h := &Handler{
		service:       svc,
		gate:          gate,
		logger:        logger,
		maxUpload:     25 << 20,
		attachmentTTL: service.DefaultAttachmentURLTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts document endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGet)
			r.Patch("/", h.HandleUpdate)
			r.Delete("/", h.HandleDelete)
			for _, action := range []models.Action{
				models.ActionSubmit, models.ActionApprove, models.ActionReject,
				models.ActionPublish, models.ActionArchive,
			} {
				r.Post("/"+string(action), h.handleTransition(action))
			}
			r.Post("/restore", h.HandleRestore)
			r.Get("/versions", h.HandleListVersions)
			r.Get("/versions/{versionID}", h.HandleGetVersion)
			r.Put("/attachment", h.HandleAttach)
			r.Get("/attachment/url", h.HandleAttachmentURL)
		})
	})
}

// HandleCreate handles POST /documents.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	if !h.allow(w, r, actor, policy.OpCreate, nil) {
		return
	}

	body, ok := httputil.DecodeAndPrepare[CreateDocumentRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}
	req, err := body.ToModel(actor.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	doc, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(w, r, "create document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromDocument(doc))
}

// HandleGet handles GET /documents/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpRead)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(doc))
}

// HandleUpdate handles PATCH /documents/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpUpdate)
	if !ok {
		return
	}

	body, ok := httputil.DecodeAndPrepare[UpdateDocumentRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	req, err := body.ToModel()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	updated, err := h.service.Update(ctx, doc.ID, req, actor.ID)
	if err != nil {
		h.fail(w, r, "update document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(updated))
}

// HandleDelete handles DELETE /documents/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpDelete)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), doc.ID, actor.ID); err != nil {
		h.fail(w, r, "delete document failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleTransition serves POST /documents/{id}/{action}. The body is optional.
func (h *Handler) handleTransition(action models.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actor, ok := h.requireActor(w, r)
		if !ok {
			return
		}
		doc, ok := h.loadAndAllow(w, r, actor, policy.ForAction(action))
		if !ok {
			return
		}

		note := ""
		if r.ContentLength != 0 {
			body, ok := httputil.DecodeAndPrepare[models.NoteRequest](w, r, h.logger, requestcontext.RequestID(ctx))
			if !ok {
				return
			}
			note = body.Note
		}

		updated, err := h.service.Transition(ctx, doc.ID, action, actor.ID, note)
		if err != nil {
			h.fail(w, r, string(action)+" document failed", err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromDocument(updated))
	}
}

// HandleRestore handles POST /documents/{id}/restore.
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpRestore)
	if !ok {
		return
	}

	body, ok := httputil.DecodeAndPrepare[RestoreRequest](w, r, h.logger, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	versionID, err := id.ParseVersionID(body.VersionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	restored, err := h.service.Restore(ctx, doc.ID, versionID, actor.ID, body.Note)
	if err != nil {
		h.fail(w, r, "restore document failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(restored))
}

// HandleListVersions handles GET /documents/{id}/versions?limit=&offset=.
func (h *Handler) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpRead)
	if !ok {
		return
	}

	page, err := parsePage(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	versions, err := h.service.ListVersions(r.Context(), doc.ID, page)
	if err != nil {
		h.fail(w, r, "list versions failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVersionPage(versions))
}

// HandleGetVersion handles GET /documents/{id}/versions/{versionID}.
func (h *Handler) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpRead)
	if !ok {
		return
	}
	versionID, err := id.ParseVersionID(chi.URLParam(r, "versionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	v, err := h.service.GetVersion(r.Context(), doc.ID, versionID)
	if err != nil {
		h.fail(w, r, "get version failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVersion(v))
}

// HandleAttach handles PUT /documents/{id}/attachment?name=&note=. The body
// is the raw file; Content-Type becomes the stored MIME type.
func (h *Handler) HandleAttach(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpAttach)
	if !ok {
		return
	}

	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "name query parameter is required"))
		return
	}
	if r.ContentLength <= 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "Content-Length is required and must be positive"))
		return
	}
	if r.ContentLength > h.maxUpload {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "attachment exceeds "+strconv.FormatInt(h.maxUpload, 10)+" bytes"))
		return
	}
	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	updated, err := h.service.AttachFile(r.Context(), doc.ID, service.Upload{
		Name:     name,
		MimeType: mimeType,
		Size:     r.ContentLength,
		Body:     http.MaxBytesReader(w, r.Body, h.maxUpload),
	}, actor.ID, r.URL.Query().Get("note"))
	if err != nil {
		h.fail(w, r, "attach file failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromDocument(updated))
}

// HandleAttachmentURL handles GET /documents/{id}/attachment/url?ttl=.
func (h *Handler) HandleAttachmentURL(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireActor(w, r)
	if !ok {
		return
	}
	doc, ok := h.loadAndAllow(w, r, actor, policy.OpRead)
	if !ok {
		return
	}

	ttl := h.attachmentTTL
	if raw := r.URL.Query().Get("ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > 7*24*time.Hour {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "ttl must be a positive duration up to 168h"))
			return
		}
		ttl = parsed
	}

	url, err := h.service.AttachmentURL(r.Context(), doc.ID, ttl)
	if err != nil {
		h.fail(w, r, "attachment url failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, AttachmentURLResponse{
		URL:       url,
		ExpiresAt: requestcontext.Now(r.Context()).Add(ttl).UTC(),
	})
}

func (h *Handler) requireActor(w http.ResponseWriter, r *http.Request) (policy.Actor, bool) {
	ctx := r.Context()
	actor := policy.Actor{ID: requestcontext.ActorID(ctx), Role: requestcontext.Role(ctx)}
	if actor.ID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return actor, false
	}
	return actor, true
}

// loadAndAllow parses {id}, loads the head and asks the gate about it.
func (h *Handler) loadAndAllow(w http.ResponseWriter, r *http.Request, actor policy.Actor, op policy.Operation) (*models.Document, bool) {
	docID, err := id.ParseDocumentID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return nil, false
	}
	doc, err := h.service.Get(r.Context(), docID)
	if err != nil {
		h.fail(w, r, "load document failed", err)
		return nil, false
	}
	if !h.allow(w, r, actor, op, doc) {
		return nil, false
	}
	return doc, true
}

func (h *Handler) allow(w http.ResponseWriter, r *http.Request, actor policy.Actor, op policy.Operation, doc *models.Document) bool {
	if h.gate.Allow(r.Context(), actor, op, doc) {
		return true
	}
	entityID := ""
	if doc != nil {
		entityID = doc.ID.String()
	}
	h.logger.WarnContext(r.Context(), "permission denied",
		"request_id", requestcontext.RequestID(r.Context()),
		"actor_id", actor.ID,
		"role", actor.Role,
		"operation", string(op),
		"document_id", entityID,
	)
	httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "not permitted").
		WithEntity(entityID).WithAction(string(op)))
	return false
}

// fail logs at warn for client errors and error for server errors, then
// writes the envelope.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	level := slog.LevelWarn
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"actor_id", requestcontext.ActorID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func parsePage(r *http.Request) (models.PageRequest, error) {
	var page models.PageRequest
	q := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &page.Limit, "offset": &page.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return page, dErrors.New(dErrors.CodeInvalidInput, name+" must be a non-negative integer")
		}
		*dst = n
	}
	return page, nil
}
