package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/requestcontext"
)

// Create validates req, allocates the next number for its type and issue
// year, and stores a Draft head. No version row is written.
func (s *Service) Create(ctx context.Context, req *models.CreateRequest) (doc *models.Document, err error) {
	defer s.observe("create", time.Now())
	ctx, span := s.startSpan(ctx, "create", attribute.String("doc_type", string(req.DocType)))
	defer func() { endSpan(span, err) }()

	now := requestcontext.Now(ctx)
	req.Normalize()
	if req.IssueDate.IsZero() {
		req.IssueDate = now
	}
	if err := req.Validate(); err != nil {
		return nil, withAction(err, "", "create")
	}

	docNo, err := s.allocate(ctx, req.DocType, req.IssueDate.Year())
	if err != nil {
		return nil, err
	}

	doc, err = models.NewDocument(id.NewDocumentID(), docNo, req, now)
	if err != nil {
		return nil, withAction(err, "", "create")
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, translate(err, doc.ID.String(), "create", "document not found")
	}

	s.logAudit(ctx, string(models.EventCreated),
		"document_id", doc.ID.String(),
		"doc_no", doc.DocNo,
		"actor_id", doc.CreatedBy,
	)
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}
	s.publish(ctx, models.NewEvent(models.EventCreated, doc, doc.CreatedBy, 0, now))
	return doc, nil
}

func (s *Service) allocate(ctx context.Context, docType models.DocType, year int) (string, error) {
	start := time.Now()
	number, err := s.sequences.Next(ctx, docType, year)
	if s.metrics != nil {
		s.metrics.ObserveSequenceAllocation(start)
	}
	if err != nil {
		var de *dErrors.Error
		if errors.As(err, &de) {
			return "", de.WithAction("allocate")
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "sequence allocator unavailable").
			WithEntity(string(docType)).WithAction("allocate")
	}
	return models.FormatDocNo(docType, number, year), nil
}

// Get returns the current head.
func (s *Service) Get(ctx context.Context, docID id.DocumentID) (*models.Document, error) {
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return nil, translate(err, docID.String(), "get", "document not found")
	}
	return doc, nil
}

// Update applies a partial edit. The prior state is snapshotted with the
// request's change note.
func (s *Service) Update(ctx context.Context, docID id.DocumentID, req *models.UpdateRequest, actorID string) (doc *models.Document, err error) {
	defer s.observe("update", time.Now())
	ctx, span := s.startSpan(ctx, "update", attribute.String("document_id", docID.String()))
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, withAction(err, docID.String(), string(models.ActionEdit))
	}
	if err := requireActor(actorID, docID, models.ActionEdit); err != nil {
		return nil, err
	}

	m, err := s.engine.Edit(ctx, docID, req, actorID)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, models.ActionEdit, m, actorID)
	return m.Document, nil
}

// Submit moves a draft to pending.
func (s *Service) Submit(ctx context.Context, docID id.DocumentID, actorID, note string) (*models.Document, error) {
	return s.transition(ctx, docID, models.ActionSubmit, actorID, note)
}

// Approve moves a pending document to approved and stamps the approver.
func (s *Service) Approve(ctx context.Context, docID id.DocumentID, actorID, note string) (*models.Document, error) {
	return s.transition(ctx, docID, models.ActionApprove, actorID, note)
}

// Reject returns a pending document to draft. The reason is the change note
// of the version row, whose action is reject.
func (s *Service) Reject(ctx context.Context, docID id.DocumentID, actorID, note string) (*models.Document, error) {
	return s.transition(ctx, docID, models.ActionReject, actorID, note)
}

// Publish moves an approved document to published.
func (s *Service) Publish(ctx context.Context, docID id.DocumentID, actorID, note string) (*models.Document, error) {
	return s.transition(ctx, docID, models.ActionPublish, actorID, note)
}

// Archive retires a published document.
func (s *Service) Archive(ctx context.Context, docID id.DocumentID, actorID, note string) (*models.Document, error) {
	return s.transition(ctx, docID, models.ActionArchive, actorID, note)
}

// Transition applies any workflow action by name.
func (s *Service) Transition(ctx context.Context, docID id.DocumentID, action models.Action, actorID, note string) (*models.Document, error) {
	return s.transition(ctx, docID, action, actorID, note)
}

func (s *Service) transition(ctx context.Context, docID id.DocumentID, action models.Action, actorID, note string) (doc *models.Document, err error) {
	defer s.observe(string(action), time.Now())
	ctx, span := s.startSpan(ctx, string(action), attribute.String("document_id", docID.String()))
	defer func() { endSpan(span, err) }()

	note, err = normalizeNote(note, action, docID)
	if err != nil {
		return nil, err
	}
	if note == "" {
		note = action.DefaultNote()
	}
	if err := requireActor(actorID, docID, action); err != nil {
		return nil, err
	}

	m, err := s.engine.Transition(ctx, docID, action, actorID, note)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, action, m, actorID)
	return m.Document, nil
}

// Restore snapshots the head and overwrites its content fields with those of
// versionID. Status, number and approval fields are kept. Restoring the
// latest version is allowed and still appends a row.
func (s *Service) Restore(ctx context.Context, docID id.DocumentID, versionID id.VersionID, actorID, note string) (doc *models.Document, err error) {
	defer s.observe("restore", time.Now())
	ctx, span := s.startSpan(ctx, "restore",
		attribute.String("document_id", docID.String()),
		attribute.String("version_id", versionID.String()),
	)
	defer func() { endSpan(span, err) }()

	note, err = normalizeNote(note, models.ActionRestore, docID)
	if err != nil {
		return nil, err
	}
	if note == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "note: required").
			WithEntity(docID.String()).WithAction(string(models.ActionRestore))
	}
	if err := requireActor(actorID, docID, models.ActionRestore); err != nil {
		return nil, err
	}

	m, err := s.engine.Restore(ctx, docID, versionID, actorID, note)
	if err != nil {
		return nil, err
	}
	s.committed(ctx, models.ActionRestore, m, actorID)
	return m.Document, nil
}

// Delete removes the head and all its versions. Every attachment blob the head
// or a version referenced is deleted afterwards; a blob failure is logged and
// counted but the document stays deleted.
func (s *Service) Delete(ctx context.Context, docID id.DocumentID, actorID string) (err error) {
	defer s.observe("delete", time.Now())
	ctx, span := s.startSpan(ctx, "delete", attribute.String("document_id", docID.String()))
	defer func() { endSpan(span, err) }()

	var (
		deleted *models.Document
		blobs   []string
	)
	err = s.engine.tx.RunInTx(ctx, func(ctx context.Context, stores ports.Stores) error {
		head, err := stores.Documents.FindByIDForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		paths, err := attachmentPaths(ctx, stores.Versions, head)
		if err != nil {
			return err
		}
		if err := stores.Documents.Delete(ctx, docID); err != nil {
			return err
		}
		deleted, blobs = head, paths
		return nil
	})
	if err != nil {
		return translate(err, docID.String(), "delete", "document not found")
	}

	for _, path := range blobs {
		s.deleteBlob(ctx, docID, path)
	}

	s.logAudit(ctx, string(models.EventDeleted),
		"document_id", docID.String(),
		"doc_no", deleted.DocNo,
		"actor_id", actorID,
	)
	if s.metrics != nil {
		s.metrics.IncrementDeleted()
	}
	s.publish(ctx, models.NewEvent(models.EventDeleted, deleted, actorID, 0, requestcontext.Now(ctx)))
	return nil
}

// attachmentPaths lists the distinct blob paths referenced by head and by
// every version row of its document, head first.
func attachmentPaths(ctx context.Context, versions ports.VersionStore, head *models.Document) ([]string, error) {
	seen := make(map[string]struct{})
	var paths []string
	add := func(a *models.Attachment) {
		if a == nil || a.Path == "" {
			return
		}
		if _, ok := seen[a.Path]; ok {
			return
		}
		seen[a.Path] = struct{}{}
		paths = append(paths, a.Path)
	}

	add(head.Attachment)
	for offset := 0; ; offset += models.MaxPageLimit {
		page, total, err := versions.ListByDocument(ctx, head.ID, models.MaxPageLimit, offset)
		if err != nil {
			return nil, err
		}
		for _, v := range page {
			add(v.Attachment)
		}
		if len(page) == 0 || offset+len(page) >= total {
			return paths, nil
		}
	}
}

// ListVersions returns history newest first.
func (s *Service) ListVersions(ctx context.Context, docID id.DocumentID, page models.PageRequest) (*models.VersionPage, error) {
	if err := page.Validate(); err != nil {
		return nil, withAction(err, docID.String(), "list_versions")
	}
	page.Normalize()

	if _, err := s.documents.FindByID(ctx, docID); err != nil {
		return nil, translate(err, docID.String(), "list_versions", "document not found")
	}
	versions, total, err := s.versions.ListByDocument(ctx, docID, page.Limit, page.Offset)
	if err != nil {
		return nil, translate(err, docID.String(), "list_versions", "document not found")
	}
	return &models.VersionPage{
		Versions: versions,
		Total:    total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}, nil
}

// GetVersion returns one history row. A version that belongs to another
// document is reported as not found.
func (s *Service) GetVersion(ctx context.Context, docID id.DocumentID, versionID id.VersionID) (*models.DocumentVersion, error) {
	v, err := s.versions.FindByID(ctx, docID, versionID)
	if err != nil {
		return nil, translate(err, versionID.String(), "get_version", "version not found")
	}
	return v, nil
}

// committed runs the post-commit side effects shared by all mutations.
func (s *Service) committed(ctx context.Context, action models.Action, m *Mutation, actorID string) {
	s.logAudit(ctx, string(models.EventFor(action)),
		"document_id", m.Document.ID.String(),
		"doc_no", m.Document.DocNo,
		"status", string(m.Document.Status),
		"version_number", m.VersionNumber,
		"actor_id", actorID,
	)
	if s.metrics != nil {
		s.metrics.IncrementMutation(string(action))
	}
	s.publish(ctx, models.NewEvent(models.EventFor(action), m.Document, actorID, m.VersionNumber, requestcontext.Now(ctx)))
}

func normalizeNote(note string, action models.Action, docID id.DocumentID) (string, error) {
	req := models.NoteRequest{Note: note}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return "", withAction(err, docID.String(), string(action))
	}
	return req.Note, nil
}

func requireActor(actorID string, docID id.DocumentID, action models.Action) error {
	if strings.TrimSpace(actorID) == "" {
		return dErrors.New(dErrors.CodeValidation, "actor is required").
			WithEntity(docID.String()).WithAction(string(action))
	}
	return nil
}

// withAction stamps entity and action on a coded error.
func withAction(err error, entityID, action string) error {
	var de *dErrors.Error
	if !errors.As(err, &de) {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid request").
			WithEntity(entityID).WithAction(action)
	}
	out := de.WithAction(action)
	if entityID != "" && out.EntityID == "" {
		out = out.WithEntity(entityID)
	}
	return out
}
