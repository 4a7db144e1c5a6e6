package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"docflow/internal/document/models"
	id "docflow/pkg/domain"
	dErrors "docflow/pkg/domain-errors"
	"docflow/pkg/platform/sentinel"
)

// DefaultAttachmentURLTTL is used when AttachmentURL is called without a TTL.
const DefaultAttachmentURLTTL = 15 * time.Minute

// Upload is an attachment to store before pointing the head at it.
type Upload struct {
	Name     string
	MimeType string
	Size     int64
	Body     io.Reader
}

// AttachFile stores the upload in the blob store, then records it on the head
// as an edit, snapshotting the previous attachment. If the edit fails the new
// blob is deleted again.
func (s *Service) AttachFile(ctx context.Context, docID id.DocumentID, upload Upload, actorID, note string) (doc *models.Document, err error) {
	defer s.observe("attach", time.Now())
	ctx, span := s.startSpan(ctx, "attach",
		attribute.String("document_id", docID.String()),
		attribute.Int64("size", upload.Size),
	)
	defer func() { endSpan(span, err) }()

	if s.blobs == nil {
		return nil, dErrors.New(dErrors.CodeAttachment, "blob store not configured").
			WithEntity(docID.String()).WithAction("attach")
	}
	name := strings.TrimSpace(upload.Name)
	if name == "" || upload.Body == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "attachment name and body are required").
			WithEntity(docID.String()).WithAction("attach")
	}
	if _, err := s.documents.FindByID(ctx, docID); err != nil {
		return nil, translate(err, docID.String(), "attach", "document not found")
	}

	path, err := s.blobs.Put(ctx, name, upload.MimeType, upload.Size, upload.Body)
	if err != nil {
		s.attachmentFailure(ctx, "put", docID, err)
		return nil, dErrors.Wrap(err, dErrors.CodeAttachment, "failed to store attachment").
			WithEntity(docID.String()).WithAction("attach")
	}

	if note == "" {
		note = "Attached " + name
	}
	req := &models.UpdateRequest{
		Attachment: &models.Attachment{
			Path:     path,
			Name:     name,
			Size:     upload.Size,
			MimeType: upload.MimeType,
		},
		ChangeNote: note,
	}
	doc, err = s.Update(ctx, docID, req, actorID)
	if err != nil {
		s.deleteBlob(ctx, docID, path)
		return nil, err
	}
	return doc, nil
}

// AttachmentURL returns a time-limited download URL for the head's attachment.
func (s *Service) AttachmentURL(ctx context.Context, docID id.DocumentID, ttl time.Duration) (string, error) {
	if s.blobs == nil {
		return "", dErrors.New(dErrors.CodeAttachment, "blob store not configured").
			WithEntity(docID.String()).WithAction("attachment_url")
	}
	doc, err := s.documents.FindByID(ctx, docID)
	if err != nil {
		return "", translate(err, docID.String(), "attachment_url", "document not found")
	}
	if doc.Attachment == nil {
		return "", dErrors.New(dErrors.CodeNotFound, "document has no attachment").
			WithEntity(docID.String()).WithAction("attachment_url")
	}
	if ttl <= 0 {
		ttl = DefaultAttachmentURLTTL
	}
	url, err := s.blobs.SignedURL(ctx, doc.Attachment.Path, ttl)
	if err != nil {
		s.attachmentFailure(ctx, "sign", docID, err)
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Wrap(err, dErrors.CodeNotFound, "attachment blob missing").
				WithEntity(docID.String()).WithAction("attachment_url")
		}
		return "", dErrors.Wrap(err, dErrors.CodeAttachment, "failed to sign attachment url").
			WithEntity(docID.String()).WithAction("attachment_url")
	}
	return url, nil
}

func (s *Service) deleteBlob(ctx context.Context, docID id.DocumentID, path string) {
	if s.blobs == nil || path == "" {
		return
	}
	if err := s.blobs.Delete(ctx, path); err != nil {
		s.attachmentFailure(ctx, "delete", docID, err)
	}
}

func (s *Service) attachmentFailure(ctx context.Context, op string, docID id.DocumentID, err error) {
	s.logger.ErrorContext(ctx, "attachment blob operation failed",
		"op", op,
		"document_id", docID.String(),
		"error", err,
	)
	if s.metrics != nil {
		s.metrics.IncrementAttachmentFailure(op)
	}
}
