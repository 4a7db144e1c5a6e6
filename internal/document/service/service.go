package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docflow/internal/document/metrics"
	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	"docflow/pkg/requestcontext"
)

const tracerName = "docflow/internal/document/service"

// Service is the document façade. Collaborators call only this type; it
// validates input and orchestrates numbering, storage and the approval engine.
//
// Edits are accepted in any status. Callers that restrict edits to drafts do
// so through the permission gate before reaching the service.
type Service struct {
	documents ports.DocumentStore
	versions  ports.VersionStore
	sequences ports.SequenceAllocator
	engine    *ApprovalEngine

	blobs     ports.BlobStore
	publisher ports.EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	retry     RetryPolicy
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithBlobStore enables attachment upload, signed URLs and blob cleanup on delete.
func WithBlobStore(b ports.BlobStore) Option {
	return func(s *Service) {
		s.blobs = b
	}
}

// WithEventPublisher enables lifecycle events after commit.
func WithEventPublisher(p ports.EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithRetryPolicy overrides the conflict retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(s *Service) {
		s.retry = p
	}
}

// New constructs a Service. The stores must be the non-transactional views of
// the same backend tx runs against.
func New(documents ports.DocumentStore, versions ports.VersionStore, sequences ports.SequenceAllocator, tx ports.TxRunner, opts ...Option) (*Service, error) {
	switch {
	case documents == nil:
		return nil, errors.New("document store is required")
	case versions == nil:
		return nil, errors.New("version store is required")
	case sequences == nil:
		return nil, errors.New("sequence allocator is required")
	case tx == nil:
		return nil, errors.New("transaction runner is required")
	}

	s := &Service{
		documents: documents,
		versions:  versions,
		sequences: sequences,
		retry:     DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	s.engine = NewApprovalEngine(tx, s.retry)
	s.engine.onRetry = func(attempt int) {
		s.logger.Warn("retrying document mutation after conflict", "attempt", attempt)
		if s.metrics != nil {
			s.metrics.IncrementConflictRetry()
		}
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "document."+operation, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

// publish delivers a lifecycle event. The mutation has already committed, so
// failures are logged and counted but never returned.
func (s *Service) publish(ctx context.Context, event models.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish document event",
			"error", err,
			"event_type", event.Type,
			"document_id", event.DocumentID.String(),
		)
		if s.metrics != nil {
			s.metrics.IncrementEventFailure()
		}
	}
}

func (s *Service) observe(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(operation, start)
	}
}
