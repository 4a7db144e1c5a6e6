// Package events delivers document lifecycle events after commit.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
)

// Encode renders an event as the JSON message value.
func Encode(event models.Event) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	return b, nil
}

// Log writes events to a structured logger. Used when no broker is configured.
type Log struct {
	logger *slog.Logger
}

var _ ports.EventPublisher = (*Log)(nil)

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, event models.Event) error {
	l.logger.InfoContext(ctx, "document event",
		"event_id", event.ID,
		"event", string(event.Type),
		"document_id", event.DocumentID.String(),
		"doc_no", event.DocNo,
		"status", string(event.Status),
		"actor_id", event.ActorID,
		"version_number", event.VersionNumber,
	)
	return nil
}
