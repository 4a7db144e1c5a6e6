package events

import (
	"context"
	"log/slog"

	"docflow/internal/document/models"
	"docflow/internal/document/ports"
	"docflow/pkg/platform/circuit"
)

// Guarded sends events to primary and diverts them to fallback while the
// breaker is open, so a down broker costs one probe per cooldown instead of
// a produce timeout on every mutation.
type Guarded struct {
	primary  ports.EventPublisher
	fallback ports.EventPublisher
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

var _ ports.EventPublisher = (*Guarded)(nil)

func NewGuarded(primary, fallback ports.EventPublisher, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guarded{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (g *Guarded) Publish(ctx context.Context, event models.Event) error {
	if !g.breaker.AllowProbe() {
		return g.fallback.Publish(ctx, event)
	}

	err := g.primary.Publish(ctx, event)
	if err != nil {
		useFallback, change := g.breaker.RecordFailure()
		if change.Opened {
			g.logger.WarnContext(ctx, "event publisher circuit opened",
				"breaker", g.breaker.Name(),
				"error", err,
			)
		}
		if useFallback {
			return g.fallback.Publish(ctx, event)
		}
		return err
	}

	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.InfoContext(ctx, "event publisher circuit closed", "breaker", g.breaker.Name())
	}
	return nil
}
