// Package sink defines output backends for recorded steps.
package sink

import (
	"context"
	"log/slog"

	"github.com/harrydbarnes/recordsteps/step"
)

// Sink is the delivery interface. Implementations receive each record
// exactly once from the engine; delivery is at-most-once — a failed
// Send is logged by the caller and the record dropped, never retried
// from a durable queue.
type Sink interface {
	Send(ctx context.Context, rec step.Record) error
	Close() error
}

// Router fans out records to all configured sinks. One sink error does
// not block the others — errors are logged and the first encountered
// is returned.
type Router struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewRouter creates a fan-out router delivering to all sinks.
func NewRouter(logger *slog.Logger, sinks ...Sink) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{sinks: sinks, logger: logger}
}

func (r *Router) Send(ctx context.Context, rec step.Record) error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Send(ctx, rec); err != nil {
			r.logger.Warn("sink: send failed", "type", rec.Type, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
