package session

import (
	"context"

	"github.com/harrydbarnes/recordsteps/step"
)

// StoreSink adapts the Service into a recorder sink: every record an
// engine emits is appended to the active session's log. It satisfies
// sink.Sink without importing it — the interface is structural.
type StoreSink struct {
	svc *Service
}

// NewStoreSink creates a sink appending through the service.
func NewStoreSink(svc *Service) *StoreSink {
	return &StoreSink{svc: svc}
}

// Send appends the record to the active session. The engine treats
// errors as at-most-once delivery failures: logged, never retried.
func (s *StoreSink) Send(ctx context.Context, rec step.Record) error {
	_, err := s.svc.Append(ctx, rec)
	return err
}

// Close is a no-op; the store's lifetime belongs to the caller.
func (s *StoreSink) Close() error { return nil }
