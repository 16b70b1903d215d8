package sink

import (
	"context"

	"github.com/harrydbarnes/recordsteps/step"
)

// RecordFunc is called for each record (in-process, zero
// serialisation).
type RecordFunc func(ctx context.Context, rec step.Record) error

// Callback delivers records via a Go function call. This is the local
// path — when the coordinator lives in the same binary as the
// recorder, steps land in the store without leaving the process.
type Callback struct {
	fn RecordFunc
}

// NewCallback creates a Callback sink. A nil handler discards.
func NewCallback(fn RecordFunc) *Callback {
	return &Callback{fn: fn}
}

func (c *Callback) Send(ctx context.Context, rec step.Record) error {
	if c.fn != nil {
		return c.fn(ctx, rec)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
