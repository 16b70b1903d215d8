// Package idgen mints session, step, and page identifiers. Consumers
// take a Generator so the scheme is a wiring-time decision; the
// recorder composes Prefixed over UUIDv7 ("sess_", "step_", "page_").
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 produces RFC 9562 UUID v7 strings. Time-ordered, so ids sort
// by creation order, which keeps the step log browsable by id alone.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed type prefix to every id from gen.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}
