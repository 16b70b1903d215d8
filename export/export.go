// Package export turns a persisted step log into consumer formats:
// flattened JSON, a runnable Playwright script, and an HTML review
// report. Exporters read records, never the live store.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/harrydbarnes/recordsteps/step"
)

// TypeAttributeChange is the flattened form of one entry from an
// attributeChangeBatch record. Batches bundle multiple logical changes
// sharing one timestamp window; consumers see them unbundled.
const TypeAttributeChange step.Type = "attributeChange"

// Flatten expands every attributeChangeBatch record into individual
// attributeChange entries, preserving overall order and in-batch
// mutation order. All other records pass through unchanged.
func Flatten(recs []step.Record) []step.Record {
	out := make([]step.Record, 0, len(recs))
	for _, rec := range recs {
		if rec.Type != step.TypeAttributes {
			out = append(out, rec)
			continue
		}
		for _, ch := range rec.Changes {
			flat := rec
			flat.Type = TypeAttributeChange
			flat.Changes = []step.AttributeChange{ch}
			out = append(out, flat)
		}
	}
	return out
}

// JSON renders the flattened step log as an indented JSON array.
func JSON(recs []step.Record) ([]byte, error) {
	data, err := json.MarshalIndent(Flatten(recs), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: json: %w", err)
	}
	return data, nil
}
