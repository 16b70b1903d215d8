// Package describe builds element descriptors: the immutable snapshot
// of one element that ships inside emitted records.
package describe

import (
	"log/slog"
	"strings"

	"github.com/harrydbarnes/recordsteps/dom"
	"github.com/harrydbarnes/recordsteps/selector"
	"github.com/harrydbarnes/recordsteps/sensitive"
	"github.com/harrydbarnes/recordsteps/step"
)

// Builder turns target snapshots into step.ElementDescriptors.
type Builder struct {
	// Query backs selector uniqueness probes. Nil disables probing,
	// which pushes synthesis toward positional selectors.
	Query dom.Query
	// Logger receives field-level capture problems. Nil falls back to
	// slog.Default().
	Logger *slog.Logger
}

// Options tunes one build.
type Options struct {
	// SkipVerification is passed through to selector synthesis.
	SkipVerification bool
}

// Describe builds a descriptor for the captured target, or nil for an
// absent one. Every field is a point-in-time read from the snapshot;
// a field that cannot be resolved is skipped, never fatal.
func (b *Builder) Describe(t *dom.Target, opts Options) *step.ElementDescriptor {
	el := t.El()
	if el == nil {
		return nil
	}
	selOpts := selector.Options{SkipVerification: opts.SkipVerification}

	d := &step.ElementDescriptor{
		Tag:      el.Tag,
		ID:       el.ID,
		RawClass: el.Class,
		Geometry: step.Geometry{
			Display:    t.Display,
			Visibility: t.Visibility,
			Width:      t.Width,
			Height:     t.Height,
			Top:        t.Top,
			Left:       t.Left,
		},
	}

	d.Selector = selector.Synthesize(t, b.Query, selOpts)
	if d.Selector == "" {
		b.log().Warn("describe: no selector for element", "tag", el.Tag)
	}
	d.ShadowPath = selector.HostPath(t, b.Query, selOpts)

	if len(t.Path) > 1 && !t.Path[1].ShadowHost {
		d.ParentSelector = selector.Synthesize(t.From(1), b.Query, selOpts)
	}

	d.TextSnippet = truncate(t.Text, step.TextSnippetMax)

	if t.Value != "" {
		if sensitive.Element(el) {
			d.Value = step.Redacted
		} else {
			d.Value = t.Value
		}
	}

	for name, v := range el.Attrs {
		if !strings.HasPrefix(name, "data-") {
			continue
		}
		if d.Attrs == nil {
			d.Attrs = make(map[string]string)
		}
		d.Attrs[name] = v
	}
	return d
}

// NewBatch returns a single-pass descriptor cache for mutation-batch
// processing, where the same element can surface dozens of times in
// one debounce window. Descriptors are immutable, so handing the same
// pointer out within one pass is sound; do not hold a Batch across
// passes.
func (b *Builder) NewBatch() *Batch {
	return &Batch{b: b, cache: make(map[string]*step.ElementDescriptor)}
}

// Batch memoizes Describe results by element identity.
type Batch struct {
	b     *Builder
	cache map[string]*step.ElementDescriptor
}

// Describe returns the cached descriptor for the target's identity,
// building it on first sight.
func (bb *Batch) Describe(t *dom.Target, opts Options) *step.ElementDescriptor {
	key := t.Key()
	if key == "" {
		return nil
	}
	if d, ok := bb.cache[key]; ok {
		return d
	}
	d := bb.b.Describe(t, opts)
	bb.cache[key] = d
	return d
}

func (b *Builder) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// truncate caps s at max characters without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
