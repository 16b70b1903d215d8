package engine

import (
	"time"

	"github.com/harrydbarnes/recordsteps/describe"
	"github.com/harrydbarnes/recordsteps/recorder/internal/page"
	"github.com/harrydbarnes/recordsteps/step"
)

// noisyAttrs are dropped below the full tier: layout and animation
// churn that would drown the batches.
var noisyAttrs = map[string]struct{}{
	"class":         {},
	"style":         {},
	"width":         {},
	"height":        {},
	"hidden":        {},
	"d":             {},
	"transform":     {},
	"aria-expanded": {},
}

// attrBatch buffers qualifying attribute changes and flushes them as
// one record when the debounce window closes with no new mutations,
// or immediately at the size cap.
type attrBatch struct {
	window  time.Duration
	max     int
	changes []step.AttributeChange
	timer   *time.Timer
	timerCh <-chan time.Time
	flushFn func([]step.AttributeChange)
}

func newAttrBatch(window time.Duration, max int, flushFn func([]step.AttributeChange)) *attrBatch {
	return &attrBatch{
		window:  window,
		max:     max,
		changes: make([]step.AttributeChange, 0, max),
		flushFn: flushFn,
	}
}

// add buffers one change. Returns true when the cap forced an
// immediate flush.
func (a *attrBatch) add(ch step.AttributeChange) bool {
	a.changes = append(a.changes, ch)
	if len(a.changes) >= a.max {
		a.flush()
		return true
	}
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.NewTimer(a.window)
	a.timerCh = a.timer.C
	return false
}

// timerC returns the channel that fires when the window expires.
func (a *attrBatch) timerC() <-chan time.Time {
	return a.timerCh
}

// flush hands the buffered changes to the flush function in arrival
// order, then resets. Flushing does not re-check gating: data
// collected while the conditions held is emitted even after they
// stopped holding.
func (a *attrBatch) flush() {
	a.stopTimer()
	if len(a.changes) == 0 {
		return
	}
	changes := a.changes
	a.changes = make([]step.AttributeChange, 0, a.max)
	a.flushFn(changes)
}

func (a *attrBatch) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
		a.timerCh = nil
	}
}

// handleAttr applies the tier gate, the noisy-attribute filter and
// no-op deduplication, then buffers the change. Selector synthesis
// skips verification here: mutation bursts must not trigger document
// queries, and repeats within one window share a memoized descriptor.
func (e *Engine) handleAttr(ev page.Event) {
	if !e.st.Active || !e.st.Verbosity.Attributes() || ev.Attr == nil {
		return
	}
	if !e.st.Verbosity.AllAttributes() {
		if _, noisy := noisyAttrs[ev.Attr.Name]; noisy {
			return
		}
	}
	if ev.Attr.Old == ev.Attr.Value {
		return
	}
	if e.attrDesc == nil {
		e.attrDesc = e.desc.NewBatch()
	}
	var sel string
	if d := e.attrDesc.Describe(ev.Target, describe.Options{SkipVerification: true}); d != nil {
		sel = d.Selector
	}
	e.attrs.add(step.AttributeChange{
		Selector:       sel,
		Name:           ev.Attr.Name,
		OldValue:       ev.Attr.Old,
		Value:          ev.Attr.Value,
		RelativeTimeMs: e.subRel(ev.AtMs),
	})
}

func (e *Engine) emitAttrBatch(changes []step.AttributeChange) {
	e.attrDesc = nil
	e.emit(step.Record{
		Type:           step.TypeAttributes,
		RelativeTimeMs: e.rel(e.nowMs()),
		Changes:        changes,
	})
}
