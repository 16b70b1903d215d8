package engine

import (
	"time"

	"github.com/harrydbarnes/recordsteps/describe"
	"github.com/harrydbarnes/recordsteps/dom"
	"github.com/harrydbarnes/recordsteps/recorder/internal/page"
	"github.com/harrydbarnes/recordsteps/step"
)

// hoverState implements the rest-over-target debounce: a hover counts
// only once the pointer has sat on one element for the full delay.
// Moving to another element, or off it, resets.
type hoverState struct {
	delay   time.Duration
	target  *dom.Target
	key     string
	timer   *time.Timer
	timerCh <-chan time.Time
}

func (h *hoverState) set(t *dom.Target) {
	h.target = t
	h.key = t.Key()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.NewTimer(h.delay)
	h.timerCh = h.timer.C
}

func (h *hoverState) clear() {
	h.target = nil
	h.key = ""
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
		h.timerCh = nil
	}
}

func (h *hoverState) timerC() <-chan time.Time {
	return h.timerCh
}

func (e *Engine) handleMouseOver(ev page.Event) {
	if !e.st.Active || !e.st.Verbosity.Hover() || ev.Target == nil {
		return
	}
	if e.hover.target != nil && e.hover.key == ev.Target.Key() {
		return
	}
	e.hover.set(ev.Target)
}

func (e *Engine) handleMouseOut(ev page.Event) {
	if e.hover.target == nil || ev.Target == nil {
		return
	}
	if e.hover.key == ev.Target.Key() {
		e.hover.clear()
	}
}

// hoverFired runs when the rest timer expires. Gating is re-checked:
// the state may have flipped while the timer was pending.
func (e *Engine) hoverFired() {
	t := e.hover.target
	e.hover.clear()
	if t == nil || !e.st.Active || !e.st.Verbosity.Hover() {
		return
	}
	e.emit(step.Record{
		Type:           step.TypeHover,
		RelativeTimeMs: e.rel(e.nowMs()),
		Element:        e.desc.Describe(t, describe.Options{}),
	})
}
