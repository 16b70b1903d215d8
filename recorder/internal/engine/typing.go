package engine

import (
	"github.com/harrydbarnes/recordsteps/describe"
	"github.com/harrydbarnes/recordsteps/dom"
	"github.com/harrydbarnes/recordsteps/recorder/internal/page"
	"github.com/harrydbarnes/recordsteps/sensitive"
	"github.com/harrydbarnes/recordsteps/step"
)

// typingBuffer accumulates low-level events for the focused editable
// element until a flush turns them into one inputSequence record.
// Sensitive fields are redacted at intake: plaintext never sits in the
// buffer.
type typingBuffer struct {
	target    *dom.Target
	key       string
	sensitive bool
	events    []step.InputEvent
	lastValue string
}

func (b *typingBuffer) tracking(t *dom.Target) bool {
	return b.target != nil && t != nil && t.Key() == b.key
}

// reset points the buffer at a new element (or nil to stop tracking),
// dropping any pending events.
func (b *typingBuffer) reset(t *dom.Target) {
	b.target = t
	b.events = nil
	b.lastValue = ""
	b.key = ""
	b.sensitive = false
	if t != nil {
		b.key = t.Key()
		b.sensitive = sensitive.Element(t.El())
	}
}

type flushMode int

const (
	// flushClear stops tracking afterwards (blur, focus switch).
	flushClear flushMode = iota
	// flushKeepFocus restarts accumulation on the same element
	// (click, buffer cap): the field is still focused.
	flushKeepFocus
)

// flushTyping converts the pending buffer into one inputSequence
// record. Empty buffers emit nothing but still honour the mode.
func (e *Engine) flushTyping(mode flushMode) {
	b := &e.typing
	if b.target != nil && len(b.events) > 0 {
		e.emit(step.Record{
			Type:           step.TypeInputSequence,
			RelativeTimeMs: e.rel(e.nowMs()),
			Element:        e.desc.Describe(b.target, describe.Options{}),
			Events:         b.events,
			FinalValue:     b.lastValue,
		})
		b.events = nil
		b.lastValue = ""
	}
	if mode == flushClear {
		b.reset(nil)
	}
}

// handleFocus tracks editable targets for sequencing regardless of
// verbosity; the standalone focus record itself is tier-gated.
func (e *Engine) handleFocus(ev page.Event) {
	if !e.st.Active {
		return
	}
	t := ev.Target
	if t == nil || !t.Editable {
		return
	}
	if e.typing.target != nil && !e.typing.tracking(t) {
		e.flushTyping(flushClear)
	}
	if !e.typing.tracking(t) {
		e.typing.reset(t)
	}
	if e.st.Verbosity.Focus() {
		e.emit(step.Record{
			Type:           step.TypeFocus,
			RelativeTimeMs: e.rel(ev.AtMs),
			Element:        e.desc.Describe(t, describe.Options{}),
		})
	}
}

func (e *Engine) handleBlur(ev page.Event) {
	if !e.typing.tracking(ev.Target) {
		return
	}
	e.typing.lastValue = redact(e.typing.sensitive, ev.Value)
	e.flushTyping(flushClear)
}

func (e *Engine) handleKeydown(ev page.Event) {
	if !e.st.Active {
		return
	}
	if e.typing.tracking(ev.Target) {
		b := &e.typing
		b.events = append(b.events, step.InputEvent{
			Type:           step.SubKeydown,
			RelativeTimeMs: e.subRel(ev.AtMs),
			Key:            redact(b.sensitive, ev.Key),
			Code:           redact(b.sensitive, ev.Code),
		})
		if len(b.events) >= e.typingCap {
			e.flushTyping(flushKeepFocus)
		}
		return
	}
	if !specialKeys[ev.Key] {
		return
	}
	sens := sensitive.Element(ev.Target.El())
	e.emit(step.Record{
		Type:           step.TypeKeypress,
		RelativeTimeMs: e.rel(ev.AtMs),
		Element:        e.desc.Describe(ev.Target, describe.Options{}),
		Key:            redact(sens, ev.Key),
		Code:           redact(sens, ev.Code),
	})
}

func (e *Engine) handleInput(ev page.Event) {
	if !e.st.Active || !e.typing.tracking(ev.Target) {
		return
	}
	b := &e.typing
	b.events = append(b.events, step.InputEvent{
		Type:           step.SubInput,
		RelativeTimeMs: e.subRel(ev.AtMs),
		InputType:      ev.InputType,
		Data:           redact(b.sensitive, ev.Data),
		Value:          redact(b.sensitive, ev.Value),
	})
	b.lastValue = redact(b.sensitive, ev.Value)
	if len(b.events) >= e.typingCap {
		e.flushTyping(flushKeepFocus)
	}
}

// handlePaste joins the typing run when the paste lands in the tracked
// field, otherwise emits a standalone record. Pastes are captured at
// every tier.
func (e *Engine) handlePaste(ev page.Event) {
	if !e.st.Active {
		return
	}
	if e.typing.tracking(ev.Target) {
		b := &e.typing
		b.events = append(b.events, step.InputEvent{
			Type:           step.SubPaste,
			RelativeTimeMs: e.subRel(ev.AtMs),
			Data:           redact(b.sensitive, ev.Pasted),
		})
		return
	}
	sens := sensitive.Element(ev.Target.El())
	e.emit(step.Record{
		Type:           step.TypePaste,
		RelativeTimeMs: e.rel(ev.AtMs),
		Element:        e.desc.Describe(ev.Target, describe.Options{}),
		Pasted:         redact(sens, ev.Pasted),
	})
}

func redact(sensitive bool, s string) string {
	if sensitive && s != "" {
		return step.Redacted
	}
	return s
}
