// Package step defines the structured records emitted by recordsteps.
// These are the public API contract: any consumer (the session store,
// exporters, live-stream subscribers) imports this package to receive
// and process recorded interactions.
package step

// Redacted is the fixed marker substituted for captured values that the
// sensitivity classifier flags. Substitution happens before a record
// reaches any sink; the real value never leaves the recorder.
const Redacted = "[redacted]"

// Type is the kind of interaction a Record describes.
type Type string

const (
	TypeClick         Type = "click"
	TypeFocus         Type = "focus"
	TypeKeypress      Type = "keypress"            // standalone control key outside a tracked field
	TypeInputSequence Type = "inputSequence"       // coalesced typing run on one field
	TypePaste         Type = "paste"               // paste outside a tracked field
	TypeAttributes    Type = "attributeChangeBatch" // one debounce window of attribute mutations
	TypeHover         Type = "hover"
	TypePageLoad      Type = "pageLoad"
)

// Sub-event types inside an inputSequence record.
const (
	SubKeydown = "keydown"
	SubInput   = "input"
	SubPaste   = "paste"
)

// InputEvent is one low-level sub-event inside an inputSequence record.
// Key/Code come from keydown, InputType/Data/Value from input, Data from
// paste. For sensitive fields every one of those carries Redacted.
type InputEvent struct {
	Type           string `json:"type"` // keydown | input | paste
	RelativeTimeMs int64  `json:"relative_time_ms"`
	Key            string `json:"key,omitempty"`
	Code           string `json:"code,omitempty"`
	InputType      string `json:"input_type,omitempty"`
	Data           string `json:"data,omitempty"`
	Value          string `json:"value,omitempty"`
}

// AttributeChange is one entry inside an attributeChangeBatch record.
type AttributeChange struct {
	Selector       string `json:"selector"`
	Name           string `json:"name"`
	OldValue       string `json:"old_value,omitempty"`
	Value          string `json:"value,omitempty"`
	RelativeTimeMs int64  `json:"relative_time_ms"`
}

// Record is a single recorded interaction. Records are append-only and
// ordered by the time they were fully determined; RelativeTimeMs is
// monotonically non-decreasing within one page context.
//
// The struct is flat: Type decides which of the optional fields carry
// data, everything else stays at its zero value and is omitted from the
// wire form.
type Record struct {
	// ID and Seq are assigned by the session store on append; they are
	// empty on records still inside the recorder.
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Seq       uint64 `json:"seq,omitempty"`

	Type           Type   `json:"type"`
	RelativeTimeMs int64  `json:"relative_time_ms"`
	URL            string `json:"url"`

	// Element describes the interaction target (click, focus, paste,
	// inputSequence, hover).
	Element *ElementDescriptor `json:"element,omitempty"`

	// Click and hover coordinates (viewport-relative).
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	// Standalone keypress payload.
	Key  string `json:"key,omitempty"`
	Code string `json:"code,omitempty"`

	// inputSequence payload. FinalValue is the field value at flush
	// time (Redacted for sensitive fields).
	Events     []InputEvent `json:"events,omitempty"`
	FinalValue string       `json:"final_value,omitempty"`

	// Paste payload (Redacted for sensitive targets).
	Pasted string `json:"pasted,omitempty"`

	// attributeChangeBatch payload, in original mutation order.
	Changes []AttributeChange `json:"changes,omitempty"`

	// pageLoad payload.
	Title string `json:"title,omitempty"`
}
