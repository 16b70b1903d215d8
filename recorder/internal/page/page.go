// Package page defines the raw event feed between the injected
// capture script and the engine. Events arrive already decoded from
// the CDP binding payload; the engine never talks to the DOM
// synchronously.
package page

import (
	"github.com/harrydbarnes/recordsteps/dom"
)

// Event kinds, matching the DOM events the capture script listens for
// plus the two synthetic feeds (attribute mutations, soft navigation).
const (
	KindClick     = "click"
	KindFocus     = "focus"
	KindBlur      = "blur"
	KindKeydown   = "keydown"
	KindInput     = "input"
	KindPaste     = "paste"
	KindAttr      = "attr"
	KindMouseOver = "mouseover"
	KindMouseOut  = "mouseout"
	KindNavigate  = "navigate"
)

// Event is one raw capture, stamped in-page with epoch milliseconds.
type Event struct {
	Kind string `json:"kind"`
	AtMs int64  `json:"at_ms"`
	URL  string `json:"url,omitempty"`

	// Target is the ancestry snapshot of the event target. Absent for
	// navigation markers.
	Target *dom.Target `json:"target,omitempty"`

	// Keyboard fields (keydown).
	Key  string `json:"key,omitempty"`
	Code string `json:"code,omitempty"`

	// Input fields (input).
	InputType string `json:"input_type,omitempty"`
	Data      string `json:"data,omitempty"`
	Value     string `json:"value,omitempty"`

	// Paste payload.
	Pasted string `json:"pasted,omitempty"`

	// Attribute mutation payload (attr).
	Attr *AttrChange `json:"attr,omitempty"`

	// Pointer coordinates (click).
	X float64 `json:"x,omitempty"`
	Y float64 `json:"y,omitempty"`

	// Document title (navigate).
	Title string `json:"title,omitempty"`
}

// AttrChange is one observed attribute mutation. Value is the
// attribute's computed value at observation time, which is how no-op
// mutations (Old == Value) are recognised and dropped.
type AttrChange struct {
	Name  string `json:"name"`
	Old   string `json:"old_value"`
	Value string `json:"value"`
}
