// Package dom models captured element snapshots and answers selector
// queries against parsed HTML documents.
//
// The capture script forwards each event target as an ancestry snapshot
// (Target): the element itself plus every ancestor up to the document
// root, crossing shadow boundaries through their host elements. All
// selector work in Go operates on these snapshots; the live DOM is
// never touched synchronously.
package dom

// Node is one element in an ancestry snapshot.
type Node struct {
	// Tag is the lower-case tag name.
	Tag string `json:"tag"`
	// ID is the id attribute, empty when absent.
	ID string `json:"id,omitempty"`
	// Class is the raw class attribute.
	Class string `json:"class,omitempty"`
	// Attrs holds the element's attributes (lower-case names). Plain
	// ancestors may carry only the attributes selector synthesis needs;
	// targets and shadow hosts carry the full map.
	Attrs map[string]string `json:"attrs,omitempty"`
	// Nth is the 1-based position among same-tag element siblings.
	// Zero means unknown and is treated as 1.
	Nth int `json:"nth,omitempty"`
	// ShadowHost marks a node whose shadow root contains the nodes
	// before it in the path.
	ShadowHost bool `json:"shadow_host,omitempty"`
}

// Attr returns the named attribute, falling back to the dedicated
// ID/Class fields for "id" and "class".
func (n *Node) Attr(name string) string {
	if n == nil {
		return ""
	}
	if v, ok := n.Attrs[name]; ok {
		return v
	}
	switch name {
	case "id":
		return n.ID
	case "class":
		return n.Class
	}
	return ""
}

// Target is an ancestry snapshot of one event target. Path is ordered
// innermost first: Path[0] is the element itself, the last entry the
// outermost ancestor. Value, Text and the layout fields are point-in-
// time reads taken when the event fired.
type Target struct {
	Path []Node `json:"path"`

	// Value is the current form value. Password-type inputs arrive
	// already masked; the classifier handles everything subtler.
	Value string `json:"value,omitempty"`
	// Editable is true for text inputs, textareas and contenteditable
	// elements — the targets the typing accumulator tracks.
	Editable bool `json:"editable,omitempty"`
	// InputType is the lower-case type attribute for input elements.
	InputType string `json:"input_type,omitempty"`

	// Text is the element's trimmed text content. The capture script
	// truncates it before sending to bound payload size.
	Text string `json:"text,omitempty"`

	// Live layout at capture time.
	Display    string  `json:"display,omitempty"`
	Visibility string  `json:"visibility,omitempty"`
	Width      float64 `json:"w,omitempty"`
	Height     float64 `json:"h,omitempty"`
	Top        float64 `json:"top,omitempty"`
	Left       float64 `json:"left,omitempty"`
}

// El returns the target element's node, or nil for an empty snapshot.
func (t *Target) El() *Node {
	if t == nil || len(t.Path) == 0 {
		return nil
	}
	return &t.Path[0]
}

// From returns a sub-target rooted at Path[i]: the snapshot the given
// ancestor would have produced as an event target. Layout and value
// fields are not carried over — they belong to the original element.
func (t *Target) From(i int) *Target {
	if t == nil || i < 0 || i >= len(t.Path) {
		return nil
	}
	return &Target{Path: t.Path[i:]}
}

// InShadow reports whether the element sits inside at least one shadow
// root (some ancestor is marked as its shadow host).
func (t *Target) InShadow() bool {
	if t == nil {
		return false
	}
	for i := 1; i < len(t.Path); i++ {
		if t.Path[i].ShadowHost {
			return true
		}
	}
	return false
}

// SameKey reports whether two snapshots plausibly reference the same
// live element. Capture delivers independent snapshots per event, so
// identity is reconstructed structurally: equal tag, id and position
// up the ancestry chain.
func SameKey(a, b *Target) bool {
	return a.Key() == b.Key()
}

// Key returns a stable identity string for the element: the ancestry
// chain of tag/nth/id segments. Two events on the same untouched
// element produce equal keys.
func (t *Target) Key() string {
	if t == nil || len(t.Path) == 0 {
		return ""
	}
	// Preallocate roughly 12 bytes per segment.
	b := make([]byte, 0, len(t.Path)*12)
	for i := range t.Path {
		n := &t.Path[i]
		b = append(b, n.Tag...)
		if n.ID != "" {
			b = append(b, '#')
			b = append(b, n.ID...)
		}
		if n.Nth > 1 {
			b = append(b, ':')
			b = appendInt(b, n.Nth)
		}
		if n.ShadowHost {
			b = append(b, '^')
		}
		b = append(b, '/')
	}
	return string(b)
}

func appendInt(b []byte, n int) []byte {
	if n >= 10 {
		b = appendInt(b, n/10)
	}
	return append(b, byte('0'+n%10))
}
