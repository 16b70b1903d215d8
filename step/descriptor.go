package step

// TextSnippetMax caps ElementDescriptor.TextSnippet.
const TextSnippetMax = 200

// ElementDescriptor is an immutable snapshot of one DOM element at
// capture time. Once built it is never mutated; describing the same
// live element twice yields two independent descriptors. Geometry is
// read from live layout and is not stable across later reflows.
type ElementDescriptor struct {
	// Selector locates the element from its containing document (or
	// shadow root, when ShadowPath is non-empty).
	Selector string `json:"selector"`

	// ShadowPath is the outermost-to-innermost chain of shadow host
	// selectors for elements inside nested shadow roots; empty for
	// elements in the ordinary document tree.
	ShadowPath []string `json:"shadow_path,omitempty"`

	Tag      string `json:"tag"`
	ID       string `json:"element_id,omitempty"`
	RawClass string `json:"class,omitempty"`

	// TextSnippet is trimmed text content, capped at TextSnippetMax.
	TextSnippet string `json:"text,omitempty"`

	// Value is the current form value, or Redacted for sensitive
	// elements; empty for elements with no value concept.
	Value string `json:"value,omitempty"`

	// Attrs holds the element's data-* attributes.
	Attrs map[string]string `json:"attrs,omitempty"`

	Geometry Geometry `json:"geometry"`

	ParentSelector string `json:"parent_selector,omitempty"`
}

// Geometry is the element's layout box and computed visibility at
// capture time.
type Geometry struct {
	Display    string  `json:"display,omitempty"`
	Visibility string  `json:"visibility,omitempty"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Top        float64 `json:"top"`
	Left       float64 `json:"left"`
}
