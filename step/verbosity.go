package step

// Verbosity selects which event categories the recorder captures. Four
// increasing tiers; each tier includes everything below it.
type Verbosity int

const (
	// VerbosityBasic records clicks, typing runs, pastes, standalone
	// control keys and page loads.
	VerbosityBasic Verbosity = iota
	// VerbosityFocus adds standalone focus records.
	VerbosityFocus
	// VerbosityDetailed adds hover records and attribute-change
	// batches with noisy attributes filtered out.
	VerbosityDetailed
	// VerbosityFull keeps every attribute change.
	VerbosityFull
)

// Clamp forces v into the valid 0..3 range.
func (v Verbosity) Clamp() Verbosity {
	if v < VerbosityBasic {
		return VerbosityBasic
	}
	if v > VerbosityFull {
		return VerbosityFull
	}
	return v
}

// Focus reports whether standalone focus records are captured.
func (v Verbosity) Focus() bool { return v >= VerbosityFocus }

// Hover reports whether debounced hover records are captured.
func (v Verbosity) Hover() bool { return v >= VerbosityDetailed }

// Attributes reports whether attribute mutations are observed at all.
func (v Verbosity) Attributes() bool { return v >= VerbosityDetailed }

// AllAttributes reports whether the noisy-attribute filter is disabled.
func (v Verbosity) AllAttributes() bool { return v >= VerbosityFull }

// State is the coordinator-owned recording state. Page engines observe
// it read-only and reactively; they never write it. A frame may see a
// slightly stale copy until the next change notification arrives.
type State struct {
	Active      bool      `json:"active"`
	SessionID   string    `json:"session_id,omitempty"`
	StartedAtMs int64     `json:"started_at_ms,omitempty"`
	Verbosity   Verbosity `json:"verbosity"`
}
