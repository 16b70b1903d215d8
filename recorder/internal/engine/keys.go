package engine

// specialKeys emit a standalone keypress record when pressed outside a
// tracked field: navigation and control actions independent of any
// text input.
var specialKeys = map[string]bool{
	"Enter":      true,
	"Tab":        true,
	"Escape":     true,
	"ArrowUp":    true,
	"ArrowDown":  true,
	"ArrowLeft":  true,
	"ArrowRight": true,
	"Backspace":  true,
	"Delete":     true,
}
