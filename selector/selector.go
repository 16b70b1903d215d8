// Package selector synthesizes stable CSS selectors for captured
// elements and resolves host chains across shadow boundaries.
//
// Synthesis tries strategies in fixed priority order and returns the
// first that sticks: a test-oriented attribute, a non-dynamic id, a
// verified-unique class selector, and finally a positional ancestor
// walk. Every identifier interpolated into a selector is escaped, and
// uniqueness probes swallow query errors so a hostile class name can
// never abort synthesis.
package selector

import (
	"strings"

	"github.com/harrydbarnes/recordsteps/dom"
)

// testAttrs are checked in order; the first one present wins.
var testAttrs = []string{"data-testid", "data-test-id", "data-test", "data-qa", "data-cy"}

const (
	// maxIDLen is the length above which an id is considered generated.
	maxIDLen = 30
	// dynamicDigitRun is the digit-run length that marks an id as generated.
	dynamicDigitRun = 5
	// maxBoundaryDepth bounds the shadow ascent so a pathological
	// host structure cannot loop the resolver.
	maxBoundaryDepth = 10
)

// Options tunes synthesis.
type Options struct {
	// SkipVerification accepts class selectors without the uniqueness
	// probe. Mutation-batch processing sets it to keep high-frequency
	// paths free of document queries.
	SkipVerification bool
}

// Synthesize builds a selector for the target element. q answers
// uniqueness probes for the class strategy; a nil q behaves like an
// always-failing probe, pushing synthesis to the positional fallback.
func Synthesize(t *dom.Target, q dom.Query, opts Options) string {
	el := t.El()
	if el == nil {
		return ""
	}

	// 1. Test-oriented attributes.
	for _, attr := range testAttrs {
		if v, ok := el.Attrs[attr]; ok && v != "" {
			return "[" + attr + `="` + escapeAttrValue(v) + `"]`
		}
	}

	// 2. Non-dynamic id.
	if el.ID != "" && !isDynamicID(el.ID) {
		return "#" + dom.EscapeIdent(el.ID)
	}

	// 3. tag.class1.class2, kept only when it resolves to exactly one
	// element. Probe errors fall through to the positional walk.
	if sel := classSelector(el); sel != "" {
		if opts.SkipVerification {
			return sel
		}
		if q != nil {
			if n, err := q.Count(sel); err == nil && n == 1 {
				return sel
			}
		}
	}

	// 4. Positional ancestor walk.
	return positional(t)
}

func classSelector(el *dom.Node) string {
	classes := strings.Fields(el.Class)
	if len(classes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(el.Tag)
	for _, c := range classes {
		b.WriteByte('.')
		b.WriteString(dom.EscapeIdent(c))
	}
	return b.String()
}

// positional walks from the element toward its root, one segment per
// node, stopping early at the first non-dynamic ancestor id and at the
// shadow boundary: a host belongs to the outer tree and must not
// appear in a selector scoped to the inner root.
func positional(t *dom.Target) string {
	var segs []string
	for i := range t.Path {
		n := &t.Path[i]
		if i > 0 && n.ShadowHost {
			break
		}
		if i > 0 && n.ID != "" && !isDynamicID(n.ID) {
			segs = append(segs, "#"+dom.EscapeIdent(n.ID))
			break
		}
		segs = append(segs, segment(n))
	}
	// Built innermost-first; emit outermost-first.
	for l, r := 0, len(segs)-1; l < r; l, r = l+1, r-1 {
		segs[l], segs[r] = segs[r], segs[l]
	}
	return strings.Join(segs, " > ")
}

func segment(n *dom.Node) string {
	if n.Nth > 1 {
		return n.Tag + ":nth-of-type(" + itoa(n.Nth) + ")"
	}
	return n.Tag
}

// HostPath resolves the chain of shadow host selectors enclosing the
// target, ordered outermost to innermost. Elements in the ordinary
// document tree yield nil. The ascent is bounded; structures nesting
// deeper than the bound are truncated at the outer end.
func HostPath(t *dom.Target, q dom.Query, opts Options) []string {
	if t == nil {
		return nil
	}
	var path []string
	depth := 0
	for i := 1; i < len(t.Path) && depth < maxBoundaryDepth; i++ {
		if !t.Path[i].ShadowHost {
			continue
		}
		host := t.From(i)
		path = append([]string{Synthesize(host, q, opts)}, path...)
		depth++
	}
	return path
}

// isDynamicID reports whether an id looks machine-generated: a run of
// five or more digits anywhere, or an implausible length.
func isDynamicID(id string) bool {
	if len(id) > maxIDLen {
		return true
	}
	run := 0
	for i := 0; i < len(id); i++ {
		if id[i] >= '0' && id[i] <= '9' {
			run++
			if run >= dynamicDigitRun {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}

// escapeAttrValue escapes a string for use inside a double-quoted
// attribute selector value.
func escapeAttrValue(v string) string {
	if !strings.ContainsAny(v, `"\`) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v) + 2)
	for i := 0; i < len(v); i++ {
		if v[i] == '"' || v[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

func itoa(n int) string {
	if n < 10 {
		return string([]byte{byte('0' + n)})
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
