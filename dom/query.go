package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Query counts selector matches within one document scope. The engine
// probes it while synthesizing selectors; implementations include
// parsed static documents and live browser tabs.
type Query interface {
	Count(selector string) (int, error)
}

// Document is a parsed HTML document that answers selector queries
// offline. It supports the selector subset the synthesizer emits:
// tag, #id, .class (repeatable), [attr="val"], :nth-of-type(n), and
// chains joined by descendant or child combinators.
type Document struct {
	root *html.Node
}

// Parse reads an HTML document from r.
func Parse(r io.Reader) (*Document, error) {
	n, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	return &Document{root: n}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Count returns how many elements match sel.
func (d *Document) Count(sel string) (int, error) {
	comps, err := parseSelector(sel)
	if err != nil {
		return 0, err
	}
	count := 0
	walkElements(d.root, func(n *html.Node) bool {
		if matchesChain(n, comps) {
			count++
		}
		return true
	})
	return count, nil
}

// First returns the first element matching sel in document order, or
// nil when nothing matches.
func (d *Document) First(sel string) (*html.Node, error) {
	comps, err := parseSelector(sel)
	if err != nil {
		return nil, err
	}
	var found *html.Node
	walkElements(d.root, func(n *html.Node) bool {
		if matchesChain(n, comps) {
			found = n
			return false
		}
		return true
	})
	return found, nil
}

// Attr returns the value of an attribute on a parsed node.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

// walkElements visits every element under root in document order.
// Returning false from fn stops the walk.
func walkElements(root *html.Node, fn func(*html.Node) bool) {
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && !fn(n) {
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(root)
}

func parentElement(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode {
			return p
		}
	}
	return nil
}

// sameTagIndex returns the 1-based position of n among element
// siblings sharing its tag, the value :nth-of-type addresses.
func sameTagIndex(n *html.Node) int {
	idx := 1
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode && s.Data == n.Data {
			idx++
		}
	}
	return idx
}

type attrSel struct {
	key    string
	val    string
	hasVal bool
}

// compound is one simple-selector group. combinator relates it to the
// compound on its left: 0 for the first, ' ' descendant, '>' child.
type compound struct {
	combinator byte
	tag        string
	id         string
	classes    []string
	attrs      []attrSel
	nth        int
}

func matchesCompound(n *html.Node, c *compound) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if c.tag != "" && n.Data != c.tag {
		return false
	}
	if c.id != "" && Attr(n, "id") != c.id {
		return false
	}
	if len(c.classes) > 0 {
		have := strings.Fields(Attr(n, "class"))
		for _, want := range c.classes {
			found := false
			for _, h := range have {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		if a.hasVal {
			if Attr(n, a.key) != a.val {
				return false
			}
		} else if !hasAttr(n, a.key) {
			return false
		}
	}
	if c.nth > 0 && sameTagIndex(n) != c.nth {
		return false
	}
	return true
}

// matchesChain matches n against the rightmost compound, then verifies
// the rest of the chain against its ancestry right to left. Descendant
// steps backtrack across ancestors; child steps are exact.
func matchesChain(n *html.Node, comps []compound) bool {
	if len(comps) == 0 {
		return false
	}
	last := len(comps) - 1
	if !matchesCompound(n, &comps[last]) {
		return false
	}
	return matchesLeft(n, comps, last)
}

func matchesLeft(n *html.Node, comps []compound, idx int) bool {
	if idx == 0 {
		return true
	}
	want := &comps[idx-1]
	p := parentElement(n)
	if comps[idx].combinator == '>' {
		return p != nil && matchesCompound(p, want) && matchesLeft(p, comps, idx-1)
	}
	for ; p != nil; p = parentElement(p) {
		if matchesCompound(p, want) && matchesLeft(p, comps, idx-1) {
			return true
		}
	}
	return false
}

type selParser struct {
	s string
	i int
}

func parseSelector(sel string) ([]compound, error) {
	p := &selParser{s: sel}
	var comps []compound
	p.skipSpace()
	for p.i < len(p.s) {
		var comb byte
		if len(comps) > 0 {
			comb = ' '
			if p.s[p.i] == '>' {
				comb = '>'
				p.i++
				p.skipSpace()
			}
		}
		c, err := p.parseCompound()
		if err != nil {
			return nil, err
		}
		c.combinator = comb
		comps = append(comps, c)
		p.skipSpace()
	}
	if len(comps) == 0 {
		return nil, fmt.Errorf("dom: empty selector %q", sel)
	}
	return comps, nil
}

func (p *selParser) skipSpace() {
	for p.i < len(p.s) && (p.s[p.i] == ' ' || p.s[p.i] == '\t' || p.s[p.i] == '\n') {
		p.i++
	}
}

func (p *selParser) parseCompound() (compound, error) {
	var c compound
	start := p.i
	for p.i < len(p.s) {
		switch ch := p.s[p.i]; {
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '>':
			if p.i == start {
				return c, fmt.Errorf("dom: bad selector %q at %d", p.s, p.i)
			}
			return c, nil
		case ch == '#':
			p.i++
			c.id = p.parseIdent()
		case ch == '.':
			p.i++
			c.classes = append(c.classes, p.parseIdent())
		case ch == '[':
			a, err := p.parseAttr()
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, a)
		case ch == ':':
			n, err := p.parseNthOfType()
			if err != nil {
				return c, err
			}
			c.nth = n
		case ch == '*':
			p.i++
		default:
			if p.i != start || !identStart(ch) {
				return c, fmt.Errorf("dom: bad selector %q at %d", p.s, p.i)
			}
			c.tag = strings.ToLower(p.parseIdent())
		}
	}
	if p.i == start {
		return c, fmt.Errorf("dom: bad selector %q at %d", p.s, p.i)
	}
	return c, nil
}

func identStart(ch byte) bool {
	return ch == '\\' || ch == '_' || ch == '-' || ch >= 0x80 ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9')
}

// parseIdent consumes an identifier, keeping backslash escapes intact
// (including the space that terminates a hex escape) and unescaping
// the result.
func (p *selParser) parseIdent() string {
	start := p.i
	var b strings.Builder
	for p.i < len(p.s) {
		ch := p.s[p.i]
		if ch == '\\' {
			b.WriteByte(ch)
			p.i++
			if p.i < len(p.s) && isHexDigit(p.s[p.i]) {
				for n := 0; p.i < len(p.s) && n < 6 && isHexDigit(p.s[p.i]); n++ {
					b.WriteByte(p.s[p.i])
					p.i++
				}
				if p.i < len(p.s) && p.s[p.i] == ' ' {
					b.WriteByte(' ')
					p.i++
				}
			} else if p.i < len(p.s) {
				b.WriteByte(p.s[p.i])
				p.i++
			}
			continue
		}
		if ch == '_' || ch == '-' || ch >= 0x80 ||
			(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') ||
			(ch >= '0' && ch <= '9') {
			b.WriteByte(ch)
			p.i++
			continue
		}
		break
	}
	if p.i == start {
		return ""
	}
	return unescapeIdent(b.String())
}

// parseAttr consumes [key], [key=val] or [key="val"] starting at '['.
func (p *selParser) parseAttr() (attrSel, error) {
	var a attrSel
	p.i++ // consume '['
	a.key = strings.ToLower(p.parseIdent())
	if a.key == "" {
		return a, fmt.Errorf("dom: bad attribute selector in %q", p.s)
	}
	if p.i < len(p.s) && p.s[p.i] == '=' {
		p.i++
		a.hasVal = true
		if p.i < len(p.s) && (p.s[p.i] == '"' || p.s[p.i] == '\'') {
			quote := p.s[p.i]
			p.i++
			var b strings.Builder
			for p.i < len(p.s) && p.s[p.i] != quote {
				if p.s[p.i] == '\\' && p.i+1 < len(p.s) {
					p.i++
				}
				b.WriteByte(p.s[p.i])
				p.i++
			}
			if p.i >= len(p.s) {
				return a, fmt.Errorf("dom: unterminated attribute value in %q", p.s)
			}
			p.i++ // closing quote
			a.val = b.String()
		} else {
			start := p.i
			for p.i < len(p.s) && p.s[p.i] != ']' {
				p.i++
			}
			a.val = p.s[start:p.i]
		}
	}
	if p.i >= len(p.s) || p.s[p.i] != ']' {
		return a, fmt.Errorf("dom: unterminated attribute selector in %q", p.s)
	}
	p.i++ // consume ']'
	return a, nil
}

// parseNthOfType consumes ":nth-of-type(n)" starting at ':'. Other
// pseudo-classes are rejected; the synthesizer never emits them.
func (p *selParser) parseNthOfType() (int, error) {
	const prefix = ":nth-of-type("
	if !strings.HasPrefix(p.s[p.i:], prefix) {
		return 0, fmt.Errorf("dom: unsupported pseudo-class in %q", p.s)
	}
	p.i += len(prefix)
	n := 0
	start := p.i
	for p.i < len(p.s) && p.s[p.i] >= '0' && p.s[p.i] <= '9' {
		n = n*10 + int(p.s[p.i]-'0')
		p.i++
	}
	if p.i == start || p.i >= len(p.s) || p.s[p.i] != ')' {
		return 0, fmt.Errorf("dom: bad nth-of-type in %q", p.s)
	}
	p.i++ // consume ')'
	if n < 1 {
		return 0, fmt.Errorf("dom: bad nth-of-type index in %q", p.s)
	}
	return n, nil
}
