package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Snapshot builds the ancestry snapshot the capture script would send
// for n: innermost-first path with tag, id, class, attributes and
// same-tag position per element. Parsed documents have no shadow
// roots, so ShadowHost is never set.
func (d *Document) Snapshot(n *html.Node) *Target {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	t := &Target{}
	for cur := n; cur != nil; cur = parentElement(cur) {
		node := Node{
			Tag:   strings.ToLower(cur.Data),
			ID:    Attr(cur, "id"),
			Class: Attr(cur, "class"),
			Nth:   sameTagIndex(cur),
		}
		if len(cur.Attr) > 0 {
			node.Attrs = make(map[string]string, len(cur.Attr))
			for _, a := range cur.Attr {
				node.Attrs[strings.ToLower(a.Key)] = a.Val
			}
		}
		t.Path = append(t.Path, node)
	}

	switch t.Path[0].Tag {
	case "input":
		t.Editable = true
		t.InputType = strings.ToLower(Attr(n, "type"))
		t.Value = Attr(n, "value")
	case "textarea", "select":
		t.Editable = t.Path[0].Tag == "textarea"
		t.Value = Attr(n, "value")
	default:
		if strings.EqualFold(Attr(n, "contenteditable"), "true") {
			t.Editable = true
		}
	}
	t.Text = CollapseText(n)
	return t
}

// CollapseText returns the node's text content with runs of whitespace
// collapsed to single spaces and the ends trimmed.
func CollapseText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
