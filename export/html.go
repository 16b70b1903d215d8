package export

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/harrydbarnes/recordsteps/step"
)

// HTMLReport renders the step log as a standalone review page.
// Captured strings come straight from arbitrary web pages, so every
// one of them is sanitized before embedding: selectors, values and
// text snippets may themselves contain markup.
func HTMLReport(title string, recs []step.Record) []byte {
	p := bluemonday.StrictPolicy()
	esc := func(s string) string { return p.Sanitize(s) }

	var b strings.Builder
	b.WriteString("<!doctype html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", esc(title))
	b.WriteString(`<style>
body { font-family: system-ui, sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; vertical-align: top; }
th { background: #f2f2f2; }
td.t { white-space: nowrap; color: #666; }
code { background: #f6f6f6; padding: 1px 4px; }
</style>
`)
	b.WriteString("</head>\n<body>\n")
	fmt.Fprintf(&b, "<h1>%s</h1>\n", esc(title))
	fmt.Fprintf(&b, "<p>%d steps</p>\n", len(Flatten(recs)))
	b.WriteString("<table>\n<tr><th>#</th><th>time</th><th>type</th><th>target</th><th>detail</th></tr>\n")

	for i, rec := range Flatten(recs) {
		b.WriteString("<tr>")
		fmt.Fprintf(&b, "<td>%d</td>", i+1)
		fmt.Fprintf(&b, "<td class=\"t\">%s</td>", formatMs(rec.RelativeTimeMs))
		fmt.Fprintf(&b, "<td>%s</td>", esc(string(rec.Type)))
		fmt.Fprintf(&b, "<td><code>%s</code></td>", esc(locator(rec.Element)))
		fmt.Fprintf(&b, "<td>%s</td>", esc(detail(rec)))
		b.WriteString("</tr>\n")
	}

	b.WriteString("</table>\n</body>\n</html>\n")
	return []byte(b.String())
}

func detail(rec step.Record) string {
	switch rec.Type {
	case step.TypePageLoad:
		if rec.Title != "" {
			return rec.Title + " — " + rec.URL
		}
		return rec.URL
	case step.TypeClick:
		return fmt.Sprintf("at (%.0f, %.0f)", rec.X, rec.Y)
	case step.TypeInputSequence:
		return fmt.Sprintf("%d events, final value %q", len(rec.Events), rec.FinalValue)
	case step.TypeKeypress:
		return rec.Key
	case step.TypePaste:
		return fmt.Sprintf("pasted %q", rec.Pasted)
	case step.TypeAttributes, TypeAttributeChange:
		var parts []string
		for _, ch := range rec.Changes {
			parts = append(parts, fmt.Sprintf("%s: %q -> %q", ch.Name, ch.OldValue, ch.Value))
		}
		return strings.Join(parts, "; ")
	}
	return ""
}

func formatMs(ms int64) string {
	return fmt.Sprintf("%d.%03ds", ms/1000, ms%1000)
}
