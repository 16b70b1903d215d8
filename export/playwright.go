package export

import (
	"fmt"
	"strings"

	"github.com/harrydbarnes/recordsteps/step"
)

// Playwright renders the step log as a runnable Playwright test.
// Redacted values become FILL_ME placeholders the author replaces by
// hand — plaintext never made it into the log in the first place.
//
// Hover, focus and attribute-change records are informational and
// rendered as comments; the replay-relevant actions become real calls.
func Playwright(name string, recs []step.Record) []byte {
	var b strings.Builder
	b.WriteString("import { test, expect } from '@playwright/test';\n\n")
	fmt.Fprintf(&b, "test(%s, async ({ page }) => {\n", jsString(name))

	navigated := false
	for _, rec := range recs {
		switch rec.Type {
		case step.TypePageLoad:
			if !navigated {
				fmt.Fprintf(&b, "  await page.goto(%s);\n", jsString(rec.URL))
				navigated = true
			} else {
				fmt.Fprintf(&b, "  await page.waitForURL(%s);\n", jsString(rec.URL))
			}
		case step.TypeClick:
			if sel := locator(rec.Element); sel != "" {
				fmt.Fprintf(&b, "  await page.click(%s);\n", jsString(sel))
			}
		case step.TypeInputSequence:
			sel := locator(rec.Element)
			if sel == "" {
				continue
			}
			if rec.FinalValue == step.Redacted {
				fmt.Fprintf(&b, "  await page.fill(%s, FILL_ME); // value was redacted at capture\n", jsString(sel))
			} else {
				fmt.Fprintf(&b, "  await page.fill(%s, %s);\n", jsString(sel), jsString(rec.FinalValue))
			}
		case step.TypeKeypress:
			if rec.Key != "" && rec.Key != step.Redacted {
				fmt.Fprintf(&b, "  await page.keyboard.press(%s);\n", jsString(rec.Key))
			}
		case step.TypePaste:
			sel := locator(rec.Element)
			if sel == "" {
				continue
			}
			if rec.Pasted == step.Redacted {
				fmt.Fprintf(&b, "  await page.fill(%s, FILL_ME); // pasted value was redacted at capture\n", jsString(sel))
			} else {
				fmt.Fprintf(&b, "  await page.fill(%s, %s);\n", jsString(sel), jsString(rec.Pasted))
			}
		case step.TypeHover:
			if sel := locator(rec.Element); sel != "" {
				fmt.Fprintf(&b, "  await page.hover(%s);\n", jsString(sel))
			}
		case step.TypeFocus:
			if sel := locator(rec.Element); sel != "" {
				fmt.Fprintf(&b, "  // focus: %s\n", sel)
			}
		case step.TypeAttributes, TypeAttributeChange:
			for _, ch := range rec.Changes {
				fmt.Fprintf(&b, "  // attribute change: %s[%s] -> %q\n", ch.Selector, ch.Name, ch.Value)
			}
		}
	}

	b.WriteString("});\n")
	out := b.String()
	if strings.Contains(out, "FILL_ME") {
		out = "const FILL_ME = process.env.RECORDSTEPS_FILL ?? ''; // redacted at capture, supply a value\n\n" + out
	}
	return []byte(out)
}

// locator flattens a descriptor into one Playwright selector.
// Playwright's CSS engine pierces open shadow roots, so the shadow
// host chain joins the element selector as plain descendant steps.
func locator(el *step.ElementDescriptor) string {
	if el == nil {
		return ""
	}
	if len(el.ShadowPath) == 0 {
		return el.Selector
	}
	parts := append(append([]string{}, el.ShadowPath...), el.Selector)
	return strings.Join(parts, " ")
}

// jsString emits a single-quoted JS string literal.
func jsString(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}
