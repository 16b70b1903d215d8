// Package sensitive decides which elements get their values redacted
// before a record leaves the capture pipeline.
package sensitive

import (
	"strings"

	"github.com/harrydbarnes/recordsteps/dom"
)

// keywords flag an element when any inspected attribute contains one
// of them as a separated word.
var keywords = []string{
	"password", "passwd", "card", "cvv", "cvc", "ssn", "email", "phone",
	"tel", "tax", "social", "security", "api", "key", "token", "secret",
	"auth", "otp", "pin", "credit", "cc",
}

// inspected lists the attributes scanned for keywords.
var inspected = []string{"name", "id", "autocomplete", "type", "placeholder", "aria-label"}

// Element reports whether the element's captured values must be
// replaced by the redaction marker: password-type inputs, and any
// element whose inspected attributes carry a sensitive keyword.
func Element(n *dom.Node) bool {
	if n == nil {
		return false
	}
	if strings.EqualFold(n.Attr("type"), "password") {
		return true
	}
	for _, name := range inspected {
		if containsKeyword(n.Attr(name)) {
			return true
		}
	}
	return false
}

// containsKeyword scans s for any keyword delimited on both sides by
// the string edge or a non-alphanumeric character. Underscores and
// hyphens separate words here, so "user_api_key" matches while
// "apikeyword" does not. A regexp \b would get this wrong: it counts
// underscore as a word character.
func containsKeyword(s string) bool {
	if s == "" {
		return false
	}
	s = strings.ToLower(s)
	for _, kw := range keywords {
		from := 0
		for {
			j := strings.Index(s[from:], kw)
			if j < 0 {
				break
			}
			j += from
			end := j + len(kw)
			if (j == 0 || !isAlnum(s[j-1])) && (end == len(s) || !isAlnum(s[end])) {
				return true
			}
			from = j + 1
		}
	}
	return false
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
