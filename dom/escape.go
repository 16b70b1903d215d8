package dom

import (
	"strings"
)

// EscapeIdent escapes s for use as a CSS identifier, following the
// CSSOM "serialize an identifier" algorithm. IDs and class names taken
// from live pages routinely contain colons, slashes and leading digits
// (Tailwind, JSF, GWT), so every synthesized selector escapes them.
func EscapeIdent(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r == 0:
			b.WriteRune('�')
		case (r >= 0x01 && r <= 0x1f) || r == 0x7f:
			writeHexEscape(&b, r)
		case i == 0 && r >= '0' && r <= '9':
			writeHexEscape(&b, r)
		case i == 1 && r >= '0' && r <= '9' && s[0] == '-':
			writeHexEscape(&b, r)
		case i == 0 && r == '-' && len(s) == 1:
			b.WriteString(`\-`)
		case r >= 0x80 || r == '-' || r == '_' ||
			(r >= '0' && r <= '9') ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func writeHexEscape(b *strings.Builder, r rune) {
	const hex = "0123456789abcdef"
	b.WriteByte('\\')
	if r == 0 {
		b.WriteByte('0')
	} else {
		var tmp [8]byte
		n := len(tmp)
		for r > 0 {
			n--
			tmp[n] = hex[r&0xf]
			r >>= 4
		}
		b.Write(tmp[n:])
	}
	b.WriteByte(' ')
}

// unescapeIdent reverses EscapeIdent when the query engine parses a
// selector back into raw names. Invalid escapes decode permissively.
func unescapeIdent(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			i++
			continue
		}
		i++
		if i >= len(s) {
			b.WriteByte('\\')
			break
		}
		// Hex escape: up to six digits, one optional trailing space.
		if isHexDigit(s[i]) {
			var v rune
			n := 0
			for i < len(s) && n < 6 && isHexDigit(s[i]) {
				v = v<<4 | rune(hexVal(s[i]))
				i++
				n++
			}
			if i < len(s) && s[i] == ' ' {
				i++
			}
			if v == 0 {
				v = '�'
			}
			b.WriteRune(v)
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
