// Package sanitize normalizes user-entered text before storage or rendering.
//
// Escaping is not idempotent (escaping '&' twice double-escapes), so callers
// must sanitize exactly once, at the boundary.
package sanitize

import "strings"

// entity maps the six HTML-significant characters to their entities.
// Replacement targets never reintroduce source characters, so the
// substitution is order-independent.
var entity = map[rune]string{
	'&':  "&amp;",
	'<':  "&lt;",
	'>':  "&gt;",
	'"':  "&quot;",
	'\'': "&#x27;",
	'/':  "&#x2F;",
}

// HTML escapes every occurrence of the HTML-significant characters.
func HTML(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if e, ok := entity[r]; ok {
			b.WriteString(e)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UserInput trims, truncates to maxLen runes, strips C0 control characters,
// then HTML-escapes. Truncation happens before escaping, so the returned
// string may exceed maxLen bytes due to entity expansion.
func UserInput(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if maxLen >= 0 {
		runes := []rune(s)
		if len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}
	s = stripControls(s)
	return HTML(s)
}

// stripControls removes C0 controls (0x00-0x08, 0x0B-0x0C, 0x0E-0x1F) and DEL,
// keeping tab, LF, and CR.
func stripControls(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7F:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
