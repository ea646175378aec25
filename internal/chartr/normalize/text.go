package normalize

import (
	"strings"
	"unicode"
)

// Text trims, collapses internal whitespace runs and strips control
// characters. Empty-after-cleaning becomes nil.
func Text(s string) *string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// TextValue is Text for callers that want a plain string ("" when empty).
func TextValue(s string) string {
	if p := Text(s); p != nil {
		return *p
	}
	return ""
}
