package utils

import "strings"

// NormalizePhone keeps only the digits of a phone number, dropping "+",
// spaces, dashes and parentheses. Clients are stored and matched by it.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
