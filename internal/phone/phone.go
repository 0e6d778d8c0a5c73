// Package phone canonicalizes phone numbers for comparison. Stored numbers
// keep whatever formatting they were entered with; normalization is applied
// only when two numbers need to be checked for equality.
package phone

import "strings"

// Normalize strips every non-digit character from raw. An 11-digit result
// with a leading 1 (North American country code) is reduced to its last 10
// digits. Any other length is passed through as-is; no validation happens
// here. Idempotent.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		return digits[1:]
	}
	return digits
}
