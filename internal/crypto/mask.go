package crypto

import "strings"

// MaskValue hides all but the first visible characters of a value. Values
// no longer than visible become "***" outright. The masked form keeps the
// original length, which leaks length but keeps logs readable.
func MaskValue(value string, visible int) string {
	if len(value) <= visible {
		return "***"
	}
	return value[:visible] + strings.Repeat("*", len(value)-visible)
}
