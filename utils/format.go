package utils

import "fmt"

// FormatRegistrationDays renders a raw seller registration day count as a
// human string. Total over all non-negative inputs; negative inputs mean
// "unknown" and render as such rather than panicking.
func FormatRegistrationDays(days int) string {
	switch {
	case days < 0:
		return "registration age unknown"
	case days == 0:
		return "registered today"
	case days < 30:
		return fmt.Sprintf("registered %d days ago", days)
	case days < 365:
		return fmt.Sprintf("registered about %d months ago", days/30)
	default:
		return fmt.Sprintf("registered over %d years ago", days/365)
	}
}

// TruncateRunes shortens s to at most max runes, appending an ellipsis
// when something was cut. Byte-based truncation would split multi-byte
// CJK titles, so this counts runes.
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return string(runes[:1])
	}
	return string(runes[:max-1]) + "…"
}
