package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Duration formats d for humans: "850ms", "12.4s" or "3m 05s".
func Duration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	s := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%dm %02ds", s/60, s%60)
}

// Truncate shortens s to at most n runes, ending in "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-3]) + "..."
}

// Mark returns "✓" for true and "✗" for false.
func Mark(v bool) string {
	if v {
		return "✓"
	}
	return "✗"
}

// Bar draws score on a fixed-width gauge, e.g. "███░░" for 3 of 5.
func Bar(score, lo, hi int) string {
	if hi <= lo {
		return ""
	}
	width := hi - lo + 1
	filled := min(max(score-lo+1, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
