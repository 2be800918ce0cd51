package strings

import (
	"strings"
)

// DefaultCellMaxLen is the default maximum length for free-form text rendered
// into table cells (display names, scope lists, error messages).
const DefaultCellMaxLen = 60

// MinTruncateLen is the minimum maxLen value for Truncate. Values smaller
// than this would not leave room for meaningful content plus "...".
const MinTruncateLen = 4

// Truncate truncates a string to maxLen characters and ensures single-line
// output. It replaces newlines with spaces, collapses runs of whitespace into
// single spaces, and appends "..." if truncated.
//
// The function operates on runes rather than bytes so multi-byte characters
// are never split. maxLen values below MinTruncateLen are clamped.
func Truncate(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	// strings.Fields splits on any whitespace (\n, \r, \t, repeated spaces).
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
