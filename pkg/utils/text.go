// Package utils provides shared utilities for text, vector math, and logging.
package utils

import (
	"strings"
	"unicode/utf8"
)

// Truncate returns s cut to maxLen runes with "..." appended when it was cut.
// maxLen <= 0 returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}

// IsBlank reports whether s is empty or whitespace only.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
