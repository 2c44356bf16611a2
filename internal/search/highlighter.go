package search

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/ragstore/pkg/utils"
)

// Highlight returns a snippet of at most maxLen runes of content, positioned so
// that the first occurrence of any query term is visible. Cut ends are marked
// with "...". Without a match the snippet starts at the beginning. maxLen <= 0
// returns content unchanged.
func Highlight(content, query string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(content) <= maxLen {
		return content
	}
	runes := []rune(content)
	lower := []rune(strings.ToLower(content))
	if len(lower) != len(runes) {
		// Lowercasing changed rune count; positions would not line up.
		return utils.Truncate(content, maxLen)
	}

	hit := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if pos := runeIndex(lower, []rune(term)); pos >= 0 && (hit < 0 || pos < hit) {
			hit = pos
		}
	}
	if hit < 0 {
		return utils.Truncate(content, maxLen)
	}

	start := max(0, hit-maxLen/4)
	end := min(len(runes), start+maxLen)
	start = max(0, end-maxLen)

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(strings.TrimSpace(string(runes[start:end])))
	if end < len(runes) {
		b.WriteString("...")
	}
	return b.String()
}

func runeIndex(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
