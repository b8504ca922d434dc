package textutil

import (
	"strings"
	"unicode/utf8"
)

const snippetLimit = 160

// Snippet collapses whitespace and truncates content for inclusion in
// error messages and log lines.
func Snippet(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if collapsed == "" {
		return "<empty>"
	}
	if utf8.RuneCountInString(collapsed) <= snippetLimit {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:snippetLimit]) + "..."
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
