// Package splitter divides documents into ordered translation segments,
// keeping fenced code blocks intact.
package splitter

import (
	"regexp"
	"strings"
)

// Segment is one unit of a split document. Start and End are byte offsets
// into the original text, End exclusive.
type Segment struct {
	Text         string
	Start        int
	End          int
	IsCodeBlock  bool
	CodeLanguage string
}

// fencePattern matches a fenced code block non-greedily, including the
// opening info string.
var fencePattern = regexp.MustCompile("(?s)```.*?```")

var infoStringPattern = regexp.MustCompile("^```([^\\n`]*)")

// Split divides text into ordered segments. When preserveCodeBlocks is
// true, fenced code blocks become single segments regardless of size and
// are never split. Prose is packed into segments of at most chunkSize
// characters at sentence boundaries; a single sentence longer than
// chunkSize stays whole. Emission stops silently once maxChunks segments
// exist.
func Split(text string, chunkSize, maxChunks int, preserveCodeBlocks bool) []Segment {
	if text == "" || chunkSize <= 0 || maxChunks <= 0 {
		return nil
	}

	var segments []Segment
	if !preserveCodeBlocks {
		segments = splitProse(text, 0, chunkSize)
		return truncate(segments, maxChunks)
	}

	cursor := 0
	for _, loc := range fencePattern.FindAllStringIndex(text, -1) {
		if loc[0] > cursor {
			segments = append(segments, splitProse(text[cursor:loc[0]], cursor, chunkSize)...)
		}
		fence := text[loc[0]:loc[1]]
		segments = append(segments, Segment{
			Text:         fence,
			Start:        loc[0],
			End:          loc[1],
			IsCodeBlock:  true,
			CodeLanguage: fenceLanguage(fence),
		})
		cursor = loc[1]
	}
	if cursor < len(text) {
		segments = append(segments, splitProse(text[cursor:], cursor, chunkSize)...)
	}
	return truncate(segments, maxChunks)
}

// CodeContent returns the text inside a code-block segment, without the
// fence delimiters and info string.
func (s Segment) CodeContent() string {
	if !s.IsCodeBlock {
		return s.Text
	}
	body := strings.TrimPrefix(s.Text, "```")
	body = strings.TrimSuffix(body, "```")
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	return strings.TrimSuffix(body, "\n")
}

func fenceLanguage(fence string) string {
	match := infoStringPattern.FindStringSubmatch(fence)
	if match == nil {
		return "unknown"
	}
	lang := strings.TrimSpace(match[1])
	if lang == "" {
		return "unknown"
	}
	return lang
}

// splitProse packs whole sentences into segments of at most chunkSize
// characters. A lone sentence longer than chunkSize is kept intact; runs
// without any sentence terminator fall back to hard cuts at chunkSize.
func splitProse(text string, base, chunkSize int) []Segment {
	if text == "" {
		return nil
	}
	sentences := splitSentences(text)
	var segments []Segment
	start := 0
	current := 0
	flush := func(end int) {
		if end <= start {
			return
		}
		segments = append(segments, Segment{
			Text:  text[start:end],
			Start: base + start,
			End:   base + end,
		})
		start = end
	}
	for _, end := range sentences {
		if end-start > chunkSize && current > start {
			flush(current)
		}
		current = end
		if end-start > chunkSize {
			// Single oversized sentence. Keep whole when it ends at a
			// terminator, otherwise cut it by character count.
			if hasTerminator(text[start:end]) {
				flush(end)
			} else {
				for start < end {
					cut := start + chunkSize
					if cut > end {
						cut = end
					}
					flush(cut)
				}
			}
			current = end
		}
	}
	flush(len(text))
	return segments
}

// splitSentences returns exclusive end offsets of sentence units, where a
// sentence includes its terminator and any following whitespace.
func splitSentences(text string) []int {
	var ends []int
	n := len(text)
	for i := 0; i < n; i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		j := i + 1
		if j < n && !isSpace(text[j]) {
			continue
		}
		for j < n && isSpace(text[j]) {
			j++
		}
		ends = append(ends, j)
		i = j - 1
	}
	if len(ends) == 0 || ends[len(ends)-1] < n {
		ends = append(ends, n)
	}
	return ends
}

func hasTerminator(s string) bool {
	trimmed := strings.TrimRight(s, " \t\r\n")
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func truncate(segments []Segment, maxChunks int) []Segment {
	if len(segments) > maxChunks {
		return segments[:maxChunks]
	}
	return segments
}
