package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// SystemPrompt instructs the model to translate without commentary. The
// output must be the translation alone so chunk reassembly stays clean.
func SystemPrompt(sourceLang, targetLang string) string {
	return fmt.Sprintf(`You are a professional translator. Translate the user's text from %s to %s.

Rules:
- Output ONLY the translated text, with no preamble, notes, or explanations.
- Preserve the original formatting: paragraph breaks, lists, markdown, and inline code.
- Do not translate content inside code spans or identifiers.
- Keep proper nouns, URLs, and numbers unchanged unless the target language requires otherwise.
- Match the register and tone of the source text.`, sourceLang, targetLang)
}

// UserPrompt wraps the chunk text with optional positional context so the
// model keeps terminology consistent across a multi-chunk document.
func UserPrompt(text, positional string) string {
	if positional == "" {
		return text
	}
	return fmt.Sprintf("This text is %s of a longer document. Translate it so it reads naturally when joined with the other parts.\n\n%s", positional, text)
}

// PositionalContext renders the standard "part i of n" phrase, 1-based.
func PositionalContext(index, total int) string {
	if total <= 1 {
		return ""
	}
	return fmt.Sprintf("part %d of %d", index+1, total)
}

var wrappingFencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\n(.*)\\n```$")

// StripTranslationWrapping removes a code fence the model sometimes wraps
// its whole answer in, plus surrounding whitespace. Fences inside the
// translation are left alone.
func StripTranslationWrapping(content string) string {
	trimmed := strings.TrimSpace(content)
	if match := wrappingFencePattern.FindStringSubmatch(trimmed); match != nil {
		inner := strings.TrimSpace(match[1])
		// Only unwrap when the fence encloses the entire payload and the
		// inner text has no fences of its own.
		if !strings.Contains(inner, "```") {
			return inner
		}
	}
	return trimmed
}
