package translator

import (
	"strings"

	"golang.org/x/text/language"

	"glossa/internal/translation"
)

const maxDocumentChars = 1 << 20

// validateRequest rejects malformed input before any row is written.
// Language codes must parse as BCP 47 tags and the pair must actually
// change languages.
func validateRequest(req Request) error {
	if strings.TrimSpace(req.Text) == "" {
		return &translation.ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if len(req.Text) > maxDocumentChars {
		return &translation.ValidationError{Field: "text", Reason: "document too large"}
	}
	if err := validateLang("source_lang", req.SourceLang); err != nil {
		return err
	}
	if err := validateLang("target_lang", req.TargetLang); err != nil {
		return err
	}
	if strings.EqualFold(req.SourceLang, req.TargetLang) {
		return &translation.ValidationError{Field: "target_lang", Reason: "must differ from source_lang"}
	}
	return nil
}

func validateLang(field, code string) error {
	if code == "" {
		return &translation.ValidationError{Field: field, Reason: "required"}
	}
	tag, err := language.Parse(code)
	if err != nil || tag == language.Und {
		return &translation.ValidationError{Field: field, Reason: "unknown language code"}
	}
	return nil
}
