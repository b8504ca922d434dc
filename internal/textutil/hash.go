package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the hex SHA-256 digest of the text after trimming
// surrounding whitespace. Identical content yields identical hashes
// regardless of leading or trailing space.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(text)))
	return hex.EncodeToString(sum[:])
}

// URLHash returns the hex SHA-256 digest of a normalized page URL, or the
// empty string when no URL was supplied. Normalization lowercases the URL
// and strips a trailing slash so trivially different spellings share an
// entry.
func URLHash(pageURL string) string {
	trimmed := strings.TrimSpace(pageURL)
	if trimmed == "" {
		return ""
	}
	normalized := strings.TrimSuffix(strings.ToLower(trimmed), "/")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CacheKey derives the primary cache lookup key from the content hash,
// language pair, and URL hash. The URL hash may be empty for
// URL-independent entries.
func CacheKey(contentHash, sourceLang, targetLang, urlHash string) string {
	sum := sha256.Sum256([]byte(contentHash + "|" + sourceLang + "|" + targetLang + "|" + urlHash))
	return hex.EncodeToString(sum[:])
}
