package textutil

import (
	"strings"
	"testing"
)

func TestContentHashIgnoresSurroundingWhitespace(t *testing.T) {
	a := ContentHash("Hello world")
	b := ContentHash("  Hello world\n")
	if a != b {
		t.Fatalf("expected equal hashes, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == ContentHash("Hello world!") {
		t.Fatal("distinct content must hash differently")
	}
}

func TestURLHashNormalizes(t *testing.T) {
	if URLHash("") != "" {
		t.Fatal("empty URL should produce empty hash")
	}
	a := URLHash("https://Example.com/book/ch1/")
	b := URLHash("https://example.com/book/ch1")
	if a != b {
		t.Fatalf("expected normalized URLs to match: %s vs %s", a, b)
	}
}

func TestCacheKeyVariesByLanguagePair(t *testing.T) {
	ch := ContentHash("text")
	uh := URLHash("https://example.com")
	enFr := CacheKey(ch, "en", "fr", uh)
	enDe := CacheKey(ch, "en", "de", uh)
	if enFr == enDe {
		t.Fatal("cache key must differ per target language")
	}
	if enFr != CacheKey(ch, "en", "fr", uh) {
		t.Fatal("cache key must be deterministic")
	}
}

func TestSnippet(t *testing.T) {
	if got := Snippet("   "); got != "<empty>" {
		t.Fatalf("unexpected empty snippet: %q", got)
	}
	if got := Snippet("a\n b\t c"); got != "a b c" {
		t.Fatalf("expected collapsed whitespace, got %q", got)
	}
	long := strings.Repeat("x", 500)
	got := Snippet(long)
	if !strings.HasSuffix(got, "...") || len(got) > 200 {
		t.Fatalf("expected truncated snippet, got %d chars", len(got))
	}
}

func TestWordCount(t *testing.T) {
	if n := WordCount("one two  three\nfour"); n != 4 {
		t.Fatalf("expected 4 words, got %d", n)
	}
	if n := WordCount(""); n != 0 {
		t.Fatalf("expected 0 words, got %d", n)
	}
}
