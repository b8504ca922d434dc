package cachestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"glossa/internal/config"
	"glossa/internal/testsupport"
	"glossa/internal/textutil"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	clock := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	cache := New(store.DB(), cfg.Cache)
	cache.now = func() time.Time { return clock }
	return cache, &clock
}

func TestLookupMissThenHit(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("Hello world.")

	if _, err := cache.Lookup(ctx, contentHash, "en", "fr", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}

	entry := &Entry{
		ContentHash:    contentHash,
		SourceLang:     "en",
		TargetLang:     "fr",
		TranslatedText: "Bonjour le monde.",
		Model:          "test-model",
		QualityScore:   4.0,
	}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if entry.TTLHours != 168 {
		t.Fatalf("expected default TTL tier, got %d", entry.TTLHours)
	}

	hit, err := cache.Lookup(ctx, contentHash, "en", "fr", "")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit.TranslatedText != "Bonjour le monde." {
		t.Fatalf("unexpected text: %q", hit.TranslatedText)
	}
	if hit.HitCount != 1 {
		t.Fatalf("expected hit count 1, got %d", hit.HitCount)
	}

	again, err := cache.Lookup(ctx, contentHash, "en", "fr", "")
	if err != nil {
		t.Fatalf("second Lookup: %v", err)
	}
	if again.HitCount != 2 {
		t.Fatalf("expected hit count 2, got %d", again.HitCount)
	}

	if _, err := cache.Lookup(ctx, contentHash, "en", "de", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("other language pair must miss, got %v", err)
	}
}

func TestStoreIsIdempotentPerKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("text")

	first := &Entry{ContentHash: contentHash, SourceLang: "en", TargetLang: "fr", TranslatedText: "v1", Model: "m"}
	if err := cache.Store(ctx, first); err != nil {
		t.Fatalf("Store: %v", err)
	}
	second := &Entry{ContentHash: contentHash, SourceLang: "en", TargetLang: "fr", TranslatedText: "v2", Model: "m"}
	if err := cache.Store(ctx, second); err != nil {
		t.Fatalf("Store refresh: %v", err)
	}

	stats, err := cache.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected a single row after refresh, got %d", stats.Entries)
	}

	hit, err := cache.Lookup(ctx, contentHash, "en", "fr", "")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if hit.TranslatedText != "v2" {
		t.Fatalf("expected refreshed text, got %q", hit.TranslatedText)
	}
}

func TestSecondaryLookupMatchesOnContentAndLangs(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("chapter text")

	// Stored with a URL, so the exact key includes the url hash.
	entry := &Entry{
		ContentHash:    contentHash,
		PageURL:        "https://example.com/book/ch1",
		SourceLang:     "en",
		TargetLang:     "fr",
		TranslatedText: "chapitre",
		Model:          "m",
	}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Same URL spelled differently still hits via normalization.
	hit, err := cache.Lookup(ctx, contentHash, "en", "fr", "https://EXAMPLE.com/book/ch1/")
	if err != nil {
		t.Fatalf("Lookup with equivalent URL: %v", err)
	}
	if hit.TranslatedText != "chapitre" {
		t.Fatalf("unexpected text: %q", hit.TranslatedText)
	}

	// The same content at a different URL hits through the content fallback.
	hit, err = cache.Lookup(ctx, contentHash, "en", "fr", "https://mirror.example.org/ch1")
	if err != nil {
		t.Fatalf("Lookup at different URL: %v", err)
	}
	if hit.TranslatedText != "chapitre" {
		t.Fatalf("unexpected text at different URL: %q", hit.TranslatedText)
	}

	// So does a lookup that carries no URL at all.
	if _, err := cache.Lookup(ctx, contentHash, "en", "fr", ""); err != nil {
		t.Fatalf("Lookup without URL: %v", err)
	}

	// The fallback never crosses language pairs.
	if _, err := cache.Lookup(ctx, contentHash, "en", "de", "https://mirror.example.org/ch1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("other language pair must miss, got %v", err)
	}
}

func TestLookupWithURLHitsEntryCachedWithoutOne(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("plain text")

	entry := &Entry{
		ContentHash:    contentHash,
		SourceLang:     "en",
		TargetLang:     "fr",
		TranslatedText: "texte",
		Model:          "m",
	}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}

	hit, err := cache.Lookup(ctx, contentHash, "en", "fr", "https://example.com/page")
	if err != nil {
		t.Fatalf("Lookup with URL: %v", err)
	}
	if hit.TranslatedText != "texte" {
		t.Fatalf("unexpected text: %q", hit.TranslatedText)
	}
	if hit.HitCount != 1 {
		t.Fatalf("fallback hit must bump the counter, got %d", hit.HitCount)
	}
}

func TestExpiredEntriesNeverReturned(t *testing.T) {
	cache, clock := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("text")

	entry := &Entry{ContentHash: contentHash, SourceLang: "en", TargetLang: "fr", TranslatedText: "t", Model: "m", TTLHours: 1}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Exactly at expiry: expires_at <= now, so it must not be returned.
	*clock = clock.Add(time.Hour)
	if _, err := cache.Lookup(ctx, contentHash, "en", "fr", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("boundary lookup must miss, got %v", err)
	}

	purged, err := cache.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}
}

func TestPinnedEntriesSurviveExpiryAndPurge(t *testing.T) {
	cache, clock := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("pinned text")

	entry := &Entry{ContentHash: contentHash, SourceLang: "en", TargetLang: "fr", TranslatedText: "t", Model: "m", TTLHours: 1, Pinned: true}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}

	*clock = clock.Add(48 * time.Hour)
	if _, err := cache.Lookup(ctx, contentHash, "en", "fr", ""); err != nil {
		t.Fatalf("pinned entry must still hit: %v", err)
	}
	purged, err := cache.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if purged != 0 {
		t.Fatalf("pinned entry must survive purge, purged %d", purged)
	}
}

func TestTTLTiers(t *testing.T) {
	cfg := config.Default().Cache
	cache := New(nil, cfg)
	cases := []struct {
		quality float64
		want    int
	}{
		{4.8, 720},
		{4.5, 720},
		{3.5, 168},
		{3.0, 168},
		{2.9, 24},
		{0, 24},
	}
	for _, tc := range cases {
		if got := cache.TTLFor(tc.quality); got != tc.want {
			t.Fatalf("quality %.1f: expected %dh, got %dh", tc.quality, tc.want, got)
		}
	}
}

func TestInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	contentHash := textutil.ContentHash("text")

	for _, target := range []string{"fr", "de", "es"} {
		entry := &Entry{ContentHash: contentHash, SourceLang: "en", TargetLang: target, TranslatedText: "t", Model: "m"}
		if err := cache.Store(ctx, entry); err != nil {
			t.Fatalf("Store %s: %v", target, err)
		}
	}

	removed, err := cache.Invalidate(ctx, contentHash, "en", "fr")
	if err != nil {
		t.Fatalf("Invalidate pair: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	removed, err = cache.Invalidate(ctx, contentHash, "", "")
	if err != nil {
		t.Fatalf("Invalidate all: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
}

func TestInvalidateURL(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()
	pageURL := "https://example.com/article"

	for i, target := range []string{"fr", "de", "es"} {
		entry := &Entry{
			ContentHash:    textutil.ContentHash("article text " + target),
			PageURL:        pageURL,
			SourceLang:     "en",
			TargetLang:     target,
			TranslatedText: "t",
			Model:          "m",
		}
		if err := cache.Store(ctx, entry); err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
	}

	removed, err := cache.InvalidateURL(ctx, pageURL, "en", "fr")
	if err != nil {
		t.Fatalf("InvalidateURL pair: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed for the en/fr pair, got %d", removed)
	}

	removed, err = cache.InvalidateURL(ctx, pageURL, "", "")
	if err != nil {
		t.Fatalf("InvalidateURL all: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed clearing the URL, got %d", removed)
	}

	removed, err = cache.InvalidateURL(ctx, "", "", "")
	if err != nil {
		t.Fatalf("InvalidateURL empty: %v", err)
	}
	if removed != 0 {
		t.Fatalf("empty URL must remove nothing, got %d", removed)
	}
}

func TestDisabledCacheMissesAndSkipsWrites(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Cache.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	cache := New(store.DB(), cfg.Cache)
	ctx := context.Background()
	contentHash := textutil.ContentHash("text")

	entry := &Entry{ContentHash: contentHash, SourceLang: "en", TargetLang: "fr", TranslatedText: "t", Model: "m"}
	if err := cache.Store(ctx, entry); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := cache.Lookup(ctx, contentHash, "en", "fr", ""); !errors.Is(err, ErrMiss) {
		t.Fatalf("disabled cache must miss, got %v", err)
	}
}
