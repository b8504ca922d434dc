// Package cachestore persists finished translations keyed by content and
// URL, with quality-tiered TTLs and hit counting. It shares the SQLite
// database opened by the translation store.
package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"glossa/internal/config"
	"glossa/internal/textutil"
)

// ErrMiss indicates no live cache entry matched the lookup.
var ErrMiss = errors.New("cachestore: miss")

// Entry is one cached translation.
type Entry struct {
	ID             int64
	CacheKey       string
	ContentHash    string
	URLHash        string
	PageURL        string
	SourceLang     string
	TargetLang     string
	TranslatedText string
	Model          string
	QualityScore   float64
	HitCount       int64
	TTLHours       int
	Pinned         bool
	CreatedAt      time.Time
	LastHitAt      *time.Time
	ExpiresAt      time.Time
}

// Stats summarizes cache occupancy.
type Stats struct {
	Entries  int64
	Expired  int64
	Pinned   int64
	HitTotal int64
}

// Cache reads and writes translation_cache rows.
type Cache struct {
	db  *sql.DB
	cfg config.Cache
	now func() time.Time
}

// New wires a cache over an existing database handle.
func New(db *sql.DB, cfg config.Cache) *Cache {
	return &Cache{db: db, cfg: cfg, now: time.Now}
}

// TTLFor maps a quality score to the configured TTL tier.
func (c *Cache) TTLFor(quality float64) int {
	switch {
	case quality >= c.cfg.HighQualityThreshold:
		return c.cfg.HighQualityTTLHours
	case quality < c.cfg.LowQualityThreshold:
		return c.cfg.LowQualityTTLHours
	default:
		return c.cfg.DefaultTTLHours
	}
}

// Lookup finds a live entry for the content, language pair, and page URL.
// It tries the exact cache key first, then falls back to a content-only
// match so the same document hits regardless of which URL it was cached
// under. A hit bumps the entry's hit count. Expired entries are never
// returned, even before a purge sweep removes them; pinned entries never
// expire.
func (c *Cache) Lookup(ctx context.Context, contentHash, sourceLang, targetLang, pageURL string) (*Entry, error) {
	if !c.cfg.Enabled {
		return nil, ErrMiss
	}
	urlHash := textutil.URLHash(pageURL)
	key := textutil.CacheKey(contentHash, sourceLang, targetLang, urlHash)
	now := c.now().UTC()
	nowStr := now.Format(time.RFC3339Nano)

	entry, err := c.scanOne(ctx, `
		SELECT `+entryColumns+` FROM translation_cache
		WHERE cache_key = ? AND (pinned = 1 OR expires_at > ?)`,
		key, nowStr)
	if errors.Is(err, sql.ErrNoRows) {
		entry, err = c.scanOne(ctx, `
			SELECT `+entryColumns+` FROM translation_cache
			WHERE content_hash = ? AND source_lang = ? AND target_lang = ?
			  AND (pinned = 1 OR expires_at > ?)
			ORDER BY created_at DESC
			LIMIT 1`,
			contentHash, sourceLang, targetLang, nowStr)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}

	if _, err := c.db.ExecContext(ctx, `
		UPDATE translation_cache
		SET hit_count = hit_count + 1, last_hit_at = ?
		WHERE id = ?`,
		nowStr, entry.ID); err != nil {
		return nil, fmt.Errorf("bump hit count: %w", err)
	}
	entry.HitCount++
	entry.LastHitAt = &now
	return entry, nil
}

// Store upserts a translation. An existing row with the same cache key has
// its text, quality, and expiry refreshed instead of gaining a duplicate.
func (c *Cache) Store(ctx context.Context, entry *Entry) error {
	if !c.cfg.Enabled {
		return nil
	}
	if entry.TranslatedText == "" {
		return errors.New("cachestore: refusing to cache empty translation")
	}
	entry.URLHash = textutil.URLHash(entry.PageURL)
	entry.CacheKey = textutil.CacheKey(entry.ContentHash, entry.SourceLang, entry.TargetLang, entry.URLHash)
	if entry.TTLHours <= 0 {
		entry.TTLHours = c.TTLFor(entry.QualityScore)
	}
	now := c.now().UTC()
	entry.CreatedAt = now
	entry.ExpiresAt = now.Add(time.Duration(entry.TTLHours) * time.Hour)

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO translation_cache (
			cache_key, content_hash, url_hash, page_url,
			source_lang, target_lang, translated_text, model,
			quality_score, ttl_hours, pinned, created_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			translated_text = excluded.translated_text,
			model = excluded.model,
			quality_score = excluded.quality_score,
			ttl_hours = excluded.ttl_hours,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`,
		entry.CacheKey,
		entry.ContentHash,
		entry.URLHash,
		nullIfEmpty(entry.PageURL),
		entry.SourceLang,
		entry.TargetLang,
		entry.TranslatedText,
		entry.Model,
		entry.QualityScore,
		entry.TTLHours,
		boolToInt(entry.Pinned),
		now.Format(time.RFC3339Nano),
		entry.ExpiresAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	return nil
}

// PurgeExpired deletes unpinned entries past their expiry.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM translation_cache
		WHERE pinned = 0 AND expires_at <= ?`,
		c.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("purge expired: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge expired rows: %w", err)
	}
	return affected, nil
}

// Invalidate removes entries for a content hash, optionally narrowed to a
// language pair. Empty langs clear every pair.
func (c *Cache) Invalidate(ctx context.Context, contentHash, sourceLang, targetLang string) (int64, error) {
	query := "DELETE FROM translation_cache WHERE content_hash = ?"
	args := []any{contentHash}
	if sourceLang != "" && targetLang != "" {
		query += " AND source_lang = ? AND target_lang = ?"
		args = append(args, sourceLang, targetLang)
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache invalidate rows: %w", err)
	}
	return affected, nil
}

// InvalidateURL removes entries recorded against a page URL, optionally
// narrowed to a language pair. Empty langs clear every pair.
func (c *Cache) InvalidateURL(ctx context.Context, pageURL, sourceLang, targetLang string) (int64, error) {
	urlHash := textutil.URLHash(pageURL)
	if urlHash == "" {
		return 0, nil
	}
	query := "DELETE FROM translation_cache WHERE url_hash = ?"
	args := []any{urlHash}
	if sourceLang != "" && targetLang != "" {
		query += " AND source_lang = ? AND target_lang = ?"
		args = append(args, sourceLang, targetLang)
	}
	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cache invalidate url: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache invalidate url rows: %w", err)
	}
	return affected, nil
}

// Stats reports cache occupancy counters.
func (c *Cache) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	nowStr := c.now().UTC().Format(time.RFC3339Nano)
	err := c.db.QueryRowContext(ctx, `
		SELECT COUNT(1),
			COALESCE(SUM(CASE WHEN pinned = 0 AND expires_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(pinned), 0),
			COALESCE(SUM(hit_count), 0)
		FROM translation_cache`, nowStr,
	).Scan(&stats.Entries, &stats.Expired, &stats.Pinned, &stats.HitTotal)
	if err != nil {
		return stats, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

const entryColumns = "id, cache_key, content_hash, url_hash, page_url, source_lang, target_lang, translated_text, model, quality_score, hit_count, ttl_hours, pinned, created_at, last_hit_at, expires_at"

func (c *Cache) scanOne(ctx context.Context, query string, args ...any) (*Entry, error) {
	row := c.db.QueryRowContext(ctx, query, args...)
	var (
		entry      Entry
		pageURL    sql.NullString
		pinned     sql.NullInt64
		createdRaw string
		lastHitRaw sql.NullString
		expiresRaw string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.CacheKey,
		&entry.ContentHash,
		&entry.URLHash,
		&pageURL,
		&entry.SourceLang,
		&entry.TargetLang,
		&entry.TranslatedText,
		&entry.Model,
		&entry.QualityScore,
		&entry.HitCount,
		&entry.TTLHours,
		&pinned,
		&createdRaw,
		&lastHitRaw,
		&expiresRaw,
	); err != nil {
		return nil, err
	}
	entry.PageURL = pageURL.String
	if pinned.Valid {
		entry.Pinned = pinned.Int64 != 0
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if lastHitRaw.Valid {
		if lastHit, err := time.Parse(time.RFC3339Nano, lastHitRaw.String); err == nil {
			entry.LastHitAt = &lastHit
		}
	}
	if expires, err := time.Parse(time.RFC3339Nano, expiresRaw); err == nil {
		entry.ExpiresAt = expires
	}
	return &entry, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
