package suggestion

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/myrjola/vitalplan/internal/errors"
	"github.com/myrjola/vitalplan/internal/metrics"
	"github.com/myrjola/vitalplan/internal/sqlite"
	"github.com/myrjola/vitalplan/internal/training"
	goredis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Cache.Get for absent or expired keys.
var ErrCacheMiss = errors.NewSentinel("cache miss")

// Cache is an advisory key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

const expiryFormat = "2006-01-02T15:04:05.000Z"

// SQLiteCache stores entries in the cache_entries table. Expired entries are ignored on read and replaced on
// write.
type SQLiteCache struct {
	db  *sqlite.Database
	now func() time.Time
}

func NewSQLiteCache(db *sqlite.Database) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := c.db.ReadOnly.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`,
		key, c.now().UTC().Format(expiryFormat)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("query cache entry: %w", err)
	}
	return value, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := c.now().Add(ttl).UTC().Format(expiryFormat)
	if _, err := c.db.ReadWrite.ExecContext(ctx, `INSERT INTO cache_entries (key, value, expires_at)
VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt); err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if _, err := c.db.ReadWrite.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// RedisCache stores entries in Redis with native expiry.
type RedisCache struct {
	rdb *goredis.Client
}

// NewRedisCache connects to the Redis server at addr and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, addr string) (*RedisCache, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping", slog.String("addr", addr))
	}
	return &RedisCache{rdb: rdb}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return value, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func cacheKey(userID int, tomorrow time.Weekday) string {
	return fmt.Sprintf("suggestion:%d:%s", userID, tomorrow)
}

// cacheEntry pairs a suggestion with the fingerprint of the analysis it was generated from.
type cacheEntry struct {
	Fingerprint string     `json:"fingerprint"`
	Suggestion  Suggestion `json:"suggestion"`
}

// fingerprint summarises every analysis field the tiers read. Any change to the weekly plan that could change the
// suggestion changes the fingerprint.
func fingerprint(a training.Analysis) string {
	return fmt.Sprintf("%s|%d|%d|%v|%v", a.Tomorrow, a.TomorrowExerciseCount, a.TotalWorkouts, a.CompletedDays,
		a.TrainedMuscleGroups)
}

// readCache reports a usable cached suggestion for analysis. Read and decode errors count as misses, and so do
// entries generated from a different analysis.
func (p *Pipeline) readCache(ctx context.Context, key string, analysis training.Analysis) (Suggestion, bool) {
	if p.cache == nil {
		return Suggestion{}, false
	}
	raw, err := p.cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		metrics.RecordCacheLookup("miss")
		return Suggestion{}, false
	}
	var entry cacheEntry
	if err == nil {
		err = json.Unmarshal(raw, &entry)
	}
	if err != nil {
		metrics.RecordCacheLookup("error")
		p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to read cached suggestion",
			slog.String("key", key), errors.SlogError(err))
		return Suggestion{}, false
	}
	if entry.Fingerprint != fingerprint(analysis) || (!shouldTrainTomorrow(analysis) && !entry.Suggestion.IsRest()) {
		metrics.RecordCacheLookup("stale")
		p.logger.LogAttrs(ctx, slog.LevelDebug, "cached suggestion is stale", slog.String("key", key))
		return Suggestion{}, false
	}
	metrics.RecordCacheLookup("hit")
	return entry.Suggestion, true
}

func (p *Pipeline) writeCache(ctx context.Context, key string, analysis training.Analysis, s Suggestion) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(cacheEntry{Fingerprint: fingerprint(analysis), Suggestion: s})
	if err == nil {
		err = p.cache.Set(ctx, key, raw, p.cfg.CacheTTL)
	}
	if err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to cache suggestion",
			slog.String("key", key), errors.SlogError(err))
	}
}

func (p *Pipeline) invalidateCache(ctx context.Context, key string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Delete(ctx, key); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "failed to invalidate cached suggestion",
			slog.String("key", key), errors.SlogError(err))
	}
}
