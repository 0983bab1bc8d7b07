package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Cache events reported to a Recorder.
const (
	EventHit   = "hit"
	EventMiss  = "miss"
	EventStale = "stale"
	EventError = "error"
)

// Entry is one cached fetch result.
type Entry[T any] struct {
	Data        T     `json:"data"`
	FetchedAtMs int64 `json:"fetched_at_ms"`
}

// EntryStore persists encoded entries. Entries never expire in the store;
// freshness is decided by the reader's TTL.
type EntryStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, raw []byte) error
}

type Recorder interface {
	RecordCacheEvent(cache, event string)
}

// SourceCache fronts a slow fetch with a TTL cache that prefers stale data
// over an error.
type SourceCache[T any] struct {
	name     string
	store    EntryStore
	group    singleflight.Group
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

type Option[T any] func(*SourceCache[T])

func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *SourceCache[T]) { c.now = now }
}

func WithRecorder[T any](r Recorder) Option[T] {
	return func(c *SourceCache[T]) { c.recorder = r }
}

func NewSourceCache[T any](name string, store EntryStore, logger *zap.Logger, opts ...Option[T]) *SourceCache[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryEntryStore()
	}
	c := &SourceCache[T]{
		name:   name,
		store:  store,
		logger: logger.Named("source-cache").With(zap.String("cache", name)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the cached value for key while it is younger than ttl.
// Otherwise fetch is called once per key, however many callers are waiting.
// A failed fetch falls back to the last stored value, expired or not, with a
// nil error; with nothing stored the fetch error is returned.
func (c *SourceCache[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch func(ctx context.Context) (T, error)) (T, error) {
	entry, found := c.load(ctx, key)
	if found && c.fresh(entry, ttl) {
		c.record(EventHit)
		return entry.Data, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// another caller may have refreshed the key while we waited
		if latest, ok := c.load(ctx, key); ok {
			entry, found = latest, true
			if c.fresh(latest, ttl) {
				c.record(EventHit)
				return latest.Data, nil
			}
		}

		data, err := fetch(ctx)
		if err != nil {
			if found {
				c.record(EventStale)
				c.logger.Warn("fetch failed, serving stale entry",
					zap.String("key", key),
					zap.Int64("fetched_at_ms", entry.FetchedAtMs),
					zap.Error(err),
				)
				return entry.Data, nil
			}
			c.record(EventError)
			return nil, err
		}

		c.record(EventMiss)
		c.save(ctx, key, Entry[T]{Data: data, FetchedAtMs: c.now().UnixMilli()})
		return data, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Peek returns the stored entry without checking freshness.
func (c *SourceCache[T]) Peek(ctx context.Context, key string) (Entry[T], bool) {
	return c.load(ctx, key)
}

func (c *SourceCache[T]) fresh(e Entry[T], ttl time.Duration) bool {
	return c.now().UnixMilli()-e.FetchedAtMs < ttl.Milliseconds()
}

func (c *SourceCache[T]) load(ctx context.Context, key string) (Entry[T], bool) {
	raw, ok, err := c.store.Load(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed, treating as miss", zap.String("key", key), zap.Error(err))
		return Entry[T]{}, false
	}
	if !ok {
		return Entry[T]{}, false
	}
	var e Entry[T]
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("cache entry undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		return Entry[T]{}, false
	}
	return e, true
}

func (c *SourceCache[T]) save(ctx context.Context, key string, e Entry[T]) {
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("cache entry not encodable", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Save(ctx, key, raw); err != nil {
		c.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *SourceCache[T]) record(event string) {
	if c.recorder != nil {
		c.recorder.RecordCacheEvent(c.name, event)
	}
}

// MemoryEntryStore keeps entries for the life of the process.
type MemoryEntryStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

func NewMemoryEntryStore() *MemoryEntryStore {
	return &MemoryEntryStore{entries: make(map[string][]byte)}
}

func (s *MemoryEntryStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.entries[key]
	return raw, ok, nil
}

func (s *MemoryEntryStore) Save(ctx context.Context, key string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append([]byte(nil), raw...)
	return nil
}

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

const redisKeyPrefix = "source-cache:"

// RedisEntryStore shares entries between processes. Keys carry no expiry so
// a stale value survives long provider outages.
type RedisEntryStore struct {
	client redisKV
}

func NewRedisEntryStore(client redisKV) *RedisEntryStore {
	return &RedisEntryStore{client: client}
}

func (s *RedisEntryStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return raw, true, nil
}

func (s *RedisEntryStore) Save(ctx context.Context, key string, raw []byte) error {
	if err := s.client.Set(ctx, redisKeyPrefix+key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}
