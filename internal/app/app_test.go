package app

import (
	"testing"

	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/config"
	"opportunity-hunter/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

func TestEntryStoreSelection(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if _, ok := EntryStore(&config.Config{SourceCacheBackend: "redis"}, client).(*cache.RedisEntryStore); !ok {
		t.Fatal("expected redis store when configured and connected")
	}
	if _, ok := EntryStore(&config.Config{SourceCacheBackend: "redis"}, nil).(*cache.MemoryEntryStore); !ok {
		t.Fatal("expected memory fallback without a client")
	}
	if _, ok := EntryStore(&config.Config{SourceCacheBackend: "memory"}, client).(*cache.MemoryEntryStore); !ok {
		t.Fatal("expected memory store when configured")
	}
}

func TestAdaptersCoverEverySource(t *testing.T) {
	d := Deps{Tracer: trace.NewNoopTracerProvider().Tracer("test")}
	adapters := Adapters(&config.Config{PageDelayMs: 10, RateLimitMaxAttempts: 2}, d)

	want := []string{domain.SourceGalxe, domain.SourceDefiLlama, domain.SourceCurated}
	if len(adapters) != len(want) {
		t.Fatalf("expected %d adapters, got %d", len(want), len(adapters))
	}
	for i, a := range adapters {
		if a.Name() != want[i] {
			t.Fatalf("adapter %d: expected %s, got %s", i, want[i], a.Name())
		}
	}
}

func TestBuildersReturnComponents(t *testing.T) {
	cfg := &config.Config{
		SyncMaxPages:       2,
		SourceCacheTTLSecs: 60,
		SourceCacheBackend: "memory",
		FeedPageSize:       12,
		FeedMaxPageSize:    50,
		FeedSponsoredCap:   2,
	}
	d := Deps{Tracer: trace.NewNoopTracerProvider().Tracer("test")}
	if NewSyncer(cfg, d) == nil {
		t.Fatal("expected syncer")
	}
	if NewFeed(cfg, d) == nil {
		t.Fatal("expected feed")
	}
}
