// Package app assembles the ingestion and feed components from config.
package app

import (
	"time"

	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/config"
	"opportunity-hunter/internal/domain"
	"opportunity-hunter/internal/metrics"
	"opportunity-hunter/internal/opportunity"
	"opportunity-hunter/internal/provider"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Deps are the shared handles every component is built from. Redis and
// Metrics may be nil.
type Deps struct {
	Tracer  trace.Tracer
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Redis   *redis.Client
	Repo    *opportunity.Repository
}

// EntryStore picks where cache entries live. Redis is used only when it is
// both configured and connected.
func EntryStore(cfg *config.Config, client *redis.Client) cache.EntryStore {
	if cfg.SourceCacheBackend == "redis" && client != nil {
		return cache.NewRedisEntryStore(client)
	}
	return cache.NewMemoryEntryStore()
}

func Adapters(cfg *config.Config, d Deps) []opportunity.SourceAdapter {
	pageDelay := time.Duration(cfg.PageDelayMs) * time.Millisecond
	return []opportunity.SourceAdapter{
		provider.NewGalxeAdapter(d.Tracer, d.Logger, provider.GalxeConfig{
			Endpoint:    cfg.GalxeEndpoint,
			PageSize:    cfg.GalxePageSize,
			PageDelay:   pageDelay,
			MaxAttempts: cfg.RateLimitMaxAttempts,
		}),
		provider.NewDefiLlamaAirdropsAdapter(d.Tracer, d.Logger, provider.DefiLlamaConfig{
			URL:         cfg.DefiLlamaAirdropsURL,
			MaxAttempts: cfg.RateLimitMaxAttempts,
		}),
		provider.NewCuratedAdapter(d.Tracer, d.Repo),
	}
}

func NewSyncer(cfg *config.Config, d Deps) *opportunity.Syncer {
	sourceCache := cache.NewSourceCache[[]domain.CandidateOpportunity](
		"sources",
		EntryStore(cfg, d.Redis),
		d.Logger,
		cache.WithRecorder[[]domain.CandidateOpportunity](d.Metrics),
	)
	return opportunity.NewSyncer(d.Tracer, d.Logger, d.Repo, sourceCache, d.Metrics,
		opportunity.SyncerConfig{
			MaxPages: cfg.SyncMaxPages,
			CacheTTL: time.Duration(cfg.SourceCacheTTLSecs) * time.Second,
		},
		Adapters(cfg, d)...,
	)
}

func NewFeed(cfg *config.Config, d Deps) *opportunity.Feed {
	walletCache := cache.NewSourceCache[[]string](
		"wallets",
		EntryStore(cfg, d.Redis),
		d.Logger,
		cache.WithRecorder[[]string](d.Metrics),
	)
	wallets := provider.NewBlockscoutWalletProfiler(d.Tracer, cfg.WalletBlockscoutURLs)
	return opportunity.NewFeed(d.Tracer, d.Logger, d.Repo, wallets, walletCache, d.Metrics,
		opportunity.FeedConfig{
			DefaultLimit: cfg.FeedPageSize,
			MaxLimit:     cfg.FeedMaxPageSize,
			SponsoredCap: cfg.FeedSponsoredCap,
			WalletTTL:    time.Duration(cfg.SourceCacheTTLSecs) * time.Second,
		},
	)
}
