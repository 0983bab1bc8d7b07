package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	HTTPAddr    string
	APIKey      string

	LogLevel  string
	LogFormat string

	TracingEnabled     bool
	OTLPEndpoint       string
	TracingSampleRatio float64

	SyncEnabled      bool
	SyncIntervalSecs int
	SyncTimeoutSecs  int
	SyncMaxPages     int

	SourceCacheTTLSecs int
	SourceCacheBackend string

	GalxeEndpoint        string
	GalxePageSize        int
	DefiLlamaAirdropsURL string
	PageDelayMs          int
	RateLimitMaxAttempts int

	FeedPageSize     int
	FeedMaxPageSize  int
	FeedSponsoredCap int

	WalletBlockscoutURLs map[string]string

	// Warnings collects problems found while loading; they are logged once a
	// logger exists.
	Warnings []string
}

var defaultBlockscoutURLs = map[string]string{
	"ethereum": "https://eth.blockscout.com",
	"base":     "https://base.blockscout.com",
	"optimism": "https://optimism.blockscout.com",
	"arbitrum": "https://arbitrum.blockscout.com",
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:    strings.TrimSpace(os.Getenv("REDIS_URL")),
		APIKey:      strings.TrimSpace(os.Getenv("API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		cfg.warn("DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.APIKey == "" {
		cfg.warn("API_KEY not set, admin endpoints are unauthenticated")
	}

	cfg.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT")))
	if cfg.LogFormat != "console" {
		cfg.LogFormat = "json"
	}

	cfg.TracingEnabled = !strings.EqualFold(strings.TrimSpace(os.Getenv("TRACING_ENABLED")), "false")
	cfg.OTLPEndpoint = strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	cfg.TracingSampleRatio = 1
	if v := strings.TrimSpace(os.Getenv("TRACING_SAMPLE_RATIO")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n <= 1 {
			cfg.TracingSampleRatio = n
		} else {
			cfg.warn(fmt.Sprintf("invalid TRACING_SAMPLE_RATIO=%q, defaulting to 1", v))
		}
	}

	cfg.SyncEnabled = !strings.EqualFold(strings.TrimSpace(os.Getenv("SYNC_ENABLED")), "false")
	cfg.SyncIntervalSecs = cfg.positiveInt("SYNC_INTERVAL_SECS", 900)
	cfg.SyncTimeoutSecs = cfg.positiveInt("SYNC_TIMEOUT_SECS", 300)
	cfg.SyncMaxPages = cfg.positiveInt("SYNC_MAX_PAGES", 5)

	cfg.SourceCacheTTLSecs = cfg.positiveInt("SOURCE_CACHE_TTL_SECS", 600)
	cfg.SourceCacheBackend = strings.ToLower(strings.TrimSpace(os.Getenv("SOURCE_CACHE_BACKEND")))
	switch cfg.SourceCacheBackend {
	case "":
		cfg.SourceCacheBackend = "memory"
	case "memory", "redis":
	default:
		cfg.warn(fmt.Sprintf("unsupported SOURCE_CACHE_BACKEND=%q, defaulting to memory", cfg.SourceCacheBackend))
		cfg.SourceCacheBackend = "memory"
	}

	cfg.GalxeEndpoint = strings.TrimSpace(os.Getenv("GALXE_ENDPOINT"))
	cfg.GalxePageSize = cfg.positiveInt("GALXE_PAGE_SIZE", 50)
	cfg.DefiLlamaAirdropsURL = strings.TrimSpace(os.Getenv("DEFILLAMA_AIRDROPS_URL"))
	cfg.PageDelayMs = cfg.positiveInt("PAGE_DELAY_MS", 500)
	cfg.RateLimitMaxAttempts = cfg.positiveInt("RATE_LIMIT_MAX_ATTEMPTS", 4)

	cfg.FeedPageSize = cfg.positiveInt("FEED_PAGE_SIZE", 12)
	cfg.FeedMaxPageSize = cfg.positiveInt("FEED_MAX_PAGE_SIZE", 50)
	if cfg.FeedPageSize > cfg.FeedMaxPageSize {
		cfg.warn("FEED_PAGE_SIZE above FEED_MAX_PAGE_SIZE, clamping")
		cfg.FeedPageSize = cfg.FeedMaxPageSize
	}
	cfg.FeedSponsoredCap = cfg.positiveInt("FEED_SPONSORED_CAP", 2)

	cfg.WalletBlockscoutURLs = defaultBlockscoutURLs
	if v := strings.TrimSpace(os.Getenv("WALLET_BLOCKSCOUT_URLS")); v != "" {
		parsed, err := parseChainURLs(v)
		if err != nil {
			cfg.warn(fmt.Sprintf("invalid WALLET_BLOCKSCOUT_URLS: %v, using defaults", err))
		} else {
			cfg.WalletBlockscoutURLs = parsed
		}
	}

	return cfg
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func (c *Config) positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		c.warn(fmt.Sprintf("invalid %s=%q, defaulting to %d", key, v, def))
		return def
	}
	return n
}

// parseChainURLs reads "chain=url,chain=url".
func parseChainURLs(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		chain, url, ok := strings.Cut(pair, "=")
		chain, url = strings.TrimSpace(chain), strings.TrimSpace(url)
		if !ok || chain == "" || url == "" {
			return nil, fmt.Errorf("expected chain=url, got %q", pair)
		}
		out[chain] = url
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no chains configured")
	}
	return out, nil
}
