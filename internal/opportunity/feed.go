package opportunity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/domain"
	"opportunity-hunter/internal/metrics"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// FeedStore returns the published population matching filter, in any order.
type FeedStore interface {
	ListFeed(ctx context.Context, filter domain.FeedFilter) ([]domain.Opportunity, error)
}

// WalletProfiler reports the chains a wallet has used.
type WalletProfiler interface {
	ActiveChains(ctx context.Context, wallet string) ([]string, error)
}

type FeedConfig struct {
	DefaultLimit int
	MaxLimit     int
	SponsoredCap int
	WalletTTL    time.Duration
}

// Feed answers ranked, paginated feed queries.
type Feed struct {
	store       FeedStore
	wallets     WalletProfiler
	walletCache *cache.SourceCache[[]string]
	tracer      trace.Tracer
	logger      *zap.Logger
	metrics     *metrics.Metrics
	cfg         FeedConfig
	now         func() time.Time
}

func NewFeed(
	tracer trace.Tracer,
	logger *zap.Logger,
	store FeedStore,
	wallets WalletProfiler,
	walletCache *cache.SourceCache[[]string],
	m *metrics.Metrics,
	cfg FeedConfig,
) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = domain.DefaultFeedPageSize
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = domain.MaxFeedPageSize
	}
	if cfg.SponsoredCap <= 0 {
		cfg.SponsoredCap = domain.SponsoredPerPage
	}
	if cfg.WalletTTL <= 0 {
		cfg.WalletTTL = 10 * time.Minute
	}
	if walletCache == nil {
		walletCache = cache.NewSourceCache[[]string]("wallets", nil, logger)
	}
	return &Feed{
		store:       store,
		wallets:     wallets,
		walletCache: walletCache,
		tracer:      tracer,
		logger:      logger.Named("feed"),
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Query returns one page. Every page is a slice of the single arrangement
// built by arrangeQuery, so following NextCursor reproduces it exactly.
func (f *Feed) Query(ctx context.Context, q domain.FeedQuery) (domain.FeedPage, error) {
	ctx, span := f.tracer.Start(ctx, "opportunity.feed.query")
	defer span.End()

	snapshot := f.now()
	offset, err := decodeCursor(q.Cursor)
	if err != nil {
		return domain.FeedPage{}, err
	}
	arranged, q, err := f.arrangeQuery(ctx, q)
	if err != nil {
		return domain.FeedPage{}, err
	}

	page := domain.FeedPage{Items: []domain.Opportunity{}, SnapshotTime: snapshot.Unix()}
	if offset < len(arranged) {
		end := min(offset+q.Limit, len(arranged))
		page.Items = arranged[offset:end]
	}
	if len(page.Items) == q.Limit {
		next := encodeCursor(offset + q.Limit)
		page.NextCursor = &next
	}

	f.metrics.RecordFeedQuery(string(q.Sort))
	span.SetAttributes(
		attribute.String("sort", string(q.Sort)),
		attribute.Int("offset", offset),
		attribute.Int("items", len(page.Items)),
	)
	return page, nil
}

// arrangeQuery validates q and returns the full arrangement along with the
// normalized query it was built from.
func (f *Feed) arrangeQuery(ctx context.Context, q domain.FeedQuery) ([]domain.Opportunity, domain.FeedQuery, error) {
	q, err := f.normalize(q)
	if err != nil {
		return nil, q, err
	}
	arranged, err := f.arrange(ctx, q)
	return arranged, q, err
}

func (f *Feed) normalize(q domain.FeedQuery) (domain.FeedQuery, error) {
	if q.Sort == "" {
		q.Sort = domain.SortRecommended
	}
	if !q.Sort.IsValid() {
		return q, fmt.Errorf("%w: unsupported sort %q", domain.ErrInvalidQuery, q.Sort)
	}
	for _, t := range q.Types {
		if !t.IsValid() {
			return q, fmt.Errorf("%w: unsupported type %q", domain.ErrInvalidQuery, t)
		}
	}
	if q.TrustMin < 0 || q.TrustMin > 100 {
		return q, fmt.Errorf("%w: trust_min must be between 0 and 100", domain.ErrInvalidQuery)
	}
	switch {
	case q.Limit <= 0:
		q.Limit = f.cfg.DefaultLimit
	case q.Limit > f.cfg.MaxLimit:
		q.Limit = f.cfg.MaxLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Wallet = strings.TrimSpace(q.Wallet)
	return q, nil
}

func (f *Feed) arrange(ctx context.Context, q domain.FeedQuery) ([]domain.Opportunity, error) {
	rows, err := f.store.ListFeed(ctx, domain.FeedFilter{
		Types:    q.Types,
		TrustMin: q.TrustMin,
		Search:   q.Search,
	})
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}

	population := make([]domain.Opportunity, 0, len(rows))
	for _, o := range rows {
		o.Trust = domain.Trust{Score: o.TrustScore, Level: domain.TrustLevelFor(o.TrustScore)}
		if o.IsRisky() && !q.ShowRisky {
			continue
		}
		population = append(population, o)
	}

	rank(population, q.Sort, f.activeChains(ctx, q))
	return arrangeSponsored(population, q.Limit, f.cfg.SponsoredCap), nil
}

// activeChains only feeds the recommended ranking. Lookup failures leave
// the ordering as if no wallet was given.
func (f *Feed) activeChains(ctx context.Context, q domain.FeedQuery) map[string]bool {
	if q.Wallet == "" || f.wallets == nil || q.Sort != domain.SortRecommended {
		return nil
	}
	wallet := strings.ToLower(q.Wallet)
	chains, err := f.walletCache.GetOrFetch(ctx, "wallet:"+wallet, f.cfg.WalletTTL, func(ctx context.Context) ([]string, error) {
		return f.wallets.ActiveChains(ctx, wallet)
	})
	if err != nil {
		f.logger.Debug("wallet profile unavailable", zap.String("wallet", wallet), zap.Error(err))
		return nil
	}
	active := make(map[string]bool, len(chains))
	for _, c := range chains {
		active[c] = true
	}
	return active
}
