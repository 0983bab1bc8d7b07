package opportunity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/domain"
	"opportunity-hunter/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SourceAdapter turns one provider into normalized candidates. Failures are
// reported in the result, never returned or thrown.
type SourceAdapter interface {
	Name() string
	Fetch(ctx context.Context, maxPages int) domain.FetchResult
}

// Store persists merged candidates idempotently on (source, source_ref).
type Store interface {
	UpsertOpportunity(ctx context.Context, c domain.CandidateOpportunity, syncedAt time.Time) (inserted bool, err error)
}

type SyncerConfig struct {
	MaxPages   int
	CacheTTL   time.Duration
	Priorities map[string]int
}

// Syncer runs one fetch, merge and persist pass over every adapter.
// Runs never overlap; a second caller gets ErrSyncInProgress.
type Syncer struct {
	adapters []SourceAdapter
	store    Store
	cache    *cache.SourceCache[[]domain.CandidateOpportunity]
	tracer   trace.Tracer
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cfg      SyncerConfig

	mu       sync.Mutex
	now      func() time.Time
	newRunID func() string
}

func NewSyncer(
	tracer trace.Tracer,
	logger *zap.Logger,
	store Store,
	sourceCache *cache.SourceCache[[]domain.CandidateOpportunity],
	m *metrics.Metrics,
	cfg SyncerConfig,
	adapters ...SourceAdapter,
) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sourceCache == nil {
		sourceCache = cache.NewSourceCache[[]domain.CandidateOpportunity]("sources", nil, logger)
	}
	if cfg.Priorities == nil {
		cfg.Priorities = DefaultPriorities
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &Syncer{
		adapters: adapters,
		store:    store,
		cache:    sourceCache,
		tracer:   tracer,
		logger:   logger.Named("sync"),
		metrics:  m,
		cfg:      cfg,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
}

// adapterOutcome is the tagged result of one adapter task.
type adapterOutcome struct {
	source     string
	candidates []domain.CandidateOpportunity
	err        error
	failed     bool
	staleAge   time.Duration
}

// Run executes one sync pass. Partial failures end up in the report; only a
// missing adapter set or an overlapping run is returned as an error.
func (s *Syncer) Run(ctx context.Context) (domain.SyncReport, error) {
	if len(s.adapters) == 0 {
		return domain.SyncReport{}, domain.ErrNoAdapters
	}
	if !s.mu.TryLock() {
		return domain.SyncReport{}, domain.ErrSyncInProgress
	}
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "opportunity.sync.run")
	defer span.End()

	started := s.now()
	report := domain.SyncReport{
		RunID:           s.newRunID(),
		StartedAt:       started.UTC(),
		PerSourceCounts: make(map[string]int, len(s.adapters)),
		Errors:          []domain.SyncError{},
	}

	outcomes := s.fetchAll(ctx)

	bySource := make(map[string][]domain.CandidateOpportunity, len(outcomes))
	for _, o := range outcomes {
		if o.err != nil {
			report.Errors = append(report.Errors, domain.SyncError{
				Stage:      domain.StageFetch,
				Source:     o.source,
				Message:    o.err.Error(),
				StaleAgeMs: o.staleAge.Milliseconds(),
			})
			s.metrics.RecordFetchError(o.source)
			s.logger.Warn("source fetch failed",
				zap.String("source", o.source),
				zap.Bool("stale_or_partial", !o.failed),
				zap.Duration("stale_age", o.staleAge),
				zap.Error(o.err),
			)
		}
		if o.failed {
			continue
		}
		report.PerSourceCounts[o.source] = len(o.candidates)
		bySource[o.source] = o.candidates
	}

	merged, stats := MergeWithStats(BatchesFor(s.cfg.Priorities, bySource))
	report.MergedCount = len(merged)

	syncedAt := s.now().UTC()
	for _, c := range merged {
		if ctx.Err() != nil {
			report.Incomplete = true
			break
		}
		inserted, err := s.store.UpsertOpportunity(ctx, c, syncedAt)
		if err != nil {
			perr := &domain.PersistenceError{Source: c.Source, SourceRef: c.SourceRef, Err: err}
			report.Errors = append(report.Errors, domain.SyncError{
				Stage:   domain.StagePersist,
				Source:  c.Source,
				Ref:     c.SourceRef,
				Message: perr.Error(),
			})
			s.metrics.RecordUpsert(c.Source, "failed")
			s.logger.Warn("upsert failed", zap.String("dedupe_key", c.DedupeKey), zap.Error(err))
			continue
		}
		report.UpsertedCount++
		if inserted {
			report.InsertedCount++
			s.metrics.RecordUpsert(c.Source, "inserted")
		} else {
			s.metrics.RecordUpsert(c.Source, "updated")
		}
	}
	if ctx.Err() != nil {
		report.Incomplete = true
	}

	duration := s.now().Sub(started)
	report.DurationMs = duration.Milliseconds()

	outcome := "ok"
	switch {
	case report.Incomplete:
		outcome = "incomplete"
	case len(report.Errors) > 0:
		outcome = "partial"
	}
	s.metrics.RecordSync(duration, outcome)

	span.SetAttributes(
		attribute.String("run_id", report.RunID),
		attribute.Int("merged", report.MergedCount),
		attribute.Int("upserted", report.UpsertedCount),
		attribute.Int("errors", len(report.Errors)),
		attribute.Bool("incomplete", report.Incomplete),
	)
	s.logger.Info("sync run finished",
		zap.String("run_id", report.RunID),
		zap.String("outcome", outcome),
		zap.Int("merged", report.MergedCount),
		zap.Int("upserted", report.UpsertedCount),
		zap.Int("inserted", report.InsertedCount),
		zap.Any("per_source", report.PerSourceCounts),
		zap.Any("overwrites", stats.Overwrites),
		zap.Any("duplicates", stats.Duplicates),
		zap.Int("errors", len(report.Errors)),
		zap.Int64("duration_ms", report.DurationMs),
	)
	return report, nil
}

func (s *Syncer) fetchAll(ctx context.Context) []adapterOutcome {
	outcomes := make([]adapterOutcome, len(s.adapters))
	var g errgroup.Group
	for i, a := range s.adapters {
		g.Go(func() error {
			outcomes[i] = s.fetchSource(ctx, a)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// fetchSource goes through the source cache. A fetch with errors and no
// candidates counts as failed, so the cache can fall back to its last value.
func (s *Syncer) fetchSource(ctx context.Context, a SourceAdapter) (out adapterOutcome) {
	out.source = a.Name()
	ctx, span := s.tracer.Start(ctx, "opportunity.sync.fetch-source", trace.WithAttributes(attribute.String("source", out.source)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out.candidates = nil
			out.failed = true
			out.err = fmt.Errorf("adapter panicked: %v", r)
		}
	}()

	var (
		fetchErrs   []error
		fetchFailed bool
	)
	candidates, err := s.cache.GetOrFetch(ctx, out.source, s.cfg.CacheTTL, func(ctx context.Context) ([]domain.CandidateOpportunity, error) {
		res := a.Fetch(ctx, s.cfg.MaxPages)
		fetchErrs = res.Errors
		if len(res.Errors) > 0 && len(res.Candidates) == 0 {
			fetchFailed = true
			return nil, errors.Join(res.Errors...)
		}
		return res.Candidates, nil
	})
	if len(fetchErrs) > 0 {
		out.err = errors.Join(fetchErrs...)
	}
	if err != nil {
		out.failed = true
		if out.err == nil {
			out.err = err
		}
		return out
	}
	out.candidates = candidates
	if fetchFailed {
		// the cache answered with its last value
		if entry, ok := s.cache.Peek(ctx, out.source); ok {
			out.staleAge = max(s.now().Sub(time.UnixMilli(entry.FetchedAtMs)), 0)
		}
	}
	return out
}
