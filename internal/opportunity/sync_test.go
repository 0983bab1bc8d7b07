package opportunity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type adapterStub struct {
	name    string
	mu      sync.Mutex
	result  domain.FetchResult
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (a *adapterStub) Name() string { return a.name }

func (a *adapterStub) Fetch(ctx context.Context, maxPages int) domain.FetchResult {
	atomic.AddInt32(&a.calls, 1)
	if a.started != nil {
		close(a.started)
	}
	if a.release != nil {
		<-a.release
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

func (a *adapterStub) set(result domain.FetchResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.result = result
}

type storeStub struct {
	mu     sync.Mutex
	rows   map[string]domain.CandidateOpportunity
	failOn map[string]bool
	synced map[string]time.Time
}

func newStoreStub() *storeStub {
	return &storeStub{
		rows:   map[string]domain.CandidateOpportunity{},
		failOn: map[string]bool{},
		synced: map[string]time.Time{},
	}
}

func (s *storeStub) UpsertOpportunity(ctx context.Context, c domain.CandidateOpportunity, syncedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.DedupeKey(c.Source, c.SourceRef)
	if s.failOn[key] {
		return false, errors.New("constraint violation")
	}
	_, existed := s.rows[key]
	s.rows[key] = c
	s.synced[key] = syncedAt
	return !existed, nil
}

func candidates(source string, n int) []domain.CandidateOpportunity {
	out := make([]domain.CandidateOpportunity, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidate(source, fmt.Sprintf("%s-proto-%d", source, i), "ethereum"))
	}
	return out
}

func newTestSyncer(store Store, sourceCache *cache.SourceCache[[]domain.CandidateOpportunity], adapters ...SourceAdapter) *Syncer {
	s := NewSyncer(trace.NewNoopTracerProvider().Tracer("test"), nil, store, sourceCache, nil, SyncerConfig{MaxPages: 2, CacheTTL: time.Minute}, adapters...)
	s.newRunID = func() string { return "run-1" }
	return s
}

func TestRunIsolatesFailingAdapter(t *testing.T) {
	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{Candidates: candidates("galxe", 5), PagesFetched: 1}}
	llama := &adapterStub{name: domain.SourceDefiLlama, result: domain.FetchResult{Errors: []error{
		&domain.ProviderTransportError{Source: domain.SourceDefiLlama, Page: 1, StatusCode: 502, Err: errors.New("bad gateway")},
	}}}
	curated := &adapterStub{name: domain.SourceCurated, result: domain.FetchResult{Candidates: candidates("curated", 2), PagesFetched: 1}}
	store := newStoreStub()

	report, err := newTestSyncer(store, nil, galxe, llama, curated).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.UpsertedCount != 7 || report.InsertedCount != 7 {
		t.Fatalf("expected 7 upserts from healthy sources, got %+v", report)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("expected exactly one error entry, got %+v", report.Errors)
	}
	if report.Errors[0].Stage != domain.StageFetch || report.Errors[0].Source != domain.SourceDefiLlama {
		t.Fatalf("unexpected error entry: %+v", report.Errors[0])
	}
	if report.PerSourceCounts[domain.SourceGalxe] != 5 || report.PerSourceCounts[domain.SourceCurated] != 2 {
		t.Fatalf("unexpected per source counts: %v", report.PerSourceCounts)
	}
	if _, ok := report.PerSourceCounts[domain.SourceDefiLlama]; ok {
		t.Fatal("failed source should not report a candidate count")
	}
	if report.RunID != "run-1" || report.Incomplete {
		t.Fatalf("unexpected report header: %+v", report)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{Candidates: candidates("galxe", 4), PagesFetched: 1}}
	store := newStoreStub()
	s := newTestSyncer(store, nil, galxe)

	first, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.UpsertedCount != second.UpsertedCount {
		t.Fatalf("expected equal upsert counts, got %d and %d", first.UpsertedCount, second.UpsertedCount)
	}
	if second.InsertedCount != 0 || len(store.rows) != 4 {
		t.Fatalf("expected no new rows on second run, inserted=%d rows=%d", second.InsertedCount, len(store.rows))
	}
	if atomic.LoadInt32(&galxe.calls) != 1 {
		t.Fatalf("expected second run to be served from cache, got %d fetches", galxe.calls)
	}
}

func TestRunAppliesMergePriority(t *testing.T) {
	shared := candidate(domain.SourceGalxe, "Linea", "linea")
	better := candidate(domain.SourceDefiLlama, "Linea", "linea")
	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{Candidates: []domain.CandidateOpportunity{shared}}}
	llama := &adapterStub{name: domain.SourceDefiLlama, result: domain.FetchResult{Candidates: []domain.CandidateOpportunity{better}}}
	store := newStoreStub()

	report, err := newTestSyncer(store, nil, llama, galxe).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.MergedCount != 1 || report.UpsertedCount != 1 {
		t.Fatalf("expected one merged record, got %+v", report)
	}
	if _, ok := store.rows[better.DedupeKey]; !ok {
		t.Fatalf("expected defillama record to be persisted, got %v", store.rows)
	}
}

func TestRunIsolatesPersistenceFailures(t *testing.T) {
	items := candidates("galxe", 3)
	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{Candidates: items}}
	store := newStoreStub()
	store.failOn[items[1].DedupeKey] = true

	report, err := newTestSyncer(store, nil, galxe).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.UpsertedCount != 2 {
		t.Fatalf("expected remaining records to persist, got %d", report.UpsertedCount)
	}
	if len(report.Errors) != 1 || report.Errors[0].Stage != domain.StagePersist || report.Errors[0].Ref != items[1].SourceRef {
		t.Fatalf("unexpected errors: %+v", report.Errors)
	}
}

func TestRunServesStaleCandidatesWhenProviderFails(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	sourceCache := cache.NewSourceCache[[]domain.CandidateOpportunity]("sources", nil, nil,
		cache.WithClock[[]domain.CandidateOpportunity](clock))

	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{Candidates: candidates("galxe", 3)}}
	s := newTestSyncer(newStoreStub(), sourceCache, galxe)
	s.now = clock
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now = now.Add(time.Hour)
	galxe.set(domain.FetchResult{Errors: []error{&domain.ProviderRateLimitedError{Source: domain.SourceGalxe, Page: 1, Attempts: 4}}})

	report, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.UpsertedCount != 3 {
		t.Fatalf("expected stale candidates to be persisted, got %d", report.UpsertedCount)
	}
	if len(report.Errors) != 1 || report.Errors[0].Stage != domain.StageFetch {
		t.Fatalf("expected the fetch failure to be reported, got %+v", report.Errors)
	}
	if report.Errors[0].StaleAgeMs != time.Hour.Milliseconds() {
		t.Fatalf("expected stale age of one hour, got %dms", report.Errors[0].StaleAgeMs)
	}
}

func TestRunKeepsPartialResults(t *testing.T) {
	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{
		Candidates:   candidates("galxe", 2),
		PagesFetched: 1,
		Errors:       []error{&domain.ProviderFormatError{Source: domain.SourceGalxe, Page: 2, Err: errors.New("missing data.campaigns")}},
	}}

	report, err := newTestSyncer(newStoreStub(), nil, galxe).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.UpsertedCount != 2 || len(report.Errors) != 1 {
		t.Fatalf("expected partial results plus one error, got %+v", report)
	}
	if report.Errors[0].StaleAgeMs != 0 {
		t.Fatalf("fresh partial results are not stale, got %dms", report.Errors[0].StaleAgeMs)
	}
}

func TestRunWithoutAdapters(t *testing.T) {
	if _, err := newTestSyncer(newStoreStub(), nil).Run(context.Background()); !errors.Is(err, domain.ErrNoAdapters) {
		t.Fatalf("expected ErrNoAdapters, got %v", err)
	}
}

func TestRunRejectsOverlappingRun(t *testing.T) {
	galxe := &adapterStub{
		name:    domain.SourceGalxe,
		result:  domain.FetchResult{Candidates: candidates("galxe", 1)},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestSyncer(newStoreStub(), nil, galxe)

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background())
		done <- err
	}()
	<-galxe.started

	if _, err := s.Run(context.Background()); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	close(galxe.release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error from first run: %v", err)
	}
}

func TestRunMarksDeadlineAsIncomplete(t *testing.T) {
	galxe := &adapterStub{name: domain.SourceGalxe, result: domain.FetchResult{Candidates: candidates("galxe", 3)}}
	store := newStoreStub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := newTestSyncer(store, nil, galxe).Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Incomplete {
		t.Fatal("expected incomplete report")
	}
	if report.UpsertedCount != 0 || len(store.rows) != 0 {
		t.Fatalf("expected nothing persisted after cancellation, got %d", report.UpsertedCount)
	}
}
