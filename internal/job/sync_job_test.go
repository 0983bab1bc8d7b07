package job

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"opportunity-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

func TestSyncJobRunsAtLeastOnce(t *testing.T) {
	var calls int32
	runner := &syncRunnerTestStub{calls: &calls}
	job := NewSyncJob(trace.NewNoopTracerProvider().Tracer("test"), nil, runner, nil, 50*time.Millisecond, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&calls) == 0 {
		t.Fatal("expected at least one sync run")
	}
}

func TestSyncJobAppliesDeadlineAndExpires(t *testing.T) {
	var calls int32
	runner := &syncRunnerTestStub{calls: &calls}
	expirer := &expirerStub{}
	job := NewSyncJob(trace.NewNoopTracerProvider().Tracer("test"), nil, runner, expirer, time.Hour, 2*time.Second)
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !runner.hadDeadline {
		t.Fatal("expected run context to carry a deadline")
	}
	if !expirer.at.Equal(fixed) {
		t.Fatalf("expected expiry at %v, got %v", fixed, expirer.at)
	}
}

func TestSyncJobSkipsExpiryOnFailure(t *testing.T) {
	var calls int32
	runner := &syncRunnerTestStub{calls: &calls, err: domain.ErrSyncInProgress}
	expirer := &expirerStub{}
	job := NewSyncJob(trace.NewNoopTracerProvider().Tracer("test"), nil, runner, expirer, time.Hour, time.Second)

	if _, err := job.RunOnce(context.Background()); !errors.Is(err, domain.ErrSyncInProgress) {
		t.Fatalf("expected ErrSyncInProgress, got %v", err)
	}
	if !expirer.at.IsZero() {
		t.Fatal("expected expiry to be skipped")
	}
}

type syncRunnerTestStub struct {
	calls       *int32
	err         error
	hadDeadline bool
}

func (s *syncRunnerTestStub) Run(ctx context.Context) (domain.SyncReport, error) {
	atomic.AddInt32(s.calls, 1)
	_, s.hadDeadline = ctx.Deadline()
	if s.err != nil {
		return domain.SyncReport{}, s.err
	}
	return domain.SyncReport{RunID: "test", UpsertedCount: 1}, nil
}

type expirerStub struct {
	at time.Time
}

func (e *expirerStub) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	e.at = now
	return 1, nil
}
