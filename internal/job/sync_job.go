package job

import (
	"context"
	"errors"
	"time"

	"opportunity-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SyncRunner interface {
	Run(ctx context.Context) (domain.SyncReport, error)
}

type Expirer interface {
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

// SyncJob runs the orchestrator on a fixed interval, each run bounded by
// timeout, and expires ended opportunities afterwards.
type SyncJob struct {
	tracer       trace.Tracer
	logger       *zap.Logger
	runner       SyncRunner
	expirer      Expirer
	pollInterval time.Duration
	timeout      time.Duration
	now          func() time.Time
}

func NewSyncJob(tracer trace.Tracer, logger *zap.Logger, runner SyncRunner, expirer Expirer, pollInterval, timeout time.Duration) *SyncJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = 15 * time.Minute
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SyncJob{
		tracer:       tracer,
		logger:       logger.Named("sync-job"),
		runner:       runner,
		expirer:      expirer,
		pollInterval: pollInterval,
		timeout:      timeout,
		now:          time.Now,
	}
}

func (j *SyncJob) Start(ctx context.Context) {
	if j.runner == nil {
		j.logger.Info("sync job disabled: no runner")
		<-ctx.Done()
		return
	}

	j.RunOnce(ctx)
	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs one bounded sync and expiry pass.
func (j *SyncJob) RunOnce(ctx context.Context) (domain.SyncReport, error) {
	ctx, span := j.tracer.Start(ctx, "sync-job.run-once")
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	report, err := j.runner.Run(runCtx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		j.logger.Info("previous sync still running, skipping tick")
		return report, err
	case err != nil:
		j.logger.Error("sync cycle failed", zap.Error(err))
		return report, err
	}
	if report.Incomplete {
		j.logger.Warn("sync cycle cut short by deadline",
			zap.String("run_id", report.RunID),
			zap.Duration("timeout", j.timeout),
			zap.Int("upserted", report.UpsertedCount),
		)
	}

	if j.expirer != nil && ctx.Err() == nil {
		expired, err := j.expirer.ExpireEnded(ctx, j.now())
		if err != nil {
			j.logger.Warn("expire ended opportunities failed", zap.Error(err))
		} else if expired > 0 {
			j.logger.Info("expired ended opportunities", zap.Int64("count", expired))
		}
	}
	return report, nil
}
