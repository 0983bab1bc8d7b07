// Command sync runs a single ingestion pass and prints the report as JSON.
// It suits cron deployments that run with SYNC_ENABLED=false on the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"opportunity-hunter/internal/app"
	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/config"
	"opportunity-hunter/internal/db"
	"opportunity-hunter/internal/domain"
	"opportunity-hunter/internal/opportunity"
	"opportunity-hunter/pkg/logging"
	"opportunity-hunter/pkg/tracing"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type syncRunner interface {
	Run(ctx context.Context) (domain.SyncReport, error)
}

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	newLoggerFunc    = logging.New
	initTracerFunc   = tracing.InitTracer
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	newSyncerFunc    = func(cfg *config.Config, d app.Deps) syncRunner { return app.NewSyncer(cfg, d) }
	exitFunc         = os.Exit
)

func main() {
	_ = loadEnvFunc()
	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger = zap.NewExample()
	}
	defer logger.Sync()
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	if err := run(context.Background(), cfg, logger, os.Stdout); err != nil {
		logger.Error("sync failed", zap.Error(err))
		exitFunc(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, out io.Writer) error {
	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer tp.Shutdown(context.Background())

	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}

	deps := app.Deps{Tracer: tracer, Logger: logger, Repo: opportunity.NewRepository(pool, tracer)}
	if cfg.SourceCacheBackend == "redis" {
		client, err := initRedisFunc(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("redis unavailable, using in-memory source cache", zap.Error(err))
		} else {
			deps.Redis = client
			defer client.Close()
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.SyncTimeoutSecs)*time.Second)
	defer cancel()

	report, err := newSyncerFunc(cfg, deps).Run(runCtx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	logger.Info("sync finished",
		zap.String("run_id", report.RunID),
		zap.Int("upserted", report.UpsertedCount),
		zap.Int("errors", len(report.Errors)),
		zap.Bool("incomplete", report.Incomplete),
	)
	return nil
}
