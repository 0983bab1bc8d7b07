package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"opportunity-hunter/internal/config"
	"opportunity-hunter/internal/job"
	"opportunity-hunter/internal/metrics"
	"opportunity-hunter/internal/opportunity"
	"opportunity-hunter/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type bootstrapRecord struct {
	migrated    bool
	jobStarted  bool
	redisCalled bool
	served      *http.Server
	listening   chan struct{}
}

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &bootstrapRecord{listening: make(chan struct{})}
	restore := stubServerDeps(rec, &config.Config{
		HTTPAddr:           ":0",
		SyncEnabled:        true,
		SyncIntervalSecs:   60,
		SyncTimeoutSecs:    30,
		SourceCacheBackend: "memory",
		FeedPageSize:       12,
		FeedMaxPageSize:    50,
		Warnings:           []string{"DATABASE_URL not set"},
	})
	defer restore()

	runMain(t)

	if !rec.migrated {
		t.Fatal("expected migrations to run")
	}
	if !rec.jobStarted {
		t.Fatal("expected sync job to start")
	}
	if rec.redisCalled {
		t.Fatal("redis must not be dialed with the memory backend")
	}
	if rec.served == nil || rec.served.Addr != ":0" {
		t.Fatalf("expected server on configured addr, got %+v", rec.served)
	}
}

func TestMainRedisBackendAndSyncDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &bootstrapRecord{listening: make(chan struct{})}
	restore := stubServerDeps(rec, &config.Config{
		HTTPAddr:           ":0",
		SyncEnabled:        false,
		SourceCacheBackend: "redis",
		RedisURL:           "localhost:6379",
	})
	defer restore()

	runMain(t)

	if !rec.redisCalled {
		t.Fatal("expected redis to be dialed for the redis backend")
	}
	if rec.jobStarted {
		t.Fatal("sync job must not start when disabled")
	}
}

func runMain(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubServerDeps(rec *bootstrapRecord, cfg *config.Config) func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origNewLogger := newLoggerFunc
	origInitTracer := initTracerFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origNewMetrics := newMetricsFunc
	origRunMigrations := runMigrationsFunc
	origStartSyncJob := startSyncJobFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config { return cfg }
	newLoggerFunc = func(string, string) (*zap.Logger, error) { return zap.NewNop(), nil }
	initTracerFunc = func(context.Context, tracing.Config) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	initPostgresFunc = func(context.Context, string, *zap.Logger) (*pgxpool.Pool, error) { return nil, nil }
	initRedisFunc = func(context.Context, string, *zap.Logger) (*redis.Client, error) {
		rec.redisCalled = true
		return redis.NewClient(&redis.Options{Addr: "localhost:6379"}), nil
	}
	newMetricsFunc = metrics.New
	runMigrationsFunc = func(context.Context, *opportunity.Repository) error {
		rec.migrated = true
		return nil
	}
	startSyncJobFunc = func(*job.SyncJob, context.Context) { rec.jobStarted = true }
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) { <-rec.listening }
	startHTTPServerFunc = func(srv *http.Server) error {
		rec.served = srv
		close(rec.listening)
		return http.ErrServerClosed
	}
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		newLoggerFunc = origNewLogger
		initTracerFunc = origInitTracer
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		newMetricsFunc = origNewMetrics
		runMigrationsFunc = origRunMigrations
		startSyncJobFunc = origStartSyncJob
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
