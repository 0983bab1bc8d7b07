package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"opportunity-hunter/internal/app"
	"opportunity-hunter/internal/cache"
	"opportunity-hunter/internal/config"
	"opportunity-hunter/internal/db"
	"opportunity-hunter/internal/handler"
	"opportunity-hunter/internal/job"
	"opportunity-hunter/internal/metrics"
	"opportunity-hunter/internal/opportunity"
	"opportunity-hunter/pkg/logging"
	"opportunity-hunter/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	_ "opportunity-hunter/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	newLoggerFunc          = logging.New
	initTracerFunc         = tracing.InitTracer
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	newMetricsFunc         = metrics.New
	runMigrationsFunc      = func(ctx context.Context, repo *opportunity.Repository) error { return repo.RunMigrations(ctx) }
	startSyncJobFunc       = func(j *job.SyncJob, ctx context.Context) { go j.Start(ctx) }
	newRouterFunc          = gin.New
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Opportunity Hunter API
// @version         1.0
// @description     Aggregated crypto opportunity feed with multi-source ingestion.

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()

	logger, err := newLoggerFunc(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger = zap.NewExample()
		logger.Warn("falling back to example logger", zap.Error(err))
	}
	defer logger.Sync()
	for _, w := range cfg.Warnings {
		logger.Warn("config", zap.String("warning", w))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, tracer, err := initTracerFunc(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TracingSampleRatio,
	})
	if err != nil {
		logger.Fatal("failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("error shutting down tracer provider", zap.Error(err))
		}
	}()

	pool, err := initPostgresFunc(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer func() {
		if pool != nil {
			pool.Close()
		}
	}()

	repo := opportunity.NewRepository(pool, tracer)
	if err := runMigrationsFunc(ctx, repo); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	deps := app.Deps{Tracer: tracer, Logger: logger, Repo: repo}
	if cfg.SourceCacheBackend == "redis" {
		client, err := initRedisFunc(ctx, cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("redis unavailable, source cache falls back to memory", zap.Error(err))
		} else {
			deps.Redis = client
			defer client.Close()
		}
	}

	m, err := newMetricsFunc()
	if err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}
	deps.Metrics = m

	syncer := app.NewSyncer(cfg, deps)
	feed := app.NewFeed(cfg, deps)

	if cfg.SyncEnabled {
		syncJob := job.NewSyncJob(tracer, logger, syncer, repo,
			time.Duration(cfg.SyncIntervalSecs)*time.Second,
			time.Duration(cfg.SyncTimeoutSecs)*time.Second,
		)
		startSyncJobFunc(syncJob, ctx)
	} else {
		logger.Info("background sync disabled")
	}

	h := handler.New(tracer, logger, feed, syncer, repo, m, cfg.APIKey)

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("opportunity-hunter"))
	r.Use(handler.RequestLogger(logger))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := startHTTPServerFunc(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	logger.Info("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
