package handler

import (
	"context"

	"opportunity-hunter/internal/domain"
	"opportunity-hunter/internal/metrics"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type FeedQuerier interface {
	Query(ctx context.Context, q domain.FeedQuery) (domain.FeedPage, error)
}

type SyncRunner interface {
	Run(ctx context.Context) (domain.SyncReport, error)
}

type CuratedStore interface {
	CreateCurated(ctx context.Context, c domain.CandidateOpportunity) (domain.Opportunity, error)
}

type Handler struct {
	tracer  trace.Tracer
	logger  *zap.Logger
	feed    FeedQuerier
	syncer  SyncRunner
	curated CuratedStore
	metrics *metrics.Metrics
	apiKey  string
}

func New(tracer trace.Tracer, logger *zap.Logger, feed FeedQuerier, syncer SyncRunner, curated CuratedStore, m *metrics.Metrics, apiKey string) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		tracer:  tracer,
		logger:  logger.Named("http"),
		feed:    feed,
		syncer:  syncer,
		curated: curated,
		metrics: m,
		apiKey:  apiKey,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api/opportunities")
	api.GET("", h.ListOpportunities)
	api.GET("/tabs", h.ListTabs)

	admin := api.Group("", APIKeyAuth(h.apiKey))
	admin.POST("/sync", h.TriggerSync)
	admin.POST("/curated", h.CreateCurated)
}
