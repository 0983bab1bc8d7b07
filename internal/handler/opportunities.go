package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"opportunity-hunter/internal/domain"
	"opportunity-hunter/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tabOrder = []string{"all", "airdrops", "quests", "yield", "points", "testnets", "rwa", "strategies"}

// ListOpportunities godoc
// @Summary      Ranked opportunity feed
// @Description  Returns one page of published opportunities under the chosen sort policy
// @Tags         opportunities
// @Produce      json
// @Param        tab         query  string  false  "Tab name or raw type (default all)"
// @Param        sort        query  string  false  "recommended|ends_soon|highest_reward|newest|trust"
// @Param        trust_min   query  int     false  "Minimum trust score (0-100)"
// @Param        show_risky  query  bool    false  "Include low-trust items"
// @Param        search      query  string  false  "Free-text search"
// @Param        wallet      query  string  false  "Wallet address for personalization"
// @Param        limit       query  int     false  "Page size (default 12, max 50)"
// @Param        cursor      query  string  false  "Cursor from a previous page"
// @Success      200  {object}  domain.FeedPage
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/opportunities [get]
func (h *Handler) ListOpportunities(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.list-opportunities")
	defer span.End()

	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed unavailable"})
		return
	}

	q, err := parseFeedQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	span.SetAttributes(attribute.String("sort", string(q.Sort)), attribute.Int("limit", q.Limit))

	page, err := h.feed.Query(ctx, q)
	switch {
	case errors.Is(err, domain.ErrInvalidCursor), errors.Is(err, domain.ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error("feed query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feed unavailable"})
		return
	}

	c.JSON(http.StatusOK, page)
}

func parseFeedQuery(c *gin.Context) (domain.FeedQuery, error) {
	q := domain.FeedQuery{
		Sort:   domain.SortPolicy(strings.ToLower(strings.TrimSpace(c.Query("sort")))),
		Search: c.Query("search"),
		Wallet: c.Query("wallet"),
		Cursor: c.Query("cursor"),
	}

	tab := c.Query("tab")
	if tab == "" {
		tab = c.Query("type")
	}
	types, ok := domain.TypesForTab(tab)
	if !ok {
		return q, errors.New("unknown tab: " + tab)
	}
	q.Types = types

	if v := strings.TrimSpace(c.Query("trust_min")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return q, errors.New("trust_min must be an integer")
		}
		q.TrustMin = n
	}
	if v := strings.TrimSpace(c.Query("show_risky")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, errors.New("show_risky must be a boolean")
		}
		q.ShowRisky = b
	}
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = n
	}
	return q, nil
}

type tabResponse struct {
	Tab   string                   `json:"tab"`
	Types []domain.OpportunityType `json:"types"`
}

// ListTabs godoc
// @Summary      Feed tabs
// @Description  Lists the feed tab names and the opportunity types each one shows
// @Tags         opportunities
// @Produce      json
// @Success      200  {array}  tabResponse
// @Router       /api/opportunities/tabs [get]
func (h *Handler) ListTabs(c *gin.Context) {
	out := make([]tabResponse, 0, len(tabOrder))
	for _, tab := range tabOrder {
		types := domain.FeedTabs[tab]
		if tab == "all" {
			types = domain.AllOpportunityTypes
		}
		out = append(out, tabResponse{Tab: tab, Types: types})
	}
	c.JSON(http.StatusOK, out)
}

// TriggerSync godoc
// @Summary      Run one ingestion pass
// @Description  Fetches every source, merges and persists, then returns the run report
// @Tags         opportunities
// @Produce      json
// @Security     ApiKeyAuth
// @Success      200  {object}  domain.SyncReport
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/opportunities/sync [post]
func (h *Handler) TriggerSync(c *gin.Context) {
	if h.syncer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-sync")
	defer span.End()

	report, err := h.syncer.Run(ctx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, domain.ErrNoAdapters):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

type curatedRequest struct {
	Slug         string         `json:"slug" binding:"required"`
	Title        string         `json:"title" binding:"required"`
	ProtocolName string         `json:"protocol_name" binding:"required"`
	Type         string         `json:"type"`
	Chains       []string       `json:"chains" binding:"required,min=1"`
	Reward       string         `json:"reward"`
	TrustScore   int            `json:"trust_score" binding:"min=0,max=100"`
	StartsAt     *time.Time     `json:"starts_at"`
	EndsAt       *time.Time     `json:"ends_at"`
	Description  string         `json:"description"`
	URL          string         `json:"url"`
	Tags         []string       `json:"tags"`
	Sponsored    bool           `json:"sponsored"`
	Requirements map[string]any `json:"requirements"`
}

// CreateCurated godoc
// @Summary      Add a curated opportunity
// @Description  Stores an admin-curated opportunity; it joins the next sync as the curated source
// @Tags         opportunities
// @Accept       json
// @Produce      json
// @Security     ApiKeyAuth
// @Param        body  body  curatedRequest  true  "Curated opportunity"
// @Success      201  {object}  domain.Opportunity
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/opportunities/curated [post]
func (h *Handler) CreateCurated(c *gin.Context) {
	if h.curated == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "curated store unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.create-curated")
	defer span.End()

	var req curatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate, err := req.toCandidate()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.curated.CreateCurated(ctx, candidate)
	if err != nil {
		h.logger.Error("create curated failed", zap.String("slug", candidate.Slug), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store opportunity"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (r curatedRequest) toCandidate() (domain.CandidateOpportunity, error) {
	oppType := domain.OpportunityType(strings.ToLower(strings.TrimSpace(r.Type)))
	if oppType == "" {
		oppType = domain.TypeAirdrop
	}
	if !oppType.IsValid() {
		return domain.CandidateOpportunity{}, errors.New("unsupported type: " + r.Type)
	}
	if r.StartsAt != nil && r.EndsAt != nil && r.EndsAt.Before(*r.StartsAt) {
		return domain.CandidateOpportunity{}, errors.New("ends_at is before starts_at")
	}

	slug := provider.Slugify(r.Slug)
	if slug == "" {
		return domain.CandidateOpportunity{}, errors.New("slug must contain letters or digits")
	}
	c := domain.CandidateOpportunity{
		Slug:         slug,
		Title:        r.Title,
		ProtocolName: r.ProtocolName,
		Type:         oppType,
		Chains:       r.Chains,
		TrustScore:   r.TrustScore,
		Source:       domain.SourceCurated,
		SourceRef:    slug,
		Requirements: r.Requirements,
		StartsAt:     r.StartsAt,
		EndsAt:       r.EndsAt,
		Description:  r.Description,
		URL:          r.URL,
		Tags:         r.Tags,
		Sponsored:    r.Sponsored,
	}
	if strings.TrimSpace(r.Reward) != "" {
		low, high, currency, ok := provider.ParseRewardRange(r.Reward)
		if !ok {
			return domain.CandidateOpportunity{}, errors.New("reward must look like \"100-500 USDC\"")
		}
		c.RewardMin, c.RewardMax, c.RewardCurrency = low, high, currency
	}
	return provider.NormalizeCandidate(c), nil
}
