package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"opportunity-hunter/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defiLlamaAirdropsURL = "https://api.llama.fi/airdrops"
	defiLlamaTrustPrior  = 80
)

type DefiLlamaConfig struct {
	URL         string
	MaxAttempts int
}

// DefiLlamaAirdropsAdapter reads the public airdrops list. The endpoint is
// unpaginated, so one request is one page.
type DefiLlamaAirdropsAdapter struct {
	client    *http.Client
	url       string
	tracer    trace.Tracer
	logger    *zap.Logger
	retryBase time.Duration
	attempts  int
	now       func() time.Time
}

func NewDefiLlamaAirdropsAdapter(tracer trace.Tracer, logger *zap.Logger, cfg DefiLlamaConfig) *DefiLlamaAirdropsAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := strings.TrimSpace(cfg.URL)
	if u == "" {
		u = defiLlamaAirdropsURL
	}
	return &DefiLlamaAirdropsAdapter{
		client:    &http.Client{Timeout: 30 * time.Second},
		url:       u,
		tracer:    tracer,
		logger:    logger.Named("defillama"),
		retryBase: defaultRetryBase,
		attempts:  cfg.MaxAttempts,
		now:       time.Now,
	}
}

func (a *DefiLlamaAirdropsAdapter) Name() string { return domain.SourceDefiLlama }

type defiLlamaAirdrop struct {
	ID         json.RawMessage `json:"id"`
	Name       string          `json:"name"`
	Symbol     string          `json:"symbol"`
	Chain      string          `json:"chain"`
	ClaimStart any             `json:"claimStart"`
	ClaimEnd   any             `json:"claimEnd"`
	ClaimURL   string          `json:"claimUrl"`
}

func (a *DefiLlamaAirdropsAdapter) Fetch(ctx context.Context, maxPages int) domain.FetchResult {
	ctx, span := a.tracer.Start(ctx, "defillama.fetch-airdrops")
	defer span.End()

	var result domain.FetchResult
	if maxPages == 0 {
		return result
	}

	requester := newPageRequester(domain.SourceDefiLlama, a.client, a.retryBase, a.attempts)
	body, err := requester.do(ctx, 1, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	})
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}

	var rows []defiLlamaAirdrop
	if err := json.Unmarshal(body, &rows); err != nil {
		result.Errors = append(result.Errors, &domain.ProviderFormatError{
			Source: domain.SourceDefiLlama,
			Page:   1,
			Err:    fmt.Errorf("decode airdrops list: %w", err),
		})
		return result
	}
	result.PagesFetched = 1

	now := a.now().UTC()
	result.Candidates = make([]domain.CandidateOpportunity, 0, len(rows))
	for _, row := range rows {
		if c, ok := a.toCandidate(row, now); ok {
			result.Candidates = append(result.Candidates, c)
		}
	}

	span.SetAttributes(attribute.Int("candidates", len(result.Candidates)))
	a.logger.Debug("fetch finished", zap.Int("rows", len(rows)), zap.Int("candidates", len(result.Candidates)))
	return result
}

func (a *DefiLlamaAirdropsAdapter) toCandidate(row defiLlamaAirdrop, now time.Time) (domain.CandidateOpportunity, bool) {
	id := rawID(row.ID)
	name := strings.TrimSpace(row.Name)
	if id == "" || name == "" {
		return domain.CandidateOpportunity{}, false
	}

	claimStart := unixPtr(int64(asFloat(row.ClaimStart)))
	claimEnd := unixPtr(int64(asFloat(row.ClaimEnd)))
	status := domain.StatusPublished
	if claimEnd != nil && claimEnd.Before(now) {
		status = domain.StatusExpired
	}

	var chains []string
	if row.Chain != "" {
		chains = []string{row.Chain}
	}
	symbol := strings.TrimSpace(row.Symbol)
	return NormalizeCandidate(domain.CandidateOpportunity{
		Slug:           "defillama-" + Slugify(id),
		Title:          name + " airdrop",
		ProtocolName:   name,
		Type:           domain.TypeAirdrop,
		Chains:         chains,
		RewardCurrency: symbol,
		TrustScore:     defiLlamaTrustPrior,
		Source:         domain.SourceDefiLlama,
		SourceRef:      id,
		Requirements:   map[string]any{"symbol": symbol},
		StartsAt:       claimStart,
		EndsAt:         claimEnd,
		Status:         status,
		Tags:           []string{"airdrop", row.Chain},
		URL:            row.ClaimURL,
		ClaimStart:     claimStart,
		ClaimEnd:       claimEnd,
	}), true
}

// rawID accepts both numeric and string ids.
func rawID(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	return s
}
