package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"opportunity-hunter/internal/domain"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	galxeDefaultEndpoint = "https://graphigo.prd.galaxy.eco/query"
	galxeDefaultPageSize = 50
	galxeTrustPrior      = 55
	defaultMaxPages      = 5
	defaultPageDelay     = 500 * time.Millisecond
)

const galxeCampaignsQuery = `query CampaignList($input: ListCampaignInput!) {
  campaigns(input: $input) {
    pageInfo { endCursor hasNextPage }
    list {
      id
      name
      description
      startTime
      endTime
      status
      chain
      space { name alias }
    }
  }
}`

type GalxeConfig struct {
	Endpoint    string
	PageSize    int
	PageDelay   time.Duration
	MaxAttempts int
}

// GalxeAdapter pages through the Galxe campaigns GraphQL endpoint.
type GalxeAdapter struct {
	client    *http.Client
	endpoint  string
	pageSize  int
	tracer    trace.Tracer
	logger    *zap.Logger
	limiter   *RateLimiter
	retryBase time.Duration
	attempts  int
	now       func() time.Time
}

func NewGalxeAdapter(tracer trace.Tracer, logger *zap.Logger, cfg GalxeConfig) *GalxeAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = galxeDefaultEndpoint
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = galxeDefaultPageSize
	}
	delay := cfg.PageDelay
	if delay <= 0 {
		delay = defaultPageDelay
	}
	return &GalxeAdapter{
		client:    &http.Client{Timeout: 30 * time.Second},
		endpoint:  endpoint,
		pageSize:  pageSize,
		tracer:    tracer,
		logger:    logger.Named("galxe"),
		limiter:   NewPageLimiter(delay),
		retryBase: defaultRetryBase,
		attempts:  cfg.MaxAttempts,
		now:       time.Now,
	}
}

func (a *GalxeAdapter) Name() string { return domain.SourceGalxe }

// Fetch pages until hasNextPage is false or maxPages is reached. A failed
// page stops pagination; candidates from earlier pages are kept.
func (a *GalxeAdapter) Fetch(ctx context.Context, maxPages int) domain.FetchResult {
	ctx, span := a.tracer.Start(ctx, "galxe.fetch")
	defer span.End()

	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	requester := newPageRequester(domain.SourceGalxe, a.client, a.retryBase, a.attempts)

	var result domain.FetchResult
	after := ""
	for page := 1; page <= maxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, &domain.ProviderTransportError{Source: domain.SourceGalxe, Page: page, Err: err})
			break
		}

		payload, err := a.requestBody(after)
		if err != nil {
			result.Errors = append(result.Errors, &domain.ProviderFormatError{Source: domain.SourceGalxe, Page: page, Err: err})
			break
		}
		body, err := requester.do(ctx, page, func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		})
		if err != nil {
			result.Errors = append(result.Errors, err)
			break
		}

		candidates, next, hasNext, err := a.parsePage(body)
		if err != nil {
			result.Errors = append(result.Errors, &domain.ProviderFormatError{Source: domain.SourceGalxe, Page: page, Err: err})
			break
		}
		result.Candidates = append(result.Candidates, candidates...)
		result.PagesFetched++

		if !hasNext || next == "" || next == after {
			break
		}
		after = next
	}

	span.SetAttributes(
		attribute.Int("pages", result.PagesFetched),
		attribute.Int("candidates", len(result.Candidates)),
		attribute.Int("errors", len(result.Errors)),
	)
	a.logger.Debug("fetch finished",
		zap.Int("pages", result.PagesFetched),
		zap.Int("candidates", len(result.Candidates)),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

func (a *GalxeAdapter) requestBody(after string) ([]byte, error) {
	input := map[string]any{"first": a.pageSize}
	if after != "" {
		input["after"] = after
	}
	return json.Marshal(map[string]any{
		"operationName": "CampaignList",
		"query":         galxeCampaignsQuery,
		"variables":     map[string]any{"input": input},
	})
}

func (a *GalxeAdapter) parsePage(body []byte) ([]domain.CandidateOpportunity, string, bool, error) {
	if !gjson.ValidBytes(body) {
		return nil, "", false, errors.New("response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if gqlErrors := doc.Get("errors"); gqlErrors.IsArray() && len(gqlErrors.Array()) > 0 {
		return nil, "", false, fmt.Errorf("graphql error: %s", gqlErrors.Array()[0].Get("message").String())
	}

	campaigns := doc.Get("data.campaigns")
	if !campaigns.Exists() || !campaigns.IsObject() {
		return nil, "", false, errors.New("missing data.campaigns")
	}
	pageInfo := campaigns.Get("pageInfo")
	if !pageInfo.Exists() {
		return nil, "", false, errors.New("missing campaigns.pageInfo")
	}
	list := campaigns.Get("list")
	if list.Exists() && !list.IsArray() {
		return nil, "", false, errors.New("campaigns.list is not an array")
	}

	now := a.now().UTC()
	rows := list.Array()
	out := make([]domain.CandidateOpportunity, 0, len(rows))
	for _, row := range rows {
		id := strings.TrimSpace(row.Get("id").String())
		name := strings.TrimSpace(row.Get("name").String())
		if id == "" || name == "" {
			continue
		}
		description := row.Get("description").String()
		protocol := strings.TrimSpace(row.Get("space.name").String())
		if protocol == "" {
			protocol = name
		}

		startsAt := unixPtr(row.Get("startTime").Int())
		endsAt := unixPtr(row.Get("endTime").Int())
		chain := NormalizeChain(row.Get("chain").String())

		var chains []string
		if chain != "" {
			chains = []string{chain}
		}
		candidate := domain.CandidateOpportunity{
			Slug:         "galxe-" + Slugify(id),
			Title:        name,
			ProtocolName: protocol,
			Type:         ClassifyCampaign(name, description),
			Chains:       chains,
			TrustScore:   galxeTrustPrior,
			Source:       domain.SourceGalxe,
			SourceRef:    id,
			Requirements: map[string]any{"platform": "galxe"},
			StartsAt:     startsAt,
			EndsAt:       endsAt,
			Status:       galxeStatus(row.Get("status").String(), endsAt, now),
			Description:  description,
			Tags:         []string{domain.SourceGalxe, chain},
		}
		if alias := strings.TrimSpace(row.Get("space.alias").String()); alias != "" {
			candidate.URL = "https://app.galxe.com/quest/" + alias + "/" + id
		}
		out = append(out, NormalizeCandidate(candidate))
	}

	return out, pageInfo.Get("endCursor").String(), pageInfo.Get("hasNextPage").Bool(), nil
}

func galxeStatus(raw string, endsAt *time.Time, now time.Time) domain.OpportunityStatus {
	if endsAt != nil && endsAt.Before(now) {
		return domain.StatusExpired
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "expired", "capreached", "deleted", "finished":
		return domain.StatusExpired
	default:
		return domain.StatusPublished
	}
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
