package provider

import (
	"context"

	"opportunity-hunter/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CuratedReader lists admin-curated opportunities already in the store.
type CuratedReader interface {
	ListBySource(ctx context.Context, source string, opportunityType domain.OpportunityType) ([]domain.CandidateOpportunity, error)
}

// CuratedAdapter exposes curated store rows as a source so they take part in
// merge priority like any external provider.
type CuratedAdapter struct {
	reader          CuratedReader
	tracer          trace.Tracer
	opportunityType domain.OpportunityType
}

func NewCuratedAdapter(tracer trace.Tracer, reader CuratedReader) *CuratedAdapter {
	return &CuratedAdapter{reader: reader, tracer: tracer, opportunityType: domain.TypeAirdrop}
}

func (a *CuratedAdapter) Name() string { return domain.SourceCurated }

func (a *CuratedAdapter) Fetch(ctx context.Context, maxPages int) domain.FetchResult {
	ctx, span := a.tracer.Start(ctx, "curated.fetch")
	defer span.End()

	var result domain.FetchResult
	if maxPages == 0 {
		return result
	}

	rows, err := a.reader.ListBySource(ctx, domain.SourceCurated, a.opportunityType)
	if err != nil {
		result.Errors = append(result.Errors, &domain.ProviderTransportError{Source: domain.SourceCurated, Page: 1, Err: err})
		return result
	}
	result.PagesFetched = 1
	result.Candidates = make([]domain.CandidateOpportunity, 0, len(rows))
	for _, row := range rows {
		result.Candidates = append(result.Candidates, NormalizeCandidate(row))
	}
	span.SetAttributes(attribute.Int("candidates", len(result.Candidates)))
	return result
}
