package provider

import (
	"context"
	"errors"
	"testing"

	"opportunity-hunter/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type curatedReaderStub struct {
	rows       []domain.CandidateOpportunity
	err        error
	lastSource string
	lastType   domain.OpportunityType
}

func (s *curatedReaderStub) ListBySource(ctx context.Context, source string, opportunityType domain.OpportunityType) ([]domain.CandidateOpportunity, error) {
	s.lastSource = source
	s.lastType = opportunityType
	return s.rows, s.err
}

func TestCuratedAdapterReadsFixedSourceAndType(t *testing.T) {
	reader := &curatedReaderStub{rows: []domain.CandidateOpportunity{
		{Title: "Curated drop", ProtocolName: "Scroll", Chains: []string{"Scroll"}, Source: domain.SourceCurated, SourceRef: "scroll-drop", Type: domain.TypeAirdrop, TrustScore: 90},
	}}
	a := NewCuratedAdapter(trace.NewNoopTracerProvider().Tracer("test"), reader)

	res := a.Fetch(context.Background(), 3)
	if reader.lastSource != domain.SourceCurated || reader.lastType != domain.TypeAirdrop {
		t.Fatalf("unexpected filter: %s %s", reader.lastSource, reader.lastType)
	}
	if res.PagesFetched != 1 || len(res.Candidates) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Candidates[0].DedupeKey != "curated:scroll-drop" || res.Candidates[0].PrimaryChain() != "scroll" {
		t.Fatalf("expected normalized candidate, got %+v", res.Candidates[0])
	}
}

func TestCuratedAdapterReportsStoreFailure(t *testing.T) {
	a := NewCuratedAdapter(trace.NewNoopTracerProvider().Tracer("test"), &curatedReaderStub{err: errors.New("db down")})

	res := a.Fetch(context.Background(), 1)
	if len(res.Errors) != 1 || len(res.Candidates) != 0 {
		t.Fatalf("expected one error and no candidates, got %+v", res)
	}
}
