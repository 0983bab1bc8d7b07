package opportunity

import (
	"fmt"
	"testing"

	"opportunity-hunter/internal/domain"
)

func candidate(source, protocol, chain string) domain.CandidateOpportunity {
	ref := protocol + "-" + chain
	return domain.CandidateOpportunity{
		Title:        protocol + " on " + chain,
		ProtocolName: protocol,
		Chains:       []string{chain},
		Source:       source,
		SourceRef:    ref,
		DedupeKey:    domain.DedupeKey(source, ref),
	}
}

func TestMergeHigherPriorityWins(t *testing.T) {
	low := candidate(domain.SourceGalxe, "Scroll", "scroll")
	low.Description = "rich description from the aggregator"
	high := candidate(domain.SourceDefiLlama, "Scroll", "scroll")

	got := Merge([]SourceBatch{
		{Source: domain.SourceDefiLlama, Priority: 30, Candidates: []domain.CandidateOpportunity{high}},
		{Source: domain.SourceGalxe, Priority: 10, Candidates: []domain.CandidateOpportunity{low}},
	})
	if len(got) != 1 {
		t.Fatalf("expected one merged record, got %d", len(got))
	}
	if got[0].Source != domain.SourceDefiLlama || got[0].Description != "" {
		t.Fatalf("expected the higher priority record verbatim, got %+v", got[0])
	}
}

func TestMergeIdentityIsCaseSensitive(t *testing.T) {
	got := Merge([]SourceBatch{
		{Source: "a", Priority: 1, Candidates: []domain.CandidateOpportunity{candidate("a", "Scroll", "scroll")}},
		{Source: "b", Priority: 2, Candidates: []domain.CandidateOpportunity{candidate("b", "scroll", "scroll")}},
	})
	if len(got) != 2 {
		t.Fatalf("expected differently cased protocols to stay apart, got %d", len(got))
	}
}

func TestMergeGalxeAndDefiLlamaScenario(t *testing.T) {
	var galxe, llama []domain.CandidateOpportunity
	for i := 0; i < 100; i++ {
		galxe = append(galxe, candidate(domain.SourceGalxe, fmt.Sprintf("proto-%03d", i), "ethereum"))
	}
	// the first 10 collide with galxe records 90..99
	for i := 90; i < 170; i++ {
		llama = append(llama, candidate(domain.SourceDefiLlama, fmt.Sprintf("proto-%03d", i), "ethereum"))
	}

	got, stats := MergeWithStats(BatchesFor(DefaultPriorities, map[string][]domain.CandidateOpportunity{
		domain.SourceGalxe:     galxe,
		domain.SourceDefiLlama: llama,
	}))
	if len(got) != 170 {
		t.Fatalf("expected 170 merged entries, got %d", len(got))
	}
	if stats.Input != 180 || stats.Overwrites[domain.SourceDefiLlama] != 10 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	for i := 90; i < 100; i++ {
		if got[i].Source != domain.SourceDefiLlama {
			t.Fatalf("entry %d: expected defillama version, got %s", i, got[i].Source)
		}
	}
	// collided keys keep their first-insertion position
	if got[90].ProtocolName != "proto-090" || got[100].ProtocolName != "proto-100" {
		t.Fatalf("unexpected ordering: %s %s", got[90].ProtocolName, got[100].ProtocolName)
	}
}

func TestMergeEqualPrioritiesKeepInputOrder(t *testing.T) {
	first := candidate("x", "Base", "base")
	second := candidate("y", "Base", "base")
	got := Merge([]SourceBatch{
		{Source: "x", Priority: 5, Candidates: []domain.CandidateOpportunity{first}},
		{Source: "y", Priority: 5, Candidates: []domain.CandidateOpportunity{second}},
	})
	if len(got) != 1 || got[0].Source != "y" {
		t.Fatalf("expected later batch of equal priority to win, got %+v", got)
	}
}

func TestMergeNoChainsUsesEmptyPrimary(t *testing.T) {
	a := candidate("a", "Zora", "")
	a.Chains = nil
	b := candidate("b", "Zora", "")
	b.Chains = []string{}
	got := Merge([]SourceBatch{
		{Source: "a", Priority: 1, Candidates: []domain.CandidateOpportunity{a}},
		{Source: "b", Priority: 2, Candidates: []domain.CandidateOpportunity{b}},
	})
	if len(got) != 1 || got[0].Source != "b" {
		t.Fatalf("expected chainless records to collide, got %+v", got)
	}
}

func TestMergeStatsSeparateSameSourceDuplicates(t *testing.T) {
	first := candidate(domain.SourceGalxe, "Linea", "linea")
	again := candidate(domain.SourceGalxe, "Linea", "linea")
	again.SourceRef = "linea-2"
	llama := candidate(domain.SourceDefiLlama, "Linea", "linea")

	got, stats := MergeWithStats([]SourceBatch{
		{Source: domain.SourceGalxe, Priority: 10, Candidates: []domain.CandidateOpportunity{first, again}},
		{Source: domain.SourceDefiLlama, Priority: 30, Candidates: []domain.CandidateOpportunity{llama}},
	})
	if len(got) != 1 || got[0].Source != domain.SourceDefiLlama {
		t.Fatalf("expected one defillama record, got %+v", got)
	}
	if stats.Duplicates[domain.SourceGalxe] != 1 {
		t.Fatalf("expected one galxe duplicate, got %+v", stats.Duplicates)
	}
	if stats.Overwrites[domain.SourceGalxe] != 0 || stats.Overwrites[domain.SourceDefiLlama] != 1 {
		t.Fatalf("expected only the cross-source replacement counted, got %+v", stats.Overwrites)
	}
}
