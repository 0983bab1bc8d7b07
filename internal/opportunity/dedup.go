package opportunity

import (
	"sort"

	"opportunity-hunter/internal/domain"
)

// DefaultPriorities orders sources by how much their data is trusted.
// A higher value is applied later and wins identity collisions.
var DefaultPriorities = map[string]int{
	domain.SourceGalxe:     10,
	domain.SourceCurated:   20,
	domain.SourceDefiLlama: 30,
}

// SourceBatch is one source's candidates tagged with its merge priority.
type SourceBatch struct {
	Source     string
	Priority   int
	Candidates []domain.CandidateOpportunity
}

type MergeStats struct {
	Input int
	// Overwrites counts, per winning source, how many records from another
	// source it replaced.
	Overwrites map[string]int
	// Duplicates counts identity collisions inside a single source.
	Duplicates map[string]int
}

// Merge collapses candidates that share an identity key. Batches are applied
// from lowest to highest priority and each record overwrites whatever is
// already stored under its key, so the highest-priority source always wins.
// Output keeps the position at which each key was first seen.
func Merge(batches []SourceBatch) []domain.CandidateOpportunity {
	out, _ := MergeWithStats(batches)
	return out
}

func MergeWithStats(batches []SourceBatch) ([]domain.CandidateOpportunity, MergeStats) {
	ordered := make([]SourceBatch, len(batches))
	copy(ordered, batches)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	stats := MergeStats{Overwrites: make(map[string]int), Duplicates: make(map[string]int)}
	index := make(map[string]int)
	var out []domain.CandidateOpportunity
	for _, batch := range ordered {
		for _, c := range batch.Candidates {
			stats.Input++
			key := c.IdentityKey()
			if pos, ok := index[key]; ok {
				if out[pos].Source == c.Source {
					stats.Duplicates[c.Source]++
				} else {
					stats.Overwrites[batch.Source]++
				}
				out[pos] = c
				continue
			}
			index[key] = len(out)
			out = append(out, c)
		}
	}
	return out, stats
}

// BatchesFor tags each source's candidates with its priority from table.
// Unknown sources get priority 0 and are applied first.
func BatchesFor(table map[string]int, bySource map[string][]domain.CandidateOpportunity) []SourceBatch {
	batches := make([]SourceBatch, 0, len(bySource))
	for source, candidates := range bySource {
		batches = append(batches, SourceBatch{Source: source, Priority: table[source], Candidates: candidates})
	}
	// map order is random; fix it before the stable priority sort
	sort.Slice(batches, func(i, j int) bool {
		if batches[i].Priority != batches[j].Priority {
			return batches[i].Priority < batches[j].Priority
		}
		return batches[i].Source < batches[j].Source
	})
	return batches
}
