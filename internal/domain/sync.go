package domain

import "time"

// FetchResult is what one adapter returns for a fetch. Errors holds the
// non-fatal failures that stopped pagination early; Candidates collected
// before the failure are still valid.
type FetchResult struct {
	Candidates   []CandidateOpportunity `json:"candidates"`
	PagesFetched int                    `json:"pages_fetched"`
	Errors       []error                `json:"-"`
}

type SyncStage string

const (
	StageFetch   SyncStage = "fetch"
	StagePersist SyncStage = "persist"
)

type SyncError struct {
	Stage   SyncStage `json:"stage"`
	Source  string    `json:"source"`
	Ref     string    `json:"ref,omitempty"`
	Message string    `json:"message"`
	// StaleAgeMs is the age of the cached candidates served in place of a
	// failed fetch. Zero when nothing stale was served.
	StaleAgeMs int64 `json:"stale_age_ms,omitempty"`
}

// SyncReport summarizes one orchestrator run. It is built once and not
// mutated after Run returns.
type SyncReport struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	UpsertedCount   int            `json:"upserted_count"`
	InsertedCount   int            `json:"inserted_count"`
	MergedCount     int            `json:"merged_count"`
	PerSourceCounts map[string]int `json:"per_source_counts"`
	DurationMs      int64          `json:"duration_ms"`
	Incomplete      bool           `json:"incomplete"`
	Errors          []SyncError    `json:"errors"`
}
