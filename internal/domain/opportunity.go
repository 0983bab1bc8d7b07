package domain

import (
	"strings"
	"time"
)

type OpportunityType string

const (
	TypeAirdrop  OpportunityType = "airdrop"
	TypeQuest    OpportunityType = "quest"
	TypeStaking  OpportunityType = "staking"
	TypeYield    OpportunityType = "yield"
	TypePoints   OpportunityType = "points"
	TypeLoyalty  OpportunityType = "loyalty"
	TypeTestnet  OpportunityType = "testnet"
	TypeRWA      OpportunityType = "rwa"
	TypeStrategy OpportunityType = "strategy"
)

// AllOpportunityTypes lists every type in display order.
var AllOpportunityTypes = []OpportunityType{
	TypeAirdrop, TypeQuest, TypeStaking, TypeYield, TypePoints,
	TypeLoyalty, TypeTestnet, TypeRWA, TypeStrategy,
}

func (t OpportunityType) IsValid() bool {
	for _, known := range AllOpportunityTypes {
		if t == known {
			return true
		}
	}
	return false
}

type OpportunityStatus string

const (
	StatusPublished OpportunityStatus = "published"
	StatusExpired   OpportunityStatus = "expired"
)

// Provider identifiers. They double as the persisted `source` column.
const (
	SourceGalxe     = "galxe"
	SourceDefiLlama = "defillama"
	SourceCurated   = "curated"
)

// CandidateOpportunity is a provider-normalized record prior to merge.
type CandidateOpportunity struct {
	Slug           string            `json:"slug"`
	Title          string            `json:"title"`
	ProtocolName   string            `json:"protocol_name"`
	Type           OpportunityType   `json:"type"`
	Chains         []string          `json:"chains"`
	RewardMin      *float64          `json:"reward_min,omitempty"`
	RewardMax      *float64          `json:"reward_max,omitempty"`
	RewardCurrency string            `json:"reward_currency,omitempty"`
	TrustScore     int               `json:"trust_score"`
	Source         string            `json:"source"`
	SourceRef      string            `json:"source_ref"`
	DedupeKey      string            `json:"dedupe_key"`
	Requirements   map[string]any    `json:"requirements,omitempty"`
	StartsAt       *time.Time        `json:"starts_at,omitempty"`
	EndsAt         *time.Time        `json:"ends_at,omitempty"`
	Status         OpportunityStatus `json:"status"`
	Description    string            `json:"description,omitempty"`
	Tags           []string          `json:"tags,omitempty"`
	URL            string            `json:"url,omitempty"`
	ClaimStart     *time.Time        `json:"claim_start,omitempty"`
	ClaimEnd       *time.Time        `json:"claim_end,omitempty"`
	Sponsored      bool              `json:"sponsored"`
}

// PrimaryChain returns the first chain, or "" when the candidate has none.
func (c CandidateOpportunity) PrimaryChain() string {
	if len(c.Chains) == 0 {
		return ""
	}
	return c.Chains[0]
}

// IdentityKey is the coarse merge identity: protocol name plus primary chain.
// It is compared case-sensitively; normalization happens before merge.
func (c CandidateOpportunity) IdentityKey() string {
	return c.ProtocolName + "|" + c.PrimaryChain()
}

func DedupeKey(source, sourceRef string) string {
	return source + ":" + sourceRef
}

type TrustLevel string

const (
	TrustHigh   TrustLevel = "high"
	TrustMedium TrustLevel = "medium"
	TrustLow    TrustLevel = "low"
)

const (
	TrustHighThreshold   = 75
	TrustMediumThreshold = 50
)

func TrustLevelFor(score int) TrustLevel {
	switch {
	case score >= TrustHighThreshold:
		return TrustHigh
	case score >= TrustMediumThreshold:
		return TrustMedium
	default:
		return TrustLow
	}
}

type Trust struct {
	Score int        `json:"score"`
	Level TrustLevel `json:"level"`
}

// Opportunity is the persisted, public-facing shape served by the feed.
type Opportunity struct {
	ID int64 `json:"id"`
	CandidateOpportunity
	Trust        Trust     `json:"trust"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsRisky reports whether the opportunity sits in the low trust band.
func (o Opportunity) IsRisky() bool {
	return o.Trust.Level == TrustLow
}

// FeedTabs maps logical tab names to the types they show. "all" is handled
// by leaving the type filter empty.
var FeedTabs = map[string][]OpportunityType{
	"airdrops":   {TypeAirdrop},
	"quests":     {TypeQuest},
	"yield":      {TypeStaking, TypeYield},
	"points":     {TypePoints, TypeLoyalty},
	"testnets":   {TypeTestnet},
	"rwa":        {TypeRWA},
	"strategies": {TypeStrategy},
}

// TypesForTab resolves a tab name or raw type value. ok is false for unknown input.
func TypesForTab(tab string) (types []OpportunityType, ok bool) {
	tab = strings.ToLower(strings.TrimSpace(tab))
	if tab == "" || tab == "all" {
		return nil, true
	}
	if mapped, found := FeedTabs[tab]; found {
		return append([]OpportunityType(nil), mapped...), true
	}
	if t := OpportunityType(tab); t.IsValid() {
		return []OpportunityType{t}, true
	}
	return nil, false
}
