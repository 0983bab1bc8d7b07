package domain

type SortPolicy string

const (
	SortRecommended   SortPolicy = "recommended"
	SortEndsSoon      SortPolicy = "ends_soon"
	SortHighestReward SortPolicy = "highest_reward"
	SortNewest        SortPolicy = "newest"
	SortTrust         SortPolicy = "trust"
)

var SupportedSortPolicies = []SortPolicy{
	SortRecommended, SortEndsSoon, SortHighestReward, SortNewest, SortTrust,
}

func (s SortPolicy) IsValid() bool {
	for _, p := range SupportedSortPolicies {
		if s == p {
			return true
		}
	}
	return false
}

const (
	DefaultFeedPageSize = 12
	MaxFeedPageSize     = 50
	SponsoredPerPage    = 2
)

// FeedQuery carries the read parameters of the feed API.
type FeedQuery struct {
	Types     []OpportunityType
	Sort      SortPolicy
	TrustMin  int
	ShowRisky bool
	Search    string
	Wallet    string
	Limit     int
	Cursor    string
}

// FeedFilter is the subset of FeedQuery the store applies.
type FeedFilter struct {
	Types    []OpportunityType
	TrustMin int
	Search   string
}

type FeedPage struct {
	Items        []Opportunity `json:"items"`
	NextCursor   *string       `json:"next_cursor"`
	SnapshotTime int64         `json:"snapshot_time"`
}
