package opportunity

import (
	"cmp"
	"slices"
	"time"

	"opportunity-hunter/internal/domain"
)

// walletChainBoost is added to the recommended score of items on a chain
// the wallet is active on.
const walletChainBoost = 10

// rank sorts items in place under policy. Every policy ends with ID
// ascending so the order is total and identical across requests.
func rank(items []domain.Opportunity, policy domain.SortPolicy, activeChains map[string]bool) {
	slices.SortFunc(items, func(a, b domain.Opportunity) int {
		var c int
		switch policy {
		case domain.SortEndsSoon:
			c = compareTimeNullsLast(a.EndsAt, b.EndsAt)
		case domain.SortHighestReward:
			c = compareFloatDescNullsLast(a.RewardMax, b.RewardMax)
		case domain.SortNewest:
			c = b.CreatedAt.Compare(a.CreatedAt)
		case domain.SortTrust:
			c = cmp.Compare(b.TrustScore, a.TrustScore)
		default:
			c = cmp.Compare(recommendedScore(b, activeChains), recommendedScore(a, activeChains))
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func recommendedScore(o domain.Opportunity, activeChains map[string]bool) int {
	score := o.TrustScore
	if activeChains[o.PrimaryChain()] {
		score += walletChainBoost
	}
	return score
}

func compareTimeNullsLast(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return a.Compare(*b)
	}
}

func compareFloatDescNullsLast(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return cmp.Compare(*b, *a)
	}
}

// arrangeSponsored walks the ranked items and keeps every run of window
// consecutive items at or below capPerWindow sponsored entries. A sponsored
// item with no room is deferred, in order, to the first slot that has room;
// deferred items still waiting when the organic items run out are dropped
// unless room opens immediately.
func arrangeSponsored(items []domain.Opportunity, window, capPerWindow int) []domain.Opportunity {
	if window <= 0 {
		return items
	}
	out := make([]domain.Opportunity, 0, len(items))
	var (
		deferred  []domain.Opportunity
		sponsored []int
	)
	hasRoom := func() bool {
		if capPerWindow <= 0 {
			return false
		}
		start := len(out) - window + 1
		n := 0
		for _, pos := range sponsored {
			if pos >= start {
				n++
			}
		}
		return n < capPerWindow
	}
	push := func(o domain.Opportunity) {
		if o.Sponsored {
			sponsored = append(sponsored, len(out))
		}
		out = append(out, o)
	}

	for _, o := range items {
		for len(deferred) > 0 && hasRoom() {
			push(deferred[0])
			deferred = deferred[1:]
		}
		if o.Sponsored && (len(deferred) > 0 || !hasRoom()) {
			deferred = append(deferred, o)
			continue
		}
		push(o)
	}
	for len(deferred) > 0 && hasRoom() {
		push(deferred[0])
		deferred = deferred[1:]
	}
	return out
}
