package provider

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"opportunity-hunter/internal/domain"

	"github.com/shopspring/decimal"
)

var chainAliases = map[string]string{
	"eth":          "ethereum",
	"ethereum":     "ethereum",
	"mainnet":      "ethereum",
	"matic":        "polygon",
	"polygon":      "polygon",
	"bsc":          "bsc",
	"bnb":          "bsc",
	"binance":      "bsc",
	"bnb chain":    "bsc",
	"arbitrum":     "arbitrum",
	"arbitrum one": "arbitrum",
	"optimism":     "optimism",
	"op":           "optimism",
	"base":         "base",
	"solana":       "solana",
	"sol":          "solana",
	"avalanche":    "avalanche",
	"avax":         "avalanche",
	"zksync_era":   "zksync",
	"zksync era":   "zksync",
	"zksync":       "zksync",
	"linea":        "linea",
	"scroll":       "scroll",
	"sui":          "sui",
	"aptos":        "aptos",
}

// NormalizeChain maps provider chain codes onto one canonical identifier.
func NormalizeChain(chain string) string {
	c := strings.ToLower(strings.TrimSpace(chain))
	if c == "" {
		return ""
	}
	if alias, ok := chainAliases[c]; ok {
		return alias
	}
	if alias, ok := chainAliases[strings.ReplaceAll(c, "_", " ")]; ok {
		return alias
	}
	return strings.ReplaceAll(strings.ReplaceAll(c, " ", "-"), "_", "-")
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

func Slugify(parts ...string) string {
	joined := strings.ToLower(strings.Join(parts, "-"))
	joined = slugCleaner.ReplaceAllString(joined, "-")
	return strings.Trim(joined, "-")
}

// NormalizeCandidate is the explicit pre-merge normalization step. Merge
// identity is compared case-sensitively over what this function produces.
func NormalizeCandidate(c domain.CandidateOpportunity) domain.CandidateOpportunity {
	c.Source = strings.TrimSpace(c.Source)
	c.SourceRef = strings.TrimSpace(c.SourceRef)
	c.Title = sanitizeText(c.Title, 300)
	c.ProtocolName = sanitizeText(c.ProtocolName, 120)
	c.Description = sanitizeText(c.Description, 2000)
	c.URL = strings.TrimSpace(c.URL)
	c.RewardCurrency = strings.ToUpper(strings.TrimSpace(c.RewardCurrency))

	chains := make([]string, 0, len(c.Chains))
	seen := make(map[string]struct{}, len(c.Chains))
	for _, raw := range c.Chains {
		chain := NormalizeChain(raw)
		if chain == "" {
			continue
		}
		if _, dup := seen[chain]; dup {
			continue
		}
		seen[chain] = struct{}{}
		chains = append(chains, chain)
	}
	c.Chains = chains

	tags := make([]string, 0, len(c.Tags))
	seenTags := make(map[string]struct{}, len(c.Tags))
	for _, raw := range c.Tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, dup := seenTags[tag]; dup {
			continue
		}
		seenTags[tag] = struct{}{}
		tags = append(tags, tag)
	}
	c.Tags = tags

	if c.TrustScore < 0 {
		c.TrustScore = 0
	}
	if c.TrustScore > 100 {
		c.TrustScore = 100
	}
	if c.RewardMin != nil && c.RewardMax != nil && *c.RewardMin > *c.RewardMax {
		c.RewardMin, c.RewardMax = c.RewardMax, c.RewardMin
	}
	if c.Status == "" {
		c.Status = domain.StatusPublished
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Source, c.SourceRef)
	}
	c.DedupeKey = domain.DedupeKey(c.Source, c.SourceRef)
	return c
}

var rewardPattern = regexp.MustCompile(`(?i)^\s*(?:up\s+to\s+)?\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:(?:-|–|to)\s*\$?\s*([0-9][0-9,]*(?:\.[0-9]+)?))?\s*([a-z][a-z0-9]*)?\s*$`)

// ParseRewardRange parses strings like "100-500 USDC", "$50" or "up to 2,000 ARB".
// A leading "$" with no currency yields USD.
func ParseRewardRange(s string) (low, high *float64, currency string, ok bool) {
	m := rewardPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, nil, "", false
	}
	lo, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return nil, nil, "", false
	}
	hi := lo
	if m[2] != "" {
		hi, err = decimal.NewFromString(strings.ReplaceAll(m[2], ",", ""))
		if err != nil {
			return nil, nil, "", false
		}
	}
	if lo.GreaterThan(hi) {
		lo, hi = hi, lo
	}
	currency = strings.ToUpper(m[3])
	if currency == "" && strings.Contains(s, "$") {
		currency = "USD"
	}

	loF, _ := lo.Float64()
	hiF, _ := hi.Float64()
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "up to") && m[2] == "" {
		zero := 0.0
		return &zero, &hiF, currency, true
	}
	return &loF, &hiF, currency, true
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		// cut on a rune boundary so the result stays valid UTF-8
		for maxLen > 0 && !utf8.RuneStart(in[maxLen]) {
			maxLen--
		}
		in = strings.TrimSpace(in[:maxLen])
	}
	return in
}
