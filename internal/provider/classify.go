package provider

import (
	"strings"

	"opportunity-hunter/internal/domain"
)

var airdropKeywords = []string{
	"airdrop",
	"claim",
	"allocation",
	"retroactive",
	"token distribution",
	"snapshot",
	"tge",
	"eligib",
}

var questKeywords = []string{
	"quest",
	"task",
	"mission",
	"complete",
	"follow",
	"retweet",
	"discord",
	"join",
	"mint",
	"learn",
}

// ClassifyCampaign labels an untyped campaign from its title and description.
// A record matching only airdrop keywords is an airdrop. Everything else,
// including records matching both sets or neither, is a quest.
func ClassifyCampaign(title, description string) domain.OpportunityType {
	text := strings.ToLower(title + " " + description)
	airdrop := containsAny(text, airdropKeywords)
	quest := containsAny(text, questKeywords)
	if airdrop && !quest {
		return domain.TypeAirdrop
	}
	return domain.TypeQuest
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
