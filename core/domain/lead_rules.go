package domain

import "time"

// Signal categories in the rule table. Each category maps to one detector in
// the classification engine.
const (
	RuleUnsubscribe   = "unsubscribe"
	RulePressRelease  = "press_release"
	RulePRAssets      = "pr_assets"
	RulePRFooter      = "pr_footer"
	RuleEventKeywords = "event_keywords"
	RuleCoverageAsk   = "coverage_request"
	RuleExplicitFree  = "explicit_free"
	RuleEventInvite   = "event_invite"
	RuleCallSlots     = "call_slots"
	RulePricing       = "pricing"
	RulePartnership   = "partnership"
	RulePlatformAsk   = "platform_collab"
	RuleContentAsk    = "content_collab"
	RuleBarterTerms   = "barter_terms"
	RuleBudgetTerms   = "budget_terms"
	RuleScopeTerms    = "concrete_scope"
	RuleBigBrands     = "big_brands"
	RuleLargeBudget   = "large_budget"
	RuleMultiYear     = "multi_year"
	RuleMultiMarket   = "multi_market"
	RuleNoLeadPhrases = "no_lead_phrases"
	RuleTestPhrases   = "test_phrases"
	RuleSocialSenders = "social_senders"
	RuleSocialNotify  = "social_notifications"
)

// SignalRuleSet is a versioned mapping from signal category to the regex
// patterns that trigger it. Rule sets are immutable once stored; updates
// create a new version through the reviewed admin operation.
type SignalRuleSet struct {
	Version   int                 `bson:"version" json:"version"`
	UpdatedBy string              `bson:"updated_by" json:"updated_by"`
	UpdatedAt time.Time           `bson:"updated_at" json:"updated_at"`
	Comment   string              `bson:"comment,omitempty" json:"comment,omitempty"`
	Patterns  map[string][]string `bson:"patterns" json:"patterns"`
}

// Category returns the patterns for one signal category, nil when absent.
func (rs *SignalRuleSet) Category(name string) []string {
	if rs == nil || rs.Patterns == nil {
		return nil
	}
	return rs.Patterns[name]
}
