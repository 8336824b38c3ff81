// Package classification implements the layered intent classification engine:
// a probabilistic model pass combined with a deterministic heuristic ladder.
package classification

import (
	"regexp"
	"strings"
	"sync"

	"leadscout/core/domain"
	"leadscout/pkg/logger"
)

// Signals are the deterministic detections for one message. They are a pure
// function of the message text and the active rule set.
type Signals struct {
	// Vetoes and noise
	Unsubscribe        bool
	TestEmail          bool
	SocialNotification bool

	// Positive detectors
	PartnershipAsk  bool
	Pricing         bool
	Barter          bool
	FreeCoverage    bool
	CoverageRequest bool
	PressStyle      bool
	EventInvite     bool
	CallInvite      bool
	PRCore          bool

	// Secondary (escalation) signals
	BigBrand      bool
	LargeBudget   bool
	MultiYear     bool
	MultiMarket   bool
	BudgetTerms   bool
	ConcreteScope bool

	// Aggregate
	AnyCommercial bool
}

// Matcher evaluates the signal rule table against message text. A matcher is
// immutable once built; rule updates swap in a new matcher.
type Matcher struct {
	version  int
	patterns map[string][]*regexp.Regexp
}

// NewMatcher compiles a rule set. Patterns that fail to compile are logged
// and skipped so a bad rule update degrades instead of breaking detection.
func NewMatcher(rs *domain.SignalRuleSet) *Matcher {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	m := &Matcher{version: rs.Version, patterns: make(map[string][]*regexp.Regexp, len(rs.Patterns))}
	for category, exprs := range rs.Patterns {
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				logger.WithFields(map[string]any{
					"category": category,
					"pattern":  expr,
					"version":  rs.Version,
				}).WithError(err).Error("signal pattern failed to compile, skipping")
				continue
			}
			m.patterns[category] = append(m.patterns[category], re)
		}
	}
	return m
}

// Version returns the rule set version the matcher was built from.
func (m *Matcher) Version() int {
	return m.version
}

func (m *Matcher) match(category, text string) bool {
	for _, re := range m.patterns[category] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// Detect computes all signals for one message.
func (m *Matcher) Detect(msg *domain.Message) Signals {
	mailText := strings.ToLower(msg.Subject + "\n" + msg.Body)
	fromLc := strings.ToLower(msg.From)
	subjectLc := strings.ToLower(msg.Subject)
	normalizedBody := strings.Join(strings.Fields(strings.ToLower(msg.Body)), " ")

	var s Signals

	s.Unsubscribe = m.match(domain.RuleUnsubscribe, mailText)

	s.TestEmail = isTestToken(subjectLc, normalizedBody) || m.match(domain.RuleTestPhrases, mailText)
	s.SocialNotification = m.match(domain.RuleSocialSenders, fromLc) && m.match(domain.RuleSocialNotify, mailText)

	s.PressStyle = m.match(domain.RulePressRelease, mailText) ||
		m.match(domain.RulePRAssets, mailText) ||
		m.match(domain.RulePRFooter, mailText)
	s.CoverageRequest = m.match(domain.RuleCoverageAsk, mailText)
	s.EventInvite = m.match(domain.RuleEventInvite, mailText)
	s.CallInvite = m.match(domain.RuleCallSlots, mailText)
	s.Pricing = m.match(domain.RulePricing, mailText)
	s.PartnershipAsk = m.match(domain.RulePartnership, mailText) ||
		m.match(domain.RulePlatformAsk, mailText) ||
		m.match(domain.RuleContentAsk, mailText)

	explicitFree := m.match(domain.RuleExplicitFree, mailText)
	s.Barter = (s.CoverageRequest && s.EventInvite) || m.match(domain.RuleBarterTerms, mailText)
	s.FreeCoverage = s.CoverageRequest && explicitFree
	s.PRCore = s.PressStyle || s.CoverageRequest || s.EventInvite ||
		(s.PressStyle && m.match(domain.RuleEventKeywords, mailText))

	s.BigBrand = m.match(domain.RuleBigBrands, mailText)
	s.LargeBudget = m.match(domain.RuleLargeBudget, mailText)
	s.MultiYear = m.match(domain.RuleMultiYear, mailText)
	s.MultiMarket = m.match(domain.RuleMultiMarket, mailText)
	s.BudgetTerms = m.match(domain.RuleBudgetTerms, mailText)
	s.ConcreteScope = m.match(domain.RuleScopeTerms, mailText)

	s.AnyCommercial = s.PartnershipAsk || s.Pricing || s.Barter ||
		s.FreeCoverage || s.PRCore || s.CallInvite

	return s
}

// ModelSaysNoLead reports whether the model's free-text rationale contains
// explicit no-commercial-intent phrasing.
func (m *Matcher) ModelSaysNoLead(reasoning string) bool {
	return m.match(domain.RuleNoLeadPhrases, strings.ToLower(reasoning))
}

// isTestToken flags internal test emails: subjects or bodies consisting of
// bare "test"/"prueba" tokens.
func isTestToken(subjectLc, normalizedBody string) bool {
	if strings.Contains(subjectLc, "test") || strings.Contains(subjectLc, "prueba") {
		return true
	}
	switch {
	case normalizedBody == "test", normalizedBody == "prueba":
		return true
	case strings.HasPrefix(normalizedBody, "test "), strings.HasPrefix(normalizedBody, "prueba "):
		return true
	}
	return false
}

// MatcherHolder swaps matchers atomically when the rule table is refreshed.
type MatcherHolder struct {
	mu sync.RWMutex
	m  *Matcher
}

// NewMatcherHolder wraps an initial matcher.
func NewMatcherHolder(m *Matcher) *MatcherHolder {
	if m == nil {
		m = NewMatcher(nil)
	}
	return &MatcherHolder{m: m}
}

// Get returns the current matcher.
func (h *MatcherHolder) Get() *Matcher {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.m
}

// Swap replaces the current matcher.
func (h *MatcherHolder) Swap(m *Matcher) {
	if m == nil {
		return
	}
	h.mu.Lock()
	h.m = m
	h.mu.Unlock()
}
