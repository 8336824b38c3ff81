package domain

import (
	"strings"
	"unicode/utf8"
)

// Intent is the final lead qualification level.
type Intent string

const (
	IntentVeryHigh Intent = "Very High"
	IntentHigh     Intent = "High"
	IntentMedium   Intent = "Medium"
	IntentLow      Intent = "Low"
	IntentDiscard  Intent = "Discard"
)

// Level returns the numeric rank of the intent, Discard lowest.
func (i Intent) Level() int {
	switch i {
	case IntentVeryHigh:
		return 4
	case IntentHigh:
		return 3
	case IntentMedium:
		return 2
	case IntentLow:
		return 1
	default:
		return 0
	}
}

// NormalizeIntent maps a model's free-text intent label onto one of the five
// levels. Returns "" when the text matches none of them.
func NormalizeIntent(raw string) Intent {
	v := lowerTrim(raw)
	if v == "" {
		return ""
	}
	switch {
	case strings.Contains(v, "very") && strings.Contains(v, "high"):
		return IntentVeryHigh
	case strings.Contains(v, "high"):
		return IntentHigh
	case strings.Contains(v, "medium"):
		return IntentMedium
	case strings.Contains(v, "low"):
		return IntentLow
	case strings.Contains(v, "discard"), strings.Contains(v, "no lead"), strings.Contains(v, "not a lead"):
		return IntentDiscard
	default:
		return ""
	}
}

const (
	// MaxReasoningLen caps the classification rationale.
	MaxReasoningLen = 300
	// MaxPainHypothesisLen caps the pain hypothesis.
	MaxPainHypothesisLen = 250
)

// OpportunityFlags records which signal categories were detected. The flags
// are independent of which signal decided the final intent.
type OpportunityFlags struct {
	FreeCoverage bool `json:"free_coverage"`
	Barter       bool `json:"barter"`
	PRInvitation bool `json:"pr_invitation"`
	Pricing      bool `json:"pricing"`
}

// Any reports whether at least one opportunity flag is set.
func (f OpportunityFlags) Any() bool {
	return f.FreeCoverage || f.Barter || f.PRInvitation || f.Pricing
}

// ClassificationResult is the immutable output of classifying one message.
type ClassificationResult struct {
	Intent         Intent           `json:"intent"`
	Confidence     float64          `json:"confidence"`
	Reasoning      string           `json:"reasoning"`
	PainHypothesis string           `json:"pain_hypothesis"`
	Flags          OpportunityFlags `json:"flags"`
}

// Truncate trims s to at most max bytes without splitting a multi-byte rune.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// DefaultReasoningForIntent returns the per-level rationale template used when
// the model's rationale is missing or contradicts the final intent.
func DefaultReasoningForIntent(intent Intent) string {
	switch intent {
	case IntentVeryHigh:
		return "Lead clearly proposes a long-term or multi-market partnership with strong upside and explicit intent to work with us."
	case IntentHigh:
		return "Lead proposes a concrete commercial partnership or sponsorship with clear buying intent, budget or strong scope signals."
	case IntentMedium:
		return "Lead shows real interest in partnering or buying from us but lacks important details like budget, scope or timing."
	case IntentLow:
		return "Email carries PR/news, free coverage, barter or pricing signals that are relevant but small or early-stage, so it is kept as a low-priority opportunity instead of being discarded."
	default:
		return "Email does not represent PR/news, barter, pricing, free coverage or partnership intent towards us, so it is discarded."
	}
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
