package classification

import (
	"context"
	"strings"

	"github.com/goccy/go-json"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/pkg/logger"
)

// Engine classifies one message at a time. The model pass is advisory; the
// heuristic ladder decides, first match wins, and the safety nets run last so
// never-discard categories cannot fall through.
type Engine struct {
	model  out.IntentModel
	holder *MatcherHolder
}

// NewEngine builds an engine. model may be nil, in which case classification
// runs on heuristics alone.
func NewEngine(model out.IntentModel, holder *MatcherHolder) *Engine {
	if holder == nil {
		holder = NewMatcherHolder(nil)
	}
	return &Engine{model: model, holder: holder}
}

// modelOutput is the advisory payload parsed from the model response. Any
// shape is tolerated; absent fields keep their zero values.
type modelOutput struct {
	Intent         string  `json:"intent"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	PainHypothesis string  `json:"meddic_pain_hypothesis"`
	LegacyPain     string  `json:"meddic_identify_pain"`
	FreeCoverage   bool    `json:"free_coverage_request"`
	Barter         bool    `json:"barter_request"`
	PRInvitation   bool    `json:"pr_invitation"`
	Pricing        bool    `json:"pricing_request"`
}

// Classify runs the model pass, the deterministic ladder and the safety nets
// for one message. It never fails: a model outage or unparseable response
// degrades to heuristics-only classification.
func (e *Engine) Classify(ctx context.Context, msg *domain.Message) domain.ClassificationResult {
	log := logger.WithMessageID(msg.ID)

	mo := e.modelPass(ctx, msg, log)
	matcher := e.holder.Get()
	sig := matcher.Detect(msg)

	modelReasoning := domain.Truncate(strings.TrimSpace(mo.Reasoning), domain.MaxReasoningLen)
	modelPain := strings.TrimSpace(mo.PainHypothesis)
	if modelPain == "" {
		modelPain = strings.TrimSpace(mo.LegacyPain)
	}
	modelPain = domain.Truncate(modelPain, domain.MaxPainHypothesisLen)

	// Hard veto: unsubscribe wins over everything, flags stay false.
	if sig.Unsubscribe {
		return domain.ClassificationResult{
			Intent:         domain.IntentDiscard,
			Confidence:     0.99,
			Reasoning:      "Email includes unsubscribe/opt-out style language, so it is treated as a generic mailing and discarded regardless of other signals.",
			PainHypothesis: "",
		}
	}

	var intent domain.Intent
	var confidence float64
	reasoning := modelReasoning

	// Noise overrides.
	switch {
	case sig.TestEmail:
		intent = domain.IntentDiscard
		confidence = 0.99
		reasoning = "Internal or testing email with no business or partnership context, so it is discarded."
	case sig.SocialNotification:
		intent = domain.IntentDiscard
		confidence = 0.99
		reasoning = "Automated social network notification with no commercial or partnership intent, so it is discarded."
	case matcher.ModelSaysNoLead(modelReasoning) && !sig.AnyCommercial:
		intent = domain.IntentDiscard
		confidence = 0.96
		reasoning = "Model reasoning indicates this is not a PR, barter, pricing, free coverage or partnership opportunity and no strong signals contradict that."
	}

	// Positive-signal ladder, first match wins.
	if intent == "" {
		switch {
		case sig.PartnershipAsk:
			switch {
			case sig.MultiYear || sig.MultiMarket || sig.BigBrand || sig.LargeBudget:
				intent = domain.IntentVeryHigh
				confidence = 0.86
			case sig.BudgetTerms || sig.Pricing || sig.ConcreteScope:
				intent = domain.IntentHigh
				confidence = 0.8
			default:
				intent = domain.IntentMedium
				confidence = 0.72
			}
		case sig.Pricing:
			switch {
			case sig.BigBrand:
				intent = domain.IntentVeryHigh
				confidence = 0.85
			case sig.ConcreteScope || sig.BudgetTerms:
				intent = domain.IntentHigh
				confidence = 0.8
			default:
				intent = domain.IntentMedium
				confidence = 0.75
			}
		case sig.Barter, sig.FreeCoverage, sig.PRCore, sig.CallInvite:
			intent = domain.IntentLow
			confidence = 0.65
		case sig.AnyCommercial:
			intent = domain.IntentLow
			confidence = 0.6
		}
	}

	// Fallback to the model's own stated intent.
	if intent == "" {
		if mi := domain.NormalizeIntent(mo.Intent); mi != "" {
			intent = mi
			confidence = 0.7
			switch {
			case mi == domain.IntentVeryHigh && !sig.BigBrand && !sig.LargeBudget && !sig.MultiYear && !sig.MultiMarket:
				intent = domain.IntentHigh
				confidence = 0.75
			case mi == domain.IntentLow && sig.PartnershipAsk:
				intent = domain.IntentMedium
				confidence = 0.72
			}
		}
	}

	// Final fallback.
	if intent == "" {
		switch {
		case !sig.AnyCommercial:
			intent = domain.IntentDiscard
			confidence = 0.9
			reasoning = "Email does not fit PR, barter, pricing, free coverage or partnership patterns, so it is discarded."
		case sig.PartnershipAsk || sig.Pricing:
			intent = domain.IntentMedium
			confidence = 0.7
		default:
			intent = domain.IntentLow
			confidence = 0.65
		}
	}

	// Flags combine model checkboxes with heuristic detection; they are
	// independent of which branch decided the intent.
	flags := domain.OpportunityFlags{
		FreeCoverage: mo.FreeCoverage || sig.FreeCoverage,
		Barter:       mo.Barter || sig.Barter,
		PRInvitation: mo.PRInvitation || sig.PRCore,
		Pricing:      mo.Pricing || sig.Pricing,
	}

	// Never-discard categories.
	neverDiscard := flags.Any() || sig.EventInvite || sig.CallInvite || sig.PartnershipAsk
	if intent == domain.IntentDiscard && neverDiscard {
		if sig.PartnershipAsk || flags.Pricing {
			intent = domain.IntentMedium
		} else {
			intent = domain.IntentLow
		}
		confidence = maxFloat(confidence, 0.7)
		reasoning = "Email contains PR, coverage, barter, pricing, meeting or partnership signals, so it is treated as a real opportunity instead of being discarded."
	}

	// Low is only valid with at least one opportunity flag.
	if intent == domain.IntentLow && !flags.Any() {
		intent = domain.IntentMedium
		confidence = maxFloat(confidence, 0.7)
	}

	pain := modelPain
	if intent == domain.IntentDiscard {
		pain = ""
	} else if pain == "" {
		pain = domain.Truncate(painHypothesisFor(sig, msg), domain.MaxPainHypothesisLen)
	}

	reasoning = coherentReasoning(reasoning, intent, matcher)

	return domain.ClassificationResult{
		Intent:         intent,
		Confidence:     clamp01(confidence),
		Reasoning:      domain.Truncate(reasoning, domain.MaxReasoningLen),
		PainHypothesis: pain,
		Flags:          flags,
	}
}

// modelPass calls the model and parses its response leniently: everything
// from the first "{" through the last "}" is attempted as JSON, and any
// failure along the way yields an empty advisory output.
func (e *Engine) modelPass(ctx context.Context, msg *domain.Message, log *logger.Logger) modelOutput {
	var mo modelOutput
	if e.model == nil {
		return mo
	}

	raw, err := e.model.Complete(ctx, BuildPrompt(msg))
	if err != nil {
		log.WithError(err).Warn("model call failed, continuing with heuristics only")
		return modelOutput{}
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		log.Warn("model response has no JSON object, continuing with heuristics only")
		return modelOutput{}
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &mo); err != nil {
		log.WithError(err).Warn("model response is not clean JSON, continuing with heuristics only")
		return modelOutput{}
	}
	return mo
}

// painHypothesisFor synthesizes a pain hypothesis from the branch that fired.
func painHypothesisFor(sig Signals, msg *domain.Message) string {
	mailText := strings.ToLower(msg.Subject + "\n" + msg.Body)
	switch {
	case sig.Barter:
		return "Limited cash marketing budget is pushing them to trade invitations or experiences for exposure and coverage."
	case sig.FreeCoverage || sig.PRCore:
		return "They rely on earned media and editorial exposure to boost awareness and attendance without strong paid media investment."
	case sig.Pricing:
		return "Unclear media costs are blocking planning of campaigns, creating risk of delayed or suboptimal investment."
	case sig.PartnershipAsk:
		return "They lack a strong media or distribution partner to scale reach and engagement for their events, artists or experiences."
	case strings.Contains(mailText, "ticket") || strings.Contains(mailText, "event"):
		return "Insufficient reach is limiting event attendance and ticket revenue, prompting the search for stronger promotional partners."
	case strings.Contains(mailText, "sponsor"):
		return "Brand visibility is lagging in key markets, prompting them to explore sponsorships and high-impact placements."
	default:
		return "They are seeking partners to improve reach, engagement and efficiency of their marketing and commercial efforts."
	}
}

// coherentReasoning replaces a rationale whose sentiment contradicts the
// final intent with the per-level template.
func coherentReasoning(reasoning string, intent domain.Intent, matcher *Matcher) string {
	if strings.TrimSpace(reasoning) == "" {
		return domain.DefaultReasoningForIntent(intent)
	}
	looksDiscard := matcher.ModelSaysNoLead(reasoning) ||
		strings.Contains(strings.ToLower(reasoning), "discard")
	if intent == domain.IntentDiscard && !looksDiscard {
		return domain.DefaultReasoningForIntent(domain.IntentDiscard)
	}
	if intent != domain.IntentDiscard && looksDiscard {
		return domain.DefaultReasoningForIntent(intent)
	}
	return reasoning
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
