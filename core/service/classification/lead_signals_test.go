package classification

import (
	"testing"

	"leadscout/core/domain"
)

func detect(t *testing.T, subject, body string) Signals {
	t.Helper()
	m := NewMatcher(nil)
	return m.Detect(&domain.Message{From: "sender@example.com", Subject: subject, Body: body})
}

func TestDetectUnsubscribe(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"english", "Click here to unsubscribe from this list", true},
		{"opt-out variant", "You can opt-out at any time", true},
		{"spanish", "Para darse de baja, haz clic aqui", true},
		{"french", "Pour se desabonner cliquez ici", true},
		{"clean", "We would like to partner with you", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detect(t, "Hello", tt.body).Unsubscribe; got != tt.want {
				t.Errorf("Unsubscribe = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectTestEmail(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    bool
	}{
		{"bare test subject", "test", "anything", true},
		{"prueba subject", "prueba de envio", "hola", true},
		{"test body token", "Hello", "test", true},
		{"test body prefix", "Hello", "test please ignore", true},
		{"test phrase", "Hello", "this is a test email from our side", true},
		{"regular mail", "Weekly roundup", "our greatest hits", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detect(t, tt.subject, tt.body).TestEmail; got != tt.want {
				t.Errorf("TestEmail = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectSocialNotificationNeedsSenderAndPhrasing(t *testing.T) {
	m := NewMatcher(nil)

	notif := &domain.Message{
		From:    "no-reply@facebookmail.com",
		Subject: "Security alert",
		Body:    "We've noticed a new login to your account.",
	}
	if !m.Detect(notif).SocialNotification {
		t.Error("expected social notification for social sender with notification phrasing")
	}

	// Same text from a regular sender is not a notification.
	notif.From = "person@example.com"
	if m.Detect(notif).SocialNotification {
		t.Error("notification phrasing alone must not flag a regular sender")
	}

	// Social sender writing a real email is not a notification.
	real := &domain.Message{
		From:    "partnerships@instagram.com",
		Subject: "Collaboration",
		Body:    "We would like to partner with your network.",
	}
	if m.Detect(real).SocialNotification {
		t.Error("social sender without notification phrasing must not be flagged")
	}
}

func TestDetectBarterVsFreeCoverage(t *testing.T) {
	// Coverage ask + explicit free wording.
	s := detect(t, "Our event", "We would love you to feature our event for free, no budget for paid media.")
	if !s.FreeCoverage {
		t.Error("expected FreeCoverage")
	}

	// "free coverage" on its own is a coverage ask.
	s = detect(t, "Our festival", "We'd love free coverage of our event, no budget available")
	if !s.CoverageRequest {
		t.Error("expected CoverageRequest for a free coverage ask")
	}
	if !s.FreeCoverage {
		t.Error("expected FreeCoverage for a free coverage ask with no budget")
	}

	// Coverage ask + event invite is barter, not free coverage.
	s = detect(t, "Our event", "We would love you to feature our event. We would love to invite you to the opening night.")
	if !s.Barter {
		t.Error("expected Barter for coverage plus invitation")
	}
	if s.FreeCoverage {
		t.Error("invitation in exchange is not a free coverage request")
	}

	// Explicit exchange wording alone.
	s = detect(t, "Proposal", "We can offer studio time in exchange for a feature.")
	if !s.Barter {
		t.Error("expected Barter for explicit exchange wording")
	}
}

func TestDetectSecondarySignals(t *testing.T) {
	s := detect(t, "Partnership proposal",
		"Nike is planning a multi-year, nationwide campaign, budget over 50k, around 5 articles per month.")
	if !s.BigBrand {
		t.Error("expected BigBrand")
	}
	if !s.MultiYear {
		t.Error("expected MultiYear")
	}
	if !s.MultiMarket {
		t.Error("expected MultiMarket")
	}
	if !s.LargeBudget {
		t.Error("expected LargeBudget")
	}
	if !s.BudgetTerms {
		t.Error("expected BudgetTerms")
	}
	if !s.ConcreteScope {
		t.Error("expected ConcreteScope")
	}
}

func TestDetectPricingMultiLanguage(t *testing.T) {
	bodies := []string{
		"Could you share your rate card?",
		"Please send over your media kit.",
		"Cuanto cuesta anunciarse en vuestro medio?",
		"What are your rates for banner advertising?",
	}
	for _, body := range bodies {
		if !detect(t, "Question", body).Pricing {
			t.Errorf("expected Pricing for %q", body)
		}
	}
}

func TestNewMatcherSkipsBadPatterns(t *testing.T) {
	rs := &domain.SignalRuleSet{
		Version: 7,
		Patterns: map[string][]string{
			domain.RulePricing: {`(unclosed`, `media kit`},
		},
	}
	m := NewMatcher(rs)
	if m.Version() != 7 {
		t.Errorf("expected version 7, got %d", m.Version())
	}
	s := m.Detect(&domain.Message{Subject: "Hi", Body: "please send your media kit"})
	if !s.Pricing {
		t.Error("valid pattern must survive a bad one in the same category")
	}
}

func TestMatcherHolderSwap(t *testing.T) {
	h := NewMatcherHolder(nil)
	if h.Get() == nil {
		t.Fatal("holder must fall back to default matcher")
	}
	next := NewMatcher(&domain.SignalRuleSet{Version: 3, Patterns: map[string][]string{}})
	h.Swap(next)
	if h.Get().Version() != 3 {
		t.Errorf("expected swapped matcher version 3, got %d", h.Get().Version())
	}
	h.Swap(nil)
	if h.Get().Version() != 3 {
		t.Error("nil swap must keep the current matcher")
	}
}
