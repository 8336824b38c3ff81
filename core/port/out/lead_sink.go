package out

import (
	"context"

	"leadscout/core/domain"
)

// CRMSink receives classification results and doubles as the idempotency
// oracle: a message id with an existing record is never reprocessed.
type CRMSink interface {
	// FindByMessageID returns the record for a message id, nil when absent.
	FindByMessageID(ctx context.Context, messageID string) (*domain.LeadRecord, error)

	// FindByMessageIDs returns the subset of ids that already have records.
	FindByMessageIDs(ctx context.Context, messageIDs []string) (map[string]*domain.LeadRecord, error)

	// Create persists a new record. An ALREADY_EXISTS error means another
	// instance recorded the message first.
	Create(ctx context.Context, record *domain.LeadRecord) (*domain.LeadRecord, error)
}

// IntentModel is the probabilistic classifier. Complete returns the model's
// raw text for a prompt; parsing is the engine's concern.
type IntentModel interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// SignalRuleStore loads and updates the versioned signal rule table.
type SignalRuleStore interface {
	// LoadActive returns the highest-version rule set, nil when none stored.
	LoadActive(ctx context.Context) (*domain.SignalRuleSet, error)

	// Save stores a new rule set version. Fails with ALREADY_EXISTS when the
	// version is already taken.
	Save(ctx context.Context, rs *domain.SignalRuleSet) error
}
