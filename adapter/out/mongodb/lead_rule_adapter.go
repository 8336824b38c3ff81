// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/pkg/apperr"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// =============================================================================
// MongoDB Signal Rule Adapter
// =============================================================================

const collectionSignalRules = "signal_rule_sets"

// SignalRuleAdapter stores versioned signal rule sets. Versions are
// append-only; the highest version is the active one.
type SignalRuleAdapter struct {
	collection *mongo.Collection
}

// NewSignalRuleAdapter creates a new rule store adapter.
func NewSignalRuleAdapter(db *mongo.Database) *SignalRuleAdapter {
	return &SignalRuleAdapter{collection: db.Collection(collectionSignalRules)}
}

// EnsureIndexes creates the unique version index.
func (a *SignalRuleAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// LoadActive returns the highest-version rule set, nil when none stored.
func (a *SignalRuleAdapter) LoadActive(ctx context.Context) (*domain.SignalRuleSet, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var rs domain.SignalRuleSet
	err := a.collection.FindOne(ctx, bson.M{}, opts).Decode(&rs)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &rs, nil
}

// Save stores a new rule set version. A taken version fails with
// ALREADY_EXISTS so concurrent editors cannot silently overwrite each other.
func (a *SignalRuleAdapter) Save(ctx context.Context, rs *domain.SignalRuleSet) error {
	if rs.UpdatedAt.IsZero() {
		rs.UpdatedAt = time.Now().UTC()
	}

	_, err := a.collection.InsertOne(ctx, rs)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.AlreadyExists(fmt.Sprintf("rule set version %d already stored", rs.Version))
	}
	if err != nil {
		return apperr.Database(err)
	}
	return nil
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.SignalRuleStore = (*SignalRuleAdapter)(nil)
