package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/pkg/apperr"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// =============================================================================
// Postgres Lead Sink
// =============================================================================

const pgUniqueViolation = "23505"

const leadRecordColumns = `
	id, message_id, source, from_email, to_email, cc_emails,
	subject, body, received_at,
	intent, confidence, reasoning, pain_hypothesis,
	free_coverage, barter, pr_invitation, pricing,
	created_at`

// LeadSinkAdapter persists classification results to the lead_records table.
// The unique index on message_id makes it the idempotency oracle for the
// whole pipeline.
type LeadSinkAdapter struct {
	db *sqlx.DB
}

// NewLeadSinkAdapter creates a new lead sink adapter.
func NewLeadSinkAdapter(db *sqlx.DB) *LeadSinkAdapter {
	return &LeadSinkAdapter{db: db}
}

// FindByMessageID returns the record for a message id, nil when absent.
func (a *LeadSinkAdapter) FindByMessageID(ctx context.Context, messageID string) (*domain.LeadRecord, error) {
	query := `SELECT ` + leadRecordColumns + ` FROM lead_records WHERE message_id = $1`

	var record domain.LeadRecord
	err := a.db.GetContext(ctx, &record, query, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Database(err)
	}
	return &record, nil
}

// FindByMessageIDs returns the subset of ids that already have records.
func (a *LeadSinkAdapter) FindByMessageIDs(ctx context.Context, messageIDs []string) (map[string]*domain.LeadRecord, error) {
	found := make(map[string]*domain.LeadRecord, len(messageIDs))
	if len(messageIDs) == 0 {
		return found, nil
	}

	query := `SELECT ` + leadRecordColumns + ` FROM lead_records WHERE message_id = ANY($1)`

	var records []domain.LeadRecord
	if err := a.db.SelectContext(ctx, &records, query, pq.Array(messageIDs)); err != nil {
		return nil, apperr.Database(err)
	}

	for i := range records {
		found[records[i].MessageID] = &records[i]
	}
	return found, nil
}

// Create persists a new record. A message id collision surfaces as
// ALREADY_EXISTS so callers can treat the race as a skip.
func (a *LeadSinkAdapter) Create(ctx context.Context, record *domain.LeadRecord) (*domain.LeadRecord, error) {
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO lead_records (
			message_id, source, from_email, to_email, cc_emails,
			subject, body, received_at,
			intent, confidence, reasoning, pain_hypothesis,
			free_coverage, barter, pr_invitation, pricing
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16
		)
		RETURNING id, created_at`

	err := a.db.QueryRowxContext(ctx, query,
		record.MessageID, record.Source, record.FromEmail, record.ToEmail, record.Cc,
		record.Subject, record.Body, record.ReceivedAt,
		record.Intent, record.Confidence, record.Reasoning, record.PainHypothesis,
		record.FreeCoverage, record.Barter, record.PRInvitation, record.Pricing,
	).Scan(&record.ID, &record.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, apperr.AlreadyExists("message already recorded: " + record.MessageID)
		}
		return nil, apperr.Database(err)
	}
	return record, nil
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.CRMSink = (*LeadSinkAdapter)(nil)
