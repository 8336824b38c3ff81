package domain

import "time"

// LeadRecord is the row persisted to the CRM sink for one qualified message.
type LeadRecord struct {
	ID         int64     `db:"id"`
	MessageID  string    `db:"message_id"`
	Source     string    `db:"source"`
	FromEmail  string    `db:"from_email"`
	ToEmail    string    `db:"to_email"`
	Cc         string    `db:"cc_emails"`
	Subject    string    `db:"subject"`
	Body       string    `db:"body"`
	ReceivedAt time.Time `db:"received_at"`

	Intent         Intent  `db:"intent"`
	Confidence     float64 `db:"confidence"`
	Reasoning      string  `db:"reasoning"`
	PainHypothesis string  `db:"pain_hypothesis"`
	FreeCoverage   bool    `db:"free_coverage"`
	Barter         bool    `db:"barter"`
	PRInvitation   bool    `db:"pr_invitation"`
	Pricing        bool    `db:"pricing"`

	CreatedAt time.Time `db:"created_at"`
}
