// Package out defines the outbound ports implemented by adapters.
package out

import (
	"context"
	"time"

	"leadscout/core/domain"
)

// ChangeQuery selects a page of the mailbox change log.
type ChangeQuery struct {
	StartCursor string
	PageToken   string
	PageSize    int64
}

// ChangeEvent is one "message added" event from the change log.
type ChangeEvent struct {
	MessageID string
	Labels    []string
}

// ChangePage is one page of change-log events.
type ChangePage struct {
	Events        []ChangeEvent
	NextPageToken string
	LatestCursor  string
}

// WatchResult describes an established push-notification watch.
type WatchResult struct {
	Cursor     string
	Expiration time.Time
}

// MailboxProvider abstracts the remote mailbox. Implementations surface
// apperr codes: STALE_CURSOR when the change log rejects the start cursor,
// NOT_FOUND when a message vanished, RATE_LIMITED on quota errors.
type MailboxProvider interface {
	// Source identifies the provider for lock keys and record rows.
	Source() string

	// ProfileCursor returns the mailbox's current change-log position.
	ProfileCursor(ctx context.Context) (string, error)

	// ListChanges returns one page of "message added" events at or after the
	// query's start cursor.
	ListChanges(ctx context.Context, q ChangeQuery) (*ChangePage, error)

	// ListInbox returns up to max message ids currently in the inbox.
	ListInbox(ctx context.Context, max int64) ([]string, error)

	// GetMessage fetches the full message.
	GetMessage(ctx context.Context, id string) (*domain.Message, error)

	// AddLabel applies a label to a message.
	AddLabel(ctx context.Context, id, labelID string) error

	// ListLabels returns the mailbox's labels as lowercased name -> id.
	ListLabels(ctx context.Context) (map[string]string, error)

	// Watch registers push notifications for the inbox and returns the cursor
	// baseline reported by the provider.
	Watch(ctx context.Context) (*WatchResult, error)
}
