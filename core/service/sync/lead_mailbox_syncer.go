// Package sync converts push notifications and scheduled scans into an exact,
// deduplicated set of newly arrived inbox messages.
package sync

import (
	"context"
	"fmt"
	"strconv"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"
	"leadscout/pkg/retry"
)

const inboxLabel = "INBOX"

// Config holds syncer tuning.
type Config struct {
	// ScanPageSize bounds the full-inbox fallback scan.
	ScanPageSize int64
	// ChangePageSize is the page size requested from the change log.
	ChangePageSize int64
}

// DefaultConfig returns the standard sizes.
func DefaultConfig() Config {
	return Config{ScanPageSize: 100, ChangePageSize: 500}
}

// Syncer implements the incremental mailbox synchronization state machine.
type Syncer struct {
	provider out.MailboxProvider
	cursors  out.CursorStore
	retrier  *retry.Retrier
	cfg      Config
}

// NewSyncer creates a mailbox syncer.
func NewSyncer(provider out.MailboxProvider, cursors out.CursorStore, retrier *retry.Retrier, cfg Config) *Syncer {
	if cfg.ScanPageSize <= 0 {
		cfg.ScanPageSize = 100
	}
	if cfg.ChangePageSize <= 0 {
		cfg.ChangePageSize = 500
	}
	if retrier == nil {
		retrier = retry.New(retry.DefaultConfig())
	}
	return &Syncer{provider: provider, cursors: cursors, retrier: retrier, cfg: cfg}
}

// Sync returns the set of new inbox message ids since the stored cursor.
// notifCursor is the cursor hint carried by the push notification, "" when
// the trigger was a scheduled scan or the notification was malformed.
//
// The returned delta's NewCursor is the value to persist after the batch is
// handled; "" means the cursor must not be advanced.
func (s *Syncer) Sync(ctx context.Context, notifCursor string) (*domain.InboxDelta, error) {
	stored, err := s.cursors.Load(ctx)
	if err != nil {
		logger.WithError(err).Warn("cursor load failed, treating as first run")
		stored = ""
	}

	if stored == "" {
		return s.bootstrap(ctx, notifCursor)
	}

	// Duplicate or out-of-order notification: nothing new.
	if notifCursor != "" && cursorLE(notifCursor, stored) {
		logger.WithFields(map[string]any{
			"stored_cursor": stored,
			"notif_cursor":  notifCursor,
		}).Debug("notification cursor not ahead of stored cursor, skipping")
		return &domain.InboxDelta{IDs: []string{}, NewCursor: stored}, nil
	}

	ids, err := s.collectChanges(ctx, stored)
	if err != nil {
		if apperr.IsStaleCursor(err) || apperr.IsNotFound(err) {
			logger.WithFields(map[string]any{"stored_cursor": stored}).
				Warn("change log rejected stored cursor, falling back to inbox scan")
			return s.fallbackScan(ctx, notifCursor)
		}
		return nil, fmt.Errorf("change log sync from %s: %w", stored, err)
	}

	newCursor := stored
	if notifCursor != "" {
		newCursor = notifCursor
	}

	logger.WithFields(map[string]any{
		"new_messages":  len(ids),
		"stored_cursor": stored,
		"notif_cursor":  notifCursor,
	}).Info("change log delta complete")

	return &domain.InboxDelta{IDs: ids, NewCursor: newCursor}, nil
}

// bootstrap handles the first run (or post-reset): record the mailbox's
// current cursor as baseline and over-fetch via a bounded inbox scan.
func (s *Syncer) bootstrap(ctx context.Context, notifCursor string) (*domain.InboxDelta, error) {
	baseline := ""
	err := s.retrier.Do(ctx, "mailbox.profile", func() error {
		var perr error
		baseline, perr = s.provider.ProfileCursor(ctx)
		return perr
	})
	if err != nil {
		logger.WithError(err).Error("profile cursor lookup failed on first run")
	} else if baseline != "" {
		if err := s.cursors.Save(ctx, baseline); err != nil {
			logger.WithError(err).Error("baseline cursor save failed")
		} else {
			logger.WithFields(map[string]any{"cursor": baseline}).Info("baseline cursor recorded from profile")
		}
		if err := s.cursors.ClearReset(ctx); err != nil {
			logger.WithError(err).Warn("reset marker clear failed")
		}
	}

	delta, err := s.scanInbox(ctx)
	if err != nil {
		return nil, err
	}

	delta.NewCursor = baseline
	if notifCursor != "" {
		delta.NewCursor = notifCursor
	}
	return delta, nil
}

// fallbackScan handles a stale stored cursor: over-fetch the inbox and only
// advance the cursor when the notification supplied one.
func (s *Syncer) fallbackScan(ctx context.Context, notifCursor string) (*domain.InboxDelta, error) {
	delta, err := s.scanInbox(ctx)
	if err != nil {
		return nil, err
	}
	delta.NewCursor = notifCursor
	return delta, nil
}

func (s *Syncer) scanInbox(ctx context.Context) (*domain.InboxDelta, error) {
	var ids []string
	err := s.retrier.Do(ctx, "mailbox.scan", func() error {
		var lerr error
		ids, lerr = s.provider.ListInbox(ctx, s.cfg.ScanPageSize)
		return lerr
	})
	if err != nil {
		return nil, fmt.Errorf("inbox fallback scan: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	logger.WithFields(map[string]any{"messages": len(ids)}).Info("inbox fallback scan complete")
	return &domain.InboxDelta{IDs: ids, UsedFallback: true}, nil
}

// collectChanges pages through the change log accumulating the ids of added
// messages that landed in the inbox. The id set deduplicates events that the
// log reports more than once.
func (s *Syncer) collectChanges(ctx context.Context, startCursor string) ([]string, error) {
	seen := make(map[string]struct{})
	ids := []string{}
	pageToken := ""

	for {
		var page *out.ChangePage
		err := s.retrier.Do(ctx, "mailbox.changes", func() error {
			var lerr error
			page, lerr = s.provider.ListChanges(ctx, out.ChangeQuery{
				StartCursor: startCursor,
				PageToken:   pageToken,
				PageSize:    s.cfg.ChangePageSize,
			})
			return lerr
		})
		if err != nil {
			return nil, err
		}

		for _, ev := range page.Events {
			if ev.MessageID == "" {
				continue
			}
			if !hasLabel(ev.Labels, inboxLabel) {
				continue
			}
			if _, dup := seen[ev.MessageID]; dup {
				continue
			}
			seen[ev.MessageID] = struct{}{}
			ids = append(ids, ev.MessageID)
		}

		if page.NextPageToken == "" {
			return ids, nil
		}
		pageToken = page.NextPageToken
	}
}

// Commit persists the cursor position reached by a handled delta. An empty
// NewCursor leaves the stored cursor untouched, and the cursor never moves
// backwards.
func (s *Syncer) Commit(ctx context.Context, delta *domain.InboxDelta) error {
	if delta == nil || delta.NewCursor == "" {
		return nil
	}
	stored, err := s.cursors.Load(ctx)
	if err == nil && stored != "" && cursorLE(delta.NewCursor, stored) {
		return nil
	}
	if err := s.cursors.Save(ctx, delta.NewCursor); err != nil {
		return fmt.Errorf("cursor save: %w", err)
	}
	logger.WithFields(map[string]any{"cursor": delta.NewCursor}).Debug("cursor advanced")
	return nil
}

// Reset clears the stored cursor and records the reset marker. The next sync
// takes the baseline-and-scan path.
func (s *Syncer) Reset(ctx context.Context) error {
	if err := s.cursors.Clear(ctx); err != nil {
		return fmt.Errorf("cursor clear: %w", err)
	}
	if err := s.cursors.MarkReset(ctx); err != nil {
		return fmt.Errorf("reset marker: %w", err)
	}
	logger.Info("cursor state reset")
	return nil
}

// cursorLE reports a <= b for string-encoded integer cursors. Unparseable
// values compare as not-LE so a malformed notification falls through to the
// normal delta path.
func cursorLE(a, b string) bool {
	ai, errA := strconv.ParseUint(a, 10, 64)
	bi, errB := strconv.ParseUint(b, 10, 64)
	if errA != nil || errB != nil {
		return false
	}
	return ai <= bi
}

func hasLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
