package sync

import (
	"context"
	"strconv"
	"testing"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/pkg/apperr"
)

type fakeCursorStore struct {
	cursor     string
	loadErr    error
	resetMark  bool
	saveCalls  int
	clearCalls int
}

func (f *fakeCursorStore) Load(ctx context.Context) (string, error) {
	return f.cursor, f.loadErr
}
func (f *fakeCursorStore) Save(ctx context.Context, cursor string) error {
	f.cursor = cursor
	f.saveCalls++
	return nil
}
func (f *fakeCursorStore) Clear(ctx context.Context) error {
	f.cursor = ""
	f.clearCalls++
	return nil
}
func (f *fakeCursorStore) MarkReset(ctx context.Context) error {
	f.resetMark = true
	return nil
}
func (f *fakeCursorStore) WasReset(ctx context.Context) (bool, error) {
	return f.resetMark, nil
}
func (f *fakeCursorStore) ClearReset(ctx context.Context) error {
	f.resetMark = false
	return nil
}

type fakeMailbox struct {
	profileCursor string
	inboxIDs      []string
	pages         []*out.ChangePage
	changesErr    error
	pageCalls     int
	scanCalls     int
}

func (f *fakeMailbox) Source() string { return "gmail" }
func (f *fakeMailbox) ProfileCursor(ctx context.Context) (string, error) {
	return f.profileCursor, nil
}
func (f *fakeMailbox) ListChanges(ctx context.Context, q out.ChangeQuery) (*out.ChangePage, error) {
	if f.changesErr != nil {
		return nil, f.changesErr
	}
	if f.pageCalls >= len(f.pages) {
		return &out.ChangePage{}, nil
	}
	page := f.pages[f.pageCalls]
	f.pageCalls++
	return page, nil
}
func (f *fakeMailbox) ListInbox(ctx context.Context, max int64) ([]string, error) {
	f.scanCalls++
	if int64(len(f.inboxIDs)) > max {
		return f.inboxIDs[:max], nil
	}
	return f.inboxIDs, nil
}
func (f *fakeMailbox) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	return nil, nil
}
func (f *fakeMailbox) AddLabel(ctx context.Context, id, labelID string) error { return nil }
func (f *fakeMailbox) ListLabels(ctx context.Context) (map[string]string, error) {
	return nil, nil
}
func (f *fakeMailbox) Watch(ctx context.Context) (*out.WatchResult, error) {
	return &out.WatchResult{Cursor: f.profileCursor}, nil
}

func newTestSyncer(provider out.MailboxProvider, cursors out.CursorStore) *Syncer {
	return NewSyncer(provider, cursors, nil, DefaultConfig())
}

func TestSyncStaleNotificationReturnsEmpty(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "200"}
	mailbox := &fakeMailbox{pages: []*out.ChangePage{{
		Events: []out.ChangeEvent{{MessageID: "m1", Labels: []string{"INBOX"}}},
	}}}
	s := newTestSyncer(mailbox, cursors)

	for _, notif := range []string{"200", "150", "1"} {
		delta, err := s.Sync(context.Background(), notif)
		if err != nil {
			t.Fatalf("notif %s: %v", notif, err)
		}
		if len(delta.IDs) != 0 {
			t.Errorf("notif %s: expected empty delta, got %v", notif, delta.IDs)
		}
		if delta.NewCursor != "200" {
			t.Errorf("notif %s: cursor must stay 200, got %s", notif, delta.NewCursor)
		}
	}
	if mailbox.pageCalls != 0 {
		t.Error("stale notifications must not hit the change log")
	}
}

func TestSyncBootstrapPersistsBaselineAndScans(t *testing.T) {
	cursors := &fakeCursorStore{resetMark: true}
	mailbox := &fakeMailbox{profileCursor: "100", inboxIDs: []string{"a", "b", "c"}}
	s := newTestSyncer(mailbox, cursors)

	delta, err := s.Sync(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(delta.IDs) != 3 {
		t.Errorf("expected 3 ids, got %v", delta.IDs)
	}
	if !delta.UsedFallback {
		t.Error("bootstrap must report fallback")
	}
	if cursors.cursor != "100" {
		t.Errorf("profile cursor must be persisted, stored %q", cursors.cursor)
	}
	if delta.NewCursor != "100" {
		t.Errorf("expected NewCursor 100, got %q", delta.NewCursor)
	}
	if cursors.resetMark {
		t.Error("bootstrap must clear the reset marker")
	}
}

func TestSyncBootstrapPrefersNotificationCursor(t *testing.T) {
	cursors := &fakeCursorStore{}
	mailbox := &fakeMailbox{profileCursor: "100", inboxIDs: []string{"a"}}
	s := newTestSyncer(mailbox, cursors)

	delta, err := s.Sync(context.Background(), "140")
	if err != nil {
		t.Fatal(err)
	}
	if delta.NewCursor != "140" {
		t.Errorf("notification cursor wins on bootstrap, got %q", delta.NewCursor)
	}
}

func TestSyncPagesAndDeduplicates(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "100"}
	mailbox := &fakeMailbox{pages: []*out.ChangePage{
		{
			Events: []out.ChangeEvent{
				{MessageID: "m1", Labels: []string{"INBOX"}},
				{MessageID: "m2", Labels: []string{"INBOX"}},
				{MessageID: "m1", Labels: []string{"INBOX"}},
				{MessageID: "spam", Labels: []string{"SPAM"}},
			},
			NextPageToken: "page-2",
		},
		{
			Events: []out.ChangeEvent{
				{MessageID: "m2", Labels: []string{"INBOX"}},
				{MessageID: "m3", Labels: []string{"INBOX"}},
				{MessageID: "", Labels: []string{"INBOX"}},
			},
		},
	}}
	s := newTestSyncer(mailbox, cursors)

	delta, err := s.Sync(context.Background(), "180")
	if err != nil {
		t.Fatal(err)
	}
	if len(delta.IDs) != 3 {
		t.Errorf("expected m1,m2,m3 once each, got %v", delta.IDs)
	}
	if delta.UsedFallback {
		t.Error("normal delta must not report fallback")
	}
	if delta.NewCursor != "180" {
		t.Errorf("expected notification cursor 180, got %q", delta.NewCursor)
	}
	if mailbox.pageCalls != 2 {
		t.Errorf("expected 2 pages consumed, got %d", mailbox.pageCalls)
	}
}

func TestSyncScheduledScanKeepsStoredCursor(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "100"}
	mailbox := &fakeMailbox{pages: []*out.ChangePage{{
		Events: []out.ChangeEvent{{MessageID: "m1", Labels: []string{"INBOX"}}},
	}}}
	s := newTestSyncer(mailbox, cursors)

	delta, err := s.Sync(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if delta.NewCursor != "100" {
		t.Errorf("scan without notification keeps stored cursor, got %q", delta.NewCursor)
	}
}

func TestSyncStaleCursorFallsBackToScan(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "100"}
	mailbox := &fakeMailbox{
		changesErr: apperr.StaleCursor(""),
		inboxIDs:   []string{"x", "y"},
	}
	s := newTestSyncer(mailbox, cursors)

	delta, err := s.Sync(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if !delta.UsedFallback {
		t.Error("stale cursor must fall back to scan")
	}
	if len(delta.IDs) != 2 {
		t.Errorf("expected scan ids, got %v", delta.IDs)
	}
	if delta.NewCursor != "" {
		t.Errorf("fallback without notification must not advance the cursor, got %q", delta.NewCursor)
	}

	delta, err = s.Sync(context.Background(), "300")
	if err != nil {
		t.Fatal(err)
	}
	if delta.NewCursor != "300" {
		t.Errorf("fallback with notification advances to it, got %q", delta.NewCursor)
	}
}

func TestSyncCursorMonotonicity(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "100"}
	mailbox := &fakeMailbox{}
	s := newTestSyncer(mailbox, cursors)

	prev := uint64(100)
	for _, notif := range []string{"90", "100", "150", "120", "200"} {
		mailbox.pageCalls = 0
		delta, err := s.Sync(context.Background(), notif)
		if err != nil {
			t.Fatal(err)
		}
		if delta.NewCursor == "" {
			continue
		}
		cur, err := strconv.ParseUint(delta.NewCursor, 10, 64)
		if err != nil {
			t.Fatalf("non-numeric cursor %q", delta.NewCursor)
		}
		if cur < prev {
			t.Errorf("cursor went backwards: %d -> %d", prev, cur)
		}
		prev = cur
		cursors.cursor = delta.NewCursor
	}
}

func TestCommitAdvancesCursor(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "100"}
	s := newTestSyncer(&fakeMailbox{}, cursors)

	if err := s.Commit(context.Background(), &domain.InboxDelta{NewCursor: "180"}); err != nil {
		t.Fatal(err)
	}
	if cursors.cursor != "180" {
		t.Errorf("commit must persist the new cursor, got %q", cursors.cursor)
	}
}

func TestCommitNeverMovesBackwards(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "200"}
	s := newTestSyncer(&fakeMailbox{}, cursors)

	for _, stale := range []string{"", "150", "200"} {
		if err := s.Commit(context.Background(), &domain.InboxDelta{NewCursor: stale}); err != nil {
			t.Fatalf("cursor %q: %v", stale, err)
		}
	}
	if cursors.cursor != "200" {
		t.Errorf("stale commits must not move the cursor, got %q", cursors.cursor)
	}
	if cursors.saveCalls != 0 {
		t.Errorf("stale commits must not write, got %d saves", cursors.saveCalls)
	}

	if err := s.Commit(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
}

func TestResetClearsCursorAndMarks(t *testing.T) {
	cursors := &fakeCursorStore{cursor: "500"}
	s := newTestSyncer(&fakeMailbox{}, cursors)

	if err := s.Reset(context.Background()); err != nil {
		t.Fatal(err)
	}
	if cursors.cursor != "" {
		t.Errorf("reset must clear the cursor, got %q", cursors.cursor)
	}
	if !cursors.resetMark {
		t.Error("reset must record the marker")
	}
}
