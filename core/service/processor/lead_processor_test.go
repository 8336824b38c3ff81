package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/core/service/classification"
	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"
	"leadscout/pkg/ratelimit"
)

type fakeProvider struct {
	messages map[string]*domain.Message
	fetchErr map[string]error
	fetched  []string
	labeled  []string
	labelErr error
}

func (f *fakeProvider) Source() string { return "gmail" }
func (f *fakeProvider) ProfileCursor(ctx context.Context) (string, error) {
	return "", nil
}
func (f *fakeProvider) ListChanges(ctx context.Context, q out.ChangeQuery) (*out.ChangePage, error) {
	return &out.ChangePage{}, nil
}
func (f *fakeProvider) ListInbox(ctx context.Context, max int64) ([]string, error) {
	return nil, nil
}
func (f *fakeProvider) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	f.fetched = append(f.fetched, id)
	if err := f.fetchErr[id]; err != nil {
		return nil, err
	}
	if m, ok := f.messages[id]; ok {
		return m, nil
	}
	return nil, apperr.NotFound("message " + id)
}
func (f *fakeProvider) AddLabel(ctx context.Context, id, labelID string) error {
	if f.labelErr != nil {
		return f.labelErr
	}
	f.labeled = append(f.labeled, id)
	return nil
}
func (f *fakeProvider) ListLabels(ctx context.Context) (map[string]string, error) {
	return map[string]string{"processed": "Label_77"}, nil
}
func (f *fakeProvider) Watch(ctx context.Context) (*out.WatchResult, error) {
	return &out.WatchResult{}, nil
}

type fakeSink struct {
	existing  map[string]*domain.LeadRecord
	createErr map[string]error
	created   []*domain.LeadRecord
}

func (f *fakeSink) FindByMessageID(ctx context.Context, id string) (*domain.LeadRecord, error) {
	return f.existing[id], nil
}
func (f *fakeSink) FindByMessageIDs(ctx context.Context, ids []string) (map[string]*domain.LeadRecord, error) {
	found := map[string]*domain.LeadRecord{}
	for _, id := range ids {
		if rec := f.existing[id]; rec != nil {
			found[id] = rec
		}
	}
	return found, nil
}
func (f *fakeSink) Create(ctx context.Context, rec *domain.LeadRecord) (*domain.LeadRecord, error) {
	if err := f.createErr[rec.MessageID]; err != nil {
		return nil, err
	}
	f.created = append(f.created, rec)
	return rec, nil
}

type fakeLocker struct {
	denied   map[string]bool
	acquired []string
	released []string
}

func (f *fakeLocker) Acquire(ctx context.Context, id string) bool {
	if f.denied[id] {
		return false
	}
	f.acquired = append(f.acquired, id)
	return true
}
func (f *fakeLocker) Release(ctx context.Context, id string) {
	f.released = append(f.released, id)
}
func (f *fakeLocker) Age(ctx context.Context, id string) (time.Duration, bool) {
	return 0, false
}

func inboxMessage(id string) *domain.Message {
	return &domain.Message{
		ID:      id,
		From:    "sender@example.com",
		To:      "leads@ourmedia.com",
		Subject: "Partnership proposal",
		Body:    "We would like to partner with you.",
		Labels:  []string{"INBOX"},
	}
}

type fixture struct {
	provider *fakeProvider
	sink     *fakeSink
	locker   *fakeLocker
	proc     *Processor
}

func newFixture(limiter *ratelimit.WindowLimiter) *fixture {
	f := &fixture{
		provider: &fakeProvider{messages: map[string]*domain.Message{}, fetchErr: map[string]error{}},
		sink:     &fakeSink{existing: map[string]*domain.LeadRecord{}, createErr: map[string]error{}},
		locker:   &fakeLocker{denied: map[string]bool{}},
	}
	engine := classification.NewEngine(nil, nil)
	f.proc = New(f.provider, f.sink, f.locker, engine, limiter, Config{
		ProcessedLabel:  "processed",
		OutreachAddress: "outreach@ourmedia.com",
	})
	return f
}

func TestProcessBatchSkipsRecordedMessages(t *testing.T) {
	f := newFixture(nil)
	f.sink.existing["m1"] = &domain.LeadRecord{MessageID: "m1"}
	f.provider.messages["m2"] = inboxMessage("m2")

	res := f.proc.ProcessBatch(context.Background(), []string{"m1", "m2"})

	if res.Skipped != 1 || res.Succeeded != 1 {
		t.Fatalf("expected 1 skipped 1 succeeded, got %+v", res)
	}
	for _, id := range f.provider.fetched {
		if id == "m1" {
			t.Error("recorded message must never be fetched or classified")
		}
	}
}

func TestProcessBatchLockConflict(t *testing.T) {
	f := newFixture(nil)
	f.locker.denied["m1"] = true
	f.provider.messages["m1"] = inboxMessage("m1")
	f.provider.messages["m2"] = inboxMessage("m2")

	res := f.proc.ProcessBatch(context.Background(), []string{"m1", "m2"})

	if res.Skipped != 1 {
		t.Errorf("expected locked message skipped, got %+v", res)
	}
	if res.Succeeded != 1 {
		t.Errorf("expected unlocked message processed, got %+v", res)
	}
	if len(f.provider.fetched) != 1 || f.provider.fetched[0] != "m2" {
		t.Errorf("locked message must not be fetched, fetched %v", f.provider.fetched)
	}
}

func TestProcessBatchVanishedMessageContinues(t *testing.T) {
	f := newFixture(nil)
	f.provider.messages["m2"] = inboxMessage("m2")

	res := f.proc.ProcessBatch(context.Background(), []string{"gone", "m2"})

	if res.Skipped != 1 || res.Succeeded != 1 || res.Failed != 0 {
		t.Errorf("404 must skip, not fail: %+v", res)
	}
}

func TestProcessBatchSinkFailureContinues(t *testing.T) {
	f := newFixture(nil)
	f.provider.messages["m1"] = inboxMessage("m1")
	f.provider.messages["m2"] = inboxMessage("m2")
	f.sink.createErr["m1"] = errors.New("sink down")

	res := f.proc.ProcessBatch(context.Background(), []string{"m1", "m2"})

	if res.Failed != 1 || res.Succeeded != 1 {
		t.Errorf("expected 1 failed 1 succeeded, got %+v", res)
	}
	// At-most-once: the failed message is still labeled processed.
	if len(f.provider.labeled) != 2 {
		t.Errorf("expected both messages labeled, got %v", f.provider.labeled)
	}
}

func TestProcessBatchDuplicateCreateIsSkip(t *testing.T) {
	f := newFixture(nil)
	f.provider.messages["m1"] = inboxMessage("m1")
	f.sink.createErr["m1"] = apperr.AlreadyExists("record exists")

	res := f.proc.ProcessBatch(context.Background(), []string{"m1"})

	if res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("duplicate create must count as skip, got %+v", res)
	}
}

func TestProcessBatchReleasesLocks(t *testing.T) {
	f := newFixture(nil)
	f.provider.messages["ok"] = inboxMessage("ok")
	f.sink.createErr["bad"] = errors.New("sink down")
	f.provider.messages["bad"] = inboxMessage("bad")

	f.proc.ProcessBatch(context.Background(), []string{"ok", "bad", "gone"})

	if len(f.locker.acquired) != len(f.locker.released) {
		t.Errorf("every acquired lock must be released: acquired %v released %v",
			f.locker.acquired, f.locker.released)
	}
}

func TestProcessBatchQuickSkips(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Message)
		reason string
	}{
		{"processed label", func(m *domain.Message) { m.Labels = []string{"INBOX", "processed"} }, ReasonProcessedLabel},
		{"not in inbox", func(m *domain.Message) { m.Labels = []string{"SENT"} }, ReasonNotInInbox},
		{"self sent", func(m *domain.Message) { m.From = "outreach@ourmedia.com" }, ReasonSelfSent},
		{"bare test subject", func(m *domain.Message) { m.Subject = " Test " }, ReasonTestSubject},
		{"missing to", func(m *domain.Message) { m.To = "" }, ReasonMissingAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			m := inboxMessage("m1")
			tt.mutate(m)
			f.provider.messages["m1"] = m

			res := f.proc.ProcessBatch(context.Background(), []string{"m1"})
			if res.Skipped != 1 {
				t.Fatalf("expected skip, got %+v", res)
			}
			if res.Results[0].Reason != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, res.Results[0].Reason)
			}
			if len(f.sink.created) != 0 {
				t.Error("skipped message must not reach the sink")
			}
		})
	}
}

func TestProcessBatchReplyFloor(t *testing.T) {
	f := newFixture(nil)
	m := inboxMessage("m1")
	m.To = "outreach@ourmedia.com"
	m.Subject = "Re: your note"
	m.Body = "Thanks, here is the press release for our opening."
	f.provider.messages["m1"] = m

	res := f.proc.ProcessBatch(context.Background(), []string{"m1"})
	if res.Succeeded != 1 {
		t.Fatalf("expected success, got %+v", res)
	}
	rec := f.sink.created[0]
	if rec.Intent.Level() < domain.IntentMedium.Level() {
		t.Errorf("reply to outreach address must be at least Medium, got %s", rec.Intent)
	}
	if rec.Confidence < 0.75 {
		t.Errorf("reply floor confidence must be >= 0.75, got %v", rec.Confidence)
	}
}

func TestProcessBatchWindowLimit(t *testing.T) {
	limiter := ratelimit.NewWindowLimiter(1, time.Minute)
	f := newFixture(limiter)
	f.provider.messages["m1"] = inboxMessage("m1")
	f.provider.messages["m2"] = inboxMessage("m2")
	f.provider.messages["m3"] = inboxMessage("m3")

	res := f.proc.ProcessBatch(context.Background(), []string{"m1", "m2", "m3"})

	if res.Succeeded != 1 {
		t.Errorf("expected exactly one processed before the window closed, got %+v", res)
	}
	if res.Skipped != 2 {
		t.Errorf("expected remaining messages skipped as rate limited, got %+v", res)
	}
}

func TestProcessBatchRecordFields(t *testing.T) {
	f := newFixture(nil)
	m := inboxMessage("m1")
	m.Cc = "cc@example.com"
	m.InternalTimestamp = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.provider.messages["m1"] = m

	f.proc.ProcessBatch(context.Background(), []string{"m1"})

	if len(f.sink.created) != 1 {
		t.Fatal("expected one record")
	}
	rec := f.sink.created[0]
	if rec.MessageID != "m1" || rec.Source != "gmail" {
		t.Errorf("unexpected identity fields: %+v", rec)
	}
	if rec.FromEmail != "sender@example.com" || rec.ToEmail != "leads@ourmedia.com" {
		t.Errorf("unexpected addresses: %+v", rec)
	}
	if !rec.ReceivedAt.Equal(m.InternalTimestamp) {
		t.Errorf("unexpected received time %v", rec.ReceivedAt)
	}
	if rec.Intent == "" || rec.Confidence <= 0 {
		t.Errorf("classification fields not populated: %+v", rec)
	}
}

func TestProcessedLabelIDConcurrentResolve(t *testing.T) {
	f := newFixture(nil)
	log := logger.WithField("test", "labels")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if id := f.proc.processedLabelID(context.Background(), log); id != "Label_77" {
				t.Errorf("expected Label_77, got %q", id)
			}
		}()
	}
	wg.Wait()

	if f.proc.cachedLabelID() != "Label_77" {
		t.Errorf("cache not settled: %q", f.proc.cachedLabelID())
	}
}
