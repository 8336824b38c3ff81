// Package processor orchestrates one batch of inbox messages: idempotency
// lookup, cross-instance locking, classification and the CRM write.
package processor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"leadscout/core/domain"
	"leadscout/core/port/out"
	"leadscout/core/service/classification"
	"leadscout/pkg/apperr"
	"leadscout/pkg/logger"
	"leadscout/pkg/ratelimit"
)

const inboxLabel = "INBOX"

// Skip reasons reported per message.
const (
	ReasonAlreadyRecorded = "already_recorded"
	ReasonLockConflict    = "lock_conflict"
	ReasonNotFound        = "not_found"
	ReasonProcessedLabel  = "processed_label"
	ReasonNotInInbox      = "not_in_inbox"
	ReasonSelfSent        = "self_sent"
	ReasonTestSubject     = "test_subject"
	ReasonMissingAddress  = "missing_address"
	ReasonRateLimited     = "rate_limited"
)

// Config holds processor tuning.
type Config struct {
	// ProcessedLabel is the mailbox label marking handled messages.
	ProcessedLabel string
	// InterMessageDelay is the pause between messages within one batch.
	InterMessageDelay time.Duration
	// OutreachAddress is our own outbound address; replies to it get a
	// Medium floor and mail from it is skipped.
	OutreachAddress string
}

// MessageResult records the outcome for one message id.
type MessageResult struct {
	ID      string
	Intent  domain.Intent
	Skipped bool
	Reason  string
}

// BatchResult summarizes one batch.
type BatchResult struct {
	BatchID   string
	Succeeded int
	Failed    int
	Skipped   int
	Results   []MessageResult
}

// Processor runs batches strictly sequentially. It never fails the batch:
// per-message errors are logged and the remaining messages continue.
type Processor struct {
	provider out.MailboxProvider
	sink     out.CRMSink
	locker   out.MessageLocker
	engine   *classification.Engine
	limiter  *ratelimit.WindowLimiter
	cfg      Config

	// labelID caches the resolved processed-label id. Batches from the
	// webhook and the scheduler can run concurrently in one process.
	labelMu sync.Mutex
	labelID string
}

// New creates a processor.
func New(provider out.MailboxProvider, sink out.CRMSink, locker out.MessageLocker,
	engine *classification.Engine, limiter *ratelimit.WindowLimiter, cfg Config) *Processor {
	if cfg.ProcessedLabel == "" {
		cfg.ProcessedLabel = "processed"
	}
	return &Processor{
		provider: provider,
		sink:     sink,
		locker:   locker,
		engine:   engine,
		limiter:  limiter,
		cfg:      cfg,
	}
}

// ProcessBatch handles a deduplicated set of message ids. It always returns
// a result, never an error, so push triggers are acknowledged exactly once.
func (p *Processor) ProcessBatch(ctx context.Context, ids []string) *BatchResult {
	res := &BatchResult{BatchID: uuid.NewString()}
	log := logger.WithBatchID(res.BatchID)

	if len(ids) == 0 {
		return res
	}
	log.WithField("messages", len(ids)).Info("batch started")

	if p.limiter != nil && !p.limiter.Allow() {
		log.WithField("window_count", p.limiter.Count()).Error("execution window limit reached, stopping batch")
		for _, id := range ids {
			res.Results = append(res.Results, MessageResult{ID: id, Skipped: true, Reason: ReasonRateLimited})
		}
		res.Skipped = len(ids)
		return res
	}

	existing, err := p.sink.FindByMessageIDs(ctx, ids)
	if err != nil {
		log.WithError(err).Warn("batch idempotency lookup failed, falling back to per-message checks")
		existing = map[string]*domain.LeadRecord{}
	}

	for i, id := range ids {
		if i > 0 && p.cfg.InterMessageDelay > 0 {
			if !sleepCtx(ctx, p.cfg.InterMessageDelay) {
				log.Warn("batch cancelled between messages")
				break
			}
		}

		if existing[id] != nil {
			res.record(MessageResult{ID: id, Skipped: true, Reason: ReasonAlreadyRecorded})
			continue
		}

		mr := p.processOne(ctx, log, id)
		res.record(mr)

		if !mr.Skipped && p.limiter != nil {
			p.limiter.Record()
			if !p.limiter.Allow() {
				log.WithField("window_count", p.limiter.Count()).Error("execution window limit reached mid-batch, stopping")
				for _, rest := range ids[i+1:] {
					res.record(MessageResult{ID: rest, Skipped: true, Reason: ReasonRateLimited})
				}
				break
			}
		}
	}

	log.WithFields(map[string]any{
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
		"skipped":   res.Skipped,
	}).Info("batch finished")
	return res
}

// processOne handles a single message end to end. All errors are absorbed
// here; the lock is always released.
func (p *Processor) processOne(ctx context.Context, log *logger.Logger, id string) MessageResult {
	mlog := log.WithMessageID(id)

	if !p.locker.Acquire(ctx, id) {
		if age, ok := p.locker.Age(ctx, id); ok {
			mlog.WithField("lock_age", age.String()).Info("message locked by another instance, skipping")
		} else {
			mlog.Info("lock acquisition failed, skipping")
		}
		return MessageResult{ID: id, Skipped: true, Reason: ReasonLockConflict}
	}
	defer p.locker.Release(ctx, id)

	// Idempotency recheck under the lock for the per-message path.
	if rec, err := p.sink.FindByMessageID(ctx, id); err != nil {
		mlog.WithError(err).Warn("idempotency recheck failed, continuing")
	} else if rec != nil {
		return MessageResult{ID: id, Skipped: true, Reason: ReasonAlreadyRecorded}
	}

	msg, err := p.provider.GetMessage(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			mlog.Info("message vanished before fetch, skipping")
			return MessageResult{ID: id, Skipped: true, Reason: ReasonNotFound}
		}
		mlog.WithError(err).Error("message fetch failed")
		return MessageResult{ID: id}
	}

	if skip, reason := p.quickSkip(msg); skip {
		mlog.WithField("reason", reason).Debug("message filtered before classification")
		return MessageResult{ID: id, Skipped: true, Reason: reason}
	}

	result := p.engine.Classify(ctx, msg)
	result = p.applyReplyFloor(msg, result)

	mlog.WithFields(map[string]any{
		"intent":     string(result.Intent),
		"confidence": result.Confidence,
	}).Info("message classified")

	created := true
	if _, err := p.sink.Create(ctx, p.buildRecord(msg, result)); err != nil {
		if apperr.Is(err, apperr.CodeAlreadyExists) {
			mlog.Info("record created by another instance, skipping")
			created = false
		} else {
			// At-most-once: the message is still labeled processed below so a
			// sink outage cannot cause a classification storm.
			mlog.WithError(err).Error("sink create failed")
			p.markProcessed(ctx, mlog, id)
			return MessageResult{ID: id}
		}
	}

	p.markProcessed(ctx, mlog, id)

	if !created {
		return MessageResult{ID: id, Skipped: true, Reason: ReasonAlreadyRecorded}
	}
	return MessageResult{ID: id, Intent: result.Intent, Skipped: false}
}

// quickSkip filters messages that never reach classification.
func (p *Processor) quickSkip(msg *domain.Message) (bool, string) {
	label := strings.ToLower(p.cfg.ProcessedLabel)
	cachedID := p.cachedLabelID()
	for _, l := range msg.Labels {
		if strings.ToLower(l) == label || (cachedID != "" && l == cachedID) {
			return true, ReasonProcessedLabel
		}
	}
	if !msg.HasLabel(inboxLabel) {
		return true, ReasonNotInInbox
	}

	from := strings.ToLower(strings.TrimSpace(msg.From))
	to := strings.ToLower(strings.TrimSpace(msg.To))
	if from == "" || to == "" {
		return true, ReasonMissingAddress
	}
	if p.cfg.OutreachAddress != "" && strings.Contains(from, strings.ToLower(p.cfg.OutreachAddress)) {
		return true, ReasonSelfSent
	}
	if strings.TrimSpace(strings.ToLower(msg.Subject)) == "test" {
		return true, ReasonTestSubject
	}
	return false, ""
}

// applyReplyFloor raises replies to our outreach address to at least Medium.
func (p *Processor) applyReplyFloor(msg *domain.Message, result domain.ClassificationResult) domain.ClassificationResult {
	if p.cfg.OutreachAddress == "" {
		return result
	}
	if !strings.Contains(strings.ToLower(msg.To), strings.ToLower(p.cfg.OutreachAddress)) || !msg.IsReply() {
		return result
	}
	if result.Intent.Level() >= domain.IntentMedium.Level() {
		return result
	}

	result.Intent = domain.IntentMedium
	if result.Confidence < 0.75 {
		result.Confidence = 0.75
	}
	note := "Email is a reply to our outreach address, raised to Medium intent."
	if result.Reasoning == "" {
		result.Reasoning = note
	} else {
		result.Reasoning = domain.Truncate(result.Reasoning+" "+note, domain.MaxReasoningLen)
	}
	return result
}

func (p *Processor) buildRecord(msg *domain.Message, res domain.ClassificationResult) *domain.LeadRecord {
	return &domain.LeadRecord{
		MessageID:      msg.ID,
		Source:         p.provider.Source(),
		FromEmail:      strings.ToLower(strings.TrimSpace(msg.From)),
		ToEmail:        strings.ToLower(strings.TrimSpace(msg.To)),
		Cc:             msg.Cc,
		Subject:        msg.Subject,
		Body:           msg.Body,
		ReceivedAt:     msg.InternalTimestamp,
		Intent:         res.Intent,
		Confidence:     res.Confidence,
		Reasoning:      res.Reasoning,
		PainHypothesis: res.PainHypothesis,
		FreeCoverage:   res.Flags.FreeCoverage,
		Barter:         res.Flags.Barter,
		PRInvitation:   res.Flags.PRInvitation,
		Pricing:        res.Flags.Pricing,
	}
}

// markProcessed applies the processed label, resolving and caching its id on
// first use. Failures are logged only; the batch continues.
func (p *Processor) markProcessed(ctx context.Context, log *logger.Logger, id string) {
	labelID := p.processedLabelID(ctx, log)
	if err := p.provider.AddLabel(ctx, id, labelID); err != nil {
		log.WithError(err).Warn("processed label apply failed")
	}
}

// processedLabelID resolves the label name to its mailbox id. The cached id
// is best effort; on lookup failure the label name itself is used.
func (p *Processor) processedLabelID(ctx context.Context, log *logger.Logger) string {
	if id := p.cachedLabelID(); id != "" {
		return id
	}
	labels, err := p.provider.ListLabels(ctx)
	if err != nil {
		log.WithError(err).Warn("label listing failed, using label name directly")
		return p.cfg.ProcessedLabel
	}
	id, ok := labels[strings.ToLower(p.cfg.ProcessedLabel)]
	if !ok {
		log.WithField("label", p.cfg.ProcessedLabel).Warn("processed label not found in mailbox, using name")
		id = p.cfg.ProcessedLabel
	}
	p.labelMu.Lock()
	p.labelID = id
	p.labelMu.Unlock()
	return id
}

func (p *Processor) cachedLabelID() string {
	p.labelMu.Lock()
	defer p.labelMu.Unlock()
	return p.labelID
}

func (r *BatchResult) record(mr MessageResult) {
	r.Results = append(r.Results, mr)
	switch {
	case mr.Skipped:
		r.Skipped++
	case mr.Intent != "":
		r.Succeeded++
	default:
		r.Failed++
	}
}

// sleepCtx sleeps for d, returning false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
