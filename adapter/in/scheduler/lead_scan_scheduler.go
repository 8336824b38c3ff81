// Package scheduler runs the periodic mailbox scan.
package scheduler

import (
	"context"
	"time"

	"leadscout/core/port/out"
	"leadscout/core/service/processor"
	"leadscout/core/service/sync"

	"github.com/rs/zerolog"
)

// =============================================================================
// ScanScheduler - periodic safety-net sync
// =============================================================================
//
// Push notifications can be dropped or delayed. The scheduler runs the same
// sync+process pipeline on a fixed interval so missed mail is picked up, and
// keeps the Gmail watch registration alive (watches expire after 7 days).

const (
	watchRenewMargin = 24 * time.Hour
	runTimeout       = 10 * time.Minute
)

type ScanScheduler struct {
	syncer    *sync.Syncer
	processor *processor.Processor
	provider  out.MailboxProvider
	interval  time.Duration
	log       zerolog.Logger

	ctx         context.Context
	cancel      context.CancelFunc
	watchExpiry time.Time
}

// NewScanScheduler creates a scheduler with the given scan interval.
func NewScanScheduler(syncer *sync.Syncer, proc *processor.Processor, provider out.MailboxProvider, interval time.Duration, log zerolog.Logger) *ScanScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScanScheduler{
		syncer:    syncer,
		processor: proc,
		provider:  provider,
		interval:  interval,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the scan loop.
func (s *ScanScheduler) Start() {
	s.log.Info().Dur("interval", s.interval).Msg("scan scheduler starting")
	go s.run()
}

// Stop cancels the loop and any in-flight run.
func (s *ScanScheduler) Stop() {
	s.log.Info().Msg("scan scheduler stopping")
	s.cancel()
}

func (s *ScanScheduler) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce()

	for {
		select {
		case <-s.ctx.Done():
			s.log.Info().Msg("scan scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *ScanScheduler) runOnce() {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	s.maybeRenewWatch(ctx)

	delta, err := s.syncer.Sync(ctx, "")
	if err != nil {
		s.log.Error().Err(err).Msg("scheduled sync failed")
		return
	}

	if len(delta.IDs) == 0 {
		s.log.Debug().Msg("scheduled scan found no new messages")
	} else {
		result := s.processor.ProcessBatch(ctx, delta.IDs)
		s.log.Info().
			Str("batch_id", result.BatchID).
			Int("succeeded", result.Succeeded).
			Int("failed", result.Failed).
			Int("skipped", result.Skipped).
			Bool("fallback", delta.UsedFallback).
			Msg("scheduled batch complete")
	}

	if err := s.syncer.Commit(ctx, delta); err != nil {
		s.log.Error().Err(err).Msg("cursor commit failed")
	}
}

// maybeRenewWatch re-registers push notifications when the current watch is
// missing or close to expiry. Failures degrade to a warning; the scheduled
// scan keeps the pipeline working without push.
func (s *ScanScheduler) maybeRenewWatch(ctx context.Context) {
	if !s.watchExpiry.IsZero() && time.Until(s.watchExpiry) > watchRenewMargin {
		return
	}

	result, err := s.provider.Watch(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("watch registration failed, relying on scheduled scans")
		return
	}

	s.watchExpiry = result.Expiration
	s.log.Info().
		Str("cursor", result.Cursor).
		Time("expiration", result.Expiration).
		Msg("gmail watch renewed")
}
