package bootstrap

import (
	"context"
	"os"

	"leadscout/adapter/in/scheduler"
	"leadscout/config"
	"leadscout/pkg/logger"

	"github.com/rs/zerolog"
)

// Worker runs the scheduled scan loop that backstops dropped push
// notifications and keeps the mailbox watch registered.
type Worker struct {
	deps      *Dependencies
	scheduler *scheduler.ScanScheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewWorker wires the worker process.
func NewWorker(cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, nil, err
	}

	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "worker").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{deps: deps, ctx: ctx, cancel: cancel}

	if cfg.SchedulerEnabled {
		w.scheduler = scheduler.NewScanScheduler(deps.Syncer, deps.Processor, deps.Provider, cfg.ScanInterval, zlog)
	} else {
		logger.Warn("Scan scheduler disabled, relying on push notifications alone")
	}

	return w, cleanup, nil
}

// Start runs the worker until Stop is called.
func (w *Worker) Start() {
	if w.scheduler != nil {
		w.scheduler.Start()
	}
	<-w.ctx.Done()
}

// Stop shuts the worker down.
func (w *Worker) Stop() {
	w.cancel()
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

// Dependencies exposes the wired components, used by the combined mode.
func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}
