// Package app wires the collaborators together and drives the background
// maintenance loops: the periodic audit sweep and history retention.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/api/job"
	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/metrics"
)

const (
	defaultSweepInterval = 15 * time.Minute
	pruneInterval        = 10 * time.Minute
)

// App is the background orchestrator.
type App struct {
	logger  *zap.Logger
	store   *history.Store
	auditor *audit.Auditor
	jobs    *job.Store
	metrics *metrics.Registry

	sweepInterval time.Duration
	autoSweep     bool

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// Options configures the orchestrator. Auditor and jobs may be nil when the
// corresponding loop is not wanted; metrics may be nil.
type Options struct {
	Store         *history.Store
	Auditor       *audit.Auditor
	Jobs          *job.Store
	Metrics       *metrics.Registry
	SweepInterval time.Duration
	AutoSweep     bool
}

// New creates an App.
func New(opts Options, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}
	return &App{
		logger:        logger,
		store:         opts.Store,
		auditor:       opts.Auditor,
		jobs:          opts.Jobs,
		metrics:       opts.Metrics,
		sweepInterval: opts.SweepInterval,
		autoSweep:     opts.AutoSweep,
	}
}

// Start runs the maintenance loops until the context is canceled.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app already running")
	}
	a.running = true
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.mu.Unlock()

	a.logger.Info("maintenance loops starting",
		zap.Duration("sweep_interval", a.sweepInterval),
		zap.Bool("auto_sweep", a.autoSweep))

	sweep := time.NewTicker(a.sweepInterval)
	defer sweep.Stop()
	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	// Catch up immediately on restart.
	a.RunMaintenance(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("maintenance loops stopping")
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			return ctx.Err()
		case <-sweep.C:
			a.runSweep(ctx)
		case <-prune.C:
			a.runPrune(ctx)
		}
	}
}

// Stop cancels the maintenance loops.
func (a *App) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
	}
}

// Running reports whether the loops are active.
func (a *App) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// RunMaintenance performs one sweep plus one prune pass. Exposed for the
// CLI one-shot mode and tests.
func (a *App) RunMaintenance(ctx context.Context) {
	a.runSweep(ctx)
	a.runPrune(ctx)
}

func (a *App) runSweep(ctx context.Context) {
	if !a.autoSweep || a.auditor == nil {
		return
	}
	n := a.auditor.Sweep(ctx)
	if n > 0 {
		a.logger.Info("audit sweep complete", zap.Int("audited", n))
		if err := a.store.Save(ctx); err != nil {
			a.logger.Warn("persisting history after sweep failed", zap.Error(err))
		}
	}
}

func (a *App) runPrune(ctx context.Context) {
	if a.store == nil {
		return
	}

	removed := a.store.PruneExpired(time.Now())
	if removed > 0 {
		a.logger.Info("history pruned", zap.Int("removed", removed))
		if err := a.store.Save(ctx); err != nil {
			a.logger.Warn("persisting history after prune failed", zap.Error(err))
		}
	}
	if a.metrics != nil {
		if removed > 0 {
			a.metrics.RecordPruned(removed)
		}
		a.metrics.SetHistorySize(a.store.Len())
	}

	if a.jobs != nil {
		if purged := a.jobs.PurgeExpired(time.Now()); purged > 0 {
			a.logger.Debug("stale jobs purged", zap.Int("purged", purged))
		}
	}
}
