// Package audit replays stored analysis snapshots against the candles the
// market actually printed after each analysis, and folds the verdicts back
// into the history store.
package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/metrics"
	"github.com/tranmd/whaleaudit/internal/simulation"
)

// DefaultMinAge is how old a snapshot must be before auditing it makes
// sense: younger than one closed hourly bar and there is nothing to replay.
const DefaultMinAge = 60 * time.Minute

// DefaultMaxBars caps the forward window fetched per audit.
const DefaultMaxBars = 100

// CandleProvider fetches forward candles for the audit window.
type CandleProvider interface {
	FetchKlines(ctx context.Context, symbol, interval string, start, end time.Time, limit int) (core.Series, error)
}

// Narrator writes post-mortem commentary for a settled outcome. Optional.
type Narrator interface {
	PostMortem(ctx context.Context, snap history.Snapshot, outcome simulation.Outcome, series core.Series) (string, error)
}

// Auditor coordinates one audit per snapshot: eligibility gate, candle
// fetch, replay, optional narrative, store update.
type Auditor struct {
	candles  CandleProvider
	narrator Narrator
	store    *history.Store
	engine   *simulation.Engine
	metrics  *metrics.Registry
	log      *zap.Logger

	minAge   time.Duration
	interval string
	maxBars  int
	now      func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// Config tunes the auditor. Zero values fall back to defaults.
type Config struct {
	MinAge   time.Duration
	Interval string
	MaxBars  int
}

// New creates an Auditor. The narrator may be nil; metrics may be nil.
func New(candles CandleProvider, narrator Narrator, store *history.Store, reg *metrics.Registry, log *zap.Logger, cfg Config) *Auditor {
	if cfg.MinAge <= 0 {
		cfg.MinAge = DefaultMinAge
	}
	if cfg.Interval == "" {
		cfg.Interval = "1h"
	}
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = DefaultMaxBars
	}
	return &Auditor{
		candles:  candles,
		narrator: narrator,
		store:    store,
		engine:   simulation.New(),
		metrics:  reg,
		log:      log,
		minAge:   cfg.MinAge,
		interval: cfg.Interval,
		maxBars:  cfg.MaxBars,
		now:      time.Now,
		inFlight: make(map[string]struct{}),
	}
}

// Store exposes the history store the auditor writes to.
func (a *Auditor) Store() *history.Store {
	return a.store
}

// Eligible reports whether the snapshot is old enough to audit.
func (a *Auditor) Eligible(snap history.Snapshot, now time.Time) bool {
	return now.Sub(snap.CreatedAt) >= a.minAge
}

// Run audits one snapshot by id and returns the outcome it attached.
//
// A second Run for the same id while the first is still going fails with
// ErrAuditInFlight. Snapshots younger than the eligibility age fail with
// ErrInsufficientHistory, as does a window that produced fewer than two
// closed bars; both are retryable later.
func (a *Auditor) Run(ctx context.Context, id string) (*simulation.Outcome, error) {
	if err := a.acquire(id); err != nil {
		return nil, err
	}
	defer a.release(id)

	snap, err := a.store.Get(id)
	if err != nil {
		return nil, err
	}

	now := a.now()
	if !a.Eligible(snap, now) {
		return nil, core.ErrInsufficientHistory.WithMessage("snapshot too young to audit")
	}

	dir := snap.Report.PrimaryPlan.Direction
	if dir != core.DirectionLong && dir != core.DirectionShort {
		return nil, core.ErrNeutralPlan
	}

	start := time.Now()
	outcome, series, err := a.replay(ctx, snap, now)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordAudit("ERROR", time.Since(start).Seconds())
		}
		return nil, err
	}

	a.attachNarrative(ctx, snap, outcome, series)

	snap.Outcome = outcome
	if err := a.store.Update(snap); err != nil {
		return nil, err
	}

	if a.metrics != nil {
		a.metrics.RecordAudit(string(outcome.Status), time.Since(start).Seconds())
	}
	a.log.Info("audit complete",
		zap.String("snapshot_id", id),
		zap.String("symbol", snap.Symbol),
		zap.String("status", string(outcome.Status)),
		zap.Int("bars", len(series)),
		zap.Float64("profit_units", outcome.ProfitUnits))

	return outcome, nil
}

func (a *Auditor) replay(ctx context.Context, snap history.Snapshot, now time.Time) (*simulation.Outcome, core.Series, error) {
	series, err := a.candles.FetchKlines(ctx, snap.Symbol, a.interval, snap.CreatedAt, now, a.maxBars)
	if err != nil {
		return nil, nil, err
	}
	if len(series) < 2 {
		return nil, nil, core.ErrInsufficientHistory
	}

	outcome, err := a.engine.Run(snap.Report.PrimaryPlan, series)
	if err != nil {
		return nil, nil, err
	}
	return outcome, series, nil
}

// attachNarrative is best-effort: the audit verdict stands even when the
// narrator is absent or failing.
func (a *Auditor) attachNarrative(ctx context.Context, snap history.Snapshot, outcome *simulation.Outcome, series core.Series) {
	if a.narrator == nil {
		return
	}

	start := time.Now()
	text, err := a.narrator.PostMortem(ctx, snap, *outcome, series)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordNarrative("error", time.Since(start).Seconds())
		}
		a.log.Warn("post-mortem narrative failed",
			zap.String("snapshot_id", snap.ID), zap.Error(err))
		return
	}
	if a.metrics != nil {
		a.metrics.RecordNarrative("ok", time.Since(start).Seconds())
	}
	outcome.PostMortem = text
}

// Sweep audits every eligible snapshot that has no outcome yet. Individual
// failures are logged and do not stop the pass. Returns the number of
// snapshots audited.
func (a *Auditor) Sweep(ctx context.Context) int {
	now := a.now()
	audited := 0
	for _, snap := range a.store.All() {
		if snap.Audited() || !a.Eligible(snap, now) {
			continue
		}
		if snap.Report.PrimaryPlan.Direction != core.DirectionLong &&
			snap.Report.PrimaryPlan.Direction != core.DirectionShort {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		if _, err := a.Run(ctx, snap.ID); err != nil {
			a.log.Warn("sweep audit failed",
				zap.String("snapshot_id", snap.ID), zap.Error(err))
			continue
		}
		audited++
	}
	return audited
}

func (a *Auditor) acquire(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inFlight[id]; busy {
		return core.ErrAuditInFlight
	}
	a.inFlight[id] = struct{}{}
	return nil
}

func (a *Auditor) release(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inFlight, id)
}
