package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/simulation"
)

type stubCandles struct {
	mu        sync.Mutex
	series    core.Series
	err       error
	lastStart time.Time
	lastLimit int
	calls     int
	block     chan struct{} // when set, FetchKlines waits for close
}

func (s *stubCandles) FetchKlines(_ context.Context, _, _ string, start, _ time.Time, limit int) (core.Series, error) {
	s.mu.Lock()
	s.lastStart = start
	s.lastLimit = limit
	s.calls++
	block := s.block
	s.mu.Unlock()

	if block != nil {
		<-block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.series, nil
}

type stubNarrator struct {
	text string
	err  error
}

func (s *stubNarrator) PostMortem(_ context.Context, _ history.Snapshot, _ simulation.Outcome, _ core.Series) (string, error) {
	return s.text, s.err
}

func winningSeries(from time.Time) core.Series {
	// Long plan at entry 100 / SL 95 / TP 110: bar 1 fills, bar 2 hits TP.
	return core.Series{
		{Time: from.Add(time.Hour), Open: 101, High: 103, Low: 100, Close: 102},
		{Time: from.Add(2 * time.Hour), Open: 102, High: 111, Low: 101, Close: 110},
	}
}

func seedSnapshot(store *history.Store, createdAt time.Time, dir core.Direction) history.Snapshot {
	return store.Add(history.Snapshot{
		Symbol:    "BTCUSDT",
		CreatedAt: createdAt,
		Report: core.Report{
			PrimaryPlan: core.TradePlan{
				Direction:     dir,
				EntryPrice:    100,
				StopLossPrice: 95,
				TakeProfits:   []core.TakeProfitLevel{{Price: 110, Sequence: 1}},
			},
		},
	})
}

func newAuditor(candles CandleProvider, narrator Narrator, store *history.Store) *Auditor {
	return New(candles, narrator, store, nil, zap.NewNop(), Config{})
}

func TestRun(t *testing.T) {
	store := history.NewStore(history.Options{})
	createdAt := time.Now().Add(-3 * time.Hour)
	snap := seedSnapshot(store, createdAt, core.DirectionLong)

	candles := &stubCandles{series: winningSeries(createdAt)}
	a := newAuditor(candles, nil, store)

	outcome, err := a.Run(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusSuccess, outcome.Status)
	assert.True(t, outcome.EntryFilled)
	assert.Equal(t, 1, outcome.TakeProfitsReached)

	// Fetch window anchors at the analysis time and respects the bar cap.
	assert.Equal(t, createdAt, candles.lastStart)
	assert.Equal(t, DefaultMaxBars, candles.lastLimit)

	stored, err := store.Get(snap.ID)
	require.NoError(t, err)
	require.True(t, stored.Audited())
	assert.Equal(t, simulation.StatusSuccess, stored.Outcome.Status)
}

func TestRun_TooYoung(t *testing.T) {
	store := history.NewStore(history.Options{})
	snap := seedSnapshot(store, time.Now().Add(-10*time.Minute), core.DirectionLong)

	a := newAuditor(&stubCandles{}, nil, store)

	_, err := a.Run(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrInsufficientHistory)

	stored, _ := store.Get(snap.ID)
	assert.False(t, stored.Audited(), "ineligible audit must not attach an outcome")
}

func TestRun_UnknownID(t *testing.T) {
	a := newAuditor(&stubCandles{}, nil, history.NewStore(history.Options{}))

	_, err := a.Run(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, core.ErrSnapshotNotFound)
}

func TestRun_NeutralPlan(t *testing.T) {
	store := history.NewStore(history.Options{})
	snap := seedSnapshot(store, time.Now().Add(-3*time.Hour), core.DirectionNeutral)

	a := newAuditor(&stubCandles{}, nil, store)

	_, err := a.Run(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrNeutralPlan)
}

func TestRun_NotEnoughBars(t *testing.T) {
	store := history.NewStore(history.Options{})
	createdAt := time.Now().Add(-90 * time.Minute)
	snap := seedSnapshot(store, createdAt, core.DirectionLong)

	candles := &stubCandles{series: winningSeries(createdAt)[:1]}
	a := newAuditor(candles, nil, store)

	_, err := a.Run(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrInsufficientHistory)
}

func TestRun_FetchError(t *testing.T) {
	store := history.NewStore(history.Options{})
	snap := seedSnapshot(store, time.Now().Add(-3*time.Hour), core.DirectionLong)

	a := newAuditor(&stubCandles{err: errors.New("exchange down")}, nil, store)

	_, err := a.Run(context.Background(), snap.ID)
	require.Error(t, err)
}

func TestRun_ConcurrentSameID(t *testing.T) {
	store := history.NewStore(history.Options{})
	createdAt := time.Now().Add(-3 * time.Hour)
	snap := seedSnapshot(store, createdAt, core.DirectionLong)

	block := make(chan struct{})
	candles := &stubCandles{series: winningSeries(createdAt), block: block}
	a := newAuditor(candles, nil, store)

	done := make(chan error, 1)
	go func() {
		_, err := a.Run(context.Background(), snap.ID)
		done <- err
	}()

	// Wait for the first run to reach the candle fetch.
	require.Eventually(t, func() bool {
		candles.mu.Lock()
		defer candles.mu.Unlock()
		return candles.calls == 1
	}, time.Second, 5*time.Millisecond)

	_, err := a.Run(context.Background(), snap.ID)
	assert.ErrorIs(t, err, core.ErrAuditInFlight)

	close(block)
	require.NoError(t, <-done)

	// Same id can be audited again once the first run finished.
	candles.block = nil
	_, err = a.Run(context.Background(), snap.ID)
	require.NoError(t, err)
}

func TestRun_NarrativeAttached(t *testing.T) {
	store := history.NewStore(history.Options{})
	createdAt := time.Now().Add(-3 * time.Hour)
	snap := seedSnapshot(store, createdAt, core.DirectionLong)

	a := newAuditor(&stubCandles{series: winningSeries(createdAt)},
		&stubNarrator{text: "clean long, entry swept then targets ran"}, store)

	outcome, err := a.Run(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "clean long, entry swept then targets ran", outcome.PostMortem)
}

func TestRun_NarrativeFailureTolerated(t *testing.T) {
	store := history.NewStore(history.Options{})
	createdAt := time.Now().Add(-3 * time.Hour)
	snap := seedSnapshot(store, createdAt, core.DirectionLong)

	a := newAuditor(&stubCandles{series: winningSeries(createdAt)},
		&stubNarrator{err: errors.New("llm unavailable")}, store)

	outcome, err := a.Run(context.Background(), snap.ID)
	require.NoError(t, err)
	assert.Equal(t, simulation.StatusSuccess, outcome.Status)
	assert.Empty(t, outcome.PostMortem)
}

func TestEligible(t *testing.T) {
	a := newAuditor(&stubCandles{}, nil, history.NewStore(history.Options{}))
	now := time.Now()

	assert.False(t, a.Eligible(history.Snapshot{CreatedAt: now.Add(-59 * time.Minute)}, now))
	assert.True(t, a.Eligible(history.Snapshot{CreatedAt: now.Add(-60 * time.Minute)}, now))
	assert.True(t, a.Eligible(history.Snapshot{CreatedAt: now.Add(-2 * time.Hour)}, now))
}

func TestSweep(t *testing.T) {
	store := history.NewStore(history.Options{})
	old := time.Now().Add(-3 * time.Hour)

	eligible := seedSnapshot(store, old, core.DirectionLong)
	young := seedSnapshot(store, time.Now().Add(-5*time.Minute), core.DirectionLong)
	neutral := seedSnapshot(store, old, core.DirectionNeutral)

	audited := seedSnapshot(store, old, core.DirectionShort)
	audited.Outcome = &simulation.Outcome{Status: simulation.StatusFailed}
	require.NoError(t, store.Update(audited))

	candles := &stubCandles{series: winningSeries(old)}
	a := newAuditor(candles, nil, store)

	n := a.Sweep(context.Background())
	assert.Equal(t, 1, n)

	got, _ := store.Get(eligible.ID)
	assert.True(t, got.Audited())
	got, _ = store.Get(young.ID)
	assert.False(t, got.Audited())
	got, _ = store.Get(neutral.ID)
	assert.False(t, got.Audited())
}
