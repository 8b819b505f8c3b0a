package app

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/api/job"
	"github.com/tranmd/whaleaudit/internal/audit"
	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/history"
)

type stubCandles struct {
	series core.Series
}

func (s *stubCandles) FetchKlines(_ context.Context, _, _ string, _, _ time.Time, _ int) (core.Series, error) {
	return s.series, nil
}

func TestRunMaintenance_SweepsAndPrunes(t *testing.T) {
	store := history.NewStore(history.Options{MaxAge: 48 * time.Hour})

	old := time.Now().Add(-3 * time.Hour)
	eligible := store.Add(history.Snapshot{
		Symbol:    "BTCUSDT",
		CreatedAt: old,
		Report: core.Report{PrimaryPlan: core.TradePlan{
			Direction:     core.DirectionLong,
			EntryPrice:    100,
			StopLossPrice: 95,
			TakeProfits:   []core.TakeProfitLevel{{Price: 110, Sequence: 1}},
		}},
	})
	expired := store.Add(history.Snapshot{
		Symbol:    "ETHUSDT",
		CreatedAt: time.Now().Add(-72 * time.Hour),
	})

	candles := &stubCandles{series: core.Series{
		{Time: old.Add(time.Hour), Open: 101, High: 103, Low: 100, Close: 102},
		{Time: old.Add(2 * time.Hour), Open: 102, High: 111, Low: 101, Close: 110},
	}}
	auditor := audit.New(candles, nil, store, nil, zap.NewNop(), audit.Config{})

	a := New(Options{
		Store:     store,
		Auditor:   auditor,
		Jobs:      job.NewStore(10, time.Hour),
		AutoSweep: true,
	}, zap.NewNop())

	a.RunMaintenance(context.Background())

	got, err := store.Get(eligible.ID)
	if err != nil {
		t.Fatalf("eligible snapshot lookup: %v", err)
	}
	if !got.Audited() {
		t.Error("eligible snapshot not audited by sweep")
	}

	if _, err := store.Get(expired.ID); err == nil {
		t.Error("expired snapshot survived prune")
	}
}

func TestRunMaintenance_SweepDisabled(t *testing.T) {
	store := history.NewStore(history.Options{})
	old := time.Now().Add(-3 * time.Hour)
	snap := store.Add(history.Snapshot{
		Symbol:    "BTCUSDT",
		CreatedAt: old,
		Report: core.Report{PrimaryPlan: core.TradePlan{
			Direction:  core.DirectionLong,
			EntryPrice: 100,
		}},
	})

	auditor := audit.New(&stubCandles{}, nil, store, nil, zap.NewNop(), audit.Config{})
	a := New(Options{Store: store, Auditor: auditor, AutoSweep: false}, zap.NewNop())

	a.RunMaintenance(context.Background())

	got, _ := store.Get(snap.ID)
	if got.Audited() {
		t.Error("sweep ran despite being disabled")
	}
}

func TestStartStop(t *testing.T) {
	a := New(Options{Store: history.NewStore(history.Options{})}, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		done <- a.Start(context.Background())
	}()

	deadline := time.Now().Add(time.Second)
	for !a.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !a.Running() {
		t.Fatal("app did not start")
	}

	a.Stop()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Start() returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
}

func TestStart_AlreadyRunning(t *testing.T) {
	a := New(Options{Store: history.NewStore(history.Options{})}, zap.NewNop())

	go a.Start(context.Background())
	deadline := time.Now().Add(time.Second)
	for !a.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
	a.Stop()
}
