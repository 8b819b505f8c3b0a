package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/llm"
)

type stubLLM struct {
	content string
	err     error
	lastReq llm.ChatRequest
}

func (s *stubLLM) Name() string { return "stub" }

func (s *stubLLM) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Content: s.content}, nil
}

func window() core.Series {
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s := make(core.Series, 3)
	for i := range s {
		s[i] = core.Candle{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: 100, High: 110, Low: 95, Close: 105, Volume: 1000,
		}
	}
	return s
}

func TestAnalyze(t *testing.T) {
	stub := &stubLLM{content: `{
		"market_structure": "range under resistance",
		"manipulation_phase": "ACCUMULATION",
		"win_probability": 0.7,
		"reasoning": "sweep of lows then reclaim",
		"whale_warning": "",
		"primary_plan": {
			"direction": "LONG",
			"entry_price": 101.5,
			"stop_loss_price": 98.0,
			"take_profits": [104.0, 108.0]
		}
	}`}

	o := NewOracle(stub, zap.NewNop())
	snap, err := o.Analyze(context.Background(), "BTCUSDT", window())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if snap.ID == "" {
		t.Error("snapshot ID not assigned")
	}
	if snap.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %s", snap.Symbol)
	}
	if snap.Audited() {
		t.Error("fresh snapshot must not carry an outcome")
	}
	if !stub.lastReq.JSONMode {
		t.Error("JSONMode not requested")
	}

	plan := snap.Report.PrimaryPlan
	if plan.Direction != core.DirectionLong {
		t.Errorf("direction = %s, want LONG", plan.Direction)
	}
	if plan.EntryPrice != 101.5 || plan.StopLossPrice != 98.0 {
		t.Errorf("prices = %v/%v", plan.EntryPrice, plan.StopLossPrice)
	}
	if len(plan.TakeProfits) != 2 || plan.TakeProfits[1].Sequence != 2 {
		t.Errorf("take profits = %+v", plan.TakeProfits)
	}
}

func TestAnalyze_StringPricesAndFences(t *testing.T) {
	stub := &stubLLM{content: "```json\n" + `{
		"primary_plan": {
			"direction": "short",
			"entry_price": "2,450.50",
			"stop_loss_price": "2500",
			"take_profits": ["2400", "2350.25"]
		}
	}` + "\n```"}

	o := NewOracle(stub, zap.NewNop())
	snap, err := o.Analyze(context.Background(), "ETHUSDT", window())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	plan := snap.Report.PrimaryPlan
	if plan.Direction != core.DirectionShort {
		t.Errorf("direction = %s, want SHORT", plan.Direction)
	}
	if plan.EntryPrice != 2450.50 {
		t.Errorf("entry = %v, want 2450.50", plan.EntryPrice)
	}
	if len(plan.TakeProfits) != 2 || plan.TakeProfits[1].Price != 2350.25 {
		t.Errorf("take profits = %+v", plan.TakeProfits)
	}
}

func TestAnalyze_NonJSONFallsBackToNeutral(t *testing.T) {
	stub := &stubLLM{content: "The market looks choppy, I would stay flat."}

	o := NewOracle(stub, zap.NewNop())
	snap, err := o.Analyze(context.Background(), "BTCUSDT", window())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if snap.Report.PrimaryPlan.Direction != core.DirectionNeutral {
		t.Errorf("direction = %s, want NEUTRAL", snap.Report.PrimaryPlan.Direction)
	}
	if snap.Report.Reasoning == "" {
		t.Error("raw text should be preserved as reasoning")
	}
}

func TestAnalyze_DropsBadTargets(t *testing.T) {
	stub := &stubLLM{content: `{
		"primary_plan": {
			"direction": "LONG",
			"entry_price": 100,
			"stop_loss_price": 95,
			"take_profits": [105, "not-a-price", -3, 110]
		}
	}`}

	o := NewOracle(stub, zap.NewNop())
	snap, err := o.Analyze(context.Background(), "BTCUSDT", window())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	tps := snap.Report.PrimaryPlan.TakeProfits
	if len(tps) != 2 {
		t.Fatalf("take profits = %+v, want 2 surviving", tps)
	}
	if tps[0].Price != 105 || tps[1].Price != 110 {
		t.Errorf("take profits = %+v", tps)
	}
}

func TestAnalyze_LLMError(t *testing.T) {
	stub := &stubLLM{err: errors.New("rate limited")}

	o := NewOracle(stub, zap.NewNop())
	_, err := o.Analyze(context.Background(), "BTCUSDT", window())
	if !errors.Is(err, core.ErrLLMFailed) {
		t.Errorf("error = %v, want ErrLLMFailed", err)
	}
}

func TestAnalyze_EmptyWindow(t *testing.T) {
	o := NewOracle(&stubLLM{}, zap.NewNop())
	_, err := o.Analyze(context.Background(), "BTCUSDT", nil)
	if !errors.Is(err, core.ErrMarketDataUnavailable) {
		t.Errorf("error = %v, want ErrMarketDataUnavailable", err)
	}
}
