// Package analysis asks an LLM to read recent market structure and emit a
// directional trade plan. The model's output is untrusted: prices arrive as
// numbers or quoted strings, fenced or bare JSON, and parsing is tolerant
// throughout. A malformed field degrades the report, it never fails the
// request.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/llm"
)

// Oracle turns a candle window into an analysis snapshot.
type Oracle struct {
	llm llm.Provider
	log *zap.Logger
	now func() time.Time
}

// NewOracle creates an Oracle backed by the given LLM provider.
func NewOracle(provider llm.Provider, log *zap.Logger) *Oracle {
	return &Oracle{
		llm: provider,
		log: log,
		now: time.Now,
	}
}

// Analyze sends the candle window to the LLM and returns a fresh snapshot
// carrying the parsed report. The snapshot has no outcome yet; audits
// attach that later.
func (o *Oracle) Analyze(ctx context.Context, symbol string, series core.Series) (*history.Snapshot, error) {
	if len(series) == 0 {
		return nil, core.ErrMarketDataUnavailable.WithMessage("no candles to analyze")
	}

	resp, err := o.llm.Chat(ctx, llm.ChatRequest{
		SystemPrompt: oracleSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildPrompt(symbol, series)},
		},
		MaxTokens:   2048,
		Temperature: 0.3,
		JSONMode:    true,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrLLMFailed, err)
	}

	report := o.parseReport(resp.Content)
	return &history.Snapshot{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		CreatedAt: o.now(),
		Report:    report,
	}, nil
}

func buildPrompt(symbol string, series core.Series) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("## Symbol: %s\n\n", symbol))
	sb.WriteString(fmt.Sprintf("## Recent 1h candles (%d bars, oldest first):\n", len(series)))
	for _, k := range series {
		sb.WriteString(fmt.Sprintf("- %s O:%.6g H:%.6g L:%.6g C:%.6g V:%.6g\n",
			k.Time.UTC().Format("2006-01-02 15:04"), k.Open, k.High, k.Low, k.Close, k.Volume))
	}
	sb.WriteString("\n## Task:\n")
	sb.WriteString("Identify whale accumulation or distribution patterns, the current manipulation phase, ")
	sb.WriteString("and propose one primary trade plan with entry, stop loss and ordered take profit targets.\n")

	return sb.String()
}

// parseReport decodes the model output into a Report. Every field is
// optional; unusable values are logged and dropped rather than surfaced
// as errors.
func (o *Oracle) parseReport(content string) core.Report {
	var payload reportPayload
	if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
		o.log.Warn("oracle response is not valid JSON, storing reasoning only",
			zap.Error(err))
		return core.Report{
			Reasoning: content,
			PrimaryPlan: core.TradePlan{
				Direction: core.DirectionNeutral,
			},
		}
	}

	report := core.Report{
		MarketStructure:   payload.MarketStructure,
		ManipulationPhase: payload.ManipulationPhase,
		WinProbability:    float64(payload.WinProbability),
		Reasoning:         payload.Reasoning,
		WhaleWarning:      payload.WhaleWarning,
		PrimaryPlan:       o.parsePlan(payload.PrimaryPlan),
	}
	return report
}

func (o *Oracle) parsePlan(p planPayload) core.TradePlan {
	plan := core.TradePlan{
		EntryPrice:    float64(p.EntryPrice),
		StopLossPrice: float64(p.StopLoss),
	}

	switch strings.ToUpper(strings.TrimSpace(p.Direction)) {
	case "LONG", "BUY":
		plan.Direction = core.DirectionLong
	case "SHORT", "SELL":
		plan.Direction = core.DirectionShort
	default:
		if p.Direction != "" {
			o.log.Warn("unrecognized plan direction", zap.String("direction", p.Direction))
		}
		plan.Direction = core.DirectionNeutral
	}

	for i, tp := range p.TakeProfits {
		if tp <= 0 {
			o.log.Warn("dropping non-positive take profit target",
				zap.Int("sequence", i+1), zap.Float64("price", float64(tp)))
			continue
		}
		plan.TakeProfits = append(plan.TakeProfits, core.TakeProfitLevel{
			Price:    float64(tp),
			Sequence: i + 1,
		})
	}
	sort.SliceStable(plan.TakeProfits, func(a, b int) bool {
		return plan.TakeProfits[a].Sequence < plan.TakeProfits[b].Sequence
	})

	return plan
}

// reportPayload is the wire shape of the model output.
type reportPayload struct {
	MarketStructure   string      `json:"market_structure"`
	ManipulationPhase string      `json:"manipulation_phase"`
	WinProbability    flexFloat   `json:"win_probability"`
	Reasoning         string      `json:"reasoning"`
	WhaleWarning      string      `json:"whale_warning"`
	PrimaryPlan       planPayload `json:"primary_plan"`
}

type planPayload struct {
	Direction   string      `json:"direction"`
	EntryPrice  flexFloat   `json:"entry_price"`
	StopLoss    flexFloat   `json:"stop_loss_price"`
	TakeProfits []flexFloat `json:"take_profits"`
}

// flexFloat accepts both 123.4 and "123.4". Models are inconsistent about
// quoting numbers even in JSON mode.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		// Tolerate garbage; the zero value means "not provided".
		*f = 0
		return nil
	}
	*f = flexFloat(v)
	return nil
}

// stripFences removes a markdown code fence around a JSON body if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

const oracleSystemPrompt = `You are a crypto futures market analyst specializing in whale manipulation patterns: liquidity sweeps, stop hunts, accumulation and distribution ranges.

Given recent hourly candles, produce exactly one JSON object:
{
  "market_structure": "short description of structure",
  "manipulation_phase": "ACCUMULATION" | "MANIPULATION" | "DISTRIBUTION" | "NONE",
  "win_probability": 0.0-1.0,
  "reasoning": "your reasoning",
  "whale_warning": "notable whale activity, or empty string",
  "primary_plan": {
    "direction": "LONG" | "SHORT" | "NEUTRAL",
    "entry_price": number,
    "stop_loss_price": number,
    "take_profits": [number, ...]
  }
}

Take profits must be ordered by intended exit sequence. Use NEUTRAL when no directional edge exists. Respond with the JSON object only.`
