// Package narrative produces a short LLM-written post-mortem for a settled
// audit: what the plan predicted, what price actually did, and what that
// says about the original read.
package narrative

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/history"
	"github.com/tranmd/whaleaudit/internal/llm"
	"github.com/tranmd/whaleaudit/internal/simulation"
)

// Narrator writes outcome commentary. It is an optional collaborator:
// audits proceed without it and tolerate its failures.
type Narrator struct {
	llm llm.Provider
	log *zap.Logger
}

// New creates a Narrator.
func New(provider llm.Provider, log *zap.Logger) *Narrator {
	return &Narrator{llm: provider, log: log}
}

// PostMortem asks the LLM for a review of the replayed trade. The returned
// string is plain prose, a few sentences at most.
func (n *Narrator) PostMortem(ctx context.Context, snap history.Snapshot, outcome simulation.Outcome, series core.Series) (string, error) {
	resp, err := n.llm.Chat(ctx, llm.ChatRequest{
		SystemPrompt: narratorSystemPrompt,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: buildPrompt(snap, outcome, series)},
		},
		MaxTokens:   512,
		Temperature: 0.5,
	})
	if err != nil {
		return "", core.WrapError(core.ErrNarrativeFailed, err)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", core.ErrNarrativeFailed.WithMessage("narrator returned empty commentary")
	}
	return text, nil
}

func buildPrompt(snap history.Snapshot, outcome simulation.Outcome, series core.Series) string {
	var sb strings.Builder
	plan := snap.Report.PrimaryPlan

	sb.WriteString(fmt.Sprintf("## Symbol: %s\n\n", snap.Symbol))
	sb.WriteString("## Original plan:\n")
	sb.WriteString(fmt.Sprintf("- Direction: %s\n", plan.Direction))
	sb.WriteString(fmt.Sprintf("- Entry: %.6g, Stop loss: %.6g\n", plan.EntryPrice, plan.StopLossPrice))
	for _, tp := range plan.TakeProfits {
		sb.WriteString(fmt.Sprintf("- TP%d: %.6g\n", tp.Sequence, tp.Price))
	}
	if snap.Report.Reasoning != "" {
		sb.WriteString(fmt.Sprintf("- Original reasoning: %s\n", snap.Report.Reasoning))
	}
	sb.WriteString("\n## Realized outcome:\n")
	sb.WriteString(fmt.Sprintf("- Status: %s\n", outcome.Status))
	sb.WriteString(fmt.Sprintf("- Entry filled: %t, Stop hit: %t, Targets reached: %d\n",
		outcome.EntryFilled, outcome.StopLossHit, outcome.TakeProfitsReached))
	sb.WriteString(fmt.Sprintf("- Bars examined: %d\n", outcome.DurationBars+1))
	for _, ev := range outcome.Events {
		sb.WriteString(fmt.Sprintf("- %s at %.6g\n", ev.Label, ev.Price))
	}

	if len(series) > 0 {
		first, last := series[0], series[len(series)-1]
		sb.WriteString(fmt.Sprintf("\n## Price path: %d bars, %.6g -> %.6g (high %.6g, low %.6g)\n",
			len(series), first.Open, last.Close, seriesHigh(series), seriesLow(series)))
	}

	sb.WriteString("\n## Task:\nWrite a 2-4 sentence post-mortem. Say whether the read was right, what price actually did, and what to watch for next time.\n")
	return sb.String()
}

func seriesHigh(s core.Series) float64 {
	h := s[0].High
	for _, k := range s[1:] {
		if k.High > h {
			h = k.High
		}
	}
	return h
}

func seriesLow(s core.Series) float64 {
	l := s[0].Low
	for _, k := range s[1:] {
		if k.Low < l {
			l = k.Low
		}
	}
	return l
}

const narratorSystemPrompt = `You are a trading coach reviewing how a published trade plan played out against realized price action.

Be specific and honest. Credit correct reads, name the exact failure when the plan lost, and avoid hindsight platitudes. Respond with plain prose only, no JSON, no markdown headings.`
