// Package simulation replays a trade plan against a forward candle series
// and reports whether the entry filled and which protective levels were
// touched, in what order.
//
// Price comparisons are plain float64 with no epsilon: an exact boundary
// touch (low == entry) counts as a fill. Boundary sensitivity is accepted
// as a design choice.
package simulation

import (
	"fmt"

	"github.com/tranmd/whaleaudit/internal/core"
)

// Event labels appended during the scan. Take-profit labels are 1-based.
const (
	LabelEntryHit    = "ENTRY_HIT"
	LabelStopLossHit = "STOP_LOSS_HIT"
	labelTakeProfit  = "TP%d_HIT"
)

// Fixed scoring units. Stop-outs cost 2 units, each target reached earns 3.
// Not a real P&L figure; the sign convention (losses negative) is what the
// aggregate statistics rely on.
const (
	stopLossUnits   = -2
	takeProfitUnits = 3
)

// phase is the scan state. Protective levels only become active once the
// entry has filled, and never on the fill bar itself.
type phase int

const (
	phaseAwaitingEntry phase = iota
	phaseInTrade
)

// Engine walks a candle series bar by bar. It is a pure, synchronous
// computation; a zero Engine is ready to use.
type Engine struct{}

// New creates a simulation engine.
func New() *Engine {
	return &Engine{}
}

// Run replays plan against series and returns the outcome.
//
// Preconditions: series has at least 2 bars and the plan direction is LONG
// or SHORT. Both are caller-level eligibility concerns; violating them here
// indicates a programming error upstream, so Run rejects rather than
// producing a degenerate outcome. A series that violates the ascending-time
// invariant is a collaborator fault and fails with ErrMalformedSeries.
func (e *Engine) Run(plan core.TradePlan, series core.Series) (*Outcome, error) {
	if len(series) < 2 {
		return nil, fmt.Errorf("series too short: %d bars", len(series))
	}
	if plan.Direction != core.DirectionLong && plan.Direction != core.DirectionShort {
		return nil, core.ErrNeutralPlan
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	isLong := plan.Direction == core.DirectionLong

	out := &Outcome{}
	state := phaseAwaitingEntry

scan:
	for i, k := range series {
		out.DurationBars = i

		switch state {
		case phaseAwaitingEntry:
			if pullsBack(isLong, k, plan.EntryPrice) {
				out.EntryFilled = true
				out.Events = append(out.Events, Event{
					TimestampMs: k.Time.UnixMilli(),
					Label:       LabelEntryHit,
					Price:       plan.EntryPrice,
				})
				state = phaseInTrade
			}
			// Protection orders are placed only once filled: the fill bar
			// never triggers stop-loss or take-profit.

		case phaseInTrade:
			// Stop-loss is evaluated first and short-circuits: no target
			// can be credited on or after the stop bar.
			if pullsBack(isLong, k, plan.StopLossPrice) {
				out.StopLossHit = true
				out.Events = append(out.Events, Event{
					TimestampMs: k.Time.UnixMilli(),
					Label:       LabelStopLossHit,
					Price:       plan.StopLossPrice,
				})
				break scan
			}

			// TakeProfitsReached doubles as the cursor into the ordered
			// target list. One wide bar may satisfy several targets.
			for j := out.TakeProfitsReached; j < len(plan.TakeProfits); j++ {
				level := plan.TakeProfits[j]
				if runsToward(isLong, k, level.Price) {
					out.TakeProfitsReached = j + 1
					out.Events = append(out.Events, Event{
						TimestampMs: k.Time.UnixMilli(),
						Label:       fmt.Sprintf(labelTakeProfit, j+1),
						Price:       level.Price,
					})
				}
			}
			if out.TakeProfitsReached == len(plan.TakeProfits) {
				break scan
			}
		}
	}

	out.Status = deriveStatus(out)
	out.ProfitUnits = profitUnits(out)
	return out, nil
}

// pullsBack reports whether the bar moved against the trade direction far
// enough to reach price: for LONG the low dips to it, for SHORT the high
// rises to it. Both the entry fill and the stop-loss sit on this side.
func pullsBack(isLong bool, k core.Candle, price float64) bool {
	if isLong {
		return k.Low <= price
	}
	return k.High >= price
}

// runsToward is the favorable orientation used for take-profit targets.
func runsToward(isLong bool, k core.Candle, price float64) bool {
	if isLong {
		return k.High >= price
	}
	return k.Low <= price
}

// deriveStatus maps the terminal scan state to a verdict. Stop-loss
// dominates; an entry that never filled within the window is a failed
// setup, not a pending one.
func deriveStatus(out *Outcome) Status {
	switch {
	case out.StopLossHit:
		return StatusFailed
	case out.TakeProfitsReached > 0:
		return StatusSuccess
	case out.EntryFilled:
		return StatusPending
	default:
		return StatusFailed
	}
}

func profitUnits(out *Outcome) float64 {
	if out.StopLossHit {
		return stopLossUnits
	}
	return float64(out.TakeProfitsReached * takeProfitUnits)
}
