// internal/core/types.go
package core

import "time"

// Direction is the side of a trade plan.
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Candle is one fixed-interval OHLCV bar. Immutable after creation.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered sequence of candles covering a bounded window.
// Invariant: strictly increasing Time. Built fresh per audit, never persisted.
type Series []Candle

// Validate checks the ordering invariant. The market-data collaborator
// promises ascending time; a violation is a collaborator fault, not
// something to re-sort around.
func (s Series) Validate() error {
	for i := 1; i < len(s); i++ {
		if !s[i].Time.After(s[i-1].Time) {
			return ErrMalformedSeries
		}
	}
	return nil
}

// TakeProfitLevel is one target exit level. Sequence defines evaluation
// order, which is not necessarily price order.
type TakeProfitLevel struct {
	Price    float64 `json:"price"`
	Sequence int     `json:"sequence"`
}

// TradePlan is the directional plan produced by the trade-plan oracle.
// It is untrusted input: the simulation uses the price fields as-is and
// makes no assumption that the plan is economically sensible.
type TradePlan struct {
	Direction     Direction         `json:"direction"`
	EntryPrice    float64           `json:"entry_price"`
	StopLossPrice float64           `json:"stop_loss_price"`
	TakeProfits   []TakeProfitLevel `json:"take_profits"`
}

// Report is the opaque analysis payload the LLM oracle attaches to a
// snapshot. Only PrimaryPlan is interpreted by the audit flow; the rest is
// carried verbatim for presentation.
type Report struct {
	MarketStructure   string    `json:"market_structure,omitempty"`
	ManipulationPhase string    `json:"manipulation_phase,omitempty"`
	WinProbability    float64   `json:"win_probability,omitempty"`
	Reasoning         string    `json:"reasoning,omitempty"`
	WhaleWarning      string    `json:"whale_warning,omitempty"`
	PrimaryPlan       TradePlan `json:"primary_plan"`
}
