package simulation

// Status is the derived verdict of a replay. It is never set directly;
// Run derives it from the terminal state after the scan.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusPending Status = "PENDING"
)

// Event is one state transition discovered during replay, in scan order.
type Event struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Label       string  `json:"label"`
	Price       float64 `json:"price"`
}

// Outcome is the result of replaying a trade plan against forward candles.
// Immutable once produced.
type Outcome struct {
	Status             Status  `json:"status"`
	EntryFilled        bool    `json:"entry_filled"`
	StopLossHit        bool    `json:"stop_loss_hit"`
	TakeProfitsReached int     `json:"take_profits_reached"`
	DurationBars       int     `json:"duration_bars"`
	ProfitUnits        float64 `json:"profit_units"`
	Events             []Event `json:"events"`
	PostMortem         string  `json:"post_mortem,omitempty"`
}

// IsWin reports whether the replay ended with at least one target reached
// and no stop-out.
func (o Outcome) IsWin() bool {
	return o.Status == StatusSuccess
}

// IsSettled reports whether the replay reached a decided state.
func (o Outcome) IsSettled() bool {
	return o.Status != StatusPending
}
