package audit

import (
	"math"

	"github.com/tranmd/whaleaudit/internal/history"
)

// Stats summarizes audited history for the dashboard.
type Stats struct {
	Total       int     `json:"total"`
	Audited     int     `json:"audited"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Pending     int     `json:"pending"`
	WinRate     int     `json:"win_rate"` // whole percent
	ProfitUnits float64 `json:"profit_units"`
}

// Summarize computes aggregate statistics over the snapshot list. The win
// rate counts only settled outcomes: pending replays are excluded from the
// denominator, and an empty denominator yields zero.
func Summarize(list []history.Snapshot) Stats {
	var st Stats
	st.Total = len(list)

	for _, snap := range list {
		if !snap.Audited() {
			continue
		}
		st.Audited++
		out := snap.Outcome
		st.ProfitUnits += out.ProfitUnits

		switch {
		case out.IsWin():
			st.Wins++
		case out.IsSettled():
			st.Losses++
		default:
			st.Pending++
		}
	}

	settled := st.Wins + st.Losses
	if settled > 0 {
		st.WinRate = int(math.Round(float64(st.Wins) / float64(settled) * 100))
	}
	return st
}

// WinRate returns the settled win rate as a whole percent.
func WinRate(list []history.Snapshot) int {
	return Summarize(list).WinRate
}
