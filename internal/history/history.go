// Package history holds the bounded collection of analysis snapshots,
// newest first. Merge, Prune and Cap are pure functions so the retention
// policy is testable without the store.
package history

import (
	"time"

	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/simulation"
)

// Retention bounds applied at the persistence boundary.
const (
	DefaultMaxEntries = 30
	DefaultMaxAge     = 48 * time.Hour
)

// Snapshot is one stored analysis event: the instrument, the oracle's
// report, and at most one audit outcome. Outcome is attached exactly once
// per audit run; re-auditing replaces it wholesale.
type Snapshot struct {
	ID        string              `json:"id"`
	Symbol    string              `json:"symbol"`
	CreatedAt time.Time           `json:"created_at"`
	Report    core.Report         `json:"report"`
	Outcome   *simulation.Outcome `json:"outcome,omitempty"`
}

// Age returns how long ago the snapshot was created.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// Audited reports whether an outcome has been attached.
func (s Snapshot) Audited() bool {
	return s.Outcome != nil
}

// Merge replaces the entry whose ID matches updated, preserving order.
// No-op when no entry matches; insertion happens through Store.Add, never
// through this path.
func Merge(list []Snapshot, updated Snapshot) []Snapshot {
	result := make([]Snapshot, len(list))
	copy(result, list)
	for i := range result {
		if result[i].ID == updated.ID {
			result[i] = updated
			break
		}
	}
	return result
}

// Prune removes entries older than maxAge, preserving the order of the
// survivors.
func Prune(list []Snapshot, now time.Time, maxAge time.Duration) []Snapshot {
	result := make([]Snapshot, 0, len(list))
	for _, s := range list {
		if now.Sub(s.CreatedAt) < maxAge {
			result = append(result, s)
		}
	}
	return result
}

// Cap truncates the list to its first max entries. The list is kept newest
// first, so this drops the oldest.
func Cap(list []Snapshot, max int) []Snapshot {
	if max < 0 || len(list) <= max {
		result := make([]Snapshot, len(list))
		copy(result, list)
		return result
	}
	result := make([]Snapshot, max)
	copy(result, list[:max])
	return result
}
