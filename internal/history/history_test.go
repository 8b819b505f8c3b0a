package history

import (
	"reflect"
	"testing"
	"time"

	"github.com/tranmd/whaleaudit/internal/simulation"
)

func snap(id string, age time.Duration, now time.Time) Snapshot {
	return Snapshot{ID: id, Symbol: "BTCUSDT", CreatedAt: now.Add(-age)}
}

func TestMerge_ReplacesInPlace(t *testing.T) {
	now := time.Now()
	list := []Snapshot{
		snap("a", time.Hour, now),
		snap("b", 2*time.Hour, now),
		snap("c", 3*time.Hour, now),
	}

	updated := list[1]
	updated.Outcome = &simulation.Outcome{Status: simulation.StatusSuccess}

	merged := Merge(list, updated)

	if len(merged) != 3 {
		t.Fatalf("len = %d, want 3", len(merged))
	}
	if merged[0].ID != "a" || merged[1].ID != "b" || merged[2].ID != "c" {
		t.Error("merge changed ordering")
	}
	if merged[1].Outcome == nil || merged[1].Outcome.Status != simulation.StatusSuccess {
		t.Error("updated entry not replaced")
	}
	if list[1].Outcome != nil {
		t.Error("Merge mutated its input")
	}
}

func TestMerge_Idempotent(t *testing.T) {
	now := time.Now()
	list := []Snapshot{snap("a", time.Hour, now), snap("b", 2*time.Hour, now)}

	updated := list[0]
	updated.Outcome = &simulation.Outcome{Status: simulation.StatusFailed}

	once := Merge(list, updated)
	twice := Merge(once, updated)

	if !reflect.DeepEqual(once, twice) {
		t.Error("merging the same snapshot twice changed the list")
	}
}

func TestMerge_UnknownIDIsNoOp(t *testing.T) {
	now := time.Now()
	list := []Snapshot{snap("a", time.Hour, now)}

	merged := Merge(list, snap("ghost", time.Minute, now))
	if !reflect.DeepEqual(merged, list) {
		t.Error("merge with unknown id should not change the list")
	}
}

func TestPrune_DropsExpired(t *testing.T) {
	now := time.Now()
	list := []Snapshot{
		snap("fresh", time.Hour, now),
		snap("old", 49*time.Hour, now),
		snap("edge", 47*time.Hour, now),
	}

	pruned := Prune(list, now, 48*time.Hour)

	if len(pruned) != 2 {
		t.Fatalf("len = %d, want 2", len(pruned))
	}
	if pruned[0].ID != "fresh" || pruned[1].ID != "edge" {
		t.Errorf("pruned = %v", pruned)
	}
}

func TestCap_KeepsNewest(t *testing.T) {
	now := time.Now()
	var list []Snapshot
	for i := 0; i < 5; i++ {
		list = append(list, snap(string(rune('a'+i)), time.Duration(i)*time.Hour, now))
	}

	capped := Cap(list, 3)
	if len(capped) != 3 {
		t.Fatalf("len = %d, want 3", len(capped))
	}
	if capped[0].ID != "a" || capped[2].ID != "c" {
		t.Errorf("capped = %v", capped)
	}

	// Under the bound the list is returned whole.
	if got := Cap(list, 10); len(got) != 5 {
		t.Errorf("Cap under bound: len = %d, want 5", len(got))
	}
}

func TestStore_AddAssignsIDAndCaps(t *testing.T) {
	s := NewStore(Options{MaxEntries: 2})

	first := s.Add(Snapshot{Symbol: "BTCUSDT"})
	if first.ID == "" {
		t.Error("Add did not assign an id")
	}

	s.Add(Snapshot{Symbol: "ETHUSDT"})
	s.Add(Snapshot{Symbol: "SOLUSDT"})

	all := s.All()
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2 (capped)", len(all))
	}
	if all[0].Symbol != "SOLUSDT" {
		t.Errorf("newest first violated: %v", all[0].Symbol)
	}
	if _, err := s.Get(first.ID); err == nil {
		t.Error("oldest entry should have been evicted")
	}
}

func TestStore_UpdateUnknownID(t *testing.T) {
	s := NewStore(Options{})
	if err := s.Update(Snapshot{ID: "missing"}); err == nil {
		t.Error("expected error updating unknown id")
	}
}

func TestStore_UpdateReplacesOutcome(t *testing.T) {
	s := NewStore(Options{})
	stored := s.Add(Snapshot{Symbol: "BTCUSDT"})

	stored.Outcome = &simulation.Outcome{Status: simulation.StatusPending}
	if err := s.Update(stored); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	// A repeat audit overwrites the previous outcome wholesale.
	stored.Outcome = &simulation.Outcome{Status: simulation.StatusSuccess}
	if err := s.Update(stored); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := s.Get(stored.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Outcome.Status != simulation.StatusSuccess {
		t.Errorf("Outcome.Status = %v, want SUCCESS", got.Outcome.Status)
	}
}

func TestStore_PruneExpired(t *testing.T) {
	now := time.Now()
	s := NewStore(Options{MaxAge: 48 * time.Hour})
	s.Add(Snapshot{ID: "old", CreatedAt: now.Add(-50 * time.Hour)})
	s.Add(Snapshot{ID: "fresh", CreatedAt: now.Add(-time.Hour)})

	removed := s.PruneExpired(now)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}
