package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tranmd/whaleaudit/internal/core"
	"github.com/tranmd/whaleaudit/internal/storage/archive"
)

// Namespace is the fixed archive key the history list is synced under.
const Namespace = "analysis_history.json"

// Store is the process-wide snapshot collection, newest first. Reads come
// from the API layer, writes from the auditor and the analysis oracle;
// last write wins per snapshot id.
type Store struct {
	mu         sync.RWMutex
	snapshots  []Snapshot
	maxEntries int
	maxAge     time.Duration
	backend    archive.Backend // nil disables durable sync
}

// Options configures retention and persistence.
type Options struct {
	MaxEntries int
	MaxAge     time.Duration
	Backend    archive.Backend
}

// NewStore creates a history store. Zero options fall back to the default
// retention bounds.
func NewStore(opts Options) *Store {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	return &Store{
		maxEntries: opts.MaxEntries,
		maxAge:     opts.MaxAge,
		backend:    opts.Backend,
	}
}

// Load replaces the in-memory list from the archive backend, applying the
// retention bounds to whatever was persisted.
func (s *Store) Load(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	data, ok, err := s.backend.Get(ctx, Namespace)
	if err != nil {
		return fmt.Errorf("loading history: %w", err)
	}
	if !ok {
		return nil
	}

	var list []Snapshot
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("decoding history: %w", err)
	}

	list = Cap(Prune(list, time.Now(), s.maxAge), s.maxEntries)

	s.mu.Lock()
	s.snapshots = list
	s.mu.Unlock()
	return nil
}

// Save persists the current list to the archive backend.
func (s *Store) Save(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	s.mu.RLock()
	data, err := json.Marshal(s.snapshots)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	if err := s.backend.Put(ctx, Namespace, data); err != nil {
		return fmt.Errorf("saving history: %w", err)
	}
	return nil
}

// Add prepends a new snapshot, assigning an id when absent, and applies
// the retention cap. Returns the stored snapshot.
func (s *Store) Add(snap Snapshot) Snapshot {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = Cap(append([]Snapshot{snap}, s.snapshots...), s.maxEntries)
	return snap
}

// Get returns the snapshot with the given id.
func (s *Store) Get(id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, snap := range s.snapshots {
		if snap.ID == id {
			return snap, nil
		}
	}
	return Snapshot{}, core.ErrSnapshotNotFound
}

// Update merges an updated snapshot into the list by id. Updating an
// unknown id is an error rather than an insert.
func (s *Store) Update(updated Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.snapshots {
		if s.snapshots[i].ID == updated.ID {
			s.snapshots = Merge(s.snapshots, updated)
			return nil
		}
	}
	return core.ErrSnapshotNotFound
}

// All returns a copy of the list, newest first.
func (s *Store) All() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Snapshot, len(s.snapshots))
	copy(result, s.snapshots)
	return result
}

// PruneExpired drops entries past the age bound and reports how many were
// removed.
func (s *Store) PruneExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.snapshots)
	s.snapshots = Prune(s.snapshots, now, s.maxAge)
	return before - len(s.snapshots)
}

// Len returns the number of stored snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
