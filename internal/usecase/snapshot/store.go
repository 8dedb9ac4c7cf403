// Package snapshot holds the last known state of every tracked product.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"shein-verse-bot/internal/domain/entity"
	"shein-verse-bot/internal/repository"
)

// Store maps product id to its SnapshotEntry.
// Only the scheduler writes; the mutex keeps status readers from seeing a torn entry.
type Store struct {
	mu sync.RWMutex
	m  map[string]entity.SnapshotEntry
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{m: make(map[string]entity.SnapshotEntry)}
}

// Get returns the entry for id.
func (s *Store) Get(id string) (entity.SnapshotEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[id]
	return e, ok
}

// Upsert replaces the stored product and returns the previous entry.
// FirstSeen and the notification state survive the replace.
func (s *Store) Upsert(p entity.Product, now time.Time, cycle int64) (entity.SnapshotEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.m[p.ID]
	next := entity.SnapshotEntry{
		Product:       p,
		FirstSeen:     now,
		LastSeen:      now,
		LastSeenCycle: cycle,
	}
	if ok {
		next.FirstSeen = prev.FirstSeen
		next.Notified = prev.Notified
	}
	s.m[p.ID] = next
	return prev, ok
}

// MarkNotified sets the notification state of id without touching its product.
// It reports false when id is not tracked.
func (s *Store) MarkNotified(id string, state entity.NotifiedState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[id]
	if !ok {
		return false
	}
	e.Notified = state
	s.m[id] = e
	return true
}

// Sweep evicts entries that have not been seen for graceCycles successful cycles
// and returns them ordered by id. Call it once per successful cycle, after all
// fetched products were upserted.
func (s *Store) Sweep(now time.Time, cycle int64, graceCycles int) []entity.SnapshotEntry {
	if graceCycles < 1 {
		graceCycles = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []entity.SnapshotEntry
	for id, e := range s.m {
		if cycle-e.LastSeenCycle >= int64(graceCycles) {
			removed = append(removed, e)
			delete(s.m, id)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Product.ID < removed[j].Product.ID })

	if len(removed) > 0 {
		slog.Debug("snapshot sweep evicted products",
			slog.Int("count", len(removed)),
			slog.Int64("cycle", cycle),
			slog.Time("at", now))
	}
	return removed
}

// Len returns the number of tracked products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Entries returns a copy of every entry ordered by id.
func (s *Store) Entries() []entity.SnapshotEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entity.SnapshotEntry, 0, len(s.m))
	for _, e := range s.m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out
}

// Restore replaces the store content.
func (s *Store) Restore(entries []entity.SnapshotEntry) {
	m := make(map[string]entity.SnapshotEntry, len(entries))
	for _, e := range entries {
		if e.Product.ID == "" {
			continue
		}
		m[e.Product.ID] = e
	}

	s.mu.Lock()
	s.m = m
	s.mu.Unlock()
}

// MaxCycle returns the highest LastSeenCycle in the store, used to resume the
// cycle counter after a restart.
func (s *Store) MaxCycle() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var max int64
	for _, e := range s.m {
		if e.LastSeenCycle > max {
			max = e.LastSeenCycle
		}
	}
	return max
}

// Load fills the store from repo. A failed or corrupt load leaves the store
// empty: every product is then treated as new once.
func (s *Store) Load(ctx context.Context, repo repository.SnapshotRepository) error {
	if repo == nil {
		return nil
	}
	entries, err := repo.Load(ctx)
	if err != nil {
		s.Restore(nil)
		return fmt.Errorf("Load: %w", err)
	}
	s.Restore(entries)
	return nil
}

// Flush writes the current content to repo.
func (s *Store) Flush(ctx context.Context, repo repository.SnapshotRepository) error {
	if repo == nil {
		return nil
	}
	if err := repo.Save(ctx, s.Entries()); err != nil {
		return fmt.Errorf("Flush: %w", err)
	}
	return nil
}
