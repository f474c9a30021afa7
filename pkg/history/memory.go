package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sallich/PixelHub/pkg/canvas"
)

// MemoryStore keeps the placement log as an ordered slice. Appends take the
// write lock; projections take the read lock, so a snapshot sees exactly the
// appends committed before it started.
type MemoryStore struct {
	mu      sync.RWMutex
	records []canvas.Placement
}

// NewMemoryStore creates an empty in-memory placement log.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append stores the record and returns its position (1-based).
func (s *MemoryStore) Append(ctx context.Context, p canvas.Placement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, p)
	return int64(len(s.records)), nil
}

// Board projects the current board.
func (s *MemoryStore) Board(ctx context.Context) ([]Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project(func(canvas.Placement) bool { return true }), nil
}

// SnapshotAsOf projects the board as of t.
func (s *MemoryStore) SnapshotAsOf(ctx context.Context, t time.Time) ([]Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project(func(p canvas.Placement) bool { return !p.PlacedAt.After(t) }), nil
}

// project walks the log in insertion order keeping the newest qualifying
// record per coordinate. Insertion order resolves placed_at ties: a later
// append overwrites an equal-timestamp predecessor.
func (s *MemoryStore) project(include func(canvas.Placement) bool) []Cell {
	type coord struct{ x, y int }
	latest := make(map[coord]canvas.Placement)

	for _, p := range s.records {
		if !include(p) {
			continue
		}
		key := coord{p.X, p.Y}
		if prev, ok := latest[key]; ok && p.PlacedAt.Before(prev.PlacedAt) {
			continue
		}
		latest[key] = p
	}

	cells := make([]Cell, 0, len(latest))
	for key, p := range latest {
		cells = append(cells, Cell{X: key.x, Y: key.y, Color: p.Color})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].X != cells[j].X {
			return cells[i].X < cells[j].X
		}
		return cells[i].Y < cells[j].Y
	})
	return cells
}

// Len returns the number of appended records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
