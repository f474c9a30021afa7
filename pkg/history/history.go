package history

import (
	"context"
	"time"

	"github.com/sallich/PixelHub/pkg/canvas"
)

// Cell is one visible coordinate in a board projection.
type Cell struct {
	X     int `json:"x"`
	Y     int `json:"y"`
	Color int `json:"c"`
}

// Store is the append-only placement log and the projection queries over it.
// Records are never mutated or deleted; the log is the single source of truth
// for board state at any time.
type Store interface {
	// Append durably stores the placement and returns its log position.
	// Fails only on a storage fault, which callers propagate.
	Append(ctx context.Context, p canvas.Placement) (int64, error)

	// Board projects the current board: the latest color per coordinate.
	Board(ctx context.Context) ([]Cell, error)

	// SnapshotAsOf projects the board as of t: for every coordinate, the
	// color of the latest record with placed_at <= t. Ties on placed_at
	// resolve to the later-appended record.
	SnapshotAsOf(ctx context.Context, t time.Time) ([]Cell, error)

	// Close releases the backing store.
	Close() error
}
