package ledger

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateUser is returned by Register when the nickname is taken.
// It is the only ledger condition surfaced to users; every placement-path
// rejection is a silent drop.
var ErrDuplicateUser = errors.New("nickname already registered")

// UserRecord is an immutable snapshot of a user's aggregate state. PixelCount
// equals the number of placements ever accepted for the nickname;
// LastPlacedAt gates the cooldown.
type UserRecord struct {
	Nickname     string
	PixelCount   int64
	LastPlacedAt time.Time
}

// Ledger is the durable per-user aggregate store. The cooldown window is
// fixed at construction time.
type Ledger interface {
	// Register creates a new user eligible to place immediately
	// (LastPlacedAt is backdated by one cooldown window). Returns
	// ErrDuplicateUser if the nickname exists.
	Register(ctx context.Context, nickname string) (UserRecord, error)

	// Get returns the user's current snapshot. The second return is false
	// when the nickname was never registered; no implicit creation.
	Get(ctx context.Context, nickname string) (UserRecord, bool, error)

	// TryConsumeCooldown atomically checks that the cooldown window has
	// elapsed at time now and, if so, advances LastPlacedAt to now and
	// increments PixelCount in the same step. Concurrent calls for one
	// nickname observe at most one success per window; calls for different
	// nicknames never contend.
	TryConsumeCooldown(ctx context.Context, nickname string, now time.Time) (bool, error)

	// TopN returns up to n users ordered by pixel count descending,
	// nickname ascending on ties.
	TopN(ctx context.Context, n int) ([]UserRecord, error)
}
