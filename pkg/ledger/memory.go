package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryLedger keeps user aggregates in process memory. Used by tests and
// local development; the Postgres backend is the durable one.
type MemoryLedger struct {
	cooldown time.Duration

	mu    sync.RWMutex
	users map[string]*memoryEntry
}

// Each entry carries its own lock so cooldown consumption for different
// nicknames never serializes on a shared mutex.
type memoryEntry struct {
	mu           sync.Mutex
	pixelCount   int64
	lastPlacedAt time.Time
}

// NewMemoryLedger creates an empty in-memory ledger with the given cooldown window.
func NewMemoryLedger(cooldown time.Duration) *MemoryLedger {
	return &MemoryLedger{
		cooldown: cooldown,
		users:    make(map[string]*memoryEntry),
	}
}

// Register creates the user, immediately eligible to place.
func (l *MemoryLedger) Register(ctx context.Context, nickname string) (UserRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.users[nickname]; ok {
		return UserRecord{}, ErrDuplicateUser
	}

	entry := &memoryEntry{lastPlacedAt: time.Now().Add(-l.cooldown)}
	l.users[nickname] = entry

	return UserRecord{Nickname: nickname, LastPlacedAt: entry.lastPlacedAt}, nil
}

// Get returns the user's snapshot, or false if never registered.
func (l *MemoryLedger) Get(ctx context.Context, nickname string) (UserRecord, bool, error) {
	l.mu.RLock()
	entry, ok := l.users[nickname]
	l.mu.RUnlock()
	if !ok {
		return UserRecord{}, false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return UserRecord{
		Nickname:     nickname,
		PixelCount:   entry.pixelCount,
		LastPlacedAt: entry.lastPlacedAt,
	}, true, nil
}

// TryConsumeCooldown performs the check-and-update under the entry's lock.
func (l *MemoryLedger) TryConsumeCooldown(ctx context.Context, nickname string, now time.Time) (bool, error) {
	l.mu.RLock()
	entry, ok := l.users[nickname]
	l.mu.RUnlock()
	if !ok {
		return false, nil
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if now.Before(entry.lastPlacedAt.Add(l.cooldown)) {
		return false, nil
	}

	entry.lastPlacedAt = now
	entry.pixelCount++
	return true, nil
}

// TopN returns users by pixel count descending, nickname ascending on ties.
func (l *MemoryLedger) TopN(ctx context.Context, n int) ([]UserRecord, error) {
	l.mu.RLock()
	records := make([]UserRecord, 0, len(l.users))
	for nickname, entry := range l.users {
		entry.mu.Lock()
		records = append(records, UserRecord{
			Nickname:     nickname,
			PixelCount:   entry.pixelCount,
			LastPlacedAt: entry.lastPlacedAt,
		})
		entry.mu.Unlock()
	}
	l.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if records[i].PixelCount != records[j].PixelCount {
			return records[i].PixelCount > records[j].PixelCount
		}
		return records[i].Nickname < records[j].Nickname
	})

	if n < len(records) {
		records = records[:n]
	}
	return records, nil
}
