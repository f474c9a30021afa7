package broadcast

import (
	"sync"
	"time"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/consumer"
)

// pending couples a parsed placement with its Kafka message so the offset can
// be committed after the batch is delivered.
type pending struct {
	Placement canvas.Placement
	Message   consumer.Message
}

// coalesceBuffer accumulates placements between hub deliveries so a burst of
// pixel writes reaches each viewer as one batch instead of many tiny sends.
type coalesceBuffer struct {
	mu        sync.Mutex
	items     []pending
	capacity  int
	lastFlush time.Time
}

func newCoalesceBuffer(capacity int) *coalesceBuffer {
	return &coalesceBuffer{
		items:     make([]pending, 0, capacity),
		capacity:  capacity,
		lastFlush: time.Now(),
	}
}

// Add appends an item and reports whether the buffer reached capacity.
func (b *coalesceBuffer) Add(item pending) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items = append(b.items, item)
	return len(b.items) >= b.capacity
}

// Flush returns the current batch and clears the buffer.
func (b *coalesceBuffer) Flush() []pending {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.items
	b.items = make([]pending, 0, b.capacity)
	b.lastFlush = time.Now()
	return batch
}

// Size returns the current number of buffered items.
func (b *coalesceBuffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// ShouldFlush reports whether a non-empty buffer has waited at least interval
// since the last flush.
func (b *coalesceBuffer) ShouldFlush(interval time.Duration) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.items) == 0 {
		return false
	}
	return time.Since(b.lastFlush) >= interval
}
