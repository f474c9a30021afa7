package broadcast

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/metrics"
)

// Hub fans placement batches out to live viewers. Each subscriber owns a
// bounded queue; when a viewer cannot keep up its batches are dropped so the
// rest of the room keeps receiving updates. Publish never blocks.
type Hub struct {
	logger     *logger.Logger
	bufferSize int

	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
}

// Subscriber is one connected viewer's receive side. The transport layer
// drains Updates and forwards batches tagged as placement updates.
type Subscriber struct {
	ch      chan []canvas.Placement
	dropped int64
}

// Updates returns the subscriber's batch channel. It is closed on
// unsubscribe.
func (s *Subscriber) Updates() <-chan []canvas.Placement {
	return s.ch
}

// NewHub creates a hub whose subscribers buffer up to bufferSize batches.
func NewHub(bufferSize int, l *logger.Logger) *Hub {
	return &Hub{
		logger:     l,
		bufferSize: bufferSize,
		subs:       make(map[*Subscriber]struct{}),
	}
}

// Subscribe registers a new viewer.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan []canvas.Placement, h.bufferSize)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes the viewer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Publish delivers the batch to every subscriber whose queue has room.
// Per-subscriber channel order preserves publish order for that viewer.
func (h *Hub) Publish(batch []canvas.Placement) {
	if len(batch) == 0 {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- batch:
		default:
			dropped := atomic.AddInt64(&sub.dropped, 1)
			metrics.BroadcastDroppedTotal.Inc()
			h.logger.Warn("dropping batch for slow subscriber",
				zap.Int64("dropped_total", dropped))
		}
	}
}

// Len returns the current subscriber count.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
