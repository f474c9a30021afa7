package broadcast

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/consumer"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/metrics"
	"github.com/sallich/PixelHub/pkg/retry"
)

// Job is one parsed placement awaiting delivery.
type Job struct {
	Placement canvas.Placement
	Message   consumer.Message
}

// DispatchPool spreads hub delivery over a set of workers. Each worker
// coalesces placements into batches, publishes them to the hub, and commits
// the Kafka offsets only after the batch was handed to subscribers.
//
// Jobs are sharded to workers by coordinate: a given cell always lands on the
// same worker, so that cell's updates reach every subscriber in append order.
// Only cross-coordinate order is relaxed.
type DispatchPool struct {
	logger        *logger.Logger
	hub           *Hub
	consumer      consumer.Consumer
	numWorkers    int
	batchSize     int
	flushInterval time.Duration
	retryOpts     retry.Options
	inputChans    []chan Job
	wg            sync.WaitGroup
	cancel        context.CancelFunc
}

// NewDispatchPool creates a new DispatchPool instance
func NewDispatchPool(l *logger.Logger, hub *Hub, c consumer.Consumer, numWorkers, batchSize int, flushInterval time.Duration) *DispatchPool {
	opts := retry.DefaultOptions()
	opts.MaxAttempts = 3
	opts.InitialInterval = 100 * time.Millisecond

	inputChans := make([]chan Job, numWorkers)
	for i := range inputChans {
		inputChans[i] = make(chan Job, 2) // Buffered for smooth handoff
	}

	return &DispatchPool{
		logger:        l,
		hub:           hub,
		consumer:      c,
		numWorkers:    numWorkers,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		retryOpts:     opts,
		inputChans:    inputChans,
	}
}

// Start initializes the worker goroutines
func (p *DispatchPool) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(workerCtx, i)
	}
}

// Submit queues a job for delivery on the worker owning the job's coordinate.
func (p *DispatchPool) Submit(ctx context.Context, job Job) error {
	select {
	case p.inputChans[p.shard(job.Placement.X, job.Placement.Y)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shard maps a coordinate to its worker. Stable for the pool's lifetime.
func (p *DispatchPool) shard(x, y int) int {
	h := uint32(x)*31 + uint32(y)
	return int(h % uint32(p.numWorkers))
}

func (p *DispatchPool) runWorker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("dispatch worker started", zap.Int("worker_id", id))

	buffer := newCoalesceBuffer(p.batchSize)
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-p.inputChans[id]:
			if !ok {
				p.flush(ctx, buffer)
				return
			}

			if buffer.Add(pending{Placement: job.Placement, Message: job.Message}) {
				p.flush(ctx, buffer)
			}
			metrics.BroadcastEventsConsumedTotal.Inc()

		case <-ticker.C:
			if buffer.ShouldFlush(p.flushInterval) {
				p.flush(ctx, buffer)
			}

		case <-ctx.Done():
			p.flush(context.Background(), buffer) // Final flush on shutdown
			return
		}
	}
}

func (p *DispatchPool) flush(ctx context.Context, buffer *coalesceBuffer) {
	items := buffer.Flush()
	if len(items) == 0 {
		return
	}

	batch := make([]canvas.Placement, len(items))
	for i, item := range items {
		batch[i] = item.Placement
	}

	// 1. Hand the batch to every live subscriber. Publish never blocks, so
	// a stalled viewer cannot hold up the next batch.
	p.hub.Publish(batch)
	metrics.BroadcastBatchesDeliveredTotal.Inc()

	// 2. Commit offsets only after delivery. Losing a commit re-delivers
	// the placements, which is harmless for idempotent cell updates.
	for _, item := range items {
		msg := item.Message
		err := retry.Do(ctx, func() error {
			return p.consumer.Commit(ctx, msg)
		}, p.retryOpts)
		if err != nil {
			p.logger.Error("failed to commit offset", err, zap.Int64("offset", msg.Offset))
		}
	}
}

// Shutdown stops all workers and waits for them to finish
func (p *DispatchPool) Shutdown(ctx context.Context) error {
	for _, ch := range p.inputChans {
		close(ch)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
