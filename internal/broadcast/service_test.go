package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/consumer"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/parser"
)

// Mocks
type MockConsumer struct{ mock.Mock }

func (m *MockConsumer) Consume(ctx context.Context) (<-chan consumer.Message, <-chan error) {
	args := m.Called(ctx)
	return args.Get(0).(<-chan consumer.Message), args.Get(1).(<-chan error)
}
func (m *MockConsumer) Commit(ctx context.Context, msg consumer.Message) error {
	return m.Called(ctx, msg).Error(0)
}
func (m *MockConsumer) Close() error { return m.Called().Error(0) }

func TestDispatchPoolDeliveryProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})

	properties.Property("all placements are delivered, in order per cell", prop.ForAll(
		func(numPlacements int) bool {
			mc := new(MockConsumer)
			mc.On("Commit", mock.Anything, mock.Anything).Return(nil)

			hub := NewHub(1024, l)
			sub := hub.Subscribe()

			var mu sync.Mutex
			received := 0
			ordered := true
			lastPerCell := make(map[int]int)
			done := make(chan struct{})
			go func() {
				for batch := range sub.Updates() {
					mu.Lock()
					received += len(batch)
					for _, pl := range batch {
						if last, ok := lastPerCell[pl.X]; ok && pl.Color <= last {
							ordered = false
						}
						lastPerCell[pl.X] = pl.Color
					}
					mu.Unlock()
				}
				close(done)
			}()

			p := NewDispatchPool(l, hub, mc, 2, 10, 20*time.Millisecond)
			p.Start(context.Background())

			// A handful of cells, each written many times with an
			// increasing color so the receiver can verify per-cell order.
			for i := 0; i < numPlacements; i++ {
				_ = p.Submit(context.Background(), Job{
					Placement: canvas.Placement{X: i % 5, Y: 0, Color: i, Nickname: "prop"},
					Message:   consumer.Message{Offset: int64(i)},
				})
			}

			// Shutdown forces the final flush.
			_ = p.Shutdown(context.Background())
			hub.Unsubscribe(sub)
			<-done

			mu.Lock()
			defer mu.Unlock()
			return received == numPlacements && ordered
		},
		gen.IntRange(1, 100),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestDispatchPoolPreservesSameCellOrder(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})

	// batchSize 1 flushes every placement individually, maximizing the
	// chance of interleaving if two workers ever shared one cell.
	for round := 0; round < 20; round++ {
		mc := new(MockConsumer)
		mc.On("Commit", mock.Anything, mock.Anything).Return(nil)

		hub := NewHub(1024, l)
		sub := hub.Subscribe()

		p := NewDispatchPool(l, hub, mc, 4, 1, 5*time.Millisecond)
		p.Start(context.Background())

		const writes = 50
		for c := 0; c < writes; c++ {
			require.NoError(t, p.Submit(context.Background(), Job{
				Placement: canvas.Placement{X: 7, Y: 3, Color: c, Nickname: "alice"},
				Message:   consumer.Message{Offset: int64(c)},
			}))
		}

		require.NoError(t, p.Shutdown(context.Background()))
		hub.Unsubscribe(sub)

		last := -1
		for batch := range sub.Updates() {
			for _, pl := range batch {
				require.Greater(t, pl.Color, last,
					"round %d: cell updates arrived out of append order", round)
				last = pl.Color
			}
		}
		require.Equal(t, writes-1, last)
	}
}

func TestDispatchPoolCommitsAfterDelivery(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	mc := new(MockConsumer)
	mc.On("Commit", mock.Anything, mock.Anything).Return(nil)

	hub := NewHub(16, l)
	p := NewDispatchPool(l, hub, mc, 1, 2, 10*time.Millisecond)
	p.Start(context.Background())

	msg := consumer.Message{Offset: 7}
	require.NoError(t, p.Submit(context.Background(), Job{
		Placement: canvas.Placement{X: 1, Y: 1, Color: 1, Nickname: "alice"},
		Message:   msg,
	}))

	require.NoError(t, p.Shutdown(context.Background()))
	mc.AssertCalled(t, "Commit", mock.Anything, msg)
}

func TestDispatchPoolShutdown(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	mc := new(MockConsumer)
	hub := NewHub(16, l)

	p := NewDispatchPool(l, hub, mc, 1, 100, time.Second)
	p.Start(context.Background())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestServiceSkipsMalformedEvents(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	mc := new(MockConsumer)
	hub := NewHub(16, l)
	pool := NewDispatchPool(l, hub, mc, 1, 10, 10*time.Millisecond)
	pool.Start(context.Background())
	defer pool.Shutdown(context.Background())

	svc := NewService(l, mc, pool)

	msg := consumer.Message{Offset: 3, Value: []byte("not json")}
	mc.On("Commit", mock.Anything, msg).Return(nil)

	err := svc.handleMessage(context.Background(), msg)
	require.NoError(t, err)

	// Malformed events are committed so they are not re-fetched.
	mc.AssertCalled(t, "Commit", mock.Anything, msg)
}

func TestServiceSubmitsParsedEvents(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	mc := new(MockConsumer)
	mc.On("Commit", mock.Anything, mock.Anything).Return(nil)

	hub := NewHub(16, l)
	sub := hub.Subscribe()
	pool := NewDispatchPool(l, hub, mc, 1, 1, 10*time.Millisecond)
	pool.Start(context.Background())

	svc := NewService(l, mc, pool)

	placement := canvas.Placement{X: 5, Y: 5, Color: 2, Nickname: "alice", PlacedAt: time.Now().UTC()}
	data, err := parser.Encode(placement)
	require.NoError(t, err)

	require.NoError(t, svc.handleMessage(context.Background(), consumer.Message{Offset: 1, Value: data}))
	require.NoError(t, pool.Shutdown(context.Background()))

	batch := <-sub.Updates()
	require.Len(t, batch, 1)
	assert.Equal(t, 5, batch[0].X)
	assert.Equal(t, 2, batch[0].Color)
	assert.Equal(t, "alice", batch[0].Nickname)
}

func TestServiceShutdown(t *testing.T) {
	l, _ := logger.New(logger.Config{Level: "error", ServiceName: "test"})
	mc := new(MockConsumer)
	mc.On("Close").Return(nil)

	hub := NewHub(16, l)
	pool := NewDispatchPool(l, hub, mc, 1, 10, 10*time.Millisecond)
	pool.Start(context.Background())

	svc := NewService(l, mc, pool)
	assert.NoError(t, svc.Shutdown(context.Background()))
	mc.AssertCalled(t, "Close")
}
