package broadcast

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/consumer"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/parser"
)

// Service is the fan-out tier: it consumes accepted placements from Kafka and
// drives them through the dispatch pool to the hub.
type Service struct {
	logger   *logger.Logger
	consumer consumer.Consumer
	pool     *DispatchPool
}

// NewService creates a new broadcast service instance
func NewService(l *logger.Logger, c consumer.Consumer, p *DispatchPool) *Service {
	return &Service{
		logger:   l,
		consumer: c,
		pool:     p,
	}
}

// Start begins the consumption and delivery loop
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("starting broadcast service")

	// 1. Start dispatch pool
	s.pool.Start(ctx)

	// 2. Start consuming
	msgChan, errChan := s.consumer.Consume(ctx)

	// 3. Main loop
	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				return nil
			}

			if err := s.handleMessage(ctx, msg); err != nil {
				s.logger.Error("failed to handle message", err, zap.Int64("offset", msg.Offset))
			}

		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("consumer error: %w", err)
			}

		case <-ctx.Done():
			return s.Shutdown(context.Background())
		}
	}
}

func (s *Service) handleMessage(ctx context.Context, msg consumer.Message) error {
	placement, err := parser.ParsePlacedEvent(msg.Value)
	if err != nil {
		// Malformed events are skipped; viewers never see them. The offset
		// is still committed so the event is not re-fetched forever.
		s.logger.Warn("skipping malformed placed event",
			zap.Error(err),
			zap.Int64("offset", msg.Offset),
			zap.ByteString("payload", msg.Value))
		return s.consumer.Commit(ctx, msg)
	}

	return s.pool.Submit(ctx, Job{
		Placement: placement,
		Message:   msg,
	})
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down broadcast service")

	errPool := s.pool.Shutdown(ctx)
	errCons := s.consumer.Close()

	if errPool != nil || errCons != nil {
		return fmt.Errorf("shutdown errors: pool=%v, consumer=%v", errPool, errCons)
	}
	return nil
}
