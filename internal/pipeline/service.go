package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/history"
	"github.com/sallich/PixelHub/pkg/leaderboard"
	"github.com/sallich/PixelHub/pkg/ledger"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/metrics"
	"github.com/sallich/PixelHub/pkg/parser"
	"github.com/sallich/PixelHub/pkg/producer"
)

// Service orchestrates a single placement: bounds check, cooldown
// consumption, durable append, asynchronous publish.
type Service struct {
	logger   *logger.Logger
	bounds   canvas.Bounds
	ledger   ledger.Ledger
	store    history.Store
	producer producer.Producer
	board    *leaderboard.Cache // optional
}

// NewService creates a new placement pipeline instance
func NewService(
	l *logger.Logger,
	bounds canvas.Bounds,
	ldg ledger.Ledger,
	store history.Store,
	p producer.Producer,
) *Service {
	return &Service{
		logger:   l,
		bounds:   bounds,
		ledger:   ldg,
		store:    store,
		producer: p,
	}
}

// WithLeaderboardCache attaches a best-effort leaderboard cache.
func (s *Service) WithLeaderboardCache(c *leaderboard.Cache) *Service {
	s.board = c
	return s
}

// PlacePixel runs the placement pipeline. Every rejection — out of bounds,
// unregistered nickname, active cooldown — is a silent drop returning nil;
// only storage faults come back as errors, and they are never retried here.
//
// Known consistency gap: the cooldown consumption and the log append are two
// storage operations, not one transaction. If the append fails after the
// ledger update committed, the user's count and cooldown have advanced
// without a durable pixel. This window is accepted and surfaced to the
// caller as the append error.
func (s *Service) PlacePixel(ctx context.Context, x, y, color int, nickname string, now time.Time) error {
	if !s.bounds.Contains(x, y, color) {
		metrics.PlacementsRejectedTotal.WithLabelValues("bounds").Inc()
		return nil
	}

	_, registered, err := s.ledger.Get(ctx, nickname)
	if err != nil {
		return fmt.Errorf("failed to read user: %w", err)
	}
	if !registered {
		metrics.PlacementsRejectedTotal.WithLabelValues("unregistered").Inc()
		return nil
	}

	ok, err := s.ledger.TryConsumeCooldown(ctx, nickname, now)
	if err != nil {
		return fmt.Errorf("failed to consume cooldown: %w", err)
	}
	if !ok {
		metrics.PlacementsRejectedTotal.WithLabelValues("cooldown").Inc()
		s.logger.Debug("placement dropped, cooldown active", zap.String("nickname", nickname))
		return nil
	}

	record := canvas.Placement{
		X:        x,
		Y:        y,
		Color:    color,
		Nickname: nickname,
		PlacedAt: now,
	}

	if _, err := s.store.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to append placement: %w", err)
	}

	metrics.PlacementsAcceptedTotal.Inc()
	s.publish(ctx, record)

	if s.board != nil {
		if err := s.board.Record(ctx, nickname); err != nil {
			s.logger.Warn("failed to update leaderboard cache", zap.Error(err))
		}
	}

	return nil
}

// publish hands the accepted placement to Kafka without waiting for the
// broker. A failed publish is logged and counted; it never fails the
// placement, which is already durable in the log.
//
// The broker write outlives the request: the caller's context dies when the
// handler returns, and a placement that is already in the log must still
// reach the bus.
func (s *Service) publish(ctx context.Context, record canvas.Placement) {
	data, err := parser.Encode(record)
	if err != nil {
		metrics.PublishErrorsTotal.Inc()
		s.logger.Error("failed to encode placed event", err)
		return
	}

	resultChan := s.producer.PublishAsync(context.WithoutCancel(ctx), []byte(record.Nickname), data)
	go func() {
		if result := <-resultChan; result.Error != nil {
			metrics.PublishErrorsTotal.Inc()
			s.logger.Error("failed to publish placed event", result.Error,
				zap.Int("x", record.X), zap.Int("y", record.Y))
		}
	}()
}
