package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sallich/PixelHub/internal/broadcast"
	"github.com/sallich/PixelHub/pkg/config"
	"github.com/sallich/PixelHub/pkg/consumer"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/server"
)

func main() {
	// 1. Load config
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	l, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "broadcaster",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	l.Info("broadcaster service initializing", zap.String("env", cfg.Environment))

	// 3. Initialize components
	kafkaConsumer := consumer.NewKafkaConsumer(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
		GroupID: cfg.Kafka.GroupID,
	})
	hub := broadcast.NewHub(cfg.Broadcast.SubscriberBuffer, l)
	pool := broadcast.NewDispatchPool(l, hub, kafkaConsumer,
		cfg.Broadcast.WorkerCount, cfg.Broadcast.BatchSize, cfg.Broadcast.FlushInterval)

	// Session transports attach through hub.Subscribe; until one does, a
	// draining subscriber keeps delivery observable in the logs.
	debugSub := hub.Subscribe()
	go func() {
		for batch := range debugSub.Updates() {
			l.Debug("batch delivered", zap.Int("placements", len(batch)))
		}
	}()

	// 4. Create service
	svc := broadcast.NewService(l, kafkaConsumer, pool)

	// 5. Start observability server
	obsServer := server.New(cfg.Server.Addr, l, server.Deps{})
	go func() {
		if err := obsServer.Start(); err != nil {
			l.Error("observability server failed", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start service
	l.Info("broadcaster service starting")
	if err := svc.Start(ctx); err != nil {
		if err == context.Canceled {
			l.Info("broadcaster service stopping")
		} else {
			l.Error("broadcaster service failed", err)
		}
	}

	hub.Unsubscribe(debugSub)

	// Clean up observability server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	obsServer.Shutdown(shutdownCtx)
}
