package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sallich/PixelHub/internal/pipeline"
	"github.com/sallich/PixelHub/pkg/canvas"
	"github.com/sallich/PixelHub/pkg/config"
	"github.com/sallich/PixelHub/pkg/history"
	"github.com/sallich/PixelHub/pkg/leaderboard"
	"github.com/sallich/PixelHub/pkg/ledger"
	"github.com/sallich/PixelHub/pkg/logger"
	"github.com/sallich/PixelHub/pkg/producer"
	"github.com/sallich/PixelHub/pkg/retry"
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
		ServiceName: "pixelhub",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer l.Sync()

	l.Info("pixelhub service initializing", zap.String("env", cfg.Environment))

	// 3. Initialize Postgres (shared pool for the ledger and, by default,
	// the placement log)
	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URI)
	if err != nil {
		l.Error("failed to parse postgres uri", err)
		os.Exit(1)
	}
	poolCfg.MinConns = int32(cfg.Postgres.MinConns)
	poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		l.Error("failed to create postgres pool", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := retry.Do(context.Background(), func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}, retry.DefaultOptions()); err != nil {
		l.Error("failed to ping postgres", err)
		os.Exit(1)
	}

	userLedger := ledger.NewPGLedgerFromPool(pool, cfg.Canvas.RateLimit, l)

	// 4. Initialize the placement log backend
	var store history.Store
	switch cfg.History.Backend {
	case "mongodb":
		mongoCtx, mongoCancel := context.WithTimeout(context.Background(), cfg.MongoDB.ConnectTimeout)
		client, err := mongo.Connect(mongoCtx, options.Client().ApplyURI(cfg.MongoDB.URI))
		mongoCancel()
		if err != nil {
			l.Error("failed to connect to mongodb", err)
			os.Exit(1)
		}
		defer client.Disconnect(context.Background())

		coll := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		store = history.NewMongoStore(coll, l)
	default:
		store = history.NewPGStoreFromPool(pool, l)
	}

	// 5. Initialize Kafka producer
	kafkaProducer := producer.NewKafkaProducer(producer.Config{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.Topic,
	})
	defer kafkaProducer.Close()

	// 6. Create the placement pipeline
	bounds := canvas.Bounds{
		Width:    cfg.Canvas.Width,
		Height:   cfg.Canvas.Height,
		MinColor: cfg.Canvas.MinColor,
		MaxColor: cfg.Canvas.MaxColor,
	}
	svc := pipeline.NewService(l, bounds, userLedger, store, kafkaProducer)

	// Leaderboard cache is optional; without Redis the API reads the ledger.
	var board *leaderboard.Cache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer client.Close()
		board = leaderboard.New(client, cfg.Redis.LeaderboardKey, userLedger, l)
		svc.WithLeaderboardCache(board)
	}

	// 7. Start the API server
	apiServer := server.New(cfg.Server.Addr, l, server.Deps{
		Placer:      svc,
		Ledger:      userLedger,
		Store:       store,
		Leaderboard: board,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			l.Error("api server failed", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("pixelhub service started",
		zap.String("addr", cfg.Server.Addr),
		zap.String("history_backend", cfg.History.Backend))
	<-ctx.Done()

	l.Info("pixelhub service stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	apiServer.Shutdown(shutdownCtx)
}
