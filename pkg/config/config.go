package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds the complete configuration for the application
type AppConfig struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"log_level"`
	ServiceName string          `mapstructure:"service_name"`
	Canvas      CanvasConfig    `mapstructure:"canvas"`
	Postgres    PostgresConfig  `mapstructure:"postgres"`
	MongoDB     MongoConfig     `mapstructure:"mongodb"`
	History     HistoryConfig   `mapstructure:"history"`
	Kafka       KafkaConfig     `mapstructure:"kafka"`
	Redis       RedisConfig     `mapstructure:"redis"`
	Broadcast   BroadcastConfig `mapstructure:"broadcast"`
	Server      ServerConfig    `mapstructure:"server"`
}

// CanvasConfig bounds the board and gates placement frequency
type CanvasConfig struct {
	Width     int           `mapstructure:"width"`
	Height    int           `mapstructure:"height"`
	MinColor  int           `mapstructure:"min_color"`
	MaxColor  int           `mapstructure:"max_color"`
	RateLimit time.Duration `mapstructure:"rate_limit"`
}

type PostgresConfig struct {
	URI             string        `mapstructure:"uri"`
	MaxConns        int           `mapstructure:"max_conns"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// HistoryConfig selects the placement log backend: "postgres" or "mongodb"
type HistoryConfig struct {
	Backend string `mapstructure:"backend"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type RedisConfig struct {
	Addr           string `mapstructure:"addr"`
	LeaderboardKey string `mapstructure:"leaderboard_key"`
}

type BroadcastConfig struct {
	WorkerCount      int           `mapstructure:"worker_count"`
	BatchSize        int           `mapstructure:"batch_size"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	SubscriberBuffer int           `mapstructure:"subscriber_buffer"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load loads configuration from file and environment variables
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	// Default values
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("canvas.width", 2000)
	v.SetDefault("canvas.height", 2000)
	v.SetDefault("canvas.min_color", 0)
	v.SetDefault("canvas.max_color", 127)
	v.SetDefault("canvas.rate_limit", 30*time.Second)
	v.SetDefault("postgres.max_conns", 50)
	v.SetDefault("postgres.min_conns", 10)
	v.SetDefault("postgres.uri", "")
	v.SetDefault("mongodb.connect_timeout", 10*time.Second)
	v.SetDefault("history.backend", "postgres")
	v.SetDefault("kafka.topic", "pixel-placed")
	v.SetDefault("redis.leaderboard_key", "pixelhub:leaderboard")
	v.SetDefault("broadcast.worker_count", 4)
	v.SetDefault("broadcast.batch_size", 64)
	v.SetDefault("broadcast.flush_interval", 100*time.Millisecond)
	v.SetDefault("broadcast.subscriber_buffer", 256)
	v.SetDefault("server.addr", ":8080")

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	// Bind environment variables explicitly for nested structs to ensure Unmarshal picks them up
	v.BindEnv("service_name", "SERVICE_NAME")
	v.BindEnv("environment", "ENVIRONMENT")
	v.BindEnv("log_level", "LOG_LEVEL")
	v.BindEnv("canvas.width", "CANVAS_WIDTH")
	v.BindEnv("canvas.height", "CANVAS_HEIGHT")
	v.BindEnv("canvas.min_color", "CANVAS_MIN_COLOR")
	v.BindEnv("canvas.max_color", "CANVAS_MAX_COLOR")
	v.BindEnv("canvas.rate_limit", "CANVAS_RATE_LIMIT")
	v.BindEnv("postgres.uri", "POSTGRES_URI")
	v.BindEnv("postgres.max_conns", "POSTGRES_MAX_CONNS")
	v.BindEnv("postgres.min_conns", "POSTGRES_MIN_CONNS")
	v.BindEnv("mongodb.uri", "MONGODB_URI")
	v.BindEnv("mongodb.database", "MONGODB_DATABASE")
	v.BindEnv("mongodb.collection", "MONGODB_COLLECTION")
	v.BindEnv("history.backend", "HISTORY_BACKEND")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.leaderboard_key", "REDIS_LEADERBOARD_KEY")
	v.BindEnv("broadcast.worker_count", "BROADCAST_WORKER_COUNT")
	v.BindEnv("broadcast.batch_size", "BROADCAST_BATCH_SIZE")
	v.BindEnv("broadcast.flush_interval", "BROADCAST_FLUSH_INTERVAL")
	v.BindEnv("broadcast.subscriber_buffer", "BROADCAST_SUBSCRIBER_BUFFER")
	v.BindEnv("server.addr", "SERVER_ADDR")

	var config AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Brokers may arrive as a single comma-separated string from env
	brokers := v.GetString("kafka.brokers")
	if brokers != "" && len(config.Kafka.Brokers) == 0 {
		config.Kafka.Brokers = strings.Split(brokers, ",")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *AppConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service_name is required")
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return errors.New("canvas.width and canvas.height must be positive")
	}
	if c.Canvas.MaxColor < c.Canvas.MinColor {
		return errors.New("canvas.max_color must not be below canvas.min_color")
	}
	if c.Canvas.RateLimit < 0 {
		return errors.New("canvas.rate_limit must not be negative")
	}
	if len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required")
	}
	if c.Kafka.Topic == "" {
		return errors.New("kafka.topic is required")
	}
	// The user ledger always lives in Postgres; only the placement log moves.
	if c.Postgres.URI == "" {
		return errors.New("postgres.uri is required")
	}
	switch c.History.Backend {
	case "postgres":
	case "mongodb":
		if c.MongoDB.URI == "" {
			return errors.New("mongodb.uri is required")
		}
		if c.MongoDB.Database == "" {
			return errors.New("mongodb.database is required")
		}
	default:
		return errors.New("history.backend must be \"postgres\" or \"mongodb\"")
	}
	return nil
}
