package config

import (
	"os"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AppConfig {
	return AppConfig{
		ServiceName: "pixelhub",
		Canvas: CanvasConfig{
			Width:     2000,
			Height:    2000,
			MinColor:  0,
			MaxColor:  127,
			RateLimit: 30 * time.Second,
		},
		Postgres: PostgresConfig{URI: "postgres://localhost:5432/pixelhub"},
		History:  HistoryConfig{Backend: "postgres"},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "pixel-placed",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("positive canvas dimensions pass validation", prop.ForAll(
		func(w, h, maxColor int) bool {
			cfg := validConfig()
			cfg.Canvas.Width = w
			cfg.Canvas.Height = h
			cfg.Canvas.MaxColor = maxColor
			return cfg.Validate() == nil
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 10000),
		gen.IntRange(0, 255),
	))

	properties.Property("non-positive dimensions fail validation", prop.ForAll(
		func(w int) bool {
			cfg := validConfig()
			cfg.Canvas.Width = w
			return cfg.Validate() != nil
		},
		gen.IntRange(-1000, 0),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestConfigValidationRequiredFields(t *testing.T) {
	cfg := validConfig()
	cfg.ServiceName = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Kafka.Brokers = nil
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Canvas.MaxColor = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.History.Backend = "cassandra"
	assert.Error(t, cfg.Validate())

	// Mongo backend requires mongo coordinates but still needs Postgres for the ledger.
	cfg = validConfig()
	cfg.History.Backend = "mongodb"
	assert.Error(t, cfg.Validate())
	cfg.MongoDB = MongoConfig{URI: "mongodb://localhost:27017", Database: "pixelhub"}
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	os.Setenv("SERVICE_NAME", "pixelhub-test")
	os.Setenv("POSTGRES_URI", "postgres://localhost:5432/pixelhub")
	os.Setenv("KAFKA_BROKERS", "localhost:9092,localhost:9093")
	os.Setenv("KAFKA_TOPIC", "pixel-placed")
	os.Setenv("CANVAS_WIDTH", "100")
	defer os.Clearenv()

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "pixelhub-test", cfg.ServiceName)
	assert.Equal(t, []string{"localhost:9092", "localhost:9093"}, cfg.Kafka.Brokers)
	assert.Equal(t, 100, cfg.Canvas.Width)
	assert.Equal(t, 2000, cfg.Canvas.Height)
	assert.Equal(t, 30*time.Second, cfg.Canvas.RateLimit)
	assert.Equal(t, "postgres", cfg.History.Backend)

	os.Unsetenv("SERVICE_NAME")
	_, err = Load("")
	assert.Error(t, err)
}
