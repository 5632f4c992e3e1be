package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "Main Gate", cfg.Checkin.DefaultGate)
	assert.Equal(t, "GCASH", cfg.Checkin.DefaultPaymentMethod)
	assert.Equal(t, 1, cfg.Checkin.BulkWorkers)
	assert.True(t, cfg.Kafka.MockMode)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CHECKIN_BULK_WORKERS", "4")
	t.Setenv("REDIS_LOCK_TTL", "3s")
	t.Setenv("KAFKA_MOCK_MODE", "false")

	cfg := Load()

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4, cfg.Checkin.BulkWorkers)
	assert.Equal(t, 3*time.Second, cfg.Redis.LockTTL)
	assert.False(t, cfg.Kafka.MockMode)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("CHECKIN_BULK_WORKERS", "many")
	t.Setenv("SERVER_READ_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 1, cfg.Checkin.BulkWorkers)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}
