package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Kafka     KafkaConfig
	Redis     RedisConfig
	Checkin   CheckinConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Driver       string // memory or mysql
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type KafkaConfig struct {
	Brokers            []string
	GroupID            string
	NotificationsTopic string
	ScansTopic         string
	MockMode           bool
	ConsumeScans       bool
}

type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	LockTTL    time.Duration
	LockRetry  time.Duration
	LockPrefix string
}

type CheckinConfig struct {
	DefaultGate          string
	DefaultPaymentMethod string
	BulkWorkers          int
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8086"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "memory"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "3306"),
			Username:     getEnv("DB_USER", "root"),
			Password:     getEnv("DB_PASS", "password"),
			Database:     getEnv("DB_NAME", "ticketing"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Kafka: KafkaConfig{
			Brokers:            getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:29092"}),
			GroupID:            getEnv("KAFKA_GROUP_ID", "ticketing-engine"),
			NotificationsTopic: getEnv("KAFKA_NOTIFICATIONS_TOPIC", "ticket-notifications"),
			ScansTopic:         getEnv("KAFKA_SCANS_TOPIC", "ticket-scans"),
			MockMode:           getEnvAsBool("KAFKA_MOCK_MODE", true),
			ConsumeScans:       getEnvAsBool("KAFKA_CONSUME_SCANS", false),
		},
		Redis: RedisConfig{
			Enabled:    getEnvAsBool("REDIS_LOCKS_ENABLED", false),
			Addr:       getEnv("REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("REDIS_PASSWORD", ""),
			DB:         getEnvAsInt("REDIS_DB", 0),
			LockTTL:    getEnvAsDuration("REDIS_LOCK_TTL", "10s"),
			LockRetry:  getEnvAsDuration("REDIS_LOCK_RETRY", "25ms"),
			LockPrefix: getEnv("REDIS_LOCK_PREFIX", "ticketing_lock:"),
		},
		Checkin: CheckinConfig{
			DefaultGate:          getEnv("CHECKIN_DEFAULT_GATE", "Main Gate"),
			DefaultPaymentMethod: getEnv("BOOKING_DEFAULT_PAYMENT_METHOD", "GCASH"),
			BulkWorkers:          getEnvAsInt("CHECKIN_BULK_WORKERS", 1),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 100),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 100),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, defaultValue)); err == nil {
		return d
	}
	d, _ := time.ParseDuration(defaultValue)
	return d
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
