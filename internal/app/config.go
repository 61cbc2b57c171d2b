package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Драйверы хранилища сессий.
const (
	SessionDriverMemory = "memory"
	SessionDriverRedis  = "redis"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	SessionDriver string
	RedisAddr     string
	SessionTTL    time.Duration

	// AdminToken открывает методы редактирования каталога. Пустой токен закрывает их.
	AdminToken     string
	IdempotencyTTL time.Duration

	KafkaBrokers  []string
	KafkaTopic    string
	KafkaDLQTopic string

	OutboxPollInterval    time.Duration
	OutboxBatchSize       int
	OutboxMaxAttempts     int
	OutboxRetryDelay      time.Duration
	OutboxBreakerFailures int
	OutboxBreakerReset    time.Duration

	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	SeedCatalog         bool
	HealthSyncInterval  time.Duration
	ShutdownGracePeriod time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		SessionDriver:               SessionDriverMemory,
		SessionTTL:                  24 * time.Hour,
		IdempotencyTTL:              24 * time.Hour,
		KafkaTopic:                  kafka.TopicOrderEvents,
		KafkaDLQTopic:               kafka.TopicDeadLetterQueue,
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		OutboxBreakerFailures:       5,
		OutboxBreakerReset:          30 * time.Second,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		HealthSyncInterval:          5 * time.Second,
		ShutdownGracePeriod:         5 * time.Second,
	}
}

// Validate проверяет согласованность драйверов и их параметров.
func (c Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	switch c.SessionDriver {
	case SessionDriverMemory:
	case SessionDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis addr is required for redis session driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported session driver %q", c.SessionDriver))
	}

	if c.GRPCAddr == "" {
		errs = append(errs, errors.New("grpc addr is required"))
	}
	return errors.Join(errs...)
}
