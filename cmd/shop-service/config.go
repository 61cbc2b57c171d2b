package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

const (
	envGRPCAddr                    = "SHOP_GRPC_ADDR"
	envMetricsAddr                 = "SHOP_METRICS_ADDR"
	envStorageDriver               = "SHOP_STORAGE_DRIVER"
	envPostgresDSN                 = "SHOP_POSTGRES_DSN"
	envPostgresAutoMigrate         = "SHOP_POSTGRES_AUTO_MIGRATE"
	envSessionDriver               = "SHOP_SESSION_DRIVER"
	envRedisAddr                   = "SHOP_REDIS_ADDR"
	envSessionTTL                  = "SHOP_SESSION_TTL"
	envAdminToken                  = "SHOP_ADMIN_TOKEN"
	envKafkaBrokers                = "SHOP_KAFKA_BROKERS"
	envKafkaTopic                  = "SHOP_KAFKA_TOPIC"
	envKafkaDLQTopic               = "SHOP_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval          = "SHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "SHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "SHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "SHOP_OUTBOX_RETRY_DELAY"
	envOutboxBreakerFailures       = "SHOP_OUTBOX_BREAKER_FAILURES"
	envOutboxBreakerReset          = "SHOP_OUTBOX_BREAKER_RESET"
	envIdempotencyCleanupInterval  = "SHOP_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "SHOP_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envSeedCatalog                 = "SHOP_SEED_CATALOG"
	envLogLevel                    = "SHOP_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

func positiveInt(v int) bool                { return v > 0 }
func positiveDuration(v time.Duration) bool { return v > 0 }

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректное значение не применяется и возвращается предупреждением.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, target *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	lower := func(key string, target *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.ToLower(strings.TrimSpace(value))
		}
	}
	boolean := func(key string, target *bool) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := parseBool(value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %t", key, err, *target))
			return
		}
		*target = parsed
	}
	integer := func(key string, target *int) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := parseInt(value, positiveInt, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %d", key, err, *target))
			return
		}
		*target = parsed
	}
	duration := func(key string, target *time.Duration, valid func(time.Duration) bool, rule string) {
		value, ok := lookup(key)
		if !ok || strings.TrimSpace(value) == "" {
			return
		}
		parsed, err := parseDuration(value, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v, using default %s", key, err, *target))
			return
		}
		*target = parsed
	}

	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	lower(envStorageDriver, &cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	lower(envSessionDriver, &cfg.SessionDriver)
	str(envRedisAddr, &cfg.RedisAddr)
	duration(envSessionTTL, &cfg.SessionTTL, positiveDuration, "must be > 0")
	str(envAdminToken, &cfg.AdminToken)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize)
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
	integer(envOutboxBreakerFailures, &cfg.OutboxBreakerFailures)
	duration(envOutboxBreakerReset, &cfg.OutboxBreakerReset, positiveDuration, "must be > 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positiveDuration, "must be > 0")
	integer(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize)
	boolean(envSeedCatalog, &cfg.SeedCatalog)

	if value, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = parseList(value)
	}

	return cfg, warnings
}

// readLogLevel возвращает уровень из SHOP_LOG_LEVEL или info.
func readLogLevel(lookup envLookup) (log.Level, []string) {
	value, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(value) == "" {
		return log.InfoLevel, nil
	}
	level, err := log.ParseLevel(strings.TrimSpace(value))
	if err != nil {
		return log.InfoLevel, []string{fmt.Sprintf("%s: %v, using default info", envLogLevel, err)}
	}
	return level, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if !valid(value) {
		return 0, fmt.Errorf("value %s %s", value, rule)
	}
	return value, nil
}

func parseList(raw string) []string {
	var items []string
	for _, chunk := range strings.Split(raw, ",") {
		if item := strings.TrimSpace(chunk); item != "" {
			items = append(items, item)
		}
	}
	return items
}
