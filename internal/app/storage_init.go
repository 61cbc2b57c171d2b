package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// runtimeDependencies держит хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	store           domain.TxManager
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository
	sessions        domain.SessionRepository
	checkers        map[string]healthcheck.Checker
	closers         []func() error
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{checkers: make(map[string]healthcheck.Checker)}

	if err := deps.initStorage(ctx, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	if err := deps.initSessions(ctx, cfg, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	return deps, nil
}

func (d *runtimeDependencies) initStorage(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore()
		d.store = store
		d.outboxRepo = store.Outbox()
		d.idempotencyRepo = memory.NewIdempotencyRepository()
		d.checkers["storage"] = healthcheck.NewSimpleChecker("memory", store.Ping)
		logger.Info("using in-memory storage")
		return nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres storage: %w", err)
		}
		d.closers = append(d.closers, store.Close)

		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}

		d.store = store
		d.outboxRepo = store.Outbox()
		d.idempotencyRepo = store.Idempotency()
		d.checkers["storage"] = healthcheck.NewSimpleChecker("postgres", store.Ping)
		logger.Info("using postgres storage")
		return nil

	default:
		return fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d *runtimeDependencies) initSessions(ctx context.Context, cfg Config, logger *log.Entry) error {
	switch cfg.SessionDriver {
	case SessionDriverMemory, "":
		d.sessions = memory.NewSessionRepository()
		return nil

	case SessionDriverRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis addr is required for redis session driver")
		}
		client, err := redisstore.Open(ctx, cfg.RedisAddr)
		if err != nil {
			return fmt.Errorf("open redis sessions: %w", err)
		}
		d.closers = append(d.closers, client.Close)

		sessions := redisstore.NewSessionRepository(client)
		d.sessions = sessions
		d.checkers["sessions"] = healthcheck.NewSimpleChecker("redis", sessions.Ping)
		logger.WithField("redis_addr", cfg.RedisAddr).Info("using redis session storage")
		return nil

	default:
		return fmt.Errorf("unsupported session driver %q", cfg.SessionDriver)
	}
}

func (d *runtimeDependencies) registerCheckers(handler *healthcheck.Handler) {
	for name, checker := range d.checkers {
		handler.RegisterChecker(name, checker)
	}
}

// close освобождает подключения в обратном порядке открытия.
func (d *runtimeDependencies) close(logger *log.Entry) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.WithError(err).Warn("failed to close storage connection")
		}
	}
	d.closers = nil
}
