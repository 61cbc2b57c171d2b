package app

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/account"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

type services struct {
	shop    *grpcsvc.ShopService
	catalog *catalog.Service
}

func buildServices(cfg Config, deps *runtimeDependencies, logger *log.Entry) services {
	catalogSvc := catalog.NewService(deps.store, logger.WithField("component", "catalog"))
	engine := cart.NewEngine(deps.store,
		cart.WithLogger(logger.WithField("component", "cart-engine")),
		cart.WithMetrics(metrics.NewCartMetrics()),
	)
	accounts := account.NewService(deps.store, deps.sessions,
		account.WithLogger(logger.WithField("component", "account")),
		account.WithSessionTTL(cfg.SessionTTL),
	)

	shop := grpcsvc.NewShopService(grpcsvc.Dependencies{
		Cart:           engine,
		Catalog:        catalogSvc,
		Accounts:       accounts,
		Idempotency:    deps.idempotencyRepo,
		AdminToken:     cfg.AdminToken,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger.WithField("component", "grpc"),
	})
	if cfg.AdminToken == "" {
		logger.Warn("admin token is not configured, catalog editing is disabled")
	}

	return services{shop: shop, catalog: catalogSvc}
}

func seedCatalog(ctx context.Context, catalogSvc *catalog.Service, logger *log.Entry) {
	added, err := catalogSvc.SeedSampleCatalog(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to seed sample catalog")
		return
	}
	if added > 0 {
		logger.WithField("products", added).Info("sample catalog seeded")
	}
}

// backgroundWorkers запускает outbox и очистку ключей идемпотентности.
type backgroundWorkers struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func startWorkers(ctx context.Context, cfg Config, deps *runtimeDependencies, producer *kafka.Producer, logger *log.Entry) *backgroundWorkers {
	workerCtx, cancel := context.WithCancel(ctx)
	workers := &backgroundWorkers{cancel: cancel}

	if producer != nil {
		worker := outbox.NewWorker(deps.outboxRepo, kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
			outbox.WithLogger(logger.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, cfg.KafkaDLQTopic)),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
			outbox.WithCircuitBreaker(cfg.OutboxBreakerFailures, cfg.OutboxBreakerReset),
		)
		workers.spawn(func() { worker.Run(workerCtx) })
	} else {
		logger.Info("kafka is not configured, outbox events stay pending")
	}

	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
	)
	workers.spawn(func() { cleanup.Run(workerCtx) })

	return workers
}

func (w *backgroundWorkers) spawn(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// stop отменяет воркеры и ждёт их завершения не дольше timeout.
func (w *backgroundWorkers) stop(timeout time.Duration, logger *log.Entry) {
	if w == nil {
		return
	}
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("background workers did not stop in time")
	}
}
