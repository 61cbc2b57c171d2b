// Package app собирает сервис магазина: хранилища, сервисы, gRPC и HTTP-серверы, воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Run запускает сервис и блокируется до отмены ctx или падения gRPC-сервера.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", cfg.GRPCAddr, err)
	}
	return serve(ctx, cfg, lis)
}

// serve обслуживает gRPC на готовом listener и закрывает его при выходе.
func serve(ctx context.Context, cfg Config, lis net.Listener) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		_ = lis.Close()
		return err
	}
	defer deps.close(logger)

	producer, err := initKafkaProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
	}
	defer closeKafka(producer, logger)

	svc := buildServices(cfg, deps, logger)
	if cfg.SeedCatalog {
		seedCatalog(ctx, svc.catalog, logger)
	}

	workers := startWorkers(ctx, cfg, deps, producer, logger)
	defer workers.stop(cfg.ShutdownGracePeriod, logger)

	grpcServer, healthServer := newGRPCServer(svc.shop, logger)

	checks := healthcheck.NewHandler(version.Short())
	deps.registerCheckers(checks)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, checks)
	defer shutdownHTTP(metricsSrv, logger)

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go syncHealth(healthCtx, checks, healthServer, cfg.HealthSyncInterval)

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", lis.Addr().String()).Info("grpc server is listening")
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping grpc server")
		stopHealth()
		healthServer.Shutdown()
		gracefulStop(grpcServer, cfg.ShutdownGracePeriod, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func gracefulStop(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop timed out, forcing stop")
		server.Stop()
	}
}
