package app

import (
	"context"
	"errors"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/storefront/api/shop/v1"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
)

func newGRPCServer(shop *grpcsvc.ShopService, logger *log.Entry) (*grpc.Server, *health.Server) {
	grpcMetrics := registerGRPCMetrics(logger)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		loggingInterceptor(logger.WithField("component", "grpc-server")),
	))

	shopv1.RegisterShopServiceServer(server, shop)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	grpcMetrics.InitializeMetrics(server)
	return server, healthServer
}

// registerGRPCMetrics регистрирует метрики сервера; при повторном запуске
// в том же процессе переиспользует уже зарегистрированные.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

func loggingInterceptor(logger *log.Entry) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger.Logger.IsLevelEnabled(log.DebugLevel) {
			logger.WithFields(log.Fields{
				"method":   info.FullMethod,
				"code":     status.Code(err).String(),
				"duration": time.Since(start),
			}).Debug("grpc call")
		}
		return resp, err
	}
}

// syncHealth переводит gRPC health в NOT_SERVING, пока недоступен критичный компонент.
func syncHealth(ctx context.Context, checks *healthcheck.Handler, server *health.Server, interval time.Duration) {
	update := func() {
		serving := healthpb.HealthCheckResponse_SERVING
		if checks.Evaluate(ctx).Status == healthcheck.StatusUnhealthy {
			serving = healthpb.HealthCheckResponse_NOT_SERVING
		}
		server.SetServingStatus("", serving)
		server.SetServingStatus(shopv1.ServiceName, serving)
	}

	update()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
