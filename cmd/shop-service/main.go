package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

func setupLogger(level log.Level) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
}

func main() {
	level, levelWarnings := readLogLevel(os.LookupEnv)
	setupLogger(level)

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range append(levelWarnings, warnings...) {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"session_driver": cfg.SessionDriver,
		"kafka_enabled":  len(cfg.KafkaBrokers) > 0,
		"version":        version.Short(),
	}).Info("starting shop service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("shop service exited with error")
	}

	log.Info("shop service stopped")
}
