package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Belphemur/flash"
	"github.com/Belphemur/flash/internal/config"
	grpcserver "github.com/Belphemur/flash/internal/grpc"
	"github.com/Belphemur/flash/internal/metrics"
)

func main() {
	logger := config.GetLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}
	logger = config.GetLogger()

	logger.Info().
		Str("service_name", cfg.ServiceName).
		Str("compression", cfg.Compression).
		Int("buckets", len(cfg.Buckets)).
		Bool("monitoring", cfg.Monitoring.Enabled).
		Int("server_port", cfg.Server.Port).
		Str("server_address", cfg.Server.Address).
		Msg("Application started with configuration")

	var hub *sentry.Hub
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			logger.Fatal().Err(err).Msg("Failed to initialize Sentry")
		}
		defer sentry.Flush(2 * time.Second)
		hub = sentry.CurrentHub()
	}

	cache, err := flash.New(
		flash.WithLogger(logger),
		flash.WithCompression(cfg.Compression),
		flash.WithBreakerConfig(cfg.CircuitBreaker),
		flash.WithSentryHub(hub),
		flash.WithInfoLogs(cfg.Logging.CacheInfoLevel),
		flash.WithMonitoring(cfg.Monitoring.Enabled),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create cache")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cache.Connect(ctx, cfg.Connection, cfg.Buckets, cfg.ServiceName); err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect cache")
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close cache")
		}
	}()
	logger.Info().Strs("buckets", cache.Buckets()).Msg("Cache connected")

	// Start Prometheus metrics HTTP server
	if cfg.Monitoring.Enabled {
		metricsServer := metrics.NewHTTPServer(cfg.Monitoring.Address, cfg.Monitoring.Port, nil, logger)
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("Starting Prometheus metrics HTTP server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal().Err(err).Msg("Failed to serve metrics")
			}
		}()
		defer func() {
			if err := metricsServer.Shutdown(context.Background()); err != nil {
				logger.Error().Err(err).Msg("Failed to shutdown metrics server")
			}
		}()
	}

	grpcServer := grpcserver.NewGRPCServer()
	prober := grpcserver.NewProber(cache, grpcServer.Health, cfg.Probe.Interval, logger)
	go prober.Run(ctx)

	address := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		logger.Fatal().Err(err).Str("address", address).Msg("Failed to create listener")
	}
	logger.Info().Str("address", address).Msg("Starting gRPC server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info().Msg("Received shutdown signal")
		grpcServer.GracefulStop()
	}()

	if err := grpcServer.Serve(listener); err != nil {
		logger.Error().Err(err).Msg("Failed to serve gRPC")
	}

	logger.Info().Msg("Server stopped gracefully")
}
