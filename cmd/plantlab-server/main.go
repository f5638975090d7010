package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"plantlab/internal/config"
	"plantlab/internal/controller"
	"plantlab/internal/ingest"
	"plantlab/internal/logger"
	"plantlab/internal/repository"
	"plantlab/internal/routes"
	"plantlab/internal/service"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat, "plantlab-server")
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := newRepository(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer cleanup()

	sensors := config.NewSensorsFile(cfg.SensorsFile, zl)
	svc := service.NewReadingService(repo, sensors, service.Options{
		DemoMode:     cfg.DemoMode,
		OfflineAfter: cfg.OfflineAfter,
	}, zl)

	if cfg.MQTTBroker != "" {
		sub := ingest.NewSubscriber(ingest.Options{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
		}, svc, zl)
		if err := sub.Start(); err != nil {
			return fmt.Errorf("starting MQTT ingest: %w", err)
		}
		defer sub.Close()
	}

	readingController := controller.NewReadingController(svc, zl)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewHandler(readingController, cfg.CORSAllowedOrigins, zl),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("store_backend", cfg.StoreBackend),
			zap.Bool("demo_mode", cfg.DemoMode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRepository builds the configured storage backend, optionally fronted by
// the Redis latest-reading cache.
func newRepository(ctx context.Context, cfg config.Config, zl *zap.Logger) (repository.Repository, func(), error) {
	var (
		repo    repository.Repository
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.StoreBackend {
	case config.BackendInflux:
		influx := repository.NewInfluxDBRepository(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket, zl)
		closers = append(closers, influx.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := influx.Ping(pingCtx); err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := influx.EnsureBucket(pingCtx); err != nil {
			cleanup()
			return nil, nil, err
		}
		repo = influx
	default:
		repo = repository.NewMemoryRepository(cfg.MaxPointsPerSensor)
	}

	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		client, err := repository.NewRedisClient(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connecting to Redis at %s: %w", cfg.RedisAddr, err)
		}
		closers = append(closers, func() { _ = client.Close() })
		prefix := repository.CacheKeyPrefix(cfg.StoreBackend != config.BackendMemory)
		repo = repository.NewCachedRepository(repo, repository.NewRedisKVStore(client), prefix, cfg.RedisTTL, zl)
		zl.Info("latest-reading cache enabled",
			zap.String("redis_addr", cfg.RedisAddr),
			zap.String("key_prefix", prefix))
	}

	return repo, cleanup, nil
}
