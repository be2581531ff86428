package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/compost-sensor-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/compost-sensor-etl/internal/adapter/kafka"
	redisadapter "github.com/couchcryptid/compost-sensor-etl/internal/adapter/redis"
	"github.com/couchcryptid/compost-sensor-etl/internal/adapter/telemetry"
	"github.com/couchcryptid/compost-sensor-etl/internal/config"
	"github.com/couchcryptid/compost-sensor-etl/internal/observability"
	"github.com/couchcryptid/compost-sensor-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Snapshot store: redis when REDIS_ADDR is set, otherwise in memory.
	var store pipeline.SnapshotStore = pipeline.NewMemoryStore()
	var closeStore func() error
	if cfg.RedisAddr != "" {
		client, err := redisadapter.NewClient(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		store = redisadapter.NewStore(client, cfg.SnapshotTTL)
		closeStore = client.Close
		logger.Info("redis snapshot store enabled", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.SnapshotTTL)
	} else {
		logger.Info("in-memory snapshot store enabled")
	}

	// Reading sink (feature-flagged via KAFKA_ENABLED).
	var loader pipeline.ReadingLoader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loader = writer
		logger.Info("kafka reading sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka reading sink disabled")
	}

	source := telemetry.NewClient(cfg.SensorAPIURL, cfg.SensorID, cfg.FetchTimeout, metrics, logger)
	transformer := pipeline.NewTransformer(cfg.SensorID, logger, metrics)

	p := pipeline.New(source, transformer, store, loader, logger, metrics, cfg.PollInterval)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, store, httpadapter.SensorView{
		SensorID:        cfg.SensorID,
		WindowReference: cfg.WindowReference,
		WindowDays:      cfg.WindowMaxAgeDays,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if closeStore != nil {
		if err := closeStore(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
