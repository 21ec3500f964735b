package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/outbox"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/repos"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/cachex"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/config"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/dbx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/events"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/lockx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/metricsx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/mqx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/observability"
)

func main() {
	cfg, problems := config.Load("outbox-relay", 8081)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		problems = append(problems, config.Problem{Field: "DATABASE_URL", Message: "DATABASE_URL is required"})
	}
	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.OutboxLockEnabled && cfg.RedisAddr == "" {
		problems = append(problems, config.Problem{Field: "REDIS_ADDR", Message: "REDIS_ADDR is required when OUTBOX_LOCK_ENABLED"})
	}
	if len(problems) > 0 {
		logger.Error(context.Background(), "config_invalid", "invalid config",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.Any("problems", problems),
		)
		os.Exit(1)
	}

	if cfg.OtelEnabled {
		if shutdown, err := observability.InitTracer(context.Background(), observability.TracerConfig{
			ServiceName: cfg.ServiceName,
			Env:         cfg.Env,
			Endpoint:    cfg.OtelEndpoint,
			Insecure:    cfg.OtelInsecure,
			SampleRatio: cfg.OtelSampleRatio,
		}); err == nil {
			defer func() { _ = shutdown(context.Background()) }()
		}
	}

	dbPool, err := dbx.NewPool(cfg)
	if err != nil {
		logger.Error(context.Background(), "db_init_failed", "db init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer dbPool.Close()

	producer, err := mqx.NewProducer(cfg)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka writer init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer producer.Close()

	store := repos.NewStoreWithTimeout(dbPool, time.Duration(cfg.TxTimeoutSec)*time.Second)
	bus := outbox.NewKafkaBus(producer, events.TopicBookingEvents)

	metricsx.Register()

	opts := []outbox.PublisherOption{
		outbox.WithInterval(time.Duration(cfg.OutboxScanSec) * time.Second),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxRetries(cfg.OutboxMaxRetries),
		outbox.WithPassHook(func(published, failed int) {
			metricsx.AddOutboxPublished(published)
			metricsx.AddOutboxFailures(failed)
		}),
	}
	if cfg.OutboxLockEnabled {
		cache, err := cachex.New(cfg)
		if err != nil {
			logger.Error(context.Background(), "redis_init_failed", "redis init failed",
				slog.String("error_code", "FAILED_PRECONDITION"),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
		defer cache.Close()
		lease := lockx.NewLease(cache.Client(), "outbox:relay:lock", time.Duration(cfg.OutboxLockTTLSec)*time.Second)
		opts = append(opts, outbox.WithLease(lease))
	}

	publisher := outbox.NewPublisher(store, bus, logger.With(slog.String("component", "publisher")), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info(context.Background(), "shutdown_signal", "received signal", slog.String("signal", sig.String()))
		cancel()
	}()

	// Backlog gauge, sampled out of band from the publish loop.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.CountUnprocessed(ctx)
				if err != nil {
					continue
				}
				metricsx.SetOutboxBacklog(n)
			}
		}
	}()

	logger.Info(ctx, "relay_start", "outbox relay started",
		slog.Int("scan_interval_seconds", cfg.OutboxScanSec),
		slog.Int("batch_size", cfg.OutboxBatchSize),
		slog.Int("max_retries", cfg.OutboxMaxRetries),
		slog.Bool("lock_enabled", cfg.OutboxLockEnabled),
	)

	if err := publisher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(context.Background(), "relay_failed", "outbox relay failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	logger.Info(context.Background(), "relay_stop", "outbox relay stopped")
}
