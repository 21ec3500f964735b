package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/worker"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/config"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/events"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/influxx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/metricsx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/mqx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/observability"
)

func main() {
	cfg, problems := config.Load("booking-events-consumer", 8082)
	version := strings.TrimSpace(os.Getenv("VERSION"))
	logger := logx.New(cfg.ServiceName, cfg.Env, version, cfg.LogLevel)

	if len(cfg.KafkaBrokers) == 0 {
		problems = append(problems, config.Problem{Field: "KAFKA_BROKERS", Message: "KAFKA_BROKERS is required"})
	}
	if cfg.KafkaGroupID == "" {
		problems = append(problems, config.Problem{Field: "KAFKA_CONSUMER_GROUP", Message: "KAFKA_CONSUMER_GROUP is required"})
	}
	if cfg.AsynqRedisAddr == "" {
		problems = append(problems, config.Problem{Field: "ASYNQ_REDIS_ADDR", Message: "ASYNQ_REDIS_ADDR is required"})
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

	reader, err := mqx.NewConsumer(cfg, events.TopicBookingEvents, cfg.KafkaGroupID)
	if err != nil {
		logger.Error(context.Background(), "kafka_init_failed", "kafka reader init failed",
			slog.String("error_code", "FAILED_PRECONDITION"),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	defer reader.Close()

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.AsynqRedisAddr,
		Password: cfg.AsynqRedisPass,
		DB:       cfg.AsynqRedisDB,
	})
	defer client.Close()

	var influx *influxx.Client
	if cfg.InfluxURL != "" {
		influx, err = influxx.New(cfg)
		if err != nil {
			logger.Warn(context.Background(), "influx_init_failed", "analytics writes disabled",
				slog.String("error", err.Error()),
			)
			influx = nil
		} else {
			defer influx.Close()
		}
	}

	metricsx.Register()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	logger.Info(ctx, "consumer_start", "booking events consumer started",
		slog.String("topic", events.TopicBookingEvents),
		slog.String("group", cfg.KafkaGroupID),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Error(ctx, "kafka_fetch_failed", "failed to fetch message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			time.Sleep(500 * time.Millisecond)
			continue
		}

		spanCtx, span := otel.Tracer("mqx").Start(ctx, "kafka.consume")
		span.SetAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", events.TopicBookingEvents),
		)
		if err := handleBookingEvent(spanCtx, logger, client, influx, cfg.AsynqQueue, msg.Value); err != nil {
			span.End()
			logger.Error(ctx, "event_handle_failed", "failed to handle event",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
			continue
		}
		span.End()
		if err := reader.CommitMessages(ctx, msg); err != nil {
			logger.Error(ctx, "kafka_commit_failed", "failed to commit message",
				slog.String("error_code", "INTERNAL_ERROR"),
				slog.String("error", err.Error()),
			)
		}
		stats := reader.Stats()
		metricsx.SetKafkaLag(stats.Topic, cfg.KafkaGroupID, stats.Lag)
	}

	logger.Info(context.Background(), "consumer_stop", "booking events consumer stopped")
}

// notifiedEvents are the lifecycle changes customers hear about.
var notifiedEvents = map[string]bool{
	booking.EventCreated:     true,
	booking.EventConfirmed:   true,
	booking.EventRescheduled: true,
	booking.EventCancelled:   true,
}

func handleBookingEvent(ctx context.Context, logger logx.Logger, client *asynq.Client, influx *influxx.Client, queue string, raw []byte) error {
	var envelope events.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return err
	}
	if envelope.EventID == uuid.Nil || envelope.TenantID == uuid.Nil || envelope.AggregateID == uuid.Nil {
		return errors.New("missing event_id/tenant_id/aggregate_id")
	}

	if influx != nil {
		fields := map[string]any{"count": 1}
		if amount, ok := payloadAmount(envelope.Payload); ok {
			fields["total_amount"] = amount
		}
		if err := influx.WritePoint(ctx, "booking_events", map[string]string{
			"tenant_id": envelope.TenantID.String(),
			"event":     envelope.Name(),
		}, fields, envelope.OccurredAt); err != nil {
			metricsx.IncInfluxWriteFailure()
			logger.Warn(ctx, "influx_write_failed", "analytics point dropped",
				slog.String("event_id", envelope.EventID.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if envelope.EventType == booking.EventCompleted {
		customerID, ok := payloadCustomerID(envelope.Payload)
		if !ok {
			return errors.New("completed event missing customerId")
		}
		task, err := worker.NewCompletedTask(queue, worker.CompletedPayload{
			TenantID:    envelope.TenantID,
			BookingID:   envelope.AggregateID,
			CustomerID:  customerID,
			TotalAmount: payloadTotal(envelope.Payload),
		})
		if err != nil {
			return err
		}
		if _, err := client.EnqueueContext(ctx, task); err != nil {
			return err
		}
	}

	if notifiedEvents[envelope.EventType] {
		task, err := worker.NewNotifyTask(queue, worker.NotifyPayload{
			TenantID:      envelope.TenantID,
			BookingID:     envelope.AggregateID,
			Event:         envelope.Name(),
			OccurredAt:    envelope.OccurredAt,
			BookingDetail: envelope.Payload,
		})
		if err != nil {
			return err
		}
		if _, err := client.EnqueueContext(ctx, task); err != nil {
			return err
		}
	}
	return nil
}

func payloadCustomerID(raw json.RawMessage) (uuid.UUID, bool) {
	var payload struct {
		CustomerID uuid.UUID `json:"customerId"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.CustomerID == uuid.Nil {
		return uuid.Nil, false
	}
	return payload.CustomerID, true
}

func payloadTotal(raw json.RawMessage) string {
	var payload struct {
		TotalAmount string `json:"totalAmount"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return payload.TotalAmount
}

func payloadAmount(raw json.RawMessage) (float64, bool) {
	var payload struct {
		TotalAmount string `json:"totalAmount"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.TotalAmount == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(payload.TotalAmount, 64)
	if err != nil {
		return 0, false
	}
	return amount, true
}
