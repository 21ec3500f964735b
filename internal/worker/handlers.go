package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/repos"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/cachex"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/events"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/mqx"
)

// ReminderWindow is how far ahead the periodic sweep looks for confirmed
// bookings that still need a reminder.
const ReminderWindow = time.Hour

// Handlers owns the booking side effects that run off the request path:
// customer stats, notifications and the reminder sweep.
type Handlers struct {
	Store    *repos.Store
	Producer *mqx.Producer
	Cache    *cachex.Client
	Logger   logx.Logger
}

// Mux registers every task handler on an asynq mux.
func (h *Handlers) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBookingCompleted, h.HandleBookingCompleted)
	mux.HandleFunc(TaskBookingNotify, h.HandleBookingNotify)
	mux.HandleFunc(TaskReminderScan, h.HandleReminderScan)
	return mux
}

func (h *Handlers) HandleBookingCompleted(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("asynq").Start(ctx, "booking.completed")
	defer span.End()

	var payload CompletedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	span.SetAttributes(attribute.String("booking_id", payload.BookingID.String()))

	points := loyaltyPoints(payload.TotalAmount)
	err := h.Store.RecordCompletedVisit(ctx, payload.TenantID, payload.CustomerID, points)
	if errors.Is(err, booking.ErrCustomerNotFound) {
		// The customer was deleted after completion; retrying cannot help.
		h.Logger.Warn(ctx, "visit_record_skipped", "customer no longer exists",
			slog.String("booking_id", payload.BookingID.String()),
			slog.String("customer_id", payload.CustomerID.String()),
		)
		return nil
	}
	if err != nil {
		return err
	}
	h.Logger.Info(ctx, "visit_recorded", "customer stats updated",
		slog.String("customer_id", payload.CustomerID.String()),
		slog.String("booking_id", payload.BookingID.String()),
		slog.Int64("loyalty_points", points),
	)
	return nil
}

// loyaltyPoints awards one point per whole currency unit of the booking
// total. Unparseable or missing totals accrue nothing.
func loyaltyPoints(total string) int64 {
	if total == "" {
		return 0
	}
	amount, err := decimal.NewFromString(total)
	if err != nil || amount.IsNegative() {
		return 0
	}
	return amount.IntPart()
}

func (h *Handlers) HandleBookingNotify(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("asynq").Start(ctx, "booking.notify")
	defer span.End()

	var payload NotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	span.SetAttributes(attribute.String("event", payload.Event))

	value, err := json.Marshal(map[string]any{
		"tenant_id":   payload.TenantID,
		"booking_id":  payload.BookingID,
		"event":       payload.Event,
		"occurred_at": payload.OccurredAt,
		"detail":      payload.BookingDetail,
	})
	if err != nil {
		return err
	}
	return h.Producer.Publish(ctx, events.TopicNotifications, []byte(payload.BookingID.String()), value, map[string]string{
		"event": payload.Event,
	})
}

// HandleReminderScan publishes a reminder for every confirmed booking that
// starts inside the window. A short-lived redis key per booking keeps
// repeated sweeps from re-sending.
func (h *Handlers) HandleReminderScan(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("asynq").Start(ctx, "booking.reminder_scan")
	defer span.End()

	now := time.Now().UTC()
	upcoming, err := h.Store.ListUpcoming(ctx, now, now.Add(ReminderWindow))
	if err != nil {
		return err
	}

	sent := 0
	for _, u := range upcoming {
		if h.Cache != nil {
			key := "reminder:" + u.ID.String()
			fresh, err := h.Cache.SetOnce(ctx, key, 2*ReminderWindow)
			if err != nil {
				h.Logger.Warn(ctx, "reminder_dedupe_failed", "reminder dedupe check failed",
					slog.String("booking_id", u.ID.String()),
					slog.String("error", err.Error()),
				)
			} else if !fresh {
				continue
			}
		}
		value, err := json.Marshal(map[string]any{
			"tenant_id":      u.TenantID,
			"booking_id":     u.ID,
			"customer_id":    u.CustomerID,
			"booking_number": u.BookingNumber,
			"event":          "booking.reminder",
			"start_time":     u.StartTime,
		})
		if err != nil {
			return err
		}
		if err := h.Producer.Publish(ctx, events.TopicNotifications, []byte(u.ID.String()), value, map[string]string{
			"event": "booking.reminder",
		}); err != nil {
			return err
		}
		sent++
	}
	if sent > 0 {
		h.Logger.Info(ctx, "reminders_sent", "booking reminders published",
			slog.Int("count", sent),
			slog.Int("upcoming", len(upcoming)),
		)
	}
	return nil
}
