package worker

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// TaskBookingCompleted bumps customer visit stats after completion.
	TaskBookingCompleted = "booking:completed"

	// TaskBookingNotify fans a booking lifecycle change out to the
	// notifications topic.
	TaskBookingNotify = "booking:notify"

	// TaskReminderScan is the periodic sweep for upcoming bookings that
	// still need a reminder.
	TaskReminderScan = "booking:reminder_scan"
)

type CompletedPayload struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	BookingID  uuid.UUID `json:"booking_id"`
	CustomerID uuid.UUID `json:"customer_id"`

	// TotalAmount is the booking total as a decimal string; loyalty points
	// accrue one per whole currency unit. Empty means no accrual.
	TotalAmount string `json:"total_amount,omitempty"`
}

type NotifyPayload struct {
	TenantID      uuid.UUID       `json:"tenant_id"`
	BookingID     uuid.UUID       `json:"booking_id"`
	Event         string          `json:"event"`
	OccurredAt    time.Time       `json:"occurred_at"`
	BookingDetail json.RawMessage `json:"booking_detail,omitempty"`
}

func NewCompletedTask(queue string, payload CompletedPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingCompleted, raw, asynq.Queue(queue), asynq.MaxRetry(5)), nil
}

func NewNotifyTask(queue string, payload NotifyPayload) (*asynq.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingNotify, raw, asynq.Queue(queue), asynq.MaxRetry(5)), nil
}
