package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire shape relayed from the outbox onto the bus and
// consumed by downstream processors (notifications, loyalty, analytics).
type Envelope struct {
	EventID       uuid.UUID       `json:"event_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
}

// Name is the dotted event name, e.g. "booking.created".
func (e Envelope) Name() string {
	return e.AggregateType + "." + e.EventType
}

const (
	TopicBookingEvents = "booking.events"
	TopicNotifications = "notifications"
)
