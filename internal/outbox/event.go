package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const AggregateTypeBooking = "booking"

// Event is one row of the transactional outbox. The identity fields are
// immutable once written; ProcessedAt, RetryCount and LastError are relay
// bookkeeping.
type Event struct {
	ID            uuid.UUID
	AggregateID   uuid.UUID
	AggregateType string
	EventType     string
	Payload       json.RawMessage
	Version       int
	TenantID      uuid.UUID
	CreatedAt     time.Time

	ProcessedAt *time.Time
	RetryCount  int
	LastError   string
}

// Name is the wire event name consumed downstream, e.g. "booking.created".
func (e Event) Name() string {
	return e.AggregateType + "." + e.EventType
}

// New builds an unprocessed event. Payload must already be JSON.
func New(tenantID uuid.UUID, aggregateType string, aggregateID uuid.UUID, eventType string, payload []byte, now time.Time) Event {
	return Event{
		ID:            uuid.New(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		Version:       1,
		TenantID:      tenantID,
		CreatedAt:     now,
	}
}
