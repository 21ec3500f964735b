package outbox

import (
	"context"
	"encoding/json"

	"github.com/nirvana9010/heya-pos-remake-sub002/shared/events"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/mqx"
)

// KafkaBus wraps the shared producer as the relay's downstream. Messages
// are keyed by aggregate id so all events for one booking land in order on
// the same partition.
type KafkaBus struct {
	producer *mqx.Producer
	topic    string
}

func NewKafkaBus(producer *mqx.Producer, topic string) *KafkaBus {
	if topic == "" {
		topic = events.TopicBookingEvents
	}
	return &KafkaBus{producer: producer, topic: topic}
}

func (b *KafkaBus) Publish(ctx context.Context, event Event) error {
	envelope := events.Envelope{
		EventID:       event.ID,
		TenantID:      event.TenantID,
		OccurredAt:    event.CreatedAt,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       event.Payload,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return b.producer.Publish(ctx, b.topic, []byte(event.AggregateID.String()), value, map[string]string{
		"event": event.Name(),
	})
}
