package repos

import (
	"context"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/outbox"
)

// AppendEvent inserts one outbox row. Callers invoke this under WithTx so
// the event commits or rolls back with the state change it describes.
func (s *Store) AppendEvent(ctx context.Context, event outbox.Event) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO outbox_events (
			id, aggregate_id, aggregate_type, event_type, payload,
			version, tenant_id, created_at, retry_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0)
	`,
		event.ID, event.AggregateID, event.AggregateType, event.EventType, event.Payload,
		event.Version, event.TenantID, event.CreatedAt,
	)
	return err
}

// ClaimNextBatch reads the oldest unprocessed events still under the retry
// cap. Claiming is read-only; the conditional MarkProcessed is what settles
// ownership between racing relays.
func (s *Store) ClaimNextBatch(ctx context.Context, limit int, maxRetries int) ([]outbox.Event, error) {
	if limit <= 0 {
		limit = outbox.DefaultBatchSize
	}
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
			version, tenant_id, created_at, processed_at, retry_count, COALESCE(last_error, '')
		FROM outbox_events
		WHERE processed_at IS NULL AND retry_count < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, maxRetries, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]outbox.Event, 0, limit)
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(
			&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Payload,
			&e.Version, &e.TenantID, &e.CreatedAt, &e.ProcessedAt, &e.RetryCount, &e.LastError,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// MarkProcessed is a single conditional write: two racing claimants get
// exactly one winner, the loser sees zero rows affected.
func (s *Store) MarkProcessed(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE outbox_events
		SET processed_at = now()
		WHERE id = $1 AND processed_at IS NULL
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecordFailure bumps the retry count and keeps the latest error text.
// Events over the retry cap fall out of claim batches but stay in the table
// for inspection.
func (s *Store) RecordFailure(ctx context.Context, id uuid.UUID, cause error) error {
	_, err := s.db(ctx).Exec(ctx, `
		UPDATE outbox_events
		SET retry_count = retry_count + 1, last_error = $2
		WHERE id = $1
	`, id, cause.Error())
	return err
}

// CountUnprocessed reports the outbox backlog, exported as a gauge.
func (s *Store) CountUnprocessed(ctx context.Context) (int64, error) {
	var n int64
	err := s.db(ctx).QueryRow(ctx, `
		SELECT count(*) FROM outbox_events WHERE processed_at IS NULL
	`).Scan(&n)
	return n, err
}
