package outbox

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
)

// Store is the persistence side of the relay.
type Store interface {
	// ClaimNextBatch returns up to limit unprocessed events with fewer than
	// maxRetries failures, oldest first.
	ClaimNextBatch(ctx context.Context, limit int, maxRetries int) ([]Event, error)

	// MarkProcessed stamps the event processed if and only if it is still
	// unprocessed. The boolean reports whether this caller won; a false
	// return means another relay instance got there first.
	MarkProcessed(ctx context.Context, id uuid.UUID) (bool, error)

	// RecordFailure increments the retry count and stores the error text.
	RecordFailure(ctx context.Context, id uuid.UUID, cause error) error
}

// Bus dispatches a published event downstream.
type Bus interface {
	Publish(ctx context.Context, event Event) error
}

// Lease is an optional cross-instance mutex around each pass. A nil lease
// means this relay assumes it is the only instance.
type Lease interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

const (
	DefaultInterval   = 5 * time.Second
	DefaultBatchSize  = 50
	DefaultMaxRetries = 3
)

type PublisherOption func(*Publisher)

func WithInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithBatchSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithMaxRetries(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.maxRetries = n
		}
	}
}

func WithLease(l Lease) PublisherOption {
	return func(p *Publisher) {
		p.lease = l
	}
}

// WithPassHook registers a callback invoked after every pass with the number
// of published and failed events, for metrics.
func WithPassHook(fn func(published, failed int)) PublisherOption {
	return func(p *Publisher) {
		p.passHook = fn
	}
}

// Publisher drains the outbox on a ticker. Events are stamped processed
// before dispatch, so delivery is at most once per event; an event whose
// dispatch fails after a lost stamp race is simply skipped.
type Publisher struct {
	store      Store
	bus        Bus
	log        logx.Logger
	lease      Lease
	interval   time.Duration
	batchSize  int
	maxRetries int
	passHook   func(published, failed int)

	busy atomic.Bool
}

func NewPublisher(store Store, bus Bus, log logx.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:      store,
		bus:        bus,
		log:        log,
		interval:   DefaultInterval,
		batchSize:  DefaultBatchSize,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run drains immediately, then on every tick until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	p.tryPass(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.tryPass(ctx)
		}
	}
}

// tryPass runs one pass unless the previous one is still going. A slow
// downstream must not stack passes on top of each other.
func (p *Publisher) tryPass(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		p.log.Warn(ctx, "outbox_pass_skipped", "previous pass still running")
		return
	}
	defer p.busy.Store(false)

	if p.lease != nil {
		ok, err := p.lease.TryAcquire(ctx)
		if err != nil {
			p.log.Error(ctx, "outbox_lease_error", "failed to acquire relay lease",
			slog.String("error", err.Error()),
		)
			return
		}
		if !ok {
			return
		}
		defer func() {
			if err := p.lease.Release(ctx); err != nil {
				p.log.Warn(ctx, "outbox_lease_release_error", "failed to release relay lease",
					slog.String("error", err.Error()),
				)
			}
		}()
	}

	published, failed, err := p.pass(ctx)
	if err != nil {
		p.log.Error(ctx, "outbox_pass_error", "outbox pass failed",
			slog.String("error", err.Error()),
		)
	}
	if published > 0 || failed > 0 {
		p.log.Info(ctx, "outbox_pass", "outbox pass finished",
			slog.Int("published", published),
			slog.Int("failed", failed),
		)
	}
	if p.passHook != nil {
		p.passHook(published, failed)
	}
}

func (p *Publisher) pass(ctx context.Context) (published, failed int, err error) {
	events, err := p.store.ClaimNextBatch(ctx, p.batchSize, p.maxRetries)
	if err != nil {
		return 0, 0, err
	}
	for _, event := range events {
		if ctx.Err() != nil {
			return published, failed, ctx.Err()
		}
		won, err := p.store.MarkProcessed(ctx, event.ID)
		if err != nil {
			p.log.Error(ctx, "outbox_mark_error", "failed to stamp event processed",
				slog.String("event_id", event.ID.String()),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		if !won {
			continue
		}
		if err := p.bus.Publish(ctx, event); err != nil {
			p.log.Error(ctx, "outbox_publish_error", "failed to dispatch event",
				slog.String("event_id", event.ID.String()),
				slog.String("event_type", event.Name()),
				slog.Int("retry_count", event.RetryCount),
				slog.String("error", err.Error()),
			)
			if recErr := p.store.RecordFailure(ctx, event.ID, err); recErr != nil {
				p.log.Error(ctx, "outbox_record_failure_error", "failed to record dispatch failure",
					slog.String("event_id", event.ID.String()),
					slog.String("error", recErr.Error()),
				)
			}
			failed++
			continue
		}
		published++
	}
	return published, failed, nil
}
