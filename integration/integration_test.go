//go:build integration

package integration

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/clock"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/repos"
	"github.com/nirvana9010/heya-pos-remake-sub002/migrations"
)

// TestDependencies smoke-checks every backing service the binaries need.
// Each dependency is skipped unless its address is in the environment, so
// the test is usable against partial local setups.
func TestDependencies(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	t.Run("postgres", func(t *testing.T) {
		dbURL := os.Getenv("DATABASE_URL")
		if dbURL == "" {
			t.Skip("DATABASE_URL not set")
		}
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			t.Fatalf("db connect failed: %v", err)
		}
		defer pool.Close()
		if err := pool.Ping(ctx); err != nil {
			t.Fatalf("db ping failed: %v", err)
		}
		if err := migrations.Run(ctx, pool); err != nil {
			t.Fatalf("migrations failed: %v", err)
		}
		var pending int
		if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM outbox_events WHERE processed_at IS NULL").Scan(&pending); err != nil {
			t.Fatalf("outbox table not usable: %v", err)
		}
	})

	t.Run("kafka", func(t *testing.T) {
		brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
		if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
			t.Skip("KAFKA_BROKERS not set")
		}
		conn, err := kafka.Dial("tcp", strings.TrimSpace(brokers[0]))
		if err != nil {
			t.Fatalf("kafka dial failed: %v", err)
		}
		_ = conn.Close()
	})

	t.Run("redis", func(t *testing.T) {
		redisAddr := os.Getenv("REDIS_ADDR")
		if redisAddr == "" {
			t.Skip("REDIS_ADDR not set")
		}
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			t.Fatalf("redis ping failed: %v", err)
		}
	})

	t.Run("asynq", func(t *testing.T) {
		asynqRedis := os.Getenv("ASYNQ_REDIS_ADDR")
		if asynqRedis == "" {
			t.Skip("ASYNQ_REDIS_ADDR not set")
		}
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: asynqRedis})
		defer inspector.Close()
		if _, err := inspector.Queues(); err != nil {
			t.Fatalf("asynq inspector failed: %v", err)
		}
	})

	t.Run("influx", func(t *testing.T) {
		influxURL := os.Getenv("INFLUX_URL")
		if influxURL == "" {
			t.Skip("INFLUX_URL not set")
		}
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, influxURL+"/health", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("influx health failed: %v", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			t.Fatalf("influx health status: %d", resp.StatusCode)
		}
	})
}

// TestConcurrentCreateBooking races two overlapping creations for the same
// staff member against the real database. The per-staff row lock must let
// exactly one commit; the loser gets a conflict naming the winner.
func TestConcurrentCreateBooking(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()
	if err := migrations.Run(ctx, pool); err != nil {
		t.Fatalf("migrations failed: %v", err)
	}

	tenantID := uuid.New()
	staffID := uuid.New()
	serviceID := uuid.New()
	customerID := uuid.New()

	const allWeekHours = `{
		"sunday": {"open": "09:00", "close": "17:00"},
		"monday": {"open": "09:00", "close": "17:00"},
		"tuesday": {"open": "09:00", "close": "17:00"},
		"wednesday": {"open": "09:00", "close": "17:00"},
		"thursday": {"open": "09:00", "close": "17:00"},
		"friday": {"open": "09:00", "close": "17:00"},
		"saturday": {"open": "09:00", "close": "17:00"}
	}`
	if _, err := pool.Exec(ctx, `
		INSERT INTO merchants (id, slug, name, timezone, business_hours, auto_confirm_bookings)
		VALUES ($1, $2, 'Race Salon', 'UTC', $3::jsonb, TRUE)
	`, tenantID, "race-"+tenantID.String(), allWeekHours); err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO staff (id, tenant_id, name) VALUES ($1, $2, 'Alice')
	`, staffID, tenantID); err != nil {
		t.Fatalf("seed staff: %v", err)
	}
	for day := 0; day <= 6; day++ {
		if _, err := pool.Exec(ctx, `
			INSERT INTO staff_schedules (staff_id, tenant_id, day_of_week, start_mins, end_mins)
			VALUES ($1, $2, $3, 540, 1020)
		`, staffID, tenantID, day); err != nil {
			t.Fatalf("seed schedule: %v", err)
		}
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO services (id, tenant_id, name, duration_mins, price)
		VALUES ($1, $2, 'Cut', 60, 50)
	`, serviceID, tenantID); err != nil {
		t.Fatalf("seed service: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO customers (id, tenant_id, name) VALUES ($1, $2, 'Bob')
	`, customerID, tenantID); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	store := repos.NewStoreWithTimeout(pool, 10*time.Second)
	coordinator := booking.NewCoordinator(store, clock.NewSystem())

	// Tomorrow 10:00 UTC; the seeded hours and roster cover every weekday.
	start := time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(10 * time.Hour)
	input := booking.CreateBookingInput{
		TenantID:   tenantID,
		CustomerID: customerID,
		StartTime:  start,
		Items:      []booking.LineItemInput{{ServiceID: serviceID, StaffID: staffID}},
	}

	results := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := coordinator.CreateBooking(ctx, input)
			results[i] = err
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var conflictErr *booking.ConflictError
		if !errors.As(err, &conflictErr) {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(conflictErr.Conflicts) == 0 {
			t.Fatalf("conflict error must name the winning booking")
		}
		conflicted++
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("expected exactly one winner and one conflict, got %d/%d", succeeded, conflicted)
	}
}
