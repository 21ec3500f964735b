package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/clock"
)

func TestEngineAvailability(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	serviceID := repo.addService(60*time.Minute, 50)

	// Roster narrower than business hours: Monday 10:00-16:00.
	repo.schedules[staffID][time.Monday] = ScheduleEntry{
		StaffID: staffID, Day: time.Monday, StartMins: 10 * 60, EndMins: 16 * 60,
	}
	// Existing booking 12:00-13:00.
	repo.occupied[staffID] = []OccupiedInterval{{
		Slot:          TimeSlot{Start: mondayAt(12), End: mondayAt(13)},
		BookingNumber: "BK77",
	}}

	engine := NewEngine(repo, clock.NewFixed(testNow))
	slots, err := engine.Availability(context.Background(), AvailabilityQuery{
		TenantID:    repo.merchant.ID,
		StaffID:     staffID,
		ServiceID:   serviceID,
		From:        mondayAt(0),
		To:          mondayAt(23),
		Granularity: 60 * time.Minute,
	})
	if err != nil {
		t.Fatalf("availability: %v", err)
	}

	// Window is the roster-business intersection 10:00-16:00, so the last
	// hour-long slot starts at 15:00.
	if len(slots) != 6 {
		t.Fatalf("expected 6 slots, got %d", len(slots))
	}
	if !slots[0].StartTime.Equal(mondayAt(10)) {
		t.Fatalf("expected first slot 10:00, got %s", slots[0].StartTime)
	}
	if !slots[len(slots)-1].StartTime.Equal(mondayAt(15)) {
		t.Fatalf("expected last slot 15:00, got %s", slots[len(slots)-1].StartTime)
	}

	for _, s := range slots {
		blocked := s.StartTime.Equal(mondayAt(12))
		if s.Available == blocked {
			t.Fatalf("slot %s availability wrong (available=%v)", s.StartTime, s.Available)
		}
	}
}

func TestEngineAvailability_UnknownService(t *testing.T) {
	repo := newFakeRepo()
	staffID := repo.addStaff("Alice")
	engine := NewEngine(repo, clock.NewFixed(testNow))

	_, err := engine.Availability(context.Background(), AvailabilityQuery{
		TenantID:  repo.merchant.ID,
		StaffID:   staffID,
		ServiceID: uuid.New(),
		From:      mondayAt(0),
		To:        mondayAt(23),
	})
	if !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}
