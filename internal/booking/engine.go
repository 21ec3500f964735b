package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/clock"
)

// Engine answers availability queries. Reads only, no locks: results are a
// snapshot and the coordinator still re-checks conflicts at booking time.
type Engine struct {
	repo  Repository
	clock clock.Clock
}

func NewEngine(repo Repository, clk clock.Clock) *Engine {
	return &Engine{repo: repo, clock: clk}
}

type AvailabilityQuery struct {
	TenantID  uuid.UUID
	StaffID   uuid.UUID
	ServiceID uuid.UUID
	From      time.Time
	To        time.Time

	// Granularity defaults to DefaultGranularity when zero.
	Granularity time.Duration
}

// Availability computes bookable slots for one staff member and service over
// [From, To]. The candidate windows are the merchant's business hours
// narrowed by the staff roster for each weekday; each candidate is then
// tested against the staff member's committed bookings with service padding
// applied on both sides.
func (e *Engine) Availability(ctx context.Context, q AvailabilityQuery) ([]Slot, error) {
	merchant, err := e.repo.GetMerchant(ctx, q.TenantID)
	if err != nil {
		return nil, err
	}
	loc, err := merchant.Location()
	if err != nil {
		return nil, err
	}
	svc, err := e.repo.GetService(ctx, q.TenantID, q.ServiceID)
	if err != nil {
		return nil, err
	}
	if _, err := e.repo.GetStaff(ctx, q.TenantID, q.StaffID); err != nil {
		return nil, err
	}
	entries, err := e.repo.ListScheduleEntries(ctx, q.TenantID, q.StaffID)
	if err != nil {
		return nil, err
	}

	hours := intersectHours(merchant.BusinessHours, entries)

	// Padding widens the scan range so bookings just outside [From, To]
	// still block edge slots.
	pad := svc.PaddingBefore + svc.PaddingAfter
	occupied, err := e.repo.ListOccupied(ctx, q.TenantID, q.StaffID, q.From.Add(-pad), q.To.Add(pad))
	if err != nil {
		return nil, err
	}

	return ComputeSlots(AvailabilityRequest{
		From:            q.From,
		To:              q.To,
		Location:        loc,
		Hours:           hours,
		ServiceDuration: svc.Duration,
		PaddingBefore:   svc.PaddingBefore,
		PaddingAfter:    svc.PaddingAfter,
		Granularity:     q.Granularity,
		Occupied:        occupied,
	})
}

// intersectHours narrows the merchant windows by the staff roster. A weekday
// the staff member is not rostered on is closed regardless of business
// hours, and a roster wider than the business window is clamped to it.
func intersectHours(hours BusinessHours, entries []ScheduleEntry) BusinessHours {
	byDay := make(map[time.Weekday]ScheduleEntry, len(entries))
	for _, entry := range entries {
		byDay[entry.Day] = entry
	}

	out := make(BusinessHours, len(byDay))
	for day, entry := range byDay {
		window, open := hours.Window(day)
		if !open {
			continue
		}
		openMins := max(window.OpenMins, entry.StartMins)
		closeMins := min(window.CloseMins, entry.EndMins)
		if openMins >= closeMins {
			continue
		}
		out[day] = DayWindow{Open: true, OpenMins: openMins, CloseMins: closeMins}
	}
	return out
}
