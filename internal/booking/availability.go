package booking

import (
	"fmt"
	"time"
)

const DefaultGranularity = 15 * time.Minute

// Slot is one bookable candidate returned to callers. Start/End are the
// customer-visible interval; padding only affects availability, not the
// reported times.
type Slot struct {
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Available      bool      `json:"available"`
	ConflictReason string    `json:"conflictReason,omitempty"`
}

// AvailabilityRequest is the full input to ComputeSlots. The computation is
// pure: no storage access, safe to run concurrently for different
// staff/date combinations.
type AvailabilityRequest struct {
	From time.Time
	To   time.Time
	// Location is the merchant location's timezone; all day and window
	// boundaries are resolved in it, never in server-local time.
	Location *time.Location

	Hours BusinessHours

	ServiceDuration time.Duration
	PaddingBefore   time.Duration
	PaddingAfter    time.Duration

	Granularity time.Duration

	Occupied []OccupiedInterval
}

// ComputeSlots walks every calendar day in [From, To], resolves that day's
// business window and steps candidate slot starts by Granularity. A
// candidate is only generated while its padded total duration still fits
// before closing; the raw service duration alone is not enough, since the
// effective interval must not run past close. Each candidate's effective
// interval is then tested against the occupied intervals.
func ComputeSlots(req AvailabilityRequest) ([]Slot, error) {
	if req.ServiceDuration <= 0 {
		return nil, fmt.Errorf("service duration must be positive")
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	granularity := req.Granularity
	if granularity <= 0 {
		granularity = DefaultGranularity
	}
	total := req.ServiceDuration + req.PaddingBefore + req.PaddingAfter

	var slots []Slot
	day := midnight(req.From.In(loc))
	last := midnight(req.To.In(loc))
	for !day.After(last) {
		window, open := req.Hours.Window(day.Weekday())
		if !open {
			day = day.AddDate(0, 0, 1)
			continue
		}
		// AddDate-free arithmetic inside one day keeps DST shifts from
		// moving the window; open/close are wall-clock minutes.
		openAt := clockOnDay(day, window.OpenMins, loc)
		closeAt := clockOnDay(day, window.CloseMins, loc)

		for start := openAt; !start.Add(total).After(closeAt); start = start.Add(granularity) {
			end := start.Add(req.ServiceDuration)
			candidate := TimeSlot{Start: start, End: end}
			effective := candidate.Effective(req.PaddingBefore, req.PaddingAfter)

			slot := Slot{StartTime: start, EndTime: end, Available: true}
			if hit := FirstOverlap(effective, req.Occupied); hit != nil {
				slot.Available = false
				slot.ConflictReason = fmt.Sprintf("conflicts with booking %s", hit.BookingNumber)
			}
			slots = append(slots, slot)
		}
		day = day.AddDate(0, 0, 1)
	}
	return slots, nil
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func clockOnDay(day time.Time, mins int, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), mins/60, mins%60, 0, 0, loc)
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
