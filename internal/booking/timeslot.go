package booking

import (
	"fmt"
	"time"
)

const (
	MinSlotDuration = 15 * time.Minute
	MaxSlotDuration = 480 * time.Minute
)

// TimeSlot is an immutable half-open interval [Start, End).
type TimeSlot struct {
	Start time.Time
	End   time.Time
}

func NewTimeSlot(start time.Time, end time.Time) (TimeSlot, error) {
	if !start.Before(end) {
		return TimeSlot{}, fmt.Errorf("%w: start must be before end", ErrInvalidTimeSlot)
	}
	d := end.Sub(start)
	if d < MinSlotDuration || d > MaxSlotDuration {
		return TimeSlot{}, fmt.Errorf("%w: duration must be between %s and %s, got %s",
			ErrInvalidTimeSlot, MinSlotDuration, MaxSlotDuration, d)
	}
	return TimeSlot{Start: start.UTC(), End: end.UTC()}, nil
}

func (s TimeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Effective expands the slot by the service padding on both sides. The
// padded interval is what conflict checks operate on.
func (s TimeSlot) Effective(padBefore time.Duration, padAfter time.Duration) TimeSlot {
	return TimeSlot{Start: s.Start.Add(-padBefore), End: s.End.Add(padAfter)}
}

func (s TimeSlot) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

func (s TimeSlot) String() string {
	return s.Start.Format(time.RFC3339) + ".." + s.End.Format(time.RFC3339)
}
