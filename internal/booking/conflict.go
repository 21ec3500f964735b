package booking

// Overlaps reports whether two half-open intervals conflict:
// a.Start < b.End && a.End > b.Start. Back-to-back slots (a.End == b.Start)
// do not conflict.
func Overlaps(a TimeSlot, b TimeSlot) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// OccupiedInterval is an existing booking's slot plus the padding of the
// service it was booked for. Conflict checks compare padded intervals on
// both sides.
type OccupiedInterval struct {
	Slot          TimeSlot
	PaddingBefore int // minutes
	PaddingAfter  int // minutes
	BookingNumber string
}

func (o OccupiedInterval) effective() TimeSlot {
	return o.Slot.Effective(minutes(o.PaddingBefore), minutes(o.PaddingAfter))
}

// FirstOverlap returns the first occupied interval whose effective span
// overlaps candidate, or nil.
func FirstOverlap(candidate TimeSlot, occupied []OccupiedInterval) *OccupiedInterval {
	for i := range occupied {
		if Overlaps(candidate, occupied[i].effective()) {
			return &occupied[i]
		}
	}
	return nil
}
