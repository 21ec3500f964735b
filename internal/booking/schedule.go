package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DayWindow is an open/close window for one weekday, minutes since midnight
// in the merchant's timezone. A day with Open == false yields no bookable
// time at all.
type DayWindow struct {
	Open      bool
	OpenMins  int
	CloseMins int
}

// BusinessHours maps weekdays to their windows. Missing entries count as
// closed.
type BusinessHours map[time.Weekday]DayWindow

func (h BusinessHours) Window(day time.Weekday) (DayWindow, bool) {
	w, ok := h[day]
	if !ok || !w.Open {
		return DayWindow{}, false
	}
	return w, true
}

// ScheduleEntry is one weekday of a staff member's roster.
type ScheduleEntry struct {
	StaffID   uuid.UUID
	Day       time.Weekday
	StartMins int
	EndMins   int
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return h*60 + m, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(mins int) string {
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// minutesOfDay returns t's offset from midnight in t's location.
func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

type Staff struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Name      string
	CreatedAt time.Time
}

type Service struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Name          string
	Duration      time.Duration
	PaddingBefore time.Duration
	PaddingAfter  time.Duration
	Price         decimal.Decimal
}

type Customer struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	Name       string
	Email      string
	Phone      string
	VisitCount int
	Loyalty    int64
}

// Merchant is the tenant read model the coordinator needs: hours, timezone
// and the auto-confirmation policy.
type Merchant struct {
	ID                  uuid.UUID
	Slug                string
	Name                string
	Timezone            string
	BusinessHours       BusinessHours
	AutoConfirmBookings bool
}

func (m Merchant) Location() (*time.Location, error) {
	if strings.TrimSpace(m.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(m.Timezone)
}
