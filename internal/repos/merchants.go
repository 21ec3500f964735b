package repos

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
)

// dayWindowJSON is the stored shape of one weekday's hours, e.g.
// {"open": "09:00", "close": "17:00"}. Absent or null days are closed.
type dayWindowJSON struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func hoursFromJSON(raw []byte) (booking.BusinessHours, error) {
	if len(raw) == 0 {
		return booking.BusinessHours{}, nil
	}
	var byName map[string]*dayWindowJSON
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, fmt.Errorf("business_hours: %w", err)
	}
	hours := make(booking.BusinessHours, len(byName))
	for name, window := range byName {
		day, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("business_hours: unknown day %q", name)
		}
		if window == nil || window.Open == "" || window.Close == "" {
			continue
		}
		openMins, err := booking.ParseClock(window.Open)
		if err != nil {
			return nil, fmt.Errorf("business_hours[%s]: %w", name, err)
		}
		closeMins, err := booking.ParseClock(window.Close)
		if err != nil {
			return nil, fmt.Errorf("business_hours[%s]: %w", name, err)
		}
		hours[day] = booking.DayWindow{Open: true, OpenMins: openMins, CloseMins: closeMins}
	}
	return hours, nil
}

// MerchantRecord is the slim identity row used for tenant resolution.
type MerchantRecord struct {
	ID   uuid.UUID
	Slug string
	Name string
}

func (s *Store) GetMerchantBySlug(ctx context.Context, slug string) (MerchantRecord, error) {
	var rec MerchantRecord
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, slug, name
		FROM merchants
		WHERE slug = $1
	`, slug).Scan(&rec.ID, &rec.Slug, &rec.Name)
	if noRows(err) {
		return MerchantRecord{}, fmt.Errorf("merchant %q: %w", slug, booking.ErrMerchantNotFound)
	}
	return rec, err
}

func (s *Store) GetMerchant(ctx context.Context, tenantID uuid.UUID) (booking.Merchant, error) {
	var (
		m        booking.Merchant
		rawHours []byte
	)
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, slug, name, timezone, business_hours, auto_confirm_bookings
		FROM merchants
		WHERE id = $1
	`, tenantID).Scan(&m.ID, &m.Slug, &m.Name, &m.Timezone, &rawHours, &m.AutoConfirmBookings)
	if noRows(err) {
		return booking.Merchant{}, fmt.Errorf("merchant %s: %w", tenantID, booking.ErrMerchantNotFound)
	}
	if err != nil {
		return booking.Merchant{}, err
	}
	m.BusinessHours, err = hoursFromJSON(rawHours)
	if err != nil {
		return booking.Merchant{}, err
	}
	return m, nil
}
