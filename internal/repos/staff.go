package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
)

// LockStaff takes the per-staff exclusive row lock. Every booking writer for
// this staff member blocks here until the holding transaction finishes.
func (s *Store) LockStaff(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID) error {
	var id uuid.UUID
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id
		FROM staff
		WHERE id = $1 AND tenant_id = $2
		FOR UPDATE
	`, staffID, tenantID).Scan(&id)
	if noRows(err) {
		return fmt.Errorf("staff %s: %w", staffID, booking.ErrStaffNotFound)
	}
	return err
}

func (s *Store) GetStaff(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID) (booking.Staff, error) {
	var st booking.Staff
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, name, created_at
		FROM staff
		WHERE id = $1 AND tenant_id = $2
	`, staffID, tenantID).Scan(&st.ID, &st.TenantID, &st.Name, &st.CreatedAt)
	if noRows(err) {
		return booking.Staff{}, fmt.Errorf("staff %s: %w", staffID, booking.ErrStaffNotFound)
	}
	return st, err
}

func (s *Store) GetScheduleEntry(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID, day time.Weekday) (*booking.ScheduleEntry, error) {
	var entry booking.ScheduleEntry
	var dayOfWeek int
	err := s.db(ctx).QueryRow(ctx, `
		SELECT staff_id, day_of_week, start_mins, end_mins
		FROM staff_schedules
		WHERE staff_id = $1 AND tenant_id = $2 AND day_of_week = $3
	`, staffID, tenantID, int(day)).Scan(&entry.StaffID, &dayOfWeek, &entry.StartMins, &entry.EndMins)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry.Day = time.Weekday(dayOfWeek)
	return &entry, nil
}

func (s *Store) ListScheduleEntries(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID) ([]booking.ScheduleEntry, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT staff_id, day_of_week, start_mins, end_mins
		FROM staff_schedules
		WHERE staff_id = $1 AND tenant_id = $2
		ORDER BY day_of_week
	`, staffID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []booking.ScheduleEntry
	for rows.Next() {
		var entry booking.ScheduleEntry
		var dayOfWeek int
		if err := rows.Scan(&entry.StaffID, &dayOfWeek, &entry.StartMins, &entry.EndMins); err != nil {
			return nil, err
		}
		entry.Day = time.Weekday(dayOfWeek)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
