package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
)

// nonTerminalOnly filters conflict and occupancy scans to bookings that can
// still occupy staff time.
const nonTerminalOnly = `
	b.status NOT IN ('COMPLETED', 'CANCELLED', 'NO_SHOW')
	AND b.deleted_at IS NULL`

// FindConflicts scans committed booking items for staffID whose padded
// intervals overlap the given (already padded) interval. excludeBookingID
// may be uuid.Nil when creating.
func (s *Store) FindConflicts(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID, interval booking.TimeSlot, excludeBookingID uuid.UUID) ([]booking.ConflictingBooking, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT b.id, b.booking_number, b.start_time, b.end_time, b.status, i.staff_id, st.name
		FROM booking_items i
		JOIN bookings b ON b.id = i.booking_id
		JOIN staff st ON st.id = i.staff_id
		WHERE b.tenant_id = $1
		  AND i.staff_id = $2
		  AND b.id <> $3
		  AND `+nonTerminalOnly+`
		  AND (i.start_time - make_interval(mins => i.padding_before_mins)) < $5
		  AND (i.end_time + make_interval(mins => i.padding_after_mins)) > $4
		ORDER BY b.start_time
	`, tenantID, staffID, excludeBookingID, interval.Start, interval.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conflicts []booking.ConflictingBooking
	for rows.Next() {
		var c booking.ConflictingBooking
		if err := rows.Scan(&c.ID, &c.BookingNumber, &c.StartTime, &c.EndTime, &c.Status, &c.StaffID, &c.StaffName); err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	return conflicts, rows.Err()
}

// ListOccupied returns the padded occupancy of one staff member over
// [from, to], for availability computation.
func (s *Store) ListOccupied(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID, from time.Time, to time.Time) ([]booking.OccupiedInterval, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT i.start_time, i.end_time, i.padding_before_mins, i.padding_after_mins, b.booking_number
		FROM booking_items i
		JOIN bookings b ON b.id = i.booking_id
		WHERE b.tenant_id = $1
		  AND i.staff_id = $2
		  AND `+nonTerminalOnly+`
		  AND i.start_time < $4
		  AND i.end_time > $3
		ORDER BY i.start_time
	`, tenantID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var occupied []booking.OccupiedInterval
	for rows.Next() {
		var o booking.OccupiedInterval
		if err := rows.Scan(&o.Slot.Start, &o.Slot.End, &o.PaddingBefore, &o.PaddingAfter, &o.BookingNumber); err != nil {
			return nil, err
		}
		occupied = append(occupied, o)
	}
	return occupied, rows.Err()
}

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking) error {
	_, err := s.db(ctx).Exec(ctx, `
		INSERT INTO bookings (
			id, booking_number, tenant_id, customer_id, status,
			start_time, end_time, total_amount, deposit_amount, notes,
			source, is_override, override_reason, payment_status, paid_amount,
			created_by_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18
		)
	`,
		b.ID, b.Number, b.TenantID, b.CustomerID, b.Status,
		b.Slot.Start, b.Slot.End, b.TotalAmount, b.DepositAmount, b.Notes,
		b.Source, b.IsOverride, nullIfEmpty(b.OverrideReason), b.PaymentStatus, b.PaidAmount,
		b.CreatedByID, b.CreatedAt, b.UpdatedAt,
	)
	if isUniqueViolation(err, "uq_bookings_tenant_number") {
		return fmt.Errorf("booking number %s: %w", b.Number, booking.ErrDuplicateBookingNumber)
	}
	if err != nil {
		return err
	}
	return s.insertItems(ctx, b)
}

func (s *Store) GetBooking(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*booking.Booking, error) {
	b := &booking.Booking{}
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, booking_number, tenant_id, customer_id, status,
			start_time, end_time, total_amount, deposit_amount, notes,
			source, is_override, COALESCE(override_reason, ''), payment_status, paid_amount,
			created_by_id, created_at, updated_at,
			cancelled_at, COALESCE(cancellation_reason, ''), completed_at, deleted_at
		FROM bookings
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`, id, tenantID).Scan(
		&b.ID, &b.Number, &b.TenantID, &b.CustomerID, &b.Status,
		&b.Slot.Start, &b.Slot.End, &b.TotalAmount, &b.DepositAmount, &b.Notes,
		&b.Source, &b.IsOverride, &b.OverrideReason, &b.PaymentStatus, &b.PaidAmount,
		&b.CreatedByID, &b.CreatedAt, &b.UpdatedAt,
		&b.CancelledAt, &b.CancellationReason, &b.CompletedAt, &b.DeletedAt,
	)
	if noRows(err) {
		return nil, fmt.Errorf("booking %s: %w", id, booking.ErrBookingNotFound)
	}
	if err != nil {
		return nil, err
	}
	b.Items, err = s.listItems(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBooking rewrites the aggregate row and replaces its line items.
// Items are few per booking, so delete-and-reinsert beats diffing.
func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE bookings
		SET customer_id = $3, status = $4,
			start_time = $5, end_time = $6, total_amount = $7, notes = $8,
			is_override = $9, override_reason = $10, payment_status = $11, paid_amount = $12,
			updated_at = $13, cancelled_at = $14, cancellation_reason = $15, completed_at = $16
		WHERE id = $1 AND tenant_id = $2 AND deleted_at IS NULL
	`,
		b.ID, b.TenantID, b.CustomerID, b.Status,
		b.Slot.Start, b.Slot.End, b.TotalAmount, b.Notes,
		b.IsOverride, nullIfEmpty(b.OverrideReason), b.PaymentStatus, b.PaidAmount,
		b.UpdatedAt, b.CancelledAt, nullIfEmpty(b.CancellationReason), b.CompletedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %s: %w", b.ID, booking.ErrBookingNotFound)
	}
	if _, err := s.db(ctx).Exec(ctx, `DELETE FROM booking_items WHERE booking_id = $1`, b.ID); err != nil {
		return err
	}
	return s.insertItems(ctx, b)
}

func (s *Store) insertItems(ctx context.Context, b *booking.Booking) error {
	for position, item := range b.Items {
		_, err := s.db(ctx).Exec(ctx, `
			INSERT INTO booking_items (
				booking_id, service_id, staff_id, position,
				duration_mins, padding_before_mins, padding_after_mins, price,
				start_time, end_time
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			b.ID, item.ServiceID, nullIfNilUUID(item.StaffID), position,
			int(item.Duration.Minutes()), int(item.PaddingBefore.Minutes()), int(item.PaddingAfter.Minutes()), item.Price,
			item.Slot.Start, item.Slot.End,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) listItems(ctx context.Context, bookingID uuid.UUID) ([]booking.LineItem, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT service_id, COALESCE(staff_id, '00000000-0000-0000-0000-000000000000'),
			duration_mins, padding_before_mins, padding_after_mins, price,
			start_time, end_time
		FROM booking_items
		WHERE booking_id = $1
		ORDER BY position
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []booking.LineItem
	for rows.Next() {
		var (
			item                                      booking.LineItem
			durationMins, paddingBefore, paddingAfter int
		)
		if err := rows.Scan(
			&item.ServiceID, &item.StaffID,
			&durationMins, &paddingBefore, &paddingAfter, &item.Price,
			&item.Slot.Start, &item.Slot.End,
		); err != nil {
			return nil, err
		}
		item.Duration = time.Duration(durationMins) * time.Minute
		item.PaddingBefore = time.Duration(paddingBefore) * time.Minute
		item.PaddingAfter = time.Duration(paddingAfter) * time.Minute
		items = append(items, item)
	}
	return items, rows.Err()
}

// BookingListQuery filters the range listing. Zero values mean "no filter";
// StaffID narrows to bookings with at least one item assigned to that staff.
type BookingListQuery struct {
	StaffID uuid.UUID
	From    time.Time
	To      time.Time
	Status  booking.Status
	Limit   int
}

// BookingSummary is the listing projection, without line items.
type BookingSummary struct {
	ID            uuid.UUID
	BookingNumber string
	CustomerID    uuid.UUID
	Status        booking.Status
	StartTime     time.Time
	EndTime       time.Time
	TotalAmount   decimal.Decimal
	PaymentStatus booking.PaymentStatus
}

func (s *Store) ListBookings(ctx context.Context, tenantID uuid.UUID, q BookingListQuery) ([]BookingSummary, error) {
	query := `
		SELECT b.id, b.booking_number, b.customer_id, b.status,
			b.start_time, b.end_time, b.total_amount, b.payment_status
		FROM bookings b
		WHERE b.tenant_id = $1 AND b.deleted_at IS NULL`
	args := []any{tenantID}

	if !q.From.IsZero() {
		args = append(args, q.From)
		query += fmt.Sprintf(" AND b.start_time >= $%d", len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		query += fmt.Sprintf(" AND b.start_time < $%d", len(args))
	}
	if q.Status != "" {
		args = append(args, q.Status)
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	if q.StaffID != uuid.Nil {
		args = append(args, q.StaffID)
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM booking_items i WHERE i.booking_id = b.id AND i.staff_id = $%d)", len(args))
	}
	query += " ORDER BY b.start_time"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []BookingSummary
	for rows.Next() {
		var b BookingSummary
		if err := rows.Scan(
			&b.ID, &b.BookingNumber, &b.CustomerID, &b.Status,
			&b.StartTime, &b.EndTime, &b.TotalAmount, &b.PaymentStatus,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, b)
	}
	return summaries, rows.Err()
}

// UpcomingBooking is the slim projection used by the reminder sweep.
type UpcomingBooking struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	CustomerID    uuid.UUID
	BookingNumber string
	StartTime     time.Time
}

func (s *Store) ListUpcoming(ctx context.Context, from time.Time, to time.Time) ([]UpcomingBooking, error) {
	rows, err := s.db(ctx).Query(ctx, `
		SELECT id, tenant_id, customer_id, booking_number, start_time
		FROM bookings
		WHERE status = 'CONFIRMED'
		  AND deleted_at IS NULL
		  AND start_time >= $1
		  AND start_time < $2
		ORDER BY start_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var upcoming []UpcomingBooking
	for rows.Next() {
		var u UpcomingBooking
		if err := rows.Scan(&u.ID, &u.TenantID, &u.CustomerID, &u.BookingNumber, &u.StartTime); err != nil {
			return nil, err
		}
		upcoming = append(upcoming, u)
	}
	return upcoming, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullIfNilUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
