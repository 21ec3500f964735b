package booking

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/clock"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/outbox"
)

// Repository is the persistence boundary of the coordinator. The production
// adapter is internal/repos; tests use an in-memory fake. WithTx must run fn
// inside one ReadCommitted transaction with a bounded timeout, and every
// other method must participate in an ambient transaction when called under
// WithTx.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockStaff takes a row-level exclusive lock on (staffID, tenantID),
	// serializing all writers for that staff member.
	LockStaff(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID) error

	GetMerchant(ctx context.Context, tenantID uuid.UUID) (Merchant, error)
	GetStaff(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID) (Staff, error)
	GetService(ctx context.Context, tenantID uuid.UUID, serviceID uuid.UUID) (Service, error)
	GetCustomer(ctx context.Context, tenantID uuid.UUID, customerID uuid.UUID) (Customer, error)

	// GetScheduleEntry returns nil when the staff member is not rostered on
	// that weekday.
	GetScheduleEntry(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID, day time.Weekday) (*ScheduleEntry, error)
	ListScheduleEntries(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID) ([]ScheduleEntry, error)

	// FindConflicts returns non-terminal, non-deleted bookings whose padded
	// line-item intervals for staffID overlap the (already padded) interval.
	FindConflicts(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID, interval TimeSlot, excludeBookingID uuid.UUID) ([]ConflictingBooking, error)

	// CreateBooking persists the aggregate and its line items; returns
	// ErrDuplicateBookingNumber on a booking-number collision.
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*Booking, error)
	UpdateBooking(ctx context.Context, b *Booking) error

	ListOccupied(ctx context.Context, tenantID uuid.UUID, staffID uuid.UUID, from time.Time, to time.Time) ([]OccupiedInterval, error)

	AppendEvent(ctx context.Context, event outbox.Event) error
}

// Coordinator owns the booking write path: lock, validate, persist, enqueue
// outbox events, all in one transaction.
type Coordinator struct {
	repo           Repository
	clock          clock.Clock
	numberAttempts int
}

const defaultNumberAttempts = 5

type CoordinatorOption func(*Coordinator)

// WithNumberAttempts bounds booking-number regeneration on uniqueness
// violations before the transaction fails hard.
func WithNumberAttempts(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.numberAttempts = n
		}
	}
}

func NewCoordinator(repo Repository, clk clock.Clock, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		repo:           repo,
		clock:          clk,
		numberAttempts: defaultNumberAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type LineItemInput struct {
	ServiceID uuid.UUID
	StaffID   uuid.UUID
}

type CreateBookingInput struct {
	TenantID       uuid.UUID
	CustomerID     uuid.UUID
	StartTime      time.Time
	Items          []LineItemInput
	Notes          string
	Source         string
	CreatedByID    uuid.UUID
	Override       bool
	OverrideReason string
}

const SourceOnline = "ONLINE"

func (c *Coordinator) CreateBooking(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	if len(in.Items) == 0 {
		return nil, ErrServiceRequired
	}
	if in.Override && in.OverrideReason == "" {
		return nil, ErrOverrideReasonRequired
	}

	now := c.clock.Now()
	var result *Booking

	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		merchant, err := c.repo.GetMerchant(txCtx, in.TenantID)
		if err != nil {
			return err
		}
		if _, err := c.repo.GetCustomer(txCtx, in.TenantID, in.CustomerID); err != nil {
			return err
		}

		if err := c.lockStaffOrdered(txCtx, in.TenantID, staffIDs(in.Items)); err != nil {
			return err
		}

		items, slot, total, err := c.resolveItems(txCtx, in.TenantID, in.StartTime, in.Items)
		if err != nil {
			return err
		}

		if !in.Override {
			if err := c.validateSchedules(txCtx, merchant, items); err != nil {
				return err
			}
			if err := c.checkConflicts(txCtx, in.TenantID, items, uuid.Nil); err != nil {
				return err
			}
		}

		status := StatusConfirmed
		if in.Source == SourceOnline && !merchant.AutoConfirmBookings {
			status = StatusPending
		}

		b := &Booking{
			ID:             uuid.New(),
			TenantID:       in.TenantID,
			CustomerID:     in.CustomerID,
			Status:         status,
			Slot:           slot,
			Items:          items,
			TotalAmount:    total,
			DepositAmount:  decimal.Zero,
			Notes:          in.Notes,
			Source:         in.Source,
			IsOverride:     in.Override,
			OverrideReason: in.OverrideReason,
			PaymentStatus:  PaymentUnpaid,
			PaidAmount:     decimal.Zero,
			CreatedByID:    in.CreatedByID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := c.persistWithFreshNumber(txCtx, b, now); err != nil {
			return err
		}

		b.record(EventCreated, map[string]any{
			"bookingNumber": b.Number,
			"customerId":    b.CustomerID,
			"staffIds":      staffIDs(in.Items),
			"startTime":     b.Slot.Start,
			"endTime":       b.Slot.End,
			"status":        b.Status,
			"totalAmount":   b.TotalAmount.String(),
			"source":        b.Source,
		})
		if status == StatusConfirmed {
			b.record(EventConfirmed, map[string]any{
				"bookingNumber": b.Number,
				"startTime":     b.Slot.Start,
				"endTime":       b.Slot.End,
			})
		}
		if err := c.appendEvents(txCtx, b, now); err != nil {
			return err
		}

		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockStaffOrdered acquires the per-staff row locks in sorted id order so
// two concurrent multi-staff bookings can never deadlock on each other.
func (c *Coordinator) lockStaffOrdered(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) error {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})
	for _, id := range sorted {
		if err := c.repo.LockStaff(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

// resolveItems turns the input into line items chained back to back from
// startTime and returns the overall customer-visible slot and total price.
func (c *Coordinator) resolveItems(ctx context.Context, tenantID uuid.UUID, startTime time.Time, inputs []LineItemInput) ([]LineItem, TimeSlot, decimal.Decimal, error) {
	items := make([]LineItem, 0, len(inputs))
	total := decimal.Zero
	cursor := startTime.UTC()

	for _, input := range inputs {
		svc, err := c.repo.GetService(ctx, tenantID, input.ServiceID)
		if err != nil {
			return nil, TimeSlot{}, decimal.Zero, err
		}
		slot := TimeSlot{Start: cursor, End: cursor.Add(svc.Duration)}
		items = append(items, LineItem{
			ServiceID:     svc.ID,
			StaffID:       input.StaffID,
			Duration:      svc.Duration,
			PaddingBefore: svc.PaddingBefore,
			PaddingAfter:  svc.PaddingAfter,
			Price:         svc.Price,
			Slot:          slot,
		})
		total = total.Add(svc.Price)
		cursor = slot.End
	}

	slot, err := NewTimeSlot(startTime, cursor)
	if err != nil {
		return nil, TimeSlot{}, decimal.Zero, err
	}
	return items, slot, total, nil
}

// validateSchedules checks every line item against the staff roster and the
// merchant business hours, both resolved in the merchant's timezone.
func (c *Coordinator) validateSchedules(ctx context.Context, merchant Merchant, items []LineItem) error {
	loc, err := merchant.Location()
	if err != nil {
		return err
	}
	for _, item := range items {
		effective := item.Slot.Effective(item.PaddingBefore, item.PaddingAfter)
		localStart := effective.Start.In(loc)
		day := localStart.Weekday()

		// End is measured as minutes from the start's own day so an
		// interval wrapping past midnight cannot pass the close check.
		startMins := minutesOfDay(localStart)
		endMins := startMins + int(effective.Duration().Minutes())

		window, open := merchant.BusinessHours.Window(day)
		if !open {
			return scheduleErrorf("business is closed on %s", day)
		}
		if startMins < window.OpenMins || endMins > window.CloseMins {
			return scheduleErrorf("booking time must be within business hours (%s - %s)",
				FormatClock(window.OpenMins), FormatClock(window.CloseMins))
		}

		if item.StaffID == uuid.Nil {
			continue
		}
		staff, err := c.repo.GetStaff(ctx, merchant.ID, item.StaffID)
		if err != nil {
			return err
		}
		entry, err := c.repo.GetScheduleEntry(ctx, merchant.ID, item.StaffID, day)
		if err != nil {
			return err
		}
		if entry == nil {
			return scheduleErrorf("%s is not available on %s", staff.Name, day)
		}
		if startMins < entry.StartMins || endMins > entry.EndMins {
			return scheduleErrorf("%s is only available from %s to %s on %s",
				staff.Name, FormatClock(entry.StartMins), FormatClock(entry.EndMins), day)
		}
	}
	return nil
}

// checkConflicts scans each staffed line item's padded interval against the
// committed bookings. The per-staff lock taken earlier serializes writers,
// so ReadCommitted visibility is enough here.
func (c *Coordinator) checkConflicts(ctx context.Context, tenantID uuid.UUID, items []LineItem, excludeID uuid.UUID) error {
	var all []ConflictingBooking
	staffName := ""
	for _, item := range items {
		if item.StaffID == uuid.Nil {
			continue
		}
		effective := item.Slot.Effective(item.PaddingBefore, item.PaddingAfter)
		conflicts, err := c.repo.FindConflicts(ctx, tenantID, item.StaffID, effective, excludeID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 && staffName == "" {
			staffName = conflicts[0].StaffName
		}
		all = append(all, conflicts...)
	}
	if len(all) > 0 {
		return &ConflictError{StaffName: staffName, Conflicts: all}
	}
	return nil
}

// persistWithFreshNumber inserts the aggregate, regenerating the booking
// number on a uniqueness violation a bounded number of times. Exhausting the
// attempts aborts the transaction rather than retrying forever.
func (c *Coordinator) persistWithFreshNumber(ctx context.Context, b *Booking, now time.Time) error {
	for attempt := 0; attempt < c.numberAttempts; attempt++ {
		b.Number = GenerateNumber(now)
		err := c.repo.CreateBooking(ctx, b)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateBookingNumber) {
			return err
		}
	}
	return ErrBookingNumberExhausted
}

func (c *Coordinator) appendEvents(ctx context.Context, b *Booking, now time.Time) error {
	for _, ev := range b.Events() {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return err
		}
		record := outbox.New(b.TenantID, outbox.AggregateTypeBooking, b.ID, ev.Type, payload, now)
		if err := c.repo.AppendEvent(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

func staffIDs(items []LineItemInput) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.StaffID == uuid.Nil {
			continue
		}
		if _, ok := seen[item.StaffID]; ok {
			continue
		}
		seen[item.StaffID] = struct{}{}
		out = append(out, item.StaffID)
	}
	return out
}
