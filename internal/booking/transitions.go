package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// mutate loads the aggregate, applies fn, persists and appends whatever
// events fn recorded, all in one transaction.
func (c *Coordinator) mutate(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, fn func(txCtx context.Context, b *Booking) error) (*Booking, error) {
	now := c.clock.Now()
	var result *Booking
	err := c.repo.WithTx(ctx, func(txCtx context.Context) error {
		b, err := c.repo.GetBooking(txCtx, tenantID, id)
		if err != nil {
			return err
		}
		if err := fn(txCtx, b); err != nil {
			return err
		}
		if err := c.repo.UpdateBooking(txCtx, b); err != nil {
			return err
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

// GetBooking is a plain read, no locks taken.
func (c *Coordinator) GetBooking(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*Booking, error) {
	return c.repo.GetBooking(ctx, tenantID, id)
}

func (c *Coordinator) Start(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.Start(c.clock.Now())
	})
}

func (c *Coordinator) Confirm(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.Confirm(c.clock.Now())
	})
}

func (c *Coordinator) Complete(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.Complete(c.clock.Now())
	})
}

func (c *Coordinator) Cancel(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, reason string) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.Cancel(c.clock.Now(), reason)
	})
}

func (c *Coordinator) MarkNoShow(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.MarkNoShow(c.clock.Now())
	})
}

func (c *Coordinator) ChangeCustomer(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, customerID uuid.UUID) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(txCtx context.Context, b *Booking) error {
		if _, err := c.repo.GetCustomer(txCtx, tenantID, customerID); err != nil {
			return err
		}
		return b.ChangeCustomer(c.clock.Now(), customerID)
	})
}

func (c *Coordinator) RecordPayment(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, amount decimal.Decimal) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.RecordPayment(c.clock.Now(), amount)
	})
}

func (c *Coordinator) RecordRefund(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, amount decimal.Decimal) (*Booking, error) {
	return c.mutate(ctx, tenantID, id, func(_ context.Context, b *Booking) error {
		return b.RecordRefund(c.clock.Now(), amount)
	})
}

type RescheduleInput struct {
	TenantID     uuid.UUID
	BookingID    uuid.UUID
	NewStartTime time.Time

	// NewStaffID, when set, reassigns every line item to that staff member.
	NewStaffID     uuid.UUID
	Override       bool
	OverrideReason string
}

// Reschedule re-runs the full lock/validate/conflict protocol against the
// new interval, excluding the booking's own prior interval from the scan.
func (c *Coordinator) Reschedule(ctx context.Context, in RescheduleInput) (*Booking, error) {
	if in.Override && in.OverrideReason == "" {
		return nil, ErrOverrideReasonRequired
	}
	return c.mutate(ctx, in.TenantID, in.BookingID, func(txCtx context.Context, b *Booking) error {
		if b.Status.IsTerminal() {
			// Reject before taking locks; the aggregate would reject too,
			// but there is no point serializing other writers first.
			return b.Reschedule(c.clock.Now(), TimeSlot{}, nil)
		}

		merchant, err := c.repo.GetMerchant(txCtx, in.TenantID)
		if err != nil {
			return err
		}
		locks := itemStaffIDs(b.Items)
		if in.NewStaffID != uuid.Nil {
			locks = append(locks, in.NewStaffID)
		}
		if err := c.lockStaffOrdered(txCtx, in.TenantID, dedupe(locks)); err != nil {
			return err
		}

		items, slot, err := rechain(b.Items, in.NewStartTime)
		if err != nil {
			return err
		}
		if in.NewStaffID != uuid.Nil {
			if _, err := c.repo.GetStaff(txCtx, in.TenantID, in.NewStaffID); err != nil {
				return err
			}
			for i := range items {
				items[i].StaffID = in.NewStaffID
			}
		}

		if !in.Override {
			if err := c.validateSchedules(txCtx, merchant, items); err != nil {
				return err
			}
			if err := c.checkConflicts(txCtx, in.TenantID, items, b.ID); err != nil {
				return err
			}
		}
		if in.Override {
			b.IsOverride = true
			b.OverrideReason = in.OverrideReason
		}
		return b.Reschedule(c.clock.Now(), slot, items)
	})
}

type UpdateServicesInput struct {
	TenantID       uuid.UUID
	BookingID      uuid.UUID
	Items          []LineItemInput
	Override       bool
	OverrideReason string
}

// UpdateServices replaces the booking's line items, recomputing the chain
// and total from the existing start time and re-running the conflict
// protocol for the new staff set.
func (c *Coordinator) UpdateServices(ctx context.Context, in UpdateServicesInput) (*Booking, error) {
	if len(in.Items) == 0 {
		return nil, ErrServiceRequired
	}
	if in.Override && in.OverrideReason == "" {
		return nil, ErrOverrideReasonRequired
	}
	return c.mutate(ctx, in.TenantID, in.BookingID, func(txCtx context.Context, b *Booking) error {
		if b.Status.IsTerminal() {
			return b.Reschedule(c.clock.Now(), TimeSlot{}, nil)
		}

		merchant, err := c.repo.GetMerchant(txCtx, in.TenantID)
		if err != nil {
			return err
		}
		locks := append(itemStaffIDs(b.Items), staffIDs(in.Items)...)
		if err := c.lockStaffOrdered(txCtx, in.TenantID, dedupe(locks)); err != nil {
			return err
		}

		items, slot, total, err := c.resolveItems(txCtx, in.TenantID, b.Slot.Start, in.Items)
		if err != nil {
			return err
		}
		if !in.Override {
			if err := c.validateSchedules(txCtx, merchant, items); err != nil {
				return err
			}
			if err := c.checkConflicts(txCtx, in.TenantID, items, b.ID); err != nil {
				return err
			}
		}

		now := c.clock.Now()
		oldTotal := b.TotalAmount
		b.Slot = slot
		b.Items = items
		b.TotalAmount = total
		b.UpdatedAt = now
		b.record(EventServicesUpdated, map[string]any{
			"bookingNumber": b.Number,
			"serviceIds":    serviceIDsOf(items),
			"oldTotal":      oldTotal.String(),
			"newTotal":      total.String(),
			"startTime":     slot.Start,
			"endTime":       slot.End,
		})
		return nil
	})
}

// rechain shifts existing line items to a new start, preserving durations,
// padding and prices.
func rechain(items []LineItem, newStart time.Time) ([]LineItem, TimeSlot, error) {
	out := make([]LineItem, len(items))
	cursor := newStart.UTC()
	for i, item := range items {
		out[i] = item
		out[i].Slot = TimeSlot{Start: cursor, End: cursor.Add(item.Duration)}
		cursor = out[i].Slot.End
	}
	slot, err := NewTimeSlot(newStart, cursor)
	if err != nil {
		return nil, TimeSlot{}, err
	}
	return out, slot, nil
}

func itemStaffIDs(items []LineItem) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item.StaffID != uuid.Nil {
			out = append(out, item.StaffID)
		}
	}
	return out
}

func serviceIDsOf(items []LineItem) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		out = append(out, item.ServiceID)
	}
	return out
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
