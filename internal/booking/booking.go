package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineItem is one (staff, service) leg of a booking. Items run back to back
// in order: each item's slot starts where the previous one ended.
type LineItem struct {
	ServiceID     uuid.UUID
	StaffID       uuid.UUID
	Duration      time.Duration
	PaddingBefore time.Duration
	PaddingAfter  time.Duration
	Price         decimal.Decimal
	Slot          TimeSlot
}

// Booking is the aggregate root. Mutations go through the behavior methods,
// which enforce the status transition table and record domain events for the
// outbox. Bookings are never physically deleted.
type Booking struct {
	ID             uuid.UUID
	Number         string
	TenantID       uuid.UUID
	CustomerID     uuid.UUID
	Status         Status
	Slot           TimeSlot
	Items          []LineItem
	TotalAmount    decimal.Decimal
	DepositAmount  decimal.Decimal
	Notes          string
	Source         string
	IsOverride     bool
	OverrideReason string

	PaymentStatus PaymentStatus
	PaidAmount    decimal.Decimal

	CreatedByID        uuid.UUID
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CompletedAt        *time.Time
	DeletedAt          *time.Time

	events []Event
}

// Event is a domain event recorded by the aggregate; the coordinator turns
// these into outbox rows inside the same transaction.
type Event struct {
	Type    string
	Payload map[string]any
}

const (
	EventCreated         = "created"
	EventConfirmed       = "confirmed"
	EventRescheduled     = "rescheduled"
	EventCompleted       = "completed"
	EventCancelled       = "cancelled"
	EventCustomerChanged = "customer_changed"
	EventServicesUpdated = "services_updated"
)

func (b *Booking) validate() error {
	if b.ID == uuid.Nil || b.Number == "" {
		return fmt.Errorf("booking id and number are required")
	}
	if b.CustomerID == uuid.Nil {
		return ErrCustomerNotFound
	}
	if b.TotalAmount.IsNegative() {
		return fmt.Errorf("total amount cannot be negative")
	}
	if b.DepositAmount.IsNegative() || b.DepositAmount.GreaterThan(b.TotalAmount) {
		return fmt.Errorf("invalid deposit amount")
	}
	return nil
}

func (b *Booking) Start(now time.Time) error {
	if err := b.Status.transitionTo(StatusInProgress); err != nil {
		return err
	}
	b.Status = StatusInProgress
	b.UpdatedAt = now
	return nil
}

func (b *Booking) Confirm(now time.Time) error {
	if err := b.Status.transitionTo(StatusConfirmed); err != nil {
		return err
	}
	b.Status = StatusConfirmed
	b.UpdatedAt = now
	b.record(EventConfirmed, map[string]any{
		"bookingNumber": b.Number,
		"startTime":     b.Slot.Start,
		"endTime":       b.Slot.End,
	})
	return nil
}

func (b *Booking) Complete(now time.Time) error {
	if err := b.Status.transitionTo(StatusCompleted); err != nil {
		return err
	}
	b.Status = StatusCompleted
	b.CompletedAt = &now
	b.UpdatedAt = now
	b.record(EventCompleted, map[string]any{
		"bookingNumber": b.Number,
		"customerId":    b.CustomerID,
		"totalAmount":   b.TotalAmount.String(),
		"completedAt":   now,
	})
	return nil
}

func (b *Booking) Cancel(now time.Time, reason string) error {
	if err := b.Status.transitionTo(StatusCancelled); err != nil {
		return err
	}
	b.Status = StatusCancelled
	b.CancellationReason = reason
	b.CancelledAt = &now
	b.UpdatedAt = now
	b.record(EventCancelled, map[string]any{
		"bookingNumber": b.Number,
		"reason":        reason,
		"cancelledAt":   now,
	})
	return nil
}

func (b *Booking) MarkNoShow(now time.Time) error {
	if err := b.Status.transitionTo(StatusNoShow); err != nil {
		return err
	}
	b.Status = StatusNoShow
	b.UpdatedAt = now
	return nil
}

// Reschedule swaps in a new time slot. The old slot is never mutated; the
// conflict re-validation against the new interval is the coordinator's job.
func (b *Booking) Reschedule(now time.Time, slot TimeSlot, items []LineItem) error {
	if b.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot reschedule booking in %s status", ErrInvalidTransition, b.Status)
	}
	old := b.Slot
	b.Slot = slot
	b.Items = items
	b.UpdatedAt = now
	b.record(EventRescheduled, map[string]any{
		"bookingNumber": b.Number,
		"oldStartTime":  old.Start,
		"oldEndTime":    old.End,
		"newStartTime":  slot.Start,
		"newEndTime":    slot.End,
	})
	return nil
}

func (b *Booking) ChangeCustomer(now time.Time, customerID uuid.UUID) error {
	if customerID == uuid.Nil {
		return ErrCustomerNotFound
	}
	if b.Status.IsTerminal() {
		return fmt.Errorf("%w: cannot change customer in %s status", ErrInvalidTransition, b.Status)
	}
	if b.PaymentStatus != PaymentUnpaid {
		return ErrCustomerHasPayments
	}
	if b.CustomerID == customerID {
		return nil
	}
	previous := b.CustomerID
	b.CustomerID = customerID
	b.UpdatedAt = now
	b.record(EventCustomerChanged, map[string]any{
		"bookingNumber":      b.Number,
		"previousCustomerId": previous,
		"newCustomerId":      customerID,
	})
	return nil
}

// RecordPayment adds a (partial) payment. Amounts above the outstanding
// balance clamp to the total; the payment gateway itself is out of scope.
func (b *Booking) RecordPayment(now time.Time, amount decimal.Decimal) error {
	if !b.PaymentStatus.CanRecordPayment() {
		return fmt.Errorf("%w: payment status is %s", ErrInvalidPaymentAmount, b.PaymentStatus)
	}
	if !amount.IsPositive() {
		return ErrInvalidPaymentAmount
	}
	paid := b.PaidAmount.Add(amount)
	if paid.GreaterThanOrEqual(b.TotalAmount) {
		b.PaymentStatus = PaymentPaid
		b.PaidAmount = b.TotalAmount
	} else {
		b.PaymentStatus = PaymentPartial
		b.PaidAmount = paid
	}
	b.UpdatedAt = now
	return nil
}

func (b *Booking) RecordRefund(now time.Time, amount decimal.Decimal) error {
	if !b.PaymentStatus.CanRefund() {
		return fmt.Errorf("%w: payment status is %s", ErrInvalidPaymentAmount, b.PaymentStatus)
	}
	if !amount.IsPositive() || amount.GreaterThan(b.PaidAmount) {
		return ErrInvalidPaymentAmount
	}
	remaining := b.PaidAmount.Sub(amount)
	if remaining.IsZero() {
		b.PaymentStatus = PaymentRefunded
	} else {
		b.PaymentStatus = PaymentPartial
	}
	b.PaidAmount = remaining
	b.UpdatedAt = now
	return nil
}

func (b *Booking) record(eventType string, payload map[string]any) {
	b.events = append(b.events, Event{Type: eventType, Payload: payload})
}

// Events returns and clears the pending domain events.
func (b *Booking) Events() []Event {
	out := b.events
	b.events = nil
	return out
}
