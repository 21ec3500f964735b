package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testBooking(status Status) *Booking {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &Booking{
		ID:            uuid.New(),
		Number:        "BKTEST01",
		TenantID:      uuid.New(),
		CustomerID:    uuid.New(),
		Status:        status,
		Slot:          TimeSlot{Start: start, End: start.Add(time.Hour)},
		TotalAmount:   decimal.NewFromInt(100),
		PaymentStatus: PaymentUnpaid,
		PaidAmount:    decimal.Zero,
	}
}

func eventTypes(b *Booking) []string {
	events := b.Events()
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestBookingLifecycleEvents(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := testBooking(StatusConfirmed)

	if err := b.Start(now); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := b.Complete(now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if b.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}

	types := eventTypes(b)
	if len(types) != 1 || types[0] != EventCompleted {
		t.Fatalf("expected single completed event, got %v", types)
	}
	if got := eventTypes(b); len(got) != 0 {
		t.Fatalf("Events must drain, second call returned %v", got)
	}
}

func TestBookingCancelRecordsReason(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := testBooking(StatusPending)

	if err := b.Cancel(now, "customer request"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if b.Status != StatusCancelled || b.CancelledAt == nil || b.CancellationReason != "customer request" {
		t.Fatalf("cancel did not record state: %+v", b)
	}
	if err := b.Cancel(now, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition from cancelled, got %v", err)
	}
}

func TestBookingRescheduleTerminalRejected(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	for _, status := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		b := testBooking(status)
		if err := b.Reschedule(now, TimeSlot{}, nil); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("expected reschedule in %s to fail, got %v", status, err)
		}
	}
}

func TestChangeCustomerBlockedAfterPayment(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := testBooking(StatusConfirmed)

	if err := b.RecordPayment(now, decimal.NewFromInt(40)); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if err := b.ChangeCustomer(now, uuid.New()); !errors.Is(err, ErrCustomerHasPayments) {
		t.Fatalf("expected ErrCustomerHasPayments, got %v", err)
	}
}

func TestRecordPayment(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := testBooking(StatusConfirmed)

	if err := b.RecordPayment(now, decimal.NewFromInt(40)); err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if b.PaymentStatus != PaymentPartial || !b.PaidAmount.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("partial payment state wrong: %s %s", b.PaymentStatus, b.PaidAmount)
	}

	// Overpayment clamps to the total.
	if err := b.RecordPayment(now, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("overpayment: %v", err)
	}
	if b.PaymentStatus != PaymentPaid || !b.PaidAmount.Equal(b.TotalAmount) {
		t.Fatalf("overpayment should clamp: %s %s", b.PaymentStatus, b.PaidAmount)
	}

	if err := b.RecordPayment(now, decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidPaymentAmount) {
		t.Fatalf("expected payment on paid booking to fail, got %v", err)
	}
}

func TestRecordRefund(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := testBooking(StatusConfirmed)

	if err := b.RecordRefund(now, decimal.NewFromInt(10)); !errors.Is(err, ErrInvalidPaymentAmount) {
		t.Fatalf("expected refund on unpaid booking to fail, got %v", err)
	}

	if err := b.RecordPayment(now, decimal.NewFromInt(100)); err != nil {
		t.Fatalf("pay in full: %v", err)
	}
	if err := b.RecordRefund(now, decimal.NewFromInt(200)); !errors.Is(err, ErrInvalidPaymentAmount) {
		t.Fatalf("expected refund above paid amount to fail, got %v", err)
	}
	if err := b.RecordRefund(now, decimal.NewFromInt(30)); err != nil {
		t.Fatalf("partial refund: %v", err)
	}
	if b.PaymentStatus != PaymentPartial || !b.PaidAmount.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("partial refund state wrong: %s %s", b.PaymentStatus, b.PaidAmount)
	}
	if err := b.RecordRefund(now, decimal.NewFromInt(70)); err != nil {
		t.Fatalf("full refund: %v", err)
	}
	if b.PaymentStatus != PaymentRefunded || !b.PaidAmount.IsZero() {
		t.Fatalf("full refund state wrong: %s %s", b.PaymentStatus, b.PaidAmount)
	}
}
