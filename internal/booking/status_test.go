package booking

import "testing"

func TestStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDraft, StatusPending},
		{StatusDraft, StatusConfirmed},
		{StatusDraft, StatusCancelled},
		{StatusPending, StatusConfirmed},
		{StatusPending, StatusNoShow},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCompleted},
		{StatusConfirmed, StatusNoShow},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
	}
	for _, tc := range allowed {
		if !tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	blocked := []struct{ from, to Status }{
		{StatusDraft, StatusInProgress},
		{StatusDraft, StatusCompleted},
		{StatusPending, StatusInProgress},
		{StatusInProgress, StatusNoShow},
		{StatusCompleted, StatusConfirmed},
		{StatusCancelled, StatusPending},
		{StatusNoShow, StatusConfirmed},
	}
	for _, tc := range blocked {
		if tc.from.CanTransitionTo(tc.to) {
			t.Errorf("expected %s -> %s to be blocked", tc.from, tc.to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []Status{StatusDraft, StatusPending, StatusConfirmed, StatusInProgress} {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
	if Status("BOGUS").Valid() {
		t.Fatalf("unknown status must not validate")
	}
}

func TestPaymentStatusRules(t *testing.T) {
	if !PaymentUnpaid.CanRecordPayment() || !PaymentPartial.CanRecordPayment() {
		t.Fatalf("unpaid and partial must accept payments")
	}
	if PaymentPaid.CanRecordPayment() || PaymentRefunded.CanRecordPayment() {
		t.Fatalf("paid and refunded must not accept payments")
	}
	if !PaymentPaid.CanRefund() || !PaymentPartial.CanRefund() {
		t.Fatalf("paid and partial must be refundable")
	}
	if PaymentUnpaid.CanRefund() {
		t.Fatalf("unpaid must not be refundable")
	}
}
