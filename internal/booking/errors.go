package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidTimeSlot        = errors.New("invalid time slot")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrServiceRequired        = errors.New("at least one service is required")
	ErrServiceNotFound        = errors.New("service not found")
	ErrMerchantNotFound       = errors.New("merchant not found")
	ErrStaffNotFound          = errors.New("staff not found")
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrBookingNotFound        = errors.New("booking not found")
	ErrDuplicateBookingNumber = errors.New("duplicate booking number")
	ErrBookingNumberExhausted = errors.New("booking number generation exhausted retries")
	ErrOverrideReasonRequired = errors.New("override reason is required")
	ErrCustomerHasPayments    = errors.New("cannot change customer once payment has been recorded")
	ErrInvalidPaymentAmount   = errors.New("invalid payment amount")
)

// ConflictingBooking describes one existing booking that overlaps the
// requested interval. Enough detail for the caller to decide whether to pick
// another slot or retry with an override.
type ConflictingBooking struct {
	ID            uuid.UUID `json:"id"`
	BookingNumber string    `json:"bookingNumber"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	Status        Status    `json:"status"`
	StaffID       uuid.UUID `json:"staffId"`
	StaffName     string    `json:"staffName"`
}

// ConflictError is returned when the requested interval overlaps existing
// bookings and no override was supplied. Recoverable by the caller.
type ConflictError struct {
	StaffName string
	Conflicts []ConflictingBooking
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot has conflicts for %s (%d conflicting bookings)", e.StaffName, len(e.Conflicts))
}

// ScheduleError is returned when the requested interval falls outside the
// staff roster or the merchant's business hours. Non-retryable.
type ScheduleError struct {
	Reason string
}

func (e *ScheduleError) Error() string {
	return e.Reason
}

func scheduleErrorf(format string, args ...any) *ScheduleError {
	return &ScheduleError{Reason: fmt.Sprintf(format, args...)}
}
