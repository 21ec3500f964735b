package handlers

import (
	"errors"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
)

func isNotFound(err error) bool {
	return errors.Is(err, booking.ErrMerchantNotFound) ||
		errors.Is(err, booking.ErrStaffNotFound) ||
		errors.Is(err, booking.ErrServiceNotFound) ||
		errors.Is(err, booking.ErrCustomerNotFound) ||
		errors.Is(err, booking.ErrBookingNotFound)
}
