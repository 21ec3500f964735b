package repos

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	numberCollision := &pgconn.PgError{Code: "23505", ConstraintName: "uq_bookings_tenant_number"}
	if !isUniqueViolation(numberCollision, "uq_bookings_tenant_number") {
		t.Fatalf("booking-number collision not detected")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", numberCollision), "uq_bookings_tenant_number") {
		t.Fatalf("wrapped collision not detected")
	}

	// A 23505 on a different constraint must not trigger a number retry.
	pkCollision := &pgconn.PgError{Code: "23505", ConstraintName: "bookings_pkey"}
	if isUniqueViolation(pkCollision, "uq_bookings_tenant_number") {
		t.Fatalf("primary-key collision must not look like a number collision")
	}

	if isUniqueViolation(errors.New("boom"), "uq_bookings_tenant_number") {
		t.Fatalf("non-pg error must not match")
	}
}
