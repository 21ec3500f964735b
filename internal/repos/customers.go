package repos

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
)

func (s *Store) GetCustomer(ctx context.Context, tenantID uuid.UUID, customerID uuid.UUID) (booking.Customer, error) {
	var c booking.Customer
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, name, email, phone, visit_count, loyalty_points
		FROM customers
		WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID).Scan(&c.ID, &c.TenantID, &c.Name, &c.Email, &c.Phone, &c.VisitCount, &c.Loyalty)
	if noRows(err) {
		return booking.Customer{}, fmt.Errorf("customer %s: %w", customerID, booking.ErrCustomerNotFound)
	}
	return c, err
}

// RecordCompletedVisit bumps the customer's visit counter and accrues
// loyalty points in one statement, called from the side-effect worker when a
// booking completes.
func (s *Store) RecordCompletedVisit(ctx context.Context, tenantID uuid.UUID, customerID uuid.UUID, points int64) error {
	tag, err := s.db(ctx).Exec(ctx, `
		UPDATE customers
		SET visit_count = visit_count + 1,
			loyalty_points = loyalty_points + $3
		WHERE id = $1 AND tenant_id = $2
	`, customerID, tenantID, points)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %s: %w", customerID, booking.ErrCustomerNotFound)
	}
	return nil
}
