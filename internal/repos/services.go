package repos

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
)

func (s *Store) GetService(ctx context.Context, tenantID uuid.UUID, serviceID uuid.UUID) (booking.Service, error) {
	var (
		svc                                       booking.Service
		durationMins, paddingBefore, paddingAfter int
	)
	err := s.db(ctx).QueryRow(ctx, `
		SELECT id, tenant_id, name, duration_mins, padding_before_mins, padding_after_mins, price
		FROM services
		WHERE id = $1 AND tenant_id = $2
	`, serviceID, tenantID).Scan(
		&svc.ID, &svc.TenantID, &svc.Name,
		&durationMins, &paddingBefore, &paddingAfter, &svc.Price,
	)
	if noRows(err) {
		return booking.Service{}, fmt.Errorf("service %s: %w", serviceID, booking.ErrServiceNotFound)
	}
	if err != nil {
		return booking.Service{}, err
	}
	svc.Duration = time.Duration(durationMins) * time.Minute
	svc.PaddingBefore = time.Duration(paddingBefore) * time.Minute
	svc.PaddingAfter = time.Duration(paddingAfter) * time.Minute
	return svc, nil
}
