package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/repos"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/authx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/httpx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/tenantx"
)

// TenantMiddleware resolves the merchant a request operates on, from the
// X-Merchant-ID or X-Merchant-Slug header, and cross-checks any merchant
// claims on the verified token.
type TenantMiddleware struct {
	Merchants *repos.Store
	Skip      func(*http.Request) bool
}

func (m TenantMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Skip != nil && m.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		merchantID := strings.TrimSpace(r.Header.Get("X-Merchant-ID"))
		merchantSlug := strings.TrimSpace(r.Header.Get("X-Merchant-Slug"))
		if merchantID == "" && merchantSlug == "" {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing merchant header", nil)
			return
		}

		var tenant tenantx.TenantContext
		if merchantSlug != "" {
			if m.Merchants == nil {
				httpx.WriteError(w, r, http.StatusServiceUnavailable, "FAILED_PRECONDITION", "merchant repository not configured", nil)
				return
			}
			record, err := m.Merchants.GetMerchantBySlug(r.Context(), merchantSlug)
			if err != nil {
				if errors.Is(err, booking.ErrMerchantNotFound) {
					httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "merchant not found", nil)
					return
				}
				httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to resolve merchant", nil)
				return
			}
			if merchantID != "" && merchantID != record.ID.String() {
				httpx.WriteError(w, r, http.StatusForbidden, "FORBIDDEN", "merchant mismatch", nil)
				return
			}
			merchantID = record.ID.String()
			tenant.Slug = record.Slug
		}

		id, err := uuid.Parse(merchantID)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid merchant id", nil)
			return
		}

		if auth, ok := authx.FromContext(r.Context()); ok {
			if !auth.AllowsMerchant(merchantID) {
				httpx.WriteError(w, r, http.StatusForbidden, "FORBIDDEN", "merchant not allowed for token", nil)
				return
			}
		}

		tenant.ID = id
		if tenant.Slug == "" && merchantSlug != "" {
			tenant.Slug = merchantSlug
		}

		ctx := tenantx.WithTenant(r.Context(), tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
