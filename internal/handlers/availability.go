package handlers

import (
	"fmt"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/cachex"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/httpx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/tenantx"
)

// AvailabilityHandler serves slot queries. Results may be cached briefly;
// the write path always re-validates, so a stale cache can only cost the
// caller a 409, never a double booking.
type AvailabilityHandler struct {
	Engine      *booking.Engine
	Cache       *cachex.Client
	CacheTTL    time.Duration
	Granularity time.Duration
	Logger      logx.Logger
}

func (h *AvailabilityHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/availability", h.query)
}

type availabilityResponse struct {
	StaffID   uuid.UUID      `json:"staffId"`
	ServiceID uuid.UUID      `json:"serviceId"`
	From      time.Time      `json:"from"`
	To        time.Time      `json:"to"`
	Slots     []booking.Slot `json:"slots"`
}

func (h *AvailabilityHandler) query(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantx.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing merchant", nil)
		return
	}

	q := r.URL.Query()
	staffID, err := uuid.Parse(q.Get("staffId"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "staffId is required", nil)
		return
	}
	serviceID, err := uuid.Parse(q.Get("serviceId"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "serviceId is required", nil)
		return
	}
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "from must be RFC3339", nil)
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "to must be RFC3339", nil)
		return
	}
	if !to.After(from) {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "to must be after from", nil)
		return
	}

	cacheKey := fmt.Sprintf("availability:%s:%s:%s:%d:%d",
		tenant.ID, staffID, serviceID, from.Unix(), to.Unix())
	if h.Cache != nil {
		var cached availabilityResponse
		if hit, err := h.Cache.GetJSON(r.Context(), cacheKey, &cached); err == nil && hit {
			httpx.WriteJSON(w, http.StatusOK, cached)
			return
		}
	}

	slots, err := h.Engine.Availability(r.Context(), booking.AvailabilityQuery{
		TenantID:    tenant.ID,
		StaffID:     staffID,
		ServiceID:   serviceID,
		From:        from,
		To:          to,
		Granularity: h.Granularity,
	})
	if err != nil {
		h.writeAvailabilityError(w, r, err)
		return
	}

	resp := availabilityResponse{
		StaffID:   staffID,
		ServiceID: serviceID,
		From:      from,
		To:        to,
		Slots:     slots,
	}
	if h.Cache != nil && h.CacheTTL > 0 {
		if err := h.Cache.SetJSON(r.Context(), cacheKey, resp, h.CacheTTL); err != nil {
			h.Logger.Warn(r.Context(), "availability_cache_write_failed", "cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AvailabilityHandler) writeAvailabilityError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isNotFound(err):
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		h.Logger.Error(r.Context(), "availability_error", "availability query failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}
