package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/internal/repos"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/authx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/httpx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/metricsx"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/tenantx"
)

type BookingsHandler struct {
	Coordinator *booking.Coordinator
	Store       *repos.Store
	Logger      logx.Logger
}

func (h *BookingsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/bookings", h.create)
	mux.HandleFunc("GET /api/v1/bookings", h.list)
	mux.HandleFunc("GET /api/v1/bookings/{id}", h.get)
	mux.HandleFunc("POST /api/v1/bookings/{id}/confirm", h.transition(transitionConfirm))
	mux.HandleFunc("POST /api/v1/bookings/{id}/start", h.transition(transitionStart))
	mux.HandleFunc("POST /api/v1/bookings/{id}/complete", h.transition(transitionComplete))
	mux.HandleFunc("POST /api/v1/bookings/{id}/cancel", h.cancel)
	mux.HandleFunc("POST /api/v1/bookings/{id}/no-show", h.transition(transitionNoShow))
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/reschedule", h.reschedule)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/customer", h.changeCustomer)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/services", h.updateServices)
	mux.HandleFunc("POST /api/v1/bookings/{id}/payments", h.recordPayment)
	mux.HandleFunc("POST /api/v1/bookings/{id}/refunds", h.recordRefund)
}

type lineItemRequest struct {
	ServiceID uuid.UUID `json:"serviceId"`
	StaffID   uuid.UUID `json:"staffId"`
}

type createBookingRequest struct {
	CustomerID     uuid.UUID         `json:"customerId"`
	StartTime      time.Time         `json:"startTime"`
	Services       []lineItemRequest `json:"services"`
	Notes          string            `json:"notes"`
	Source         string            `json:"source"`
	Override       bool              `json:"override"`
	OverrideReason string            `json:"overrideReason"`
}

type bookingResponse struct {
	ID             uuid.UUID      `json:"id"`
	BookingNumber  string         `json:"bookingNumber"`
	CustomerID     uuid.UUID      `json:"customerId"`
	Status         booking.Status `json:"status"`
	StartTime      time.Time      `json:"startTime"`
	EndTime        time.Time      `json:"endTime"`
	TotalAmount    string         `json:"totalAmount"`
	PaidAmount     string         `json:"paidAmount"`
	PaymentStatus  string         `json:"paymentStatus"`
	Source         string         `json:"source,omitempty"`
	Notes          string         `json:"notes,omitempty"`
	IsOverride     bool           `json:"isOverride,omitempty"`
	OverrideReason string         `json:"overrideReason,omitempty"`
	Items          []itemResponse `json:"services"`
}

type itemResponse struct {
	ServiceID uuid.UUID `json:"serviceId"`
	StaffID   uuid.UUID `json:"staffId,omitempty"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Price     string    `json:"price"`
}

func toBookingResponse(b *booking.Booking) bookingResponse {
	resp := bookingResponse{
		ID:             b.ID,
		BookingNumber:  b.Number,
		CustomerID:     b.CustomerID,
		Status:         b.Status,
		StartTime:      b.Slot.Start,
		EndTime:        b.Slot.End,
		TotalAmount:    b.TotalAmount.String(),
		PaidAmount:     b.PaidAmount.String(),
		PaymentStatus:  string(b.PaymentStatus),
		Source:         b.Source,
		Notes:          b.Notes,
		IsOverride:     b.IsOverride,
		OverrideReason: b.OverrideReason,
		Items:          make([]itemResponse, 0, len(b.Items)),
	}
	for _, item := range b.Items {
		resp.Items = append(resp.Items, itemResponse{
			ServiceID: item.ServiceID,
			StaffID:   item.StaffID,
			StartTime: item.Slot.Start,
			EndTime:   item.Slot.End,
			Price:     item.Price.String(),
		})
	}
	return resp
}

func (h *BookingsHandler) create(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantx.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing merchant", nil)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid request body", nil)
		return
	}
	if req.CustomerID == uuid.Nil || req.StartTime.IsZero() || len(req.Services) == 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "customerId, startTime and services are required", nil)
		return
	}

	items := make([]booking.LineItemInput, 0, len(req.Services))
	for _, item := range req.Services {
		items = append(items, booking.LineItemInput{ServiceID: item.ServiceID, StaffID: item.StaffID})
	}

	var createdByID uuid.UUID
	if auth, ok := authx.FromContext(r.Context()); ok {
		if id, err := uuid.Parse(auth.Subject); err == nil {
			createdByID = id
		}
	}

	start := time.Now()
	b, err := h.Coordinator.CreateBooking(r.Context(), booking.CreateBookingInput{
		TenantID:       tenant.ID,
		CustomerID:     req.CustomerID,
		StartTime:      req.StartTime,
		Items:          items,
		Notes:          req.Notes,
		Source:         req.Source,
		CreatedByID:    createdByID,
		Override:       req.Override,
		OverrideReason: req.OverrideReason,
	})
	metricsx.ObserveBookingTxLatency(time.Since(start))
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}

	metricsx.IncBookingCreated(string(b.Status), b.Source)
	h.Logger.Info(r.Context(), "booking_created", "booking created",
		slog.String("booking_id", b.ID.String()),
		slog.String("booking_number", b.Number),
		slog.String("status", string(b.Status)),
	)
	httpx.WriteJSON(w, http.StatusCreated, toBookingResponse(b))
}

type bookingSummaryResponse struct {
	ID            uuid.UUID      `json:"id"`
	BookingNumber string         `json:"bookingNumber"`
	CustomerID    uuid.UUID      `json:"customerId"`
	Status        booking.Status `json:"status"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	TotalAmount   string         `json:"totalAmount"`
	PaymentStatus string         `json:"paymentStatus"`
}

func (h *BookingsHandler) list(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantx.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing merchant", nil)
		return
	}

	q := repos.BookingListQuery{Limit: 200}
	params := r.URL.Query()
	if raw := params.Get("staffId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid staffId", nil)
			return
		}
		q.StaffID = id
	}
	if raw := params.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "from must be RFC3339", nil)
			return
		}
		q.From = t
	}
	if raw := params.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "to must be RFC3339", nil)
			return
		}
		q.To = t
	}
	if raw := params.Get("status"); raw != "" {
		status := booking.Status(raw)
		if !status.Valid() {
			httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid status", nil)
			return
		}
		q.Status = status
	}

	summaries, err := h.Store.ListBookings(r.Context(), tenant.ID, q)
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}

	resp := make([]bookingSummaryResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, bookingSummaryResponse{
			ID:            s.ID,
			BookingNumber: s.BookingNumber,
			CustomerID:    s.CustomerID,
			Status:        s.Status,
			StartTime:     s.StartTime,
			EndTime:       s.EndTime,
			TotalAmount:   s.TotalAmount.String(),
			PaymentStatus: string(s.PaymentStatus),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": resp})
}

func (h *BookingsHandler) get(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := h.tenantAndID(w, r)
	if !ok {
		return
	}
	b, err := h.Coordinator.GetBooking(r.Context(), tenant.ID, id)
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

type transitionKind int

const (
	transitionConfirm transitionKind = iota
	transitionStart
	transitionComplete
	transitionNoShow
)

func (h *BookingsHandler) transition(kind transitionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, id, ok := h.tenantAndID(w, r)
		if !ok {
			return
		}
		var (
			b   *booking.Booking
			err error
		)
		switch kind {
		case transitionConfirm:
			b, err = h.Coordinator.Confirm(r.Context(), tenant.ID, id)
		case transitionStart:
			b, err = h.Coordinator.Start(r.Context(), tenant.ID, id)
		case transitionComplete:
			b, err = h.Coordinator.Complete(r.Context(), tenant.ID, id)
		case transitionNoShow:
			b, err = h.Coordinator.MarkNoShow(r.Context(), tenant.ID, id)
		}
		if err != nil {
			h.writeBookingError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
	}
}

func (h *BookingsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := h.tenantAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	b, err := h.Coordinator.Cancel(r.Context(), tenant.ID, id, req.Reason)
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) reschedule(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := h.tenantAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		StartTime      time.Time `json:"startTime"`
		StaffID        uuid.UUID `json:"staffId"`
		Override       bool      `json:"override"`
		OverrideReason string    `json:"overrideReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartTime.IsZero() {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "startTime is required", nil)
		return
	}
	b, err := h.Coordinator.Reschedule(r.Context(), booking.RescheduleInput{
		TenantID:       tenant.ID,
		BookingID:      id,
		NewStartTime:   req.StartTime,
		NewStaffID:     req.StaffID,
		Override:       req.Override,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) changeCustomer(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := h.tenantAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		CustomerID uuid.UUID `json:"customerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CustomerID == uuid.Nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "customerId is required", nil)
		return
	}
	b, err := h.Coordinator.ChangeCustomer(r.Context(), tenant.ID, id, req.CustomerID)
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) updateServices(w http.ResponseWriter, r *http.Request) {
	tenant, id, ok := h.tenantAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		Services       []lineItemRequest `json:"services"`
		Override       bool              `json:"override"`
		OverrideReason string            `json:"overrideReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Services) == 0 {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "services are required", nil)
		return
	}
	items := make([]booking.LineItemInput, 0, len(req.Services))
	for _, item := range req.Services {
		items = append(items, booking.LineItemInput{ServiceID: item.ServiceID, StaffID: item.StaffID})
	}
	b, err := h.Coordinator.UpdateServices(r.Context(), booking.UpdateServicesInput{
		TenantID:       tenant.ID,
		BookingID:      id,
		Items:          items,
		Override:       req.Override,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) recordPayment(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.Coordinator.RecordPayment)
}

func (h *BookingsHandler) recordRefund(w http.ResponseWriter, r *http.Request) {
	h.payment(w, r, h.Coordinator.RecordRefund)
}

func (h *BookingsHandler) payment(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, tenantID uuid.UUID, id uuid.UUID, amount decimal.Decimal) (*booking.Booking, error)) {
	tenant, id, ok := h.tenantAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "amount is required", nil)
		return
	}
	b, err := apply(r.Context(), tenant.ID, id, req.Amount)
	if err != nil {
		h.writeBookingError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingResponse(b))
}

func (h *BookingsHandler) tenantAndID(w http.ResponseWriter, r *http.Request) (tenantx.TenantContext, uuid.UUID, bool) {
	tenant, ok := tenantx.FromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "missing merchant", nil)
		return tenantx.TenantContext{}, uuid.Nil, false
	}
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid booking id", nil)
		return tenantx.TenantContext{}, uuid.Nil, false
	}
	return tenant, id, true
}

func (h *BookingsHandler) writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	var conflictErr *booking.ConflictError
	var scheduleErr *booking.ScheduleError

	switch {
	case errors.As(err, &conflictErr):
		metricsx.IncBookingConflict()
		httpx.WriteError(w, r, http.StatusConflict, "CONFLICT", conflictErr.Error(), map[string]any{
			"conflicts":        conflictErr.Conflicts,
			"requiresOverride": true,
		})
	case errors.As(err, &scheduleErr):
		httpx.WriteError(w, r, http.StatusBadRequest, "SCHEDULE_VIOLATION", scheduleErr.Reason, nil)
	case errors.Is(err, booking.ErrBookingNotFound),
		errors.Is(err, booking.ErrMerchantNotFound),
		errors.Is(err, booking.ErrStaffNotFound),
		errors.Is(err, booking.ErrServiceNotFound),
		errors.Is(err, booking.ErrCustomerNotFound):
		httpx.WriteError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, booking.ErrCustomerHasPayments),
		errors.Is(err, booking.ErrInvalidPaymentAmount):
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "INVALID_STATE", err.Error(), nil)
	case errors.Is(err, booking.ErrServiceRequired),
		errors.Is(err, booking.ErrOverrideReasonRequired),
		errors.Is(err, booking.ErrInvalidTimeSlot):
		httpx.WriteError(w, r, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error(), nil)
	default:
		h.Logger.Error(r.Context(), "booking_error", "booking operation failed",
			slog.String("error_code", "INTERNAL_ERROR"),
			slog.String("error", err.Error()),
		)
		httpx.WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}
