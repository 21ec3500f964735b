package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nirvana9010/heya-pos-remake-sub002/internal/booking"
	"github.com/nirvana9010/heya-pos-remake-sub002/shared/logx"
)

func TestWriteBookingErrorStatusMapping(t *testing.T) {
	h := &BookingsHandler{Logger: logx.New("handlers-test", "test", "", "error")}

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"schedule violation is a bad request", &booking.ScheduleError{Reason: "outside business hours"}, http.StatusBadRequest, "SCHEDULE_VIOLATION"},
		{"conflict", &booking.ConflictError{StaffName: "Alice"}, http.StatusConflict, "CONFLICT"},
		{"not found", booking.ErrBookingNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"invalid transition", booking.ErrInvalidTransition, http.StatusUnprocessableEntity, "INVALID_STATE"},
		{"missing services", booking.ErrServiceRequired, http.StatusBadRequest, "INVALID_ARGUMENT"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings", nil)
			h.writeBookingError(rec, req, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var envelope struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if envelope.Error.Code != tc.code {
				t.Fatalf("code = %q, want %q", envelope.Error.Code, tc.code)
			}
		})
	}
}
