package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
	"github.com/DiiKhanh/booking-app-sub001/internal/inventory"
	"github.com/DiiKhanh/booking-app-sub001/internal/room"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// writeDomainError maps domain errors to stable status codes. Contention on
// the inventory ledger is a 409, never a 5xx.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Reason, verr.Message)
	case errors.Is(err, inventory.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", "room is not available for the requested dates")
	case errors.Is(err, inventory.ErrHoldExpired):
		writeError(w, http.StatusConflict, "hold_expired", "reservation hold expired before confirmation")
	case errors.Is(err, inventory.ErrRoomNotFound), errors.Is(err, room.ErrNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", "room not found")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", "booking not found")
	case errors.Is(err, booking.ErrNotCancellable):
		writeError(w, http.StatusConflict, "not_cancellable", "booking can no longer be cancelled")
	case errors.Is(err, booking.ErrNotCompletable):
		writeError(w, http.StatusConflict, "not_completable", "booking is not confirmed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
