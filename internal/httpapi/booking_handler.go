package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
)

// BookingService is the admission surface the handler exposes over HTTP.
type BookingService interface {
	Book(ctx context.Context, req booking.Request) (*booking.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*booking.Booking, error)
	Complete(ctx context.Context, bookingID string) (*booking.Booking, error)
	Get(ctx context.Context, bookingID string) (*booking.Booking, error)
	Status(ctx context.Context, bookingID string) (booking.Status, error)
	ListByUser(ctx context.Context, userID string) ([]booking.Booking, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *log.Logger
}

func NewBookingHandler(svc BookingService, logger *log.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.svc.Book(ctx, req)
	if err != nil {
		h.logger.Printf("create booking: %v", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.svc.Get(ctx, bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) GetBookingStatus(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, err := h.svc.Status(ctx, bookingID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"bookingId": bookingID,
		"status":    string(status),
	})
}

func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.svc.Cancel(ctx, bookingID)
	if err != nil {
		h.logger.Printf("cancel booking %s: %v", bookingID, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	b, err := h.svc.Complete(ctx, bookingID)
	if err != nil {
		h.logger.Printf("complete booking %s: %v", bookingID, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *BookingHandler) ListBookingsByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	bookings, err := h.svc.ListByUser(ctx, userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}

	writeJSON(w, http.StatusOK, bookings)
}
