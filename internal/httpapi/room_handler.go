package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/DiiKhanh/booking-app-sub001/internal/inventory"
	"github.com/DiiKhanh/booking-app-sub001/internal/room"
)

// AvailabilityReader answers per-night availability from the ledger.
type AvailabilityReader interface {
	Availability(ctx context.Context, roomID string, from, to time.Time) ([]inventory.DayAvailability, error)
}

type RoomHandler struct {
	rooms  room.Repository
	ledger AvailabilityReader
	logger *log.Logger
}

func NewRoomHandler(rooms room.Repository, ledger AvailabilityReader, logger *log.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, ledger: ledger, logger: logger}
}

type createRoomRequest struct {
	HotelID           string `json:"hotelId"`
	Name              string `json:"name"`
	Units             int    `json:"units"`
	MaxGuests         int    `json:"maxGuests"`
	NightlyPriceCents int64  `json:"nightlyPriceCents"`
	Currency          string `json:"currency"`
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.HotelID == "" || req.Name == "" || req.Units < 1 || req.MaxGuests < 1 || req.NightlyPriceCents < 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing or invalid room fields")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rm := &room.Room{
		HotelID:           req.HotelID,
		Name:              req.Name,
		Units:             req.Units,
		MaxGuests:         req.MaxGuests,
		NightlyPriceCents: req.NightlyPriceCents,
		Currency:          req.Currency,
		Active:            true,
	}
	if err := h.rooms.Create(ctx, rm); err != nil {
		h.logger.Printf("create room: %v", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rm)
}

func (h *RoomHandler) GetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rm, err := h.rooms.Get(ctx, roomID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rm)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

// SetRoomActive opens or closes a room for new bookings. Existing holds and
// bookings are untouched.
func (h *RoomHandler) SetRoomActive(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "body must set active")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.rooms.SetActive(ctx, roomID, *req.Active); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId": roomID,
		"active": *req.Active,
	})
}

// GetAvailability reports remaining units per night for a date range given as
// ?from=YYYY-MM-DD&to=YYYY-MM-DD.
func (h *RoomHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")

	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_dates", "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_dates", "to must be YYYY-MM-DD")
		return
	}
	if !to.After(from) {
		writeError(w, http.StatusBadRequest, "invalid_dates", "to must be after from")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	days, err := h.ledger.Availability(ctx, roomID, from, to)
	if err != nil {
		h.logger.Printf("availability for room %s: %v", roomID, err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"roomId": roomID,
		"days":   days,
	})
}
