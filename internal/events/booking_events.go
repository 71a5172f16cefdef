package events

import "time"

const (
	EventTypeBookingConfirmed = "BookingConfirmed"
	EventTypeBookingFailed    = "BookingFailed"
	EventTypeBookingCancelled = "BookingCancelled"
)

// BookingConfirmedPayload is emitted once payment settled and the nights are
// permanently consumed.
type BookingConfirmedPayload struct {
	BookingID       string    `json:"bookingId"`
	UserID          string    `json:"userId"`
	RoomID          string    `json:"roomId"`
	HotelID         string    `json:"hotelId"`
	CheckIn         string    `json:"checkIn"`
	CheckOut        string    `json:"checkOut"`
	TotalPriceCents int64     `json:"totalPriceCents"`
	Currency        string    `json:"currency"`
	Timestamp       time.Time `json:"timestamp"`
}

// BookingFailedPayload is emitted when a booking terminates without
// confirmation; the nights have already been returned to the ledger.
type BookingFailedPayload struct {
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingCancelledPayload is emitted after a user cancellation commits.
type BookingCancelledPayload struct {
	BookingID string    `json:"bookingId"`
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}
