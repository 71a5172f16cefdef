package booking

import "time"

type Booking struct {
	ID              string    `json:"bookingId"`
	HoldID          string    `json:"-"`
	UserID          string    `json:"userId"`
	RoomID          string    `json:"roomId"`
	HotelID         string    `json:"hotelId"`
	CheckIn         time.Time `json:"checkIn"`
	CheckOut        time.Time `json:"checkOut"`
	Guests          int       `json:"guests"`
	TotalPriceCents int64     `json:"totalPriceCents"`
	Currency        string    `json:"currency"`
	Status          Status    `json:"status"`
	FailureReason   string    `json:"failureReason,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Nights returns the number of nights in the stay.
func (b *Booking) Nights() int {
	return int(b.CheckOut.Sub(b.CheckIn).Hours() / 24)
}
