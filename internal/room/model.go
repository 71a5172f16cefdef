package room

import "time"

// Room is the bookable unit of inventory. Units is the number of identical
// units sellable per night; MaxGuests bounds the guest count per booking.
type Room struct {
	ID                string    `json:"roomId"`
	HotelID           string    `json:"hotelId"`
	Name              string    `json:"name"`
	Units             int       `json:"units"`
	MaxGuests         int       `json:"maxGuests"`
	NightlyPriceCents int64     `json:"nightlyPriceCents"`
	Currency          string    `json:"currency"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
}
