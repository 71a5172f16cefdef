package inventory

import "time"

type HoldStatus string

const (
	// HoldStatusActive counts against availability until expiry or release.
	HoldStatusActive HoldStatus = "active"
	// HoldStatusConverted backs a pending booking; still releasable.
	HoldStatusConverted HoldStatus = "converted"
	// HoldStatusConsumed backs a confirmed booking; no longer releasable.
	HoldStatusConsumed HoldStatus = "consumed"
	HoldStatusReleased HoldStatus = "released"
	HoldStatusExpired  HoldStatus = "expired"
)

// Hold is an exclusive claim on one unit of a room for each night in
// [CheckIn, CheckOut). Acquiring it decrements room_inventory for every
// night in range; releasing or expiring it puts the units back.
type Hold struct {
	ID        string
	RoomID    string
	UserID    string
	CheckIn   time.Time
	CheckOut  time.Time
	Status    HoldStatus
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Nights returns each stay night in ascending order. Repositories rely on
// the ordering to take row locks in a deterministic sequence.
func (h Hold) Nights() []time.Time {
	var days []time.Time
	for d := h.CheckIn; d.Before(h.CheckOut); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DayAvailability is one ledger row as seen by the availability query.
type DayAvailability struct {
	Day       time.Time `json:"day"`
	Available int       `json:"available"`
}
