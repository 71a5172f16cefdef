package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/DiiKhanh/booking-app-sub001/internal/clock"
	"github.com/DiiKhanh/booking-app-sub001/internal/room"
)

const dateLayout = "2006-01-02"

// Request is the booking request as received on the wire.
type Request struct {
	UserID    string `json:"userId" validate:"required"`
	RoomID    string `json:"roomId" validate:"required"`
	StartDate string `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"endDate" validate:"required,datetime=2006-01-02"`
	Guests    int    `json:"guests" validate:"required,min=1"`
}

// Stay is a validated request bound to its room.
type Stay struct {
	Room            room.Room
	UserID          string
	Guests          int
	CheckIn         time.Time
	CheckOut        time.Time
	Nights          int
	TotalPriceCents int64
}

// ValidationError carries a machine-readable reason; HTTP maps it to 400.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Reason, e.Message)
}

func validationErr(reason, message string) error {
	return &ValidationError{Reason: reason, Message: message}
}

// RoomSource is the read-only room lookup the validator needs.
type RoomSource interface {
	Get(ctx context.Context, roomID string) (room.Room, error)
}

// Validator checks request shape and business rules before any locking is
// attempted. It never touches the inventory ledger.
type Validator struct {
	rooms     RoomSource
	validate  *validator.Validate
	clock     clock.Clock
	maxWindow time.Duration
	maxNights int
}

func NewValidator(rooms RoomSource, clk clock.Clock, maxWindowDays, maxNights int) *Validator {
	return &Validator{
		rooms:     rooms,
		validate:  validator.New(),
		clock:     clk,
		maxWindow: time.Duration(maxWindowDays) * 24 * time.Hour,
		maxNights: maxNights,
	}
}

func (v *Validator) Validate(ctx context.Context, req Request) (Stay, error) {
	if err := v.validate.Struct(req); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			f := invalid[0]
			return Stay{}, validationErr("invalid_request", fmt.Sprintf("field %s failed %s", f.Field(), f.Tag()))
		}
		return Stay{}, validationErr("invalid_request", err.Error())
	}

	checkIn, err := time.ParseInLocation(dateLayout, req.StartDate, time.UTC)
	if err != nil {
		return Stay{}, validationErr("invalid_dates", "startDate is not a valid date")
	}
	checkOut, err := time.ParseInLocation(dateLayout, req.EndDate, time.UTC)
	if err != nil {
		return Stay{}, validationErr("invalid_dates", "endDate is not a valid date")
	}
	if !checkIn.Before(checkOut) {
		return Stay{}, validationErr("invalid_dates", "startDate must be before endDate")
	}

	today := v.clock.Now().Truncate(24 * time.Hour)
	if checkIn.Before(today) {
		return Stay{}, validationErr("past_check_in", "startDate is in the past")
	}
	if checkOut.After(today.Add(v.maxWindow)) {
		return Stay{}, validationErr("window_exceeded", "stay ends beyond the booking window")
	}

	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if v.maxNights > 0 && nights > v.maxNights {
		return Stay{}, validationErr("stay_too_long", fmt.Sprintf("stay exceeds %d nights", v.maxNights))
	}

	rm, err := v.rooms.Get(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return Stay{}, validationErr("room_not_found", "room does not exist")
		}
		return Stay{}, fmt.Errorf("look up room: %w", err)
	}
	if !rm.Active {
		return Stay{}, validationErr("room_inactive", "room is not bookable")
	}
	if req.Guests > rm.MaxGuests {
		return Stay{}, validationErr("too_many_guests", fmt.Sprintf("room sleeps at most %d guests", rm.MaxGuests))
	}

	return Stay{
		Room:            rm,
		UserID:          req.UserID,
		Guests:          req.Guests,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Nights:          nights,
		TotalPriceCents: int64(nights) * rm.NightlyPriceCents,
	}, nil
}
