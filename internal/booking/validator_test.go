package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiiKhanh/booking-app-sub001/internal/clock"
	"github.com/DiiKhanh/booking-app-sub001/internal/room"
)

type fakeRoomSource struct {
	rooms map[string]room.Room
	err   error
}

func (f *fakeRoomSource) Get(ctx context.Context, roomID string) (room.Room, error) {
	if f.err != nil {
		return room.Room{}, f.err
	}
	rm, ok := f.rooms[roomID]
	if !ok {
		return room.Room{}, room.ErrNotFound
	}
	return rm, nil
}

func testValidator(t *testing.T) (*Validator, *fakeRoomSource) {
	t.Helper()
	rooms := &fakeRoomSource{rooms: map[string]room.Room{
		"room-1": {
			ID:                "room-1",
			HotelID:           "hotel-1",
			Name:              "Sea View Double",
			Units:             2,
			MaxGuests:         2,
			NightlyPriceCents: 15000,
			Currency:          "USD",
			Active:            true,
		},
		"room-closed": {
			ID:        "room-closed",
			HotelID:   "hotel-1",
			MaxGuests: 2,
			Active:    false,
		},
	}}
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewValidator(rooms, clk, 365, 30), rooms
}

func validRequest() Request {
	return Request{
		UserID:    "user-1",
		RoomID:    "room-1",
		StartDate: "2026-03-10",
		EndDate:   "2026-03-13",
		Guests:    2,
	}
}

func TestValidateOK(t *testing.T) {
	v, _ := testValidator(t)

	stay, err := v.Validate(context.Background(), validRequest())
	require.NoError(t, err)

	assert.Equal(t, "room-1", stay.Room.ID)
	assert.Equal(t, 3, stay.Nights)
	assert.Equal(t, int64(45000), stay.TotalPriceCents)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), stay.CheckIn)
	assert.Equal(t, time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), stay.CheckOut)
}

func TestValidateRejections(t *testing.T) {
	v, _ := testValidator(t)

	cases := []struct {
		name   string
		mutate func(*Request)
		reason string
	}{
		{"missing user", func(r *Request) { r.UserID = "" }, "invalid_request"},
		{"missing room", func(r *Request) { r.RoomID = "" }, "invalid_request"},
		{"zero guests", func(r *Request) { r.Guests = 0 }, "invalid_request"},
		{"garbage date", func(r *Request) { r.StartDate = "not-a-date" }, "invalid_request"},
		{"checkout before checkin", func(r *Request) { r.StartDate = "2026-03-13"; r.EndDate = "2026-03-10" }, "invalid_dates"},
		{"same day", func(r *Request) { r.EndDate = r.StartDate }, "invalid_dates"},
		{"past check in", func(r *Request) { r.StartDate = "2026-02-01"; r.EndDate = "2026-02-03" }, "past_check_in"},
		{"beyond window", func(r *Request) { r.StartDate = "2027-04-01"; r.EndDate = "2027-04-03" }, "window_exceeded"},
		{"too long", func(r *Request) { r.StartDate = "2026-03-10"; r.EndDate = "2026-05-10" }, "stay_too_long"},
		{"unknown room", func(r *Request) { r.RoomID = "room-missing" }, "room_not_found"},
		{"inactive room", func(r *Request) { r.RoomID = "room-closed" }, "room_inactive"},
		{"too many guests", func(r *Request) { r.Guests = 5 }, "too_many_guests"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)

			_, err := v.Validate(context.Background(), req)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
			assert.Equal(t, tc.reason, verr.Reason)
		})
	}
}

func TestValidateRoomLookupFailure(t *testing.T) {
	v, rooms := testValidator(t)
	rooms.err = errors.New("connection refused")

	_, err := v.Validate(context.Background(), validRequest())
	require.Error(t, err)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "infrastructure errors must not map to validation errors")
}
