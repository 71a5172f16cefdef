package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
	"github.com/DiiKhanh/booking-app-sub001/internal/inventory"
	"github.com/DiiKhanh/booking-app-sub001/internal/room"
)

type fakeBookingService struct {
	bookFunc       func(ctx context.Context, req booking.Request) (*booking.Booking, error)
	cancelFunc     func(ctx context.Context, bookingID string) (*booking.Booking, error)
	completeFunc   func(ctx context.Context, bookingID string) (*booking.Booking, error)
	getFunc        func(ctx context.Context, bookingID string) (*booking.Booking, error)
	statusFunc     func(ctx context.Context, bookingID string) (booking.Status, error)
	listByUserFunc func(ctx context.Context, userID string) ([]booking.Booking, error)
}

func (f *fakeBookingService) Book(ctx context.Context, req booking.Request) (*booking.Booking, error) {
	return f.bookFunc(ctx, req)
}

func (f *fakeBookingService) Cancel(ctx context.Context, bookingID string) (*booking.Booking, error) {
	return f.cancelFunc(ctx, bookingID)
}

func (f *fakeBookingService) Complete(ctx context.Context, bookingID string) (*booking.Booking, error) {
	return f.completeFunc(ctx, bookingID)
}

func (f *fakeBookingService) Get(ctx context.Context, bookingID string) (*booking.Booking, error) {
	return f.getFunc(ctx, bookingID)
}

func (f *fakeBookingService) Status(ctx context.Context, bookingID string) (booking.Status, error) {
	return f.statusFunc(ctx, bookingID)
}

func (f *fakeBookingService) ListByUser(ctx context.Context, userID string) ([]booking.Booking, error) {
	return f.listByUserFunc(ctx, userID)
}

type fakeRooms struct {
	getFunc    func(ctx context.Context, roomID string) (room.Room, error)
	createFunc func(ctx context.Context, r *room.Room) error
	setActive  map[string]bool
}

func (f *fakeRooms) Get(ctx context.Context, roomID string) (room.Room, error) {
	return f.getFunc(ctx, roomID)
}

func (f *fakeRooms) Create(ctx context.Context, r *room.Room) error {
	return f.createFunc(ctx, r)
}

func (f *fakeRooms) SetActive(ctx context.Context, roomID string, active bool) error {
	if f.getFunc != nil {
		if _, err := f.getFunc(ctx, roomID); err != nil {
			return err
		}
	}
	if f.setActive != nil {
		f.setActive[roomID] = active
	}
	return nil
}

type fakeAvailability struct {
	days []inventory.DayAvailability
	err  error
}

func (f *fakeAvailability) Availability(ctx context.Context, roomID string, from, to time.Time) ([]inventory.DayAvailability, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.days, nil
}

func newTestRouter(svc BookingService, rooms room.Repository, avail AvailabilityReader) http.Handler {
	logger := log.New(io.Discard, "", 0)
	return NewRouter(
		NewBookingHandler(svc, logger),
		NewRoomHandler(rooms, avail, logger),
		prometheus.NewRegistry(),
	)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateBookingCreated(t *testing.T) {
	svc := &fakeBookingService{
		bookFunc: func(ctx context.Context, req booking.Request) (*booking.Booking, error) {
			assert.Equal(t, "user-1", req.UserID)
			return &booking.Booking{ID: "b-1", UserID: req.UserID, Status: booking.StatusPending}, nil
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodPost, "/api/bookings",
		`{"userId":"user-1","roomId":"room-1","startDate":"2026-03-10","endDate":"2026-03-12","guests":2}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got booking.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "b-1", got.ID)
	assert.Equal(t, booking.StatusPending, got.Status)
}

func TestCreateBookingConflict(t *testing.T) {
	svc := &fakeBookingService{
		bookFunc: func(ctx context.Context, req booking.Request) (*booking.Booking, error) {
			return nil, inventory.ErrConflict
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodPost, "/api/bookings",
		`{"userId":"user-1","roomId":"room-1","startDate":"2026-03-10","endDate":"2026-03-12","guests":2}`)

	require.Equal(t, http.StatusConflict, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "conflict", got["code"])
}

func TestCreateBookingValidationError(t *testing.T) {
	svc := &fakeBookingService{
		bookFunc: func(ctx context.Context, req booking.Request) (*booking.Booking, error) {
			return nil, &booking.ValidationError{Reason: "past_check_in", Message: "startDate is in the past"}
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodPost, "/api/bookings",
		`{"userId":"user-1","roomId":"room-1","startDate":"2020-01-01","endDate":"2020-01-02","guests":2}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "past_check_in", got["code"])
}

func TestCreateBookingMalformedJSON(t *testing.T) {
	router := newTestRouter(&fakeBookingService{}, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodPost, "/api/bookings", `{broken`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBookingStatus(t *testing.T) {
	svc := &fakeBookingService{
		statusFunc: func(ctx context.Context, bookingID string) (booking.Status, error) {
			return booking.StatusConfirmed, nil
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodGet, "/api/bookings/b-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "confirmed", got["status"])
	assert.Equal(t, "b-1", got["bookingId"])
}

func TestGetBookingNotFound(t *testing.T) {
	svc := &fakeBookingService{
		getFunc: func(ctx context.Context, bookingID string) (*booking.Booking, error) {
			return nil, booking.ErrNotFound
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodGet, "/api/bookings/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelBookingNotCancellable(t *testing.T) {
	svc := &fakeBookingService{
		cancelFunc: func(ctx context.Context, bookingID string) (*booking.Booking, error) {
			return nil, booking.ErrNotCancellable
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodDelete, "/api/bookings/b-1", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "not_cancellable", got["code"])
}

func TestCompleteBooking(t *testing.T) {
	svc := &fakeBookingService{
		completeFunc: func(ctx context.Context, bookingID string) (*booking.Booking, error) {
			return &booking.Booking{ID: bookingID, Status: booking.StatusCompleted}, nil
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodPost, "/api/bookings/b-1/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got booking.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, booking.StatusCompleted, got.Status)
}

func TestCompleteBookingNotConfirmed(t *testing.T) {
	svc := &fakeBookingService{
		completeFunc: func(ctx context.Context, bookingID string) (*booking.Booking, error) {
			return nil, booking.ErrNotCompletable
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodPost, "/api/bookings/b-1/complete", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "not_completable", got["code"])
}

func TestListBookingsByUserEmpty(t *testing.T) {
	svc := &fakeBookingService{
		listByUserFunc: func(ctx context.Context, userID string) ([]booking.Booking, error) {
			return nil, nil
		},
	}
	router := newTestRouter(svc, &fakeRooms{}, &fakeAvailability{})

	rec := doJSON(t, router, http.MethodGet, "/api/users/user-1/bookings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
