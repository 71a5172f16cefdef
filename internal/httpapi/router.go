package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(bookings *BookingHandler, rooms *RoomHandler, registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "booking-service",
		})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api/bookings", func(r chi.Router) {
		r.Post("/", bookings.CreateBooking)
		r.Get("/{bookingId}", bookings.GetBooking)
		r.Get("/{bookingId}/status", bookings.GetBookingStatus)
		r.Delete("/{bookingId}", bookings.CancelBooking)
		r.Post("/{bookingId}/complete", bookings.CompleteBooking)
	})

	r.Get("/api/users/{userId}/bookings", bookings.ListBookingsByUser)

	r.Route("/api/rooms", func(r chi.Router) {
		r.Post("/", rooms.CreateRoom)
		r.Get("/{roomId}", rooms.GetRoom)
		r.Patch("/{roomId}/active", rooms.SetRoomActive)
		r.Get("/{roomId}/availability", rooms.GetAvailability)
	})

	return r
}
