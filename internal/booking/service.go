package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/DiiKhanh/booking-app-sub001/internal/clock"
	"github.com/DiiKhanh/booking-app-sub001/internal/db"
	"github.com/DiiKhanh/booking-app-sub001/internal/inventory"
	"github.com/DiiKhanh/booking-app-sub001/internal/metrics"
)

// ErrNotCancellable means the booking is past the point where a user
// cancellation is allowed.
var ErrNotCancellable = errors.New("booking not cancellable")

// ErrNotCompletable means the booking never reached confirmed, so there is
// no stay to close out.
var ErrNotCompletable = errors.New("booking not completable")

// InventoryGate is the slice of the ledger the admission flow needs.
type InventoryGate interface {
	AcquireHold(ctx context.Context, hold inventory.Hold, now time.Time) error
	ReleaseHold(ctx context.Context, holdID string) error
	ConvertHoldTx(ctx context.Context, tx pgx.Tx, holdID string, now time.Time) error
	ReleaseHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error
}

// SagaStarter kicks off the async payment flow for a freshly created booking.
type SagaStarter interface {
	Start(b *Booking)
}

// CancelNotifier publishes the cancellation event after commit.
type CancelNotifier interface {
	BookingCancelled(ctx context.Context, b *Booking) error
}

// Service drives the admission flow: validate, acquire a hold, convert it to
// a pending booking, then hand off to the saga.
type Service struct {
	validator *Validator
	inv       InventoryGate
	bookings  Repository
	saga      SagaStarter
	notifier  CancelNotifier
	clock     clock.Clock
	logger    *log.Logger
	metrics   *metrics.Metrics

	holdTTL         time.Duration
	acquireAttempts int
	acquireBackoff  time.Duration
}

type ServiceConfig struct {
	HoldTTL time.Duration
	// AcquireAttempts bounds internal retries of transient storage faults.
	// Conflicts are never retried.
	AcquireAttempts int
	AcquireBackoff  time.Duration
}

func NewService(validator *Validator, inv InventoryGate, bookings Repository, saga SagaStarter,
	notifier CancelNotifier, clk clock.Clock, m *metrics.Metrics, logger *log.Logger, cfg ServiceConfig) *Service {
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 10 * time.Minute
	}
	if cfg.AcquireAttempts <= 0 {
		cfg.AcquireAttempts = 3
	}
	if cfg.AcquireBackoff <= 0 {
		cfg.AcquireBackoff = 50 * time.Millisecond
	}
	return &Service{
		validator:       validator,
		inv:             inv,
		bookings:        bookings,
		saga:            saga,
		notifier:        notifier,
		clock:           clk,
		logger:          logger,
		metrics:         m,
		holdTTL:         cfg.HoldTTL,
		acquireAttempts: cfg.AcquireAttempts,
		acquireBackoff:  cfg.AcquireBackoff,
	}
}

// Book admits a reservation request. Exactly one of N concurrent identical
// requests gets a booking back; the rest get inventory.ErrConflict.
func (s *Service) Book(ctx context.Context, req Request) (*Booking, error) {
	s.metrics.BookingAttempts.Inc()

	stay, err := s.validator.Validate(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	hold := inventory.Hold{
		ID:        uuid.NewString(),
		RoomID:    stay.Room.ID,
		UserID:    stay.UserID,
		CheckIn:   stay.CheckIn,
		CheckOut:  stay.CheckOut,
		ExpiresAt: now.Add(s.holdTTL),
		CreatedAt: now,
	}

	if err := s.acquireWithRetry(ctx, hold); err != nil {
		if errors.Is(err, inventory.ErrConflict) {
			s.metrics.BookingConflicts.Inc()
			return nil, err
		}
		return nil, err
	}

	b := &Booking{
		ID:              uuid.NewString(),
		HoldID:          hold.ID,
		UserID:          stay.UserID,
		RoomID:          stay.Room.ID,
		HotelID:         stay.Room.HotelID,
		CheckIn:         stay.CheckIn,
		CheckOut:        stay.CheckOut,
		Guests:          stay.Guests,
		TotalPriceCents: stay.TotalPriceCents,
		Currency:        stay.Room.Currency,
		Status:          StatusPending,
		CreatedAt:       now,
	}

	err = s.bookings.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.inv.ConvertHoldTx(ctx, tx, hold.ID, s.clock.Now()); err != nil {
			return err
		}
		return s.bookings.CreateTx(ctx, tx, b)
	})
	if err != nil {
		// Put the nights back; the sweep would reclaim them anyway on TTL.
		if relErr := s.inv.ReleaseHold(ctx, hold.ID); relErr != nil {
			s.logger.Printf("release hold %s after failed convert: %v", hold.ID, relErr)
		}
		return nil, err
	}

	s.logger.Printf("booking %s pending for user %s room %s %s..%s",
		b.ID, b.UserID, b.RoomID, b.CheckIn.Format(dateLayout), b.CheckOut.Format(dateLayout))

	s.saga.Start(b)
	return b, nil
}

func (s *Service) acquireWithRetry(ctx context.Context, hold inventory.Hold) error {
	timer := time.Now()
	defer func() {
		s.metrics.AcquireDuration.Observe(time.Since(timer).Seconds())
	}()

	var err error
	for attempt := 0; attempt < s.acquireAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.acquireBackoff << (attempt - 1)):
			}
		}
		err = s.inv.AcquireHold(ctx, hold, s.clock.Now())
		if err == nil || !db.IsTransient(err) {
			return err
		}
		s.logger.Printf("transient acquire error for room %s (attempt %d): %v", hold.RoomID, attempt+1, err)
	}
	return fmt.Errorf("acquire hold after %d attempts: %w", s.acquireAttempts, err)
}

// Cancel releases the underlying hold synchronously before acknowledging, so
// the nights are sellable again the moment the call returns.
func (s *Service) Cancel(ctx context.Context, bookingID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	err = s.bookings.WithTx(ctx, func(tx pgx.Tx) error {
		if err := s.bookings.UpdateStatusTx(ctx, tx, bookingID, StatusCancelled, "cancelled_by_user",
			StatusPending, StatusAwaitingPayment); err != nil {
			return err
		}
		return s.inv.ReleaseHoldTx(ctx, tx, b.HoldID)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: status %s", ErrNotCancellable, b.Status)
		}
		return nil, err
	}

	b.Status = StatusCancelled
	b.FailureReason = "cancelled_by_user"
	s.metrics.BookingsCancelled.Inc()
	s.logger.Printf("booking %s cancelled, hold %s released", b.ID, b.HoldID)

	if s.notifier != nil {
		if err := s.notifier.BookingCancelled(ctx, b); err != nil {
			s.logger.Printf("publish cancellation for booking %s: %v", b.ID, err)
		}
	}
	return b, nil
}

// Complete closes out a confirmed booking after the stay. The hold was
// consumed at confirmation, so no inventory moves here.
func (s *Service) Complete(ctx context.Context, bookingID string) (*Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if err := s.bookings.UpdateStatus(ctx, bookingID, StatusCompleted, "", StatusConfirmed); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: status %s", ErrNotCompletable, b.Status)
		}
		return nil, err
	}

	b.Status = StatusCompleted
	s.logger.Printf("booking %s completed", b.ID)
	return b, nil
}

func (s *Service) Get(ctx context.Context, bookingID string) (*Booking, error) {
	return s.bookings.GetByID(ctx, bookingID)
}

func (s *Service) Status(ctx context.Context, bookingID string) (Status, error) {
	return s.bookings.GetStatus(ctx, bookingID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}
