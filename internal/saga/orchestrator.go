package saga

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
	"github.com/DiiKhanh/booking-app-sub001/internal/clock"
	"github.com/DiiKhanh/booking-app-sub001/internal/dedup"
	"github.com/DiiKhanh/booking-app-sub001/internal/metrics"
	"github.com/DiiKhanh/booking-app-sub001/internal/payment"
)

// BookingStore is the slice of the booking repository the saga drives.
type BookingStore interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	GetByID(ctx context.Context, bookingID string) (*booking.Booking, error)
	UpdateStatus(ctx context.Context, bookingID string, to booking.Status, reason string, from ...booking.Status) error
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, bookingID string, to booking.Status, reason string, from ...booking.Status) error
	ListStale(ctx context.Context, olderThan time.Time) ([]booking.Booking, error)
}

// Ledger releases or finalizes the hold in the same transaction as the
// terminal status write, so inventory can never leak.
type Ledger interface {
	ReleaseHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error
	FinalizeHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error
}

// Publisher notifies the outside world of terminal transitions.
type Publisher interface {
	BookingConfirmed(ctx context.Context, b *booking.Booking) error
	BookingFailed(ctx context.Context, b *booking.Booking, reason string) error
}

type Config struct {
	// RetryMax bounds additional charge attempts after the first.
	RetryMax  int
	RetryBase time.Duration
	// StaleAfter is how long an in-flight booking may sit untouched before
	// recovery picks it up.
	StaleAfter time.Duration
	// SagaTimeout bounds one asynchronous run end to end.
	SagaTimeout time.Duration
}

// Orchestrator drives a booking from pending through payment to a terminal
// state. Every transition is persisted before the next step begins.
type Orchestrator struct {
	bookings BookingStore
	ledger   Ledger
	provider payment.Provider
	pub      Publisher
	dedup    *dedup.Repository
	clock    clock.Clock
	logger   *log.Logger
	metrics  *metrics.Metrics
	cfg      Config

	consumerName string
}

func NewOrchestrator(bookings BookingStore, ledger Ledger, provider payment.Provider, pub Publisher,
	dedupRepo *dedup.Repository, clk clock.Clock, m *metrics.Metrics, logger *log.Logger, cfg Config) *Orchestrator {
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}
	if cfg.SagaTimeout <= 0 {
		cfg.SagaTimeout = 2 * time.Minute
	}
	return &Orchestrator{
		bookings:     bookings,
		ledger:       ledger,
		provider:     provider,
		pub:          pub,
		dedup:        dedupRepo,
		clock:        clk,
		logger:       logger,
		metrics:      m,
		cfg:          cfg,
		consumerName: "booking-saga-payment",
	}
}

// Start launches the saga asynchronously. The admission request has already
// been answered by the time any of this runs.
func (o *Orchestrator) Start(b *booking.Booking) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.SagaTimeout)
		defer cancel()
		if err := o.Run(ctx, b); err != nil {
			o.logger.Printf("saga for booking %s: %v", b.ID, err)
		}
	}()
}

// Run advances the booking from its current state. Safe to call again on a
// resumed booking; a state that raced elsewhere stops the run quietly.
func (o *Orchestrator) Run(ctx context.Context, b *booking.Booking) error {
	switch b.Status {
	case booking.StatusPending:
		err := o.bookings.UpdateStatus(ctx, b.ID, booking.StatusAwaitingPayment, "", booking.StatusPending)
		if err != nil {
			if errors.Is(err, booking.ErrInvalidTransition) {
				o.logger.Printf("booking %s left pending elsewhere, stopping saga", b.ID)
				return nil
			}
			return fmt.Errorf("advance to awaiting_payment: %w", err)
		}
	case booking.StatusAwaitingPayment:
		// resumed by recovery; charge below
	case booking.StatusProcessing:
		// waiting on the payment event queues
		return nil
	default:
		return nil
	}

	res, err := o.chargeWithRetry(ctx, b)
	if err != nil {
		o.logger.Printf("charge for booking %s exhausted retries: %v", b.ID, err)
		return o.Fail(ctx, b, "payment_unreachable")
	}

	switch res.Outcome {
	case payment.OutcomeDeclined:
		reason := "payment_declined"
		if res.Reason != "" {
			reason = "payment_declined:" + res.Reason
		}
		return o.Fail(ctx, b, reason)
	case payment.OutcomeInitiated:
		err := o.bookings.UpdateStatus(ctx, b.ID, booking.StatusProcessing, "", booking.StatusAwaitingPayment)
		if err != nil && !errors.Is(err, booking.ErrInvalidTransition) {
			return fmt.Errorf("advance to processing: %w", err)
		}
		return nil
	case payment.OutcomeSettled:
		err := o.bookings.UpdateStatus(ctx, b.ID, booking.StatusProcessing, "", booking.StatusAwaitingPayment)
		if err != nil {
			if errors.Is(err, booking.ErrInvalidTransition) {
				return nil
			}
			return fmt.Errorf("advance to processing: %w", err)
		}
		return o.Confirm(ctx, b)
	default:
		return fmt.Errorf("unknown charge outcome %q for booking %s", res.Outcome, b.ID)
	}
}

func (o *Orchestrator) chargeWithRetry(ctx context.Context, b *booking.Booking) (payment.Result, error) {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			backoff := o.cfg.RetryBase * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return payment.Result{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
		res, err := o.provider.Charge(ctx, b.ID, b.TotalPriceCents, b.Currency)
		if err == nil {
			return res, nil
		}
		lastErr = err
		o.logger.Printf("charge attempt %d for booking %s: %v", attempt+1, b.ID, err)
	}
	return payment.Result{}, fmt.Errorf("charge after %d attempts: %w", o.cfg.RetryMax+1, lastErr)
}

// Confirm finalizes the booking: status flip and hold finalization commit
// together, then the confirmation event goes out.
func (o *Orchestrator) Confirm(ctx context.Context, b *booking.Booking) error {
	err := o.bookings.WithTx(ctx, func(tx pgx.Tx) error {
		if err := o.bookings.UpdateStatusTx(ctx, tx, b.ID, booking.StatusConfirmed, "", booking.StatusProcessing); err != nil {
			return err
		}
		return o.ledger.FinalizeHoldTx(ctx, tx, b.HoldID)
	})
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			o.logger.Printf("booking %s not confirmable anymore: %v", b.ID, err)
			return nil
		}
		return fmt.Errorf("confirm booking %s: %w", b.ID, err)
	}

	b.Status = booking.StatusConfirmed
	o.metrics.BookingsConfirmed.Inc()
	o.logger.Printf("booking %s confirmed", b.ID)

	if err := o.pub.BookingConfirmed(ctx, b); err != nil {
		o.logger.Printf("publish confirmation for booking %s: %v", b.ID, err)
	}
	return nil
}

// Fail moves the booking to failed and releases its hold in one transaction,
// restoring the nights to the ledger.
func (o *Orchestrator) Fail(ctx context.Context, b *booking.Booking, reason string) error {
	err := o.bookings.WithTx(ctx, func(tx pgx.Tx) error {
		if err := o.bookings.UpdateStatusTx(ctx, tx, b.ID, booking.StatusFailed, reason,
			booking.StatusPending, booking.StatusAwaitingPayment, booking.StatusProcessing); err != nil {
			return err
		}
		return o.ledger.ReleaseHoldTx(ctx, tx, b.HoldID)
	})
	if err != nil {
		if errors.Is(err, booking.ErrInvalidTransition) {
			o.logger.Printf("booking %s already terminal, skipping fail(%s)", b.ID, reason)
			return nil
		}
		return fmt.Errorf("fail booking %s: %w", b.ID, err)
	}

	b.Status = booking.StatusFailed
	b.FailureReason = reason
	o.metrics.BookingsFailed.Inc()
	o.logger.Printf("booking %s failed (%s), inventory released", b.ID, reason)

	if err := o.pub.BookingFailed(ctx, b, reason); err != nil {
		o.logger.Printf("publish failure for booking %s: %v", b.ID, err)
	}
	return nil
}

// errEventSkipped aborts the transaction for an already-processed event.
var errEventSkipped = errors.New("event already processed")

// HandlePaymentSucceeded is the asynchronous settlement path. seq is the
// envelope sequence, or zero for legacy events without one.
func (o *Orchestrator) HandlePaymentSucceeded(ctx context.Context, bookingID string, seq int64) error {
	b, err := o.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			o.logger.Printf("payment succeeded for unknown booking %s, dropping", bookingID)
			return nil
		}
		return err
	}

	err = o.bookings.WithTx(ctx, func(tx pgx.Tx) error {
		if err := o.checkpoint(ctx, tx, bookingID, seq); err != nil {
			return err
		}
		if err := o.bookings.UpdateStatusTx(ctx, tx, bookingID, booking.StatusConfirmed, "", booking.StatusProcessing); err != nil {
			return err
		}
		return o.ledger.FinalizeHoldTx(ctx, tx, b.HoldID)
	})
	if err != nil {
		if errors.Is(err, errEventSkipped) || errors.Is(err, booking.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("apply payment success for booking %s: %w", bookingID, err)
	}

	b.Status = booking.StatusConfirmed
	o.metrics.BookingsConfirmed.Inc()
	o.logger.Printf("booking %s confirmed (payment settled)", b.ID)

	if err := o.pub.BookingConfirmed(ctx, b); err != nil {
		o.logger.Printf("publish confirmation for booking %s: %v", b.ID, err)
	}
	return nil
}

// HandlePaymentFailed is the asynchronous decline path.
func (o *Orchestrator) HandlePaymentFailed(ctx context.Context, bookingID, reason string, seq int64) error {
	b, err := o.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			o.logger.Printf("payment failed for unknown booking %s, dropping", bookingID)
			return nil
		}
		return err
	}
	if reason == "" {
		reason = "payment_failed"
	}

	err = o.bookings.WithTx(ctx, func(tx pgx.Tx) error {
		if err := o.checkpoint(ctx, tx, bookingID, seq); err != nil {
			return err
		}
		if err := o.bookings.UpdateStatusTx(ctx, tx, bookingID, booking.StatusFailed, reason,
			booking.StatusAwaitingPayment, booking.StatusProcessing); err != nil {
			return err
		}
		return o.ledger.ReleaseHoldTx(ctx, tx, b.HoldID)
	})
	if err != nil {
		if errors.Is(err, errEventSkipped) || errors.Is(err, booking.ErrInvalidTransition) {
			return nil
		}
		return fmt.Errorf("apply payment failure for booking %s: %w", bookingID, err)
	}

	b.Status = booking.StatusFailed
	b.FailureReason = reason
	o.metrics.BookingsFailed.Inc()
	o.logger.Printf("booking %s failed (%s), inventory released", b.ID, reason)

	if err := o.pub.BookingFailed(ctx, b, reason); err != nil {
		o.logger.Printf("publish failure for booking %s: %v", b.ID, err)
	}
	return nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, tx pgx.Tx, partitionKey string, seq int64) error {
	if seq == 0 || o.dedup == nil {
		return nil
	}
	local := o.dedup.WithExecutor(tx)
	last, ok, err := local.GetLastSequence(ctx, o.consumerName, partitionKey)
	if err != nil {
		return err
	}
	if ok && seq <= last {
		o.logger.Printf("skip duplicate payment event partition=%s seq=%d last=%d", partitionKey, seq, last)
		return errEventSkipped
	}
	return local.UpsertLastSequence(ctx, o.consumerName, partitionKey, seq)
}
