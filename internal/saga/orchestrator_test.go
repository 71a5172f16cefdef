package saga

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
	"github.com/DiiKhanh/booking-app-sub001/internal/clock"
	"github.com/DiiKhanh/booking-app-sub001/internal/metrics"
	"github.com/DiiKhanh/booking-app-sub001/internal/payment"
)

type fakeStore struct {
	byID        map[string]*booking.Booking
	transitions []string
	stale       []booking.Booking
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (f *fakeStore) GetByID(ctx context.Context, bookingID string) (*booking.Booking, error) {
	b, ok := f.byID[bookingID]
	if !ok {
		return nil, booking.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, bookingID string, to booking.Status, reason string, from ...booking.Status) error {
	return f.UpdateStatusTx(ctx, nil, bookingID, to, reason, from...)
}

func (f *fakeStore) UpdateStatusTx(ctx context.Context, tx pgx.Tx, bookingID string, to booking.Status, reason string, from ...booking.Status) error {
	b, ok := f.byID[bookingID]
	if !ok {
		return booking.ErrNotFound
	}
	for _, s := range from {
		if b.Status == s {
			b.Status = to
			if reason != "" {
				b.FailureReason = reason
			}
			f.transitions = append(f.transitions, bookingID+":"+string(to))
			return nil
		}
	}
	return booking.ErrInvalidTransition
}

func (f *fakeStore) ListStale(ctx context.Context, olderThan time.Time) ([]booking.Booking, error) {
	return f.stale, nil
}

type fakeLedger struct {
	released  []string
	finalized []string
}

func (f *fakeLedger) ReleaseHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error {
	f.released = append(f.released, holdID)
	return nil
}

func (f *fakeLedger) FinalizeHoldTx(ctx context.Context, tx pgx.Tx, holdID string) error {
	f.finalized = append(f.finalized, holdID)
	return nil
}

type fakeProvider struct {
	results []payment.Result
	errs    []error
	charges int
}

func (f *fakeProvider) Charge(ctx context.Context, bookingID string, amountCents int64, currency string) (payment.Result, error) {
	i := f.charges
	f.charges++
	if i < len(f.errs) && f.errs[i] != nil {
		return payment.Result{}, f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return payment.Result{Outcome: payment.OutcomeSettled}, nil
}

type fakeEventSink struct {
	confirmed []string
	failed    []string
	reasons   []string
}

func (f *fakeEventSink) BookingConfirmed(ctx context.Context, b *booking.Booking) error {
	f.confirmed = append(f.confirmed, b.ID)
	return nil
}

func (f *fakeEventSink) BookingFailed(ctx context.Context, b *booking.Booking, reason string) error {
	f.failed = append(f.failed, b.ID)
	f.reasons = append(f.reasons, reason)
	return nil
}

func newTestOrchestrator(t *testing.T, provider payment.Provider) (*Orchestrator, *fakeStore, *fakeLedger, *fakeEventSink) {
	t.Helper()

	store := &fakeStore{byID: map[string]*booking.Booking{}}
	ledger := &fakeLedger{}
	sink := &fakeEventSink{}
	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	m := metrics.New(prometheus.NewRegistry())
	logger := log.New(io.Discard, "", 0)

	o := NewOrchestrator(store, ledger, provider, sink, nil, clk, m, logger, Config{
		RetryMax:   2,
		RetryBase:  time.Millisecond,
		StaleAfter: 15 * time.Minute,
	})
	return o, store, ledger, sink
}

func pendingBooking(store *fakeStore) *booking.Booking {
	b := &booking.Booking{
		ID:              "b-1",
		HoldID:          "h-1",
		UserID:          "user-1",
		RoomID:          "room-1",
		TotalPriceCents: 30000,
		Currency:        "USD",
		Status:          booking.StatusPending,
	}
	store.byID[b.ID] = b
	return b
}

func TestRunSettledChargeConfirms(t *testing.T) {
	provider := &fakeProvider{results: []payment.Result{{Outcome: payment.OutcomeSettled, ProviderRef: "pi_1"}}}
	o, store, ledger, sink := newTestOrchestrator(t, provider)
	b := pendingBooking(store)

	require.NoError(t, o.Run(context.Background(), b))

	assert.Equal(t, booking.StatusConfirmed, store.byID["b-1"].Status)
	assert.Equal(t, []string{
		"b-1:awaiting_payment",
		"b-1:processing",
		"b-1:confirmed",
	}, store.transitions)
	assert.Equal(t, []string{"h-1"}, ledger.finalized)
	assert.Empty(t, ledger.released)
	assert.Equal(t, []string{"b-1"}, sink.confirmed)
}

func TestRunDeclinedChargeFailsAndReleases(t *testing.T) {
	provider := &fakeProvider{results: []payment.Result{{Outcome: payment.OutcomeDeclined, Reason: "insufficient_funds"}}}
	o, store, ledger, sink := newTestOrchestrator(t, provider)
	b := pendingBooking(store)

	require.NoError(t, o.Run(context.Background(), b))

	assert.Equal(t, booking.StatusFailed, store.byID["b-1"].Status)
	assert.Equal(t, "payment_declined:insufficient_funds", store.byID["b-1"].FailureReason)
	assert.Equal(t, []string{"h-1"}, ledger.released)
	assert.Empty(t, ledger.finalized)
	require.Len(t, sink.failed, 1)
	assert.Equal(t, "payment_declined:insufficient_funds", sink.reasons[0])
}

func TestRunRetriesTransportFaults(t *testing.T) {
	provider := &fakeProvider{
		errs:    []error{errors.New("timeout"), errors.New("timeout")},
		results: []payment.Result{{}, {}, {Outcome: payment.OutcomeSettled}},
	}
	o, store, _, sink := newTestOrchestrator(t, provider)
	b := pendingBooking(store)

	require.NoError(t, o.Run(context.Background(), b))

	assert.Equal(t, 3, provider.charges)
	assert.Equal(t, booking.StatusConfirmed, store.byID["b-1"].Status)
	assert.Equal(t, []string{"b-1"}, sink.confirmed)
}

func TestRunExhaustedRetriesFails(t *testing.T) {
	provider := &fakeProvider{
		errs: []error{errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}
	o, store, ledger, sink := newTestOrchestrator(t, provider)
	b := pendingBooking(store)

	require.NoError(t, o.Run(context.Background(), b))

	assert.Equal(t, 3, provider.charges)
	assert.Equal(t, booking.StatusFailed, store.byID["b-1"].Status)
	assert.Equal(t, "payment_unreachable", store.byID["b-1"].FailureReason)
	assert.Equal(t, []string{"h-1"}, ledger.released)
	require.Len(t, sink.failed, 1)
}

func TestRunInitiatedChargeWaitsForEvents(t *testing.T) {
	provider := &fakeProvider{results: []payment.Result{{Outcome: payment.OutcomeInitiated}}}
	o, store, ledger, sink := newTestOrchestrator(t, provider)
	b := pendingBooking(store)

	require.NoError(t, o.Run(context.Background(), b))

	assert.Equal(t, booking.StatusProcessing, store.byID["b-1"].Status)
	assert.Empty(t, ledger.finalized)
	assert.Empty(t, ledger.released)
	assert.Empty(t, sink.confirmed)
	assert.Empty(t, sink.failed)
}

func TestRunStopsWhenCancelledElsewhere(t *testing.T) {
	provider := &fakeProvider{}
	o, store, _, sink := newTestOrchestrator(t, provider)
	b := pendingBooking(store)
	stored := *b
	stored.Status = booking.StatusCancelled
	store.byID["b-1"] = &stored

	require.NoError(t, o.Run(context.Background(), b))

	assert.Zero(t, provider.charges, "cancelled booking must never be charged")
	assert.Empty(t, sink.confirmed)
	assert.Empty(t, sink.failed)
}

func TestHandlePaymentSucceededConfirms(t *testing.T) {
	o, store, ledger, sink := newTestOrchestrator(t, &fakeProvider{})
	b := pendingBooking(store)
	b.Status = booking.StatusProcessing

	require.NoError(t, o.HandlePaymentSucceeded(context.Background(), "b-1", 0))

	assert.Equal(t, booking.StatusConfirmed, store.byID["b-1"].Status)
	assert.Equal(t, []string{"h-1"}, ledger.finalized)
	assert.Equal(t, []string{"b-1"}, sink.confirmed)
}

func TestHandlePaymentSucceededIsIdempotent(t *testing.T) {
	o, store, ledger, sink := newTestOrchestrator(t, &fakeProvider{})
	b := pendingBooking(store)
	b.Status = booking.StatusProcessing

	require.NoError(t, o.HandlePaymentSucceeded(context.Background(), "b-1", 0))
	require.NoError(t, o.HandlePaymentSucceeded(context.Background(), "b-1", 0))

	assert.Equal(t, []string{"h-1"}, ledger.finalized, "replay must not finalize twice")
	assert.Equal(t, []string{"b-1"}, sink.confirmed)
}

func TestHandlePaymentSucceededUnknownBooking(t *testing.T) {
	o, _, ledger, sink := newTestOrchestrator(t, &fakeProvider{})

	require.NoError(t, o.HandlePaymentSucceeded(context.Background(), "missing", 0))
	assert.Empty(t, ledger.finalized)
	assert.Empty(t, sink.confirmed)
}

func TestHandlePaymentFailedReleasesInventory(t *testing.T) {
	o, store, ledger, sink := newTestOrchestrator(t, &fakeProvider{})
	b := pendingBooking(store)
	b.Status = booking.StatusProcessing

	require.NoError(t, o.HandlePaymentFailed(context.Background(), "b-1", "card_declined", 0))

	assert.Equal(t, booking.StatusFailed, store.byID["b-1"].Status)
	assert.Equal(t, "card_declined", store.byID["b-1"].FailureReason)
	assert.Equal(t, []string{"h-1"}, ledger.released)
	require.Len(t, sink.failed, 1)
}

func TestRecoverStaleFailsProcessingBookings(t *testing.T) {
	o, store, ledger, sink := newTestOrchestrator(t, &fakeProvider{})
	b := pendingBooking(store)
	b.Status = booking.StatusProcessing
	store.stale = []booking.Booking{*b}

	n, err := o.RecoverStale(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, booking.StatusFailed, store.byID["b-1"].Status)
	assert.Equal(t, "payment_timeout", store.byID["b-1"].FailureReason)
	assert.Equal(t, []string{"h-1"}, ledger.released)
	require.Len(t, sink.failed, 1)
}
