package saga

import (
	"context"
	"time"

	"github.com/DiiKhanh/booking-app-sub001/internal/booking"
)

// RecoverStale resumes or terminates bookings stuck in-flight longer than
// StaleAfter. Pending and awaiting_payment rows are re-driven through the
// charge path; the provider's idempotency key keeps a repeated charge safe.
// Processing rows waited on a settlement event that never arrived, so they
// fail and release their nights. Returns the number of bookings touched.
func (o *Orchestrator) RecoverStale(ctx context.Context) (int, error) {
	cutoff := o.clock.Now().Add(-o.cfg.StaleAfter)
	stale, err := o.bookings.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for i := range stale {
		b := stale[i]
		switch b.Status {
		case booking.StatusPending, booking.StatusAwaitingPayment:
			o.logger.Printf("resuming stale booking %s (status %s)", b.ID, b.Status)
			o.Start(&b)
		case booking.StatusProcessing:
			o.logger.Printf("stale booking %s never saw a settlement event, failing", b.ID)
			if err := o.Fail(ctx, &b, "payment_timeout"); err != nil {
				o.logger.Printf("recover booking %s: %v", b.ID, err)
			}
		}
	}
	return len(stale), nil
}

// RunRecovery runs RecoverStale on a fixed interval until ctx is cancelled.
// One pass runs immediately so a restart picks up orphans without waiting.
func (o *Orchestrator) RunRecovery(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = o.cfg.StaleAfter / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if n, err := o.RecoverStale(ctx); err != nil {
			o.logger.Printf("stale booking recovery: %v", err)
		} else if n > 0 {
			o.logger.Printf("recovered %d stale bookings", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
