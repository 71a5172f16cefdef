package inventory

import (
	"context"
	"log"
	"time"

	"github.com/DiiKhanh/booking-app-sub001/internal/clock"
)

// Sweeper periodically expires overdue holds so a crashed or abandoned
// booking flow can never lock inventory forever.
type Sweeper struct {
	repo     Repository
	clock    clock.Clock
	interval time.Duration
	logger   *log.Logger
	onExpire func(count int)
}

func NewSweeper(repo Repository, clk clock.Clock, interval time.Duration, logger *log.Logger) *Sweeper {
	return &Sweeper{
		repo:     repo,
		clock:    clk,
		interval: interval,
		logger:   logger,
	}
}

// OnExpire registers a callback invoked with the number of holds expired in
// each sweep that reclaimed at least one.
func (s *Sweeper) OnExpire(fn func(count int)) {
	s.onExpire = fn
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("stopping hold sweeper")
			return
		case <-ticker.C:
			n, err := s.repo.ExpireDue(ctx, s.clock.Now())
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Printf("hold sweep error: %v", err)
				}
				continue
			}
			if n > 0 {
				s.logger.Printf("expired %d overdue holds", n)
				if s.onExpire != nil {
					s.onExpire(n)
				}
			}
		}
	}
}
