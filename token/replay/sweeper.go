package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically removes expired entries from a Guard.
type Sweeper struct {
	guard    Guard
	interval time.Duration
	now      func() time.Time
	onSweep  func(removed int)
}

type SweeperOption func(*Sweeper)

// WithSweepClock replaces the time source passed to Guard.Sweep.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// OnSweep registers a callback invoked after every successful sweep.
func OnSweep(fn func(removed int)) SweeperOption {
	return func(s *Sweeper) {
		s.onSweep = fn
	}
}

func NewSweeper(guard Guard, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		guard:    guard,
		interval: interval,
		now:      time.Now,
		onSweep:  func(int) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of removed entries.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.guard.Sweep(ctx, s.now())
	if err != nil {
		log.Warn().Err(err).Msg("replay guard sweep failed")
		return 0
	}
	log.Debug().Int("removed", removed).Msg("replay guard swept")
	s.onSweep(removed)
	return removed
}
