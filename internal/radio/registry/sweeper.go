package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/shortwave/go-shortwave/internal/logger"
)

// SweepInterval is how often the sweeper calls Expire. The snapshot read
// path already filters expired rows; the sweeper exists for eventual memory
// reclamation and delete-event emission.
const SweepInterval = 15 * time.Second

// Sweeper periodically expires assignments until its context is cancelled.
type Sweeper struct {
	reg      *Registry
	interval time.Duration
	log      *slog.Logger
}

// NewSweeper creates a sweeper for reg. A non-positive interval selects
// SweepInterval.
func NewSweeper(reg *Registry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = SweepInterval
	}
	return &Sweeper{reg: reg, interval: interval, log: logger.Logger().With("component", "sweeper")}
}

// Run blocks until ctx is cancelled, expiring at every tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.reg.Expire(); n > 0 {
				s.log.Debug("expired assignments", "count", n)
			}
		}
	}
}
