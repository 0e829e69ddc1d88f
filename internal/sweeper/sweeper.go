// Package sweeper periodically drops expired OTP challenges and sessions from
// stores that do not expire entries on their own.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger removes entries expired at now and reports how many it dropped.
type Purger interface {
	Purge(ctx context.Context, now time.Time) (int, error)
}

// Sweeper runs every registered Purger on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	logger  *slog.Logger
	purgers map[string]Purger
	timeout time.Duration
	nowF    func() time.Time
}

// New builds a sweeper that fires every interval.
func New(interval time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Sweeper{
		cron:    cron.New(),
		logger:  logger,
		purgers: make(map[string]Purger),
		timeout: interval,
		nowF:    func() time.Time { return time.Now().UTC() },
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule sweep: %w", err)
	}
	return s, nil
}

// Register adds a purger under name. It must be called before Start.
func (s *Sweeper) Register(name string, p Purger) {
	s.purgers[name] = p
}

// Sweep runs every purger once.
func (s *Sweeper) Sweep(ctx context.Context) map[string]int {
	now := s.nowF()
	removed := make(map[string]int, len(s.purgers))
	for name, p := range s.purgers {
		n, err := p.Purge(ctx, now)
		if err != nil {
			s.logger.Warn("sweep failed", "store", name, "error", err)
			continue
		}
		removed[name] = n
		if n > 0 {
			s.logger.Debug("swept expired entries", "store", name, "removed", n)
		}
	}
	return removed
}

// Start launches the scheduler in the background.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running sweep to finish or ctx to
// be done.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
