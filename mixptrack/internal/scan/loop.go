// Package scan re-runs binding passes on a fixed delay so elements inserted
// after page load get bound. It polls: there is no DOM mutation feed.
package scan

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the delay between the end of a pass and the next one.
const DefaultInterval = 2 * time.Second

// Passer runs one binding pass and reports how many elements it bound.
type Passer interface {
	Pass(ctx context.Context) int
}

// Config for a Loop.
type Config struct {
	// Interval between passes. Default: DefaultInterval.
	Interval time.Duration
	// Settle is the wait before the first pass, letting the page finish
	// rendering. Zero means Interval; negative means no wait.
	Settle time.Duration
	Logger *slog.Logger
}

// Loop schedules passes with a fixed delay between them.
type Loop struct {
	passer   Passer
	interval time.Duration
	settle   time.Duration
	logger   *slog.Logger
}

// New creates a Loop for p.
func New(p Passer, cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Settle == 0 {
		cfg.Settle = cfg.Interval
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Loop{
		passer:   p,
		interval: cfg.Interval,
		settle:   cfg.Settle,
		logger:   cfg.Logger,
	}
}

// Run blocks until ctx is cancelled, which is the only way to stop it.
// The next pass is scheduled once the current one returns, so a slow pass
// never overlaps the following one.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(l.settle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("scan: loop stopped")
			return
		case <-timer.C:
		}

		if n := l.passer.Pass(ctx); n > 0 {
			l.logger.Info("scan: elements bound", "count", n)
		}
		timer.Reset(l.interval)
	}
}
