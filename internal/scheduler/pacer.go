package scheduler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer enforces the bridge's maximum command rate. Effects call Wait between
// command batches and use Interval-derived holds for their timing.
type Pacer struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewPacer creates a pacer for the given maximum requests per second.
func NewPacer(rps float64) *Pacer {
	if rps <= 0 {
		rps = 10.0
	}
	return &Pacer{
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		interval: time.Duration(float64(time.Second) / rps),
	}
}

// Interval returns the minimum spacing between command batches.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the next command batch may be issued.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// Hold sleeps for n pacing intervals or until ctx is cancelled.
func (p *Pacer) Hold(ctx context.Context, n int) error {
	return Sleep(ctx, time.Duration(n)*p.interval)
}

// Sleep is a context-aware sleep.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
