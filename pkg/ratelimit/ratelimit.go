package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer inserts a fixed courtesy pause between page fetches, optionally
// stretched by a random jitter. The zero value and a nil *Pacer never block.
type Pacer struct {
	delay  time.Duration
	jitter float64 // 0.0 to 1.0
}

// NewPacer returns a pacer pausing for delay plus up to jitter*delay extra.
// A delay <= 0 disables pausing. Jitter is clamped to [0, 1].
func NewPacer(delay time.Duration, jitter float64) *Pacer {
	if delay < 0 {
		delay = 0
	}
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	return &Pacer{delay: delay, jitter: jitter}
}

// Delay is the configured base pause.
func (p *Pacer) Delay() time.Duration {
	if p == nil {
		return 0
	}
	return p.delay
}

// Next computes the length of the next pause. It never returns less than the
// base delay: jitter only ever lengthens the pause.
func (p *Pacer) Next() time.Duration {
	if p == nil || p.delay <= 0 {
		return 0
	}
	d := p.delay
	if p.jitter > 0 {
		d += time.Duration(float64(p.delay) * p.jitter * rand.Float64())
	}
	return d
}

// Pause blocks for the next pause duration or until ctx is done, whichever
// comes first.
func (p *Pacer) Pause(ctx context.Context) error {
	d := p.Next()
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
