package monitor

import (
	"math/rand"
	"time"
)

// backoff produces exponentially growing reconnect delays with jitter so
// restarts do not hammer the RPC endpoint in lockstep.
type backoff struct {
	initial time.Duration
	max     time.Duration
	mult    float64
	jitter  float64 // 0.2 = up to +20%
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{
		initial: initial,
		max:     max,
		mult:    2.0,
		jitter:  0.2,
		current: initial,
	}
}

// next returns the delay to sleep before the next attempt and advances the
// window.
func (b *backoff) next() time.Duration {
	d := time.Duration(float64(b.current) * (1.0 + rand.Float64()*b.jitter))

	grown := time.Duration(float64(b.current) * b.mult)
	if grown > b.max {
		grown = b.max
	}
	b.current = grown

	return d
}

// reset returns the window to its initial delay after a successful connect.
func (b *backoff) reset() {
	b.current = b.initial
}
