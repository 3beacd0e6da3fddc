package feed

import (
	"math/rand"
	"time"
)

// Backoff produces reconnect delays: exponential doubling capped at Max,
// with additive jitter of up to delay*Jitter. The exponent saturates at 10
// so the arithmetic cannot overflow while the clamp stays at Max.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	attempt int
	rng     *rand.Rand
}

func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	return &Backoff{
		Base:   base,
		Max:    max,
		Jitter: jitter,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the delay for the current attempt and advances the counter.
func (b *Backoff) Next() time.Duration {
	exp := b.attempt
	if exp > 10 {
		exp = 10
	}
	delay := b.Base << uint(exp)
	if delay > b.Max || delay < 0 {
		delay = b.Max
	}
	if b.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.Jitter * b.rng.Float64())
	}
	b.attempt++
	return delay
}

// Reset clears the attempt counter after a successful subscribe.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of consecutive failures so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}
