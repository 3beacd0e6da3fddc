package processor

import "time"

// rateWindow is the span of the per-trader sliding window.
const rateWindow = 60 * time.Second

// RateLimiter admits at most `limit` trades per trader per minute. The
// clock is the event's received_at stamp rather than the wall clock, so a
// fast replay reproduces exactly the admissions a live run made.
type RateLimiter struct {
	limit  int
	window map[string][]time.Time
}

func NewRateLimiter(limit int) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		window: make(map[string][]time.Time),
	}
}

// Allow reports whether the trader may trade at the given instant, and
// records the admission when it may.
func (r *RateLimiter) Allow(trader string, at time.Time) bool {
	cutoff := at.Add(-rateWindow)
	stamps := r.window[trader]

	// Drop aged-out stamps in place; the slice stays sorted.
	keep := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}

	if len(keep) >= r.limit {
		r.window[trader] = keep
		return false
	}
	r.window[trader] = append(keep, at)
	return true
}

// Reset clears every window.
func (r *RateLimiter) Reset() {
	r.window = make(map[string][]time.Time)
}
