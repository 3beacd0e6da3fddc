// Package health runs periodic liveness checks over the simulator's
// dependencies and caches the latest results for the status surface.
package health

import (
	"context"
	"sync"
	"time"
)

// Status is the latest result of one component check.
type Status struct {
	Name    string        `json:"name"`
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency_ns"`
	Error   string        `json:"error,omitempty"`
}

// Check probes one component. A nil return means healthy.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Checker periodically runs its checks and keeps the latest statuses.
type Checker struct {
	mu       sync.RWMutex
	statuses []Status
	checks   []Check
	interval time.Duration
}

func NewChecker(interval time.Duration, checks ...Check) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Checker{
		checks:   checks,
		interval: interval,
	}
}

// Start begins periodic checks and returns immediately.
func (c *Checker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		c.run(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.run(ctx)
			}
		}
	}()
}

func (c *Checker) run(ctx context.Context) {
	statuses := make([]Status, 0, len(c.checks))
	for _, check := range c.checks {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		start := time.Now()
		err := check.Probe(probeCtx)
		cancel()

		status := Status{
			Name:    check.Name,
			Healthy: err == nil,
			Latency: time.Since(start),
		}
		if err != nil {
			status.Error = err.Error()
		}
		statuses = append(statuses, status)
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest results. Empty until the first run completes.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Status, len(c.statuses))
	copy(out, c.statuses)
	return out
}

// Healthy reports whether every component passed its latest check.
func (c *Checker) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
