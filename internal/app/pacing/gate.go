// Package pacing gates how often the poll and sample loops do work.
package pacing

import (
	"time"

	"golang.org/x/time/rate"
)

// Gate admits at most one cycle per interval. Admission is decided by the
// caller-supplied time so the gate never blocks and can run on a fake clock.
type Gate struct {
	interval time.Duration
	limiter  *rate.Limiter
}

// NewGate returns a gate whose first cycle is admitted immediately.
func NewGate(interval time.Duration) *Gate {
	if interval <= 0 {
		return &Gate{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Gate{
		interval: interval,
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Admit reports whether a cycle may run at now, consuming the slot if so.
func (g *Gate) Admit(now time.Time) bool {
	return g.limiter.AllowN(now, 1)
}

// Interval is the configured minimum spacing between admitted cycles.
func (g *Gate) Interval() time.Duration { return g.interval }
