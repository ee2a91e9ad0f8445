// Package resource tracks the scarce resources of a segmentation session:
// the fast-tier frame residency budget and the scoring-call rate.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// FastTierBytes is the hard limit for frames resident in the fast tier.
	// If 0, no hard limit is enforced (only tracking).
	FastTierBytes int64

	// ScoreRatePerSec caps scoring-function invocations per second. Use it
	// when the scorer fronts a shared accelerator or remote service.
	// If 0, unlimited.
	ScoreRatePerSec float64
}

// Controller manages the session's resource budgets.
// A nil *Controller is valid and enforces nothing.
type Controller struct {
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	scoreLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{}

	if cfg.FastTierBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.FastTierBytes)
	}
	if cfg.ScoreRatePerSec > 0 {
		burst := int(cfg.ScoreRatePerSec)
		if burst < 1 {
			burst = 1
		}
		c.scoreLimiter = rate.NewLimiter(rate.Limit(cfg.ScoreRatePerSec), burst)
	}

	return c
}

// AcquireMemory reserves fast-tier bytes, blocking until the budget allows
// it or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory reserves fast-tier bytes without blocking.
// Reports whether the reservation succeeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns fast-tier bytes to the budget.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	c.memUsed.Add(-bytes)
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
}

// MemoryUsed returns the currently reserved fast-tier bytes.
func (c *Controller) MemoryUsed() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// WaitScore blocks until a scoring-function invocation is admitted by the
// rate limit, or ctx is canceled.
func (c *Controller) WaitScore(ctx context.Context) error {
	if c == nil || c.scoreLimiter == nil {
		return nil
	}
	return c.scoreLimiter.Wait(ctx)
}
