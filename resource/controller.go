package resource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned by TryAcquireQuery when the rate limit has no
// token left.
var ErrRateLimited = errors.New("query rate limit exceeded")

// ErrBusy is returned by TryAcquireQuery when every query slot is taken.
var ErrBusy = errors.New("too many concurrent queries")

// Config holds resource limits.
type Config struct {
	// MaxConcurrentQueries bounds the number of open query results.
	// If 0, concurrency is only tracked.
	MaxConcurrentQueries int64

	// QueriesPerSecond is the sustained admission rate. If 0, unlimited.
	QueriesPerSecond float64

	// Burst is the number of queries admitted at once above the rate.
	// Defaults to max(1, QueriesPerSecond).
	Burst int

	// MaxBackgroundWorkers bounds concurrent index builds. If 0, defaults to 1.
	MaxBackgroundWorkers int64
}

// Controller manages admission of queries and background work.
type Controller struct {
	cfg Config

	querySem *semaphore.Weighted // nil if unlimited
	inFlight atomic.Int64

	limiter *rate.Limiter // nil if unlimited

	bgSem *semaphore.Weighted
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxBackgroundWorkers <= 0 {
		cfg.MaxBackgroundWorkers = 1
	}

	c := &Controller{
		cfg:   cfg,
		bgSem: semaphore.NewWeighted(cfg.MaxBackgroundWorkers),
	}

	if cfg.MaxConcurrentQueries > 0 {
		c.querySem = semaphore.NewWeighted(cfg.MaxConcurrentQueries)
	}

	if cfg.QueriesPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.QueriesPerSecond))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.QueriesPerSecond), burst)
	}

	return c
}

// AcquireQuery admits one query, waiting for a rate token and a free slot.
// The returned release function is idempotent.
func (c *Controller) AcquireQuery(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if c.querySem != nil {
		if err := c.querySem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	return c.admitted(), nil
}

// TryAcquireQuery admits one query without blocking.
func (c *Controller) TryAcquireQuery() (func(), error) {
	if c == nil {
		return func() {}, nil
	}
	if c.limiter != nil && !c.limiter.AllowN(time.Now(), 1) {
		return nil, ErrRateLimited
	}
	if c.querySem != nil && !c.querySem.TryAcquire(1) {
		return nil, ErrBusy
	}
	return c.admitted(), nil
}

func (c *Controller) admitted() func() {
	c.inFlight.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.inFlight.Add(-1)
			if c.querySem != nil {
				c.querySem.Release(1)
			}
		})
	}
}

// InFlight returns the number of admitted queries not yet released.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// MaxConcurrentQueries returns the configured query limit (0 if unlimited).
func (c *Controller) MaxConcurrentQueries() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MaxConcurrentQueries
}

// AcquireBackground reserves a background worker slot.
// Blocks if all slots are busy.
func (c *Controller) AcquireBackground(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.bgSem.Acquire(ctx, 1)
}

// ReleaseBackground releases a background worker slot.
func (c *Controller) ReleaseBackground() {
	if c == nil {
		return
	}
	c.bgSem.Release(1)
}

// TryAcquireBackground reserves a background worker slot without blocking.
func (c *Controller) TryAcquireBackground() bool {
	if c == nil {
		return true
	}
	return c.bgSem.TryAcquire(1)
}
