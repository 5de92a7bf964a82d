package engine

import (
	"io"
	"log/slog"

	"github.com/hupe1980/cqgo/resource"
)

// DefaultPlanCacheSize is the number of leaf plans cached by default.
const DefaultPlanCacheSize = 1024

type config struct {
	logger             *slog.Logger
	metrics            MetricsObserver
	resourceController *resource.Controller
	planCacheSize      int
	strict             bool
	pushDown           bool
}

// Option defines a configuration option for the Engine.
type Option func(*config)

// WithLogger sets the logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMetricsObserver sets the metrics observer for the engine.
func WithMetricsObserver(observer MetricsObserver) Option {
	return func(c *config) {
		c.metrics = observer
	}
}

// WithResourceController bounds concurrent evaluations. A slot is held from
// Evaluate until the returned result set is closed.
func WithResourceController(rc *resource.Controller) Option {
	return func(c *config) {
		c.resourceController = rc
	}
}

// WithPlanCacheSize sets the number of cached leaf plans. 0 disables the cache.
func WithPlanCacheSize(n int) Option {
	return func(c *config) {
		c.planCacheSize = n
	}
}

// WithStrict disallows scan fallback for every query.
func WithStrict(strict bool) Option {
	return func(c *config) {
		c.strict = strict
	}
}

// WithNegationPushDown rewrites queries with query.PushDownNot before
// evaluation.
func WithNegationPushDown(enabled bool) Option {
	return func(c *config) {
		c.pushDown = enabled
	}
}

func applyOptions(optFns []Option) config {
	c := config{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:       NoopMetricsObserver{},
		planCacheSize: DefaultPlanCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&c)
		}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.metrics == nil {
		c.metrics = NoopMetricsObserver{}
	}
	return c
}
