package cqgo

import (
	"log/slog"

	"github.com/hupe1980/cqgo/engine"
	"github.com/hupe1980/cqgo/resource"
)

type options struct {
	metricsCollector   MetricsCollector
	logger             *Logger
	resourceController *resource.Controller
	planCacheSize      int
	strict             bool
	pushDown           bool
}

// Option configures a Collection.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &cqgo.BasicMetricsCollector{}
//	c := cqgo.New[*Car](cqgo.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Scans: %d\n", stats.QueryCount, stats.ScanCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := cqgo.NewJSONLogger(slog.LevelInfo)
//	c := cqgo.New[*Car](cqgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithResourceController bounds concurrent queries and index builds.
//
// A query slot is held from Retrieve until the result set is closed. Index
// builds take a background slot.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resourceController = rc
	}
}

// WithPlanCacheSize sets how many leaf plans are cached. 0 disables caching.
func WithPlanCacheSize(n int) Option {
	return func(o *options) {
		o.planCacheSize = n
	}
}

// WithStrictIndexing makes every query fail with ErrUnsupportedQuery when a
// leaf has no supporting index, instead of scanning the collection.
func WithStrictIndexing() Option {
	return func(o *options) {
		o.strict = true
	}
}

// WithNegationPushDown rewrites negations of conjunctions and disjunctions
// with De Morgan's laws before evaluation.
func WithNegationPushDown() Option {
	return func(o *options) {
		o.pushDown = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		planCacheSize:    engine.DefaultPlanCacheSize,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

func (o options) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLogger(o.logger.Logger),
		engine.WithMetricsObserver(o.metricsCollector),
		engine.WithResourceController(o.resourceController),
		engine.WithPlanCacheSize(o.planCacheSize),
		engine.WithStrict(o.strict),
		engine.WithNegationPushDown(o.pushDown),
	}
}
