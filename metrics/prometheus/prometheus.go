// Package prometheus exports collection metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	c := cqgo.New[*Car](cqgo.WithMetricsCollector(cqprom.NewCollector(reg, "shop")))
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/cqgo"
	"github.com/hupe1980/cqgo/attribute"
)

// Collector implements cqgo.MetricsCollector with Prometheus metrics.
type Collector struct {
	queries         *prometheus.CounterVec
	queryDuration   prometheus.Histogram
	leaves          *prometheus.CounterVec
	planCache       *prometheus.CounterVec
	releaseErrors   prometheus.Counter
	mutations       *prometheus.CounterVec
	objects         *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	indexBuilds     *prometheus.CounterVec
	buildDuration   prometheus.Histogram
}

var _ cqgo.MetricsCollector = (*Collector)(nil)

// NewCollector creates the metrics below namespace and registers them with
// reg. It panics if a metric is already registered.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	f := promauto.With(reg)
	return &Collector{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of evaluated queries",
		}, []string{"status"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_evaluation_seconds",
			Help:      "Time to build the result set of a query",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		leaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_leaves_total",
			Help:      "Leaf predicates evaluated, by attribute and answering index",
		}, []string{"attribute", "index"}),
		planCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "plan_cache_lookups_total",
			Help:      "Plan cache lookups",
		}, []string{"result"}),
		releaseErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_release_errors_total",
			Help:      "Result sets whose close failed",
		}),
		mutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Collection mutations",
		}, []string{"operation", "status"}),
		objects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutated_objects_total",
			Help:      "Objects added or removed",
		}, []string{"operation"}),
		mutationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_duration_seconds",
			Help:      "Collection mutation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		indexBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Indexes built over existing objects",
		}, []string{"index", "status"}),
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Index build latency",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// OnQuery implements engine.MetricsObserver.
func (c *Collector) OnQuery(duration time.Duration, err error) {
	c.queries.WithLabelValues(status(err)).Inc()
	c.queryDuration.Observe(duration.Seconds())
}

// OnLeaf implements engine.MetricsObserver.
func (c *Collector) OnLeaf(attr attribute.ID, index string) {
	c.leaves.WithLabelValues(attr.String(), index).Inc()
}

// OnPlanCache implements engine.MetricsObserver.
func (c *Collector) OnPlanCache(hit bool) {
	if hit {
		c.planCache.WithLabelValues("hit").Inc()
	} else {
		c.planCache.WithLabelValues("miss").Inc()
	}
}

// OnRelease implements engine.MetricsObserver.
func (c *Collector) OnRelease(error) {
	c.releaseErrors.Inc()
}

// RecordAdd implements cqgo.MetricsCollector.
func (c *Collector) RecordAdd(count int, duration time.Duration, err error) {
	c.record("add", count, duration, err)
}

// RecordRemove implements cqgo.MetricsCollector.
func (c *Collector) RecordRemove(count int, duration time.Duration, err error) {
	c.record("remove", count, duration, err)
}

// RecordUpdate implements cqgo.MetricsCollector.
func (c *Collector) RecordUpdate(duration time.Duration, err error) {
	c.record("update", 0, duration, err)
}

func (c *Collector) record(op string, count int, duration time.Duration, err error) {
	c.mutations.WithLabelValues(op, status(err)).Inc()
	c.mutationLatency.WithLabelValues(op).Observe(duration.Seconds())
	if err == nil && count > 0 {
		c.objects.WithLabelValues(op).Add(float64(count))
	}
}

// RecordIndexBuild implements cqgo.MetricsCollector.
func (c *Collector) RecordIndexBuild(index string, _ int, duration time.Duration, err error) {
	c.indexBuilds.WithLabelValues(index, status(err)).Inc()
	c.buildDuration.Observe(duration.Seconds())
}
