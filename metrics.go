package cqgo

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/engine"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus; see the metrics/prometheus package.
//
// Query-level events come from the embedded engine.MetricsObserver.
type MetricsCollector interface {
	engine.MetricsObserver

	// RecordAdd is called after each Add with the number of objects added.
	RecordAdd(count int, duration time.Duration, err error)

	// RecordRemove is called after each Remove with the number of objects
	// removed.
	RecordRemove(count int, duration time.Duration, err error)

	// RecordUpdate is called after each Update.
	RecordUpdate(duration time.Duration, err error)

	// RecordIndexBuild is called after AddIndex populated an index.
	RecordIndexBuild(index string, objects int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct {
	engine.NoopMetricsObserver
}

func (NoopMetricsCollector) RecordAdd(int, time.Duration, error)                {}
func (NoopMetricsCollector) RecordRemove(int, time.Duration, error)             {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)                  {}
func (NoopMetricsCollector) RecordIndexBuild(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryTotalNanos  atomic.Int64
	IndexRetrievals  atomic.Int64
	ScanCount        atomic.Int64
	PlanCacheHits    atomic.Int64
	PlanCacheMisses  atomic.Int64
	ReleaseErrors    atomic.Int64
	AddCount         atomic.Int64
	AddedObjects     atomic.Int64
	AddErrors        atomic.Int64
	RemoveCount      atomic.Int64
	RemovedObjects   atomic.Int64
	RemoveErrors     atomic.Int64
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
	IndexBuildCount  atomic.Int64
	IndexBuildErrors atomic.Int64
}

// OnQuery implements engine.MetricsObserver.
func (b *BasicMetricsCollector) OnQuery(duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// OnLeaf implements engine.MetricsObserver.
func (b *BasicMetricsCollector) OnLeaf(_ attribute.ID, index string) {
	if index == engine.ScanIndex {
		b.ScanCount.Add(1)
	} else {
		b.IndexRetrievals.Add(1)
	}
}

// OnPlanCache implements engine.MetricsObserver.
func (b *BasicMetricsCollector) OnPlanCache(hit bool) {
	if hit {
		b.PlanCacheHits.Add(1)
	} else {
		b.PlanCacheMisses.Add(1)
	}
}

// OnRelease implements engine.MetricsObserver.
func (b *BasicMetricsCollector) OnRelease(error) {
	b.ReleaseErrors.Add(1)
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(count int, _ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
		return
	}
	b.AddedObjects.Add(int64(count))
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(count int, _ time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
		return
	}
	b.RemovedObjects.Add(int64(count))
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(_ time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordIndexBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIndexBuild(_ string, _ int, _ time.Duration, err error) {
	b.IndexBuildCount.Add(1)
	if err != nil {
		b.IndexBuildErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		QueryCount:       b.QueryCount.Load(),
		QueryErrors:      b.QueryErrors.Load(),
		QueryAvgNanos:    b.getAvgQueryNanos(),
		IndexRetrievals:  b.IndexRetrievals.Load(),
		ScanCount:        b.ScanCount.Load(),
		PlanCacheHits:    b.PlanCacheHits.Load(),
		PlanCacheMisses:  b.PlanCacheMisses.Load(),
		ReleaseErrors:    b.ReleaseErrors.Load(),
		AddCount:         b.AddCount.Load(),
		AddedObjects:     b.AddedObjects.Load(),
		AddErrors:        b.AddErrors.Load(),
		RemoveCount:      b.RemoveCount.Load(),
		RemovedObjects:   b.RemovedObjects.Load(),
		RemoveErrors:     b.RemoveErrors.Load(),
		UpdateCount:      b.UpdateCount.Load(),
		UpdateErrors:     b.UpdateErrors.Load(),
		IndexBuildCount:  b.IndexBuildCount.Load(),
		IndexBuildErrors: b.IndexBuildErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgQueryNanos() int64 {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return b.QueryTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QueryCount       int64
	QueryErrors      int64
	QueryAvgNanos    int64
	IndexRetrievals  int64
	ScanCount        int64
	PlanCacheHits    int64
	PlanCacheMisses  int64
	ReleaseErrors    int64
	AddCount         int64
	AddedObjects     int64
	AddErrors        int64
	RemoveCount      int64
	RemovedObjects   int64
	RemoveErrors     int64
	UpdateCount      int64
	UpdateErrors     int64
	IndexBuildCount  int64
	IndexBuildErrors int64
}
