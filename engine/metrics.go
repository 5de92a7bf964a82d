package engine

import (
	"time"

	"github.com/hupe1980/cqgo/attribute"
)

// ScanIndex is the index name reported for leaves answered by a scan.
const ScanIndex = "scan"

// MetricsObserver defines the interface for observing engine events.
type MetricsObserver interface {
	// OnQuery is called when evaluation of a query tree completes, before
	// the result is iterated.
	OnQuery(duration time.Duration, err error)

	// OnLeaf is called once per evaluated leaf with the index that answered
	// it, or ScanIndex.
	OnLeaf(attr attribute.ID, index string)

	// OnPlanCache is called for every plan cache lookup.
	OnPlanCache(hit bool)

	// OnRelease is called when closing a result set failed.
	OnRelease(err error)
}

// NoopMetricsObserver is a no-op implementation of MetricsObserver.
type NoopMetricsObserver struct{}

func (NoopMetricsObserver) OnQuery(time.Duration, error) {}
func (NoopMetricsObserver) OnLeaf(attribute.ID, string)  {}
func (NoopMetricsObserver) OnPlanCache(bool)             {}
func (NoopMetricsObserver) OnRelease(error)              {}
