// Package index defines the contract every index satisfies and the registry
// the engine consults to find indexes for an attribute.
//
// Concrete implementations live in the subpackages:
//
//	index/hash       map buckets: Equal, In, Has
//	index/navigable  sorted keys: Equal, In, Has and ranges, optional quantizer
//	index/bitmap     roaring posting lists: Equal, In, Has
//	index/blob       read-only posting lists in a blobstore.Store
package index

import (
	"context"

	"github.com/hupe1980/cqgo/attribute"
	"github.com/hupe1980/cqgo/query"
	"github.com/hupe1980/cqgo/resultset"
)

// Retrieval costs reported by the builtin indexes. Lower is cheaper.
const (
	CostHash      = 30
	CostBitmap    = 35
	CostNavigable = 40
	CostBlob      = 60
)

// Index answers leaf predicates on one attribute.
type Index[O any] interface {
	// Name identifies the index. Names are unique within a Registry.
	Name() string

	// AttributeID returns the attribute the index is built over.
	AttributeID() attribute.ID

	// Supports reports whether the index can answer q directly.
	Supports(q query.Leaf[O]) bool

	// Retrieve returns the objects matching q. The caller owns the returned
	// set and must close it. Retrieve may block on external storage and
	// honours ctx while doing so.
	Retrieve(ctx context.Context, q query.Leaf[O], opts *query.Options[O]) (resultset.ResultSet[O], error)
}

// KeyStatistics is implemented by indexes that can enumerate their keys.
type KeyStatistics[O, A any] interface {
	// DistinctKeys returns every key in the index, ascending if the index is
	// ordered. On an empty index the set is empty and already closed.
	DistinctKeys(ctx context.Context, opts *query.Options[O]) (resultset.ResultSet[A], error)

	// CountForKey returns the exact number of objects in the bucket for key,
	// or 0 if there is no such bucket.
	CountForKey(ctx context.Context, key A, opts *query.Options[O]) (int, error)
}

// Mutable is implemented by indexes maintained by a collection.
type Mutable[O any] interface {
	Index[O]

	// Add indexes objs. On error the index is unchanged.
	Add(ctx context.Context, objs []O) error

	// Remove unindexes objs. Objects not in the index are ignored.
	Remove(ctx context.Context, objs []O) error

	// Clear removes every object.
	Clear(ctx context.Context) error
}

// Lifecycle is implemented by indexes with a build/ready/dropped lifecycle.
type Lifecycle interface {
	State() State
	SetState(State)
}

// Coster is implemented by indexes that report their retrieval cost without
// retrieving. The engine prefers the cheapest supporting index.
type Coster interface {
	RetrievalCost() int
}

// Sized is implemented by indexes that know how many objects they hold.
type Sized interface {
	Len() int
}
