// Package resource implements admission control for query evaluation and
// background index builds.
//
// A Controller bounds three things:
//
//   - Concurrent queries: a weighted semaphore acquired when a query is
//     evaluated and released when its result set is closed.
//   - Query rate: a token bucket consulted before admission.
//   - Background work: a semaphore bounding concurrent index builds.
//
// Example:
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentQueries: 64,
//	    QueriesPerSecond:     1000,
//	})
//
//	release, err := rc.AcquireQuery(ctx)
//	if err != nil {
//	    return err
//	}
//	defer release()
//
// # Nil Safety
//
// All methods handle a nil Controller; they become no-ops. Callers can keep
// an optional controller without nil checks.
package resource
