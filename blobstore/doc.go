// Package blobstore stores the immutable blobs backing read-only indexes:
// manifests and compressed posting lists.
//
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process map, for tests and ephemeral snapshots
//   - LocalStore: one file per blob below a root directory
//
// # Custom Implementations
//
// Implement the Store interface to support other backends:
//
//	type Store interface {
//	    Get(ctx, name) ([]byte, error)     // ErrNotFound if absent
//	    Put(ctx, name, data) error         // atomic replace
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
