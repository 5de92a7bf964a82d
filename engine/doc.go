// Package engine evaluates query trees against a base collection and the
// indexes registered for its attributes.
//
// # Evaluation
//
// Evaluate walks the query bottom-up and returns one lazy result set:
//
//   - Leaf predicates are answered by an index when one supports them and by
//     a filtered scan of the collection otherwise. A forced index (see
//     query.WithForcedIndex) must support the predicate; a hinted index is
//     used when it can. Otherwise the cheapest supporting index wins.
//   - And intersects its children. The child with the lowest merge cost
//     drives iteration and the others are probed. Negated children are
//     subtracted from the intersection instead of being complemented.
//   - Or unions its children, dropping duplicates unless
//     query.DedupNone is requested.
//   - Not subtracts its child from the full collection.
//
// With WithNegationPushDown the tree is rewritten by query.PushDownNot before
// evaluation so negations sit directly above leaves.
//
// # Strict Mode
//
// In strict mode (WithStrict or query.WithStrict) a leaf that no index can
// answer fails with ErrUnsupportedQuery instead of scanning.
//
// # Resources
//
// Every result set opened during evaluation is closed by the returned set,
// or before an error is returned. Close failures are reported as
// *resultset.ReleaseError and attached to the primary error, never
// replacing it.
//
// # Plan Cache
//
// Index choices for leaves are cached in an LRU keyed by the predicate's
// structural hash, so semantically identical predicates built separately
// share a plan. The cache is invalidated with InvalidatePlans whenever the
// set of indexes changes.
package engine
