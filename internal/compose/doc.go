// Package compose drives a field plan produced by the planner: it
// dispatches per-subschema sub-queries, merges the partial responses into
// one response tree, and recursively expands stitch plans as data arrives.
//
// # Execution model
//
// A Composer is single-use. Compose dispatches every top-level
// SubschemaPlan concurrently, then enters a receive loop that acts as the
// join barrier: every dispatch increments an in-flight counter, every
// completion feeds one result back through a channel, and Compose returns
// when the counter reaches zero. Because the loop is the only receiver,
// all composer state (the growing data tree, the error list, the nulled
// flag) is touched from a single logical context; the per-fetch goroutines
// never observe it.
//
// There are exactly three suspension points: waiting for an executor
// future, waiting for an item from a subscriber's lazy sequence, and
// waiting for the join barrier.
//
// # Result handling
//
// Each finished fetch runs through the same pipeline:
//
//  1. Subschema-reported errors are appended verbatim. A rejected executor
//     future is first wrapped into a single error with null data.
//  2. Null-propagation gate: if the slot this fetch targets was already
//     nulled by a prior failure, the result is discarded; likewise when
//     the whole response has been nulled at the root.
//  3. A null data payload nulls the target slot (the entire response when
//     the fetch was at the root) so sibling follow-ups short-circuit.
//  4. Otherwise the payload deep-merges into the target object: object
//     maps merge recursively per key, anything else overwrites. Two
//     subschemas can therefore contribute disjoint subtrees of the same
//     composite object.
//  5. The fetch's stitch plans are walked over the merged data. Arrays are
//     walked elementwise. Each stitched object names its concrete type
//     through the __stitching__typename marker, which selects the
//     per-type follow-up plan; the marker is removed from the response in
//     the same step. Follow-up fetches enqueue into the same loop, so the
//     process naturally runs until the stitch tree is exhausted.
//
// A missing marker, a type name absent from the super-schema, or a
// non-object stitch target is an invariant violation: it is reported as an
// internal failure rather than a user error, and the response is otherwise
// preserved. Errors never abort composition; the composer returns as much
// data as merged successfully. Per-slot nulling is not bubbled upward
// through non-null parents.
//
// # Incremental and subscription results
//
// An executor may return an incremental result (an initial payload plus a
// lazy sequence of deltas). The initial payload is merged like any other
// result; the delta sequences of all such fetches are consolidated into a
// single stream returned alongside the initial response. Subscriptions
// route each upstream event through a fresh single-use composer so stitch
// expansion applies per event.
package compose
