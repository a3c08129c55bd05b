package flow

import "errors"

// Sentinel errors named after the error kinds in spec.md §7. None of
// these ever propagate out of the datapath as a hard failure: each is
// either recovered by retry, degraded by ring emission, or counted.
var (
	// ErrDiscard: packet/header malformed or truncated.
	ErrDiscard = errors.New("packet discarded: malformed or truncated header")
	// ErrFilteredOut: the flow filter rejected this packet/event.
	ErrFilteredOut = errors.New("flow filtered out")
	// ErrMapFull: the aggregation map shard is at capacity.
	ErrMapFull = errors.New("aggregation map full")
	// ErrKeyConflict: a concurrent insert raced this one (-EEXIST).
	ErrKeyConflict = errors.New("key conflict on insert")
	// ErrSideChannelMiss: a side channel could not attach to an existing flow.
	ErrSideChannelMiss = errors.New("side channel could not attach to a flow")
	// ErrRingFull: the direct-flow ring has no space; the record was dropped.
	ErrRingFull = errors.New("direct-flow ring full")
)
