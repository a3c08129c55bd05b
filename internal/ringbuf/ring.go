// Package ringbuf implements C5, the Direct-Flow Ring: a single
// bounded, lossy, multi-producer/single-consumer conduit for overflow
// records that the aggregation map could not accept.
// It plays the role of the BPF_MAP_TYPE_RINGBUF `direct_flows` map in
// the original implementation; here it is a buffered Go channel sized
// to approximate the 16 MiB budget, since there is no kernel ringbuf
// to reserve/submit against.
package ringbuf

import (
	"context"
	"sync/atomic"

	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/metrics"
)

// approxRecordSize estimates the on-wire size of a flow.Record, used
// only to size the channel to roughly the spec's 16 MiB budget.
const approxRecordSize = 256

// DefaultCapacityBytes is the 16 MiB budget from spec §4.5.
const DefaultCapacityBytes = 16 << 20

// Ring is the direct-flow ring.
type Ring struct {
	ch       chan flow.Record
	dropped  atomic.Uint64
	counters *metrics.Counters
}

// New creates a Ring sized for capacityBytes (rounded down to a slot
// count); zero or negative uses DefaultCapacityBytes. counters may be
// nil; when set, a full ring also increments RingDropped for the
// /metrics endpoint.
func New(capacityBytes int, counters *metrics.Counters) *Ring {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	slots := capacityBytes / approxRecordSize
	if slots < 1 {
		slots = 1
	}
	return &Ring{ch: make(chan flow.Record, slots), counters: counters}
}

// TryWrite attempts a non-blocking reservation+submit of rec. It
// returns false (and increments the dropped counter) if the ring is
// full — a silent drop, per spec §4.5/§7's RingFull error kind. No
// error ever reaches the datapath caller.
func (r *Ring) TryWrite(rec flow.Record) bool {
	select {
	case r.ch <- rec:
		return true
	default:
		r.dropped.Add(1)
		if r.counters != nil {
			r.counters.RingDropped.Inc()
		}
		return false
	}
}

// Read blocks until a record is available or ctx is cancelled.
func (r *Ring) Read(ctx context.Context) (flow.Record, bool) {
	select {
	case rec := <-r.ch:
		return rec, true
	case <-ctx.Done():
		return flow.Record{}, false
	}
}

// Dropped returns the number of records silently dropped because the
// ring was full at reservation time.
func (r *Ring) Dropped() uint64 {
	return r.dropped.Load()
}

// Len reports the number of records currently queued (best-effort).
func (r *Ring) Len() int {
	return len(r.ch)
}
