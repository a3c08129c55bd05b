// Package rtt implements C7, the RTT Tracker: a SYN/ACK timestamp
// cache that computes an initial TCP round-trip time and latches it
// onto the owning flow, grounded on the flow_sequences table from
// original_source/bpf/rtt_tracker.h. No example repo's go-tcpinfo
// style library fits here: that library reads live kernel tcp_info
// off a socket, not timestamps derived from passively observed
// packets, so this tracker stays on the standard library; see
// DESIGN.md.
package rtt

import (
	"sync"
	"time"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/flow"
)

// seqKey identifies an outstanding SYN awaiting its ACK.
type seqKey struct {
	key flow.Key // forward-direction key (egress SYN's own key)
	seq uint32
}

// Tracker maintains the flow_sequences table and annotates flows.
type Tracker struct {
	mu  sync.Mutex
	seq map[seqKey]time.Time

	agg *aggregation.Map
}

// New creates a Tracker attached to agg for annotation.
func New(agg *aggregation.Map) *Tracker {
	return &Tracker{seq: make(map[seqKey]time.Time), agg: agg}
}

// ObserveEgressSYN records the egress SYN's sequence number and
// timestamp, keyed on the packet's own (forward) direction key.
func (t *Tracker) ObserveEgressSYN(key flow.Key, tcpSeq uint32, now time.Time) {
	t.mu.Lock()
	t.seq[seqKey{key: key, seq: tcpSeq}] = now
	t.mu.Unlock()
}

// ObserveIngressACK looks up the reversed key, with egress direction,
// at ack_seq-1; on a hit it computes the RTT, deletes the entry, and
// latches flow_rtt onto the egress flow via lane. flow_rtt is only set
// while it is still zero: a later SYN/ACK exchange on the same flow
// does not overwrite it.
func (t *Tracker) ObserveIngressACK(lane int, ingressKey flow.Key, tcpAckSeq uint32, now time.Time) {
	fwd := ingressKey.Reversed().WithDirection(flow.Egress)
	sk := seqKey{key: fwd, seq: tcpAckSeq - 1}

	t.mu.Lock()
	sentAt, ok := t.seq[sk]
	if ok {
		delete(t.seq, sk)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	rttNanos := uint64(now.Sub(sentAt).Nanoseconds())
	t.agg.MutateAny(lane, fwd, func(m *flow.Metrics) {
		// Latched to the first observation: the source this tracker is
		// built from does not consistently recompute on later
		// handshakes, so a zero flow_rtt is the only one ever replaced.
		if m.FlowRTT == 0 {
			m.FlowRTT = rttNanos
		}
	})
}
