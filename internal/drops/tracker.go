// Package drops implements C8, the Drops Tracker, grounded on
// original_source/bpf/pkt_drops.h's trace_pkt_drop(): attribute a
// kernel free-skb event to the flow it belongs to, trying both
// directions before giving up and inserting a synthetic
// drop-counters-only flow.
package drops

import (
	"time"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/filter"
	"github.com/netobserv/netobserv-agent/internal/flow"
)

// NotSpecified mirrors the kernel's "reason <= NOT_SPECIFIED" ignore
// threshold from pkt_drops.h; drop reasons at or below this value
// carry no diagnostic value and are ignored.
const NotSpecified uint32 = 0

// Tracker attributes drop events to flows in agg.
type Tracker struct {
	agg    *aggregation.Map
	filter *filter.Filter
}

// New creates a Tracker attached to agg. f is the same C3 instance the
// primary datapath uses; a nil f admits every event, matching an empty
// rule list.
func New(agg *aggregation.Map, f *filter.Filter) *Tracker {
	return &Tracker{agg: agg, filter: f}
}

// Observe attributes a drop to a flow. key is the directionless tuple
// extracted from the freed skb (C1's parsing logic applied to it);
// state/flags/cause describe the drop itself, pktLen is the skb's
// on-wire length, and now is the observation time. Per spec §4.8,
// drops on if_index 0 or 1 and drops with reason <= NotSpecified are
// ignored, and the event is re-evaluated against C3 with cause as the
// drop reason before it ever touches the map, per pkt_drops.h:66's
// check_and_do_flow_filtering call.
func (t *Tracker) Observe(lane int, key flow.Key, state uint8, tcpFlags uint16, cause uint32, pktLen uint32, now time.Time) {
	if key.IfIndex == 0 || key.IfIndex == 1 {
		return
	}
	if cause <= NotSpecified {
		return
	}
	if t.filter != nil && !t.filter.Evaluate(key, tcpFlags, cause) {
		return
	}

	nowNanos := uint64(now.UnixNano())
	apply := func(m *flow.Metrics) {
		m.EndMonoTimeTs = nowNanos
		m.PktDrops.Packets++
		m.PktDrops.Bytes += uint64(pktLen)
		m.PktDrops.LatestState = state
		m.PktDrops.LatestFlags = tcpFlags
		m.PktDrops.LatestDropCause = cause
	}

	ingressKey := key.WithDirection(flow.Ingress)
	if t.agg.MutateAny(lane, ingressKey, apply) {
		return
	}
	egressKey := key.WithDirection(flow.Egress)
	if t.agg.MutateAny(lane, egressKey, apply) {
		return
	}

	// Miss on both directions: insert a synthetic flow carrying only
	// drop counters, direction=INGRESS. This is the one place Packets
	// legitimately stays 0 on insert; the drop path has no packet of
	// its own to count, matching pkt_drops.h's new_flow literal, which
	// never touches .packets either. start/end_mono_time_ts are set to
	// now, though, exactly as that literal does, so the reassembler's
	// idle-scan rule doesn't treat a just-observed drop as stale.
	fresh := flow.Metrics{
		StartMonoTimeTs: nowNanos,
		EndMonoTimeTs:   nowNanos,
		Flags:           tcpFlags,
	}
	fresh.PktDrops.Packets = 1
	fresh.PktDrops.Bytes = uint64(pktLen)
	fresh.PktDrops.LatestState = state
	fresh.PktDrops.LatestFlags = tcpFlags
	fresh.PktDrops.LatestDropCause = cause
	t.agg.Insert(lane, ingressKey, fresh)
}
