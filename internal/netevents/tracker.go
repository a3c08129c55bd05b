// Package netevents implements C9, the Network-Event Tracker,
// grounded on original_source/bpf/network_events_monitoring.h: attach
// up to MaxNetworkEvents opaque cookies per flow from a
// packet-sampling facility, deduplicated and round-robin replaced
// once full.
package netevents

import (
	"time"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/filter"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/metrics"
)

// Tracker attaches sampling-facility cookies to flows in agg.
type Tracker struct {
	agg      *aggregation.Map
	counters *metrics.Counters
	filter   *filter.Filter
	groupID  uint32
}

// New creates a Tracker attached to agg. f is the same C3 instance the
// primary datapath uses; a nil f admits every event. groupID is the
// configured sampling group this tracker accepts events for; zero
// accepts any group (disables the mismatch check).
func New(agg *aggregation.Map, counters *metrics.Counters, f *filter.Filter, groupID uint32) *Tracker {
	return &Tracker{agg: agg, counters: counters, filter: f, groupID: groupID}
}

// Observe attaches cookie to the flow matching key's tuple, trying
// INGRESS then EGRESS (per network_events_monitoring.h's
// lookup_and_update_existing_flow_network_events loop). eventGroupID
// is the sampling group the event metadata carries; if it doesn't
// match the tracker's configured group the event is dropped as a
// mismatch. The event is then re-evaluated against C3 (drop reason 0,
// since network events carry none), per
// network_events_monitoring.h:102's check_and_do_flow_filtering call.
// tcpFlags/pktLen/now describe the underlying skb, used both for the
// filter check and, on a double miss, to seed a newly inserted flow
// exactly as network_events_monitoring.h's new_flow literal does
// (packets=1, bytes=len, start/end_mono_time_ts=now). If neither
// direction has a matching flow yet, a new one is inserted with
// direction=INGRESS.
func (t *Tracker) Observe(lane int, key flow.Key, eventGroupID uint32, cookie [flow.CookieLen]byte, tcpFlags uint16, pktLen uint32, now time.Time) {
	if t.groupID != 0 && eventGroupID != t.groupID {
		if t.counters != nil {
			t.counters.NetworkEventsErrGroupIDMismatch.Inc()
		}
		return
	}
	if t.filter != nil && !t.filter.Evaluate(key, tcpFlags, 0) {
		return
	}

	nowNanos := uint64(now.UnixNano())

	for _, dir := range [2]flow.Direction{flow.Ingress, flow.Egress} {
		dk := key.WithDirection(dir)
		if t.agg.MutateAny(lane, dk, func(m *flow.Metrics) {
			m.EndMonoTimeTs = nowNanos
			m.AddCookie(cookie)
		}) {
			t.incGood()
			return
		}
	}

	fresh := flow.Metrics{
		Packets:         1,
		Bytes:           uint64(pktLen),
		StartMonoTimeTs: nowNanos,
		EndMonoTimeTs:   nowNanos,
		Flags:           tcpFlags,
	}
	fresh.AddCookie(cookie)
	t.agg.Insert(lane, key.WithDirection(flow.Ingress), fresh)
	t.incGood()
}

func (t *Tracker) incGood() {
	if t.counters == nil {
		return
	}
	t.counters.NetworkEventsGood.Inc()
}
