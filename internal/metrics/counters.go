// Package metrics exposes the userspace-visible counters from spec §6
// as Prometheus counters, grounded on the Prometheus client usage seen
// throughout the example corpus (runZeroInc-sockstats's go-tcpinfo
// exporter, DataDog-datadog-agent's netflow aggregator). Each counter
// is specified as "u64, per-CPU, summed at read time" in spec §6; a
// single prometheus.Counter already accumulates atomically across
// goroutines in one process, so no per-shard counter split is needed
// here — see DESIGN.md.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Counters holds the full counter table from spec §6.
type Counters struct {
	HashmapFlowsDropped             prometheus.Counter
	HashmapFailUpdateDNS            prometheus.Counter
	NetworkEventsGood               prometheus.Counter
	NetworkEventsErr                prometheus.Counter
	NetworkEventsErrGroupIDMismatch prometheus.Counter
	NetworkEventsErrUpdateMapFlows  prometheus.Counter

	// RingDropped and MapOccupancy are ambient additions (not in spec §6's
	// table verbatim) surfacing ring/map health the same way the
	// teacher's server.go reportStats() narrates packetsReceived/
	// packetsDecoded/packetsWritten periodically.
	RingDropped  prometheus.Counter
	MapOccupancy *prometheus.GaugeVec
}

// NewCounters creates and registers the counter table against reg. A
// nil registry uses prometheus.DefaultRegisterer.
func NewCounters(reg prometheus.Registerer) *Counters {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Counters{
		HashmapFlowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "hashmap_flows_dropped_total",
			Help:      "Flows dropped because their shard was full and the direct-flow ring could not take the overflow record.",
		}),
		HashmapFailUpdateDNS: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "hashmap_fail_update_dns_total",
			Help:      "DNS annotations that could not attach to any flow.",
		}),
		NetworkEventsGood: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "network_events_good_total",
			Help:      "Network-event cookies successfully attached to a flow.",
		}),
		NetworkEventsErr: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "network_events_err_total",
			Help:      "Network events dropped due to missing skb/metadata/group.",
		}),
		NetworkEventsErrGroupIDMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "network_events_err_groupid_mismatch_total",
			Help:      "Network events dropped due to sampling group id mismatch.",
		}),
		NetworkEventsErrUpdateMapFlows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "network_events_err_update_map_flows_total",
			Help:      "Network events that failed to update the aggregation map.",
		}),
		RingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netobserv_agent",
			Name:      "ring_dropped_total",
			Help:      "Overflow records dropped because the direct-flow ring was full.",
		}),
		MapOccupancy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netobserv_agent",
			Name:      "aggregation_map_occupancy",
			Help:      "Current entry count per aggregation map shard.",
		}, []string{"shard"}),
	}

	reg.MustRegister(
		c.HashmapFlowsDropped,
		c.HashmapFailUpdateDNS,
		c.NetworkEventsGood,
		c.NetworkEventsErr,
		c.NetworkEventsErrGroupIDMismatch,
		c.NetworkEventsErrUpdateMapFlows,
		c.RingDropped,
		c.MapOccupancy,
	)

	return c
}

// NewUnregisteredCounters builds a Counters struct registered against a
// fresh private registry instead of the default one, for tests that
// want isolated metric state.
func NewUnregisteredCounters() *Counters {
	return NewCounters(prometheus.NewRegistry())
}
