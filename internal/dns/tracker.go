// Package dns implements C6, the DNS Tracker. It observes UDP/53
// traffic, correlates request/response pairs by (tuple, dns.id), and
// annotates the owning flow's DNSRecord with latency once a response
// arrives. Parsing is grounded on gopacket's layers.DNS, the same
// decoding library the teacher's decoder package already uses for
// Ethernet/IP/TCP/UDP. The in-flight query table uses a bounded LRU
// (hashicorp/golang-lru, the cache library DataDog-datadog-agent's
// manifest in the example pack also pulls in) rather than a plain
// map, since a query that never gets a response would otherwise sit
// forever; see DESIGN.md.
package dns

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/metrics"
)

// maxPendingQueries bounds the in-flight query table; the oldest
// unanswered query is evicted once this many are outstanding.
const maxPendingQueries = 4096

// pendingKey identifies an in-flight DNS query.
type pendingKey struct {
	key flow.Key
	id  uint16
}

type pendingQuery struct {
	sentAt time.Time
	key    flow.Key // the query packet's own flow key
}

// Tracker correlates DNS requests and responses and annotates flows.
type Tracker struct {
	mu      sync.Mutex
	pending *lru.Cache[pendingKey, pendingQuery]

	agg      *aggregation.Map
	counters *metrics.Counters

	// secondary holds DNS annotations that arrived before the owning
	// flow existed in the aggregation map, keyed by the
	// direction-stripped tuple, per spec §4.6. C10 joins these during
	// reassembly.
	secondary  sync.Mutex
	secondaryM map[flow.Key]flow.DNSRecord
}

// New creates a Tracker attached to agg for annotation.
func New(agg *aggregation.Map, counters *metrics.Counters) *Tracker {
	pending, err := lru.New[pendingKey, pendingQuery](maxPendingQueries)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// maxPendingQueries never is.
		panic(err)
	}
	return &Tracker{
		pending:    pending,
		agg:        agg,
		counters:   counters,
		secondaryM: make(map[flow.Key]flow.DNSRecord),
	}
}

const dnsPort = 53

// Observe inspects a decoded packet for DNS/53 traffic. now is the
// monotonic observation time used to compute latency on responses.
// lane is the shard the primary flow lives (or would live) on.
func (t *Tracker) Observe(lane int, key flow.Key, packet gopacket.Packet, now time.Time) {
	if key.SrcPort != dnsPort && key.DstPort != dnsPort {
		return
	}
	dnsLayer := packet.Layer(layers.LayerTypeDNS)
	if dnsLayer == nil {
		return
	}
	msg, ok := dnsLayer.(*layers.DNS)
	if !ok {
		return
	}

	if !msg.QR {
		t.recordQuery(key, msg.ID, now)
		return
	}
	t.resolveResponse(lane, key, msg, now)
}

func (t *Tracker) recordQuery(key flow.Key, id uint16, now time.Time) {
	pk := pendingKey{key: key.Directionless(), id: id}
	t.mu.Lock()
	t.pending.Add(pk, pendingQuery{sentAt: now, key: key})
	t.mu.Unlock()
}

func (t *Tracker) resolveResponse(lane int, key flow.Key, msg *layers.DNS, now time.Time) {
	// The response travels in the opposite direction of the query, so
	// join against the reversed tuple (server->client becomes
	// client->server), directionless to match recordQuery's key.
	pk := pendingKey{key: key.Reversed().Directionless(), id: msg.ID}

	t.mu.Lock()
	pend, ok := t.pending.Get(pk)
	if ok {
		t.pending.Remove(pk)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	rec := flow.DNSRecord{
		ID:        msg.ID,
		Flags:     dnsFlagsOf(msg),
		LatencyNs: uint64(now.Sub(pend.sentAt).Nanoseconds()),
	}
	if msg.ResponseCode != layers.DNSResponseCodeNoErr {
		rec.Errno = int32(msg.ResponseCode)
	}

	// The annotation belongs to the query's flow.
	applied := t.agg.MutateAny(lane, pend.key, func(m *flow.Metrics) {
		m.DNSRecord = rec
	})
	if applied {
		return
	}

	// Target flow not yet in C4: stash in the secondary map for C10 to
	// join at reassembly time, per spec §4.6.
	t.secondary.Lock()
	t.secondaryM[pk.key] = rec
	t.secondary.Unlock()
	if t.counters != nil {
		t.counters.HashmapFailUpdateDNS.Inc()
	}
}

func dnsFlagsOf(msg *layers.DNS) uint16 {
	var f uint16
	if msg.AA {
		f |= 1 << 0
	}
	if msg.TC {
		f |= 1 << 1
	}
	if msg.RD {
		f |= 1 << 2
	}
	if msg.RA {
		f |= 1 << 3
	}
	return f
}

// TakeSecondary removes and returns the secondary-map DNS annotation
// for the direction-stripped key, if any, for C10's join-on-output.
func (t *Tracker) TakeSecondary(key flow.Key) (flow.DNSRecord, bool) {
	dk := key.Directionless()
	t.secondary.Lock()
	defer t.secondary.Unlock()
	rec, ok := t.secondaryM[dk]
	if ok {
		delete(t.secondaryM, dk)
	}
	return rec, ok
}
