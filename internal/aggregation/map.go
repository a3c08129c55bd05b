// Package aggregation implements C4, the Aggregation Map: the sharded
// hash map that holds one flow.Metrics per flow.Key, mirroring the
// BPF_MAP_TYPE_PERCPU_HASH `aggregated_flows` map from the original
// implementation. Sharding replaces "per-CPU" with "per-lane": each
// lane is a mutex-guarded Go map, selected by the caller the same way
// a BPF program is pinned to the CPU it runs on. Side channels
// (DNS/RTT/drops/network-events) can touch the same shard from a
// different goroutine concurrently with the primary datapath; every
// lookup, insert and mutation of a shard happens under that shard's
// mutex, so a concurrent insert cannot slip in between the lookup and
// the insert and no insert-conflict retry path exists.
package aggregation

import (
	"runtime"
	"strconv"
	"sync"

	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/metrics"
	"github.com/netobserv/netobserv-agent/internal/ringbuf"
)

// shard is one lane's mutex-guarded flow table.
type shard struct {
	mu sync.Mutex
	m  map[flow.Key]*flow.Metrics
}

// Map is the sharded aggregation map.
type Map struct {
	shards   []*shard
	capacity int // per-shard capacity; 0 means unbounded
	ring     *ringbuf.Ring
	counters *metrics.Counters
}

// Config configures a Map.
type Config struct {
	// Lanes is the shard count. Zero defaults to runtime.GOMAXPROCS(0),
	// matching the per-CPU-array sizing of the original map.
	Lanes int
	// CapacityPerLane bounds entries per shard; zero is unbounded.
	CapacityPerLane int
	// Ring receives overflow/race records the map itself cannot hold.
	Ring *ringbuf.Ring
	// Counters records HASHMAP_FLOWS_DROPPED and map occupancy.
	Counters *metrics.Counters
}

// New builds a Map per cfg.
func New(cfg Config) *Map {
	lanes := cfg.Lanes
	if lanes <= 0 {
		lanes = runtime.GOMAXPROCS(0)
	}
	m := &Map{
		shards:   make([]*shard, lanes),
		capacity: cfg.CapacityPerLane,
		ring:     cfg.Ring,
		counters: cfg.Counters,
	}
	for i := range m.shards {
		m.shards[i] = &shard{m: make(map[flow.Key]*flow.Metrics)}
	}
	return m
}

// Lanes returns the shard count.
func (m *Map) Lanes() int { return len(m.shards) }

func (m *Map) shardFor(lane int) *shard {
	return m.shards[lane%len(m.shards)]
}

// PacketUpdate is a single parsed packet's contribution to a flow,
// passed to UpdateOrInsert per spec §4.4.
type PacketUpdate struct {
	Length    uint32
	Flags     uint16
	DSCP      uint8
	TimeNanos uint64
}

// UpdateOrInsert applies a packet observation to the flow keyed by
// key, on the shard selected by lane. On a hit the existing entry is
// updated in place (packets++, bytes+=len, end_ts=now, flags|=,
// dscp=latest). On a miss a fresh Metrics is created and inserted.
//
// The lookup and the insert run under the same shard lock, so a
// concurrent side-channel writer on the same shard cannot insert the
// key in between; there is no separate insert-conflict retry. If the
// shard is at CapacityPerLane, the
// new flow is shipped to the direct-flow ring instead of being
// dropped outright; only if the ring itself is full is the flow lost,
// counted as HASHMAP_FLOWS_DROPPED.
func (m *Map) UpdateOrInsert(lane int, key flow.Key, pkt PacketUpdate) error {
	s := m.shardFor(lane)

	s.mu.Lock()
	if existing, ok := s.m[key]; ok {
		applyPacket(existing, pkt)
		s.mu.Unlock()
		return nil
	}

	if m.capacity > 0 && len(s.m) >= m.capacity {
		s.mu.Unlock()
		return m.overflow(key, pkt)
	}

	fresh := newMetrics(pkt)
	s.m[key] = fresh
	s.mu.Unlock()
	return nil
}

// overflow builds a standalone Metrics for key/pkt and tries to ship
// it through the ring rather than drop it silently, since the shard
// had no room. This is the only path that writes to the ring;
// side-channel inserts go through Insert instead.
func (m *Map) overflow(key flow.Key, pkt PacketUpdate) error {
	fresh := newMetrics(pkt)
	rec := flow.Record{Key: key, Metrics: *fresh, Source: flow.SourceDirectFromRing}
	if m.ring != nil && m.ring.TryWrite(rec) {
		return nil
	}
	if m.counters != nil {
		m.counters.HashmapFlowsDropped.Inc()
	}
	return flow.ErrMapFull
}

func newMetrics(pkt PacketUpdate) *flow.Metrics {
	return &flow.Metrics{
		Packets:         1,
		Bytes:           uint64(pkt.Length),
		StartMonoTimeTs: pkt.TimeNanos,
		EndMonoTimeTs:   pkt.TimeNanos,
		Flags:           pkt.Flags,
		DSCP:            pkt.DSCP,
	}
}

func applyPacket(m *flow.Metrics, pkt PacketUpdate) {
	m.Packets++
	m.Bytes += uint64(pkt.Length)
	if pkt.TimeNanos > m.EndMonoTimeTs {
		m.EndMonoTimeTs = pkt.TimeNanos
		m.DSCP = pkt.DSCP
	}
	if m.StartMonoTimeTs == 0 || pkt.TimeNanos < m.StartMonoTimeTs {
		m.StartMonoTimeTs = pkt.TimeNanos
	}
	m.Flags |= pkt.Flags
}

// Mutate runs fn against the existing entry for key on the shard
// selected by lane, under the shard lock, returning false if no entry
// exists. Side-channel trackers (DNS/RTT/drops/network-events) use
// this to annotate an already-aggregated flow without a full
// packet-shaped update.
func (m *Map) Mutate(lane int, key flow.Key, fn func(*flow.Metrics)) bool {
	s := m.shardFor(lane)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.m[key]
	if !ok {
		return false
	}
	fn(existing)
	return true
}

// MutateAny tries lane first, then scans every other shard for key.
// The RTT and drops trackers don't always know which lane produced a
// flow (the ACK side of a connection may arrive on a different lane
// than the SYN side), so they need this broader lookup; see spec §4.7
// and §4.8.
func (m *Map) MutateAny(lane int, key flow.Key, fn func(*flow.Metrics)) bool {
	if m.Mutate(lane, key, fn) {
		return true
	}
	for i, s := range m.shards {
		if i == lane%len(m.shards) {
			continue
		}
		s.mu.Lock()
		existing, ok := s.m[key]
		if ok {
			fn(existing)
		}
		s.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// Insert force-inserts a fully-formed Metrics (used by the drops
// tracker's synthetic-flow-on-miss path from spec §4.8). It does not
// consult capacity/ring overflow since it is a side-channel path, not
// the primary datapath.
func (m *Map) Insert(lane int, key flow.Key, metrics flow.Metrics) {
	s := m.shardFor(lane)
	s.mu.Lock()
	s.m[key] = &metrics
	s.mu.Unlock()
}

// Evict removes and returns the entry for key on shard lane, if present.
func (m *Map) Evict(lane int, key flow.Key) (flow.Metrics, bool) {
	s := m.shardFor(lane)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.m[key]
	if !ok {
		return flow.Metrics{}, false
	}
	delete(s.m, key)
	return *existing, true
}

// Snapshot calls fn for every (key, copy-of-metrics) pair across all
// shards, holding each shard's lock while fn runs on its entries. fn
// receives a copy, so changes to it do not reach the map.
func (m *Map) Snapshot(fn func(lane int, key flow.Key, metrics flow.Metrics)) {
	for i, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.m {
			fn(i, k, *v)
		}
		s.mu.Unlock()
	}
}

// EvictMatching removes every entry across all shards for which
// shouldEvict returns true, merges any entries that share the same
// Key across different shards per flow.Merge's tie-break rules (spec
// §4.4/§4.10), and returns one Record per distinct Key.
func (m *Map) EvictMatching(shouldEvict func(key flow.Key, metrics flow.Metrics) bool) []flow.Record {
	merged := make(map[flow.Key]flow.Metrics)
	for _, s := range m.shards {
		s.mu.Lock()
		for k, v := range s.m {
			if !shouldEvict(k, *v) {
				continue
			}
			if existing, ok := merged[k]; ok {
				merged[k] = flow.Merge(existing, *v)
			} else {
				merged[k] = *v
			}
			delete(s.m, k)
		}
		s.mu.Unlock()
	}

	out := make([]flow.Record, 0, len(merged))
	for k, v := range merged {
		out = append(out, flow.Record{Key: k, Metrics: v, Source: flow.SourceEvictedFromMap})
	}
	return out
}

// ReportOccupancy publishes per-shard entry counts to the configured
// counters, mirroring the teacher's reportStats ticker in shape.
func (m *Map) ReportOccupancy() {
	if m.counters == nil {
		return
	}
	for i, s := range m.shards {
		s.mu.Lock()
		n := len(s.m)
		s.mu.Unlock()
		m.counters.MapOccupancy.WithLabelValues(strconv.Itoa(i)).Set(float64(n))
	}
}
