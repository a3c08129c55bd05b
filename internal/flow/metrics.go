package flow

// TCP flag bit positions within Metrics.Flags, per spec.md §3. These
// intentionally do not match the ad-hoc TCP_FIN_FLAG/TCP_RST_FLAG
// bitmask in the original eBPF sources' flow.h (0x1/0x10) — the
// distilled spec defines its own bit layout and that governs here.
const (
	FlagFIN uint16 = 1 << 0
	FlagSYN uint16 = 1 << 1
	FlagRST uint16 = 1 << 2
	FlagPSH uint16 = 1 << 3
	FlagACK uint16 = 1 << 4
	FlagURG uint16 = 1 << 5
	FlagECE uint16 = 1 << 6
	FlagCWR uint16 = 1 << 7
)

// MaxNetworkEvents is the number of cookie slots retained per flow (K=4).
const MaxNetworkEvents = 4

// CookieLen is the byte length of a single network-event cookie.
const CookieLen = 8

// PktDrops is the drop-accounting substructure of Metrics.
type PktDrops struct {
	Packets         uint32
	Bytes           uint64
	LatestState     uint8
	LatestFlags     uint16
	LatestDropCause uint32
}

// DNSRecord is the DNS-correlation substructure of Metrics.
type DNSRecord struct {
	ID        uint16
	Flags     uint16
	LatencyNs uint64
	Errno     int32
}

// Metrics is the flow value: running packet/byte accounting plus the
// optional side-channel annotations (drops, DNS, RTT, network events).
type Metrics struct {
	Packets          uint32
	Bytes            uint64
	StartMonoTimeTs  uint64
	EndMonoTimeTs    uint64
	Flags            uint16
	DSCP             uint8
	FlowRTT          uint64 // ns, 0 = unknown, latched on first observation
	PktDrops         PktDrops
	DNSRecord        DNSRecord
	NetworkEvents    [MaxNetworkEvents][CookieLen]byte
	NetworkEventsIdx uint8
	Errno            int32 // non-zero only in overflow records
}

// AddCookie appends cookie to the network-events ring, deduplicating
// bytewise against the existing slots and replacing round-robin once
// full, exactly as network_events_monitoring.h's
// lookup_and_update_existing_flow_network_events does.
func (m *Metrics) AddCookie(cookie [CookieLen]byte) {
	for i := 0; i < MaxNetworkEvents; i++ {
		if m.NetworkEvents[i] == cookie {
			return
		}
	}
	m.NetworkEvents[m.NetworkEventsIdx] = cookie
	m.NetworkEventsIdx = (m.NetworkEventsIdx + 1) % MaxNetworkEvents
}

// Record pairs a Key with its Metrics, the unit exchanged between the
// aggregation map / ring and the userspace reassembler.
type Record struct {
	Key     Key
	Metrics Metrics
	// Source distinguishes how this record reached the exporter.
	Source string
}

const (
	SourceEvictedFromMap = "EVICTED_FROM_MAP"
	SourceDirectFromRing = "DIRECT_FROM_RING"
)

// Merge combines two shards' Metrics for the same Key per the tie-break
// rules in spec.md §4.4: start is the min, end is the max, packets and
// bytes sum, flags OR, dscp is the latest observed (race-permissive,
// here resolved by preferring the shard with the later EndMonoTimeTs),
// flow_rtt is the first non-zero value, drop counters are summed, the
// DNS record is the first one with a non-zero id, and network-event
// cookies are union'd.
func Merge(a, b Metrics) Metrics {
	out := a
	out.Packets = a.Packets + b.Packets
	out.Bytes = a.Bytes + b.Bytes

	if b.StartMonoTimeTs != 0 && (out.StartMonoTimeTs == 0 || b.StartMonoTimeTs < out.StartMonoTimeTs) {
		out.StartMonoTimeTs = b.StartMonoTimeTs
	}
	if b.EndMonoTimeTs > out.EndMonoTimeTs {
		out.EndMonoTimeTs = b.EndMonoTimeTs
		out.DSCP = b.DSCP
	}
	out.Flags = a.Flags | b.Flags

	if out.FlowRTT == 0 {
		out.FlowRTT = b.FlowRTT
	}

	out.PktDrops.Packets = a.PktDrops.Packets + b.PktDrops.Packets
	out.PktDrops.Bytes = a.PktDrops.Bytes + b.PktDrops.Bytes
	if b.EndMonoTimeTs >= a.EndMonoTimeTs && (b.PktDrops.Packets > 0 || b.PktDrops.LatestDropCause != 0) {
		out.PktDrops.LatestState = b.PktDrops.LatestState
		out.PktDrops.LatestFlags = b.PktDrops.LatestFlags
		out.PktDrops.LatestDropCause = b.PktDrops.LatestDropCause
	}

	if out.DNSRecord.ID == 0 && b.DNSRecord.ID != 0 {
		out.DNSRecord = b.DNSRecord
	}

	for i := 0; i < MaxNetworkEvents; i++ {
		var zero [CookieLen]byte
		if b.NetworkEvents[i] != zero {
			out.AddCookie(b.NetworkEvents[i])
		}
	}

	if b.Errno != 0 {
		out.Errno = b.Errno
	}

	return out
}
