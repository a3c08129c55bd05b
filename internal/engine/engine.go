// Package engine wires the datapath components (C1-C4, plus the
// inline C6/C7 side channels) into a single per-packet entry point,
// the pure-Go stand-in for the original program's TC hook
// flow_monitor(). Its shape — sample, decode, filter, annotate,
// aggregate — follows flow_monitor() in original_source/bpf/flows.c.
package engine

import (
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/decoder"
	"github.com/netobserv/netobserv-agent/internal/dns"
	"github.com/netobserv/netobserv-agent/internal/filter"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/rtt"
	"github.com/netobserv/netobserv-agent/internal/sampler"
)

// Config wires the components an Engine needs.
type Config struct {
	Decoder *decoder.Decoder
	Sampler *sampler.Sampler
	Filter  *filter.Filter
	Map     *aggregation.Map
	DNS     *dns.Tracker // nil disables C6
	RTT     *rtt.Tracker // nil disables C7

	// Now returns the current monotonic-ish observation time; overridable
	// in tests. Defaults to time.Now.
	Now func() time.Time
}

// Engine processes one packet at a time through C1-C4.
type Engine struct {
	cfg Config
}

// New builds an Engine from cfg.
func New(cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Engine{cfg: cfg}
}

// ProcessPacket runs data through C2 (sample) -> C1 (parse) -> C3
// (filter) -> C6/C7 (inline annotation) -> C4 (aggregate), on the
// shard identified by lane (the logical CPU/goroutine-lane the
// caller is pinned to). ifIndex and direction are supplied by the
// caller since C1 only produces the L2-L4 portion of the key.
func (e *Engine) ProcessPacket(lane int, data []byte, ifIndex uint32, direction flow.Direction) error {
	if !e.cfg.Sampler.Admit(lane) {
		return nil
	}

	parsed, err := e.cfg.Decoder.Decode(data)
	if err != nil {
		return err
	}
	parsed.Key.IfIndex = ifIndex
	parsed.Key.Direction = direction

	if !e.cfg.Filter.Evaluate(parsed.Key, parsed.Flags, 0) {
		return flow.ErrFilteredOut
	}

	now := e.cfg.Now()

	if e.cfg.DNS != nil {
		packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
		e.cfg.DNS.Observe(lane, parsed.Key, packet, now)
	}

	if e.cfg.RTT != nil && parsed.Key.TransportProtocol == flow.ProtoTCP {
		e.observeRTT(lane, parsed, direction, data, now)
	}

	return e.cfg.Map.UpdateOrInsert(lane, parsed.Key, aggregation.PacketUpdate{
		Length:    uint32(parsed.Length),
		Flags:     parsed.Flags,
		DSCP:      parsed.DSCP,
		TimeNanos: uint64(now.UnixNano()),
	})
}

func (e *Engine) observeRTT(lane int, parsed *decoder.Parsed, direction flow.Direction, data []byte, now time.Time) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if tcpLayer == nil {
		return
	}
	tcp, ok := tcpLayer.(*layers.TCP)
	if !ok {
		return
	}

	switch {
	case direction == flow.Egress && tcp.SYN:
		e.cfg.RTT.ObserveEgressSYN(parsed.Key, tcp.Seq, now)
	case direction == flow.Ingress && tcp.ACK:
		e.cfg.RTT.ObserveIngressACK(lane, parsed.Key, tcp.Ack, now)
	}
}
