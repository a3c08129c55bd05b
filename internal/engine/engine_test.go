package engine

import (
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/decoder"
	"github.com/netobserv/netobserv-agent/internal/filter"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/sampler"
)

func buildSYN(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: net.IPv4(10, 0, 0, 1), DstIP: net.IPv4(10, 0, 0, 2)}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, Seq: 500, SYN: true, Window: 1024}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func TestProcessPacketAggregatesFlow(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	e := New(Config{
		Decoder: decoder.NewDecoder(),
		Sampler: sampler.New(0, 1),
		Filter:  filter.New(nil),
		Map:     agg,
		Now:     func() time.Time { return time.Unix(0, 1000) },
	})

	data := buildSYN(t)
	if err := e.ProcessPacket(0, data, 4, flow.Egress); err != nil {
		t.Fatalf("ProcessPacket: %v", err)
	}

	var k flow.Key
	k.SetIPv4([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	k.SrcPort, k.DstPort = 40000, 80
	k.TransportProtocol = flow.ProtoTCP
	k.IfIndex = 4
	k.Direction = flow.Egress

	rec, ok := agg.Evict(0, k)
	if !ok {
		t.Fatalf("expected flow to be aggregated")
	}
	if rec.Packets != 1 || rec.Bytes != uint64(len(data)) {
		t.Fatalf("unexpected metrics: %+v", rec)
	}
}

func TestProcessPacketFilteredOut(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	e := New(Config{
		Decoder: decoder.NewDecoder(),
		Sampler: sampler.New(0, 1),
		Filter:  filter.New([]filter.Rule{{Action: filter.Deny, DstPort: 80}}),
		Map:     agg,
	})

	err := e.ProcessPacket(0, buildSYN(t), 4, flow.Egress)
	if err != flow.ErrFilteredOut {
		t.Fatalf("err = %v, want ErrFilteredOut", err)
	}
}
