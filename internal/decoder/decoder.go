// Package decoder implements C1, the packet parser: it turns a raw
// Ethernet frame into a (partial) flow.Key plus the per-packet TCP
// flags and DSCP observed on that packet. Adapted from the teacher's
// gopacket-based packet decoder, generalized from a human-readable
// PacketInfo into the byte-packed flow.Key the rest of the engine
// keys its maps on.
package decoder

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/netobserv/netobserv-agent/internal/flow"
)

// Parsed is C1's output: a partial flow.Key (direction and if_index are
// filled in by the caller, who knows which interface/direction this
// packet arrived on) plus the per-packet observations the aggregation
// map folds into a flow's running Metrics.
type Parsed struct {
	Key    flow.Key
	Flags  uint16
	DSCP   uint8
	Length int // full on-wire frame length, used for byte accounting
}

// Decoder parses Ethernet/IPv4/IPv6/TCP/UDP/SCTP/ICMP headers.
type Decoder struct{}

// NewDecoder creates a new packet decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode parses data (a raw Ethernet frame) into a Parsed packet. All
// header accesses are bounded by gopacket's own truncation detection;
// on any out-of-bounds read Decode returns flow.ErrDiscard and the
// packet must be skipped from accounting, not treated as a hard error.
// An unrecognized ethertype yields a Parsed with zeroed L3/L4 fields —
// the packet is still counted under its L2 identity, per spec §4.1.
func (d *Decoder) Decode(data []byte) (*Parsed, error) {
	if len(data) < 14 {
		return nil, flow.ErrDiscard
	}

	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)

	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, flow.ErrDiscard
	}
	eth, ok := ethLayer.(*layers.Ethernet)
	if !ok {
		return nil, flow.ErrDiscard
	}

	p := &Parsed{Length: len(data)}
	copy(p.Key.SrcMAC[:], eth.SrcMAC)
	copy(p.Key.DstMAC[:], eth.DstMAC)
	p.Key.EthProtocol = uint16(eth.EthernetType)

	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		if err := d.decodeIPv4(packet, p); err != nil {
			return nil, err
		}
	case layers.EthernetTypeIPv6:
		if err := d.decodeIPv6(packet, p); err != nil {
			return nil, err
		}
	default:
		// Unknown ethertype: L3/L4 fields stay zeroed, packet still counted.
	}

	return p, nil
}

func (d *Decoder) decodeIPv4(packet gopacket.Packet, p *Parsed) error {
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		return flow.ErrDiscard
	}
	ip, ok := ipLayer.(*layers.IPv4)
	if !ok {
		return flow.ErrDiscard
	}
	var src, dst [4]byte
	copy(src[:], ip.SrcIP.To4())
	copy(dst[:], ip.DstIP.To4())
	p.Key.SetIPv4(src, dst)
	p.Key.TransportProtocol = uint8(ip.Protocol)
	p.DSCP = ip.TOS >> 2

	return d.decodeTransport(packet, p)
}

func (d *Decoder) decodeIPv6(packet gopacket.Packet, p *Parsed) error {
	ipLayer := packet.Layer(layers.LayerTypeIPv6)
	if ipLayer == nil {
		return flow.ErrDiscard
	}
	ip, ok := ipLayer.(*layers.IPv6)
	if !ok {
		return flow.ErrDiscard
	}
	var src, dst [16]byte
	copy(src[:], ip.SrcIP.To16())
	copy(dst[:], ip.DstIP.To16())
	p.Key.SetIPv6(src, dst)
	p.Key.TransportProtocol = uint8(ip.NextHeader)
	p.DSCP = ip.TrafficClass >> 2

	return d.decodeTransport(packet, p)
}

// decodeTransport fills ports and TCP flags. A TCP/UDP/SCTP header that
// gopacket failed to decode (a truncated frame) yields flow.ErrDiscard.
func (d *Decoder) decodeTransport(packet gopacket.Packet, p *Parsed) error {
	switch p.Key.TransportProtocol {
	case flow.ProtoTCP:
		if tcpLayer := packet.Layer(layers.LayerTypeTCP); tcpLayer != nil {
			if tcp, ok := tcpLayer.(*layers.TCP); ok {
				p.Key.SrcPort = uint16(tcp.SrcPort)
				p.Key.DstPort = uint16(tcp.DstPort)
				p.Flags = tcpFlags(tcp)
			}
		} else if packet.ErrorLayer() != nil {
			return flow.ErrDiscard
		}
	case flow.ProtoUDP:
		if udpLayer := packet.Layer(layers.LayerTypeUDP); udpLayer != nil {
			if udp, ok := udpLayer.(*layers.UDP); ok {
				p.Key.SrcPort = uint16(udp.SrcPort)
				p.Key.DstPort = uint16(udp.DstPort)
			}
		} else if packet.ErrorLayer() != nil {
			return flow.ErrDiscard
		}
	case flow.ProtoSCTP:
		if sctpLayer := packet.Layer(layers.LayerTypeSCTP); sctpLayer != nil {
			if sctp, ok := sctpLayer.(*layers.SCTP); ok {
				p.Key.SrcPort = uint16(sctp.SrcPort)
				p.Key.DstPort = uint16(sctp.DstPort)
			}
		} else if packet.ErrorLayer() != nil {
			return flow.ErrDiscard
		}
	case flow.ProtoICMPv4, flow.ProtoICMPv6:
		// No ports for ICMP; the protocol field alone identifies the flow.
	}
	return nil
}

// tcpFlags ORs the observed TCP flag bits into spec §3's bit layout.
func tcpFlags(tcp *layers.TCP) uint16 {
	var f uint16
	if tcp.FIN {
		f |= flow.FlagFIN
	}
	if tcp.SYN {
		f |= flow.FlagSYN
	}
	if tcp.RST {
		f |= flow.FlagRST
	}
	if tcp.PSH {
		f |= flow.FlagPSH
	}
	if tcp.ACK {
		f |= flow.FlagACK
	}
	if tcp.URG {
		f |= flow.FlagURG
	}
	if tcp.ECE {
		f |= flow.FlagECE
	}
	if tcp.CWR {
		f |= flow.FlagCWR
	}
	return f
}
