// Package flow defines the wire-stable flow identifier and metrics types
// shared by every stage of the accounting pipeline, from packet parsing
// through userspace reassembly.
package flow

import (
	"fmt"
	"net"
)

// Direction identifies which way a packet crossed an interface.
type Direction uint8

const (
	// Unknown is the zero value so a filter.Rule{} (or any Key built
	// without an explicit direction) defaults to "don't care" rather
	// than silently meaning ingress.
	Unknown Direction = 0
	Ingress Direction = 1
	Egress  Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Ingress:
		return "ingress"
	case Egress:
		return "egress"
	case Unknown:
		return "unknown"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// Transport protocol numbers, per IANA assigned numbers. Only the
// protocols this engine accounts for are named.
const (
	ProtoICMPv4 uint8 = 1
	ProtoTCP    uint8 = 6
	ProtoUDP    uint8 = 17
	ProtoSCTP   uint8 = 132
	ProtoICMPv6 uint8 = 58
)

// ip4in6Prefix is the ::ffff:0:0/96 prefix IPv4 addresses are mapped
// under, mirroring the ip4in6 constant in the original eBPF sources.
var ip4in6Prefix = [12]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xff, 0xff}

// Key is the flow identifier: the 5-tuple plus MACs, ethertype,
// interface and direction. It is a fixed-size comparable struct so it
// can be used directly as a Go map key, the same role flow_id_v plays
// as a BPF_MAP_TYPE_PERCPU_HASH key in the original implementation.
type Key struct {
	EthProtocol       uint16
	SrcMAC            [6]byte
	DstMAC            [6]byte
	SrcIP             [16]byte
	DstIP             [16]byte
	SrcPort           uint16
	DstPort           uint16
	TransportProtocol uint8
	IfIndex           uint32
	Direction         Direction
}

// WithDirection returns a copy of k with Direction replaced, used when
// probing both directions against the aggregation map (C8/C9).
func (k Key) WithDirection(d Direction) Key {
	k.Direction = d
	return k
}

// Reversed swaps source and destination MAC/IP/port, used by the RTT
// tracker to look up the forward-direction SYN record from an ACK.
func (k Key) Reversed() Key {
	k.SrcMAC, k.DstMAC = k.DstMAC, k.SrcMAC
	k.SrcIP, k.DstIP = k.DstIP, k.SrcIP
	k.SrcPort, k.DstPort = k.DstPort, k.SrcPort
	return k
}

// Directionless returns a copy of k with Direction zeroed, stripping it
// out of the comparison entirely so a query and its reply (traveling in
// opposite directions) hash to the same DNS correlation key (spec §4.6).
func (k Key) Directionless() Key {
	k.Direction = 0
	return k
}

// SetIPv4 populates SrcIP/DstIP from 4-byte addresses using the
// ::ffff:0:0/96 mapping spec.md §3 requires.
func (k *Key) SetIPv4(src, dst [4]byte) {
	copy(k.SrcIP[:12], ip4in6Prefix[:])
	copy(k.SrcIP[12:], src[:])
	copy(k.DstIP[:12], ip4in6Prefix[:])
	copy(k.DstIP[12:], dst[:])
}

// SetIPv6 populates SrcIP/DstIP from 16-byte addresses directly.
func (k *Key) SetIPv6(src, dst [16]byte) {
	k.SrcIP = src
	k.DstIP = dst
}

// IPFromBytes renders a 16-byte key address as a net.IP, unwrapping
// the ::ffff:0:0/96 IPv4 mapping back to its 4-byte form for display.
func IPFromBytes(raw [16]byte) net.IP {
	ip := net.IP(raw[:])
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}
