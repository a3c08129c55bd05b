// Package filter implements C3, the flow filter: the sole admission
// gate between C1 (parsing) and C4 (aggregation). It generalizes the
// teacher's qingping.Exporter.matchesFilter single-rule predicate (a
// flat SrcIP/DstIP/DstPort/Protocol struct) into an ordered list of
// allow/deny Rules evaluated over Key fields, TCP flags, and drop
// reason, per spec §4.3.
package filter

import (
	"net"

	"github.com/netobserv/netobserv-agent/internal/flow"
)

// Action is the outcome of a matched Rule.
type Action int

const (
	Accept Action = iota
	Deny
)

// Rule matches a subset of a flow.Key plus observed flags/drop reason.
// A zero-value field in a Rule means "don't care" for that field,
// mirroring the teacher's convention of skipping empty filter fields.
type Rule struct {
	Action Action

	SrcIP             net.IP
	DstIP             net.IP
	SrcPort           uint16
	DstPort           uint16
	TransportProtocol uint8
	IfIndex           uint32
	Direction         flow.Direction // Unknown (the zero value) means "any"

	// FlagsMask/FlagsValue match when (observed & FlagsMask) == FlagsValue.
	FlagsMask  uint16
	FlagsValue uint16

	// MinDropReason matches drop events with reason >= MinDropReason.
	// Zero means "don't care about drop reason".
	MinDropReason uint32
}

func ipMatches(rule net.IP, keyIP [16]byte) bool {
	if rule == nil {
		return true
	}
	return net.IP(keyIP[:]).Equal(rule)
}

func (r Rule) matches(k flow.Key, flags uint16, dropReason uint32) bool {
	if !ipMatches(r.SrcIP, k.SrcIP) {
		return false
	}
	if !ipMatches(r.DstIP, k.DstIP) {
		return false
	}
	if r.SrcPort != 0 && r.SrcPort != k.SrcPort {
		return false
	}
	if r.DstPort != 0 && r.DstPort != k.DstPort {
		return false
	}
	if r.TransportProtocol != 0 && r.TransportProtocol != k.TransportProtocol {
		return false
	}
	if r.IfIndex != 0 && r.IfIndex != k.IfIndex {
		return false
	}
	if r.Direction != flow.Unknown && r.Direction != k.Direction {
		return false
	}
	if r.FlagsMask != 0 && (flags&r.FlagsMask) != r.FlagsValue {
		return false
	}
	if r.MinDropReason != 0 && dropReason < r.MinDropReason {
		return false
	}
	return true
}

// Filter evaluates an ordered rule list; the first matching rule wins.
// An empty rule list accepts everything (the default, matching the
// teacher's "empty filter = accept" convention carried over from
// qingping's zero-value fields).
type Filter struct {
	rules []Rule
}

// New builds a Filter from an ordered rule list.
func New(rules []Rule) *Filter {
	return &Filter{rules: rules}
}

// Evaluate returns true if the packet/event should be admitted to
// accounting, false if it should be dropped (flow.ErrFilteredOut).
// dropReason is 0 for the primary datapath path and the channel's
// drop-reason code when re-evaluated for a side channel, per spec §4.3.
func (f *Filter) Evaluate(k flow.Key, flags uint16, dropReason uint32) bool {
	for _, r := range f.rules {
		if r.matches(k, flags, dropReason) {
			return r.Action == Accept
		}
	}
	return true
}
