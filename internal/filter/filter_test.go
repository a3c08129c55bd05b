package filter

import (
	"net"
	"testing"

	"github.com/netobserv/netobserv-agent/internal/flow"
)

func TestEmptyFilterAcceptsEverything(t *testing.T) {
	f := New(nil)
	if !f.Evaluate(flow.Key{}, 0, 0) {
		t.Fatalf("empty filter should accept")
	}
}

func TestDenyRuleMatchesDstPort(t *testing.T) {
	f := New([]Rule{
		{Action: Deny, DstPort: 22},
	})

	k := flow.Key{DstPort: 22}
	if f.Evaluate(k, 0, 0) {
		t.Fatalf("expected deny for dst port 22")
	}

	k2 := flow.Key{DstPort: 80}
	if !f.Evaluate(k2, 0, 0) {
		t.Fatalf("expected accept for dst port 80 (no matching rule)")
	}
}

func TestFirstMatchingRuleWins(t *testing.T) {
	f := New([]Rule{
		{Action: Accept, DstPort: 443},
		{Action: Deny, TransportProtocol: flow.ProtoTCP},
	})

	k := flow.Key{DstPort: 443, TransportProtocol: flow.ProtoTCP}
	if !f.Evaluate(k, 0, 0) {
		t.Fatalf("expected first rule (accept) to win")
	}
}

func TestSrcIPRuleMatches(t *testing.T) {
	var k flow.Key
	k.SetIPv4([4]byte{10, 0, 0, 5}, [4]byte{10, 0, 0, 6})

	f := New([]Rule{
		{Action: Deny, SrcIP: net.IPv4(10, 0, 0, 5).To16()},
	})
	if f.Evaluate(k, 0, 0) {
		t.Fatalf("expected deny matching src ip")
	}
}

func TestMinDropReasonGate(t *testing.T) {
	f := New([]Rule{
		{Action: Deny, MinDropReason: 5},
	})
	if f.Evaluate(flow.Key{}, 0, 3) != true {
		t.Fatalf("drop reason below threshold should not match deny rule")
	}
	if f.Evaluate(flow.Key{}, 0, 5) != false {
		t.Fatalf("drop reason at threshold should match deny rule")
	}
}
