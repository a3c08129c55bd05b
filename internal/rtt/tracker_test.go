package rtt

import (
	"testing"
	"time"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/flow"
)

func TestObserveIngressACKComputesRTT(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	tr := New(agg)

	var egressKey flow.Key
	egressKey.SetIPv4([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	egressKey.SrcPort, egressKey.DstPort = 40000, 80
	egressKey.TransportProtocol = flow.ProtoTCP
	egressKey.Direction = flow.Egress

	_ = agg.UpdateOrInsert(0, egressKey, aggregation.PacketUpdate{Length: 1, TimeNanos: 1})

	synAt := time.Unix(0, 1000)
	tr.ObserveEgressSYN(egressKey, 100, synAt)

	ingressKey := egressKey.Reversed()
	ingressKey.Direction = flow.Ingress
	ackAt := time.Unix(0, 6000)
	tr.ObserveIngressACK(0, ingressKey, 101, ackAt)

	rec, ok := agg.Evict(0, egressKey)
	if !ok {
		t.Fatalf("expected flow to exist")
	}
	if rec.FlowRTT != 5000 {
		t.Fatalf("flow_rtt = %d, want 5000", rec.FlowRTT)
	}
}

func TestObserveIngressACKWithoutMatchingSYNIsNoop(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	tr := New(agg)

	var k flow.Key
	k.SetIPv4([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	k.Direction = flow.Ingress
	tr.ObserveIngressACK(0, k, 55, time.Unix(0, 1))
}
