package netevents

import (
	"testing"
	"time"

	"github.com/netobserv/netobserv-agent/internal/aggregation"
	"github.com/netobserv/netobserv-agent/internal/filter"
	"github.com/netobserv/netobserv-agent/internal/flow"
	"github.com/netobserv/netobserv-agent/internal/metrics"
)

func baseKey() flow.Key {
	var k flow.Key
	k.SetIPv4([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})
	k.SrcPort, k.DstPort = 1000, 2000
	k.TransportProtocol = flow.ProtoTCP
	return k
}

func TestObserveAttachesCookieToExistingFlow(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	tr := New(agg, metrics.NewUnregisteredCounters(), nil, 0)

	egressKey := baseKey().WithDirection(flow.Egress)
	_ = agg.UpdateOrInsert(0, egressKey, aggregation.PacketUpdate{Length: 1, TimeNanos: 1})

	cookie := [flow.CookieLen]byte{1, 2, 3}
	now := time.Unix(0, 9999)
	tr.Observe(0, baseKey(), 0, cookie, flow.FlagACK, 64, now)

	rec, _ := agg.Evict(0, egressKey)
	if rec.NetworkEvents[0] != cookie {
		t.Fatalf("cookie not attached: %+v", rec.NetworkEvents)
	}
	if rec.EndMonoTimeTs != uint64(now.UnixNano()) {
		t.Fatalf("end_mono_time_ts not refreshed: %d", rec.EndMonoTimeTs)
	}
}

func TestObserveInsertsSyntheticFlowOnMiss(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	tr := New(agg, metrics.NewUnregisteredCounters(), nil, 0)

	cookie := [flow.CookieLen]byte{9}
	now := time.Unix(0, 4242)
	tr.Observe(0, baseKey(), 0, cookie, flow.FlagSYN, 80, now)

	rec, ok := agg.Evict(0, baseKey().WithDirection(flow.Ingress))
	if !ok {
		t.Fatalf("expected synthetic ingress flow")
	}
	if rec.NetworkEvents[0] != cookie {
		t.Fatalf("cookie not recorded on synthetic flow: %+v", rec.NetworkEvents)
	}
	if rec.Packets != 1 || rec.Bytes != 80 {
		t.Fatalf("synthetic flow must carry packets=1/bytes=len: %+v", rec)
	}
	if rec.StartMonoTimeTs != uint64(now.UnixNano()) || rec.EndMonoTimeTs != uint64(now.UnixNano()) {
		t.Fatalf("synthetic flow missing timestamps: %+v", rec)
	}
}

func TestObserveDropsOnGroupIDMismatch(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	tr := New(agg, metrics.NewUnregisteredCounters(), nil, 42)

	tr.Observe(0, baseKey(), 7, [flow.CookieLen]byte{1}, 0, 64, time.Unix(0, 1))

	if _, ok := agg.Evict(0, baseKey().WithDirection(flow.Ingress)); ok {
		t.Fatalf("mismatched group id should not create a flow")
	}
}

func TestObserveRespectsFlowFilter(t *testing.T) {
	agg := aggregation.New(aggregation.Config{Lanes: 1})
	f := filter.New([]filter.Rule{{Action: filter.Deny, DstPort: 2000}})
	tr := New(agg, metrics.NewUnregisteredCounters(), f, 0)

	tr.Observe(0, baseKey(), 0, [flow.CookieLen]byte{1}, 0, 64, time.Unix(0, 1))

	if _, ok := agg.Evict(0, baseKey().WithDirection(flow.Ingress)); ok {
		t.Fatalf("event denied by the flow filter should not create a flow")
	}
}
