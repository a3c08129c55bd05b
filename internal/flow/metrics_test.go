package flow

import "testing"

func TestMergeSumsPacketsAndBytes(t *testing.T) {
	a := Metrics{Packets: 2, Bytes: 200, StartMonoTimeTs: 100, EndMonoTimeTs: 150}
	b := Metrics{Packets: 3, Bytes: 300, StartMonoTimeTs: 120, EndMonoTimeTs: 180}

	out := Merge(a, b)

	if out.Packets != 5 {
		t.Fatalf("packets = %d, want 5", out.Packets)
	}
	if out.Bytes != 500 {
		t.Fatalf("bytes = %d, want 500", out.Bytes)
	}
	if out.StartMonoTimeTs != 100 {
		t.Fatalf("start = %d, want min(100,120)=100", out.StartMonoTimeTs)
	}
	if out.EndMonoTimeTs != 180 {
		t.Fatalf("end = %d, want max(150,180)=180", out.EndMonoTimeTs)
	}
}

func TestMergeFlagsAreOred(t *testing.T) {
	a := Metrics{Flags: FlagSYN}
	b := Metrics{Flags: FlagACK}

	out := Merge(a, b)

	want := FlagSYN | FlagACK
	if out.Flags != want {
		t.Fatalf("flags = %b, want %b", out.Flags, want)
	}
}

func TestMergeFlowRTTLatchesFirstNonZero(t *testing.T) {
	a := Metrics{FlowRTT: 0}
	b := Metrics{FlowRTT: 2_000_000}

	out := Merge(a, b)
	if out.FlowRTT != 2_000_000 {
		t.Fatalf("flow_rtt = %d, want 2000000", out.FlowRTT)
	}

	// Once latched, a later merge must not overwrite it.
	c := Merge(out, Metrics{FlowRTT: 9_999_999})
	if c.FlowRTT != 2_000_000 {
		t.Fatalf("flow_rtt got overwritten: %d", c.FlowRTT)
	}
}

func TestAddCookieDedupsAndRoundRobins(t *testing.T) {
	var m Metrics

	cookie := func(b byte) [CookieLen]byte {
		var c [CookieLen]byte
		c[0] = b
		return c
	}

	m.AddCookie(cookie(1))
	m.AddCookie(cookie(2))
	m.AddCookie(cookie(3))
	m.AddCookie(cookie(4))
	if m.NetworkEventsIdx != 0 {
		t.Fatalf("idx after 4 inserts = %d, want wrap to 0", m.NetworkEventsIdx)
	}

	// Duplicate of an existing cookie is a no-op.
	m.AddCookie(cookie(2))
	if m.NetworkEvents[0] != cookie(1) {
		t.Fatalf("duplicate insert clobbered slot 0: %v", m.NetworkEvents[0])
	}

	// 5th distinct cookie replaces the oldest (slot 0).
	m.AddCookie(cookie(5))
	if m.NetworkEvents[0] != cookie(5) {
		t.Fatalf("slot 0 = %v, want cookie(5) after round-robin replace", m.NetworkEvents[0])
	}

	seen := map[[CookieLen]byte]int{}
	for _, c := range m.NetworkEvents {
		seen[c]++
	}
	for c, n := range seen {
		if n > 1 {
			t.Fatalf("cookie %v appears %d times, want at most once", c, n)
		}
	}
}

func TestKeyReversedSwapsEndpoints(t *testing.T) {
	k := Key{SrcPort: 1234, DstPort: 80}
	k.SetIPv4([4]byte{10, 0, 0, 1}, [4]byte{10, 0, 0, 2})

	r := k.Reversed()
	if r.SrcPort != 80 || r.DstPort != 1234 {
		t.Fatalf("ports not swapped: %+v", r)
	}
	if r.SrcIP != k.DstIP || r.DstIP != k.SrcIP {
		t.Fatalf("ips not swapped")
	}
}

func TestDirectionlessZeroesDirection(t *testing.T) {
	k := Key{Direction: Egress}
	d := k.Directionless()
	if d.Direction != Unknown {
		t.Fatalf("direction = %v, want zero value Unknown", d.Direction)
	}
}
