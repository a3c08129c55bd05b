package sampler

import "testing"

func TestAdmitAllWhenRateIsZeroOrOne(t *testing.T) {
	for _, rate := range []uint32{0, 1} {
		s := New(rate, 1)
		for i := 0; i < 100; i++ {
			if !s.Admit(0) {
				t.Fatalf("rate=%d: packet rejected, want always admitted", rate)
			}
		}
	}
}

func TestAdmitRoughlyOneInN(t *testing.T) {
	const rate = 10
	const trials = 20000
	s := New(rate, 1)

	admitted := 0
	for i := 0; i < trials; i++ {
		if s.Admit(0) {
			admitted++
		}
	}

	got := float64(admitted) / trials
	want := 1.0 / rate
	if got < want*0.5 || got > want*1.5 {
		t.Fatalf("admission rate = %v, want roughly %v", got, want)
	}
}

func TestActiveTracksLastAdmission(t *testing.T) {
	s := New(1, 2)
	s.Admit(0)
	if !s.Active(0) {
		t.Fatalf("lane 0 should be active after admit-all sampler")
	}
	if s.Active(5) != true {
		t.Fatalf("out-of-range lane should fail open (report active)")
	}
}
