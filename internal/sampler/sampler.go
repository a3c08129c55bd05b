// Package sampler implements C2, the probabilistic 1-in-N admission
// filter, grounded on flows.c's `bpf_get_prandom_u32() % sampling`
// admission check. No third-party dependency applies here: no example
// repo in the corpus carries a sampling-specific library, and
// math/rand is the direct idiomatic equivalent of the kernel's
// pseudo-random helper.
package sampler

import (
	"math/rand"
	"sync/atomic"
)

// Sampler admits 1 packet out of every N. A rate of 0 or 1 admits all.
type Sampler struct {
	rate uint32
	// active tracks, per lane, whether the most recent packet on that
	// lane was sampled in, exposed through Active. The drops (C8) and
	// network-event (C9) trackers do not consult it: their events are
	// not suppressed during sampled-out windows.
	active []atomic.Bool
}

// New creates a Sampler with the given rate and lane count.
func New(rate uint32, lanes int) *Sampler {
	if lanes < 1 {
		lanes = 1
	}
	return &Sampler{rate: rate, active: make([]atomic.Bool, lanes)}
}

// Admit reports whether a packet on the given lane should be processed.
// It also records the admission decision in the per-lane active flag.
func (s *Sampler) Admit(lane int) bool {
	admitted := s.rate <= 1 || rand.Uint32()%s.rate == 0
	if lane >= 0 && lane < len(s.active) {
		s.active[lane].Store(admitted)
	}
	return admitted
}

// Active reports whether the most recent packet on lane was sampled in.
// Out-of-range lanes report true (fail open: do not suppress side
// channels for a lane this sampler was not configured to track).
func (s *Sampler) Active(lane int) bool {
	if lane < 0 || lane >= len(s.active) {
		return true
	}
	return s.active[lane].Load()
}
