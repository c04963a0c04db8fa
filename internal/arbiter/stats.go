package arbiter

import (
	"sync/atomic"
	"time"

	"autobattler/arbiter/internal/combat"
)

// Stats accumulates service counters for the metrics endpoint.
type Stats struct {
	simulations     atomic.Uint64
	rejected        atomic.Uint64
	draws           atomic.Uint64
	faults          atomic.Uint64
	attackLimits    atomic.Uint64
	verifications   atomic.Uint64
	mismatches      atomic.Uint64
	persistFailures atomic.Uint64
	rngCalls        atomic.Uint64
	steps           atomic.Uint64
	durationNanos   atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Simulations     uint64
	Rejected        uint64
	Draws           uint64
	Faults          uint64
	AttackLimits    uint64
	Verifications   uint64
	Mismatches      uint64
	PersistFailures uint64
	RNGCalls        uint64
	Steps           uint64
	Duration        time.Duration
}

func (s *Stats) observe(result combat.Result, elapsed time.Duration) {
	s.simulations.Add(1)
	s.rngCalls.Add(result.RNGCallCount)
	s.steps.Add(result.TotalSteps)
	s.durationNanos.Add(int64(elapsed))
	if result.Winner == combat.WinnerDraw {
		s.draws.Add(1)
	}
	switch result.Termination {
	case combat.TerminationFault:
		s.faults.Add(1)
	case combat.TerminationAttackLimit:
		s.attackLimits.Add(1)
	}
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		Simulations:     s.simulations.Load(),
		Rejected:        s.rejected.Load(),
		Draws:           s.draws.Load(),
		Faults:          s.faults.Load(),
		AttackLimits:    s.attackLimits.Load(),
		Verifications:   s.verifications.Load(),
		Mismatches:      s.mismatches.Load(),
		PersistFailures: s.persistFailures.Load(),
		RNGCalls:        s.rngCalls.Load(),
		Steps:           s.steps.Load(),
		Duration:        time.Duration(s.durationNanos.Load()),
	}
}
