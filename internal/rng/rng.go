// Package rng implements the index-addressed random source used by combat.
//
// Every draw is a pure function of (seed, index). There is no hidden stream
// state: a Source only owns the call index so replays can recompute any draw
// without walking the ones before it.
package rng

// The constants below are part of the reproducibility contract. Changing any of
// them invalidates every previously committed result hash.
const (
	// Multiplier is the LCG multiplier.
	Multiplier uint64 = 1103515245
	// Increment is the LCG increment.
	Increment uint64 = 12345
	// Modulus is the LCG modulus (2^31).
	Modulus uint64 = 1 << 31
	// IndexStride spreads consecutive call indices across the state space.
	IndexStride uint64 = 0x9E3779B9
)

// Next returns the value in [0,1) addressed by the seed and call index.
func Next(seed int64, index uint64) float64 {
	//1.- Fold the index into the seed so each slot starts from a distinct state.
	state := (uint64(seed) + index*IndexStride) % Modulus
	//2.- Two LCG rounds with a shift-xor in between break the linear relation between neighbours.
	state = (state*Multiplier + Increment) % Modulus
	state ^= state >> 16
	state = (state*Multiplier + Increment) % Modulus
	return float64(state) / float64(Modulus)
}

// PercentageCheck reports whether the draw at index falls under chance (0-100).
// It occupies exactly one index slot regardless of the chance value.
func PercentageCheck(seed int64, index uint64, chance int) bool {
	value := Next(seed, index)
	if chance <= 0 {
		return false
	}
	if chance >= 100 {
		return true
	}
	return value*100 < float64(chance)
}

// IndexInRange maps the draw at index onto [0, length). It occupies exactly one slot.
func IndexInRange(seed int64, index uint64, length int) int {
	value := Next(seed, index)
	if length <= 1 {
		return 0
	}
	picked := int(value * float64(length))
	if picked >= length {
		picked = length - 1
	}
	return picked
}

// Source owns the call index for a single simulation. It is not safe for
// concurrent use; each simulation constructs its own.
type Source struct {
	seed  int64
	calls uint64
}

// NewSource returns a source positioned at call index zero.
func NewSource(seed int64) *Source {
	return &Source{seed: seed}
}

// Seed returns the seed the source draws from.
func (s *Source) Seed() int64 { return s.seed }

// Calls returns how many index slots have been consumed so far.
func (s *Source) Calls() uint64 { return s.calls }

// Float consumes one slot and returns its value in [0,1).
func (s *Source) Float() float64 {
	value := Next(s.seed, s.calls)
	s.calls++
	return value
}

// Chance consumes one slot as a percentage check.
func (s *Source) Chance(percent int) bool {
	ok := PercentageCheck(s.seed, s.calls, percent)
	s.calls++
	return ok
}

// Intn consumes one slot and returns an index in [0, n).
func (s *Source) Intn(n int) int {
	picked := IndexInRange(s.seed, s.calls, n)
	s.calls++
	return picked
}
