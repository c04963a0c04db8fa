// Package targeting picks live units on a board according to a priority.
package targeting

import (
	"sort"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/rng"
)

// DefaultPriority is used when a caller leaves the priority empty.
const DefaultPriority = board.PriorityTaunt

// Select returns a single target or nil when the board has no live candidate.
func Select(attacker *board.ActiveUnit, target *board.ActiveBoard, priority board.Priority, src *rng.Source) *board.ActiveUnit {
	picked := SelectN(attacker, target, priority, 1, src)
	if len(picked) == 0 {
		return nil
	}
	return picked[0]
}

// SelectN returns up to n distinct live targets in one pass. Random picks
// among k>1 candidates consume exactly one RNG slot each; a forced pick among a
// single candidate consumes none.
func SelectN(attacker *board.ActiveUnit, target *board.ActiveBoard, priority board.Priority, n int, src *rng.Source) []*board.ActiveUnit {
	candidates := liveExcluding(target, attacker)
	if n <= 0 || len(candidates) == 0 {
		return nil
	}
	if n > len(candidates) {
		n = len(candidates)
	}
	if priority == "" {
		priority = DefaultPriority
	}

	switch priority {
	case board.PriorityTaunt:
		return preferThenFill(candidates, func(u *board.ActiveUnit) bool { return u.HasTaunt }, n, src)
	case board.PriorityFlying:
		return preferThenFill(candidates, func(u *board.ActiveUnit) bool { return u.Flying }, n, src)
	case board.PriorityBackline:
		return preferThenFill(candidates, func(u *board.ActiveUnit) bool { return u.Position >= board.RowSize }, n, src)
	case board.PriorityRandom:
		return pickRandom(candidates, n, src)
	case board.PriorityLowestHP:
		return extremum(candidates, n, func(a, b *board.ActiveUnit) bool { return a.CurrentHealth < b.CurrentHealth })
	case board.PriorityHighestHP:
		return extremum(candidates, n, func(a, b *board.ActiveUnit) bool { return a.CurrentHealth > b.CurrentHealth })
	case board.PriorityHighestAttack:
		return extremum(candidates, n, func(a, b *board.ActiveUnit) bool { return a.BuffedAttack > b.BuffedAttack })
	default:
		//1.- First and any unrecognised priority take the lowest positions.
		return candidates[:n]
	}
}

func liveExcluding(target *board.ActiveBoard, exclude *board.ActiveUnit) []*board.ActiveUnit {
	live := target.Live()
	if exclude == nil {
		return live
	}
	kept := live[:0]
	for _, unit := range live {
		if unit != exclude {
			kept = append(kept, unit)
		}
	}
	return kept
}

func preferThenFill(candidates []*board.ActiveUnit, preferred func(*board.ActiveUnit) bool, n int, src *rng.Source) []*board.ActiveUnit {
	var first, rest []*board.ActiveUnit
	for _, unit := range candidates {
		if preferred(unit) {
			first = append(first, unit)
		} else {
			rest = append(rest, unit)
		}
	}
	//2.- Flagged units are drawn first; the remainder only fills what they cannot cover.
	picked := pickRandom(first, n, src)
	if len(picked) < n {
		picked = append(picked, pickRandom(rest, n-len(picked), src)...)
	}
	return picked
}

func pickRandom(pool []*board.ActiveUnit, n int, src *rng.Source) []*board.ActiveUnit {
	remaining := append([]*board.ActiveUnit(nil), pool...)
	picked := make([]*board.ActiveUnit, 0, n)
	for len(picked) < n && len(remaining) > 0 {
		index := 0
		if len(remaining) > 1 {
			index = src.Intn(len(remaining))
		}
		picked = append(picked, remaining[index])
		remaining = append(remaining[:index], remaining[index+1:]...)
	}
	return picked
}

func extremum(candidates []*board.ActiveUnit, n int, better func(a, b *board.ActiveUnit) bool) []*board.ActiveUnit {
	//3.- Stable sort keeps position order on exact ties.
	ordered := append([]*board.ActiveUnit(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool { return better(ordered[i], ordered[j]) })
	return ordered[:n]
}
