package combat

import (
	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/input"
)

func plainUnit(id string, attack, health int) *board.Unit {
	return &board.Unit{
		ID: id, Name: id, Tier: 1, Stars: 1, Attack: attack, Health: health,
		Ability: board.Ability{Name: "steady", Trigger: board.TriggerPassive},
	}
}

func withAbility(unit *board.Unit, trigger board.Trigger, effects ...board.Effect) *board.Unit {
	unit.Ability = board.Ability{Name: unit.ID + "-ability", Trigger: trigger, Effects: effects}
	return unit
}

func duel(one, two *board.Unit, seed int64) input.Combat {
	b1 := board.EmptyBoard()
	b2 := board.EmptyBoard()
	b1.Top[0] = one
	b2.Top[0] = two
	return input.Combat{Board1: &b1, Board2: &b2, Round: 1, Seed: input.SeedFrom(seed), Meta: input.Meta{MatchID: "duel"}}
}

func countEvents(events []Event, kind EventType) int {
	total := 0
	for _, event := range events {
		if event.Type == kind {
			total++
		}
	}
	return total
}
