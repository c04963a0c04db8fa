package input

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"autobattler/arbiter/internal/board"
)

// Sanitize clamps the input into DefaultConstraints.
func Sanitize(in Combat) Combat {
	return DefaultConstraints.Sanitize(in)
}

// Sanitize returns a copy of the input with every numeric field clamped into
// range and both boards padded or truncated to eight slots. The result always
// passes Validate under the same constraints.
func (c Constraints) Sanitize(in Combat) Combat {
	out := in.Clone()
	out.Board1 = c.sanitizeBoard(out.Board1)
	out.Board2 = c.sanitizeBoard(out.Board2)
	if out.Round < c.MinRound {
		out.Round = c.MinRound
	}
	out.Seed = sanitizeSeed(out.Seed)
	return out
}

func (c Constraints) sanitizeBoard(b *board.Board) *board.Board {
	if b == nil {
		empty := board.EmptyBoard()
		return &empty
	}
	b.Top = fitRow(b.Top)
	b.Bottom = fitRow(b.Bottom)
	for _, row := range [][]*board.Unit{b.Top, b.Bottom} {
		for _, unit := range row {
			if unit != nil {
				c.sanitizeUnit(unit)
			}
		}
	}
	return b
}

func fitRow(row []*board.Unit) []*board.Unit {
	//1.- Pad short rows with empty slots and drop anything past the fourth column.
	fitted := make([]*board.Unit, board.RowSize)
	copy(fitted, row)
	return fitted
}

func (c Constraints) sanitizeUnit(unit *board.Unit) {
	unit.Tier = c.Tier.Clamp(unit.Tier)
	unit.Stars = c.Stars.Clamp(unit.Stars)
	unit.Attack = IntRange{Min: c.MinAttack, Max: c.MaxStatAmount}.Clamp(unit.Attack)
	unit.Health = IntRange{Min: c.MinHealth, Max: c.MaxStatAmount}.Clamp(unit.Health)
	unit.CurrentHealth = IntRange{Min: 0, Max: unit.Health * unit.Stars}.Clamp(unit.CurrentHealth)
	unit.DodgeChance = c.Chance.Clamp(unit.DodgeChance)
	unit.CritChance = c.Chance.Clamp(unit.CritChance)

	//2.- A missing or unknown trigger degrades to passive so the unit still fights.
	if !unit.Ability.Trigger.Valid() {
		unit.Ability.Trigger = board.TriggerPassive
	}
	effects := unit.Ability.Effects[:0]
	for _, effect := range unit.Ability.Effects {
		if !effect.Kind.Valid() {
			continue
		}
		if effect.Side != "" && !effect.Side.Valid() {
			effect.Side = ""
		}
		if effect.Priority != "" && !effect.Priority.Valid() {
			effect.Priority = ""
		}
		effect.Amount = IntRange{Min: 0, Max: c.MaxStatAmount}.Clamp(effect.Amount)
		effect.Count = IntRange{Min: 0, Max: c.MaxTargets}.Clamp(effect.Count)
		effects = append(effects, effect)
	}
	if len(effects) == 0 {
		effects = nil
	}
	unit.Ability.Effects = effects
}

func sanitizeSeed(raw json.Number) json.Number {
	text := strings.TrimSpace(string(raw))
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return json.Number(text)
	}
	//3.- Fractional seeds truncate toward zero when they fit in an int64.
	if value, err := strconv.ParseFloat(text, 64); err == nil && !math.IsNaN(value) && math.Abs(value) < math.MaxInt64 {
		return SeedFrom(int64(value))
	}
	//4.- Anything else folds deterministically so replays sanitize to the same seed.
	return SeedFrom(int64(xxhash.Sum64String(text) >> 1))
}
