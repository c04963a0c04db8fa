package input

import (
	"fmt"
	"strings"

	"autobattler/arbiter/internal/board"
)

// ValidationReason identifies why a field was rejected or flagged.
type ValidationReason string

const (
	ValidationReasonBoardMissing       ValidationReason = "board_missing"
	ValidationReasonBoardShape         ValidationReason = "board_shape"
	ValidationReasonTierRange          ValidationReason = "tier_range"
	ValidationReasonStarsRange         ValidationReason = "stars_range"
	ValidationReasonAttackRange        ValidationReason = "attack_range"
	ValidationReasonHealthRange        ValidationReason = "health_range"
	ValidationReasonCurrentHealthRange ValidationReason = "current_health_range"
	ValidationReasonDodgeRange         ValidationReason = "dodge_range"
	ValidationReasonCritRange          ValidationReason = "crit_range"
	ValidationReasonTriggerMissing     ValidationReason = "trigger_missing"
	ValidationReasonTriggerUnknown     ValidationReason = "trigger_unknown"
	ValidationReasonEffectInvalid      ValidationReason = "effect_invalid"
	ValidationReasonRoundRange         ValidationReason = "round_range"
	ValidationReasonSeedInvalid        ValidationReason = "seed_invalid"

	ValidationReasonZeroAttack ValidationReason = "zero_attack"
	ValidationReasonHighStats  ValidationReason = "high_stats"
	ValidationReasonHighRound  ValidationReason = "high_round"
	ValidationReasonEmptyBoard ValidationReason = "empty_board"
)

// FieldError describes one problem with a specific input field.
type FieldError struct {
	Field   string           `json:"field"`
	Reason  ValidationReason `json:"reason"`
	Message string           `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Report summarises a Validate call. Warnings never block simulation.
type Report struct {
	Valid    bool         `json:"valid"`
	Errors   []FieldError `json:"errors,omitempty"`
	Warnings []FieldError `json:"warnings,omitempty"`
}

// ValidationError is returned when a caller chooses rejection over sanitizing.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "invalid combat input"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fieldErr := range e.Errors {
		parts = append(parts, fieldErr.String())
	}
	return "invalid combat input: " + strings.Join(parts, "; ")
}

// Err converts a failed report into a *ValidationError, or nil when valid.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: append([]FieldError(nil), r.Errors...)}
}

// IntRange defines an inclusive integer range.
type IntRange struct {
	Min int
	Max int
}

// Contains reports whether value lies within the range.
func (r IntRange) Contains(value int) bool { return value >= r.Min && value <= r.Max }

// Clamp forces value into the range.
func (r IntRange) Clamp(value int) int {
	if value < r.Min {
		return r.Min
	}
	if value > r.Max {
		return r.Max
	}
	return value
}

// Constraints configures the hard ranges and soft warning thresholds.
type Constraints struct {
	Tier          IntRange
	Stars         IntRange
	Chance        IntRange
	MaxTargets    int
	WarnAttack    int
	WarnHealth    int
	WarnRound     int
	MinRound      int
	MinHealth     int
	MinAttack     int
	MaxStatAmount int
}

// DefaultConstraints is the baseline used by Validate and Sanitize.
var DefaultConstraints = Constraints{
	Tier:          IntRange{Min: 1, Max: 6},
	Stars:         IntRange{Min: 1, Max: 3},
	Chance:        IntRange{Min: 0, Max: 100},
	MaxTargets:    board.Slots,
	WarnAttack:    1000,
	WarnHealth:    5000,
	WarnRound:     50,
	MinRound:      1,
	MinHealth:     1,
	MinAttack:     0,
	MaxStatAmount: 1_000_000,
}

// Validate checks the input against DefaultConstraints.
func Validate(in Combat) Report {
	return DefaultConstraints.Validate(in)
}

// Validate performs structural and range checks without mutating the input.
func (c Constraints) Validate(in Combat) Report {
	v := &collector{}

	//1.- Boards must exist and resolve to exactly eight slots.
	c.checkBoard(v, "board1", in.Board1)
	c.checkBoard(v, "board2", in.Board2)

	//2.- Round drives damage scaling, so it must be at least one.
	if in.Round < c.MinRound {
		v.fail("round", ValidationReasonRoundRange, fmt.Sprintf("must be >= %d, got %d", c.MinRound, in.Round))
	} else if c.WarnRound > 0 && in.Round > c.WarnRound {
		v.warn("round", ValidationReasonHighRound, fmt.Sprintf("round %d exceeds sanity threshold %d", in.Round, c.WarnRound))
	}

	//3.- The seed must be a base-10 integer; its derivation is the caller's concern.
	if _, err := in.SeedValue(); err != nil {
		v.fail("seed", ValidationReasonSeedInvalid, fmt.Sprintf("must be an integer, got %q", string(in.Seed)))
	}

	return Report{Valid: len(v.errors) == 0, Errors: v.errors, Warnings: v.warnings}
}

func (c Constraints) checkBoard(v *collector, name string, b *board.Board) {
	if b == nil {
		v.fail(name, ValidationReasonBoardMissing, "board is required")
		return
	}
	if len(b.Top) != board.RowSize || len(b.Bottom) != board.RowSize {
		v.fail(name, ValidationReasonBoardShape,
			fmt.Sprintf("rows must hold %d slots each, got top=%d bottom=%d", board.RowSize, len(b.Top), len(b.Bottom)))
		return
	}
	if b.Count() == 0 {
		v.warn(name, ValidationReasonEmptyBoard, "board has no units")
	}
	for position := 0; position < board.Slots; position++ {
		unit := b.Slot(position)
		if unit == nil {
			continue
		}
		c.checkUnit(v, fmt.Sprintf("%s[%d]", name, position), unit)
	}
}

func (c Constraints) checkUnit(v *collector, field string, unit *board.Unit) {
	//4.- Compare each stat individually so callers receive actionable feedback.
	if !c.Tier.Contains(unit.Tier) {
		v.fail(field+".tier", ValidationReasonTierRange, fmt.Sprintf("must be %d-%d, got %d", c.Tier.Min, c.Tier.Max, unit.Tier))
	}
	if !c.Stars.Contains(unit.Stars) {
		v.fail(field+".stars", ValidationReasonStarsRange, fmt.Sprintf("must be %d-%d, got %d", c.Stars.Min, c.Stars.Max, unit.Stars))
	}
	if unit.Attack < c.MinAttack {
		v.fail(field+".attack", ValidationReasonAttackRange, fmt.Sprintf("must be >= %d, got %d", c.MinAttack, unit.Attack))
	} else if unit.Attack == 0 {
		v.warn(field+".attack", ValidationReasonZeroAttack, "unit cannot deal standard damage")
	}
	if unit.Health < c.MinHealth {
		v.fail(field+".health", ValidationReasonHealthRange, fmt.Sprintf("must be >= %d, got %d", c.MinHealth, unit.Health))
	}
	if unit.Attack > c.MaxStatAmount || unit.Health > c.MaxStatAmount {
		v.fail(field, ValidationReasonHighStats, fmt.Sprintf("stats above hard limit %d", c.MaxStatAmount))
	} else if (c.WarnAttack > 0 && unit.Attack > c.WarnAttack) || (c.WarnHealth > 0 && unit.Health > c.WarnHealth) {
		v.warn(field, ValidationReasonHighStats, fmt.Sprintf("attack=%d health=%d look implausible", unit.Attack, unit.Health))
	}
	if unit.CurrentHealth < 0 || (unit.Health > 0 && c.Stars.Contains(unit.Stars) && unit.CurrentHealth > unit.Health*unit.Stars) {
		v.fail(field+".currentHealth", ValidationReasonCurrentHealthRange, fmt.Sprintf("must be 0-%d, got %d", unit.Health*max(unit.Stars, 1), unit.CurrentHealth))
	}
	if !c.Chance.Contains(unit.DodgeChance) {
		v.fail(field+".dodgeChance", ValidationReasonDodgeRange, fmt.Sprintf("must be %d-%d, got %d", c.Chance.Min, c.Chance.Max, unit.DodgeChance))
	}
	if !c.Chance.Contains(unit.CritChance) {
		v.fail(field+".critChance", ValidationReasonCritRange, fmt.Sprintf("must be %d-%d, got %d", c.Chance.Min, c.Chance.Max, unit.CritChance))
	}

	//5.- Abilities must name a trigger from the closed set and only structured effects.
	switch {
	case strings.TrimSpace(string(unit.Ability.Trigger)) == "":
		v.fail(field+".ability.trigger", ValidationReasonTriggerMissing, "trigger is required")
	case !unit.Ability.Trigger.Valid():
		v.fail(field+".ability.trigger", ValidationReasonTriggerUnknown, fmt.Sprintf("unknown trigger %q", unit.Ability.Trigger))
	}
	for i, effect := range unit.Ability.Effects {
		c.checkEffect(v, fmt.Sprintf("%s.ability.effects[%d]", field, i), effect)
	}
}

func (c Constraints) checkEffect(v *collector, field string, effect board.Effect) {
	if !effect.Kind.Valid() {
		v.fail(field+".kind", ValidationReasonEffectInvalid, fmt.Sprintf("unknown effect kind %q", effect.Kind))
	}
	if effect.Side != "" && !effect.Side.Valid() {
		v.fail(field+".side", ValidationReasonEffectInvalid, fmt.Sprintf("unknown target side %q", effect.Side))
	}
	if effect.Priority != "" && !effect.Priority.Valid() {
		v.fail(field+".priority", ValidationReasonEffectInvalid, fmt.Sprintf("unknown priority %q", effect.Priority))
	}
	if effect.Amount < 0 || effect.Amount > c.MaxStatAmount {
		v.fail(field+".amount", ValidationReasonEffectInvalid, fmt.Sprintf("must be 0-%d, got %d", c.MaxStatAmount, effect.Amount))
	}
	if effect.Count < 0 || effect.Count > c.MaxTargets {
		v.fail(field+".count", ValidationReasonEffectInvalid, fmt.Sprintf("must be 0-%d, got %d", c.MaxTargets, effect.Count))
	}
}

type collector struct {
	errors   []FieldError
	warnings []FieldError
}

func (c *collector) fail(field string, reason ValidationReason, message string) {
	c.errors = append(c.errors, FieldError{Field: field, Reason: reason, Message: message})
}

func (c *collector) warn(field string, reason ValidationReason, message string) {
	c.warnings = append(c.warnings, FieldError{Field: field, Reason: reason, Message: message})
}
