package input

import (
	"errors"
	"testing"

	"autobattler/arbiter/internal/board"
)

func unit(id string) *board.Unit {
	return &board.Unit{
		ID: id, Name: id, Tier: 2, Stars: 1, Attack: 5, Health: 10,
		Ability: board.Ability{Name: "steady", Trigger: board.TriggerPassive},
	}
}

func validCombat() Combat {
	b1 := board.EmptyBoard()
	b1.Top[0] = unit("a")
	b2 := board.EmptyBoard()
	b2.Bottom[2] = unit("b")
	return Combat{Board1: &b1, Board2: &b2, Round: 3, Seed: SeedFrom(42), Meta: Meta{MatchID: "m-1"}}
}

func hasReason(list []FieldError, reason ValidationReason) bool {
	for _, item := range list {
		if item.Reason == reason {
			return true
		}
	}
	return false
}

func TestValidateAcceptsWellFormedInput(t *testing.T) {
	report := Validate(validCombat())
	if !report.Valid {
		t.Fatalf("expected valid report, got %+v", report)
	}
	if report.Err() != nil {
		t.Fatalf("valid report should not produce an error")
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Combat)
		reason ValidationReason
	}{
		{"missing board", func(c *Combat) { c.Board2 = nil }, ValidationReasonBoardMissing},
		{"short row", func(c *Combat) { c.Board1.Top = c.Board1.Top[:3] }, ValidationReasonBoardShape},
		{"tier", func(c *Combat) { c.Board1.Top[0].Tier = 7 }, ValidationReasonTierRange},
		{"stars", func(c *Combat) { c.Board1.Top[0].Stars = 0 }, ValidationReasonStarsRange},
		{"negative attack", func(c *Combat) { c.Board1.Top[0].Attack = -1 }, ValidationReasonAttackRange},
		{"health", func(c *Combat) { c.Board1.Top[0].Health = 0 }, ValidationReasonHealthRange},
		{"dodge", func(c *Combat) { c.Board1.Top[0].DodgeChance = 101 }, ValidationReasonDodgeRange},
		{"crit", func(c *Combat) { c.Board1.Top[0].CritChance = -5 }, ValidationReasonCritRange},
		{"trigger missing", func(c *Combat) { c.Board1.Top[0].Ability.Trigger = "" }, ValidationReasonTriggerMissing},
		{"trigger unknown", func(c *Combat) { c.Board1.Top[0].Ability.Trigger = "on_sell" }, ValidationReasonTriggerUnknown},
		{"effect kind", func(c *Combat) {
			c.Board1.Top[0].Ability.Effects = []board.Effect{{Kind: "summon"}}
		}, ValidationReasonEffectInvalid},
		{"round", func(c *Combat) { c.Round = 0 }, ValidationReasonRoundRange},
		{"seed", func(c *Combat) { c.Seed = "0xdeadbeef" }, ValidationReasonSeedInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCombat()
			tc.mutate(&in)
			report := Validate(in)
			if report.Valid {
				t.Fatalf("expected rejection")
			}
			if !hasReason(report.Errors, tc.reason) {
				t.Fatalf("expected reason %s, got %+v", tc.reason, report.Errors)
			}
			var verr *ValidationError
			if !errors.As(report.Err(), &verr) || len(verr.Errors) == 0 {
				t.Fatalf("expected *ValidationError, got %v", report.Err())
			}
		})
	}
}

func TestValidateWarnings(t *testing.T) {
	in := validCombat()
	in.Round = 51
	in.Board1.Top[0].Attack = 0
	in.Board1.Top[0].Health = 9000
	empty := board.EmptyBoard()
	in.Board2 = &empty

	report := Validate(in)
	if !report.Valid {
		t.Fatalf("warnings must not block: %+v", report.Errors)
	}
	for _, reason := range []ValidationReason{ValidationReasonHighRound, ValidationReasonZeroAttack, ValidationReasonHighStats, ValidationReasonEmptyBoard} {
		if !hasReason(report.Warnings, reason) {
			t.Fatalf("expected warning %s, got %+v", reason, report.Warnings)
		}
	}
}

func TestSanitizeProducesValidInput(t *testing.T) {
	in := validCombat()
	in.Board1.Top = append(in.Board1.Top, unit("overflow"))
	in.Board2.Bottom = in.Board2.Bottom[:3]
	bad := in.Board1.Top[0]
	bad.Tier = 12
	bad.Stars = 9
	bad.Attack = -4
	bad.Health = -1
	bad.DodgeChance = 250
	bad.CritChance = -3
	bad.Ability.Trigger = "whenever"
	bad.Ability.Effects = []board.Effect{{Kind: "summon"}, {Kind: board.EffectHeal, Amount: -2, Count: 40, Side: "both"}}
	in.Round = -2
	in.Seed = "not-a-number"

	out := Sanitize(in)
	report := Validate(out)
	if !report.Valid {
		t.Fatalf("sanitized input failed validation: %+v", report.Errors)
	}
	fixed := out.Board1.Top[0]
	if fixed.Tier != 6 || fixed.Stars != 3 || fixed.Attack != 0 || fixed.Health != 1 || fixed.DodgeChance != 100 || fixed.CritChance != 0 {
		t.Fatalf("unexpected clamping: %+v", fixed)
	}
	if fixed.Ability.Trigger != board.TriggerPassive || len(fixed.Ability.Effects) != 1 {
		t.Fatalf("unexpected ability after sanitize: %+v", fixed.Ability)
	}
	if got := fixed.Ability.Effects[0]; got.Amount != 0 || got.Count != board.Slots || got.Side != "" {
		t.Fatalf("unexpected effect clamping: %+v", got)
	}
	if len(out.Board1.Top) != board.RowSize || len(out.Board2.Bottom) != board.RowSize {
		t.Fatalf("rows not fitted to %d slots", board.RowSize)
	}
	if out.Round != 1 {
		t.Fatalf("expected round clamped to 1, got %d", out.Round)
	}

	//1.- The caller's input must not be mutated by sanitizing.
	if in.Board1.Top[0].Tier != 12 || len(in.Board1.Top) != 5 {
		t.Fatalf("sanitize mutated caller input")
	}
	//2.- Non-numeric seeds fold deterministically.
	if again := Sanitize(in); again.Seed != out.Seed {
		t.Fatalf("seed fold not deterministic: %s vs %s", again.Seed, out.Seed)
	}
}

func TestSanitizeFillsMissingBoards(t *testing.T) {
	out := Sanitize(Combat{Round: 1, Seed: "12.9"})
	if out.Board1 == nil || out.Board2 == nil {
		t.Fatalf("expected empty boards to be created")
	}
	if out.Seed != "12" {
		t.Fatalf("expected fractional seed truncated, got %s", out.Seed)
	}
	if report := Validate(out); !report.Valid {
		t.Fatalf("expected valid after sanitize: %+v", report.Errors)
	}
}
