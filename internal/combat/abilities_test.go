package combat

import (
	"testing"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/rng"
	"autobattler/arbiter/internal/targeting"
)

// newTestState lays the boards out the way run does, without resolving anything.
func newTestState(b1, b2 board.Board, seed int64) *state {
	s := &state{
		src:      rng.NewSource(seed),
		record:   true,
		limits:   DefaultLimits,
		priority: targeting.DefaultPriority,
		dead:     make(map[*board.ActiveUnit]bool),
	}
	s.boards[board.Side1] = board.ToActiveBoard(b1, board.Side1)
	s.boards[board.Side2] = board.ToActiveBoard(b2, board.Side2)
	return s
}

func TestFireTriggerEffectKinds(t *testing.T) {
	tests := map[string]struct {
		effect board.Effect
		setup  func(owner *board.Unit, ally *board.Unit)
		check  func(t *testing.T, s *state)
	}{
		"buff_attack": {
			effect: board.Effect{Kind: board.EffectBuffAttack, Amount: 3},
			check: func(t *testing.T, s *state) {
				if owner := s.boards[board.Side1].At(0); owner.BuffedAttack != 8 {
					t.Fatalf("expected attack 8, got %d", owner.BuffedAttack)
				}
			},
		},
		"buff_health": {
			effect: board.Effect{Kind: board.EffectBuffHealth, Amount: 4},
			check: func(t *testing.T, s *state) {
				owner := s.boards[board.Side1].At(0)
				if owner.BuffedHealth != 14 || owner.CurrentHealth != 14 {
					t.Fatalf("expected 14/14 health, got %d/%d", owner.CurrentHealth, owner.BuffedHealth)
				}
			},
		},
		"dodge_grant_clamps": {
			effect: board.Effect{Kind: board.EffectDodge, Amount: 30},
			setup:  func(owner, _ *board.Unit) { owner.DodgeChance = 90 },
			check: func(t *testing.T, s *state) {
				if owner := s.boards[board.Side1].At(0); owner.DodgeChance != 100 {
					t.Fatalf("dodge should clamp at 100, got %d", owner.DodgeChance)
				}
			},
		},
		"crit_grant": {
			effect: board.Effect{Kind: board.EffectCrit, Amount: 40},
			setup:  func(owner, _ *board.Unit) { owner.CritChance = 5 },
			check: func(t *testing.T, s *state) {
				if owner := s.boards[board.Side1].At(0); owner.CritChance != 45 {
					t.Fatalf("expected crit 45, got %d", owner.CritChance)
				}
			},
		},
		"taunt": {
			effect: board.Effect{Kind: board.EffectTaunt},
			check: func(t *testing.T, s *state) {
				if owner := s.boards[board.Side1].At(0); !owner.HasTaunt {
					t.Fatalf("owner should taunt")
				}
			},
		},
		"shield": {
			effect: board.Effect{Kind: board.EffectShield},
			check: func(t *testing.T, s *state) {
				if owner := s.boards[board.Side1].At(0); !owner.HasShield {
					t.Fatalf("owner should be shielded")
				}
			},
		},
		"reposition_swaps_rows": {
			effect: board.Effect{Kind: board.EffectReposition},
			check: func(t *testing.T, s *state) {
				own := s.boards[board.Side1]
				if own.At(4) == nil || own.At(4).Template.ID != "owner" || own.At(4).Position != 4 {
					t.Fatalf("owner should move to slot 4, got %+v", own.At(4))
				}
				if own.At(0) == nil || own.At(0).Template.ID != "ally" || own.At(0).Position != 0 {
					t.Fatalf("ally should move to slot 0, got %+v", own.At(0))
				}
			},
		},
		"heal_lowest_ally": {
			effect: board.Effect{Kind: board.EffectHeal, Amount: 50, Side: board.TargetAlly, Priority: board.PriorityLowestHP},
			setup:  func(_, ally *board.Unit) { ally.CurrentHealth = 3 },
			check: func(t *testing.T, s *state) {
				if ally := s.boards[board.Side1].At(4); ally.CurrentHealth != 12 {
					t.Fatalf("heal should stop at the ally maximum, got %d", ally.CurrentHealth)
				}
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			b1, b2 := board.EmptyBoard(), board.EmptyBoard()
			owner := withAbility(plainUnit("owner", 5, 10), board.TriggerStartOfCombat, tc.effect)
			ally := plainUnit("ally", 2, 12)
			if tc.setup != nil {
				tc.setup(owner, ally)
			}
			b1.Top[0] = owner
			b1.Bottom[0] = ally
			b2.Top[0] = plainUnit("foe", 4, 20)

			s := newTestState(b1, b2, 11)
			s.fireTrigger(s.boards[board.Side1].At(0), board.TriggerStartOfCombat, nil)

			if len(s.events) != 1 || s.events[0].Type != EventAbility {
				t.Fatalf("expected one ABILITY event, got %+v", s.events)
			}
			if s.src.Calls() != 0 {
				t.Fatalf("deterministic targets must not consume RNG, used %d", s.src.Calls())
			}
			tc.check(t, s)
		})
	}
}

func TestFireTriggerCombinesEffectsIntoOneEvent(t *testing.T) {
	b1, b2 := board.EmptyBoard(), board.EmptyBoard()
	b1.Top[0] = withAbility(plainUnit("storm", 5, 10), board.TriggerStartOfCombat,
		board.Effect{Kind: board.EffectBuffAttack, Amount: 2},
		board.Effect{Kind: board.EffectShield},
		board.Effect{Kind: board.EffectDamage, Amount: 3, Count: 3, Priority: board.PriorityRandom},
	)
	for i := 0; i < board.RowSize; i++ {
		b2.Top[i] = plainUnit("target", 1, 40)
	}
	const seed = 2024

	//1.- The same selector call on an identical board fixes which slots must be hit.
	reference := board.ToActiveBoard(b2, board.Side2)
	refSource := rng.NewSource(seed)
	expected := targeting.SelectN(nil, reference, board.PriorityRandom, 3, refSource)

	s := newTestState(b1, b2, seed)
	s.fireTrigger(s.boards[board.Side1].At(0), board.TriggerStartOfCombat, nil)

	if len(s.events) != 1 || s.events[0].Type != EventAbility {
		t.Fatalf("three effects should log a single ABILITY event, got %+v", s.events)
	}
	//2.- Picks among 4, 3 then 2 candidates draw one slot each.
	if s.src.Calls() != 3 || refSource.Calls() != 3 {
		t.Fatalf("expected 3 RNG calls, got %d (reference %d)", s.src.Calls(), refSource.Calls())
	}
	hit := map[int]bool{}
	for _, unit := range expected {
		hit[unit.Position] = true
	}
	for position := 0; position < board.RowSize; position++ {
		want := 40
		if hit[position] {
			want = 37
		}
		if got := s.boards[board.Side2].At(position).CurrentHealth; got != want {
			t.Fatalf("slot %d: expected %d health, got %d", position, want, got)
		}
	}
	owner := s.boards[board.Side1].At(0)
	if owner.BuffedAttack != 7 || !owner.HasShield || owner.DamageDealt != 9 {
		t.Fatalf("owner effects not applied: %+v", owner)
	}
}

func TestFireTriggerForcedPicksConsumeNoRNG(t *testing.T) {
	b1, b2 := board.EmptyBoard(), board.EmptyBoard()
	b1.Top[0] = withAbility(plainUnit("volley", 5, 10), board.TriggerStartOfCombat,
		board.Effect{Kind: board.EffectDamage, Amount: 2, Count: 3, Priority: board.PriorityRandom})
	b2.Top[1] = plainUnit("left", 1, 10)
	b2.Bottom[2] = plainUnit("right", 1, 10)

	s := newTestState(b1, b2, 6)
	s.fireTrigger(s.boards[board.Side1].At(0), board.TriggerStartOfCombat, nil)

	//1.- Count is capped at the two candidates; only the first pick is a real choice.
	if s.src.Calls() != 1 {
		t.Fatalf("expected 1 RNG call, got %d", s.src.Calls())
	}
	if s.boards[board.Side2].At(1).CurrentHealth != 8 || s.boards[board.Side2].At(6).CurrentHealth != 8 {
		t.Fatalf("both enemies should take 2 damage")
	}
}

func TestSetupAppliesPassivesBeforeStartOfCombat(t *testing.T) {
	b1, b2 := board.EmptyBoard(), board.EmptyBoard()
	//1.- The passive sits at a later slot than the opening strike that would otherwise land first.
	b1.Bottom[3] = withAbility(plainUnit("warded", 1, 10), board.TriggerPassive, board.Effect{Kind: board.EffectShield})
	b2.Top[0] = withAbility(plainUnit("opener", 1, 10), board.TriggerStartOfCombat,
		board.Effect{Kind: board.EffectDamage, Amount: 6, Priority: board.PriorityFirst})

	s := newTestState(b1, b2, 9)
	s.setup()

	if len(s.events) != 2 {
		t.Fatalf("expected two ability events, got %+v", s.events)
	}
	if s.events[0].Trigger != board.TriggerPassive || s.events[1].Trigger != board.TriggerStartOfCombat {
		t.Fatalf("passive must resolve first, got %s then %s", s.events[0].Trigger, s.events[1].Trigger)
	}
	warded := s.boards[board.Side1].At(7)
	if warded.CurrentHealth != 10 || warded.HasShield {
		t.Fatalf("shield should absorb the opening strike and be spent: %+v", warded)
	}
}

func TestRepositionedUnitAttacksOncePerPass(t *testing.T) {
	b1, b2 := board.EmptyBoard(), board.EmptyBoard()
	b1.Top[0] = withAbility(plainUnit("skirmisher", 50, 100), board.TriggerOnAttack, board.Effect{Kind: board.EffectReposition})
	b1.Bottom[0] = plainUnit("reserve", 50, 100)
	b2.Top[0] = plainUnit("target", 0, 100)

	in := input.Combat{Board1: &b1, Board2: &b2, Round: 1, Seed: input.SeedFrom(31), Meta: input.Meta{MatchID: "swap"}}
	result, err := Simulate(in, DefaultOptions())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	var attackers []string
	for _, event := range result.Events {
		if event.Type == EventAttack && event.Source.Side == "side1" {
			attackers = append(attackers, event.Source.ID)
		}
	}
	//1.- Pass one: the skirmisher swaps into slot 4 and is not visited again, and the
	// reserve swapped into slot 0 waits for pass two.
	want := []string{"skirmisher", "reserve", "skirmisher"}
	if len(attackers) != len(want) {
		t.Fatalf("expected attackers %v, got %v", want, attackers)
	}
	for i := range want {
		if attackers[i] != want[i] {
			t.Fatalf("expected attackers %v, got %v", want, attackers)
		}
	}
	if result.Winner != WinnerSide1 || result.Termination != TerminationElimination {
		t.Fatalf("expected a side1 elimination, got %s/%s", result.Winner, result.Termination)
	}
	if countEvents(result.Events, EventAbility) != 2 {
		t.Fatalf("expected two reposition abilities, got %d", countEvents(result.Events, EventAbility))
	}
}
