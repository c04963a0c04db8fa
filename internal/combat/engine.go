// Package combat resolves one round of combat between two boards. A call to
// Simulate is a pure, synchronous function of its input: no I/O, no clocks and
// no state shared with other calls.
package combat

import (
	"fmt"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/rng"
	"autobattler/arbiter/internal/targeting"
)

// Policy decides what happens to input that fails validation.
type Policy string

const (
	// PolicyReject returns a *input.ValidationError for invalid input.
	PolicyReject Policy = "reject"
	// PolicySanitize clamps the input into range and simulates the result.
	PolicySanitize Policy = "sanitize"
)

// Limits bound the work done by one simulation.
type Limits struct {
	MaxAttacksPerUnit int
	MaxTotalAttacks   int
}

// DefaultLimits caps pathological heal and shield loops.
var DefaultLimits = Limits{MaxAttacksPerUnit: 100, MaxTotalAttacks: 1600}

// Options tunes a simulation. The zero value is usable and equals DefaultOptions.
type Options struct {
	Policy         Policy
	Limits         Limits
	AttackPriority board.Priority
	// SkipEvents drops the event list from the result; step counting is unaffected.
	SkipEvents  bool
	Constraints *input.Constraints
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{Policy: PolicyReject, Limits: DefaultLimits, AttackPriority: targeting.DefaultPriority}
}

func (o Options) normalised() Options {
	if o.Policy == "" {
		o.Policy = PolicyReject
	}
	if o.Limits.MaxAttacksPerUnit <= 0 {
		o.Limits.MaxAttacksPerUnit = DefaultLimits.MaxAttacksPerUnit
	}
	if o.Limits.MaxTotalAttacks <= 0 {
		o.Limits.MaxTotalAttacks = DefaultLimits.MaxTotalAttacks
	}
	if o.AttackPriority == "" || !o.AttackPriority.Valid() {
		o.AttackPriority = targeting.DefaultPriority
	}
	if o.Constraints == nil {
		constraints := input.DefaultConstraints
		o.Constraints = &constraints
	}
	return o
}

// Termination records why the position loop stopped.
type Termination string

const (
	TerminationElimination Termination = "elimination"
	TerminationExhausted   Termination = "exhausted"
	TerminationAttackLimit Termination = "attack_limit"
	TerminationFault       Termination = "fault"
	// TerminationEmptyBoard marks a round where a side fielded no units at all.
	TerminationEmptyBoard Termination = "empty_board"
)

type state struct {
	boards   [3]*board.ActiveBoard
	src      *rng.Source
	steps    uint64
	events   []Event
	record   bool
	limits   Limits
	priority board.Priority
	attacks  int
	dead     map[*board.ActiveUnit]bool
}

func (s *state) emit(event Event) {
	s.steps++
	event.Step = s.steps
	event.RNGIndex = s.src.Calls()
	if s.record {
		s.events = append(s.events, event)
	}
}

// Simulate validates (or sanitizes) the input and resolves the round. The only
// error it returns is a *input.ValidationError; internal faults become a
// deterministic draw carrying a FAULT event.
func Simulate(in input.Combat, opts Options) (Result, error) {
	opts = opts.normalised()
	if opts.Policy == PolicySanitize {
		in = opts.Constraints.Sanitize(in)
	}
	report := opts.Constraints.Validate(in)
	if !report.Valid {
		return Result{}, report.Err()
	}
	seed, err := in.SeedValue()
	if err != nil {
		return Result{}, &input.ValidationError{Errors: []input.FieldError{{Field: "seed", Reason: input.ValidationReasonSeedInvalid, Message: err.Error()}}}
	}
	result := run(in, seed, opts)
	result.Warnings = report.Warnings
	return result, nil
}

func run(in input.Combat, seed int64, opts Options) (result Result) {
	s := &state{
		src:      rng.NewSource(seed),
		record:   !opts.SkipEvents,
		limits:   opts.Limits,
		priority: opts.AttackPriority,
		dead:     make(map[*board.ActiveUnit]bool),
	}
	defer func() {
		//1.- Any panic is converted into a committable draw rather than escaping the boundary.
		if recovered := recover(); recovered != nil {
			result = s.fault(in, seed, recovered)
		}
	}()

	s.boards[board.Side1] = board.ToActiveBoard(*in.Board1, board.Side1)
	s.boards[board.Side2] = board.ToActiveBoard(*in.Board2, board.Side2)

	fielded := s.boards[board.Side1].HasLive() && s.boards[board.Side2].HasLive()
	s.setup()
	termination := TerminationEmptyBoard
	switch {
	case !fielded:
	case s.boards[board.Side1].HasLive() && s.boards[board.Side2].HasLive():
		termination = s.loop()
	default:
		termination = TerminationElimination
	}
	return s.finish(in, seed, termination)
}

// setup applies passive grants then fires start-of-combat abilities, both in
// position order with side 1 ahead of side 2 at each position.
func (s *state) setup() {
	for _, trigger := range []board.Trigger{board.TriggerPassive, board.TriggerStartOfCombat} {
		for position := 0; position < board.Slots; position++ {
			for _, side := range []board.Side{board.Side1, board.Side2} {
				s.fireTrigger(s.boards[side].At(position), trigger, nil)
			}
		}
	}
	s.boards[board.Side1].RemoveDead()
	s.boards[board.Side2].RemoveDead()
}

func (s *state) loop() Termination {
	for {
		attacked := false
		//1.- A unit attacks at most once per pass, even after repositioning into a later slot.
		acted := make(map[*board.ActiveUnit]bool)
		for position := 0; position < board.Slots; position++ {
			//2.- Side 1 resolves first; a side 2 unit killed here loses its attack at this position.
			for _, side := range []board.Side{board.Side1, board.Side2} {
				unit := s.boards[side].At(position)
				if !unit.Alive() || acted[unit] {
					continue
				}
				acted[unit] = true
				if s.limitReached(unit) {
					s.emit(Event{
						Type:        EventAttackLimit,
						Source:      refOf(unit),
						Description: fmt.Sprintf("attack ceiling reached: unit=%d total=%d", unit.AttackCount, s.attacks),
					})
					return TerminationAttackLimit
				}
				if s.attack(unit) {
					attacked = true
				}
			}
			s.boards[board.Side1].RemoveDead()
			s.boards[board.Side2].RemoveDead()
			if !s.boards[board.Side1].HasLive() || !s.boards[board.Side2].HasLive() {
				return TerminationElimination
			}
		}
		if !attacked {
			return TerminationExhausted
		}
	}
}

func (s *state) limitReached(unit *board.ActiveUnit) bool {
	return unit.AttackCount >= s.limits.MaxAttacksPerUnit || s.attacks >= s.limits.MaxTotalAttacks
}

func (s *state) attack(attacker *board.ActiveUnit) bool {
	s.fireTrigger(attacker, board.TriggerOnAttack, nil)
	if !attacker.Alive() {
		return false
	}
	defender := targeting.Select(nil, s.boards[attacker.Side.Opponent()], s.priority, s.src)
	if defender == nil {
		return false
	}

	roll := ComputeAttackDamage(attacker, defender, s.src)
	shielded := !roll.Dodged && defender.HasShield
	dealt := 0
	if !roll.Dodged {
		dealt = ApplyDamage(defender, roll.Damage)
	}
	attacker.AttackCount++
	attacker.DamageDealt += dealt
	s.attacks++

	s.emit(Event{
		Type:     EventAttack,
		Source:   refOf(attacker),
		Target:   refOf(defender),
		Damage:   dealt,
		Critical: roll.Critical,
		Dodged:   roll.Dodged,
		Shielded: shielded,
	})
	if !defender.Alive() {
		s.handleDeath(defender, attacker)
	}
	return true
}
