package combat

import (
	"fmt"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/commit"
	"autobattler/arbiter/internal/input"
	"autobattler/arbiter/internal/logging"
)

// Winner names the outcome of a round.
type Winner string

const (
	WinnerSide1 Winner = "side1"
	WinnerSide2 Winner = "side2"
	WinnerDraw  Winner = "draw"
)

const (
	// DrawDamage is the fixed damage reported for draws and faults.
	DrawDamage = 1
	// MinimumDamage floors the scaled damage of a decisive round.
	MinimumDamage = 1
)

// Result is the immutable outcome of one simulation.
type Result struct {
	Winner        Winner             `json:"winner"`
	DamageToLoser int                `json:"damageToLoser"`
	FinalBoard1   board.Board        `json:"finalBoard1"`
	FinalBoard2   board.Board        `json:"finalBoard2"`
	Events        []Event            `json:"events"`
	Seed          int64              `json:"seed"`
	RNGCallCount  uint64             `json:"rngCallCount"`
	TotalSteps    uint64             `json:"totalSteps"`
	ResultHash    string             `json:"resultHash"`
	Round         int                `json:"round"`
	CorrelationID string             `json:"correlationId"`
	Termination   Termination        `json:"termination"`
	Warnings      []input.FieldError `json:"warnings,omitempty"`
}

// Commitment returns the exact field set the result hash attests to.
func (r Result) Commitment() commit.Commitment {
	return commit.Commitment{
		Winner:        string(r.Winner),
		DamageToLoser: r.DamageToLoser,
		Seed:          r.Seed,
		RNGCallCount:  r.RNGCallCount,
		TotalSteps:    r.TotalSteps,
		CorrelationID: r.CorrelationID,
		Round:         r.Round,
	}
}

// LoggingFields returns structured logging fields summarising the result.
func (r Result) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.String("winner", string(r.Winner)),
		logging.Int("damage_to_loser", r.DamageToLoser),
		logging.Int64("seed", r.Seed),
		logging.Field{Key: "rng_calls", Value: r.RNGCallCount},
		logging.Field{Key: "total_steps", Value: r.TotalSteps},
		logging.String("result_hash", r.ResultHash),
		logging.String("termination", string(r.Termination)),
		logging.Int("round", r.Round),
	}
}

// RoundMultiplierPermille rises from 500 at round 1 by 125 per round and caps at 1000.
func RoundMultiplierPermille(round int) int {
	if round < 1 {
		round = 1
	}
	permille := 500 + 125*(round-1)
	if permille > 1000 {
		permille = 1000
	}
	return permille
}

// ScaleDamage applies the round multiplier to the survivors' base damage.
func ScaleDamage(base, round int) int {
	damage := base * RoundMultiplierPermille(round) / 1000
	if damage < MinimumDamage {
		damage = MinimumDamage
	}
	return damage
}

// SurvivorDamage sums 1+tier over the living units of a board.
func SurvivorDamage(b *board.ActiveBoard) int {
	total := 0
	for _, unit := range b.Live() {
		total += 1 + unit.Template.Tier
	}
	return total
}

func (s *state) finish(in input.Combat, seed int64, termination Termination) Result {
	one, two := s.boards[board.Side1], s.boards[board.Side2]
	winner, damage := WinnerDraw, DrawDamage
	//1.- Exactly one side standing wins; a simultaneous wipe or a stalemate is a draw.
	switch {
	case one.HasLive() && !two.HasLive():
		winner, damage = WinnerSide1, ScaleDamage(SurvivorDamage(one), in.Round)
	case two.HasLive() && !one.HasLive():
		winner, damage = WinnerSide2, ScaleDamage(SurvivorDamage(two), in.Round)
	}
	result := Result{
		Winner:        winner,
		DamageToLoser: damage,
		FinalBoard1:   board.FromActiveBoard(one),
		FinalBoard2:   board.FromActiveBoard(two),
		Events:        s.events,
		Seed:          seed,
		RNGCallCount:  s.src.Calls(),
		TotalSteps:    s.steps,
		Round:         in.Round,
		CorrelationID: in.Meta.MatchID,
		Termination:   termination,
	}
	if result.Events == nil {
		result.Events = []Event{}
	}
	result.ResultHash = commit.Hash(result.Commitment())
	return result
}

func (s *state) fault(in input.Combat, seed int64, recovered any) Result {
	s.emit(Event{Type: EventFault, Description: fmt.Sprintf("internal fault: %v", recovered)})
	result := Result{
		Winner:        WinnerDraw,
		DamageToLoser: DrawDamage,
		FinalBoard1:   safeBoard(in.Board1),
		FinalBoard2:   safeBoard(in.Board2),
		Events:        s.events,
		Seed:          seed,
		RNGCallCount:  s.src.Calls(),
		TotalSteps:    s.steps,
		Round:         in.Round,
		CorrelationID: in.Meta.MatchID,
		Termination:   TerminationFault,
	}
	if result.Events == nil {
		result.Events = []Event{}
	}
	result.ResultHash = commit.Hash(result.Commitment())
	return result
}

func safeBoard(b *board.Board) board.Board {
	if b == nil {
		return board.EmptyBoard()
	}
	return b.Clone()
}
