package combat

import "autobattler/arbiter/internal/board"

// EventType labels an entry in the combat log.
type EventType string

const (
	EventAbility     EventType = "ABILITY"
	EventAttack      EventType = "ATTACK"
	EventDeath       EventType = "DEATH"
	EventAttackLimit EventType = "ATTACK_LIMIT"
	EventFault       EventType = "FAULT"
)

// UnitRef identifies a unit inside an event at the moment it was logged.
type UnitRef struct {
	Side     string `json:"side"`
	Position int    `json:"position"`
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Health   int    `json:"health"`
}

func refOf(unit *board.ActiveUnit) *UnitRef {
	if unit == nil {
		return nil
	}
	return &UnitRef{
		Side:     unit.Side.String(),
		Position: unit.Position,
		ID:       unit.Template.ID,
		Name:     unit.Template.Name,
		Health:   unit.CurrentHealth,
	}
}

// Event is one ordered entry of the combat log. The log is informative; only
// its length (via the step counter) is part of the commitment.
type Event struct {
	Step        uint64        `json:"step"`
	Type        EventType     `json:"type"`
	Source      *UnitRef      `json:"source,omitempty"`
	Target      *UnitRef      `json:"target,omitempty"`
	Damage      int           `json:"damage,omitempty"`
	Critical    bool          `json:"critical,omitempty"`
	Dodged      bool          `json:"dodged,omitempty"`
	Shielded    bool          `json:"shielded,omitempty"`
	Ability     string        `json:"ability,omitempty"`
	Trigger     board.Trigger `json:"trigger,omitempty"`
	Description string        `json:"description,omitempty"`
	RNGIndex    uint64        `json:"rngIndex"`
}
