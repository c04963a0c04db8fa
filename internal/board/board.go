// Package board holds the canonical unit and board model shared by every
// stage of a combat simulation.
package board

import "fmt"

const (
	// RowSize is the number of slots per row.
	RowSize = 4
	// Slots is the number of positions on a board: 0-3 top row, 4-7 bottom row.
	Slots = 2 * RowSize
)

// Board is the external two-row roster layout submitted by callers.
type Board struct {
	Top    []*Unit `json:"top"`
	Bottom []*Unit `json:"bottom"`
}

// EmptyBoard returns a board with eight empty slots.
func EmptyBoard() Board {
	return Board{Top: make([]*Unit, RowSize), Bottom: make([]*Unit, RowSize)}
}

// Slot returns the unit at the canonical position or nil when empty or out of range.
func (b Board) Slot(position int) *Unit {
	row, column := b.Top, position
	if position >= RowSize {
		row, column = b.Bottom, position-RowSize
	}
	if position < 0 || column >= len(row) {
		return nil
	}
	return row[column]
}

// Clone deep-copies both rows.
func (b Board) Clone() Board {
	clone := Board{}
	if b.Top != nil {
		clone.Top = make([]*Unit, len(b.Top))
		for i, unit := range b.Top {
			clone.Top[i] = unit.Clone()
		}
	}
	if b.Bottom != nil {
		clone.Bottom = make([]*Unit, len(b.Bottom))
		for i, unit := range b.Bottom {
			clone.Bottom[i] = unit.Clone()
		}
	}
	return clone
}

// Count returns the number of occupied slots.
func (b Board) Count() int {
	count := 0
	for _, row := range [][]*Unit{b.Top, b.Bottom} {
		for _, unit := range row {
			if unit != nil {
				count++
			}
		}
	}
	return count
}

// Side tags which participant owns a board.
type Side int

const (
	SideNone Side = iota
	Side1
	Side2
)

// String returns the wire name of the side.
func (s Side) String() string {
	switch s {
	case Side1:
		return "side1"
	case Side2:
		return "side2"
	default:
		return "none"
	}
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	switch s {
	case Side1:
		return Side2
	case Side2:
		return Side1
	default:
		return SideNone
	}
}

// ActiveUnit is the combat-scoped mutable instance of a template.
type ActiveUnit struct {
	Template      Unit
	Position      int
	Side          Side
	CurrentHealth int
	BuffedAttack  int
	BuffedHealth  int
	DodgeChance   int
	CritChance    int
	IsDead        bool
	HasShield     bool
	HasTaunt      bool
	Flying        bool
	AttackCount   int
	DamageDealt   int
	DamageTaken   int
}

// Alive reports whether the unit can still act and be targeted.
func (u *ActiveUnit) Alive() bool {
	return u != nil && !u.IsDead && u.CurrentHealth > 0
}

// Label renders a stable identifier used in event descriptions.
func (u *ActiveUnit) Label() string {
	if u == nil {
		return "none"
	}
	name := u.Template.Name
	if name == "" {
		name = u.Template.ID
	}
	return fmt.Sprintf("%s[%d] %s", u.Side, u.Position, name)
}

// ActiveBoard is the eight-slot combat board for one side.
type ActiveBoard struct {
	Side  Side
	Slots [Slots]*ActiveUnit
}

// At returns the occupant of a position, nil when empty or out of range.
func (b *ActiveBoard) At(position int) *ActiveUnit {
	if b == nil || position < 0 || position >= Slots {
		return nil
	}
	return b.Slots[position]
}

// Live returns the living units in increasing position order.
func (b *ActiveBoard) Live() []*ActiveUnit {
	if b == nil {
		return nil
	}
	live := make([]*ActiveUnit, 0, Slots)
	for _, unit := range b.Slots {
		if unit.Alive() {
			live = append(live, unit)
		}
	}
	return live
}

// HasLive reports whether at least one unit is alive.
func (b *ActiveBoard) HasLive() bool {
	if b == nil {
		return false
	}
	for _, unit := range b.Slots {
		if unit.Alive() {
			return true
		}
	}
	return false
}

// RemoveDead clears slots whose occupant has died and returns the removed units.
func (b *ActiveBoard) RemoveDead() []*ActiveUnit {
	if b == nil {
		return nil
	}
	var removed []*ActiveUnit
	for position, unit := range b.Slots {
		if unit != nil && !unit.Alive() {
			removed = append(removed, unit)
			b.Slots[position] = nil
		}
	}
	return removed
}

// Swap exchanges the occupants of two positions and updates their Position fields.
func (b *ActiveBoard) Swap(from, to int) {
	if b == nil || from < 0 || to < 0 || from >= Slots || to >= Slots || from == to {
		return
	}
	b.Slots[from], b.Slots[to] = b.Slots[to], b.Slots[from]
	if b.Slots[from] != nil {
		b.Slots[from].Position = from
	}
	if b.Slots[to] != nil {
		b.Slots[to].Position = to
	}
}

// ToActiveBoard applies star scaling and assigns canonical positions row-major.
func ToActiveBoard(external Board, side Side) *ActiveBoard {
	active := &ActiveBoard{Side: side}
	for position := 0; position < Slots; position++ {
		template := external.Slot(position)
		if template == nil {
			continue
		}
		active.Slots[position] = newActiveUnit(*template.Clone(), position, side)
	}
	return active
}

func newActiveUnit(template Unit, position int, side Side) *ActiveUnit {
	//1.- Star scaling is linear on both base stats.
	health := template.MaxHealth()
	attack := template.Attack * max(template.Stars, 1)
	current := health
	//2.- Surviving health from a previous round is honoured up to the new maximum.
	if template.CurrentHealth > 0 && template.CurrentHealth <= health {
		current = template.CurrentHealth
	}
	return &ActiveUnit{
		Template:      template,
		Position:      position,
		Side:          side,
		CurrentHealth: current,
		BuffedAttack:  attack,
		BuffedHealth:  health,
		DodgeChance:   template.DodgeChance,
		CritChance:    template.CritChance,
		IsDead:        current <= 0,
		HasTaunt:      template.HasTag(TagTaunt),
		Flying:        template.HasTag(TagFlying),
	}
}

// FromActiveBoard converts back to the external layout, dropping dead units and
// recording surviving health on each template. Round buffs expire with the
// round, so the recorded health never exceeds the template's MaxHealth.
func FromActiveBoard(active *ActiveBoard) Board {
	external := EmptyBoard()
	if active == nil {
		return external
	}
	for position, unit := range active.Slots {
		if !unit.Alive() {
			continue
		}
		template := unit.Template.Clone()
		template.CurrentHealth = min(unit.CurrentHealth, template.MaxHealth())
		if position < RowSize {
			external.Top[position] = template
		} else {
			external.Bottom[position-RowSize] = template
		}
	}
	return external
}
