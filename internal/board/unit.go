package board

import "strings"

// Trigger names the moment an ability fires.
type Trigger string

const (
	TriggerStartOfCombat Trigger = "start_of_combat"
	TriggerOnAttack      Trigger = "on_attack"
	TriggerOnDeath       Trigger = "on_death"
	TriggerPassive       Trigger = "passive"
)

// Valid reports whether the trigger belongs to the closed trigger set.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerStartOfCombat, TriggerOnAttack, TriggerOnDeath, TriggerPassive:
		return true
	}
	return false
}

// EffectKind enumerates the closed set of ability effects.
type EffectKind string

const (
	EffectDamage     EffectKind = "damage"
	EffectHeal       EffectKind = "heal"
	EffectBuffAttack EffectKind = "buff_attack"
	EffectBuffHealth EffectKind = "buff_health"
	EffectShield     EffectKind = "shield"
	EffectTaunt      EffectKind = "taunt"
	EffectReposition EffectKind = "reposition"
	EffectDodge      EffectKind = "dodge"
	EffectCrit       EffectKind = "crit"
)

// Valid reports whether the effect kind is supported.
func (k EffectKind) Valid() bool {
	switch k {
	case EffectDamage, EffectHeal, EffectBuffAttack, EffectBuffHealth, EffectShield,
		EffectTaunt, EffectReposition, EffectDodge, EffectCrit:
		return true
	}
	return false
}

// TargetSide selects which board an effect resolves against.
type TargetSide string

const (
	TargetEnemy TargetSide = "enemy"
	TargetAlly  TargetSide = "ally"
	TargetSelf  TargetSide = "self"
)

// Valid reports whether the side is one of enemy, ally or self.
func (s TargetSide) Valid() bool {
	switch s {
	case TargetEnemy, TargetAlly, TargetSelf:
		return true
	}
	return false
}

// Priority is the ordering used to pick targets on a board.
type Priority string

const (
	PriorityTaunt         Priority = "taunt"
	PriorityLowestHP      Priority = "lowest_hp"
	PriorityHighestHP     Priority = "highest_hp"
	PriorityHighestAttack Priority = "highest_attack"
	PriorityRandom        Priority = "random"
	PriorityFirst         Priority = "first"
	PriorityBackline      Priority = "backline"
	PriorityFlying        Priority = "flying"
)

// Valid reports whether the priority is supported by the target selector.
func (p Priority) Valid() bool {
	switch p {
	case PriorityTaunt, PriorityLowestHP, PriorityHighestHP, PriorityHighestAttack,
		PriorityRandom, PriorityFirst, PriorityBackline, PriorityFlying:
		return true
	}
	return false
}

// Effect is the structured descriptor of one ability sub-effect.
type Effect struct {
	Kind     EffectKind `json:"kind" yaml:"kind"`
	Amount   int        `json:"amount,omitempty" yaml:"amount,omitempty"`
	Side     TargetSide `json:"side,omitempty" yaml:"side,omitempty"`
	Priority Priority   `json:"priority,omitempty" yaml:"priority,omitempty"`
	Count    int        `json:"count,omitempty" yaml:"count,omitempty"`
}

// Ability couples a trigger with its effects. Effect is display text only.
type Ability struct {
	Name    string   `json:"name" yaml:"name"`
	Trigger Trigger  `json:"trigger" yaml:"trigger"`
	Effect  string   `json:"effect,omitempty" yaml:"effect,omitempty"`
	Effects []Effect `json:"effects,omitempty" yaml:"effects,omitempty"`
}

// Tags recognised on unit templates.
const (
	TagFlying = "flying"
	TagTaunt  = "taunt"
)

// Unit is the immutable template a player places on the board.
type Unit struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Tier   int    `json:"tier" yaml:"tier"`
	Stars  int    `json:"stars" yaml:"stars"`
	Attack int    `json:"attack" yaml:"attack"`
	Health int    `json:"health" yaml:"health"`
	// CurrentHealth carries surviving health from a previous round; zero means full.
	CurrentHealth int      `json:"currentHealth,omitempty" yaml:"-"`
	Ability       Ability  `json:"ability" yaml:"ability"`
	DodgeChance   int      `json:"dodgeChance,omitempty" yaml:"dodge_chance,omitempty"`
	CritChance    int      `json:"critChance,omitempty" yaml:"crit_chance,omitempty"`
	Tags          []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Clone returns a deep copy so slices are never shared between boards.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	clone := *u
	if len(u.Ability.Effects) > 0 {
		clone.Ability.Effects = append([]Effect(nil), u.Ability.Effects...)
	}
	if len(u.Tags) > 0 {
		clone.Tags = append([]string(nil), u.Tags...)
	}
	return &clone
}

// MaxHealth is the star-scaled health ceiling a round starts from.
func (u *Unit) MaxHealth() int {
	if u == nil {
		return 0
	}
	return u.Health * max(u.Stars, 1)
}

// HasTag reports whether the template carries the tag (case-insensitive).
func (u *Unit) HasTag(tag string) bool {
	if u == nil {
		return false
	}
	for _, candidate := range u.Tags {
		if strings.EqualFold(strings.TrimSpace(candidate), tag) {
			return true
		}
	}
	return false
}
