package combat

import (
	"fmt"
	"strings"

	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/targeting"
)

type pendingDeath struct {
	victim *board.ActiveUnit
	killer *board.ActiveUnit
}

// fireTrigger fires the unit's ability when its trigger matches. On-death
// abilities fire for dead owners; every other trigger needs a living owner.
// An ability without effects is a marker and logs nothing.
func (s *state) fireTrigger(owner *board.ActiveUnit, trigger board.Trigger, killer *board.ActiveUnit) {
	if owner == nil || owner.Template.Ability.Trigger != trigger || len(owner.Template.Ability.Effects) == 0 {
		return
	}
	if trigger != board.TriggerOnDeath && !owner.Alive() {
		return
	}
	ability := owner.Template.Ability

	//1.- Resolve every sub-effect first so the log carries one combined entry.
	var parts []string
	var deaths []pendingDeath
	for _, effect := range ability.Effects {
		described, killed := s.applyEffect(owner, effect, killer)
		if described != "" {
			parts = append(parts, described)
		}
		deaths = append(deaths, killed...)
	}
	description := strings.TrimSpace(ability.Effect)
	if len(parts) > 0 {
		if description != "" {
			description += ": "
		}
		description += strings.Join(parts, "; ")
	}
	s.emit(Event{
		Type:        EventAbility,
		Source:      refOf(owner),
		Ability:     ability.Name,
		Trigger:     trigger,
		Description: description,
	})

	//2.- Deaths caused by the ability are logged after the ability itself.
	for _, death := range deaths {
		s.handleDeath(death.victim, death.killer)
	}
}

func (s *state) applyEffect(owner *board.ActiveUnit, effect board.Effect, killer *board.ActiveUnit) (string, []pendingDeath) {
	targets := s.effectTargets(owner, effect, killer)
	if len(targets) == 0 {
		return fmt.Sprintf("%s had no target", effect.Kind), nil
	}
	var deaths []pendingDeath
	labels := make([]string, 0, len(targets))
	for _, target := range targets {
		switch effect.Kind {
		case board.EffectDamage:
			dealt := ApplyDamage(target, effect.Amount)
			if owner.Alive() {
				owner.DamageDealt += dealt
			}
			if !target.Alive() {
				deaths = append(deaths, pendingDeath{victim: target, killer: owner})
			}
			labels = append(labels, fmt.Sprintf("%s -%d", target.Label(), dealt))
		case board.EffectHeal:
			healed := ApplyHealing(target, effect.Amount)
			labels = append(labels, fmt.Sprintf("%s +%d", target.Label(), healed))
		case board.EffectBuffAttack:
			ApplyAttackBuff(target, effect.Amount)
			labels = append(labels, fmt.Sprintf("%s atk+%d", target.Label(), effect.Amount))
		case board.EffectBuffHealth:
			ApplyHealthBuff(target, effect.Amount)
			labels = append(labels, fmt.Sprintf("%s hp+%d", target.Label(), effect.Amount))
		case board.EffectShield:
			target.HasShield = true
			labels = append(labels, target.Label()+" shielded")
		case board.EffectTaunt:
			target.HasTaunt = true
			labels = append(labels, target.Label()+" taunting")
		case board.EffectReposition:
			from := target.Position
			s.reposition(target)
			labels = append(labels, fmt.Sprintf("%s moved from %d", target.Label(), from))
		case board.EffectDodge:
			target.DodgeChance = clampChance(target.DodgeChance + effect.Amount)
			labels = append(labels, fmt.Sprintf("%s dodge %d%%", target.Label(), target.DodgeChance))
		case board.EffectCrit:
			target.CritChance = clampChance(target.CritChance + effect.Amount)
			labels = append(labels, fmt.Sprintf("%s crit %d%%", target.Label(), target.CritChance))
		}
	}
	return fmt.Sprintf("%s %s", effect.Kind, strings.Join(labels, ", ")), deaths
}

// effectTargets selects all targets of one effect in a single selector call.
func (s *state) effectTargets(owner *board.ActiveUnit, effect board.Effect, killer *board.ActiveUnit) []*board.ActiveUnit {
	side := effect.Side
	if side == "" {
		side = defaultSide(effect.Kind)
	}
	count := effect.Count
	if count <= 0 {
		count = 1
	}
	switch side {
	case board.TargetSelf:
		if owner.Alive() {
			return []*board.ActiveUnit{owner}
		}
		return nil
	case board.TargetAlly:
		return targeting.SelectN(owner, s.boards[owner.Side], priorityOr(effect.Priority, board.PriorityRandom), count, s.src)
	default:
		//1.- A death rattle without an explicit priority answers the killer when it still stands.
		if effect.Priority == "" && count == 1 && killer.Alive() && killer.Side != owner.Side {
			return []*board.ActiveUnit{killer}
		}
		return targeting.SelectN(nil, s.boards[owner.Side.Opponent()], priorityOr(effect.Priority, board.PriorityRandom), count, s.src)
	}
}

// reposition moves a unit to the mirrored slot of the other row, swapping with any occupant.
func (s *state) reposition(unit *board.ActiveUnit) {
	own := s.boards[unit.Side]
	to := unit.Position + board.RowSize
	if unit.Position >= board.RowSize {
		to = unit.Position - board.RowSize
	}
	own.Swap(unit.Position, to)
}

func defaultSide(kind board.EffectKind) board.TargetSide {
	if kind == board.EffectDamage {
		return board.TargetEnemy
	}
	return board.TargetSelf
}

func priorityOr(priority, fallback board.Priority) board.Priority {
	if priority == "" {
		return fallback
	}
	return priority
}

func clampChance(value int) int {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

// handleDeath logs a death once and fires the victim's on-death ability.
func (s *state) handleDeath(victim, killer *board.ActiveUnit) {
	if victim == nil || victim.Alive() || s.dead[victim] {
		return
	}
	s.dead[victim] = true
	event := Event{Type: EventDeath, Target: refOf(victim)}
	if killer != nil {
		event.Source = refOf(killer)
	}
	s.emit(event)
	s.fireTrigger(victim, board.TriggerOnDeath, killer)
}
