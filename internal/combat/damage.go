package combat

import (
	"autobattler/arbiter/internal/board"
	"autobattler/arbiter/internal/logging"
	"autobattler/arbiter/internal/rng"
)

// AttackRoll is the resolved outcome of one standard attack before it is applied.
type AttackRoll struct {
	Damage   int
	Dodged   bool
	Critical bool
}

// LoggingFields returns structured logging fields describing the roll.
func (r AttackRoll) LoggingFields() []logging.Field {
	return []logging.Field{
		logging.Int("damage", r.Damage),
		logging.Bool("dodged", r.Dodged),
		logging.Bool("critical", r.Critical),
	}
}

// ComputeAttackDamage resolves a standard attack. The order of the checks fixes
// how many RNG slots are consumed: a dodge consumes exactly one and skips the
// crit roll; a landed hit consumes one more only when the attacker can crit.
func ComputeAttackDamage(attacker, defender *board.ActiveUnit, src *rng.Source) AttackRoll {
	if attacker == nil || defender == nil {
		return AttackRoll{}
	}
	//1.- Dodge short-circuits everything else.
	if defender.DodgeChance > 0 && src.Chance(defender.DodgeChance) {
		return AttackRoll{Dodged: true}
	}

	//2.- Healthier defenders soak more; a landed hit always deals at least one.
	defense := defender.CurrentHealth / 10
	base := attacker.BuffedAttack - defense/2
	if base < 1 {
		base = 1
	}

	//3.- Crits double the post-defense value.
	critical := false
	if attacker.CritChance > 0 && src.Chance(attacker.CritChance) {
		base *= 2
		critical = true
	}
	return AttackRoll{Damage: base, Critical: critical}
}

// ApplyDamage subtracts health and returns the damage actually dealt. A shield
// absorbs one positive hit entirely and is consumed by it.
func ApplyDamage(unit *board.ActiveUnit, amount int) int {
	if unit == nil || !unit.Alive() || amount <= 0 {
		return 0
	}
	if unit.HasShield {
		unit.HasShield = false
		return 0
	}
	actual := amount
	if actual > unit.CurrentHealth {
		actual = unit.CurrentHealth
	}
	unit.CurrentHealth -= actual
	unit.DamageTaken += actual
	if unit.CurrentHealth <= 0 {
		unit.CurrentHealth = 0
		unit.IsDead = true
	}
	return actual
}

// ApplyHealing restores health up to the buffed maximum and returns the amount healed.
func ApplyHealing(unit *board.ActiveUnit, amount int) int {
	if unit == nil || !unit.Alive() || amount <= 0 {
		return 0
	}
	missing := unit.BuffedHealth - unit.CurrentHealth
	if missing <= 0 {
		return 0
	}
	if amount > missing {
		amount = missing
	}
	unit.CurrentHealth += amount
	return amount
}

// ApplyAttackBuff adds to the buffed attack.
func ApplyAttackBuff(unit *board.ActiveUnit, amount int) {
	if unit == nil || !unit.Alive() {
		return
	}
	unit.BuffedAttack += amount
}

// ApplyHealthBuff raises both the maximum and the current health.
func ApplyHealthBuff(unit *board.ActiveUnit, amount int) {
	if unit == nil || !unit.Alive() {
		return
	}
	unit.BuffedHealth += amount
	unit.CurrentHealth += amount
}
