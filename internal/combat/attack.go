package combat

import "math"

// AttackProcessor resolves target selection and basic-attack damage. The
// attack-speed accumulator lives on the unit; one point of gauge is one
// attack, so speeds above 10 attacks per second still resolve every swing.
type AttackProcessor struct {
	state      *CombatState
	dispatcher *Dispatcher
}

func NewAttackProcessor(state *CombatState, dispatcher *Dispatcher) *AttackProcessor {
	return &AttackProcessor{state: state, dispatcher: dispatcher}
}

// Advance accrues attack gauge for every living, unstunned unit and resolves
// due attacks in deterministic roster order.
func (p *AttackProcessor) Advance(dt float64) {
	for _, unit := range p.state.Units {
		if !unit.Alive() || unit.Stunned() {
			continue
		}
		unit.attackGauge += unit.AttackSpeed * dt
		for unit.attackGauge >= 1 && unit.Alive() {
			unit.attackGauge--
			p.resolveAttack(unit)
		}
	}
}

// resolveAttack picks a target, applies the damage formula, and commits the
// result together with the attacker's mana accrual in one event.
func (p *AttackProcessor) resolveAttack(attacker *Unit) {
	target := p.SelectTarget(attacker)
	if target == nil {
		return
	}
	damage := Damage(attacker, target)
	p.dispatcher.CommitAttack(attacker, target, damage, attacker.ManaPerAttack, false)
}

// Damage is the shared formula: effective attack minus effective defense,
// never below one.
func Damage(attacker, target *Unit) float64 {
	return math.Max(1, attacker.Attack-target.Defense)
}

// SelectTarget rolls the attacker's bias: with probability TargetBias it
// focuses the living enemy with the highest current defense (first in roster
// order on ties); otherwise it picks uniformly. Both rolls draw from the
// combat's seeded generator.
func (p *AttackProcessor) SelectTarget(attacker *Unit) *Unit {
	enemies := p.state.LivingEnemies(attacker)
	if len(enemies) == 0 {
		return nil
	}
	if p.state.RandFloat() < attacker.TargetBias {
		best := enemies[0]
		for _, enemy := range enemies[1:] {
			if enemy.Defense > best.Defense {
				best = enemy
			}
		}
		return best
	}
	return enemies[p.state.RandIntn(len(enemies))]
}
