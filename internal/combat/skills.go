package combat

import "math"

// SkillEffectKind is the closed set of things a cast can do.
type SkillEffectKind uint8

const (
	SkillDamage SkillEffectKind = iota
	SkillHeal
	SkillBuff
	SkillShield
	SkillStun
	SkillDoT
)

// SkillTarget selects recipients for one entry of a skill's effect list.
type SkillTarget uint8

const (
	SkillTargetEnemy SkillTarget = iota
	SkillTargetSelf
	SkillTargetTeam
	SkillTargetAllEnemies
)

// SkillEffect is one entry of a skill's effect list.
type SkillEffect struct {
	Kind         SkillEffectKind
	Target       SkillTarget
	Stat         StatID
	Amount       float64
	IsPercentage bool
	Duration     float64
	Ticks        int
}

// Skill is a mana-gated ability.
type Skill struct {
	Name     string
	ManaCost float64
	Effects  []SkillEffect
}

// SkillExecutor casts abilities once a unit's mana reaches the cost.
// An insufficient-mana unit is simply skipped; that is a state, not an error.
type SkillExecutor struct {
	state      *CombatState
	dispatcher *Dispatcher
	effects    *EffectProcessor
	attacks    *AttackProcessor
}

func NewSkillExecutor(state *CombatState, dispatcher *Dispatcher, effects *EffectProcessor, attacks *AttackProcessor) *SkillExecutor {
	return &SkillExecutor{state: state, dispatcher: dispatcher, effects: effects, attacks: attacks}
}

// Tick walks living casters in deterministic roster order and resolves at
// most one cast per unit per tick.
func (e *SkillExecutor) Tick() {
	for _, unit := range e.state.Units {
		if !unit.Alive() || unit.Stunned() {
			continue
		}
		if unit.Skill == nil || unit.Mana < unit.Skill.ManaCost {
			continue
		}
		e.cast(unit)
	}
}

// cast deducts mana, applies the effect list, and closes with the skill_cast
// record. The mana deduction is emitted before any effect so exactly one mana
// value is authoritative at this timestamp; the skill_cast restates the
// primary target's final hp after the whole list resolved.
func (e *SkillExecutor) cast(caster *Unit) {
	skill := caster.Skill
	e.dispatcher.CommitManaSpend(caster, skill.ManaCost)

	// One enemy roll per cast; every enemy-targeted entry in the list hits
	// the same victim.
	var enemy *Unit
	primary := caster
	for _, eff := range skill.Effects {
		switch eff.Target {
		case SkillTargetEnemy, SkillTargetAllEnemies:
			if enemy == nil || !enemy.Alive() {
				enemy = e.attacks.SelectTarget(caster)
			}
		}
	}
	if enemy != nil {
		primary = enemy
	}

	for _, eff := range skill.Effects {
		e.applyEffect(caster, enemy, eff)
	}
	e.dispatcher.EmitSkillCast(caster, skill.Name, primary)
}

func (e *SkillExecutor) applyEffect(caster, enemy *Unit, eff SkillEffect) {
	value := ValueFlat
	if eff.IsPercentage {
		value = ValuePercent
	}
	switch eff.Kind {
	case SkillDamage:
		for _, target := range e.skillVictims(caster, enemy, eff.Target) {
			damage := math.Max(1, eff.Amount-target.Defense)
			e.dispatcher.CommitAttack(caster, target, damage, 0, true)
		}
	case SkillHeal:
		for _, target := range e.skillAllies(caster, eff.Target) {
			amount := eff.Amount
			if eff.IsPercentage {
				amount = target.MaxHP * eff.Amount / 100
			}
			e.dispatcher.CommitRegen(target, amount, "skill:"+caster.Skill.Name)
		}
	case SkillBuff:
		for _, target := range e.skillAllies(caster, eff.Target) {
			e.effects.ApplyStatBuff(target, caster.ID, eff.Stat, eff.Amount, value, eff.Duration)
		}
	case SkillShield:
		for _, target := range e.skillAllies(caster, eff.Target) {
			e.effects.ApplyShield(target, caster.ID, eff.Amount, eff.Duration)
		}
	case SkillStun:
		for _, target := range e.skillVictims(caster, enemy, eff.Target) {
			e.effects.ApplyStun(target, caster.ID, eff.Duration)
		}
	case SkillDoT:
		for _, target := range e.skillVictims(caster, enemy, eff.Target) {
			e.effects.ApplyDamageOverTime(target, caster.ID, eff.Amount, eff.Ticks)
		}
	}
}

func (e *SkillExecutor) skillVictims(caster, enemy *Unit, target SkillTarget) []*Unit {
	switch target {
	case SkillTargetAllEnemies:
		return e.state.LivingEnemies(caster)
	default:
		if enemy == nil || !enemy.Alive() {
			return nil
		}
		return []*Unit{enemy}
	}
}

func (e *SkillExecutor) skillAllies(caster *Unit, target SkillTarget) []*Unit {
	switch target {
	case SkillTargetTeam:
		return e.state.Living(caster.Side)
	default:
		if !caster.Alive() {
			return nil
		}
		return []*Unit{caster}
	}
}
