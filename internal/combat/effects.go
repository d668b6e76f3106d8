package combat

// TargetMode is the closed set of recipient resolutions for buffs and
// rewards. Each mode enumerates an explicit target set; there is no ad hoc
// branching on the caller side.
type TargetMode uint8

const (
	TargetSelf TargetMode = iota
	TargetTeam
	TargetTraitMates
)

func (m TargetMode) String() string {
	switch m {
	case TargetTeam:
		return "team"
	case TargetTraitMates:
		return "trait_mates"
	default:
		return "self"
	}
}

// dotTickInterval is the simulation spacing of DoT and regen ticks.
const dotTickInterval = 1.0

// EffectProcessor owns the effect lifecycle: delta computation at apply time,
// per-second ticking, and exact reversal at expiry. All mutations route
// through the dispatcher.
type EffectProcessor struct {
	state      *CombatState
	dispatcher *Dispatcher
}

func NewEffectProcessor(state *CombatState, dispatcher *Dispatcher) *EffectProcessor {
	return &EffectProcessor{state: state, dispatcher: dispatcher}
}

// Resolve expands a target mode into the explicit unit set, in deterministic
// roster order.
func (p *EffectProcessor) Resolve(mode TargetMode, source *Unit, trait string) []*Unit {
	if source == nil {
		return nil
	}
	switch mode {
	case TargetTeam:
		return p.state.Living(source.Side)
	case TargetTraitMates:
		mates := make([]*Unit, 0)
		for _, unit := range p.state.Living(source.Side) {
			if unit.ID == source.ID {
				continue
			}
			if unit.HasTrait(trait) {
				mates = append(mates, unit)
			}
		}
		return mates
	default:
		if !source.Alive() {
			return nil
		}
		return []*Unit{source}
	}
}

// ApplyStatBuff computes the delta — flat, or percentage of the unbuffed base
// stat — scales it by the recipient's buff amplifier, commits it, and stores
// the exact committed value for reversal. A negative amount produces a debuff.
func (p *EffectProcessor) ApplyStatBuff(target *Unit, sourceID string, stat StatID, amount float64, value ValueType, duration float64) *Effect {
	if target == nil || !target.Alive() {
		return nil
	}
	delta := amount
	if value == ValuePercent {
		delta = target.BaseStat(stat) * amount / 100
	}
	if stat != StatBuffAmp {
		delta *= target.BuffAmp
	}
	kind := EffectStatBuff
	if delta < 0 {
		kind = EffectDebuff
	}
	eff := &Effect{
		ID:           p.state.NextEffectID(),
		Kind:         kind,
		Stat:         stat,
		Magnitude:    amount,
		Value:        value,
		Duration:     duration,
		AppliedDelta: delta,
		SourceID:     sourceID,
		AppliedAt:    p.state.Time,
		ExpiresAt:    expiresAtOrInf(p.state.Time, duration),
	}
	p.dispatcher.CommitEffectApply(target, eff)
	return eff
}

// ApplyShield grants a damage-absorption buffer consumed before hp.
func (p *EffectProcessor) ApplyShield(target *Unit, sourceID string, amount, duration float64) *Effect {
	if target == nil || !target.Alive() || amount <= 0 {
		return nil
	}
	eff := &Effect{
		ID:           p.state.NextEffectID(),
		Kind:         EffectShield,
		Magnitude:    amount,
		Value:        ValueFlat,
		Duration:     duration,
		AppliedDelta: amount * target.BuffAmp,
		SourceID:     sourceID,
		AppliedAt:    p.state.Time,
		ExpiresAt:    expiresAtOrInf(p.state.Time, duration),
	}
	p.dispatcher.CommitEffectApply(target, eff)
	return eff
}

// ApplyStun suppresses attacks and casts until expiry.
func (p *EffectProcessor) ApplyStun(target *Unit, sourceID string, duration float64) *Effect {
	if target == nil || !target.Alive() || duration <= 0 {
		return nil
	}
	eff := &Effect{
		ID:        p.state.NextEffectID(),
		Kind:      EffectStun,
		Value:     ValueFlat,
		Duration:  duration,
		SourceID:  sourceID,
		AppliedAt: p.state.Time,
		ExpiresAt: expiresAtOrInf(p.state.Time, duration),
	}
	p.dispatcher.CommitEffectApply(target, eff)
	return eff
}

// ApplyDamageOverTime schedules a fixed number of per-second damage ticks.
// The first tick lands one interval after application.
func (p *EffectProcessor) ApplyDamageOverTime(target *Unit, sourceID string, damagePerTick float64, ticks int) *Effect {
	if target == nil || !target.Alive() || ticks <= 0 || damagePerTick <= 0 {
		return nil
	}
	eff := &Effect{
		ID:             p.state.NextEffectID(),
		Kind:           EffectDamageOverTime,
		Magnitude:      damagePerTick,
		Value:          ValueFlat,
		SourceID:       sourceID,
		AppliedAt:      p.state.Time,
		ExpiresAt:      p.state.Time + float64(ticks)*dotTickInterval,
		TicksRemaining: ticks,
		nextTickAt:     p.state.Time + dotTickInterval,
	}
	p.dispatcher.CommitEffectApply(target, eff)
	return eff
}

// ApplyHPRegen heals per second for the duration. A percentage magnitude
// heals that share of max hp per tick.
func (p *EffectProcessor) ApplyHPRegen(target *Unit, sourceID string, amount float64, value ValueType, duration float64) *Effect {
	if target == nil || !target.Alive() || amount <= 0 || duration <= 0 {
		return nil
	}
	eff := &Effect{
		ID:         p.state.NextEffectID(),
		Kind:       EffectHPRegen,
		Magnitude:  amount,
		Value:      value,
		Duration:   duration,
		SourceID:   sourceID,
		AppliedAt:  p.state.Time,
		ExpiresAt:  expiresAtOrInf(p.state.Time, duration),
		nextTickAt: p.state.Time + dotTickInterval,
	}
	p.dispatcher.CommitEffectApply(target, eff)
	return eff
}

// Tick advances every unit's effect set to the current simulation time:
// due DoT and regen ticks fire first, then effects past their expiry are
// reversed and removed. A final DoT tick and its expiration land in the same
// tick, tick event first.
func (p *EffectProcessor) Tick() {
	now := p.state.Time
	for _, unit := range p.state.Units {
		if !unit.Alive() {
			continue
		}
		p.tickUnit(unit, now)
	}
}

func (p *EffectProcessor) tickUnit(unit *Unit, now float64) {
	// Effects can expire while iterating; walk a private copy of the ids in
	// application order.
	active := append([]*Effect(nil), unit.Effects...)
	for _, eff := range active {
		if eff == nil || unit.effectByID(eff.ID) == nil {
			continue
		}
		switch eff.Kind {
		case EffectDamageOverTime:
			for eff.TicksRemaining > 0 && eff.nextTickAt <= now+timeEpsilon {
				eff.nextTickAt += dotTickInterval
				p.dispatcher.CommitDoTTick(unit, eff)
				if !unit.Alive() {
					return
				}
			}
			if eff.TicksRemaining <= 0 {
				p.dispatcher.CommitEffectExpire(unit, eff)
			}
		case EffectHPRegen:
			for eff.nextTickAt <= now+timeEpsilon && eff.nextTickAt <= eff.ExpiresAt+timeEpsilon {
				amount := eff.Magnitude
				if eff.Value == ValuePercent {
					amount = unit.MaxHP * eff.Magnitude / 100
				}
				eff.nextTickAt += dotTickInterval
				p.dispatcher.CommitRegen(unit, amount, "hp_regen")
			}
			if now+timeEpsilon >= eff.ExpiresAt {
				p.dispatcher.CommitEffectExpire(unit, eff)
			}
		default:
			if !eff.permanent() && now+timeEpsilon >= eff.ExpiresAt {
				p.dispatcher.CommitEffectExpire(unit, eff)
			}
		}
	}
}
