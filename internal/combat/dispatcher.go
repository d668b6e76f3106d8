package combat

import (
	"math"

	"autoarena/server/internal/eventlog"
)

// Dispatcher is the only code path permitted to mutate hp, mana, shield, or a
// unit's effect set. Every method pairs exactly one state mutation with one
// event emission: the mutation is applied to the unit record, the event is
// built from the resulting values, and only then does the sink see it. There
// is no window in which a consumer can observe a value the state does not
// hold, which is the desync class this design removes.
type Dispatcher struct {
	state *CombatState
	sink  eventlog.Sink
}

func NewDispatcher(state *CombatState, sink eventlog.Sink) *Dispatcher {
	return &Dispatcher{state: state, sink: sink}
}

// emit stamps the next gapless sequence number and the current simulation
// time, then hands the finalized payload to the sink.
func (d *Dispatcher) emit(event eventlog.Event) {
	header := event.Head()
	header.Type = event.EventType()
	header.Seq = d.state.NextSeq()
	header.Timestamp = d.state.Time
	if d.sink != nil {
		d.sink.Record(event)
	}
}

// EmitStart opens the combat stream.
func (d *Dispatcher) EmitStart() {
	d.emit(&eventlog.Start{})
}

// EmitUnitsInit publishes the roster baseline the reconstructor builds from.
func (d *Dispatcher) EmitUnitsInit(playerSyn, opponentSyn []eventlog.SynergyInfo, opponent eventlog.OpponentInfo) {
	state := d.state.GameState()
	d.emit(&eventlog.UnitsInit{
		PlayerUnits:       state.PlayerUnits,
		OpponentUnits:     state.OpponentUnits,
		PlayerSynergies:   playerSyn,
		OpponentSynergies: opponentSyn,
		Opponent:          opponent,
		Round:             d.state.Round.Round,
	})
}

// EmitSnapshot publishes a full resync checkpoint and returns it so the loop
// can also record a keyframe.
func (d *Dispatcher) EmitSnapshot() *eventlog.StateSnapshot {
	snapshot := &eventlog.StateSnapshot{GameState: d.state.GameState()}
	d.emit(snapshot)
	return snapshot
}

// CommitAttack resolves damage absorption and mana accrual in one step.
// Shield absorbs first; the remainder reduces hp, floored at zero. The event
// carries the target's resulting hp and shield and, when mana accrued, the
// attacker's resulting mana — all computed here exactly once.
func (d *Dispatcher) CommitAttack(attacker, target *Unit, damage float64, manaGain float64, isSkill bool) *eventlog.UnitAttack {
	if attacker == nil || target == nil {
		return nil
	}
	absorbed := math.Min(target.Shield, damage)
	target.Shield -= absorbed
	hpLoss := damage - absorbed
	target.HP = math.Max(0, target.HP-hpLoss)

	event := &eventlog.UnitAttack{
		AttackerID:     attacker.ID,
		TargetID:       target.ID,
		Damage:         damage,
		UnitHP:         target.HP,
		UnitShield:     target.Shield,
		ShieldAbsorbed: absorbed,
		IsSkill:        isSkill,
	}
	if manaGain > 0 && attacker.Alive() {
		attacker.Mana = math.Min(attacker.MaxMana, attacker.Mana+manaGain)
		mana := attacker.Mana
		event.AttackerMana = &mana
	}
	d.emit(event)
	return event
}

// CommitEffectApply attaches a prepared effect instance and commits its
// delta. The processor computes AppliedDelta before calling; this method owns
// the mutation and the event.
func (d *Dispatcher) CommitEffectApply(target *Unit, eff *Effect) {
	if target == nil || eff == nil {
		return
	}
	target.Effects = append(target.Effects, eff)

	switch eff.Kind {
	case EffectStatBuff, EffectDebuff:
		d.applyStatDelta(target, eff.Stat, eff.AppliedDelta)
		d.emit(&eventlog.StatBuff{
			UnitID:       target.ID,
			Stat:         eff.Stat.String(),
			Amount:       eff.Magnitude,
			BuffType:     eff.Value.String(),
			Duration:     eff.Duration,
			EffectID:     eff.ID,
			AppliedDelta: eff.AppliedDelta,
			UnitStat:     target.CurrentStat(eff.Stat),
			UnitHP:       target.HP,
		})
	case EffectShield:
		target.Shield += eff.AppliedDelta
		d.emit(&eventlog.ShieldApplied{
			UnitID:     target.ID,
			Amount:     eff.AppliedDelta,
			Duration:   eff.Duration,
			EffectID:   eff.ID,
			UnitShield: target.Shield,
		})
	case EffectStun:
		d.emit(&eventlog.UnitStunned{
			UnitID:   target.ID,
			Duration: eff.Duration,
			EffectID: eff.ID,
		})
	case EffectDamageOverTime:
		d.emit(&eventlog.DamageOverTimeApplied{
			UnitID:   target.ID,
			EffectID: eff.ID,
			Damage:   eff.Magnitude,
			Ticks:    eff.TicksRemaining,
			SourceID: eff.SourceID,
		})
	case EffectHPRegen:
		// Regen announces itself through its first tick; application is
		// tracked in snapshots via the effect set.
	}
}

// CommitDoTTick applies one damage tick and reports the remaining count.
func (d *Dispatcher) CommitDoTTick(target *Unit, eff *Effect) {
	if target == nil || eff == nil {
		return
	}
	eff.TicksRemaining--
	target.HP = math.Max(0, target.HP-eff.Magnitude)
	d.emit(&eventlog.DamageOverTimeTick{
		UnitID:         target.ID,
		EffectID:       eff.ID,
		Damage:         eff.Magnitude,
		UnitHP:         target.HP,
		TicksRemaining: eff.TicksRemaining,
	})
}

// CommitRegen heals hp, capped at max, and reports the post-heal value.
func (d *Dispatcher) CommitRegen(target *Unit, amount float64, cause string) {
	if target == nil || amount <= 0 {
		return
	}
	target.HP = math.Min(target.MaxHP, target.HP+amount)
	d.emit(&eventlog.RegenGain{
		UnitID: target.ID,
		Amount: amount,
		UnitHP: target.HP,
		Cause:  cause,
	})
}

// CommitEffectExpire reverses exactly the applied delta, removes the
// instance, and emits the expiration event. That event is the only legitimate
// expiry signal a consumer may act on.
func (d *Dispatcher) CommitEffectExpire(target *Unit, eff *Effect) {
	if target == nil || eff == nil {
		return
	}
	target.removeEffect(eff.ID)

	event := &eventlog.EffectExpired{
		UnitID:   target.ID,
		EffectID: eff.ID,
		Kind:     eff.Kind.String(),
	}
	switch eff.Kind {
	case EffectStatBuff, EffectDebuff:
		d.applyStatDelta(target, eff.Stat, -eff.AppliedDelta)
		event.Stat = eff.Stat.String()
		event.Value = target.CurrentStat(eff.Stat)
	case EffectShield:
		target.Shield = math.Max(0, target.Shield-eff.AppliedDelta)
		event.Value = target.Shield
	case EffectStun:
		event.Value = 0
	case EffectDamageOverTime:
		// DoT expiry has a dedicated event carrying the final hp.
		d.emit(&eventlog.DamageOverTimeExpired{
			UnitID:   target.ID,
			EffectID: eff.ID,
			UnitHP:   target.HP,
		})
		return
	case EffectHPRegen:
		event.Value = target.HP
	}
	event.UnitHP = target.HP
	d.emit(event)
}

// CommitManaSpend deducts a skill cost and emits the mana checkpoint.
func (d *Dispatcher) CommitManaSpend(unit *Unit, cost float64) {
	if unit == nil {
		return
	}
	unit.Mana = math.Max(0, unit.Mana-cost)
	d.emitManaUpdate(unit)
}

// CommitManaGain adds regen mana, capped at max, and emits the checkpoint.
func (d *Dispatcher) CommitManaGain(unit *Unit, amount float64) {
	if unit == nil || amount <= 0 {
		return
	}
	unit.Mana = math.Min(unit.MaxMana, unit.Mana+amount)
	d.emitManaUpdate(unit)
}

func (d *Dispatcher) emitManaUpdate(unit *Unit) {
	d.emit(&eventlog.ManaUpdate{
		UnitID:      unit.ID,
		CurrentMana: unit.Mana,
		MaxMana:     unit.MaxMana,
	})
}

// EmitSkillCast closes a cast after its effect list resolved.
func (d *Dispatcher) EmitSkillCast(caster *Unit, skillName string, target *Unit) {
	event := &eventlog.SkillCast{
		CasterID:  caster.ID,
		SkillName: skillName,
	}
	if target != nil {
		event.TargetID = target.ID
		event.TargetHP = target.HP
	}
	d.emit(event)
}

// CommitGoldReward credits a side's gold tally.
func (d *Dispatcher) CommitGoldReward(unit *Unit, amount int, cause string) {
	if unit == nil || amount <= 0 {
		return
	}
	d.state.Gold[unit.Side] += amount
	d.emit(&eventlog.GoldReward{
		UnitID:   unit.ID,
		Side:     unit.Side.String(),
		Amount:   amount,
		TeamGold: d.state.Gold[unit.Side],
		Cause:    cause,
	})
}

// CommitUnitDeath emits the terminal unit event and discards the unit's
// effect set. Reversal is skipped: on a dead unit it is unobservable.
func (d *Dispatcher) CommitUnitDeath(unit *Unit) {
	if unit == nil || unit.deathResolved {
		return
	}
	unit.deathResolved = true
	unit.Effects = nil
	d.emit(&eventlog.UnitDied{
		UnitID:   unit.ID,
		UnitName: unit.Name,
	})
}

// EmitOutcome publishes the terminal pair: victory or defeat, then end.
func (d *Dispatcher) EmitOutcome(winner Side, hasWinner bool) {
	final := d.state.GameState()
	result := "draw"
	if hasWinner {
		if winner == SideA {
			result = "victory"
			d.emit(&eventlog.Victory{Winner: winner.String(), FinalState: eventlog.CloneGameState(final)})
		} else {
			result = "defeat"
			d.emit(&eventlog.Defeat{Winner: winner.String(), FinalState: eventlog.CloneGameState(final)})
		}
	}
	d.emit(&eventlog.End{Result: result, FinalState: final})
}

// applyStatDelta commits a stat change. MaxHP buffs raise current hp by the
// same amount; reversal lowers max and clamps hp back inside the invariant.
func (d *Dispatcher) applyStatDelta(target *Unit, stat StatID, delta float64) {
	switch stat {
	case StatAttack:
		target.Attack += delta
	case StatDefense:
		target.Defense += delta
	case StatAttackSpeed:
		target.AttackSpeed += delta
	case StatMaxHP:
		target.MaxHP += delta
		if delta > 0 {
			target.HP += delta
		}
		if target.HP > target.MaxHP {
			target.HP = target.MaxHP
		}
	case StatBuffAmp:
		target.BuffAmp += delta
	}
}
