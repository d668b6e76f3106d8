package combat

// TriggerKind is the closed set of trait trigger hooks. The engine matches
// each exhaustively; an unhandled kind is a compile-time smell, not a silent
// string mismatch.
type TriggerKind uint8

const (
	TriggerPassive TriggerKind = iota
	TriggerOnEnemyDeath
	TriggerOnAllyDeath
	TriggerPerSecond
	TriggerOnAllyHPBelow
	TriggerPerRound
	TriggerManaRegen
	TriggerWinScaling
	TriggerDynamicHPPerLoss

	triggerKindCount
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerPassive:
		return "passive"
	case TriggerOnEnemyDeath:
		return "on_enemy_death"
	case TriggerOnAllyDeath:
		return "on_ally_death"
	case TriggerPerSecond:
		return "per_second_buff"
	case TriggerOnAllyHPBelow:
		return "on_ally_hp_below"
	case TriggerPerRound:
		return "per_round_buff"
	case TriggerManaRegen:
		return "mana_regen"
	case TriggerWinScaling:
		return "win_scaling"
	case TriggerDynamicHPPerLoss:
		return "dynamic_hp_per_loss"
	default:
		return "unknown"
	}
}

// ActionKind enumerates what a fired trigger does.
type ActionKind uint8

const (
	ActionStatBuff ActionKind = iota
	ActionReward
)

// RewardKind enumerates reward payloads.
type RewardKind uint8

const (
	RewardGold RewardKind = iota
	RewardHPRegen
)

// TraitAction is one entry of a trigger's ordered action list.
type TraitAction struct {
	Kind ActionKind

	// stat_buff fields; magnitude rules match EffectProcessor.ApplyStatBuff.
	Stat         StatID
	Amount       float64
	IsPercentage bool
	Duration     float64

	// reward fields.
	Reward RewardKind
	Target TargetMode
	// Chance is a 1-100 roll on the combat's shared generator; zero means
	// the action always resolves.
	Chance int
}

// TraitEffect binds a trigger to its action list. Threshold is the hp
// fraction for on_ally_hp_below.
type TraitEffect struct {
	Trigger     TriggerKind
	TriggerOnce bool
	Threshold   float64
	Actions     []TraitAction
}

// Synergy is one activated trait tier supplied with the roster.
type Synergy struct {
	Name    string
	Count   int
	Active  bool
	Effects []TraitEffect
}

type hpBelowKey struct {
	side  Side
	trait string
	idx   int
	ally  string
}

// TraitTriggerEngine reacts to deaths, per-second boundaries, and hp
// thresholds, granting rewards per the synergy catalog. All probability
// rolls draw from the combat's seeded generator.
type TraitTriggerEngine struct {
	state      *CombatState
	dispatcher *Dispatcher
	effects    *EffectProcessor

	synergies [sideCount][]Synergy

	nextPerSecond float64
	hpBelowFired  map[hpBelowKey]bool
}

func NewTraitTriggerEngine(state *CombatState, dispatcher *Dispatcher, effects *EffectProcessor, synergies map[Side][]Synergy) *TraitTriggerEngine {
	engine := &TraitTriggerEngine{
		state:         state,
		dispatcher:    dispatcher,
		effects:       effects,
		nextPerSecond: dotTickInterval,
		hpBelowFired:  make(map[hpBelowKey]bool),
	}
	for side, list := range synergies {
		if int(side) < int(sideCount) {
			engine.synergies[side] = list
		}
	}
	return engine
}

// Synergies reports one side's activated tiers for the units_init payload.
func (t *TraitTriggerEngine) Synergies(side Side) []Synergy {
	return t.synergies[side]
}

// ApplyPreCombat resolves the passive and round-scaled triggers once before
// the first tick: passive applies flat, per_round_buff scales with the round
// number, win_scaling with the win streak, dynamic_hp_per_loss with
// accumulated losses.
func (t *TraitTriggerEngine) ApplyPreCombat() {
	for side := SideA; side < sideCount; side++ {
		for _, synergy := range t.synergies[side] {
			if !synergy.Active {
				continue
			}
			for _, effect := range synergy.Effects {
				scale := 0
				switch effect.Trigger {
				case TriggerPassive:
					scale = 1
				case TriggerPerRound:
					scale = t.state.Round.Round
				case TriggerWinScaling:
					scale = t.state.Round.Wins
				case TriggerDynamicHPPerLoss:
					scale = t.state.Round.Losses
				default:
					continue
				}
				if scale <= 0 {
					continue
				}
				for _, holder := range t.holders(side, synergy.Name) {
					t.resolveActions(holder, synergy.Name, effect, float64(scale))
				}
			}
		}
	}
}

// Tick fires per-second triggers on whole-second boundaries and re-evaluates
// hp thresholds every tick.
func (t *TraitTriggerEngine) Tick() {
	now := t.state.Time
	perSecond := false
	if now+timeEpsilon >= t.nextPerSecond {
		perSecond = true
		t.nextPerSecond += dotTickInterval
	}
	for side := SideA; side < sideCount; side++ {
		for idx, synergy := range t.synergies[side] {
			if !synergy.Active {
				continue
			}
			for effIdx, effect := range synergy.Effects {
				switch effect.Trigger {
				case TriggerPerSecond:
					if perSecond {
						for _, holder := range t.holders(side, synergy.Name) {
							t.resolveActions(holder, synergy.Name, effect, 1)
						}
					}
				case TriggerManaRegen:
					if perSecond {
						for _, holder := range t.holders(side, synergy.Name) {
							for _, action := range effect.Actions {
								t.dispatcher.CommitManaGain(holder, action.Amount)
							}
						}
					}
				case TriggerOnAllyHPBelow:
					t.evaluateHPBelow(side, idx, effIdx, synergy, effect)
				}
			}
		}
	}
}

// evaluateHPBelow fires once per threshold crossing and re-arms when the
// ally recovers above it.
func (t *TraitTriggerEngine) evaluateHPBelow(side Side, synIdx, effIdx int, synergy Synergy, effect TraitEffect) {
	if effect.Threshold <= 0 {
		return
	}
	holders := t.holders(side, synergy.Name)
	if len(holders) == 0 {
		return
	}
	for _, ally := range t.state.Living(side) {
		key := hpBelowKey{side: side, trait: synergy.Name, idx: effIdx, ally: ally.ID}
		ratio := 1.0
		if ally.MaxHP > 0 {
			ratio = ally.HP / ally.MaxHP
		}
		if ratio >= effect.Threshold {
			delete(t.hpBelowFired, key)
			continue
		}
		if t.hpBelowFired[key] {
			continue
		}
		t.hpBelowFired[key] = true
		if effect.TriggerOnce {
			t.resolveActionsFor(holders[0], ally, synergy.Name, effect, 1)
		} else {
			for _, holder := range holders {
				t.resolveActionsFor(holder, ally, synergy.Name, effect, 1)
			}
		}
	}
}

// OnDeath cascades death triggers for both sides. For a trigger_once effect
// at most one reward resolution occurs per qualifying death, no matter how
// many living units hold the trait.
func (t *TraitTriggerEngine) OnDeath(dead *Unit) {
	if dead == nil {
		return
	}
	for side := SideA; side < sideCount; side++ {
		for _, synergy := range t.synergies[side] {
			if !synergy.Active {
				continue
			}
			for _, effect := range synergy.Effects {
				qualifies := (effect.Trigger == TriggerOnEnemyDeath && dead.Side != side) ||
					(effect.Trigger == TriggerOnAllyDeath && dead.Side == side)
				if !qualifies {
					continue
				}
				holders := t.holders(side, synergy.Name)
				if len(holders) == 0 {
					continue
				}
				if effect.TriggerOnce {
					t.resolveActions(holders[0], synergy.Name, effect, 1)
				} else {
					for _, holder := range holders {
						t.resolveActions(holder, synergy.Name, effect, 1)
					}
				}
			}
		}
	}
}

// holders returns the living units on a side contributing to the synergy,
// in roster order.
func (t *TraitTriggerEngine) holders(side Side, trait string) []*Unit {
	out := make([]*Unit, 0)
	for _, unit := range t.state.Living(side) {
		if unit.HasTrait(trait) {
			out = append(out, unit)
		}
	}
	return out
}

func (t *TraitTriggerEngine) resolveActions(actor *Unit, trait string, effect TraitEffect, scale float64) {
	t.resolveActionsFor(actor, actor, trait, effect, scale)
}

// resolveActionsFor executes the ordered action list. focus is the unit a
// self-targeted action lands on: the holder for most triggers, the low-hp
// ally for on_ally_hp_below.
func (t *TraitTriggerEngine) resolveActionsFor(actor, focus *Unit, trait string, effect TraitEffect, scale float64) {
	cause := "trait:" + trait
	for _, action := range effect.Actions {
		if action.Chance > 0 && !t.state.RollChance(action.Chance) {
			continue
		}
		amount := action.Amount * scale
		value := ValueFlat
		if action.IsPercentage {
			value = ValuePercent
		}
		switch action.Kind {
		case ActionStatBuff:
			duration := action.Duration
			if duration == 0 {
				duration = PermanentDuration
			}
			for _, target := range t.actionTargets(actor, focus, trait, action.Target) {
				t.effects.ApplyStatBuff(target, actor.ID, action.Stat, amount, value, duration)
			}
		case ActionReward:
			switch action.Reward {
			case RewardGold:
				t.dispatcher.CommitGoldReward(actor, int(amount), cause)
			case RewardHPRegen:
				for _, target := range t.actionTargets(actor, focus, trait, action.Target) {
					if action.Duration > 0 {
						t.effects.ApplyHPRegen(target, actor.ID, amount, value, action.Duration)
					} else {
						heal := amount
						if action.IsPercentage {
							heal = target.MaxHP * amount / 100
						}
						t.dispatcher.CommitRegen(target, heal, cause)
					}
				}
			}
		}
	}
}

func (t *TraitTriggerEngine) actionTargets(actor, focus *Unit, trait string, mode TargetMode) []*Unit {
	switch mode {
	case TargetSelf:
		if focus == nil || !focus.Alive() {
			return nil
		}
		return []*Unit{focus}
	default:
		return t.effects.Resolve(mode, actor, trait)
	}
}
