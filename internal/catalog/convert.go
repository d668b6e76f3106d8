package catalog

import (
	"fmt"
	"sort"

	"autoarena/server/internal/combat"
)

// RosterEntry names one unit pick for a side. ID is optional; empty ids are
// assigned deterministically from the side and slot.
type RosterEntry struct {
	Unit string `yaml:"unit" json:"unit"`
	ID   string `yaml:"id,omitempty" json:"id,omitempty"`
}

// BuildRoster instantiates combat units for one side in pick order and
// derives the side's trait synergies from the assembled roster.
func (c *Catalog) BuildRoster(side combat.Side, picks []RosterEntry) ([]*combat.Unit, []combat.Synergy, error) {
	units := make([]*combat.Unit, 0, len(picks))
	for slot, pick := range picks {
		template, ok := c.Unit(pick.Unit)
		if !ok {
			return nil, nil, fmt.Errorf("catalog: unknown unit %q", pick.Unit)
		}
		id := pick.ID
		if id == "" {
			id = fmt.Sprintf("%s%d", sidePrefix(side), slot+1)
		}
		unit, err := c.instantiate(id, side, template)
		if err != nil {
			return nil, nil, err
		}
		units = append(units, unit)
	}
	synergies, err := c.synergiesFor(units)
	if err != nil {
		return nil, nil, err
	}
	return units, synergies, nil
}

func sidePrefix(side combat.Side) string {
	if side == combat.SideB {
		return "b"
	}
	return "a"
}

func (c *Catalog) instantiate(id string, side combat.Side, template UnitTemplate) (*combat.Unit, error) {
	row := combat.RowFront
	switch template.Row {
	case "", "front":
	case "back":
		row = combat.RowBack
	default:
		return nil, fmt.Errorf("catalog: unit %q has unknown row %q", template.Name, template.Row)
	}

	unit := combat.NewUnit(id, template.Name, side, row, combat.Stats{
		Attack:      template.Attack,
		Defense:     template.Defense,
		AttackSpeed: template.AttackSpeed,
		MaxHP:       template.HP,
		MaxMana:     template.MaxMana,
	})
	unit.ManaPerAttack = template.ManaPerAttack
	if template.TargetBias > 0 {
		unit.TargetBias = template.TargetBias
	}
	if len(template.Traits) > 0 {
		unit.Traits = append([]string(nil), template.Traits...)
	}
	if template.Skill != "" {
		def, ok := c.Skill(template.Skill)
		if !ok {
			return nil, fmt.Errorf("catalog: unit %q references unknown skill %q", template.Name, template.Skill)
		}
		skill, err := convertSkill(def)
		if err != nil {
			return nil, err
		}
		unit.Skill = skill
	}
	return unit, nil
}

// synergiesFor counts trait holders and picks the highest qualifying tier
// per trait. Traits below their lowest tier still appear, marked inactive,
// so the units_init payload can show progress toward activation.
func (c *Catalog) synergiesFor(units []*combat.Unit) ([]combat.Synergy, error) {
	counts := make(map[string]int)
	for _, unit := range units {
		for _, trait := range unit.Traits {
			counts[trait]++
		}
	}
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	synergies := make([]combat.Synergy, 0, len(names))
	for _, name := range names {
		def, ok := c.Trait(name)
		if !ok {
			return nil, fmt.Errorf("catalog: unknown trait %q", name)
		}
		count := counts[name]
		var tier *TraitTier
		for i := range def.Tiers {
			if count >= def.Tiers[i].Count {
				if tier == nil || def.Tiers[i].Count > tier.Count {
					tier = &def.Tiers[i]
				}
			}
		}
		synergy := combat.Synergy{Name: name, Count: count}
		if tier != nil {
			effects, err := convertTier(name, *tier)
			if err != nil {
				return nil, err
			}
			synergy.Active = true
			synergy.Effects = effects
		}
		synergies = append(synergies, synergy)
	}
	return synergies, nil
}

func convertSkill(def SkillDef) (*combat.Skill, error) {
	skill := &combat.Skill{
		Name:     def.Name,
		ManaCost: def.ManaCost,
		Effects:  make([]combat.SkillEffect, 0, len(def.Effects)),
	}
	for i, eff := range def.Effects {
		converted, err := convertSkillEffect(eff)
		if err != nil {
			return nil, fmt.Errorf("catalog: skill %q effect %d: %w", def.Name, i, err)
		}
		skill.Effects = append(skill.Effects, converted)
	}
	return skill, nil
}

func convertSkillEffect(def SkillEffectDef) (combat.SkillEffect, error) {
	eff := combat.SkillEffect{
		Amount:       def.Amount,
		IsPercentage: def.IsPercentage,
		Duration:     def.Duration,
		Ticks:        def.Ticks,
	}
	switch def.Kind {
	case "damage":
		eff.Kind = combat.SkillDamage
	case "heal":
		eff.Kind = combat.SkillHeal
	case "buff":
		eff.Kind = combat.SkillBuff
	case "shield":
		eff.Kind = combat.SkillShield
	case "stun":
		eff.Kind = combat.SkillStun
	case "dot":
		eff.Kind = combat.SkillDoT
	default:
		return eff, fmt.Errorf("unknown kind %q", def.Kind)
	}
	switch def.Target {
	case "", "enemy":
		eff.Target = combat.SkillTargetEnemy
	case "self":
		eff.Target = combat.SkillTargetSelf
	case "team":
		eff.Target = combat.SkillTargetTeam
	case "all_enemies":
		eff.Target = combat.SkillTargetAllEnemies
	default:
		return eff, fmt.Errorf("unknown target %q", def.Target)
	}
	if def.Stat != "" {
		stat, err := combat.ParseStat(def.Stat)
		if err != nil {
			return eff, err
		}
		eff.Stat = stat
	}
	return eff, nil
}

// convertTier expands one activation tier. The legacy short form becomes a
// single passive self buff.
func convertTier(trait string, tier TraitTier) ([]combat.TraitEffect, error) {
	if len(tier.Effects) == 0 {
		stat, err := combat.ParseStat(tier.Stat)
		if err != nil {
			return nil, fmt.Errorf("catalog: trait %q legacy tier: %w", trait, err)
		}
		return []combat.TraitEffect{{
			Trigger: combat.TriggerPassive,
			Actions: []combat.TraitAction{{
				Kind:         combat.ActionStatBuff,
				Stat:         stat,
				Amount:       tier.Amount,
				IsPercentage: tier.IsPercentage,
			}},
		}}, nil
	}

	effects := make([]combat.TraitEffect, 0, len(tier.Effects))
	for i, def := range tier.Effects {
		trigger, err := parseTrigger(def.Trigger)
		if err != nil {
			return nil, fmt.Errorf("catalog: trait %q effect %d: %w", trait, i, err)
		}
		effect := combat.TraitEffect{
			Trigger:     trigger,
			TriggerOnce: def.TriggerOnce,
			Threshold:   def.Threshold,
			Actions:     make([]combat.TraitAction, 0, len(def.Actions)),
		}
		for j, actionDef := range def.Actions {
			action, err := convertAction(actionDef)
			if err != nil {
				return nil, fmt.Errorf("catalog: trait %q effect %d action %d: %w", trait, i, j, err)
			}
			effect.Actions = append(effect.Actions, action)
		}
		effects = append(effects, effect)
	}
	return effects, nil
}

func parseTrigger(name string) (combat.TriggerKind, error) {
	switch name {
	case "passive":
		return combat.TriggerPassive, nil
	case "on_enemy_death":
		return combat.TriggerOnEnemyDeath, nil
	case "on_ally_death":
		return combat.TriggerOnAllyDeath, nil
	case "per_second_buff":
		return combat.TriggerPerSecond, nil
	case "on_ally_hp_below":
		return combat.TriggerOnAllyHPBelow, nil
	case "per_round_buff":
		return combat.TriggerPerRound, nil
	case "mana_regen":
		return combat.TriggerManaRegen, nil
	case "win_scaling":
		return combat.TriggerWinScaling, nil
	case "dynamic_hp_per_loss":
		return combat.TriggerDynamicHPPerLoss, nil
	default:
		return combat.TriggerPassive, fmt.Errorf("unknown trigger %q", name)
	}
}

func convertAction(def TraitActionDef) (combat.TraitAction, error) {
	action := combat.TraitAction{
		Amount:       def.Amount,
		IsPercentage: def.IsPercentage,
		Duration:     def.Duration,
		Chance:       def.Chance,
	}
	switch def.Kind {
	case "stat_buff":
		action.Kind = combat.ActionStatBuff
		stat, err := combat.ParseStat(def.Stat)
		if err != nil {
			return action, err
		}
		action.Stat = stat
	case "reward":
		action.Kind = combat.ActionReward
		switch def.Reward {
		case "gold":
			action.Reward = combat.RewardGold
		case "hp_regen":
			action.Reward = combat.RewardHPRegen
		default:
			return action, fmt.Errorf("unknown reward %q", def.Reward)
		}
	default:
		return action, fmt.Errorf("unknown action kind %q", def.Kind)
	}
	switch def.Target {
	case "", "self":
		action.Target = combat.TargetSelf
	case "team":
		action.Target = combat.TargetTeam
	case "trait_mates":
		action.Target = combat.TargetTraitMates
	default:
		return action, fmt.Errorf("unknown target %q", def.Target)
	}
	return action, nil
}
