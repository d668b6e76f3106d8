// Package catalog loads the static game data: unit templates, skills, and
// trait synergies. The data ships as YAML and is validated once at load; the
// simulation only ever sees the converted combat types.
package catalog

import (
	"fmt"
	"sort"
)

// Document is the raw YAML shape of one catalog file.
type Document struct {
	Units  []UnitTemplate `yaml:"units"`
	Skills []SkillDef     `yaml:"skills"`
	Traits []TraitDef     `yaml:"traits"`
}

// UnitTemplate describes one purchasable unit archetype.
type UnitTemplate struct {
	Name          string   `yaml:"name"`
	Row           string   `yaml:"row"`
	HP            float64  `yaml:"hp"`
	Attack        float64  `yaml:"attack"`
	Defense       float64  `yaml:"defense"`
	AttackSpeed   float64  `yaml:"attack_speed"`
	MaxMana       float64  `yaml:"max_mana"`
	ManaPerAttack float64  `yaml:"mana_per_attack"`
	TargetBias    float64  `yaml:"target_bias"`
	Traits        []string `yaml:"traits"`
	Skill         string   `yaml:"skill"`
}

// SkillDef describes one mana-gated ability and its ordered effect list.
type SkillDef struct {
	Name     string           `yaml:"name"`
	ManaCost float64          `yaml:"mana_cost"`
	Effects  []SkillEffectDef `yaml:"effects"`
}

type SkillEffectDef struct {
	Kind         string  `yaml:"kind"`
	Target       string  `yaml:"target"`
	Stat         string  `yaml:"stat"`
	Amount       float64 `yaml:"amount"`
	IsPercentage bool    `yaml:"is_percentage"`
	Duration     float64 `yaml:"duration"`
	Ticks        int     `yaml:"ticks"`
}

// TraitDef describes one synergy trait and its activation tiers, highest
// qualifying tier wins.
type TraitDef struct {
	Name  string     `yaml:"name"`
	Tiers []TraitTier `yaml:"tiers"`
}

// TraitTier is one activation threshold. The full form lists effects with
// triggers and actions. The legacy short form carries a bare stat/amount
// pair and converts to a single passive stat buff.
type TraitTier struct {
	Count   int              `yaml:"count"`
	Effects []TraitEffectDef `yaml:"effects"`

	// Legacy short form.
	Stat         string  `yaml:"stat"`
	Amount       float64 `yaml:"amount"`
	IsPercentage bool    `yaml:"is_percentage"`
}

type TraitEffectDef struct {
	Trigger     string           `yaml:"trigger"`
	TriggerOnce bool             `yaml:"trigger_once"`
	Threshold   float64          `yaml:"threshold"`
	Actions     []TraitActionDef `yaml:"actions"`
}

type TraitActionDef struct {
	Kind         string  `yaml:"kind"`
	Stat         string  `yaml:"stat"`
	Amount       float64 `yaml:"amount"`
	IsPercentage bool    `yaml:"is_percentage"`
	Duration     float64 `yaml:"duration"`
	Reward       string  `yaml:"reward"`
	Target       string  `yaml:"target"`
	Chance       int     `yaml:"chance"`
}

// Catalog is the validated, indexed form handed to roster assembly.
type Catalog struct {
	units  map[string]UnitTemplate
	skills map[string]SkillDef
	traits map[string]TraitDef
}

// Build validates a document and indexes it by name. Every reference is
// checked here so a bad catalog fails at startup, not mid-combat.
func Build(doc Document) (*Catalog, error) {
	c := &Catalog{
		units:  make(map[string]UnitTemplate, len(doc.Units)),
		skills: make(map[string]SkillDef, len(doc.Skills)),
		traits: make(map[string]TraitDef, len(doc.Traits)),
	}

	for i, skill := range doc.Skills {
		if skill.Name == "" {
			return nil, fmt.Errorf("catalog: skill %d has no name", i)
		}
		if _, dup := c.skills[skill.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate skill %q", skill.Name)
		}
		if skill.ManaCost <= 0 {
			return nil, fmt.Errorf("catalog: skill %q needs a positive mana_cost", skill.Name)
		}
		if len(skill.Effects) == 0 {
			return nil, fmt.Errorf("catalog: skill %q has no effects", skill.Name)
		}
		for j, eff := range skill.Effects {
			if err := validateSkillEffect(eff); err != nil {
				return nil, fmt.Errorf("catalog: skill %q effect %d: %w", skill.Name, j, err)
			}
		}
		c.skills[skill.Name] = skill
	}

	for i, trait := range doc.Traits {
		if trait.Name == "" {
			return nil, fmt.Errorf("catalog: trait %d has no name", i)
		}
		if _, dup := c.traits[trait.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate trait %q", trait.Name)
		}
		if len(trait.Tiers) == 0 {
			return nil, fmt.Errorf("catalog: trait %q has no tiers", trait.Name)
		}
		for j, tier := range trait.Tiers {
			if tier.Count <= 0 {
				return nil, fmt.Errorf("catalog: trait %q tier %d needs a positive count", trait.Name, j)
			}
			if len(tier.Effects) == 0 && tier.Stat == "" {
				return nil, fmt.Errorf("catalog: trait %q tier %d defines neither effects nor a legacy stat buff", trait.Name, j)
			}
			for k, eff := range tier.Effects {
				if err := validateTraitEffect(eff); err != nil {
					return nil, fmt.Errorf("catalog: trait %q tier %d effect %d: %w", trait.Name, j, k, err)
				}
			}
		}
		c.traits[trait.Name] = trait
	}

	for i, unit := range doc.Units {
		if unit.Name == "" {
			return nil, fmt.Errorf("catalog: unit %d has no name", i)
		}
		if _, dup := c.units[unit.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate unit %q", unit.Name)
		}
		if unit.HP <= 0 {
			return nil, fmt.Errorf("catalog: unit %q needs positive hp", unit.Name)
		}
		if unit.AttackSpeed < 0 {
			return nil, fmt.Errorf("catalog: unit %q has negative attack_speed", unit.Name)
		}
		if unit.Skill != "" {
			if _, ok := c.skills[unit.Skill]; !ok {
				return nil, fmt.Errorf("catalog: unit %q references unknown skill %q", unit.Name, unit.Skill)
			}
		}
		for _, trait := range unit.Traits {
			if _, ok := c.traits[trait]; !ok {
				return nil, fmt.Errorf("catalog: unit %q references unknown trait %q", unit.Name, trait)
			}
		}
		c.units[unit.Name] = unit
	}

	return c, nil
}

// Unit looks up a template by name.
func (c *Catalog) Unit(name string) (UnitTemplate, bool) {
	unit, ok := c.units[name]
	return unit, ok
}

// Skill looks up a skill by name.
func (c *Catalog) Skill(name string) (SkillDef, bool) {
	skill, ok := c.skills[name]
	return skill, ok
}

// Trait looks up a trait by name.
func (c *Catalog) Trait(name string) (TraitDef, bool) {
	trait, ok := c.traits[name]
	return trait, ok
}

// UnitNames lists the templates in sorted order.
func (c *Catalog) UnitNames() []string {
	names := make([]string, 0, len(c.units))
	for name := range c.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validateSkillEffect(eff SkillEffectDef) error {
	switch eff.Kind {
	case "damage", "heal", "buff", "shield", "stun", "dot":
	default:
		return fmt.Errorf("unknown kind %q", eff.Kind)
	}
	switch eff.Target {
	case "", "enemy", "self", "team", "all_enemies":
	default:
		return fmt.Errorf("unknown target %q", eff.Target)
	}
	if eff.Kind == "buff" && eff.Stat == "" {
		return fmt.Errorf("buff needs a stat")
	}
	if eff.Kind == "dot" && eff.Ticks <= 0 {
		return fmt.Errorf("dot needs positive ticks")
	}
	if eff.Amount == 0 && eff.Kind != "stun" {
		return fmt.Errorf("amount must be nonzero")
	}
	return nil
}

func validateTraitEffect(eff TraitEffectDef) error {
	switch eff.Trigger {
	case "passive", "on_enemy_death", "on_ally_death", "per_second_buff",
		"on_ally_hp_below", "per_round_buff", "mana_regen", "win_scaling",
		"dynamic_hp_per_loss":
	default:
		return fmt.Errorf("unknown trigger %q", eff.Trigger)
	}
	if eff.Trigger == "on_ally_hp_below" && (eff.Threshold <= 0 || eff.Threshold >= 1) {
		return fmt.Errorf("on_ally_hp_below needs a threshold in (0,1)")
	}
	if len(eff.Actions) == 0 {
		return fmt.Errorf("trigger %q has no actions", eff.Trigger)
	}
	for i, action := range eff.Actions {
		switch action.Kind {
		case "stat_buff":
			if action.Stat == "" {
				return fmt.Errorf("action %d: stat_buff needs a stat", i)
			}
		case "reward":
			switch action.Reward {
			case "gold", "hp_regen":
			default:
				return fmt.Errorf("action %d: unknown reward %q", i, action.Reward)
			}
		default:
			return fmt.Errorf("action %d: unknown kind %q", i, action.Kind)
		}
		if action.Chance < 0 || action.Chance > 100 {
			return fmt.Errorf("action %d: chance outside 1-100", i)
		}
	}
	return nil
}
