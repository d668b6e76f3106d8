package catalog

import (
	"strings"
	"testing"

	"autoarena/server/internal/combat"
)

const sampleYAML = `
skills:
  - name: fireball
    mana_cost: 80
    effects:
      - kind: damage
        target: enemy
        amount: 40
      - kind: dot
        target: enemy
        amount: 5
        ticks: 3
traits:
  - name: warden
    tiers:
      - count: 2
        effects:
          - trigger: passive
            actions:
              - kind: stat_buff
                stat: defense
                amount: 5
      - count: 4
        effects:
          - trigger: on_enemy_death
            trigger_once: true
            actions:
              - kind: reward
                reward: gold
                amount: 2
  - name: ember
    tiers:
      - count: 2
        stat: attack
        amount: 10
        is_percentage: true
units:
  - name: pyromancer
    row: back
    hp: 80
    attack: 9
    defense: 1
    attack_speed: 0.8
    max_mana: 80
    mana_per_attack: 20
    traits: [ember]
    skill: fireball
  - name: warden_knight
    row: front
    hp: 150
    attack: 12
    defense: 8
    attack_speed: 0.7
    traits: [warden]
`

func TestParseSampleCatalog(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	unit, ok := c.Unit("pyromancer")
	if !ok {
		t.Fatalf("pyromancer missing")
	}
	if unit.Skill != "fireball" || unit.MaxMana != 80 {
		t.Fatalf("pyromancer = %+v", unit)
	}
	skill, ok := c.Skill("fireball")
	if !ok || len(skill.Effects) != 2 {
		t.Fatalf("fireball = %+v ok=%v", skill, ok)
	}
	if names := c.UnitNames(); len(names) != 2 || names[0] != "pyromancer" {
		t.Fatalf("unit names = %v", names)
	}
}

func TestBuildRejectsUnknownSkillReference(t *testing.T) {
	_, err := Parse([]byte(`
units:
  - name: ghost
    hp: 50
    skill: does_not_exist
`))
	if err == nil || !strings.Contains(err.Error(), "unknown skill") {
		t.Fatalf("err = %v, want unknown skill", err)
	}
}

func TestBuildRejectsUnknownTraitReference(t *testing.T) {
	_, err := Parse([]byte(`
units:
  - name: ghost
    hp: 50
    traits: [phantom]
`))
	if err == nil || !strings.Contains(err.Error(), "unknown trait") {
		t.Fatalf("err = %v, want unknown trait", err)
	}
}

func TestBuildRejectsBadTrigger(t *testing.T) {
	_, err := Parse([]byte(`
traits:
  - name: odd
    tiers:
      - count: 1
        effects:
          - trigger: on_full_moon
            actions:
              - kind: stat_buff
                stat: attack
                amount: 1
`))
	if err == nil {
		t.Fatalf("unknown trigger accepted")
	}
}

func TestBuildRejectsNonPositiveManaCost(t *testing.T) {
	_, err := Parse([]byte(`
skills:
  - name: freebie
    mana_cost: 0
    effects:
      - kind: damage
        target: enemy
        amount: 5
`))
	if err == nil || !strings.Contains(err.Error(), "mana_cost") {
		t.Fatalf("err = %v, want mana_cost complaint", err)
	}
}

func TestBuildRejectsHPBelowThresholdOutOfRange(t *testing.T) {
	_, err := Parse([]byte(`
traits:
  - name: panic
    tiers:
      - count: 1
        effects:
          - trigger: on_ally_hp_below
            threshold: 1.5
            actions:
              - kind: stat_buff
                stat: attack
                amount: 1
`))
	if err == nil {
		t.Fatalf("threshold 1.5 accepted")
	}
}

func TestBuildRosterAssignsSequentialIDs(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	units, _, err := c.BuildRoster(combat.SideB, []RosterEntry{
		{Unit: "pyromancer"},
		{Unit: "warden_knight"},
	})
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("roster has %d units", len(units))
	}
	if units[0].ID != "b1" || units[1].ID != "b2" {
		t.Fatalf("ids = %s, %s, want b1, b2", units[0].ID, units[1].ID)
	}
	if units[0].Side != combat.SideB {
		t.Fatalf("unit on side %v", units[0].Side)
	}
	if units[0].Skill == nil || units[0].Skill.Name != "fireball" {
		t.Fatalf("skill not converted: %+v", units[0].Skill)
	}
	if units[0].Row != combat.RowBack || units[1].Row != combat.RowFront {
		t.Fatalf("rows = %v, %v", units[0].Row, units[1].Row)
	}
}

func TestBuildRosterHonorsExplicitIDs(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	units, _, err := c.BuildRoster(combat.SideA, []RosterEntry{
		{Unit: "pyromancer", ID: "hero-7"},
	})
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}
	if units[0].ID != "hero-7" {
		t.Fatalf("id = %s, want hero-7", units[0].ID)
	}
}

func TestSynergyActivatesHighestQualifyingTier(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	picks := []RosterEntry{
		{Unit: "warden_knight"}, {Unit: "warden_knight", ID: "a2x"},
	}
	// Two warden holders: tier count 2 qualifies, tier count 4 does not.
	_, synergies, err := c.BuildRoster(combat.SideA, picks)
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}

	var warden *combat.Synergy
	for i := range synergies {
		if synergies[i].Name == "warden" {
			warden = &synergies[i]
		}
	}
	if warden == nil {
		t.Fatalf("warden synergy missing from %+v", synergies)
	}
	if !warden.Active || warden.Count != 2 {
		t.Fatalf("warden = %+v, want active at count 2", warden)
	}
	if len(warden.Effects) != 1 || warden.Effects[0].Trigger != combat.TriggerPassive {
		t.Fatalf("effects = %+v, want the tier-2 passive only", warden.Effects)
	}
}

func TestSynergyBelowThresholdStaysInactive(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, synergies, err := c.BuildRoster(combat.SideA, []RosterEntry{{Unit: "warden_knight"}})
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}
	for _, synergy := range synergies {
		if synergy.Name == "warden" {
			if synergy.Active {
				t.Fatalf("one holder activated a two-count tier")
			}
			return
		}
	}
	t.Fatalf("inactive warden synergy not reported")
}

func TestLegacyTierConvertsToPassiveBuff(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, synergies, err := c.BuildRoster(combat.SideA, []RosterEntry{
		{Unit: "pyromancer"}, {Unit: "pyromancer", ID: "a2y"},
	})
	if err != nil {
		t.Fatalf("build roster: %v", err)
	}

	for _, synergy := range synergies {
		if synergy.Name != "ember" {
			continue
		}
		if !synergy.Active {
			t.Fatalf("ember inactive at count 2")
		}
		if len(synergy.Effects) != 1 || synergy.Effects[0].Trigger != combat.TriggerPassive {
			t.Fatalf("legacy tier converted to %+v", synergy.Effects)
		}
		action := synergy.Effects[0].Actions[0]
		if action.Kind != combat.ActionStatBuff || action.Stat != combat.StatAttack || !action.IsPercentage {
			t.Fatalf("legacy action = %+v", action)
		}
		return
	}
	t.Fatalf("ember synergy missing")
}

func TestBuildRosterRejectsUnknownUnit(t *testing.T) {
	c, err := Parse([]byte(sampleYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, _, err := c.BuildRoster(combat.SideA, []RosterEntry{{Unit: "nobody"}}); err == nil {
		t.Fatalf("unknown unit accepted")
	}
}
