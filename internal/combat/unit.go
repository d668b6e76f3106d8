package combat

import "fmt"

// Side identifies which roster a unit fights for. Side A is the player.
type Side uint8

const (
	SideA Side = iota
	SideB

	sideCount
)

func (s Side) String() string {
	switch s {
	case SideA:
		return "A"
	case SideB:
		return "B"
	default:
		return "unknown"
	}
}

// Opponent returns the other roster.
func (s Side) Opponent() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

// Row is the targeting-priority hint carried by a unit's position.
type Row uint8

const (
	RowFront Row = iota
	RowBack
)

func (r Row) String() string {
	if r == RowBack {
		return "back"
	}
	return "front"
}

// StatID enumerates the mutable stats a buff can target.
type StatID uint8

const (
	StatAttack StatID = iota
	StatDefense
	StatAttackSpeed
	StatMaxHP
	StatBuffAmp

	StatCount
)

func (id StatID) String() string {
	switch id {
	case StatAttack:
		return "attack"
	case StatDefense:
		return "defense"
	case StatAttackSpeed:
		return "attack_speed"
	case StatMaxHP:
		return "max_hp"
	case StatBuffAmp:
		return "buff_amp"
	default:
		return "unknown"
	}
}

// ParseStat maps a wire/catalog stat name to its id.
func ParseStat(name string) (StatID, error) {
	switch name {
	case "attack":
		return StatAttack, nil
	case "defense":
		return StatDefense, nil
	case "attack_speed":
		return StatAttackSpeed, nil
	case "max_hp", "hp":
		return StatMaxHP, nil
	case "buff_amp":
		return StatBuffAmp, nil
	default:
		return StatCount, fmt.Errorf("combat: unknown stat %q", name)
	}
}

// Stats holds the unbuffed base attributes a unit entered combat with.
// Percentage buffs always compute against these values, never against the
// current (possibly buffed) stat, so stacking and unstacking stay idempotent.
type Stats struct {
	Attack      float64
	Defense     float64
	AttackSpeed float64
	MaxHP       float64
	MaxMana     float64
}

// Unit is one combat instance. Runtime fields are mutated exclusively through
// the Dispatcher; aliveness is always derived from HP, never stored.
type Unit struct {
	ID   string
	Name string
	Side Side
	Row  Row

	Base Stats

	Attack      float64
	Defense     float64
	AttackSpeed float64
	MaxHP       float64
	MaxMana     float64

	HP     float64
	Mana   float64
	Shield float64

	// BuffAmp scales incoming buff deltas at apply time. Neutral is 1.
	BuffAmp float64

	ManaPerAttack float64
	// TargetBias is the probability of focusing the highest-defense enemy
	// instead of picking uniformly.
	TargetBias float64

	Skill  *Skill
	Traits []string

	// Effects keeps application order; expiration walks it front to back.
	Effects []*Effect

	attackGauge   float64
	deathResolved bool
}

// NewUnit seeds runtime state from the base stats.
func NewUnit(id, name string, side Side, row Row, base Stats) *Unit {
	return &Unit{
		ID:          id,
		Name:        name,
		Side:        side,
		Row:         row,
		Base:        base,
		Attack:      base.Attack,
		Defense:     base.Defense,
		AttackSpeed: base.AttackSpeed,
		MaxHP:       base.MaxHP,
		MaxMana:     base.MaxMana,
		HP:          base.MaxHP,
		Mana:        0,
		BuffAmp:     1,
		TargetBias:  defaultTargetBias,
	}
}

const defaultTargetBias = 0.6

// Alive is derived state. No independent flag exists by design.
func (u *Unit) Alive() bool {
	return u != nil && u.HP > 0
}

// Stunned reports whether any active stun effect holds the unit.
func (u *Unit) Stunned() bool {
	if u == nil {
		return false
	}
	for _, eff := range u.Effects {
		if eff != nil && eff.Kind == EffectStun {
			return true
		}
	}
	return false
}

// HasTrait reports whether the unit contributes to the named synergy.
func (u *Unit) HasTrait(name string) bool {
	if u == nil {
		return false
	}
	for _, trait := range u.Traits {
		if trait == name {
			return true
		}
	}
	return false
}

// BaseStat returns the unbuffed value for a stat id. BuffAmp has no base
// attribute; its neutral value is 1.
func (u *Unit) BaseStat(id StatID) float64 {
	switch id {
	case StatAttack:
		return u.Base.Attack
	case StatDefense:
		return u.Base.Defense
	case StatAttackSpeed:
		return u.Base.AttackSpeed
	case StatMaxHP:
		return u.Base.MaxHP
	case StatBuffAmp:
		return 1
	default:
		return 0
	}
}

// CurrentStat returns the current value for a stat id.
func (u *Unit) CurrentStat(id StatID) float64 {
	switch id {
	case StatAttack:
		return u.Attack
	case StatDefense:
		return u.Defense
	case StatAttackSpeed:
		return u.AttackSpeed
	case StatMaxHP:
		return u.MaxHP
	case StatBuffAmp:
		return u.BuffAmp
	default:
		return 0
	}
}

// effectByID finds an active effect instance on the unit.
func (u *Unit) effectByID(id uint64) *Effect {
	for _, eff := range u.Effects {
		if eff != nil && eff.ID == id {
			return eff
		}
	}
	return nil
}

// removeEffect drops an instance from the ordered set, preserving order.
func (u *Unit) removeEffect(id uint64) {
	for i, eff := range u.Effects {
		if eff != nil && eff.ID == id {
			u.Effects = append(u.Effects[:i], u.Effects[i+1:]...)
			return
		}
	}
}
