package combat

import (
	"math/rand"

	"autoarena/server/internal/eventlog"
)

// timeEpsilon absorbs float drift when comparing simulation timestamps
// derived from tick counts.
const timeEpsilon = 1e-9

// RoundContext carries the meta-game inputs that scale pre-combat trait
// bonuses. It is supplied by the roster provider and never mutated here.
type RoundContext struct {
	Round  int
	Wins   int
	Losses int
}

// CombatState is the single authoritative owner of every unit record, the
// simulation clock, the event sequence counter, and the seeded PRNG. No
// mirror of hp/mana/shield exists anywhere; every reader goes through the
// unit records held here.
type CombatState struct {
	Units []*Unit
	Time  float64
	Tick  uint64
	Round RoundContext

	Gold [sideCount]int

	seed         int64
	rng          *rand.Rand
	seq          uint64
	nextEffectID uint64
	byID         map[string]*Unit
}

// NewCombatState indexes both rosters in deterministic order: side A units
// first, then side B, each in roster order. That order fixes every later
// iteration.
func NewCombatState(seed int64, sideA, sideB []*Unit, round RoundContext) *CombatState {
	state := &CombatState{
		Units: make([]*Unit, 0, len(sideA)+len(sideB)),
		Round: round,
		seed:  seed,
		rng:   rand.New(rand.NewSource(seed)),
		byID:  make(map[string]*Unit, len(sideA)+len(sideB)),
	}
	for _, unit := range sideA {
		if unit == nil {
			continue
		}
		unit.Side = SideA
		state.Units = append(state.Units, unit)
		state.byID[unit.ID] = unit
	}
	for _, unit := range sideB {
		if unit == nil {
			continue
		}
		unit.Side = SideB
		state.Units = append(state.Units, unit)
		state.byID[unit.ID] = unit
	}
	return state
}

// Seed returns the PRNG seed the combat was constructed with.
func (c *CombatState) Seed() int64 {
	return c.seed
}

// UnitByID resolves a unit record, dead or alive.
func (c *CombatState) UnitByID(id string) *Unit {
	if c == nil {
		return nil
	}
	return c.byID[id]
}

// Living returns the living units on one side in deterministic order.
func (c *CombatState) Living(side Side) []*Unit {
	out := make([]*Unit, 0, len(c.Units))
	for _, unit := range c.Units {
		if unit.Side == side && unit.Alive() {
			out = append(out, unit)
		}
	}
	return out
}

// LivingEnemies returns the living units opposing the given unit.
func (c *CombatState) LivingEnemies(u *Unit) []*Unit {
	if u == nil {
		return nil
	}
	return c.Living(u.Side.Opponent())
}

// TotalHP sums remaining hp for timeout adjudication.
func (c *CombatState) TotalHP(side Side) float64 {
	total := 0.0
	for _, unit := range c.Units {
		if unit.Side == side && unit.Alive() {
			total += unit.HP
		}
	}
	return total
}

// NextSeq advances the gapless event sequence. Only the dispatcher calls it.
func (c *CombatState) NextSeq() uint64 {
	c.seq++
	return c.seq
}

// LastSeq reports the sequence of the most recently committed event.
func (c *CombatState) LastSeq() uint64 {
	return c.seq
}

// NextEffectID assigns a combat-unique effect instance id.
func (c *CombatState) NextEffectID() uint64 {
	c.nextEffectID++
	return c.nextEffectID
}

// RandFloat draws from the combat's seeded generator. All random decisions
// in a combat flow through this generator so replays are reproducible.
func (c *CombatState) RandFloat() float64 {
	return c.rng.Float64()
}

// RandIntn draws a bounded int from the combat's seeded generator.
func (c *CombatState) RandIntn(n int) int {
	if n <= 0 {
		return 0
	}
	return c.rng.Intn(n)
}

// RollChance resolves a 1-100 percentage roll.
func (c *CombatState) RollChance(chance int) bool {
	if chance >= 100 {
		return true
	}
	if chance <= 0 {
		return false
	}
	return c.RandIntn(100) < chance
}

// GameState builds the authoritative wire checkpoint straight from the unit
// records. There is no secondary array to fall out of sync with.
func (c *CombatState) GameState() eventlog.GameState {
	state := eventlog.GameState{
		Time:         c.Time,
		PlayerGold:   c.Gold[SideA],
		OpponentGold: c.Gold[SideB],
	}
	for _, unit := range c.Units {
		wire := unitState(unit)
		if unit.Side == SideA {
			state.PlayerUnits = append(state.PlayerUnits, wire)
		} else {
			state.OpponentUnits = append(state.OpponentUnits, wire)
		}
	}
	return state
}

func unitState(u *Unit) eventlog.UnitState {
	wire := eventlog.UnitState{
		ID:          u.ID,
		Name:        u.Name,
		Side:        u.Side.String(),
		Row:         u.Row.String(),
		HP:          u.HP,
		MaxHP:       u.MaxHP,
		CurrentMana: u.Mana,
		MaxMana:     u.MaxMana,
		Shield:      u.Shield,
		Attack:      u.Attack,
		Defense:     u.Defense,
		AttackSpeed: u.AttackSpeed,
		BuffAmp:     u.BuffAmp,
	}
	if len(u.Traits) > 0 {
		wire.Traits = append([]string(nil), u.Traits...)
	}
	for _, eff := range u.Effects {
		if eff == nil {
			continue
		}
		wire.Effects = append(wire.Effects, effectState(eff))
	}
	return wire
}

func effectState(e *Effect) eventlog.EffectState {
	// Permanent effects hold +Inf internally, which has no JSON encoding;
	// the wire carries the -1 sentinel instead.
	expiresAt := e.ExpiresAt
	if e.permanent() {
		expiresAt = PermanentDuration
	}
	wire := eventlog.EffectState{
		ID:             e.ID,
		Kind:           e.Kind.String(),
		Magnitude:      e.Magnitude,
		ValueType:      e.Value.String(),
		AppliedDelta:   e.AppliedDelta,
		ExpiresAt:      expiresAt,
		TicksRemaining: e.TicksRemaining,
		SourceID:       e.SourceID,
	}
	if e.Kind == EffectStatBuff || e.Kind == EffectDebuff {
		wire.Stat = e.Stat.String()
	}
	return wire
}
