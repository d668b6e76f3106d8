package combat

import "math"

// EffectKind is the closed set of effect variants. Adding a kind forces
// handling it in the dispatcher, the processor tick, and the reconstructor.
type EffectKind uint8

const (
	EffectStatBuff EffectKind = iota
	EffectDebuff
	EffectShield
	EffectStun
	EffectDamageOverTime
	EffectHPRegen

	effectKindCount
)

func (k EffectKind) String() string {
	switch k {
	case EffectStatBuff:
		return "stat_buff"
	case EffectDebuff:
		return "debuff"
	case EffectShield:
		return "shield"
	case EffectStun:
		return "stun"
	case EffectDamageOverTime:
		return "damage_over_time"
	case EffectHPRegen:
		return "hp_regen"
	default:
		return "unknown"
	}
}

// ValueType distinguishes flat magnitudes from percentages of the base stat.
type ValueType uint8

const (
	ValueFlat ValueType = iota
	ValuePercent
)

func (v ValueType) String() string {
	if v == ValuePercent {
		return "percentage"
	}
	return "flat"
}

// PermanentDuration marks an effect that lasts for the rest of the combat.
const PermanentDuration = -1

// Effect is one applied instance. AppliedDelta records the exact numeric
// change committed at apply time; expiration reverses that value and nothing
// else.
type Effect struct {
	ID        uint64
	Kind      EffectKind
	Stat      StatID
	Magnitude float64
	Value     ValueType

	// Duration is simulation seconds; PermanentDuration means no expiry.
	Duration float64

	AppliedDelta float64
	SourceID     string
	AppliedAt    float64
	ExpiresAt    float64

	// DoT and hp_regen tick once per second of simulation time.
	TicksRemaining int
	nextTickAt     float64
}

// permanent reports whether the effect never expires on its own.
func (e *Effect) permanent() bool {
	return e != nil && math.IsInf(e.ExpiresAt, 1)
}

// expiresAtOrInf converts a duration into an absolute expiry time.
func expiresAtOrInf(now, duration float64) float64 {
	if duration == PermanentDuration || duration < 0 {
		return math.Inf(1)
	}
	return now + duration
}
