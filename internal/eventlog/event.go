package eventlog

// Type identifies a canonical combat event on the wire.
type Type string

const (
	TypeStart         Type = "start"
	TypeUnitsInit     Type = "units_init"
	TypeStateSnapshot Type = "state_snapshot"
	TypeUnitAttack    Type = "unit_attack"
	TypeUnitDied      Type = "unit_died"
	TypeStatBuff      Type = "stat_buff"
	TypeEffectExpired Type = "effect_expired"
	TypeShieldApplied Type = "shield_applied"
	TypeUnitStunned   Type = "unit_stunned"
	TypeDoTApplied    Type = "damage_over_time_applied"
	TypeDoTTick       Type = "damage_over_time_tick"
	TypeDoTExpired    Type = "damage_over_time_expired"
	TypeManaUpdate    Type = "mana_update"
	TypeSkillCast     Type = "skill_cast"
	TypeGoldReward    Type = "gold_reward"
	TypeRegenGain     Type = "regen_gain"
	TypeVictory       Type = "victory"
	TypeDefeat        Type = "defeat"
	TypeEnd           Type = "end"
)

// Header is embedded in every event. Seq is gapless and strictly increasing
// within one combat; Timestamp is simulation seconds and non-decreasing.
type Header struct {
	Type      Type    `json:"type"`
	Seq       uint64  `json:"seq"`
	Timestamp float64 `json:"timestamp"`
}

// Head exposes the embedded header for stamping by the dispatcher.
func (h *Header) Head() *Header { return h }

// Event is the closed set of canonical records. Every implementation embeds
// Header and reports its wire tag through EventType.
type Event interface {
	Head() *Header
	EventType() Type
}

// UnitState is the authoritative wire form of one combat unit. It appears in
// units_init, state_snapshot, and terminal events.
type UnitState struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Side        string        `json:"side"`
	Row         string        `json:"row"`
	HP          float64       `json:"hp"`
	MaxHP       float64       `json:"max_hp"`
	CurrentMana float64       `json:"current_mana"`
	MaxMana     float64       `json:"max_mana"`
	Shield      float64       `json:"shield"`
	Attack      float64       `json:"attack"`
	Defense     float64       `json:"defense"`
	AttackSpeed float64       `json:"attack_speed"`
	BuffAmp     float64       `json:"buff_amp"`
	Traits      []string      `json:"traits,omitempty"`
	Effects     []EffectState `json:"effects,omitempty"`
}

// EffectState mirrors one active effect instance, including the exact delta
// committed at apply time so reversal stays exact after a snapshot adoption.
// An expires_at of -1 marks an effect that lasts for the rest of the combat.
type EffectState struct {
	ID             uint64  `json:"id"`
	Kind           string  `json:"kind"`
	Stat           string  `json:"stat,omitempty"`
	Magnitude      float64 `json:"magnitude"`
	ValueType      string  `json:"value_type"`
	AppliedDelta   float64 `json:"applied_delta"`
	ExpiresAt      float64 `json:"expires_at"`
	TicksRemaining int     `json:"ticks_remaining,omitempty"`
	SourceID       string  `json:"source_id,omitempty"`
}

// GameState is a full checkpoint of both rosters. Side A is the player.
type GameState struct {
	Time          float64     `json:"time"`
	PlayerUnits   []UnitState `json:"player_units"`
	OpponentUnits []UnitState `json:"opponent_units"`
	PlayerGold    int         `json:"player_gold"`
	OpponentGold  int         `json:"opponent_gold"`
}

// SynergyInfo describes one activated trait tier in units_init.
type SynergyInfo struct {
	Trait  string `json:"trait"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

// OpponentInfo carries display metadata about the opposing roster.
type OpponentInfo struct {
	Name   string `json:"name"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
}

type Start struct {
	Header
}

func (*Start) EventType() Type { return TypeStart }

type UnitsInit struct {
	Header
	PlayerUnits       []UnitState   `json:"player_units"`
	OpponentUnits     []UnitState   `json:"opponent_units"`
	PlayerSynergies   []SynergyInfo `json:"synergies,omitempty"`
	OpponentSynergies []SynergyInfo `json:"opponent_synergies,omitempty"`
	Opponent          OpponentInfo  `json:"opponent"`
	Round             int           `json:"round"`
}

func (*UnitsInit) EventType() Type { return TypeUnitsInit }

type StateSnapshot struct {
	Header
	GameState GameState `json:"game_state"`
}

func (*StateSnapshot) EventType() Type { return TypeStateSnapshot }

// UnitAttack reports one resolved attack. UnitHP and UnitShield are the
// target's post-damage values; AttackerMana is present only when the attack
// accrued mana and carries the attacker's post-accrual total. These values are
// computed once by the simulator and must pass through unchanged.
type UnitAttack struct {
	Header
	AttackerID     string   `json:"attacker_id"`
	TargetID       string   `json:"target_id"`
	Damage         float64  `json:"damage"`
	UnitHP         float64  `json:"unit_hp"`
	UnitShield     float64  `json:"unit_shield"`
	ShieldAbsorbed float64  `json:"shield_absorbed"`
	AttackerMana   *float64 `json:"attacker_mana,omitempty"`
	IsSkill        bool     `json:"is_skill"`
}

func (*UnitAttack) EventType() Type { return TypeUnitAttack }

type UnitDied struct {
	Header
	UnitID   string `json:"unit_id"`
	UnitName string `json:"unit_name"`
}

func (*UnitDied) EventType() Type { return TypeUnitDied }

// StatBuff reports a stat modification (buffs and debuffs share the type; a
// debuff carries a negative applied delta). UnitStat is the stat's value after
// the delta was committed.
type StatBuff struct {
	Header
	UnitID       string  `json:"unit_id"`
	Stat         string  `json:"stat"`
	Amount       float64 `json:"amount"`
	BuffType     string  `json:"buff_type"`
	Duration     float64 `json:"duration"`
	EffectID     uint64  `json:"effect_id"`
	AppliedDelta float64 `json:"applied_delta"`
	UnitStat     float64 `json:"unit_stat"`
	UnitHP       float64 `json:"unit_hp"`
}

func (*StatBuff) EventType() Type { return TypeStatBuff }

// EffectExpired is the only legitimate signal that an effect ended. Value is
// the affected stat (or shield) after the applied delta was reversed.
type EffectExpired struct {
	Header
	UnitID   string  `json:"unit_id"`
	EffectID uint64  `json:"effect_id"`
	Kind     string  `json:"kind"`
	Stat     string  `json:"stat,omitempty"`
	Value    float64 `json:"value"`
	UnitHP   float64 `json:"unit_hp"`
}

func (*EffectExpired) EventType() Type { return TypeEffectExpired }

type ShieldApplied struct {
	Header
	UnitID     string  `json:"unit_id"`
	Amount     float64 `json:"amount"`
	Duration   float64 `json:"duration"`
	EffectID   uint64  `json:"effect_id"`
	UnitShield float64 `json:"unit_shield"`
}

func (*ShieldApplied) EventType() Type { return TypeShieldApplied }

type UnitStunned struct {
	Header
	UnitID   string  `json:"unit_id"`
	Duration float64 `json:"duration"`
	EffectID uint64  `json:"effect_id"`
}

func (*UnitStunned) EventType() Type { return TypeUnitStunned }

type DamageOverTimeApplied struct {
	Header
	UnitID   string  `json:"unit_id"`
	EffectID uint64  `json:"effect_id"`
	Damage   float64 `json:"damage"`
	Ticks    int     `json:"ticks"`
	SourceID string  `json:"source_id,omitempty"`
}

func (*DamageOverTimeApplied) EventType() Type { return TypeDoTApplied }

type DamageOverTimeTick struct {
	Header
	UnitID         string  `json:"unit_id"`
	EffectID       uint64  `json:"effect_id"`
	Damage         float64 `json:"damage"`
	UnitHP         float64 `json:"unit_hp"`
	TicksRemaining int     `json:"ticks_remaining"`
}

func (*DamageOverTimeTick) EventType() Type { return TypeDoTTick }

type DamageOverTimeExpired struct {
	Header
	UnitID   string  `json:"unit_id"`
	EffectID uint64  `json:"effect_id"`
	UnitHP   float64 `json:"unit_hp"`
}

func (*DamageOverTimeExpired) EventType() Type { return TypeDoTExpired }

type ManaUpdate struct {
	Header
	UnitID      string  `json:"unit_id"`
	CurrentMana float64 `json:"current_mana"`
	MaxMana     float64 `json:"max_mana"`
}

func (*ManaUpdate) EventType() Type { return TypeManaUpdate }

// SkillCast closes a cast. The mana deduction and any damage or effect
// applications travel in their own events; TargetHP restates the primary
// target's hp after the full effect list resolved.
type SkillCast struct {
	Header
	CasterID  string  `json:"caster_id"`
	SkillName string  `json:"skill_name"`
	TargetID  string  `json:"target_id"`
	TargetHP  float64 `json:"target_hp"`
}

func (*SkillCast) EventType() Type { return TypeSkillCast }

type GoldReward struct {
	Header
	UnitID   string `json:"unit_id"`
	Side     string `json:"side"`
	Amount   int    `json:"amount"`
	TeamGold int    `json:"team_gold"`
	Cause    string `json:"cause"`
}

func (*GoldReward) EventType() Type { return TypeGoldReward }

type RegenGain struct {
	Header
	UnitID string  `json:"unit_id"`
	Amount float64 `json:"amount"`
	UnitHP float64 `json:"unit_hp"`
	Cause  string  `json:"cause"`
}

func (*RegenGain) EventType() Type { return TypeRegenGain }

type Victory struct {
	Header
	Winner     string    `json:"winner"`
	FinalState GameState `json:"final_state"`
}

func (*Victory) EventType() Type { return TypeVictory }

type Defeat struct {
	Header
	Winner     string    `json:"winner"`
	FinalState GameState `json:"final_state"`
}

func (*Defeat) EventType() Type { return TypeDefeat }

type End struct {
	Header
	Result     string    `json:"result"`
	FinalState GameState `json:"final_state"`
}

func (*End) EventType() Type { return TypeEnd }
