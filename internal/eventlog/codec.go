package eventlog

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownType marks a wire event whose type tag is not in the registry.
// Consumers log and skip these; they never abort a replay.
var ErrUnknownType = errors.New("eventlog: unknown event type")

var registry = map[Type]func() Event{
	TypeStart:         func() Event { return &Start{} },
	TypeUnitsInit:     func() Event { return &UnitsInit{} },
	TypeStateSnapshot: func() Event { return &StateSnapshot{} },
	TypeUnitAttack:    func() Event { return &UnitAttack{} },
	TypeUnitDied:      func() Event { return &UnitDied{} },
	TypeStatBuff:      func() Event { return &StatBuff{} },
	TypeEffectExpired: func() Event { return &EffectExpired{} },
	TypeShieldApplied: func() Event { return &ShieldApplied{} },
	TypeUnitStunned:   func() Event { return &UnitStunned{} },
	TypeDoTApplied:    func() Event { return &DamageOverTimeApplied{} },
	TypeDoTTick:       func() Event { return &DamageOverTimeTick{} },
	TypeDoTExpired:    func() Event { return &DamageOverTimeExpired{} },
	TypeManaUpdate:    func() Event { return &ManaUpdate{} },
	TypeSkillCast:     func() Event { return &SkillCast{} },
	TypeGoldReward:    func() Event { return &GoldReward{} },
	TypeRegenGain:     func() Event { return &RegenGain{} },
	TypeVictory:       func() Event { return &Victory{} },
	TypeDefeat:        func() Event { return &Defeat{} },
	TypeEnd:           func() Event { return &End{} },
}

// Types lists every registered wire tag.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Peek reads only the envelope header, tolerating unknown payloads.
func Peek(data []byte) (Header, error) {
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("eventlog: decode header: %w", err)
	}
	return header, nil
}

// Decode parses a wire event into its concrete type. Unknown tags return
// ErrUnknownType wrapped with the offending tag.
func Decode(data []byte) (Event, error) {
	header, err := Peek(data)
	if err != nil {
		return nil, err
	}
	factory, ok := registry[header.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, header.Type)
	}
	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("eventlog: decode %s: %w", header.Type, err)
	}
	return event, nil
}

// IsUnknownType reports whether a decode error means the tag was outside the
// registry as opposed to a malformed payload.
func IsUnknownType(err error) bool {
	return errors.Is(err, ErrUnknownType)
}

// Unknown carries an event whose tag the local build does not recognize. It
// keeps its sequence slot so a replay can step past it without a gap.
type Unknown struct {
	Header
	Raw json.RawMessage `json:"-"`
}

func (u *Unknown) EventType() Type { return u.Header.Type }

// DecodeLenient is Decode, but wraps unregistered tags in an Unknown event
// instead of failing. Malformed payloads still error.
func DecodeLenient(data []byte) (Event, error) {
	event, err := Decode(data)
	if err == nil {
		return event, nil
	}
	if !IsUnknownType(err) {
		return nil, err
	}
	header, err := Peek(data)
	if err != nil {
		return nil, err
	}
	return &Unknown{Header: header, Raw: append(json.RawMessage(nil), data...)}, nil
}

// Encode serializes an event, stamping the header tag from the concrete type
// so a zero-valued Type field can never ship a mistagged record.
func Encode(event Event) ([]byte, error) {
	if event == nil {
		return nil, errors.New("eventlog: encode nil event")
	}
	event.Head().Type = event.EventType()
	return json.Marshal(event)
}

// CloneEvent returns a copy safe to hand to another goroutine. Slice-bearing
// events are deep-copied; flat events are value copies behind a fresh pointer.
func CloneEvent(event Event) Event {
	switch ev := event.(type) {
	case *Start:
		clone := *ev
		return &clone
	case *UnitsInit:
		clone := *ev
		clone.PlayerUnits = CloneUnitStates(ev.PlayerUnits)
		clone.OpponentUnits = CloneUnitStates(ev.OpponentUnits)
		clone.PlayerSynergies = append([]SynergyInfo(nil), ev.PlayerSynergies...)
		clone.OpponentSynergies = append([]SynergyInfo(nil), ev.OpponentSynergies...)
		return &clone
	case *StateSnapshot:
		clone := *ev
		clone.GameState = CloneGameState(ev.GameState)
		return &clone
	case *UnitAttack:
		clone := *ev
		if ev.AttackerMana != nil {
			mana := *ev.AttackerMana
			clone.AttackerMana = &mana
		}
		return &clone
	case *UnitDied:
		clone := *ev
		return &clone
	case *StatBuff:
		clone := *ev
		return &clone
	case *EffectExpired:
		clone := *ev
		return &clone
	case *ShieldApplied:
		clone := *ev
		return &clone
	case *UnitStunned:
		clone := *ev
		return &clone
	case *DamageOverTimeApplied:
		clone := *ev
		return &clone
	case *DamageOverTimeTick:
		clone := *ev
		return &clone
	case *DamageOverTimeExpired:
		clone := *ev
		return &clone
	case *ManaUpdate:
		clone := *ev
		return &clone
	case *SkillCast:
		clone := *ev
		return &clone
	case *GoldReward:
		clone := *ev
		return &clone
	case *RegenGain:
		clone := *ev
		return &clone
	case *Victory:
		clone := *ev
		clone.FinalState = CloneGameState(ev.FinalState)
		return &clone
	case *Defeat:
		clone := *ev
		clone.FinalState = CloneGameState(ev.FinalState)
		return &clone
	case *End:
		clone := *ev
		clone.FinalState = CloneGameState(ev.FinalState)
		return &clone
	default:
		return event
	}
}

// CloneUnitStates deep-copies a unit array including effect instances.
func CloneUnitStates(units []UnitState) []UnitState {
	if len(units) == 0 {
		return nil
	}
	clones := make([]UnitState, len(units))
	for i, unit := range units {
		clone := unit
		if len(unit.Traits) > 0 {
			clone.Traits = append([]string(nil), unit.Traits...)
		}
		if len(unit.Effects) > 0 {
			clone.Effects = append([]EffectState(nil), unit.Effects...)
		}
		clones[i] = clone
	}
	return clones
}

// CloneGameState deep-copies a checkpoint.
func CloneGameState(state GameState) GameState {
	clone := state
	clone.PlayerUnits = CloneUnitStates(state.PlayerUnits)
	clone.OpponentUnits = CloneUnitStates(state.OpponentUnits)
	return clone
}
