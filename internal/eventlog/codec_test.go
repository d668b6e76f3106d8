package eventlog

import (
	"testing"
)

func TestEncodeStampsTypeFromConcreteEvent(t *testing.T) {
	mana := 42.0
	attack := &UnitAttack{
		Header:       Header{Seq: 7, Timestamp: 1.2},
		AttackerID:   "a1",
		TargetID:     "b1",
		Damage:       9,
		UnitHP:       51,
		AttackerMana: &mana,
	}

	data, err := Encode(attack)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	header, err := Peek(data)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if header.Type != TypeUnitAttack || header.Seq != 7 {
		t.Fatalf("header = %+v, want unit_attack seq 7", header)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	roundtrip, ok := decoded.(*UnitAttack)
	if !ok {
		t.Fatalf("decoded to %T", decoded)
	}
	if roundtrip.AttackerMana == nil || *roundtrip.AttackerMana != 42 {
		t.Fatalf("attacker mana lost in transit: %+v", roundtrip)
	}
	if roundtrip.UnitHP != 51 || roundtrip.TargetID != "b1" {
		t.Fatalf("payload mangled: %+v", roundtrip)
	}
}

func TestOmittedManaStaysNil(t *testing.T) {
	attack := &UnitAttack{Header: Header{Seq: 3}, AttackerID: "a1", TargetID: "b1", UnitHP: 80}
	data, err := Encode(attack)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.(*UnitAttack).AttackerMana != nil {
		t.Fatalf("absent attacker_mana decoded non-nil")
	}
}

func TestDecodeRejectsUnknownTag(t *testing.T) {
	_, err := Decode([]byte(`{"type":"combat_2_0_overcharge","seq":5}`))
	if err == nil {
		t.Fatalf("unknown tag decoded without error")
	}
	if !IsUnknownType(err) {
		t.Fatalf("error %v not classified as unknown type", err)
	}
}

func TestDecodeLenientWrapsUnknownTag(t *testing.T) {
	raw := []byte(`{"type":"combat_2_0_overcharge","seq":5,"timestamp":0.7}`)
	event, err := DecodeLenient(raw)
	if err != nil {
		t.Fatalf("lenient decode: %v", err)
	}
	unknown, ok := event.(*Unknown)
	if !ok {
		t.Fatalf("decoded to %T, want *Unknown", event)
	}
	if unknown.Seq != 5 || unknown.EventType() != "combat_2_0_overcharge" {
		t.Fatalf("header not preserved: %+v", unknown.Header)
	}
	if len(unknown.Raw) == 0 {
		t.Fatalf("raw payload not retained")
	}
}

func TestDecodeLenientStillRejectsMalformedPayload(t *testing.T) {
	if _, err := DecodeLenient([]byte(`{"type":"unit_attack","seq":"not-a-number"}`)); err == nil {
		t.Fatalf("malformed payload decoded without error")
	}
}

func TestEveryRegisteredTypeRoundtrips(t *testing.T) {
	for _, wire := range Types() {
		data, err := Encode(registry[wire]())
		if err != nil {
			t.Fatalf("encode %s: %v", wire, err)
		}
		decoded, err := Decode(data)
		if err != nil {
			t.Fatalf("decode %s: %v", wire, err)
		}
		if decoded.EventType() != wire {
			t.Fatalf("tag %s decoded to %s", wire, decoded.EventType())
		}
	}
}

func TestCloneEventDeepCopiesNestedState(t *testing.T) {
	original := &StateSnapshot{
		Header: Header{Type: TypeStateSnapshot, Seq: 9},
		GameState: GameState{
			PlayerUnits: []UnitState{{
				ID: "a1", HP: 70, MaxHP: 100,
				Effects: []EffectState{{ID: 1, Kind: "stat_buff", AppliedDelta: 5}},
			}},
		},
	}

	clone := CloneEvent(original).(*StateSnapshot)
	clone.GameState.PlayerUnits[0].HP = 1
	clone.GameState.PlayerUnits[0].Effects[0].AppliedDelta = -99

	if original.GameState.PlayerUnits[0].HP != 70 {
		t.Fatalf("clone mutation reached original hp")
	}
	if original.GameState.PlayerUnits[0].Effects[0].AppliedDelta != 5 {
		t.Fatalf("clone mutation reached original effects")
	}
}
