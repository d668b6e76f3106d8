package replay

import (
	"context"
	"fmt"
	"math"
	"sort"

	"autoarena/server/internal/eventlog"
	"autoarena/server/logging"
	"autoarena/server/logging/combatlog"
)

// diffEpsilon bounds the float error tolerated before a replica field counts
// as diverged. Events carry authoritative values verbatim, so any larger gap
// is a real bug, not accumulated drift.
const diffEpsilon = 1e-6

// Reconstructor rebuilds the combat state of a remote consumer from the
// canonical event stream alone. It never recomputes damage, expiry, or
// randomness: every mutation copies the authoritative value the event
// carries. Feeding the same stream twice is safe; duplicates are dropped by
// sequence number and gaps are buffered until the missing events arrive.
type Reconstructor struct {
	units     map[string]*eventlog.UnitState
	playerIDs []string
	oppIDs    []string

	time       float64
	playerGold int
	oppGold    int

	lastSeq  uint64
	pending  map[uint64]eventlog.Event
	finished bool
	result   string

	duplicates uint64
	unknown    uint64
	applied    uint64

	combatID  string
	publisher logging.Publisher
	policy    *Policy
}

// NewReconstructor returns an empty replica. The first applied event must be
// the stream preamble; state exists only after units_init or a snapshot.
func NewReconstructor(publisher logging.Publisher, combatID string) *Reconstructor {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Reconstructor{
		units:     make(map[string]*eventlog.UnitState),
		pending:   make(map[uint64]eventlog.Event),
		publisher: publisher,
		combatID:  combatID,
	}
}

// AttachPolicy enables desync detection against in-stream snapshots. Before
// adopting a snapshot the replica is diffed against it; divergences feed the
// policy and are logged.
func (r *Reconstructor) AttachPolicy(policy *Policy) {
	r.policy = policy
}

// LastSeq reports the highest contiguously applied sequence number.
func (r *Reconstructor) LastSeq() uint64 { return r.lastSeq }

// Finished reports whether the terminal end event has been applied.
func (r *Reconstructor) Finished() bool { return r.finished }

// Result returns the terminal result string once finished.
func (r *Reconstructor) Result() string { return r.result }

// Pending reports how many out-of-order events are buffered.
func (r *Reconstructor) Pending() int { return len(r.pending) }

// Applied reports how many events mutated the replica.
func (r *Reconstructor) Applied() uint64 { return r.applied }

// Apply ingests one event. Duplicates (seq at or below the watermark) are
// dropped, gapped events are buffered, and snapshots may jump the watermark
// forward, discarding anything buffered at or below the snapshot's sequence.
func (r *Reconstructor) Apply(event eventlog.Event) error {
	if event == nil {
		return fmt.Errorf("replay: nil event")
	}
	seq := event.Head().Seq
	if seq == 0 {
		return fmt.Errorf("replay: event %q missing sequence", event.EventType())
	}
	if seq <= r.lastSeq {
		r.duplicates++
		return nil
	}

	// A snapshot is self-contained: adopt it even across a gap.
	if snapshot, ok := event.(*eventlog.StateSnapshot); ok {
		if r.policy != nil && len(r.units) > 0 && seq == r.lastSeq+1 {
			if diffs := r.Diff(snapshot.GameState); len(diffs) > 0 {
				r.policy.NoteMismatches(diffs)
				payload := combatlog.DesyncPayload{SnapshotSeq: seq, Diffs: diffs}
				if signal, ok := r.policy.Consume(); ok {
					payload.Signal = &signal
				}
				combatlog.Desync(context.Background(), r.publisher, r.combatID, 0, payload)
			}
		}
		r.adoptGameState(snapshot.GameState)
		r.lastSeq = seq
		for buffered := range r.pending {
			if buffered <= seq {
				delete(r.pending, buffered)
			}
		}
		r.applied++
		r.drainPending()
		return nil
	}

	if seq != r.lastSeq+1 {
		r.pending[seq] = event
		return nil
	}

	if err := r.applyOrdered(event); err != nil {
		return err
	}
	r.drainPending()
	return nil
}

func (r *Reconstructor) drainPending() {
	for {
		next, ok := r.pending[r.lastSeq+1]
		if !ok {
			return
		}
		delete(r.pending, r.lastSeq+1)
		if err := r.applyOrdered(next); err != nil {
			return
		}
	}
}

func (r *Reconstructor) applyOrdered(event eventlog.Event) error {
	header := event.Head()
	r.lastSeq = header.Seq
	if header.Timestamp > r.time {
		r.time = header.Timestamp
	}
	r.applied++
	if r.policy != nil {
		r.policy.NoteEvent()
	}

	switch ev := event.(type) {
	case *eventlog.Start:
		// Stream preamble, no state.
	case *eventlog.UnitsInit:
		r.initRoster(ev)
	case *eventlog.UnitAttack:
		r.applyAttack(ev)
	case *eventlog.UnitDied:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.HP = 0
			unit.Effects = nil
		}
	case *eventlog.StatBuff:
		r.applyStatBuff(ev)
	case *eventlog.EffectExpired:
		r.applyEffectExpired(ev)
	case *eventlog.ShieldApplied:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.Shield = ev.UnitShield
			unit.Effects = append(unit.Effects, eventlog.EffectState{
				ID:           ev.EffectID,
				Kind:         "shield",
				Magnitude:    ev.Amount,
				ValueType:    "flat",
				AppliedDelta: ev.Amount,
				ExpiresAt:    expiry(ev.Timestamp, ev.Duration),
			})
		}
	case *eventlog.UnitStunned:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.Effects = append(unit.Effects, eventlog.EffectState{
				ID:        ev.EffectID,
				Kind:      "stun",
				ValueType: "flat",
				ExpiresAt: expiry(ev.Timestamp, ev.Duration),
			})
		}
	case *eventlog.DamageOverTimeApplied:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.Effects = append(unit.Effects, eventlog.EffectState{
				ID:             ev.EffectID,
				Kind:           "damage_over_time",
				Magnitude:      ev.Damage,
				ValueType:      "flat",
				TicksRemaining: ev.Ticks,
				SourceID:       ev.SourceID,
			})
		}
	case *eventlog.DamageOverTimeTick:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.HP = ev.UnitHP
			for i := range unit.Effects {
				if unit.Effects[i].ID == ev.EffectID {
					unit.Effects[i].TicksRemaining = ev.TicksRemaining
					break
				}
			}
		}
	case *eventlog.DamageOverTimeExpired:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.HP = ev.UnitHP
			removeEffect(unit, ev.EffectID)
		}
	case *eventlog.ManaUpdate:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.CurrentMana = ev.CurrentMana
			unit.MaxMana = ev.MaxMana
		}
	case *eventlog.SkillCast:
		if ev.TargetID != "" {
			if unit := r.unit(ev.EventType(), ev.TargetID); unit != nil {
				unit.HP = ev.TargetHP
			}
		}
	case *eventlog.GoldReward:
		if ev.Side == "opponent" {
			r.oppGold = ev.TeamGold
		} else {
			r.playerGold = ev.TeamGold
		}
	case *eventlog.RegenGain:
		if unit := r.unit(ev.EventType(), ev.UnitID); unit != nil {
			unit.HP = ev.UnitHP
		}
	case *eventlog.Victory:
		r.adoptGameState(ev.FinalState)
	case *eventlog.Defeat:
		r.adoptGameState(ev.FinalState)
	case *eventlog.End:
		r.adoptGameState(ev.FinalState)
		r.finished = true
		r.result = ev.Result
	default:
		// Unknown event kinds consume their sequence slot but change nothing,
		// so an older build keeps following a newer stream.
		r.unknown++
		combatlog.UnknownEvent(context.Background(), r.publisher, r.combatID, combatlog.UnknownEventPayload{
			EventType: string(event.EventType()),
			Seq:       header.Seq,
		})
	}
	return nil
}

func (r *Reconstructor) initRoster(ev *eventlog.UnitsInit) {
	r.units = make(map[string]*eventlog.UnitState, len(ev.PlayerUnits)+len(ev.OpponentUnits))
	r.playerIDs = r.playerIDs[:0]
	r.oppIDs = r.oppIDs[:0]
	for _, wire := range ev.PlayerUnits {
		clone := cloneUnit(wire)
		r.units[clone.ID] = clone
		r.playerIDs = append(r.playerIDs, clone.ID)
	}
	for _, wire := range ev.OpponentUnits {
		clone := cloneUnit(wire)
		r.units[clone.ID] = clone
		r.oppIDs = append(r.oppIDs, clone.ID)
	}
}

func (r *Reconstructor) adoptGameState(state eventlog.GameState) {
	r.units = make(map[string]*eventlog.UnitState, len(state.PlayerUnits)+len(state.OpponentUnits))
	r.playerIDs = r.playerIDs[:0]
	r.oppIDs = r.oppIDs[:0]
	for _, wire := range state.PlayerUnits {
		clone := cloneUnit(wire)
		r.units[clone.ID] = clone
		r.playerIDs = append(r.playerIDs, clone.ID)
	}
	for _, wire := range state.OpponentUnits {
		clone := cloneUnit(wire)
		r.units[clone.ID] = clone
		r.oppIDs = append(r.oppIDs, clone.ID)
	}
	r.time = state.Time
	r.playerGold = state.PlayerGold
	r.oppGold = state.OpponentGold
}

func (r *Reconstructor) applyAttack(ev *eventlog.UnitAttack) {
	if target := r.unit(ev.EventType(), ev.TargetID); target != nil {
		target.HP = ev.UnitHP
		target.Shield = ev.UnitShield
	}
	if ev.AttackerMana != nil {
		if attacker := r.unit(ev.EventType(), ev.AttackerID); attacker != nil {
			attacker.CurrentMana = *ev.AttackerMana
		}
	}
}

func (r *Reconstructor) applyStatBuff(ev *eventlog.StatBuff) {
	unit := r.unit(ev.EventType(), ev.UnitID)
	if unit == nil {
		return
	}
	setStat(unit, ev.Stat, ev.UnitStat)
	unit.HP = ev.UnitHP
	kind := "stat_buff"
	if ev.AppliedDelta < 0 {
		kind = "debuff"
	}
	unit.Effects = append(unit.Effects, eventlog.EffectState{
		ID:           ev.EffectID,
		Kind:         kind,
		Stat:         ev.Stat,
		Magnitude:    ev.Amount,
		ValueType:    ev.BuffType,
		AppliedDelta: ev.AppliedDelta,
		ExpiresAt:    expiry(ev.Timestamp, ev.Duration),
	})
}

func (r *Reconstructor) applyEffectExpired(ev *eventlog.EffectExpired) {
	unit := r.unit(ev.EventType(), ev.UnitID)
	if unit == nil {
		return
	}
	removeEffect(unit, ev.EffectID)
	if ev.Stat != "" {
		setStat(unit, ev.Stat, ev.Value)
	} else if ev.Kind == "shield" {
		unit.Shield = ev.Value
	}
	unit.HP = ev.UnitHP
}

// unit resolves a unit id, logging a tolerated miss. A stream that references
// an id the replica never saw keeps playing; only that one event is dropped.
func (r *Reconstructor) unit(eventType eventlog.Type, id string) *eventlog.UnitState {
	if id == "" {
		combatlog.MissingField(context.Background(), r.publisher, r.combatID, combatlog.MissingFieldPayload{
			EventType: string(eventType),
			Seq:       r.lastSeq,
			Field:     "unit_id",
		})
		return nil
	}
	unit, ok := r.units[id]
	if !ok {
		combatlog.MissingField(context.Background(), r.publisher, r.combatID, combatlog.MissingFieldPayload{
			EventType: string(eventType),
			Seq:       r.lastSeq,
			Field:     "unit_id",
			UnitID:    id,
		})
		return nil
	}
	return unit
}

// Snapshot renders the replica as a wire checkpoint in roster order, directly
// comparable against the authoritative GameState.
func (r *Reconstructor) Snapshot() eventlog.GameState {
	state := eventlog.GameState{
		Time:         r.time,
		PlayerGold:   r.playerGold,
		OpponentGold: r.oppGold,
	}
	for _, id := range r.playerIDs {
		if unit, ok := r.units[id]; ok {
			state.PlayerUnits = append(state.PlayerUnits, cloneOut(*unit))
		}
	}
	for _, id := range r.oppIDs {
		if unit, ok := r.units[id]; ok {
			state.OpponentUnits = append(state.OpponentUnits, cloneOut(*unit))
		}
	}
	return state
}

// Diff compares the replica against an authoritative checkpoint field by
// field and returns every divergence.
func (r *Reconstructor) Diff(authoritative eventlog.GameState) []combatlog.DesyncDiff {
	var diffs []combatlog.DesyncDiff
	check := func(unitID, field string, auth, replica float64) {
		if math.Abs(auth-replica) > diffEpsilon {
			diffs = append(diffs, combatlog.DesyncDiff{
				UnitID:        unitID,
				Field:         field,
				Authoritative: auth,
				Reconstructed: replica,
			})
		}
	}

	seen := make(map[string]bool, len(r.units))
	for _, wires := range [][]eventlog.UnitState{authoritative.PlayerUnits, authoritative.OpponentUnits} {
		for _, auth := range wires {
			seen[auth.ID] = true
			replica, ok := r.units[auth.ID]
			if !ok {
				diffs = append(diffs, combatlog.DesyncDiff{UnitID: auth.ID, Field: "presence", Authoritative: 1})
				continue
			}
			check(auth.ID, "hp", auth.HP, replica.HP)
			check(auth.ID, "max_hp", auth.MaxHP, replica.MaxHP)
			check(auth.ID, "current_mana", auth.CurrentMana, replica.CurrentMana)
			check(auth.ID, "shield", auth.Shield, replica.Shield)
			check(auth.ID, "attack", auth.Attack, replica.Attack)
			check(auth.ID, "defense", auth.Defense, replica.Defense)
			check(auth.ID, "attack_speed", auth.AttackSpeed, replica.AttackSpeed)
			check(auth.ID, "buff_amp", auth.BuffAmp, replica.BuffAmp)
		}
	}
	ids := make([]string, 0, len(r.units))
	for id := range r.units {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		diffs = append(diffs, combatlog.DesyncDiff{UnitID: id, Field: "presence", Reconstructed: 1})
	}

	check("", "player_gold", float64(authoritative.PlayerGold), float64(r.playerGold))
	check("", "opponent_gold", float64(authoritative.OpponentGold), float64(r.oppGold))
	return diffs
}

func expiry(timestamp, duration float64) float64 {
	if duration < 0 {
		return -1
	}
	return timestamp + duration
}

func setStat(unit *eventlog.UnitState, stat string, value float64) {
	switch stat {
	case "attack":
		unit.Attack = value
	case "defense":
		unit.Defense = value
	case "attack_speed":
		unit.AttackSpeed = value
	case "max_hp":
		unit.MaxHP = value
	case "buff_amp":
		unit.BuffAmp = value
	}
}

func removeEffect(unit *eventlog.UnitState, effectID uint64) {
	for i := range unit.Effects {
		if unit.Effects[i].ID == effectID {
			unit.Effects = append(unit.Effects[:i], unit.Effects[i+1:]...)
			return
		}
	}
}

func cloneUnit(wire eventlog.UnitState) *eventlog.UnitState {
	clone := cloneOut(wire)
	return &clone
}

func cloneOut(wire eventlog.UnitState) eventlog.UnitState {
	if len(wire.Traits) > 0 {
		wire.Traits = append([]string(nil), wire.Traits...)
	}
	if len(wire.Effects) > 0 {
		wire.Effects = append([]eventlog.EffectState(nil), wire.Effects...)
	}
	return wire
}
