package combat

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"autoarena/server/internal/eventlog"
)

// duelFixture builds a small but eventful matchup: skills, a dot, a shield,
// and a death trigger all fire within a short combat.
func duelFixture() ([]*Unit, []*Unit, map[Side][]Synergy) {
	knight := NewUnit("a1", "knight", SideA, RowFront, Stats{
		Attack: 14, Defense: 5, AttackSpeed: 0.8, MaxHP: 140, MaxMana: 60,
	})
	knight.ManaPerAttack = 15
	knight.Traits = []string{"bulwark"}
	knight.Skill = &Skill{
		Name:     "shield_wall",
		ManaCost: 60,
		Effects:  []SkillEffect{{Kind: SkillShield, Target: SkillTargetTeam, Amount: 25, Duration: 4}},
	}

	pyro := NewUnit("a2", "pyromancer", SideA, RowBack, Stats{
		Attack: 9, Defense: 1, AttackSpeed: 0.7, MaxHP: 80, MaxMana: 80,
	})
	pyro.ManaPerAttack = 20
	pyro.Skill = &Skill{
		Name:     "immolate",
		ManaCost: 80,
		Effects: []SkillEffect{
			{Kind: SkillDamage, Target: SkillTargetEnemy, Amount: 30},
			{Kind: SkillDoT, Target: SkillTargetEnemy, Amount: 6, Ticks: 3},
		},
	}

	brute := NewUnit("b1", "brute", SideB, RowFront, Stats{
		Attack: 16, Defense: 3, AttackSpeed: 0.9, MaxHP: 150,
	})
	stalker := NewUnit("b2", "stalker", SideB, RowBack, Stats{
		Attack: 12, Defense: 0, AttackSpeed: 1.2, MaxHP: 90,
	})

	synergies := map[Side][]Synergy{
		SideA: {{
			Name: "bulwark", Count: 1, Active: true,
			Effects: []TraitEffect{
				{
					// Permanent pre-combat buff; stays on the knight through
					// every snapshot and terminal payload.
					Trigger: TriggerPassive,
					Actions: []TraitAction{{Kind: ActionStatBuff, Stat: StatDefense, Amount: 4}},
				},
				{
					Trigger: TriggerOnEnemyDeath,
					Actions: []TraitAction{{Kind: ActionReward, Reward: RewardGold, Amount: 2}},
				},
			},
		}},
	}
	return []*Unit{knight, pyro}, []*Unit{brute, stalker}, synergies
}

func runDuel(t *testing.T, seed int64) ([]eventlog.Event, *CombatState, Outcome) {
	t.Helper()
	sideA, sideB, synergies := duelFixture()
	state := NewCombatState(seed, sideA, sideB, RoundContext{Round: 2})
	var events []eventlog.Event
	sink := eventlog.SinkFunc(func(event eventlog.Event) {
		events = append(events, eventlog.CloneEvent(event))
	})
	loop := NewLoop(state, sink, synergies, LoopConfig{DT: 0.1, SnapshotEvery: 50, MaxTicks: 2000}, LoopHooks{})
	outcome := loop.RunToCompletion()
	return events, state, outcome
}

func streamChecksum(t *testing.T, events []eventlog.Event) string {
	t.Helper()
	hasher := sha256.New()
	for _, event := range events {
		data, err := eventlog.Encode(event)
		if err != nil {
			t.Fatalf("encode seq %d: %v", event.Head().Seq, err)
		}
		hasher.Write(data)
		hasher.Write([]byte{'\n'})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}

func TestLoopIsDeterministicForASeed(t *testing.T) {
	first, _, firstOutcome := runDuel(t, 42)
	second, _, secondOutcome := runDuel(t, 42)

	if firstOutcome != secondOutcome {
		t.Fatalf("outcomes differ: %+v vs %+v", firstOutcome, secondOutcome)
	}
	a, b := streamChecksum(t, first), streamChecksum(t, second)
	if a != b {
		t.Fatalf("same seed produced different streams: %s vs %s", a, b)
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	first, _, _ := runDuel(t, 1)
	second, _, _ := runDuel(t, 99)
	if streamChecksum(t, first) == streamChecksum(t, second) {
		t.Fatalf("seeds 1 and 99 produced identical streams")
	}
}

func TestStreamContractHoldsEndToEnd(t *testing.T) {
	events, _, outcome := runDuel(t, 7)

	if len(events) < 4 {
		t.Fatalf("suspiciously short stream: %d events", len(events))
	}
	if events[0].EventType() != eventlog.TypeStart {
		t.Fatalf("stream opens with %s, want start", events[0].EventType())
	}
	if events[1].EventType() != eventlog.TypeUnitsInit {
		t.Fatalf("second event is %s, want units_init", events[1].EventType())
	}
	if events[len(events)-1].EventType() != eventlog.TypeEnd {
		t.Fatalf("stream closes with %s, want end", events[len(events)-1].EventType())
	}

	lastTime := -1.0
	for i, event := range events {
		header := event.Head()
		if header.Seq != uint64(i+1) {
			t.Fatalf("event %d has seq %d, want gapless from 1", i, header.Seq)
		}
		if header.Timestamp < lastTime {
			t.Fatalf("timestamp went backwards at seq %d: %v after %v", header.Seq, header.Timestamp, lastTime)
		}
		lastTime = header.Timestamp
	}

	if outcome.HasWinner {
		terminal := events[len(events)-2].EventType()
		if terminal != eventlog.TypeVictory && terminal != eventlog.TypeDefeat {
			t.Fatalf("winner declared but penultimate event is %s", terminal)
		}
	}
	if outcome.Events != uint64(len(events)) {
		t.Fatalf("outcome counts %d events, stream has %d", outcome.Events, len(events))
	}
}

func TestDeadUnitsEmitExactlyOneDeathEvent(t *testing.T) {
	events, state, _ := runDuel(t, 3)

	died := make(map[string]int)
	for _, event := range events {
		if death, ok := event.(*eventlog.UnitDied); ok {
			died[death.UnitID]++
		}
	}
	for id, count := range died {
		if count != 1 {
			t.Fatalf("unit %s died %d times", id, count)
		}
		if unit := state.UnitByID(id); unit.Alive() {
			t.Fatalf("unit %s has a death event but hp %v", id, unit.HP)
		}
	}
	for _, unit := range state.Units {
		if !unit.Alive() && died[unit.ID] == 0 {
			t.Fatalf("unit %s is dead with no death event", unit.ID)
		}
	}
}

func TestTimeoutAdjudicatesByRemainingHP(t *testing.T) {
	tank := NewUnit("a1", "tank", SideA, RowFront, Stats{Attack: 1, Defense: 50, AttackSpeed: 0.5, MaxHP: 500})
	pebble := NewUnit("b1", "pebble", SideB, RowFront, Stats{Attack: 1, Defense: 50, AttackSpeed: 0.5, MaxHP: 400})
	state := NewCombatState(5, []*Unit{tank}, []*Unit{pebble}, RoundContext{})
	var events []eventlog.Event
	sink := eventlog.SinkFunc(func(event eventlog.Event) {
		events = append(events, eventlog.CloneEvent(event))
	})
	loop := NewLoop(state, sink, nil, LoopConfig{DT: 0.1, MaxTicks: 50}, LoopHooks{})

	outcome := loop.RunToCompletion()

	if !outcome.Adjudicated {
		t.Fatalf("expected timeout adjudication, got %+v", outcome)
	}
	if outcome.Result != ResultVictory || outcome.Winner != SideA {
		t.Fatalf("outcome = %+v, want side A by remaining hp", outcome)
	}
	if outcome.Ticks != 50 {
		t.Fatalf("ran %d ticks, want the 50-tick cap", outcome.Ticks)
	}
}

func TestCancellationStopsAtTickBoundary(t *testing.T) {
	sideA, sideB, synergies := duelFixture()
	state := NewCombatState(11, sideA, sideB, RoundContext{})
	var events []eventlog.Event
	sink := eventlog.SinkFunc(func(event eventlog.Event) {
		events = append(events, eventlog.CloneEvent(event))
	})
	loop := NewLoop(state, sink, synergies, DefaultLoopConfig(), LoopHooks{})

	stop := make(chan struct{})
	close(stop)
	outcome := loop.Run(stop)

	if !outcome.Cancelled {
		t.Fatalf("outcome not marked cancelled: %+v", outcome)
	}
	// Begin ran, so the preamble is out (start, units_init, and the bulwark
	// passive buff), but no tick events follow.
	if len(events) != 3 {
		t.Fatalf("cancelled run emitted %d events, want the preamble only", len(events))
	}
	for _, event := range events {
		if event.EventType() == eventlog.TypeEnd {
			t.Fatalf("cancelled combat emitted a terminal event")
		}
	}
}

func TestSnapshotCadenceMatchesConfig(t *testing.T) {
	events, _, _ := runDuel(t, 21)

	var snapshots []*eventlog.StateSnapshot
	for _, event := range events {
		if snap, ok := event.(*eventlog.StateSnapshot); ok {
			snapshots = append(snapshots, snap)
		}
	}
	for i, snap := range snapshots {
		// Snapshots land on 5-second boundaries at dt 0.1, every 50 ticks.
		want := float64(i+1) * 5.0
		if diff := snap.Timestamp - want; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("snapshot %d at %v, want %v", i, snap.Timestamp, want)
		}
	}
}

func TestDeathsResolveAfterAttacksWithinATick(t *testing.T) {
	caster := NewUnit("a1", "hexer", SideA, RowBack, Stats{Attack: 1, Defense: 1, MaxHP: 400, MaxMana: 40})
	caster.Mana = 40
	caster.TargetBias = 1
	caster.Skill = &Skill{
		Name:     "ruin",
		ManaCost: 40,
		Effects:  []SkillEffect{{Kind: SkillDoT, Target: SkillTargetEnemy, Amount: 50, Ticks: 3}},
	}
	striker := NewUnit("b1", "striker", SideB, RowFront, Stats{Attack: 1, Defense: 1, AttackSpeed: 10, MaxHP: 300})
	victim := NewUnit("b2", "victim", SideB, RowFront, Stats{Defense: 8, MaxHP: 60})

	state := NewCombatState(13, []*Unit{caster}, []*Unit{striker, victim}, RoundContext{})
	var events []eventlog.Event
	sink := eventlog.SinkFunc(func(event eventlog.Event) {
		events = append(events, eventlog.CloneEvent(event))
	})
	loop := NewLoop(state, sink, nil, LoopConfig{DT: 0.1, MaxTicks: 600}, LoopHooks{})
	loop.RunToCompletion()

	// The dot drops b2 on a whole-second boundary while b1 swings every
	// tick; that tick's unit_died must land after its attack events.
	deathIdx := -1
	deathAt := -1.0
	for i, event := range events {
		if death, ok := event.(*eventlog.UnitDied); ok && death.UnitID == "b2" {
			deathIdx = i
			deathAt = death.Timestamp
		}
	}
	if deathIdx < 0 {
		t.Fatalf("b2 survived the dot")
	}
	attacksBefore := 0
	for i, event := range events {
		attack, ok := event.(*eventlog.UnitAttack)
		if !ok || attack.Timestamp != deathAt {
			continue
		}
		if i > deathIdx {
			t.Fatalf("attack at seq %d follows b2's death in the same tick", attack.Seq)
		}
		attacksBefore++
	}
	if attacksBefore == 0 {
		t.Fatalf("no attack shares b2's death tick; fixture lost its overlap")
	}
}
