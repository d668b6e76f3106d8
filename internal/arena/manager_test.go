package arena

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"autoarena/server/internal/catalog"
	"autoarena/server/internal/combat"
	"autoarena/server/internal/eventlog"
	"autoarena/server/internal/replay"
	"autoarena/server/internal/store"
)

const testCatalogYAML = `
skills:
  - name: smite
    mana_cost: 40
    effects:
      - kind: damage
        target: enemy
        amount: 20
traits:
  - name: veteran
    tiers:
      - count: 1
        stat: attack
        amount: 2
units:
  - name: squire
    row: front
    hp: 90
    attack: 10
    defense: 3
    attack_speed: 1.0
    max_mana: 40
    mana_per_attack: 10
    traits: [veteran]
    skill: smite
  - name: bandit
    row: front
    hp: 85
    attack: 11
    defense: 2
    attack_speed: 1.1
`

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(testCatalogYAML))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	return c
}

func testManager(t *testing.T, repo *store.Repository) *Manager {
	t.Helper()
	return NewManager(testCatalog(t), repo, nil, Options{
		Loop: combat.LoopConfig{DT: 0.1, SnapshotEvery: 20, MaxTicks: 600},
	})
}

func duelRequest(id string, seed int64) Request {
	return Request{
		CombatID:      id,
		Seed:          seed,
		Round:         combat.RoundContext{Round: 1},
		PlayerPicks:   []catalog.RosterEntry{{Unit: "squire"}},
		OpponentPicks: []catalog.RosterEntry{{Unit: "bandit"}},
	}
}

func waitDone(t *testing.T, instance *Combat) combat.Outcome {
	t.Helper()
	select {
	case <-instance.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("combat %s did not finish", instance.ID())
	}
	return instance.Outcome()
}

func TestManagerResolvesCombatToOutcome(t *testing.T) {
	m := testManager(t, nil)
	instance, err := m.Start(duelRequest("c-1", 42))
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	outcome := waitDone(t, instance)
	if outcome.Cancelled {
		t.Fatalf("combat cancelled unexpectedly")
	}
	if outcome.Result != combat.ResultVictory && outcome.Result != combat.ResultDefeat && outcome.Result != combat.ResultDraw {
		t.Fatalf("outcome = %+v", outcome)
	}

	events := instance.Events()
	if uint64(len(events)) != outcome.Events {
		t.Fatalf("backlog has %d events, outcome says %d", len(events), outcome.Events)
	}
	if events[len(events)-1].EventType() != eventlog.TypeEnd {
		t.Fatalf("backlog does not end with the terminal event")
	}

	// The recorded stream reconstructs the final state exactly.
	diffs, err := replay.VerifyStream(events, instance.loop.State().GameState(), nil, instance.ID())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(diffs) != 0 {
		t.Fatalf("stream diverges: %+v", diffs)
	}
}

func TestSubscriberSeesBacklogThenLiveTail(t *testing.T) {
	m := testManager(t, nil)
	instance, err := m.Start(duelRequest("c-sub", 7))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	backlog, sub := instance.Subscribe()
	defer instance.Unsubscribe(sub)

	received := make([]eventlog.Event, 0, len(backlog))
	received = append(received, backlog...)
	for event := range sub.C() {
		received = append(received, event)
	}

	waitDone(t, instance)
	if sub.Dropped() {
		t.Fatalf("subscriber dropped on a short combat")
	}
	for i, event := range received {
		if event.Head().Seq != uint64(i+1) {
			t.Fatalf("subscriber saw seq %d at position %d", event.Head().Seq, i)
		}
	}
	if received[len(received)-1].EventType() != eventlog.TypeEnd {
		t.Fatalf("subscriber stream does not end with the terminal event")
	}
}

func TestSubscribeAfterFinishReturnsFullBacklog(t *testing.T) {
	m := testManager(t, nil)
	instance, err := m.Start(duelRequest("c-late", 9))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	outcome := waitDone(t, instance)

	backlog, sub := instance.Subscribe()
	defer instance.Unsubscribe(sub)
	if uint64(len(backlog)) != outcome.Events {
		t.Fatalf("late backlog has %d events, want %d", len(backlog), outcome.Events)
	}
	if _, open := <-sub.C(); open {
		t.Fatalf("late subscriber channel not closed")
	}
}

func TestDuplicateCombatIDRejected(t *testing.T) {
	m := testManager(t, nil)
	first, err := m.Start(duelRequest("c-dup", 1))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(duelRequest("c-dup", 2)); err == nil {
		t.Fatalf("duplicate id accepted")
	}
	waitDone(t, first)
}

func TestCancelStopsCombat(t *testing.T) {
	m := testManager(t, nil)
	// A stalemate that would otherwise run to the tick cap.
	req := Request{
		CombatID:      "c-cancel",
		Seed:          3,
		PlayerPicks:   []catalog.RosterEntry{{Unit: "squire"}},
		OpponentPicks: []catalog.RosterEntry{{Unit: "bandit"}},
	}
	instance, err := m.Start(req)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Cancel("c-cancel") {
		t.Fatalf("cancel returned false for a tracked combat")
	}
	outcome := waitDone(t, instance)
	// The loop may have finished on its own before the cancel landed;
	// either way the combat must terminate cleanly.
	if !outcome.Cancelled && outcome.Result == "" {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestRemoveOnlyForgetsFinishedCombats(t *testing.T) {
	m := testManager(t, nil)
	instance, err := m.Start(duelRequest("c-rm", 5))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDone(t, instance)

	if !m.Remove("c-rm") {
		t.Fatalf("finished combat not removed")
	}
	if _, ok := m.Combat("c-rm"); ok {
		t.Fatalf("removed combat still tracked")
	}
	if m.Remove("c-rm") {
		t.Fatalf("second remove succeeded")
	}
}

func TestFinalizePersistsCombatAndStream(t *testing.T) {
	db, err := store.OpenAndMigrate(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	repo := store.NewRepository(db)
	m := testManager(t, repo)

	instance, err := m.Start(duelRequest("c-persist", 13))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	outcome := waitDone(t, instance)

	record, err := repo.Combat("c-persist")
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if record.Seed != 13 || record.Result != string(outcome.Result) {
		t.Fatalf("record = %+v, outcome = %+v", record, outcome)
	}
	if record.Events != outcome.Events {
		t.Fatalf("record counts %d events, outcome %d", record.Events, outcome.Events)
	}

	stored, err := repo.EventStream("c-persist")
	if err != nil {
		t.Fatalf("load stream: %v", err)
	}
	if uint64(len(stored)) != outcome.Events {
		t.Fatalf("stored stream has %d events, want %d", len(stored), outcome.Events)
	}
}

func TestKeyframesRecordedAtSnapshotCadence(t *testing.T) {
	m := testManager(t, nil)
	instance, err := m.Start(duelRequest("c-frames", 17))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	outcome := waitDone(t, instance)

	size, oldest, newest := instance.Journal().KeyframeWindow()
	// No snapshot lands on the terminating tick itself.
	wantFrames := int(outcome.Ticks-1) / 20
	if size != wantFrames {
		t.Fatalf("window holds %d keyframes, want %d for %d ticks", size, wantFrames, outcome.Ticks)
	}
	if size > 0 {
		frame, ok := instance.Journal().KeyframeBySequence(newest)
		if !ok {
			t.Fatalf("newest keyframe %d not resolvable", newest)
		}
		if frame.Tick%20 != 0 {
			t.Fatalf("keyframe tick %d not on the snapshot cadence", frame.Tick)
		}
		if oldest > newest {
			t.Fatalf("window [%d, %d] inverted", oldest, newest)
		}
	}
}

func TestShutdownWaitsForCombats(t *testing.T) {
	m := testManager(t, nil)
	if _, err := m.Start(duelRequest("c-a", 1)); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.Start(duelRequest("c-b", 2)); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for _, id := range m.IDs() {
		instance, _ := m.Combat(id)
		if !instance.Finished() {
			t.Fatalf("combat %s unfinished after shutdown", id)
		}
	}
}
