package store

import (
	"path/filepath"
	"testing"

	"autoarena/server/internal/eventlog"
)

func openTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return NewRepository(db)
}

func sampleStream() []eventlog.Event {
	return []eventlog.Event{
		&eventlog.Start{Header: eventlog.Header{Seq: 1}},
		&eventlog.UnitAttack{
			Header:     eventlog.Header{Seq: 2, Timestamp: 0.5},
			AttackerID: "a1", TargetID: "b1", Damage: 7, UnitHP: 93,
		},
		&eventlog.End{Header: eventlog.Header{Seq: 3, Timestamp: 0.5}, Result: "victory"},
	}
}

func TestSaveCombatRoundtripsEvents(t *testing.T) {
	repo := openTestRepository(t)

	record := CombatRecord{
		CombatID: "c-1", Seed: 42, Round: 3,
		Result: "victory", Winner: "A",
		Ticks: 5, Events: 3, SimTime: 0.5,
	}
	if err := repo.SaveCombat(record, sampleStream()); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := repo.Combat("c-1")
	if err != nil {
		t.Fatalf("load summary: %v", err)
	}
	if loaded.Seed != 42 || loaded.Result != "victory" || loaded.Events != 3 {
		t.Fatalf("summary = %+v", loaded)
	}

	events, err := repo.EventStream("c-1")
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("stream has %d events, want 3", len(events))
	}
	attack, ok := events[1].(*eventlog.UnitAttack)
	if !ok {
		t.Fatalf("seq 2 decoded to %T", events[1])
	}
	if attack.UnitHP != 93 || attack.TargetID != "b1" {
		t.Fatalf("attack = %+v", attack)
	}
}

func TestSaveCombatRejectsDuplicateCombatID(t *testing.T) {
	repo := openTestRepository(t)
	record := CombatRecord{CombatID: "c-dup", Result: "draw"}
	if err := repo.SaveCombat(record, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := repo.SaveCombat(CombatRecord{CombatID: "c-dup", Result: "victory"}, nil); err == nil {
		t.Fatalf("duplicate combat id accepted")
	}
}

func TestRecentCombatsOrdersNewestFirst(t *testing.T) {
	repo := openTestRepository(t)
	for _, id := range []string{"c-1", "c-2", "c-3"} {
		if err := repo.SaveCombat(CombatRecord{CombatID: id, Result: "draw"}, nil); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	records, err := repo.RecentCombats(2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("listed %d records, want 2", len(records))
	}
	if records[0].CombatID != "c-3" || records[1].CombatID != "c-2" {
		t.Fatalf("order = %s, %s", records[0].CombatID, records[1].CombatID)
	}
}

func TestEventStreamToleratesUnknownStoredType(t *testing.T) {
	repo := openTestRepository(t)
	if err := repo.SaveCombat(CombatRecord{CombatID: "c-old"}, sampleStream()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// A row written by a newer build with a tag this one does not know.
	row := EventRecord{
		CombatID: "c-old", Seq: 4, Type: "combat_2_0_overcharge",
		Payload: []byte(`{"type":"combat_2_0_overcharge","seq":4,"timestamp":0.6}`),
	}
	if err := repo.db.Create(&row).Error; err != nil {
		t.Fatalf("insert foreign row: %v", err)
	}

	events, err := repo.EventStream("c-old")
	if err != nil {
		t.Fatalf("load events: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("stream has %d events, want 4", len(events))
	}
	if _, ok := events[3].(*eventlog.Unknown); !ok {
		t.Fatalf("foreign row decoded to %T, want passthrough", events[3])
	}
}

func TestRawEventStreamPreservesBytes(t *testing.T) {
	repo := openTestRepository(t)
	stream := sampleStream()
	if err := repo.SaveCombat(CombatRecord{CombatID: "c-raw"}, stream); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, err := repo.RawEventStream("c-raw")
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if len(raw) != len(stream) {
		t.Fatalf("raw stream has %d rows, want %d", len(raw), len(stream))
	}
	for i, event := range stream {
		want, err := eventlog.Encode(event)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if string(raw[i]) != string(want) {
			t.Fatalf("row %d bytes differ:\n%s\n%s", i, raw[i], want)
		}
	}
}

func TestCombatMissingIDErrors(t *testing.T) {
	repo := openTestRepository(t)
	if _, err := repo.Combat("nope"); err == nil {
		t.Fatalf("missing combat loaded without error")
	}
}
