package store

import (
	"fmt"

	"gorm.io/gorm"

	"autoarena/server/internal/eventlog"
)

// Repository wraps the combat tables behind a small persistence API.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// SaveCombat persists the summary row and the full event stream in one
// transaction. Events are encoded to their wire form at save time so the
// stored stream is byte-equal to what spectators received.
func (r *Repository) SaveCombat(record CombatRecord, events []eventlog.Event) error {
	rows := make([]EventRecord, 0, len(events))
	for _, event := range events {
		payload, err := eventlog.Encode(event)
		if err != nil {
			return fmt.Errorf("store: encode seq %d: %w", event.Head().Seq, err)
		}
		rows = append(rows, EventRecord{
			CombatID: record.CombatID,
			Seq:      event.Head().Seq,
			Type:     string(event.EventType()),
			Payload:  payload,
		})
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("store: save combat %s: %w", record.CombatID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, 200).Error; err != nil {
			return fmt.Errorf("store: save events for %s: %w", record.CombatID, err)
		}
		return nil
	})
}

// Combat fetches one summary row by combat id.
func (r *Repository) Combat(combatID string) (CombatRecord, error) {
	var record CombatRecord
	err := r.db.Where("combat_id = ?", combatID).First(&record).Error
	if err != nil {
		return CombatRecord{}, fmt.Errorf("store: load combat %s: %w", combatID, err)
	}
	return record, nil
}

// RecentCombats lists the newest summaries, capped at limit.
func (r *Repository) RecentCombats(limit int) ([]CombatRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []CombatRecord
	err := r.db.Order("id DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("store: list combats: %w", err)
	}
	return records, nil
}

// EventStream loads a combat's events in sequence order and decodes them.
// Unknown stored types survive as passthrough events.
func (r *Repository) EventStream(combatID string) ([]eventlog.Event, error) {
	var rows []EventRecord
	err := r.db.Where("combat_id = ?", combatID).Order("seq ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: load events for %s: %w", combatID, err)
	}
	events := make([]eventlog.Event, 0, len(rows))
	for _, row := range rows {
		event, err := eventlog.DecodeLenient(row.Payload)
		if err != nil {
			return nil, fmt.Errorf("store: decode %s seq %d: %w", combatID, row.Seq, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// RawEventStream loads the encoded payloads without decoding.
func (r *Repository) RawEventStream(combatID string) ([][]byte, error) {
	var rows []EventRecord
	err := r.db.Where("combat_id = ?", combatID).Order("seq ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: load events for %s: %w", combatID, err)
	}
	raw := make([][]byte, 0, len(rows))
	for _, row := range rows {
		raw = append(raw, row.Payload)
	}
	return raw, nil
}
