// Package store persists finished combats and their canonical event streams.
package store

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CombatRecord is one resolved combat. The final state and outcome summary
// live here; the per-event rows reference it by CombatID.
type CombatRecord struct {
	ID        uint   `gorm:"primaryKey"`
	CombatID  string `gorm:"uniqueIndex;size:64"`
	Seed      int64
	Round     int
	Result    string `gorm:"size:16"`
	Winner    string `gorm:"size:16"`
	Ticks     uint64
	Events    uint64
	SimTime   float64
	CreatedAt time.Time
}

// EventRecord is one canonical event in wire form. Seq is unique per combat;
// the payload column holds the encoded JSON exactly as streamed, so a replay
// read back from the store verifies against the stored final state.
type EventRecord struct {
	ID       uint   `gorm:"primaryKey"`
	CombatID string `gorm:"index:idx_events_combat_seq,unique;size:64"`
	Seq      uint64 `gorm:"index:idx_events_combat_seq,unique"`
	Type     string `gorm:"size:32"`
	Payload  []byte
}

// OpenAndMigrate opens the sqlite database and keeps the schema current via
// AutoMigrate.
func OpenAndMigrate(dataSourceName string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dataSourceName), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dataSourceName, err)
	}
	if err := db.AutoMigrate(&CombatRecord{}, &EventRecord{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}
