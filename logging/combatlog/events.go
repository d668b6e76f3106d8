package combatlog

import (
	"context"

	"autoarena/server/logging"
)

const (
	// EventCombatStarted is emitted when a combat begins resolving.
	EventCombatStarted logging.EventType = "combat.started"
	// EventCombatFinished is emitted when a combat reaches a terminal outcome.
	EventCombatFinished logging.EventType = "combat.finished"
	// EventUnknownEvent is emitted when the reconstructor skips an event type
	// it does not recognize. It marks a contract defect, not a crash.
	EventUnknownEvent logging.EventType = "replay.unknown_event"
	// EventMissingField is emitted when a known event arrives without an
	// expected field and the reconstructor retains the prior value.
	EventMissingField logging.EventType = "replay.missing_field"
	// EventDesync is emitted when reconstructed state diverges from an
	// authoritative snapshot.
	EventDesync logging.EventType = "replay.desync"
)

type StartedPayload struct {
	Seed      int64 `json:"seed"`
	Round     int   `json:"round"`
	UnitCount int   `json:"unitCount"`
}

func Started(ctx context.Context, pub logging.Publisher, combatID string, payload StartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCombatStarted,
		Actor:    logging.EntityRef{ID: combatID, Kind: logging.EntityKindCombat},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		CombatID: combatID,
		Payload:  payload,
	})
}

type FinishedPayload struct {
	Result string  `json:"result"`
	Ticks  uint64  `json:"ticks"`
	Events uint64  `json:"events"`
	Time   float64 `json:"simTime"`
}

func Finished(ctx context.Context, pub logging.Publisher, combatID string, tick uint64, payload FinishedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCombatFinished,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: combatID, Kind: logging.EntityKindCombat},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		CombatID: combatID,
		Payload:  payload,
	})
}

type UnknownEventPayload struct {
	EventType string `json:"eventType"`
	Seq       uint64 `json:"seq"`
}

func UnknownEvent(ctx context.Context, pub logging.Publisher, combatID string, payload UnknownEventPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnknownEvent,
		Actor:    logging.EntityRef{ID: combatID, Kind: logging.EntityKindCombat},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryReplay,
		CombatID: combatID,
		Payload:  payload,
	})
}

type MissingFieldPayload struct {
	EventType string `json:"eventType"`
	Seq       uint64 `json:"seq"`
	Field     string `json:"field"`
	UnitID    string `json:"unitId,omitempty"`
}

func MissingField(ctx context.Context, pub logging.Publisher, combatID string, payload MissingFieldPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMissingField,
		Actor:    logging.EntityRef{ID: combatID, Kind: logging.EntityKindCombat},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryReplay,
		CombatID: combatID,
		Payload:  payload,
	})
}

type DesyncPayload struct {
	SnapshotSeq uint64        `json:"snapshotSeq"`
	Diffs       []DesyncDiff  `json:"diffs"`
	Signal      *DesyncSignal `json:"signal,omitempty"`
}

type DesyncDiff struct {
	UnitID        string  `json:"unitId"`
	Field         string  `json:"field"`
	Authoritative float64 `json:"authoritative"`
	Reconstructed float64 `json:"reconstructed"`
}

type DesyncSignal struct {
	Mismatches  uint64 `json:"mismatches"`
	TotalEvents uint64 `json:"totalEvents"`
}

func Desync(ctx context.Context, pub logging.Publisher, combatID string, tick uint64, payload DesyncPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventDesync,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: combatID, Kind: logging.EntityKindCombat},
		Severity: logging.SeverityError,
		Category: logging.CategoryReplay,
		CombatID: combatID,
		Payload:  payload,
	})
}
