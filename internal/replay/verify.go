package replay

import (
	"fmt"

	"autoarena/server/internal/eventlog"
	"autoarena/server/logging"
	"autoarena/server/logging/combatlog"
)

// VerifyStream replays an ordered event slice from scratch and diffs the
// resulting replica against the authoritative final state. An empty slice of
// diffs means a consumer of this stream ends bit-equivalent with the
// simulation.
func VerifyStream(events []eventlog.Event, authoritative eventlog.GameState, publisher logging.Publisher, combatID string) ([]combatlog.DesyncDiff, error) {
	reconstructor := NewReconstructor(publisher, combatID)
	for _, event := range events {
		if err := reconstructor.Apply(event); err != nil {
			return nil, fmt.Errorf("replay: apply seq %d: %w", event.Head().Seq, err)
		}
	}
	if pending := reconstructor.Pending(); pending > 0 {
		return nil, fmt.Errorf("replay: %d events still buffered, stream has gaps", pending)
	}
	return reconstructor.Diff(authoritative), nil
}

// VerifyEncoded decodes a raw JSON event stream and verifies it the same way.
// Unknown tags survive as passthrough events so their sequence slots are
// consumed; only malformed payloads abort.
func VerifyEncoded(raw [][]byte, authoritative eventlog.GameState, publisher logging.Publisher, combatID string) ([]combatlog.DesyncDiff, error) {
	events := make([]eventlog.Event, 0, len(raw))
	for i, line := range raw {
		event, err := eventlog.DecodeLenient(line)
		if err != nil {
			return nil, fmt.Errorf("replay: decode line %d: %w", i, err)
		}
		events = append(events, event)
	}
	return VerifyStream(events, authoritative, publisher, combatID)
}
