package replay

import (
	"fmt"

	"autoarena/server/logging/combatlog"
)

// Policy accumulates reconstruction mismatches and decides when a consumer
// should request a full snapshot resync instead of continuing to patch a
// diverged replica. Mismatches are weighed against stream volume so one
// tolerated skip in a long combat does not force a resync.
type Policy struct {
	totalEvents uint64
	mismatches  uint64
	pending     bool
	diffs       []combatlog.DesyncDiff
}

const mismatchThresholdPerTenThousand = 1
const diffSampleLimit = 8

func NewPolicy() *Policy {
	return &Policy{diffs: make([]combatlog.DesyncDiff, 0, diffSampleLimit)}
}

// NoteEvent records one applied event toward the mismatch ratio.
func (p *Policy) NoteEvent() {
	if p == nil {
		return
	}
	if p.totalEvents == ^uint64(0) {
		p.totalEvents = p.totalEvents / 2
		p.mismatches = p.mismatches / 2
	}
	p.totalEvents++
}

// NoteMismatches records the divergences found by one snapshot comparison.
func (p *Policy) NoteMismatches(diffs []combatlog.DesyncDiff) {
	if p == nil || len(diffs) == 0 {
		return
	}
	p.mismatches += uint64(len(diffs))
	for _, diff := range diffs {
		if len(p.diffs) >= diffSampleLimit {
			break
		}
		p.diffs = append(p.diffs, diff)
	}
	p.evaluate()
}

func (p *Policy) evaluate() {
	if p == nil || p.pending || p.mismatches == 0 {
		return
	}
	total := p.totalEvents
	if total == 0 {
		total = 1
	}
	if p.mismatches*10000 >= total*mismatchThresholdPerTenThousand {
		p.pending = true
	}
}

// Consume returns the pending resync signal, if any, and resets the counters
// so a fresh window begins after the resync.
func (p *Policy) Consume() (combatlog.DesyncSignal, bool) {
	if p == nil || !p.pending {
		return combatlog.DesyncSignal{}, false
	}
	signal := combatlog.DesyncSignal{
		Mismatches:  p.mismatches,
		TotalEvents: p.totalEvents,
	}
	p.pending = false
	p.totalEvents = 0
	p.mismatches = 0
	if len(p.diffs) > 0 {
		p.diffs = p.diffs[:0]
	}
	return signal, true
}

// Sample returns the retained divergence examples for diagnostics.
func (p *Policy) Sample() []combatlog.DesyncDiff {
	if p == nil {
		return nil
	}
	return append([]combatlog.DesyncDiff(nil), p.diffs...)
}

// Summary renders a signal for log lines.
func Summary(s combatlog.DesyncSignal) string {
	if s.Mismatches == 0 && s.TotalEvents == 0 {
		return ""
	}
	return fmt.Sprintf("mismatches=%d total_events=%d", s.Mismatches, s.TotalEvents)
}
