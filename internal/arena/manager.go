// Package arena hosts concurrent combat resolutions. Each combat runs on its
// own goroutine with fully isolated state; the manager only brokers lookup,
// cancellation, and persistence.
package arena

import (
	"context"
	"fmt"
	"sync"
	"time"

	"autoarena/server/internal/catalog"
	"autoarena/server/internal/combat"
	"autoarena/server/internal/eventlog"
	"autoarena/server/internal/replay"
	"autoarena/server/internal/store"
	"autoarena/server/logging"
	"autoarena/server/logging/combatlog"
)

// Request describes one combat to resolve.
type Request struct {
	CombatID      string
	Seed          int64
	Round         combat.RoundContext
	PlayerPicks   []catalog.RosterEntry
	OpponentPicks []catalog.RosterEntry
	Opponent      eventlog.OpponentInfo
}

// Options tunes the loops the manager starts.
type Options struct {
	Loop             combat.LoopConfig
	KeyframeCapacity int
	KeyframeMaxAge   time.Duration
}

// Manager starts, tracks, and finalizes combats.
type Manager struct {
	catalog   *catalog.Catalog
	repo      *store.Repository
	publisher logging.Publisher
	opts      Options

	mu      sync.Mutex
	combats map[string]*Combat
	wg      sync.WaitGroup
}

// NewManager wires the manager. repo may be nil; combats then resolve
// without persistence.
func NewManager(cat *catalog.Catalog, repo *store.Repository, publisher logging.Publisher, opts Options) *Manager {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if opts.KeyframeCapacity <= 0 {
		opts.KeyframeCapacity = 32
	}
	return &Manager{
		catalog:   cat,
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		combats:   make(map[string]*Combat),
	}
}

// Start validates the request, assembles both rosters, and launches the
// combat goroutine. It returns immediately; subscribe to follow the stream.
func (m *Manager) Start(req Request) (*Combat, error) {
	if req.CombatID == "" {
		return nil, fmt.Errorf("arena: combat id required")
	}
	if len(req.PlayerPicks) == 0 || len(req.OpponentPicks) == 0 {
		return nil, fmt.Errorf("arena: both sides need at least one unit")
	}

	playerUnits, playerSyn, err := m.catalog.BuildRoster(combat.SideA, req.PlayerPicks)
	if err != nil {
		return nil, err
	}
	opponentUnits, opponentSyn, err := m.catalog.BuildRoster(combat.SideB, req.OpponentPicks)
	if err != nil {
		return nil, err
	}

	state := combat.NewCombatState(req.Seed, playerUnits, opponentUnits, req.Round)
	journal := eventlog.NewJournal(m.opts.KeyframeCapacity, m.opts.KeyframeMaxAge)

	instance := &Combat{
		id:      req.CombatID,
		journal: journal,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		subs:    make(map[*Subscriber]struct{}),
	}

	sink := eventlog.FanoutSink{journal, eventlog.SinkFunc(instance.record)}
	hooks := combat.LoopHooks{
		OnSnapshot: func(snapshot *eventlog.StateSnapshot) {
			journal.RecordKeyframe(eventlog.Keyframe{
				Tick:     state.Tick,
				Sequence: snapshot.Seq,
				State:    snapshot.GameState,
			})
		},
	}
	synergies := map[combat.Side][]combat.Synergy{
		combat.SideA: playerSyn,
		combat.SideB: opponentSyn,
	}
	loop := combat.NewLoop(state, sink, synergies, m.opts.Loop, hooks).
		WithLogging(m.publisher, req.CombatID).
		WithOpponent(req.Opponent)
	instance.loop = loop

	m.mu.Lock()
	if _, exists := m.combats[req.CombatID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("arena: combat %q already running", req.CombatID)
	}
	m.combats[req.CombatID] = instance
	m.mu.Unlock()

	m.wg.Add(1)
	go m.run(instance, req)
	return instance, nil
}

func (m *Manager) run(instance *Combat, req Request) {
	defer m.wg.Done()
	outcome := instance.loop.Run(instance.stop)
	m.finalize(instance, req, outcome)
	instance.finish(outcome)
}

// finalize verifies the stream reconstructs the final state bit-equal, then
// persists the combat. Verification failures are logged, never fatal: the
// authoritative result stands regardless.
func (m *Manager) finalize(instance *Combat, req Request, outcome combat.Outcome) {
	if outcome.Cancelled {
		return
	}
	state := instance.loop.State()
	diffs, err := replay.VerifyStream(instance.Events(), state.GameState(), m.publisher, instance.id)
	if err != nil || len(diffs) > 0 {
		combatlog.Desync(context.Background(), m.publisher, instance.id, state.Tick, combatlog.DesyncPayload{
			SnapshotSeq: state.LastSeq(),
			Diffs:       diffs,
		})
	}

	if m.repo == nil {
		return
	}
	record := store.CombatRecord{
		CombatID: instance.id,
		Seed:     req.Seed,
		Round:    req.Round.Round,
		Result:   string(outcome.Result),
		Ticks:    outcome.Ticks,
		Events:   outcome.Events,
		SimTime:  state.Time,
	}
	if outcome.HasWinner {
		record.Winner = outcome.Winner.String()
	}
	if err := m.repo.SaveCombat(record, instance.Events()); err != nil {
		m.publisher.Publish(context.Background(), logging.Event{
			Type:     "arena.persist_failed",
			Severity: logging.SeverityError,
			Category: logging.CategorySystem,
			CombatID: instance.id,
			Extra:    map[string]any{"error": err.Error()},
		})
	}
}

// Combat looks up a running or finished combat by id.
func (m *Manager) Combat(id string) (*Combat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	instance, ok := m.combats[id]
	return instance, ok
}

// IDs lists the tracked combats.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.combats))
	for id := range m.combats {
		ids = append(ids, id)
	}
	return ids
}

// Cancel requests a tick-boundary stop for one combat.
func (m *Manager) Cancel(id string) bool {
	instance, ok := m.Combat(id)
	if !ok {
		return false
	}
	instance.Cancel()
	return true
}

// Remove forgets a finished combat. Running combats are left alone.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	instance, ok := m.combats[id]
	if !ok || !instance.Finished() {
		return false
	}
	delete(m.combats, id)
	return true
}

// Shutdown cancels every combat and waits for their goroutines, bounded by
// the context.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	for _, instance := range m.combats {
		instance.Cancel()
	}
	m.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("arena: shutdown: %w", ctx.Err())
	}
}
