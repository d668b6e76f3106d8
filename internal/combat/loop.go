package combat

import (
	"context"

	"autoarena/server/internal/eventlog"
	"autoarena/server/logging"
	"autoarena/server/logging/combatlog"
)

// LoopConfig tunes the fixed-timestep orchestration.
type LoopConfig struct {
	// DT is the simulation timestep in seconds.
	DT float64
	// SnapshotEvery is the tick cadence of state_snapshot checkpoints.
	SnapshotEvery int
	// MaxTicks is the safety cap; hitting it adjudicates by remaining hp.
	MaxTicks int
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{DT: 0.1, SnapshotEvery: 50, MaxTicks: 1200}
}

// Result is the terminal outcome from side A's point of view.
type Result string

const (
	ResultVictory Result = "victory"
	ResultDefeat  Result = "defeat"
	ResultDraw    Result = "draw"
)

// Outcome summarizes a finished (or cancelled) combat.
type Outcome struct {
	Result      Result
	Winner      Side
	HasWinner   bool
	Adjudicated bool
	Cancelled   bool
	Ticks       uint64
	Events      uint64
}

// LoopHooks lets the host observe tick completion and snapshot checkpoints
// without reaching into the loop's state.
type LoopHooks struct {
	AfterTick  func(tick uint64)
	OnSnapshot func(snapshot *eventlog.StateSnapshot)
}

// Loop drives a single combat: single-threaded, fixed timestep, cooperative.
// Nothing suspends inside a tick; cancellation is observed only between
// ticks, so a consumer never sees a partial tick.
type Loop struct {
	state      *CombatState
	cfg        LoopConfig
	hooks      LoopHooks
	dispatcher *Dispatcher
	effects    *EffectProcessor
	attacks    *AttackProcessor
	skills     *SkillExecutor
	traits     *TraitTriggerEngine

	combatID  string
	publisher logging.Publisher
	opponent  eventlog.OpponentInfo

	started  bool
	finished bool
	outcome  Outcome
}

// NewLoop wires the processors around one combat state. The sink receives
// every canonical event in commit order.
func NewLoop(state *CombatState, sink eventlog.Sink, synergies map[Side][]Synergy, cfg LoopConfig, hooks LoopHooks) *Loop {
	if cfg.DT <= 0 {
		cfg.DT = DefaultLoopConfig().DT
	}
	if cfg.MaxTicks <= 0 {
		cfg.MaxTicks = DefaultLoopConfig().MaxTicks
	}
	dispatcher := NewDispatcher(state, sink)
	effects := NewEffectProcessor(state, dispatcher)
	attacks := NewAttackProcessor(state, dispatcher)
	return &Loop{
		state:      state,
		cfg:        cfg,
		hooks:      hooks,
		dispatcher: dispatcher,
		effects:    effects,
		attacks:    attacks,
		skills:     NewSkillExecutor(state, dispatcher, effects, attacks),
		traits:     NewTraitTriggerEngine(state, dispatcher, effects, synergies),
		publisher:  logging.NopPublisher(),
	}
}

// WithLogging attaches the structured publisher and combat id used for
// lifecycle logs.
func (l *Loop) WithLogging(publisher logging.Publisher, combatID string) *Loop {
	if publisher != nil {
		l.publisher = publisher
	}
	l.combatID = combatID
	return l
}

// WithOpponent sets the display metadata included in units_init.
func (l *Loop) WithOpponent(info eventlog.OpponentInfo) *Loop {
	l.opponent = info
	return l
}

// State exposes the authoritative combat state. Callers must treat it as
// read-only; mutation belongs to the dispatcher.
func (l *Loop) State() *CombatState {
	return l.state
}

// Outcome reports the terminal summary once the loop finished.
func (l *Loop) Outcome() Outcome {
	return l.outcome
}

// Finished reports whether the combat reached a terminal state.
func (l *Loop) Finished() bool {
	return l.finished
}

// Begin emits the stream preamble and applies pre-combat trait bonuses.
// Step and Run call it implicitly.
func (l *Loop) Begin() {
	if l.started {
		return
	}
	l.started = true
	l.dispatcher.EmitStart()
	l.dispatcher.EmitUnitsInit(
		synergyInfo(l.traits.Synergies(SideA)),
		synergyInfo(l.traits.Synergies(SideB)),
		l.opponent,
	)
	l.traits.ApplyPreCombat()
	combatlog.Started(context.Background(), l.publisher, l.combatID, combatlog.StartedPayload{
		Seed:      l.state.Seed(),
		Round:     l.state.Round.Round,
		UnitCount: len(l.state.Units),
	})
}

// Step advances exactly one tick. Phase order is fixed: effects, attacks,
// skills, deaths, snapshot.
func (l *Loop) Step() {
	if l.finished {
		return
	}
	l.Begin()

	l.state.Tick++
	l.state.Time = float64(l.state.Tick) * l.cfg.DT

	l.effects.Tick()
	l.traits.Tick()
	l.attacks.Advance(l.cfg.DT)
	l.skills.Tick()

	// Deaths resolve in one place after every damage source has run, so a
	// tick's unit_died events and trait death cascades always follow its
	// attack and skill events. Units dropped to zero earlier in the tick sit
	// out the remaining phases via the liveness checks.
	l.resolveDeaths()

	if l.checkTermination() {
		return
	}

	if l.cfg.SnapshotEvery > 0 && l.state.Tick%uint64(l.cfg.SnapshotEvery) == 0 {
		snapshot := l.dispatcher.EmitSnapshot()
		if l.hooks.OnSnapshot != nil {
			l.hooks.OnSnapshot(snapshot)
		}
	}
	if l.hooks.AfterTick != nil {
		l.hooks.AfterTick(l.state.Tick)
	}
}

// Run executes ticks until termination or until the stop channel closes.
// Stop is honored only at tick boundaries.
func (l *Loop) Run(stop <-chan struct{}) Outcome {
	l.Begin()
	for !l.finished {
		if stop != nil {
			select {
			case <-stop:
				l.outcome = Outcome{Result: ResultDraw, Cancelled: true, Ticks: l.state.Tick, Events: l.state.LastSeq()}
				l.finished = true
				return l.outcome
			default:
			}
		}
		l.Step()
	}
	return l.outcome
}

// RunToCompletion resolves the combat without external cancellation.
func (l *Loop) RunToCompletion() Outcome {
	return l.Run(nil)
}

// resolveDeaths emits terminal unit events and cascades trait death hooks
// until no unresolved death remains. Rewards granted by a hook cannot kill,
// so the cascade always terminates.
func (l *Loop) resolveDeaths() {
	for {
		progressed := false
		for _, unit := range l.state.Units {
			if unit.HP <= 0 && !unit.deathResolved {
				l.dispatcher.CommitUnitDeath(unit)
				l.traits.OnDeath(unit)
				progressed = true
			}
		}
		if !progressed {
			return
		}
	}
}

func (l *Loop) checkTermination() bool {
	livingA := len(l.state.Living(SideA))
	livingB := len(l.state.Living(SideB))

	switch {
	case livingA == 0 && livingB == 0:
		l.finish(Outcome{Result: ResultDraw})
		return true
	case livingB == 0:
		l.finish(Outcome{Result: ResultVictory, Winner: SideA, HasWinner: true})
		return true
	case livingA == 0:
		l.finish(Outcome{Result: ResultDefeat, Winner: SideB, HasWinner: true})
		return true
	}

	if int(l.state.Tick) >= l.cfg.MaxTicks {
		hpA := l.state.TotalHP(SideA)
		hpB := l.state.TotalHP(SideB)
		switch {
		case hpA > hpB:
			l.finish(Outcome{Result: ResultVictory, Winner: SideA, HasWinner: true, Adjudicated: true})
		case hpB > hpA:
			l.finish(Outcome{Result: ResultDefeat, Winner: SideB, HasWinner: true, Adjudicated: true})
		default:
			l.finish(Outcome{Result: ResultDraw, Adjudicated: true})
		}
		return true
	}
	return false
}

func (l *Loop) finish(outcome Outcome) {
	l.dispatcher.EmitOutcome(outcome.Winner, outcome.HasWinner)
	outcome.Ticks = l.state.Tick
	outcome.Events = l.state.LastSeq()
	l.outcome = outcome
	l.finished = true
	combatlog.Finished(context.Background(), l.publisher, l.combatID, l.state.Tick, combatlog.FinishedPayload{
		Result: string(outcome.Result),
		Ticks:  outcome.Ticks,
		Events: outcome.Events,
		Time:   l.state.Time,
	})
}

func synergyInfo(synergies []Synergy) []eventlog.SynergyInfo {
	if len(synergies) == 0 {
		return nil
	}
	out := make([]eventlog.SynergyInfo, 0, len(synergies))
	for _, synergy := range synergies {
		out = append(out, eventlog.SynergyInfo{
			Trait:  synergy.Name,
			Count:  synergy.Count,
			Active: synergy.Active,
		})
	}
	return out
}
