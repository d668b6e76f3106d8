// Command simulate resolves one combat headless: it loads a catalog and a
// roster fixture, runs the simulation, verifies the event stream rebuilds
// the final state, and optionally writes the stream as JSON lines.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"autoarena/server/internal/catalog"
	"autoarena/server/internal/combat"
	"autoarena/server/internal/eventlog"
	"autoarena/server/internal/replay"
	"autoarena/server/logging"
	"autoarena/server/logging/sinks"
)

type fixture struct {
	Seed         int64                 `yaml:"seed"`
	Round        int                   `yaml:"round"`
	Wins         int                   `yaml:"wins"`
	Losses       int                   `yaml:"losses"`
	OpponentName string                `yaml:"opponent_name"`
	Player       []catalog.RosterEntry `yaml:"player"`
	Opponent     []catalog.RosterEntry `yaml:"opponent"`
}

func main() {
	catalogPath := flag.String("catalog", "catalog.yaml", "catalog file")
	fixturePath := flag.String("fixture", "", "roster fixture (yaml)")
	outPath := flag.String("out", "", "write the event stream as JSON lines")
	verbose := flag.Bool("v", false, "log combat lifecycle to stderr")
	flag.Parse()

	if *fixturePath == "" {
		log.Fatal("simulate: -fixture is required")
	}

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}
	data, err := os.ReadFile(*fixturePath)
	if err != nil {
		log.Fatalf("simulate: read fixture: %v", err)
	}
	var fix fixture
	if err := yaml.Unmarshal(data, &fix); err != nil {
		log.Fatalf("simulate: parse fixture: %v", err)
	}

	playerUnits, playerSyn, err := cat.BuildRoster(combat.SideA, fix.Player)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}
	opponentUnits, opponentSyn, err := cat.BuildRoster(combat.SideB, fix.Opponent)
	if err != nil {
		log.Fatalf("simulate: %v", err)
	}

	publisher := logging.NopPublisher()
	if *verbose {
		publisher = logging.NewSinkPublisher(logging.SystemClock{}, logging.SeverityDebug, sinks.NewConsoleSink(os.Stderr))
	}

	state := combat.NewCombatState(fix.Seed, playerUnits, opponentUnits, combat.RoundContext{
		Round:  fix.Round,
		Wins:   fix.Wins,
		Losses: fix.Losses,
	})
	var events []eventlog.Event
	sink := eventlog.SinkFunc(func(event eventlog.Event) {
		events = append(events, eventlog.CloneEvent(event))
	})
	synergies := map[combat.Side][]combat.Synergy{
		combat.SideA: playerSyn,
		combat.SideB: opponentSyn,
	}
	loop := combat.NewLoop(state, sink, synergies, combat.DefaultLoopConfig(), combat.LoopHooks{}).
		WithLogging(publisher, "simulate").
		WithOpponent(eventlog.OpponentInfo{Name: fix.OpponentName, Wins: fix.Wins, Losses: fix.Losses})

	outcome := loop.RunToCompletion()

	diffs, err := replay.VerifyStream(events, state.GameState(), publisher, "simulate")
	if err != nil {
		log.Fatalf("simulate: verify: %v", err)
	}
	if len(diffs) > 0 {
		for _, diff := range diffs {
			fmt.Fprintf(os.Stderr, "desync %s.%s: authoritative=%v reconstructed=%v\n",
				diff.UnitID, diff.Field, diff.Authoritative, diff.Reconstructed)
		}
		log.Fatalf("simulate: reconstruction diverged in %d fields", len(diffs))
	}

	if *outPath != "" {
		if err := writeStream(*outPath, events); err != nil {
			log.Fatalf("simulate: %v", err)
		}
	}

	fmt.Printf("result=%s ticks=%d events=%d sim_time=%.1fs adjudicated=%v reconstruction=ok\n",
		outcome.Result, outcome.Ticks, outcome.Events, state.Time, outcome.Adjudicated)
}

func writeStream(path string, events []eventlog.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, event := range events {
		line, err := eventlog.Encode(event)
		if err != nil {
			return fmt.Errorf("encode seq %d: %w", event.Head().Seq, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return w.Flush()
}
