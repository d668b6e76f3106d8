// Command arena-server runs the combat resolution service: REST to start
// combats, WebSocket to spectate them, sqlite for history.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autoarena/server/internal/arena"
	"autoarena/server/internal/catalog"
	"autoarena/server/internal/combat"
	"autoarena/server/internal/config"
	arenanet "autoarena/server/internal/net"
	"autoarena/server/internal/store"
	"autoarena/server/logging"
	"autoarena/server/logging/sinks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	var sink logging.Sink
	if cfg.LogJSON {
		sink = sinks.NewJSONSink(os.Stdout)
	} else {
		sink = sinks.NewConsoleSink(os.Stdout)
	}
	publisher := logging.NewSinkPublisher(logging.SystemClock{}, parseSeverity(cfg.LogLevel), sink)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		log.Fatalf("load catalog: %v", err)
	}

	db, err := store.OpenAndMigrate(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	repo := store.NewRepository(db)

	manager := arena.NewManager(cat, repo, publisher, arena.Options{
		Loop: combat.LoopConfig{
			DT:            cfg.TickSeconds,
			SnapshotEvery: cfg.SnapshotEvery,
			MaxTicks:      cfg.MaxTicks,
		},
		KeyframeCapacity: cfg.KeyframeCapacity,
		KeyframeMaxAge:   cfg.KeyframeMaxAge,
	})

	server := arenanet.NewServer(manager, repo, publisher)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Handler(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("arena server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Printf("arena shutdown: %v", err)
	}
	if err := sink.Close(shutdownCtx); err != nil {
		log.Printf("close log sink: %v", err)
	}
}

func parseSeverity(level string) logging.Severity {
	switch level {
	case "debug":
		return logging.SeverityDebug
	case "warn":
		return logging.SeverityWarn
	case "error":
		return logging.SeverityError
	default:
		return logging.SeverityInfo
	}
}
