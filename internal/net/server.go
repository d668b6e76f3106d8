// Package net exposes the arena over HTTP and WebSocket. REST starts and
// inspects combats; spectators follow the canonical event stream over a
// socket.
package net

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autoarena/server/internal/arena"
	"autoarena/server/internal/catalog"
	"autoarena/server/internal/combat"
	"autoarena/server/internal/eventlog"
	"autoarena/server/internal/store"
	"autoarena/server/logging"
)

// Server binds the REST and WebSocket handlers to an arena manager.
type Server struct {
	manager   *arena.Manager
	repo      *store.Repository
	publisher logging.Publisher
	engine    *gin.Engine
}

// NewServer builds the router. repo may be nil; history endpoints then
// return 404 for anything not in memory.
func NewServer(manager *arena.Manager, repo *store.Repository, publisher logging.Publisher) *Server {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		manager:   manager,
		repo:      repo,
		publisher: publisher,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api")
	api.POST("/combats", s.startCombat)
	api.GET("/combats", s.listCombats)
	api.GET("/combats/:id", s.getCombat)
	api.DELETE("/combats/:id", s.cancelCombat)
	api.GET("/combats/:id/events", s.getEvents)
	api.GET("/combats/:id/keyframes", s.getKeyframe)

	s.engine.GET("/ws/combats/:id", s.spectate)
	return s
}

// Handler returns the http handler for serving or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

type startCombatRequest struct {
	CombatID     string                `json:"combat_id"`
	Seed         int64                 `json:"seed"`
	Round        int                   `json:"round"`
	Wins         int                   `json:"wins"`
	Losses       int                   `json:"losses"`
	Player       []catalog.RosterEntry `json:"player"`
	Opponent     []catalog.RosterEntry `json:"opponent"`
	OpponentName string                `json:"opponent_name"`
}

func (s *Server) startCombat(c *gin.Context) {
	var req startCombatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CombatID == "" {
		req.CombatID = fmt.Sprintf("c-%d", time.Now().UnixNano())
	}
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	instance, err := s.manager.Start(arena.Request{
		CombatID:      req.CombatID,
		Seed:          req.Seed,
		Round:         combat.RoundContext{Round: req.Round, Wins: req.Wins, Losses: req.Losses},
		PlayerPicks:   req.Player,
		OpponentPicks: req.Opponent,
		Opponent: eventlog.OpponentInfo{
			Name:   req.OpponentName,
			Wins:   req.Wins,
			Losses: req.Losses,
		},
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"combat_id": instance.ID(), "seed": req.Seed})
}

func (s *Server) listCombats(c *gin.Context) {
	response := gin.H{"running": s.manager.IDs()}
	if s.repo != nil {
		records, err := s.repo.RecentCombats(20)
		if err == nil {
			response["recent"] = records
		}
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) getCombat(c *gin.Context) {
	id := c.Param("id")
	if instance, ok := s.manager.Combat(id); ok {
		status := gin.H{"combat_id": id, "finished": instance.Finished()}
		if instance.Finished() {
			outcome := instance.Outcome()
			status["result"] = string(outcome.Result)
			status["ticks"] = outcome.Ticks
			status["events"] = outcome.Events
			status["adjudicated"] = outcome.Adjudicated
		}
		c.JSON(http.StatusOK, status)
		return
	}
	if s.repo != nil {
		record, err := s.repo.Combat(id)
		if err == nil {
			c.JSON(http.StatusOK, record)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "combat not found"})
}

func (s *Server) cancelCombat(c *gin.Context) {
	if !s.manager.Cancel(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "combat not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// getEvents returns the full canonical stream, live backlog first, falling
// back to the store for finished combats that were already evicted.
func (s *Server) getEvents(c *gin.Context) {
	id := c.Param("id")
	if instance, ok := s.manager.Combat(id); ok {
		c.JSON(http.StatusOK, instance.Events())
		return
	}
	if s.repo != nil {
		events, err := s.repo.EventStream(id)
		if err == nil && len(events) > 0 {
			c.JSON(http.StatusOK, events)
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "combat not found"})
}

// getKeyframe serves resync checkpoints from the journal's keyframe window.
func (s *Server) getKeyframe(c *gin.Context) {
	id := c.Param("id")
	instance, ok := s.manager.Combat(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "combat not found"})
		return
	}
	journal := instance.Journal()
	var seq uint64
	if _, err := fmt.Sscanf(c.Query("seq"), "%d", &seq); err != nil || seq == 0 {
		size, oldest, newest := journal.KeyframeWindow()
		c.JSON(http.StatusOK, gin.H{"size": size, "oldest": oldest, "newest": newest})
		return
	}
	frame, ok := journal.KeyframeBySequence(seq)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "keyframe outside retention window"})
		return
	}
	c.JSON(http.StatusOK, frame)
}
