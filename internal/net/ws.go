package net

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"autoarena/server/internal/eventlog"
	"autoarena/server/logging"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// spectate streams a combat's canonical events over one socket: the full
// backlog first, then live events as they commit. A write failure or a
// consumer that cannot keep up ends the session; the client reconnects and
// replays from the backlog or a keyframe.
func (s *Server) spectate(c *gin.Context) {
	id := c.Param("id")
	instance, ok := s.manager.Combat(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "combat not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	backlog, sub := instance.Subscribe()
	defer instance.Unsubscribe(sub)

	for _, event := range backlog {
		if !s.writeEvent(conn, id, event) {
			return
		}
	}
	for event := range sub.C() {
		if !s.writeEvent(conn, id, event) {
			return
		}
	}
	if sub.Dropped() {
		s.publisher.Publish(context.Background(), logging.Event{
			Type:     "net.spectator_lagged",
			Severity: logging.SeverityWarn,
			Category: logging.CategorySystem,
			CombatID: id,
		})
	}
}

func (s *Server) writeEvent(conn *websocket.Conn, combatID string, event eventlog.Event) bool {
	data, err := eventlog.Encode(event)
	if err != nil {
		s.publisher.Publish(context.Background(), logging.Event{
			Type:     "net.encode_failed",
			Severity: logging.SeverityError,
			Category: logging.CategorySystem,
			CombatID: combatID,
			Extra:    map[string]any{"error": err.Error()},
		})
		return true
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}
