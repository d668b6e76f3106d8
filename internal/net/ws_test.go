package net

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"autoarena/server/internal/eventlog"
)

func TestSpectatorReceivesFullStream(t *testing.T) {
	server, manager := testServer(t)
	httpServer := httptest.NewServer(server.Handler())
	defer httpServer.Close()

	startTestCombat(t, server, manager, "c-ws")

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws/combats/c-ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	instance, _ := manager.Combat("c-ws")
	want := instance.Outcome().Events

	var seq uint64
	for seq < want {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read after seq %d: %v", seq, err)
		}
		header, err := eventlog.Peek(data)
		if err != nil {
			t.Fatalf("peek: %v", err)
		}
		if header.Seq != seq+1 {
			t.Fatalf("received seq %d, want %d", header.Seq, seq+1)
		}
		seq = header.Seq
		if seq == 1 && header.Type != eventlog.TypeStart {
			t.Fatalf("first message is %s", header.Type)
		}
		if seq == want && header.Type != eventlog.TypeEnd {
			t.Fatalf("last message is %s", header.Type)
		}
	}
}

func TestSpectateUnknownCombatReturns404(t *testing.T) {
	server, _ := testServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws/combats/missing", nil)
	server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("spectate returned %d", rec.Code)
	}
}
