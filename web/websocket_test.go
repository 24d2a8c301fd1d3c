package web

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"matchsim-service/models"
)

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial %s failed: %v", path, err)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Bad message JSON: %v", err)
	}
	return msg
}

func TestWebSocketSnapshotThenEvents(t *testing.T) {
	s, manager := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	if _, err := manager.StartSession(50, false); err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	conn := dialWS(t, srv, "/ws/matches/50")
	defer conn.Close()

	// 连接建立后第一条消息必须是完整快照
	first := readMessage(t, conn)
	if first.Type != "snapshot" {
		t.Fatalf("Expected snapshot first, got %q", first.Type)
	}
	if first.Snapshot == nil || first.Snapshot.MatchID != 50 {
		t.Fatalf("Bad snapshot payload: %+v", first.Snapshot)
	}
	if first.Snapshot.Phase != models.PhaseFirstHalf {
		t.Errorf("Expected FIRST_HALF snapshot, got %s", first.Snapshot.Phase)
	}

	// 快照之后是增量事件
	s.hub.BroadcastEvent(50, models.MatchEvent{
		ID: 77, MatchID: 50, Minute: 9, Type: models.EventGoal, Side: models.SideHome,
	})
	msg := readMessage(t, conn)
	if msg.Type != "event" {
		t.Fatalf("Expected event message, got %q", msg.Type)
	}
	if msg.Event == nil || msg.Event.ID != 77 || msg.Event.Type != models.EventGoal {
		t.Errorf("Bad event payload: %+v", msg.Event)
	}
}

func TestWebSocketConnectionCountsAsSpectator(t *testing.T) {
	s, manager := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	sess, err := manager.StartSession(51, false)
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}

	conn := dialWS(t, srv, "/ws/matches/51")
	readMessage(t, conn) // 等注册完成（快照到达说明 join 已执行）
	if got := sess.SpectatorCount(); got != 1 {
		t.Errorf("Expected 1 spectator after connect, got %d", got)
	}

	conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && sess.SpectatorCount() != 0 {
		time.Sleep(10 * time.Millisecond)
	}
	if got := sess.SpectatorCount(); got != 0 {
		t.Errorf("Expected 0 spectators after disconnect, got %d", got)
	}
}

func TestWebSocketRoomIsolation(t *testing.T) {
	s, manager := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	manager.StartSession(60, false)
	manager.StartSession(61, false)

	conn := dialWS(t, srv, "/ws/matches/60")
	defer conn.Close()
	readMessage(t, conn)

	// 其它比赛的事件不能进入本房间
	s.hub.BroadcastEvent(61, models.MatchEvent{ID: 1, MatchID: 61, Type: models.EventGoal})
	s.hub.BroadcastEvent(60, models.MatchEvent{ID: 2, MatchID: 60, Type: models.EventCorner})

	msg := readMessage(t, conn)
	if msg.MatchID != 60 || msg.Event == nil || msg.Event.ID != 2 {
		t.Errorf("Received foreign room traffic: %+v", msg)
	}
}

func TestTrySendDropsOldestWhenQueueFull(t *testing.T) {
	c := &Client{send: make(chan []byte, 2)}

	c.trySend([]byte("a"))
	c.trySend([]byte("b"))
	c.trySend([]byte("c")) // 队列满，最旧的 a 被挤掉

	if got := string(<-c.send); got != "b" {
		t.Errorf("Expected oldest message dropped, head is %q", got)
	}
	if got := string(<-c.send); got != "c" {
		t.Errorf("Expected newest message kept, got %q", got)
	}
	select {
	case extra := <-c.send:
		t.Errorf("Unexpected extra message %q", extra)
	default:
	}
}

func TestWebSocketRejectsUnknownMatch(t *testing.T) {
	s, _ := newTestServer(t, "")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/matches/999"
	if _, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Error("Expected handshake rejection for unknown match")
	}
}
