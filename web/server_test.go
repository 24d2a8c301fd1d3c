package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"matchsim-service/config"
	"matchsim-service/models"
	"matchsim-service/services"
)

// noopStore 测试用持久化桩
type noopStore struct{}

func (noopStore) Save(models.SessionSnapshot) error { return nil }
func (noopStore) FindByMatchID(int64) (*models.SessionSnapshot, error) {
	return nil, models.ErrSessionNotFound
}
func (noopStore) FindUnfinished() ([]models.SessionSnapshot, error) { return nil, nil }
func (noopStore) DeleteByMatchID(int64) error                       { return nil }
func (noopStore) SaveNotification(string, int64, []byte) error      { return nil }

// noopBroadcaster 测试用广播桩
type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastEvent(int64, models.MatchEvent)         {}
func (noopBroadcaster) BroadcastSnapshot(int64, models.SessionSnapshot) {}

// staticAttrs 固定能力快照
type staticAttrs struct{}

func (staticAttrs) TeamAttributes(matchID int64) (models.TeamAttributes, models.TeamAttributes, error) {
	build := func(id int64, name string) models.TeamAttributes {
		team := models.TeamAttributes{TeamID: id, Name: name, Attack: 70, Defense: 65, Discipline: 60}
		positions := []string{"GK", "DF", "DF", "DF", "DF", "MF", "MF", "MF", "MF", "FW", "FW"}
		for i, pos := range positions {
			team.Players = append(team.Players, models.PlayerAttributes{
				ID: id*100 + int64(i), Name: fmt.Sprintf("%s %d", name, i), Position: pos,
				Attack: 70, Defense: 65, Discipline: 60,
			})
		}
		return team
	}
	return build(1, "Home"), build(2, "Away"), nil
}

// newTestServer 组装 REST 测试环境，时钟驱动间隔拉长到不会触发
func newTestServer(t *testing.T, adminToken string) (*Server, *services.SessionManager) {
	t.Helper()
	cfg := &config.Config{Port: "0", AdminToken: adminToken, MinuteDuration: time.Hour}

	clock := services.NewMatchClock(0, 1, 5)
	gen := services.NewEventGenerator(0.2)
	manager := services.NewSessionManager(clock, gen, staticAttrs{}, noopStore{}, noopBroadcaster{}, services.NewInMemoryBroker(), time.Hour)
	manager.SetSeedFn(func(matchID int64) int64 { return matchID })
	t.Cleanup(manager.Stop)

	hub := NewHub(
		func(matchID int64) (models.SessionSnapshot, error) {
			s, err := manager.GetSession(matchID)
			if err != nil {
				return models.SessionSnapshot{}, err
			}
			return s.Snapshot(), nil
		},
		manager.JoinSpectator,
		manager.LeaveSpectator,
	)
	go hub.Run()

	return NewServer(cfg, manager, hub), manager
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestStartAndGetSession(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()

	rr := doJSON(t, h, "POST", "/api/matches/10/session/start", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Start: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var snap models.SessionSnapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("Bad snapshot JSON: %v", err)
	}
	if snap.MatchID != 10 || snap.Phase != models.PhaseFirstHalf {
		t.Errorf("Unexpected snapshot: match=%d phase=%s", snap.MatchID, snap.Phase)
	}

	// 重复 start 幂等
	rr = doJSON(t, h, "POST", "/api/matches/10/session/start", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Repeated start: expected 200, got %d", rr.Code)
	}
	var snap2 models.SessionSnapshot
	json.Unmarshal(rr.Body.Bytes(), &snap2)
	if snap2.SessionID != snap.SessionID {
		t.Errorf("Repeated start created a new session: %d vs %d", snap2.SessionID, snap.SessionID)
	}

	rr = doJSON(t, h, "GET", "/api/matches/10/session", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Get: expected 200, got %d", rr.Code)
	}
}

func TestGetUnknownSessionReturns404(t *testing.T) {
	s, _ := newTestServer(t, "")
	rr := doJSON(t, s.Handler(), "GET", "/api/matches/999/session", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}

func TestInvalidMatchIDReturns400(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()
	for _, path := range []string{
		"/api/matches/abc/session",
		"/api/matches/0/session",
		"/api/matches/-3/session",
	} {
		rr := doJSON(t, h, "GET", path, nil, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rr.Code)
		}
	}
}

func TestAdminTokenBoundary(t *testing.T) {
	s, _ := newTestServer(t, "sekrit")
	h := s.Handler()

	doJSON(t, h, "POST", "/api/matches/4/session/start", nil, nil)

	rr := doJSON(t, h, "POST", "/api/admin/matches/4/session/pause", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", rr.Code)
	}

	rr = doJSON(t, h, "POST", "/api/admin/matches/4/session/pause", nil,
		map[string]string{"X-Admin-Token": "wrong"})
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", rr.Code)
	}

	auth := map[string]string{"X-Admin-Token": "sekrit"}
	rr = doJSON(t, h, "POST", "/api/admin/matches/4/session/pause",
		[]byte(`{"reason":"TECHNICAL"}`), auth)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 with valid token, got %d: %s", rr.Code, rr.Body.String())
	}

	// 重复暂停是非法迁移
	rr = doJSON(t, h, "POST", "/api/admin/matches/4/session/pause", nil, auth)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 on double pause, got %d", rr.Code)
	}

	rr = doJSON(t, h, "POST", "/api/admin/matches/4/session/resume", nil, auth)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 on resume, got %d", rr.Code)
	}
	rr = doJSON(t, h, "POST", "/api/admin/matches/4/session/resume", nil, auth)
	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 resuming unpaused session, got %d", rr.Code)
	}
}

func TestForceFinishReturnsFinalSnapshot(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()

	doJSON(t, h, "POST", "/api/matches/6/session/start", nil, nil)

	rr := doJSON(t, h, "POST", "/api/admin/matches/6/session/finish", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var snap models.SessionSnapshot
	json.Unmarshal(rr.Body.Bytes(), &snap)
	if snap.Phase != models.PhaseFinished {
		t.Errorf("Expected FINISHED snapshot, got %s", snap.Phase)
	}

	// 幂等
	rr = doJSON(t, h, "POST", "/api/admin/matches/6/session/finish", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Expected 200 on repeated finish, got %d", rr.Code)
	}
}

func TestResetRemovesSession(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()

	doJSON(t, h, "POST", "/api/matches/8/session/start", nil, nil)
	rr := doJSON(t, h, "POST", "/api/admin/matches/8/session/reset", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200 on reset, got %d", rr.Code)
	}
	rr = doJSON(t, h, "GET", "/api/matches/8/session", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after reset, got %d", rr.Code)
	}
}

func TestEventsEndpointValidation(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()

	doJSON(t, h, "POST", "/api/matches/12/session/start", nil, nil)

	for _, q := range []string{"?min_minute=abc", "?min_minute=-1"} {
		rr := doJSON(t, h, "GET", "/api/matches/12/session/events"+q, nil, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rr.Code)
		}
	}

	rr := doJSON(t, h, "GET", "/api/matches/12/session/events?min_minute=0", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var body struct {
		MatchID int64               `json:"match_id"`
		Events  []models.MatchEvent `json:"events"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Bad events JSON: %v", err)
	}
	if body.MatchID != 12 {
		t.Errorf("Expected match_id 12, got %d", body.MatchID)
	}
	// 开球标记一定在日志里
	if len(body.Events) == 0 || body.Events[0].Type != models.EventKickOff {
		t.Errorf("Expected kick-off marker first, got %+v", body.Events)
	}
}

func TestJoinLeaveCounts(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()

	doJSON(t, h, "POST", "/api/matches/15/session/start", nil, nil)

	var resp struct {
		SpectatorCount int64 `json:"spectator_count"`
	}
	for want := int64(1); want <= 3; want++ {
		rr := doJSON(t, h, "POST", "/api/matches/15/session/join", nil, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("Join: expected 200, got %d", rr.Code)
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.SpectatorCount != want {
			t.Errorf("Expected count %d, got %d", want, resp.SpectatorCount)
		}
	}

	rr := doJSON(t, h, "POST", "/api/matches/15/session/leave", nil, nil)
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.SpectatorCount != 2 {
		t.Errorf("Expected count 2 after leave, got %d", resp.SpectatorCount)
	}

	rr = doJSON(t, h, "POST", "/api/matches/404/session/join", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Join unknown match: expected 404, got %d", rr.Code)
	}
}

func TestHealthStatsAndActiveList(t *testing.T) {
	s, _ := newTestServer(t, "")
	h := s.Handler()

	rr := doJSON(t, h, "GET", "/api/health", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Health: expected 200, got %d", rr.Code)
	}

	doJSON(t, h, "POST", "/api/matches/30/session/start", nil, nil)
	doJSON(t, h, "POST", "/api/matches/31/session/start", nil, nil)

	rr = doJSON(t, h, "GET", "/api/sessions/active", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("Active: expected 200, got %d", rr.Code)
	}
	var list struct {
		Sessions []models.SessionSummary `json:"sessions"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("Bad sessions JSON: %v", err)
	}
	if len(list.Sessions) != 2 {
		t.Errorf("Expected 2 active sessions, got %d", len(list.Sessions))
	}

	rr = doJSON(t, h, "GET", "/api/stats", nil, nil)
	if rr.Code != http.StatusOK {
		t.Errorf("Stats: expected 200, got %d", rr.Code)
	}
	var stats struct {
		ActiveSessions int `json:"active_sessions"`
	}
	json.Unmarshal(rr.Body.Bytes(), &stats)
	if stats.ActiveSessions != 2 {
		t.Errorf("Expected 2 active sessions in stats, got %d", stats.ActiveSessions)
	}
}
