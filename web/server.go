package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"matchsim-service/config"
	"matchsim-service/models"
	"matchsim-service/services"
)

type Server struct {
	config     *config.Config
	manager    *services.SessionManager
	hub        *Hub
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(cfg *config.Config, manager *services.SessionManager, hub *Hub) *Server {
	return &Server{
		config:  cfg,
		manager: manager,
		hub:     hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源(生产环境需要限制)
			},
		},
	}
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Handler 构建路由（测试也直接使用）
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/sessions/active", s.handleListActive).Methods("GET")
	api.HandleFunc("/matches/{match_id}/session/start", s.handleStart).Methods("POST")
	api.HandleFunc("/matches/{match_id}/session", s.handleGet).Methods("GET")
	api.HandleFunc("/matches/{match_id}/session/events", s.handleEvents).Methods("GET")
	api.HandleFunc("/matches/{match_id}/session/join", s.handleJoin).Methods("POST")
	api.HandleFunc("/matches/{match_id}/session/leave", s.handleLeave).Methods("POST")

	// 管理路由，凭证校验由外部认证服务负责，这里只做 token 边界检查
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.adminOnly)
	admin.HandleFunc("/matches/{match_id}/session/pause", s.handlePause).Methods("POST")
	admin.HandleFunc("/matches/{match_id}/session/resume", s.handleResume).Methods("POST")
	admin.HandleFunc("/matches/{match_id}/session/finish", s.handleForceFinish).Methods("POST")
	admin.HandleFunc("/matches/{match_id}/session/reset", s.handleReset).Methods("POST")

	// WebSocket路由
	router.HandleFunc("/ws/matches/{match_id}", s.handleWebSocket)

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return c.Handler(router)
}

func (s *Server) Stop() {
	if s.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

// adminOnly 管理接口的边界校验
func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.AdminToken != "" && r.Header.Get("X-Admin-Token") != s.config.AdminToken {
			writeError(w, models.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats 运行时统计
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	active := s.manager.ListActive()
	var spectators int64
	for _, summary := range active {
		spectators += summary.SpectatorCount
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"active_sessions":  len(active),
		"total_spectators": spectators,
		"goroutines":       runtime.NumGoroutine(),
	})
}

// handleStart 开始比赛会话，重复调用幂等地返回已有会话
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Decisive bool `json:"decisive"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body) // 空 body 合法
	}

	session, err := s.manager.StartSession(matchID, body.Decisive)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// handleGet 查询会话
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	session, err := s.manager.GetSession(matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// handleEvents 查询事件日志，可选 min_minute 过滤
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	session, err := s.manager.GetSession(matchID)
	if err != nil {
		writeError(w, err)
		return
	}

	minMinute := 0
	if v := r.URL.Query().Get("min_minute"); v != "" {
		minMinute, err = strconv.Atoi(v)
		if err != nil || minMinute < 0 {
			http.Error(w, "invalid min_minute", http.StatusBadRequest)
			return
		}
	}

	events := session.EventsSince(minMinute)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":   matchID,
		"min_minute": minMinute,
		"events":     events,
	})
}

// handleJoin 观众加入
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	count, err := s.manager.JoinSpectator(matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":        matchID,
		"spectator_count": count,
	})
}

// handleLeave 观众离开
func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	count, err := s.manager.LeaveSpectator(matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"match_id":        matchID,
		"spectator_count": count,
	})
}

// handleListActive 活跃会话列表
func (s *Server) handleListActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": s.manager.ListActive(),
	})
}

// handlePause 管理暂停
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	reason := models.PauseReason(body.Reason)
	if reason != models.PauseAdmin && reason != models.PauseTechnical {
		reason = models.PauseAdmin
	}

	if err := s.manager.Pause(matchID, reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match_id": matchID, "paused": true})
}

// handleResume 管理恢复
func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	if err := s.manager.Resume(matchID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match_id": matchID, "paused": false})
}

// handleForceFinish 管理强制终止
func (s *Server) handleForceFinish(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	if err := s.manager.ForceFinish(matchID); err != nil {
		writeError(w, err)
		return
	}
	session, err := s.manager.GetSession(matchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.Snapshot())
}

// handleReset 管理回滚
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	if err := s.manager.Reset(matchID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"match_id": matchID, "reset": true})
}

// handleWebSocket 升级连接并注册到对应比赛的房间
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	matchID, ok := matchIDFrom(w, r)
	if !ok {
		return
	}
	if _, err := s.manager.GetSession(matchID); err != nil {
		writeError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, clientQueueSize),
		matchID: matchID,
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// matchIDFrom 从路径解析 match_id
func matchIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	vars := mux.Vars(r)
	matchID, err := strconv.ParseInt(vars["match_id"], 10, 64)
	if err != nil || matchID <= 0 {
		http.Error(w, "invalid match_id", http.StatusBadRequest)
		return 0, false
	}
	return matchID, true
}

// writeJSON 输出 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError 把类型化领域错误映射到响应码
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrInvalidAttributes):
		status = http.StatusBadRequest
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
