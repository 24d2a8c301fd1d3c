package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"matchsim-service/logger"
	"matchsim-service/models"
)

// SessionStore 持久化网关。核心在每次提交的状态变更后调用 Save，
// 保存失败只记日志，内存状态仍是权威数据。
type SessionStore interface {
	Save(snap models.SessionSnapshot) error
	FindByMatchID(matchID int64) (*models.SessionSnapshot, error)
	FindUnfinished() ([]models.SessionSnapshot, error)
	DeleteByMatchID(matchID int64) error
	SaveNotification(topic string, matchID int64, payload []byte) error
}

// Broadcaster 把事件和状态快照推送给某场比赛的订阅者。
// 投递必须是即发即弃的，慢订阅者不能拖住 tick 循环。
type Broadcaster interface {
	BroadcastEvent(matchID int64, ev models.MatchEvent)
	BroadcastSnapshot(matchID int64, snap models.SessionSnapshot)
}

// AttributeProvider 提供双方球队的能力快照，由外部协作方实现。
// 每次 tick 前都会重新取一次，外部发生的换人在下一分钟生效。
type AttributeProvider interface {
	TeamAttributes(matchID int64) (home, away models.TeamAttributes, err error)
}

// SessionManager 会话注册表：独占 matchID -> 会话 的映射，
// 保证一场比赛最多一个会话，并为每个会话运行独立的时钟驱动协程。
type SessionManager struct {
	clock     *MatchClock
	generator *EventGenerator
	attrs     AttributeProvider
	store     SessionStore
	bcast     Broadcaster
	broker    NotificationBroker

	minuteDuration time.Duration

	mu       sync.RWMutex
	sessions map[int64]*LiveMatchSession
	cancels  map[int64]context.CancelFunc
	seq      int64

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// seedFn 会话随机种子，测试注入固定值以复现事件序列
	seedFn func(matchID int64) int64
}

// NewSessionManager 创建会话管理器
func NewSessionManager(clock *MatchClock, gen *EventGenerator, attrs AttributeProvider, store SessionStore, bcast Broadcaster, broker NotificationBroker, minuteDuration time.Duration) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		clock:          clock,
		generator:      gen,
		attrs:          attrs,
		store:          store,
		bcast:          bcast,
		broker:         broker,
		minuteDuration: minuteDuration,
		sessions:       make(map[int64]*LiveMatchSession),
		cancels:        make(map[int64]context.CancelFunc),
		baseCtx:        ctx,
		cancel:         cancel,
		seedFn: func(matchID int64) int64 {
			return matchID ^ time.Now().UnixNano()
		},
	}
}

// SetSeedFn 覆盖种子函数（测试用）
func (m *SessionManager) SetSeedFn(fn func(matchID int64) int64) {
	m.seedFn = fn
}

// StartSession 创建或返回一场比赛的会话。重复 start 幂等地返回已有会话，
// 同一 matchID 永远不会出现两个会话。
func (m *SessionManager) StartSession(matchID int64, decisive bool) (*LiveMatchSession, error) {
	m.mu.Lock()
	if s, ok := m.sessions[matchID]; ok {
		m.mu.Unlock()
		logger.Printf("[SessionManager] Session for match %d already exists, returning it", matchID)
		return s, nil
	}

	m.seq++
	s := NewLiveMatchSession(m.seq, matchID, decisive, m.seedFn(matchID))
	now := time.Now()
	if err := s.Start(m.clock, now); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sessions[matchID] = s

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.cancels[matchID] = cancel
	m.mu.Unlock()

	snap := s.Snapshot()
	m.publish(TopicSessionStarted, snap)
	m.persist(snap)
	m.bcast.BroadcastSnapshot(matchID, snap)

	m.wg.Add(1)
	go m.runDriver(ctx, s)

	logger.Printf("[SessionManager] ✅ Started session %d for match %d", s.SessionID(), matchID)
	return s, nil
}

// GetSession 查询会话
func (m *SessionManager) GetSession(matchID int64) (*LiveMatchSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[matchID]
	if !ok {
		return nil, models.ErrSessionNotFound
	}
	return s, nil
}

// ListActive 返回所有未结束会话的摘要
func (m *SessionManager) ListActive() []models.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(m.sessions))
	for _, s := range m.sessions {
		if s.Phase().Terminal() {
			continue
		}
		out = append(out, s.Summary())
	}
	return out
}

// JoinSpectator 观众加入，返回当前观众数
func (m *SessionManager) JoinSpectator(matchID int64) (int64, error) {
	s, err := m.GetSession(matchID)
	if err != nil {
		return 0, err
	}
	return s.JoinSpectator(), nil
}

// LeaveSpectator 观众离开，返回当前观众数
func (m *SessionManager) LeaveSpectator(matchID int64) (int64, error) {
	s, err := m.GetSession(matchID)
	if err != nil {
		return 0, err
	}
	return s.LeaveSpectator(), nil
}

// Pause 暂停会话
func (m *SessionManager) Pause(matchID int64, reason models.PauseReason) error {
	s, err := m.GetSession(matchID)
	if err != nil {
		return err
	}
	if err := s.Pause(reason); err != nil {
		return err
	}
	snap := s.Snapshot()
	m.persist(snap)
	m.bcast.BroadcastSnapshot(matchID, snap)
	m.publishSnapshot(snap)
	logger.Printf("[SessionManager] ⏸️ Match %d paused (%s)", matchID, reason)
	return nil
}

// Resume 恢复会话
func (m *SessionManager) Resume(matchID int64) error {
	s, err := m.GetSession(matchID)
	if err != nil {
		return err
	}
	if err := s.Resume(); err != nil {
		return err
	}
	snap := s.Snapshot()
	m.persist(snap)
	m.bcast.BroadcastSnapshot(matchID, snap)
	m.publishSnapshot(snap)
	logger.Printf("[SessionManager] ▶️ Match %d resumed", matchID)
	return nil
}

// ForceFinish 强制终止会话：先取消时钟驱动保证不再调度新 tick，
// 然后落终态、向广播器和持久化网关刷出最终快照。幂等。
func (m *SessionManager) ForceFinish(matchID int64) error {
	s, err := m.GetSession(matchID)
	if err != nil {
		return err
	}

	m.stopDriver(matchID)

	if !s.ForceFinish(time.Now()) {
		// 已经是终态，不重复刷终场快照
		return nil
	}

	snap := s.Snapshot()
	m.persist(snap)
	m.bcast.BroadcastSnapshot(matchID, snap)
	m.publish(TopicSessionFinished, snap)
	logger.Printf("[SessionManager] 🛑 Match %d force-finished at minute %d", matchID, snap.CurrentMinute)
	return nil
}

// Reset 管理回滚：取消驱动、丢弃实况状态、从注册表和存储中移除会话
func (m *SessionManager) Reset(matchID int64) error {
	s, err := m.GetSession(matchID)
	if err != nil {
		return err
	}

	m.stopDriver(matchID)
	s.Reset(time.Now())

	m.mu.Lock()
	delete(m.sessions, matchID)
	m.mu.Unlock()

	if err := m.store.DeleteByMatchID(matchID); err != nil {
		logger.Errorf("[SessionManager] Failed to delete persisted session for match %d: %v", matchID, err)
	}
	m.publish(TopicSessionReset, s.Snapshot())
	logger.Printf("[SessionManager] ♻️ Match %d session reset", matchID)
	return nil
}

// Recover 启动恢复：重建所有未完赛的会话并恢复其时钟驱动
func (m *SessionManager) Recover() error {
	snaps, err := m.store.FindUnfinished()
	if err != nil {
		return err
	}

	recovered := 0
	for _, snap := range snaps {
		m.mu.Lock()
		if _, ok := m.sessions[snap.MatchID]; ok {
			m.mu.Unlock()
			continue
		}
		if snap.SessionID > m.seq {
			m.seq = snap.SessionID
		}
		s := restoreSession(snap, m.seedFn(snap.MatchID))
		m.sessions[snap.MatchID] = s
		ctx, cancel := context.WithCancel(m.baseCtx)
		m.cancels[snap.MatchID] = cancel
		m.mu.Unlock()

		m.wg.Add(1)
		go m.runDriver(ctx, s)
		recovered++
	}

	if recovered > 0 {
		logger.Printf("[SessionManager] 🔄 Recovered %d unfinished sessions", recovered)
	}
	return nil
}

// Stop 停止所有驱动协程并等待退出
func (m *SessionManager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// runDriver 单个会话的时钟驱动：按配置的分钟时长休眠，醒来推进一分钟。
// 会话之间相互独立，没有全局锁。
func (m *SessionManager) runDriver(ctx context.Context, s *LiveMatchSession) {
	defer m.wg.Done()

	matchID := s.MatchID()
	ticker := time.NewTicker(m.minuteDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			home, away, err := m.attrs.TeamAttributes(matchID)
			gen := m.generator
			if err != nil {
				// 拿不到能力快照时本分钟不生成事件，时钟照常推进
				logger.Errorf("[SessionManager] Attributes unavailable for match %d: %v", matchID, err)
				gen = nil
			}

			res := s.Tick(m.clock, gen, home, away, now)
			if !res.Advanced {
				continue
			}

			for _, ev := range res.Events {
				m.bcast.BroadcastEvent(matchID, ev)
				m.publishEvent(matchID, ev)
			}

			snap := s.Snapshot()
			m.bcast.BroadcastSnapshot(matchID, snap)
			m.publishSnapshot(snap)
			m.persist(snap)

			if res.Finished {
				m.publish(TopicSessionFinished, snap)
				logger.Printf("[SessionManager] 🏁 Match %d finished %d-%d", matchID, snap.HomeScore, snap.AwayScore)
				// FINISHED 后冻结，驱动退出，不再调度 tick
				return
			}
		}
	}
}

// stopDriver 取消某场比赛的时钟驱动
func (m *SessionManager) stopDriver(matchID int64) {
	m.mu.Lock()
	cancel, ok := m.cancels[matchID]
	if ok {
		delete(m.cancels, matchID)
	}
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// persist 保存快照。失败只记日志：内存状态保持权威，模拟不中断。
func (m *SessionManager) persist(snap models.SessionSnapshot) {
	if err := m.store.Save(snap); err != nil {
		logger.Errorf("[SessionManager] Failed to persist match %d (state kept in memory): %v", snap.MatchID, err)
	}
}

// publish 发布阶段级域通知
func (m *SessionManager) publish(kind string, snap models.SessionSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		logger.Errorf("[SessionManager] Failed to marshal notification for match %d: %v", snap.MatchID, err)
		return
	}
	topic := TopicName(kind)
	if err := m.broker.Publish(Notification{Topic: topic, MatchID: snap.MatchID, Payload: payload}); err != nil {
		logger.Errorf("[SessionManager] Failed to publish %s for match %d: %v", topic, snap.MatchID, err)
	}
	if err := m.store.SaveNotification(topic, snap.MatchID, payload); err != nil {
		logger.Errorf("[SessionManager] Failed to record notification for match %d: %v", snap.MatchID, err)
	}
}

// publishSnapshot 把状态快照发到 Broker，供 MQTT/AMQP 转发器镜像实时状态。
// 每个已推进的 tick 都发一条（含只有分钟推进、没有事件的 tick），
// 量大且可重建，不落审计表。
func (m *SessionManager) publishSnapshot(snap models.SessionSnapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		logger.Errorf("[SessionManager] Failed to marshal snapshot for match %d: %v", snap.MatchID, err)
		return
	}
	if err := m.broker.Publish(Notification{Topic: TopicName(TopicSessionSnapshot), MatchID: snap.MatchID, Payload: payload}); err != nil {
		logger.Errorf("[SessionManager] Failed to publish snapshot for match %d: %v", snap.MatchID, err)
	}
}

// publishEvent 发布事件级域通知
func (m *SessionManager) publishEvent(matchID int64, ev models.MatchEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("[SessionManager] Failed to marshal event for match %d: %v", matchID, err)
		return
	}
	if err := m.broker.Publish(Notification{Topic: TopicName(TopicSessionEvent), MatchID: matchID, Payload: payload}); err != nil {
		logger.Errorf("[SessionManager] Failed to publish event for match %d: %v", matchID, err)
	}
}

// restoreSession 从持久化快照重建会话。随机序列无法跨重启延续，
// 重建后用新种子继续。
func restoreSession(snap models.SessionSnapshot, seed int64) *LiveMatchSession {
	s := NewLiveMatchSession(snap.SessionID, snap.MatchID, snap.Decisive, seed)
	st := &s.st
	st.phase = snap.Phase
	st.minute = snap.CurrentMinute
	st.additionalTime = snap.AdditionalTime
	st.homeScore = snap.HomeScore
	st.awayScore = snap.AwayScore
	st.penaltyHome = snap.PenaltyHome
	st.penaltyAway = snap.PenaltyAway
	st.paused = snap.Paused
	st.pauseReason = snap.PauseReason
	st.weather = snap.Weather
	st.temperature = snap.Temperature
	st.intensity = snap.Intensity
	st.events = append([]models.MatchEvent(nil), snap.Events...)
	st.startTime = snap.StartTime
	st.halfTimeStart = snap.HalfTimeStart
	st.secondHalfStart = snap.SecondHalfStart
	st.endTime = snap.EndTime
	st.lastActivity = time.Now()
	for _, ev := range snap.Events {
		if ev.ID > st.nextEventID {
			st.nextEventID = ev.ID
		}
		if ev.Type == models.EventRedCard && ev.PlayerID != nil {
			st.sentOff[*ev.PlayerID] = true
		}
	}
	s.spectators = snap.SpectatorCount
	return s
}
