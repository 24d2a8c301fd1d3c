package services

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"matchsim-service/logger"
	"matchsim-service/models"
)

// LiveMatchSession 一场比赛的实时模拟会话。
// 所有写操作都在会话内部互斥锁下串行执行；观众计数独立走原子操作，
// 加入/离开不需要排在 tick 后面。
type LiveMatchSession struct {
	mu         sync.RWMutex
	st         sessionState
	spectators int64 // 原子访问
}

// sessionState 会话的规范状态，只能在持有会话锁时访问。
// 时钟和事件生成器在锁内直接操作该结构。
type sessionState struct {
	sessionID      int64
	matchID        int64
	phase          models.Phase
	minute         int
	additionalTime int

	homeScore   int
	awayScore   int
	penaltyHome int
	penaltyAway int

	paused      bool
	pauseReason models.PauseReason

	// decisive 为 true 时比分相同会进入加时/点球
	decisive bool

	weather     string
	temperature int
	intensity   float64

	events  []models.MatchEvent
	sentOff map[int64]bool

	rng *rand.Rand

	// 各时间戳只设置一次，之后不变
	startTime       *time.Time
	halfTimeStart   *time.Time
	secondHalfStart *time.Time
	endTime         *time.Time

	lastActivity time.Time
	nextEventID  int64
}

// TickResult 一次 tick 的结果，驱动协程据此广播和落库
type TickResult struct {
	Advanced     bool
	PhaseChanged bool
	Finished     bool
	// Events 本次 tick 追加到日志的事件，按写入顺序
	Events []models.MatchEvent
}

// NewLiveMatchSession 创建处于 PRE_MATCH 阶段的会话。
// 环境条件（天气、温度、强度）由种子随机选定，之后保持不变。
func NewLiveMatchSession(sessionID, matchID int64, decisive bool, seed int64) *LiveMatchSession {
	rng := rand.New(rand.NewSource(seed))
	return &LiveMatchSession{
		st: sessionState{
			sessionID:    sessionID,
			matchID:      matchID,
			phase:        models.PhasePreMatch,
			pauseReason:  models.PauseNone,
			decisive:     decisive,
			weather:      models.WeatherConditions[rng.Intn(len(models.WeatherConditions))],
			temperature:  5 + rng.Intn(26),
			intensity:    0.8 + rng.Float64()*0.4,
			sentOff:      make(map[int64]bool),
			rng:          rng,
			lastActivity: time.Now(),
		},
	}
}

// SessionID 会话 ID
func (s *LiveMatchSession) SessionID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.sessionID
}

// MatchID 对应的比赛 ID
func (s *LiveMatchSession) MatchID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.matchID
}

// Phase 当前阶段
func (s *LiveMatchSession) Phase() models.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.phase
}

// Paused 是否处于暂停状态
func (s *LiveMatchSession) Paused() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.paused
}

// LastActivity 驱动协程最近一次活动时间，供僵死检测使用
func (s *LiveMatchSession) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.lastActivity
}

// Start 开始比赛：PRE_MATCH -> FIRST_HALF，设置开赛时间戳并抽取上半场补时
func (s *LiveMatchSession) Start(clock *MatchClock, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.phase != models.PhasePreMatch {
		return models.NewTransitionError("start", s.st.phase)
	}

	s.st.phase = models.PhaseFirstHalf
	s.st.minute = 0
	t := now
	s.st.startTime = &t
	s.st.additionalTime = clock.drawAdditional(s.st.rng)
	s.st.lastActivity = now
	s.st.appendMarker(models.EventKickOff, "Kick off", now)
	return nil
}

// Tick 一次串行化的模拟分钟推进：时钟推进、事件生成、阶段边界检查
// 都发生在同一个临界区里，因此比分和日志不可能分叉。
// 暂停或已结束时是无副作用的空操作。
func (s *LiveMatchSession) Tick(clock *MatchClock, gen *EventGenerator, home, away models.TeamAttributes, now time.Time) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := TickResult{}
	st := &s.st

	if st.phase.Terminal() {
		// FINISHED 后的 tick 是幂等空操作
		return res
	}

	st.lastActivity = now
	if st.paused {
		return res
	}

	before := len(st.events)
	prevPhase := st.phase

	played := clock.Advance(st, now)
	if played && gen != nil && !st.phase.Terminal() {
		ev, err := gen.generate(st, home, away, now)
		if err != nil {
			// 生成失败按“本分钟无事件”处理，比赛继续
			logger.Errorf("[EventGenerator] ⚠️ Match %d minute %d: %v, no event this minute", st.matchID, st.minute, err)
		} else if ev != nil {
			st.applyEvent(ev)
		}
	}
	clock.CheckBoundary(st, now)

	res.Advanced = played || st.phase != prevPhase
	res.PhaseChanged = st.phase != prevPhase
	res.Finished = st.phase.Terminal()
	res.Events = append(res.Events, st.events[before:]...)
	return res
}

// ApplyEvent 校验并应用一条外部构造的事件（测试和换人回放入口）
func (s *LiveMatchSession) ApplyEvent(ev models.MatchEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.phase.Terminal() {
		return models.NewTransitionError("applyEvent", s.st.phase)
	}
	if s.st.paused || !s.st.phase.Playing() {
		return models.NewTransitionError("applyEvent", s.st.phase)
	}
	ev.Minute = s.st.displayMinute()
	s.st.applyEvent(&ev)
	return nil
}

// Pause 暂停会话。重复暂停和未开赛/已结束时暂停都是非法迁移。
func (s *LiveMatchSession) Pause(reason models.PauseReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.phase == models.PhasePreMatch || s.st.phase.Terminal() || s.st.paused {
		return models.NewTransitionError("pause", s.st.phase)
	}
	if reason == models.PauseNone {
		reason = models.PauseAdmin
	}
	s.st.paused = true
	s.st.pauseReason = reason
	return nil
}

// Resume 恢复会话，仅在暂停状态下合法
func (s *LiveMatchSession) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.st.paused {
		return models.NewTransitionError("resume", s.st.phase)
	}
	s.st.paused = false
	s.st.pauseReason = models.PauseNone
	return nil
}

// ForceFinish 强制终止会话。幂等：已结束时返回 false 且不产生任何变更。
func (s *LiveMatchSession) ForceFinish(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.phase.Terminal() {
		return false
	}
	s.st.paused = false
	s.st.pauseReason = models.PauseNone
	s.st.finish(now, "Match ended by administrator")
	return true
}

// Reset 管理回滚：丢弃全部实况状态和事件，回到 PRE_MATCH。
// 与正常完赛不同，这是错误恢复用的覆盖操作。
func (s *LiveMatchSession) Reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.st
	st.phase = models.PhasePreMatch
	st.minute = 0
	st.additionalTime = 0
	st.homeScore = 0
	st.awayScore = 0
	st.penaltyHome = 0
	st.penaltyAway = 0
	st.paused = false
	st.pauseReason = models.PauseNone
	st.events = nil
	st.sentOff = make(map[int64]bool)
	st.startTime = nil
	st.halfTimeStart = nil
	st.secondHalfStart = nil
	st.endTime = nil
	st.lastActivity = now
	st.nextEventID = 0
}

// JoinSpectator 观众加入，返回当前观众数
func (s *LiveMatchSession) JoinSpectator() int64 {
	return atomic.AddInt64(&s.spectators, 1)
}

// LeaveSpectator 观众离开，计数不会降到负数
func (s *LiveMatchSession) LeaveSpectator() int64 {
	n := atomic.AddInt64(&s.spectators, -1)
	if n < 0 {
		atomic.AddInt64(&s.spectators, 1)
		return 0
	}
	return n
}

// SpectatorCount 当前观众数
func (s *LiveMatchSession) SpectatorCount() int64 {
	return atomic.LoadInt64(&s.spectators)
}

// Snapshot 返回会话的一致性快照：比分和日志来自同一个临界区，不会出现撕裂读
func (s *LiveMatchSession) Snapshot() models.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &s.st
	events := make([]models.MatchEvent, len(st.events))
	copy(events, st.events)

	return models.SessionSnapshot{
		SessionID:       st.sessionID,
		MatchID:         st.matchID,
		Phase:           st.phase,
		CurrentMinute:   st.minute,
		AdditionalTime:  st.additionalTime,
		HomeScore:       st.homeScore,
		AwayScore:       st.awayScore,
		PenaltyHome:     st.penaltyHome,
		PenaltyAway:     st.penaltyAway,
		Paused:          st.paused,
		PauseReason:     st.pauseReason,
		Decisive:        st.decisive,
		Weather:         st.weather,
		Temperature:     st.temperature,
		Intensity:       st.intensity,
		SpectatorCount:  atomic.LoadInt64(&s.spectators),
		Events:          events,
		Stats:           foldStats(events),
		StartTime:       st.startTime,
		HalfTimeStart:   st.halfTimeStart,
		SecondHalfStart: st.secondHalfStart,
		EndTime:         st.endTime,
		LastActivity:    st.lastActivity,
	}
}

// Summary 活跃会话列表使用的摘要
func (s *LiveMatchSession) Summary() models.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return models.SessionSummary{
		SessionID:      s.st.sessionID,
		MatchID:        s.st.matchID,
		Phase:          s.st.phase,
		CurrentMinute:  s.st.minute,
		HomeScore:      s.st.homeScore,
		AwayScore:      s.st.awayScore,
		Paused:         s.st.paused,
		SpectatorCount: atomic.LoadInt64(&s.spectators),
		StartTime:      s.st.startTime,
	}
}

// EventsSince 返回分钟数不小于 minMinute 的事件
func (s *LiveMatchSession) EventsSince(minMinute int) []models.MatchEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MatchEvent, 0, len(s.st.events))
	for _, ev := range s.st.events {
		if ev.Minute >= minMinute {
			out = append(out, ev)
		}
	}
	return out
}

// applyEvent 在锁内追加事件。进球事件的比分更新和日志追加在同一次
// 状态变更里完成，二者不可能分叉。
func (st *sessionState) applyEvent(ev *models.MatchEvent) {
	if ev.Type.Scoring() {
		switch ev.Side {
		case models.SideHome:
			st.homeScore++
		case models.SideAway:
			st.awayScore++
		}
	}
	if ev.Type == models.EventRedCard && ev.PlayerID != nil {
		st.sentOff[*ev.PlayerID] = true
	}

	st.nextEventID++
	ev.ID = st.nextEventID
	ev.MatchID = st.matchID
	ev.HomeScore = st.homeScore
	ev.AwayScore = st.awayScore
	st.events = append(st.events, *ev)
}

// displayMinute 事件日志使用的记分牌分钟。补时内的事件按足球惯例
// 记在 45/90/105/120 分钟上（即 45+2 记作 45），这样即使下半场时钟
// 从 46 重新起算，日志按写入顺序读也始终按分钟有序。
func (st *sessionState) displayMinute() int {
	m := st.minute
	switch st.phase {
	case models.PhaseFirstHalf:
		if m > firstHalfEnd {
			return firstHalfEnd
		}
	case models.PhaseHalfTime:
		return firstHalfEnd
	case models.PhaseSecondHalf:
		if m > secondHalfEnd {
			return secondHalfEnd
		}
	case models.PhaseExtraTimeFirst:
		if m > extraFirstEnd {
			return extraFirstEnd
		}
	case models.PhaseExtraTimeSecond, models.PhasePenalties:
		if m > extraSecondEnd {
			return extraSecondEnd
		}
	}
	return m
}

// appendMarker 写入一条阶段标记事件（开球、中场、终场）
func (st *sessionState) appendMarker(t models.EventType, description string, now time.Time) {
	ev := models.MatchEvent{
		Minute:      st.displayMinute(),
		Type:        t,
		Side:        models.SideNone,
		Description: description,
		CreatedAt:   now,
	}
	st.applyEvent(&ev)
}

// finish 进入终态。结束时间戳只在第一次进入时设置。
// 终场标记的分钟按进入终态前的阶段计算。
func (st *sessionState) finish(now time.Time, description string) {
	if st.phase.Terminal() {
		return
	}
	minute := st.displayMinute()
	st.phase = models.PhaseFinished
	if st.endTime == nil {
		t := now
		st.endTime = &t
	}
	ev := models.MatchEvent{
		Minute:      minute,
		Type:        models.EventFullTime,
		Side:        models.SideNone,
		Description: description,
		CreatedAt:   now,
	}
	st.applyEvent(&ev)
}

// foldStats 从事件日志折叠出统计
func foldStats(events []models.MatchEvent) models.SessionStats {
	var stats models.SessionStats
	for _, ev := range events {
		home := ev.Side == models.SideHome
		switch ev.Type {
		case models.EventGoal, models.EventGoalFreeKick, models.EventShotMissed:
			if home {
				stats.HomeShots++
			} else if ev.Side == models.SideAway {
				stats.AwayShots++
			}
		case models.EventFoul:
			if home {
				stats.HomeFouls++
			} else if ev.Side == models.SideAway {
				stats.AwayFouls++
			}
		case models.EventCorner:
			if home {
				stats.HomeCorners++
			} else if ev.Side == models.SideAway {
				stats.AwayCorners++
			}
		case models.EventYellowCard, models.EventRedCard:
			if home {
				stats.HomeCards++
			} else if ev.Side == models.SideAway {
				stats.AwayCards++
			}
		}
	}
	return stats
}
