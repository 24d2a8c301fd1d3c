package services

import (
	"context"
	"time"

	"matchsim-service/logger"
)

// SessionMonitor 僵死会话监督器：周期性扫描活跃会话，
// 驱动协程超过阈值没有活动（崩溃检测）时调用公开的 ForceFinish 原语收尾。
// 只使用管理器的公开接口，不进入会话内部。
type SessionMonitor struct {
	manager    *SessionManager
	staleAfter time.Duration
	interval   time.Duration
}

// NewSessionMonitor 创建监督器
func NewSessionMonitor(manager *SessionManager, staleAfter, interval time.Duration) *SessionMonitor {
	return &SessionMonitor{
		manager:    manager,
		staleAfter: staleAfter,
		interval:   interval,
	}
}

// Run 周期执行扫描，阻塞直到 ctx 取消
func (m *SessionMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAndFinalize()
		}
	}
}

// CheckAndFinalize 扫描一轮并强制终结僵死会话
func (m *SessionMonitor) CheckAndFinalize() {
	now := time.Now()
	finalized := 0

	for _, summary := range m.manager.ListActive() {
		s, err := m.manager.GetSession(summary.MatchID)
		if err != nil {
			continue
		}
		idle := now.Sub(s.LastActivity())
		if idle < m.staleAfter {
			continue
		}

		logger.Printf("[SessionMonitor] ⚠️ Match %d idle for %v, forcing finish", summary.MatchID, idle.Round(time.Second))
		if err := m.manager.ForceFinish(summary.MatchID); err != nil {
			logger.Errorf("[SessionMonitor] Failed to force-finish match %d: %v", summary.MatchID, err)
			continue
		}
		finalized++
	}

	if finalized > 0 {
		logger.Printf("[SessionMonitor] Finalized %d stale sessions", finalized)
	}
}
