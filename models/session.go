package models

import (
	"time"
)

// Phase 比赛阶段
type Phase string

const (
	PhasePreMatch        Phase = "PRE_MATCH"
	PhaseFirstHalf       Phase = "FIRST_HALF"
	PhaseHalfTime        Phase = "HALF_TIME"
	PhaseSecondHalf      Phase = "SECOND_HALF"
	PhaseExtraTimeFirst  Phase = "EXTRA_TIME_FIRST"
	PhaseExtraTimeSecond Phase = "EXTRA_TIME_SECOND"
	PhasePenalties       Phase = "PENALTIES"
	PhaseFinished        Phase = "FINISHED"
)

// Playing 该阶段时钟是否在推进比赛分钟
func (p Phase) Playing() bool {
	switch p {
	case PhaseFirstHalf, PhaseSecondHalf, PhaseExtraTimeFirst, PhaseExtraTimeSecond:
		return true
	}
	return false
}

// Terminal 该阶段是否为终态
func (p Phase) Terminal() bool {
	return p == PhaseFinished
}

// PauseReason 暂停原因
type PauseReason string

const (
	PauseNone      PauseReason = "NONE"
	PauseAdmin     PauseReason = "ADMIN"
	PauseTechnical PauseReason = "TECHNICAL"
)

// 环境条件，会话创建时随机选定，之后不变
var (
	WeatherConditions = []string{"Clear", "Cloudy", "Light Rain", "Overcast", "Sunny", "Partly Cloudy"}
)

// SessionStats 从事件日志折叠出来的统计，不单独存储
type SessionStats struct {
	HomeShots   int `json:"home_shots"`
	AwayShots   int `json:"away_shots"`
	HomeFouls   int `json:"home_fouls"`
	AwayFouls   int `json:"away_fouls"`
	HomeCorners int `json:"home_corners"`
	AwayCorners int `json:"away_corners"`
	HomeCards   int `json:"home_cards"`
	AwayCards   int `json:"away_cards"`
}

// SessionSnapshot 会话状态的一致性快照，用于广播、REST 查询和持久化
type SessionSnapshot struct {
	SessionID      int64        `json:"session_id"`
	MatchID        int64        `json:"match_id"`
	Phase          Phase        `json:"phase"`
	CurrentMinute  int          `json:"current_minute"`
	AdditionalTime int          `json:"additional_time"`
	HomeScore      int          `json:"home_score"`
	AwayScore      int          `json:"away_score"`
	PenaltyHome    int          `json:"penalty_home,omitempty"`
	PenaltyAway    int          `json:"penalty_away,omitempty"`
	Paused         bool         `json:"paused"`
	PauseReason    PauseReason  `json:"pause_reason"`
	Decisive       bool         `json:"decisive"`
	Weather        string       `json:"weather"`
	Temperature    int          `json:"temperature"`
	Intensity      float64      `json:"intensity"`
	SpectatorCount int64        `json:"spectator_count"`
	Events         []MatchEvent `json:"events"`
	Stats          SessionStats `json:"stats"`

	StartTime       *time.Time `json:"start_time,omitempty"`
	HalfTimeStart   *time.Time `json:"half_time_start,omitempty"`
	SecondHalfStart *time.Time `json:"second_half_start,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`

	LastActivity time.Time `json:"last_activity"`
}

// SessionSummary 活跃会话列表使用的摘要
type SessionSummary struct {
	SessionID      int64      `json:"session_id"`
	MatchID        int64      `json:"match_id"`
	Phase          Phase      `json:"phase"`
	CurrentMinute  int        `json:"current_minute"`
	HomeScore      int        `json:"home_score"`
	AwayScore      int        `json:"away_score"`
	Paused         bool       `json:"paused"`
	SpectatorCount int64      `json:"spectator_count"`
	StartTime      *time.Time `json:"start_time,omitempty"`
}
