package models

import (
	"time"
)

// EventType 比赛事件类型
type EventType string

const (
	EventGoal         EventType = "GOAL"
	EventGoalFreeKick EventType = "GOAL_FREE_KICK"
	EventCorner       EventType = "CORNER"
	EventFoul         EventType = "FOUL"
	EventYellowCard   EventType = "YELLOW_CARD"
	EventRedCard      EventType = "RED_CARD"
	EventShotMissed   EventType = "SHOT_MISSED"
	EventSubstitution EventType = "SUBSTITUTION"
	EventInjury       EventType = "INJURY"

	// 阶段标记事件，由时钟在阶段切换时写入日志
	EventKickOff  EventType = "KICK_OFF"
	EventHalfTime EventType = "HALF_TIME"
	EventFullTime EventType = "FULL_TIME"
)

// Scoring 该事件类型是否计入比分
func (t EventType) Scoring() bool {
	return t == EventGoal || t == EventGoalFreeKick
}

// Side 事件归属方
type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
	SideNone Side = "none"
)

// MatchEvent 一条比赛事件，创建后不可变
type MatchEvent struct {
	ID          int64     `json:"id"`
	MatchID     int64     `json:"match_id"`
	Minute      int       `json:"minute"`
	Type        EventType `json:"type"`
	Side        Side      `json:"side"`
	PlayerID    *int64    `json:"player_id,omitempty"`
	PlayerName  string    `json:"player_name,omitempty"`
	Description string    `json:"description"`

	// 事件发生后的比分（原始数据模型保留该冗余，便于回放展示）
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`

	CreatedAt time.Time `json:"created_at"`
}
