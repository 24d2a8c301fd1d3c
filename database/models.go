package database

import (
	"time"
)

// LiveMatchSessionRow 会话表的一行
type LiveMatchSessionRow struct {
	ID              int64      `db:"id"`
	SessionID       int64      `db:"session_id"`
	MatchID         int64      `db:"match_id"`
	Phase           string     `db:"phase"`
	CurrentMinute   int        `db:"current_minute"`
	AdditionalTime  int        `db:"additional_time"`
	HomeScore       int        `db:"home_score"`
	AwayScore       int        `db:"away_score"`
	PenaltyHome     int        `db:"penalty_home"`
	PenaltyAway     int        `db:"penalty_away"`
	Paused          bool       `db:"paused"`
	PauseReason     string     `db:"pause_reason"`
	Decisive        bool       `db:"decisive"`
	Weather         *string    `db:"weather"`
	Temperature     *int       `db:"temperature"`
	Intensity       *float64   `db:"intensity"`
	SpectatorCount  int64      `db:"spectator_count"`
	Events          string     `db:"events"`
	StartTime       *time.Time `db:"start_time"`
	HalfTimeStart   *time.Time `db:"half_time_start"`
	SecondHalfStart *time.Time `db:"second_half_start"`
	EndTime         *time.Time `db:"end_time"`
	LastActivity    time.Time  `db:"last_activity"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// SessionNotificationRow 域通知投递记录
type SessionNotificationRow struct {
	ID        int64     `db:"id"`
	Topic     string    `db:"topic"`
	MatchID   int64     `db:"match_id"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
}
