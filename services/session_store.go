package services

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"matchsim-service/database"
	"matchsim-service/models"
)

// PostgresSessionStore 是 SessionStore 的 Postgres 实现。
// 事件日志以 JSON 整体存储在会话行里，与上游数据模型保持一致。
type PostgresSessionStore struct {
	db *sql.DB
}

// NewSessionStore 创建存储
func NewSessionStore(db *sql.DB) *PostgresSessionStore {
	return &PostgresSessionStore{db: db}
}

// Save 按 match_id 幂等写入快照
func (s *PostgresSessionStore) Save(snap models.SessionSnapshot) error {
	events, err := json.Marshal(snap.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		INSERT INTO live_match_sessions (
			session_id, match_id, phase, current_minute, additional_time,
			home_score, away_score, penalty_home, penalty_away,
			paused, pause_reason, decisive, weather, temperature, intensity,
			spectator_count, events, start_time, half_time_start,
			second_half_start, end_time, last_activity, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		ON CONFLICT (match_id)
		DO UPDATE SET
			session_id = $1,
			phase = $3,
			current_minute = $4,
			additional_time = $5,
			home_score = $6,
			away_score = $7,
			penalty_home = $8,
			penalty_away = $9,
			paused = $10,
			pause_reason = $11,
			decisive = $12,
			spectator_count = $16,
			events = $17,
			start_time = $18,
			half_time_start = $19,
			second_half_start = $20,
			end_time = $21,
			last_activity = $22,
			updated_at = $23
	`

	_, err = s.db.Exec(query,
		snap.SessionID, snap.MatchID, string(snap.Phase), snap.CurrentMinute, snap.AdditionalTime,
		snap.HomeScore, snap.AwayScore, snap.PenaltyHome, snap.PenaltyAway,
		snap.Paused, string(snap.PauseReason), snap.Decisive, snap.Weather, snap.Temperature, snap.Intensity,
		snap.SpectatorCount, string(events), snap.StartTime, snap.HalfTimeStart,
		snap.SecondHalfStart, snap.EndTime, snap.LastActivity, time.Now(),
	)
	return err
}

// FindByMatchID 按比赛 ID 查找会话快照
func (s *PostgresSessionStore) FindByMatchID(matchID int64) (*models.SessionSnapshot, error) {
	query := selectColumns + ` WHERE match_id = $1`
	row := s.db.QueryRow(query, matchID)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// FindUnfinished 启动恢复时查找所有未完赛的会话
func (s *PostgresSessionStore) FindUnfinished() ([]models.SessionSnapshot, error) {
	query := selectColumns + ` WHERE phase != 'FINISHED' ORDER BY match_id`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SessionSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *snap)
	}
	return out, rows.Err()
}

// DeleteByMatchID 删除会话（管理回滚用）
func (s *PostgresSessionStore) DeleteByMatchID(matchID int64) error {
	_, err := s.db.Exec(`DELETE FROM live_match_sessions WHERE match_id = $1`, matchID)
	return err
}

// SaveNotification 记录一条已发布的域通知
func (s *PostgresSessionStore) SaveNotification(topic string, matchID int64, payload []byte) error {
	row := database.SessionNotificationRow{
		Topic:   topic,
		MatchID: matchID,
		Payload: string(payload),
	}
	_, err := s.db.Exec(
		`INSERT INTO session_notifications (topic, match_id, payload) VALUES ($1, $2, $3)`,
		row.Topic, row.MatchID, row.Payload,
	)
	return err
}

const selectColumns = `
	SELECT session_id, match_id, phase, current_minute, additional_time,
		home_score, away_score, penalty_home, penalty_away,
		paused, pause_reason, decisive, weather, temperature, intensity,
		spectator_count, events, start_time, half_time_start,
		second_half_start, end_time, last_activity
	FROM live_match_sessions`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*models.SessionSnapshot, error) {
	var r database.LiveMatchSessionRow
	err := row.Scan(
		&r.SessionID, &r.MatchID, &r.Phase, &r.CurrentMinute, &r.AdditionalTime,
		&r.HomeScore, &r.AwayScore, &r.PenaltyHome, &r.PenaltyAway,
		&r.Paused, &r.PauseReason, &r.Decisive, &r.Weather, &r.Temperature, &r.Intensity,
		&r.SpectatorCount, &r.Events, &r.StartTime, &r.HalfTimeStart,
		&r.SecondHalfStart, &r.EndTime, &r.LastActivity,
	)
	if err != nil {
		return nil, err
	}
	return rowToSnapshot(&r)
}

// rowToSnapshot 把数据库行转换成领域快照，事件日志和统计在这里展开
func rowToSnapshot(r *database.LiveMatchSessionRow) (*models.SessionSnapshot, error) {
	snap := models.SessionSnapshot{
		SessionID:       r.SessionID,
		MatchID:         r.MatchID,
		Phase:           models.Phase(r.Phase),
		CurrentMinute:   r.CurrentMinute,
		AdditionalTime:  r.AdditionalTime,
		HomeScore:       r.HomeScore,
		AwayScore:       r.AwayScore,
		PenaltyHome:     r.PenaltyHome,
		PenaltyAway:     r.PenaltyAway,
		Paused:          r.Paused,
		PauseReason:     models.PauseReason(r.PauseReason),
		Decisive:        r.Decisive,
		SpectatorCount:  r.SpectatorCount,
		StartTime:       r.StartTime,
		HalfTimeStart:   r.HalfTimeStart,
		SecondHalfStart: r.SecondHalfStart,
		EndTime:         r.EndTime,
		LastActivity:    r.LastActivity,
	}
	if r.Weather != nil {
		snap.Weather = *r.Weather
	}
	if r.Temperature != nil {
		snap.Temperature = *r.Temperature
	}
	if r.Intensity != nil {
		snap.Intensity = *r.Intensity
	}
	if err := json.Unmarshal([]byte(r.Events), &snap.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events for match %d: %w", snap.MatchID, err)
	}
	snap.Stats = foldStats(snap.Events)
	return &snap, nil
}
