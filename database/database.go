package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Connect 连接到数据库
func Connect(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// Migrate 运行数据库迁移
func Migrate(db *sql.DB) error {
	migrations := []string{
		// 比赛会话表，事件日志以 JSON 形式整体存储（与上游数据模型一致）
		`CREATE TABLE IF NOT EXISTS live_match_sessions (
			id BIGSERIAL PRIMARY KEY,
			session_id BIGINT NOT NULL,
			match_id BIGINT UNIQUE NOT NULL,
			phase VARCHAR(20) NOT NULL,
			current_minute INTEGER NOT NULL DEFAULT 0,
			additional_time INTEGER NOT NULL DEFAULT 0,
			home_score INTEGER NOT NULL DEFAULT 0,
			away_score INTEGER NOT NULL DEFAULT 0,
			penalty_home INTEGER NOT NULL DEFAULT 0,
			penalty_away INTEGER NOT NULL DEFAULT 0,
			paused BOOLEAN NOT NULL DEFAULT FALSE,
			pause_reason VARCHAR(20) NOT NULL DEFAULT 'NONE',
			decisive BOOLEAN NOT NULL DEFAULT FALSE,
			weather VARCHAR(50),
			temperature INTEGER,
			intensity DOUBLE PRECISION,
			spectator_count BIGINT NOT NULL DEFAULT 0,
			events TEXT NOT NULL DEFAULT '[]',
			start_time TIMESTAMP,
			half_time_start TIMESTAMP,
			second_half_start TIMESTAMP,
			end_time TIMESTAMP,
			last_activity TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_live_match_sessions_match_id ON live_match_sessions(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_live_match_sessions_phase ON live_match_sessions(phase)`,

		// 域通知投递记录表，便于排查外部消费者丢消息的问题
		`CREATE TABLE IF NOT EXISTS session_notifications (
			id BIGSERIAL PRIMARY KEY,
			topic VARCHAR(100) NOT NULL,
			match_id BIGINT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_notifications_match_id ON session_notifications(match_id)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	return nil
}
