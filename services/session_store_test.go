package services

import (
	"testing"
	"time"

	"matchsim-service/database"
	"matchsim-service/models"
)

func TestRowToSnapshot(t *testing.T) {
	weather := "Light Rain"
	temperature := 12
	intensity := 1.1
	start := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

	row := database.LiveMatchSessionRow{
		SessionID:      3,
		MatchID:        42,
		Phase:          "SECOND_HALF",
		CurrentMinute:  61,
		AdditionalTime: 2,
		HomeScore:      2,
		AwayScore:      1,
		Paused:         true,
		PauseReason:    "TECHNICAL",
		Weather:        &weather,
		Temperature:    &temperature,
		Intensity:      &intensity,
		SpectatorCount: 7,
		Events: `[
			{"id":1,"type":"KICK_OFF","minute":0,"side":"none"},
			{"id":2,"type":"GOAL","minute":12,"side":"home","home_score":1},
			{"id":3,"type":"CORNER","minute":30,"side":"away"},
			{"id":4,"type":"YELLOW_CARD","minute":44,"side":"home"}
		]`,
		StartTime:    &start,
		LastActivity: start.Add(time.Hour),
	}

	snap, err := rowToSnapshot(&row)
	if err != nil {
		t.Fatalf("rowToSnapshot failed: %v", err)
	}
	if snap.Phase != models.PhaseSecondHalf || snap.CurrentMinute != 61 {
		t.Errorf("Phase/minute mismatch: %s at %d", snap.Phase, snap.CurrentMinute)
	}
	if snap.PauseReason != models.PauseTechnical || !snap.Paused {
		t.Errorf("Pause state mismatch: %+v", snap)
	}
	if snap.Weather != weather || snap.Temperature != temperature || snap.Intensity != intensity {
		t.Errorf("Conditions mismatch: %s %d %v", snap.Weather, snap.Temperature, snap.Intensity)
	}
	if len(snap.Events) != 4 {
		t.Fatalf("Expected 4 events, got %d", len(snap.Events))
	}
	// 统计从日志折叠而来
	if snap.Stats.HomeShots != 1 || snap.Stats.AwayCorners != 1 || snap.Stats.HomeCards != 1 {
		t.Errorf("Stats fold mismatch: %+v", snap.Stats)
	}
	if snap.StartTime == nil || !snap.StartTime.Equal(start) {
		t.Error("Start time not carried over")
	}
}

func TestRowToSnapshotNullableColumns(t *testing.T) {
	row := database.LiveMatchSessionRow{
		SessionID: 1,
		MatchID:   9,
		Phase:     "PRE_MATCH",
		Events:    `[]`,
	}

	snap, err := rowToSnapshot(&row)
	if err != nil {
		t.Fatalf("rowToSnapshot failed: %v", err)
	}
	if snap.Weather != "" || snap.Temperature != 0 || snap.Intensity != 0 {
		t.Errorf("Expected zero conditions for NULL columns, got %s %d %v",
			snap.Weather, snap.Temperature, snap.Intensity)
	}
	if len(snap.Events) != 0 {
		t.Errorf("Expected empty event log, got %d", len(snap.Events))
	}
	if snap.StartTime != nil || snap.EndTime != nil {
		t.Error("Expected nil timestamps for NULL columns")
	}
}

func TestRowToSnapshotBadEventsJSON(t *testing.T) {
	row := database.LiveMatchSessionRow{
		MatchID: 5,
		Phase:   "FIRST_HALF",
		Events:  `{not json`,
	}
	if _, err := rowToSnapshot(&row); err == nil {
		t.Error("Expected error for corrupt events column")
	}
}
