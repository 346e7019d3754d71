package models

import "time"

// SessionRecord is one play session. Checkpoints of a session in progress
// are saved with Finished unset and are left out of statistics.
type SessionRecord struct {
	ID             string    `json:"id" yaml:"id"`
	Score          int64     `json:"score" yaml:"score"`
	StartedAt      time.Time `json:"started_at" yaml:"started_at"`
	EndedAt        time.Time `json:"ended_at" yaml:"ended_at"`
	DurationMillis int64     `json:"duration_millis" yaml:"duration_millis"`
	Finished       bool      `json:"finished" yaml:"finished"`
}

// Statistics aggregates every finished session.
type Statistics struct {
	GamesPlayed                  int64 `json:"games_played"`
	BestScore                    int64 `json:"best_score"`
	TotalScore                   int64 `json:"total_score"`
	AverageSessionDurationMillis int64 `json:"average_session_duration_millis"`
	LongestSessionDurationMillis int64 `json:"longest_session_duration_millis"`
}
