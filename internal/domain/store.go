package domain

import "time"

// Snapshot is a stored cloud save
type Snapshot struct {
	Name     string           `json:"name"`
	Data     string           `json:"data"`
	Metadata SnapshotMetadata `json:"metadata"`
}

// ScoreEntry is a player's position on a leaderboard
type ScoreEntry struct {
	LeaderboardID string `json:"leaderboard_id"`
	PlayerID      string `json:"player_id"`
	Score         int64  `json:"score"`
	Rank          int64  `json:"rank"`
}

// ScoreEvent is a fire-and-forget score submission waiting to be applied
type ScoreEvent struct {
	LeaderboardID  string    `json:"leaderboard_id"`
	PlayerID       string    `json:"player_id"`
	Score          int64     `json:"score"`
	HigherIsBetter bool      `json:"higher_is_better"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// AchievementState is a player's progress on an achievement
type AchievementState struct {
	AchievementID string `json:"achievement_id"`
	CurrentSteps  int    `json:"current_steps"`
	TotalSteps    int    `json:"total_steps"`
	Unlocked      bool   `json:"unlocked"`
}
