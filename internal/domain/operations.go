package domain

// Operation names as understood by the native side
const (
	ActionAuth                    = "auth"
	ActionSignOut                 = "signOut"
	ActionIsSignedIn              = "isSignedIn"
	ActionShowPlayer              = "showPlayer"
	ActionSubmitScore             = "submitScore"
	ActionSubmitScoreNow          = "submitScoreNow"
	ActionGetPlayerScore          = "getPlayerScore"
	ActionShowAllLeaderboards     = "showAllLeaderboards"
	ActionShowLeaderboard         = "showLeaderboard"
	ActionUnlockAchievement       = "unlockAchievement"
	ActionUnlockAchievementNow    = "unlockAchievementNow"
	ActionIncrementAchievement    = "incrementAchievement"
	ActionIncrementAchievementNow = "incrementAchievementNow"
	ActionShowAchievements        = "showAchievements"
	ActionSaveGame                = "saveGame"
	ActionLoadGame                = "loadGame"
	ActionResolveSnapshotConflict = "resolveSnapshotConflict"
	ActionDeleteSaveGame          = "deleteSaveGame"
)

// Operations is the full operation catalogue.
var Operations = []string{
	ActionAuth,
	ActionSignOut,
	ActionIsSignedIn,
	ActionShowPlayer,
	ActionSubmitScore,
	ActionSubmitScoreNow,
	ActionGetPlayerScore,
	ActionShowAllLeaderboards,
	ActionShowLeaderboard,
	ActionUnlockAchievement,
	ActionUnlockAchievementNow,
	ActionIncrementAchievement,
	ActionIncrementAchievementNow,
	ActionShowAchievements,
	ActionSaveGame,
	ActionLoadGame,
	ActionResolveSnapshotConflict,
	ActionDeleteSaveGame,
}

// IsOperation reports whether name is in the catalogue
func IsOperation(name string) bool {
	for _, op := range Operations {
		if op == name {
			return true
		}
	}
	return false
}

// Record is an untyped input record. An empty Record is what every operation
// receives when the caller omits its input.
type Record map[string]interface{}

// AuthInput is the input of auth
type AuthInput struct {
	Silent bool `json:"silent,omitempty"`
}

// SubmitScoreInput is shared by submitScore and submitScoreNow
type SubmitScoreInput struct {
	Score         int64  `json:"score"`
	LeaderboardID string `json:"leaderboardId"`
}

// LeaderboardInput is the input of getPlayerScore and showLeaderboard
type LeaderboardInput struct {
	LeaderboardID string `json:"leaderboardId"`
}

// AchievementInput is the input of unlockAchievement and unlockAchievementNow
type AchievementInput struct {
	AchievementID string `json:"achievementId"`
}

// IncrementAchievementInput is the input of incrementAchievement and incrementAchievementNow
type IncrementAchievementInput struct {
	AchievementID string `json:"achievementId"`
	NumSteps      int    `json:"numSteps"`
}

// SaveGameInput is the input of saveGame. PreviousSaveTime and
// ResolutionPolicy are optional; when nil nothing is forwarded and the native
// defaults apply (no previous-save check, manual resolution).
type SaveGameInput struct {
	SaveName         string            `json:"saveName"`
	SaveData         string            `json:"saveData"`
	PreviousSaveTime *int64            `json:"previousSaveTime,omitempty"`
	ResolutionPolicy *ResolutionPolicy `json:"resolutionPolicy,omitempty"`
}

// SaveNameInput is the input of loadGame and deleteSaveGame
type SaveNameInput struct {
	SaveName string `json:"saveName"`
}

// ResolveConflictInput is the input of resolveSnapshotConflict
type ResolveConflictInput struct {
	UseLocal bool `json:"useLocal,omitempty"`
}
