package domain

// Response is the envelope every native reply carries
type Response struct {
	Status  StatusCode `json:"status"`
	Message string     `json:"message"`
}

// NewResponse builds a base response
func NewResponse(status StatusCode, message string) Response {
	return Response{Status: status, Message: message}
}

// AuthFailedResponse is delivered to the failure callback of auth
type AuthFailedResponse struct {
	Response
	UserCancel bool `json:"userCancel"`
}

// SignedInResponse answers isSignedIn
type SignedInResponse struct {
	Response
	IsSignedIn bool `json:"isSignedIn"`
}

// PlayerProfile is the currently authenticated player
type PlayerProfile struct {
	Response
	DisplayName       string `json:"displayName"`
	PlayerID          string `json:"playerId"`
	Title             string `json:"title"`
	IconImageURI      string `json:"iconImageUri"`
	IconImageURL      string `json:"iconImageUrl"`
	HiResIconImageURI string `json:"hiResIconImageUri"`
	HiResIconImageURL string `json:"hiResIconImageUrl"`
}

// LeaderboardScore is the player's standing on a leaderboard. IsStale is set
// when the rank may lag behind recently submitted scores.
type LeaderboardScore struct {
	Response
	PlayerScore int64 `json:"playerScore"`
	PlayerRank  int64 `json:"playerRank"`
	IsStale     bool  `json:"isStale"`
}

// SubmitScoreResult is the outcome of submitScoreNow
type SubmitScoreResult struct {
	Response
	LeaderboardID  string `json:"leaderboardId"`
	PlayerID       string `json:"playerId"`
	FormattedScore string `json:"formattedScore"`
	NewBest        bool   `json:"newBest"`
	RawScore       int64  `json:"rawScore"`
	ScoreTag       string `json:"scoreTag"`
}

// UnlockAchievementResult is the outcome of unlockAchievementNow
type UnlockAchievementResult struct {
	Response
	AchievementID string `json:"achievementId"`
}

// IncrementAchievementResult is the outcome of incrementAchievementNow
type IncrementAchievementResult struct {
	Response
	AchievementID string `json:"achievementId"`
	IsUnlocked    bool   `json:"isUnlocked"`
}

// SnapshotMetadata describes a cloud save
type SnapshotMetadata struct {
	SaveTime              int64   `json:"saveTime"`
	Title                 string  `json:"title"`
	Description           string  `json:"description"`
	PlayedTime            float64 `json:"playedTime"`
	ProgressValue         float64 `json:"progressValue"`
	CoverImageAspectRatio float64 `json:"coverImageAspectRatio"`
	CoverImage            string  `json:"coverImage"`
	DeviceName            string  `json:"deviceName"`
	PlayerID              string  `json:"playerId"`
	PlayerDisplayName     string  `json:"playerDisplayName"`
	PlayerName            string  `json:"playerName"`
	PlayerTitle           string  `json:"playerTitle"`
	PlayerIconImage       string  `json:"playerIconImage"`
	PlayerHiResImage      string  `json:"playerHiResImage"`
}

// SnapshotConflictResponse reports divergent server and local saves
type SnapshotConflictResponse struct {
	Response
	ConflictID     string           `json:"conflictId"`
	ServerData     string           `json:"serverData"`
	ServerMetadata SnapshotMetadata `json:"serverMetadata"`
	LocalData      string           `json:"localData"`
	LocalMetadata  SnapshotMetadata `json:"localMetadata"`
}

// SaveGameResult is the outcome of saveGame
type SaveGameResult struct {
	Response
	Metadata SnapshotMetadata `json:"metadata"`
}

// LoadGameResult is the outcome of loadGame. It is also the failure payload
// of saveGame when the previous save time does not match.
type LoadGameResult struct {
	Response
	SaveData string           `json:"saveData"`
	Metadata SnapshotMetadata `json:"metadata"`
}

// GooglePlayError is the platform-specific error detail
type GooglePlayError struct {
	ErrorCode   int    `json:"errorCode"`
	ErrorString string `json:"errorString"`
}

// GooglePlayErrorResponse is sent when the platform services are unavailable
type GooglePlayErrorResponse struct {
	Response
	GooglePlayError GooglePlayError `json:"googlePlayError"`
}
