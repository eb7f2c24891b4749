package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/playgames-bridge/internal/domain"
)

// FailureFunc receives a classified failure
type FailureFunc func(Failure)

// call wires typed callbacks onto Call. A nil callback keeps the default
// logging handler.
func call[T any](d *Dispatcher, action string, input interface{}, onSuccess func(T), onFailure FailureFunc) {
	var success, failure Callback
	if onFailure != nil {
		failure = func(payload json.RawMessage) {
			onFailure(ParseFailure(payload))
		}
	}
	if onSuccess != nil {
		success = func(payload json.RawMessage) {
			var result T
			if err := decodeResult(payload, &result); err != nil {
				f := Failure{
					Kind:    FailureMessage,
					Status:  domain.StatusUnknownError,
					Message: fmt.Sprintf("decoding %s result: %v", action, err),
				}
				if onFailure != nil {
					onFailure(f)
				} else {
					d.logger.Warn(domain.ServiceName+"."+action+": failed on execution", "action", action, "failure", f.Error())
				}
				return
			}
			onSuccess(result)
		}
	}
	d.Call(action, input, success, failure)
}

func decodeResult(payload json.RawMessage, v interface{}) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

// Auth signs the player in. With Silent set no UI is shown and the call fails
// when there is no previous session.
func (d *Dispatcher) Auth(in domain.AuthInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionAuth, in, onSuccess, onFailure)
}

// SignOut ends the current session
func (d *Dispatcher) SignOut(onSuccess func(), onFailure FailureFunc) {
	var success func(json.RawMessage)
	if onSuccess != nil {
		success = func(json.RawMessage) { onSuccess() }
	}
	call(d, domain.ActionSignOut, nil, success, onFailure)
}

// IsSignedIn reports the session state
func (d *Dispatcher) IsSignedIn(onSuccess func(domain.SignedInResponse), onFailure FailureFunc) {
	call(d, domain.ActionIsSignedIn, nil, onSuccess, onFailure)
}

// ShowPlayer fetches the signed-in player's profile
func (d *Dispatcher) ShowPlayer(onSuccess func(domain.PlayerProfile), onFailure FailureFunc) {
	call(d, domain.ActionShowPlayer, nil, onSuccess, onFailure)
}

// SubmitScore submits a score without waiting for the leaderboard to accept it
func (d *Dispatcher) SubmitScore(in domain.SubmitScoreInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionSubmitScore, in, onSuccess, onFailure)
}

// SubmitScoreNow submits a score and waits for the submission result
func (d *Dispatcher) SubmitScoreNow(in domain.SubmitScoreInput, onSuccess func(domain.SubmitScoreResult), onFailure FailureFunc) {
	call(d, domain.ActionSubmitScoreNow, in, onSuccess, onFailure)
}

// GetPlayerScore loads the player's all-time public score on a leaderboard
func (d *Dispatcher) GetPlayerScore(in domain.LeaderboardInput, onSuccess func(domain.LeaderboardScore), onFailure FailureFunc) {
	call(d, domain.ActionGetPlayerScore, in, onSuccess, onFailure)
}

// ShowAllLeaderboards opens the native leaderboard list
func (d *Dispatcher) ShowAllLeaderboards(onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionShowAllLeaderboards, nil, onSuccess, onFailure)
}

// ShowLeaderboard opens one native leaderboard
func (d *Dispatcher) ShowLeaderboard(in domain.LeaderboardInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionShowLeaderboard, in, onSuccess, onFailure)
}

// UnlockAchievement unlocks an achievement without waiting for the result
func (d *Dispatcher) UnlockAchievement(in domain.AchievementInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionUnlockAchievement, in, onSuccess, onFailure)
}

// UnlockAchievementNow unlocks an achievement and waits for the result
func (d *Dispatcher) UnlockAchievementNow(in domain.AchievementInput, onSuccess func(domain.UnlockAchievementResult), onFailure FailureFunc) {
	call(d, domain.ActionUnlockAchievementNow, in, onSuccess, onFailure)
}

// IncrementAchievement adds steps to an incremental achievement
func (d *Dispatcher) IncrementAchievement(in domain.IncrementAchievementInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionIncrementAchievement, in, onSuccess, onFailure)
}

// IncrementAchievementNow adds steps and reports whether the achievement is now unlocked
func (d *Dispatcher) IncrementAchievementNow(in domain.IncrementAchievementInput, onSuccess func(domain.IncrementAchievementResult), onFailure FailureFunc) {
	call(d, domain.ActionIncrementAchievementNow, in, onSuccess, onFailure)
}

// ShowAchievements opens the native achievements view
func (d *Dispatcher) ShowAchievements(onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionShowAchievements, nil, onSuccess, onFailure)
}

// SaveGame writes a cloud save
func (d *Dispatcher) SaveGame(in domain.SaveGameInput, onSuccess func(domain.SaveGameResult), onFailure FailureFunc) {
	call(d, domain.ActionSaveGame, in, onSuccess, onFailure)
}

// LoadGame reads a cloud save
func (d *Dispatcher) LoadGame(in domain.SaveNameInput, onSuccess func(domain.LoadGameResult), onFailure FailureFunc) {
	call(d, domain.ActionLoadGame, in, onSuccess, onFailure)
}

// ResolveSnapshotConflict settles the last reported conflict, keeping the
// local snapshot when UseLocal is set and the server one otherwise.
func (d *Dispatcher) ResolveSnapshotConflict(in domain.ResolveConflictInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionResolveSnapshotConflict, in, onSuccess, onFailure)
}

// DeleteSaveGame removes a cloud save
func (d *Dispatcher) DeleteSaveGame(in domain.SaveNameInput, onSuccess func(domain.Response), onFailure FailureFunc) {
	call(d, domain.ActionDeleteSaveGame, in, onSuccess, onFailure)
}
