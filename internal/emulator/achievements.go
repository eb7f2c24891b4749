package emulator

import (
	"context"
	"errors"

	"github.com/playgames-bridge/internal/domain"
)

var errNonPositiveSteps = errors.New("numSteps must be greater than 0")

// unlockAchievement unlocks an achievement. Without wait the store error is
// only logged, as the platform queues the unlock.
func (e *Emulator) unlockAchievement(ctx context.Context, opts options, wait bool) Reply {
	achievementID, err := opts.getString("achievementId")
	if err != nil {
		return exception(err)
	}

	_, err = e.achievements.UnlockAchievement(ctx, e.playerID(), achievementID, e.cfg.TotalSteps(achievementID))
	if !wait {
		if err != nil {
			e.logger.Error("failed to unlock achievement", "error", err, "achievement_id", achievementID)
		}
		return e.send(domain.NewResponse(domain.StatusOK, ""))
	}
	if err != nil {
		return exception(err)
	}

	return e.send(domain.UnlockAchievementResult{
		Response:      domain.NewResponse(domain.StatusOK, ""),
		AchievementID: achievementID,
	})
}

func (e *Emulator) incrementAchievement(ctx context.Context, opts options, wait bool) Reply {
	achievementID, err := opts.getString("achievementId")
	if err != nil {
		return exception(err)
	}
	steps, err := opts.getInt("numSteps")
	if err != nil {
		return exception(err)
	}
	if steps <= 0 {
		return exception(errNonPositiveSteps)
	}

	state, err := e.achievements.IncrementAchievement(ctx, e.playerID(), achievementID, steps, e.cfg.TotalSteps(achievementID))
	if !wait {
		if err != nil {
			e.logger.Error("failed to increment achievement", "error", err, "achievement_id", achievementID)
		}
		return e.send(domain.NewResponse(domain.StatusOK, ""))
	}
	if err != nil {
		return exception(err)
	}

	return e.send(domain.IncrementAchievementResult{
		Response:      domain.NewResponse(domain.StatusOK, ""),
		AchievementID: achievementID,
		IsUnlocked:    state.Unlocked,
	})
}

// AchievementProgress returns the signed-in player's progress on an achievement
func (e *Emulator) AchievementProgress(ctx context.Context, achievementID string) (*domain.AchievementState, error) {
	return e.achievements.Achievement(ctx, e.playerID(), achievementID)
}
