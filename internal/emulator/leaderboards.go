package emulator

import (
	"context"
	"errors"
	"time"

	"github.com/playgames-bridge/internal/domain"
)

func (e *Emulator) submitScore(ctx context.Context, opts options) Reply {
	leaderboardID, err := opts.getString("leaderboardId")
	if err != nil {
		return exception(err)
	}
	score, err := opts.getLong("score")
	if err != nil {
		return exception(err)
	}

	event := domain.ScoreEvent{
		LeaderboardID:  leaderboardID,
		PlayerID:       e.playerID(),
		Score:          score,
		HigherIsBetter: e.cfg.HigherIsBetter(leaderboardID),
		SubmittedAt:    e.now(),
	}
	e.markInFlight(event)

	if e.publisher != nil {
		err := e.publisher.PublishScore(ctx, event)
		if err == nil {
			return e.send(domain.NewResponse(domain.StatusOK, "submitScore: score submitted successfully"))
		}
		e.logger.Warn("failed to publish score, applying locally",
			"error", err,
			"leaderboard_id", leaderboardID,
		)
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		applyCtx, cancel := context.WithTimeout(context.Background(), e.cfg.OperationLimit)
		defer cancel()
		if err := e.ApplyScores(applyCtx, []domain.ScoreEvent{event}); err != nil {
			e.logger.Error("failed to apply score", "error", err, "leaderboard_id", leaderboardID)
		}
	}()

	return e.send(domain.NewResponse(domain.StatusOK, "submitScore: score submitted successfully"))
}

// ApplyScores writes fire-and-forget submissions to the score store. Scores
// stay stale until their event has been applied.
func (e *Emulator) ApplyScores(ctx context.Context, events []domain.ScoreEvent) error {
	var errs []error
	for _, event := range events {
		_, err := e.scores.SubmitScore(ctx, event.LeaderboardID, event.PlayerID, event.Score, event.HigherIsBetter)
		e.markApplied(event)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.logger.Debug("score applied",
			"leaderboard_id", event.LeaderboardID,
			"player_id", event.PlayerID,
			"score", event.Score,
			"lag", time.Since(event.SubmittedAt),
		)
	}
	return errors.Join(errs...)
}

func (e *Emulator) markInFlight(event domain.ScoreEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight[scoreKey(event.LeaderboardID, event.PlayerID)]++
}

func (e *Emulator) markApplied(event domain.ScoreEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	key := scoreKey(event.LeaderboardID, event.PlayerID)
	if e.inFlight[key] <= 1 {
		delete(e.inFlight, key)
		return
	}
	e.inFlight[key]--
}

func (e *Emulator) isStale(leaderboardID, playerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[scoreKey(leaderboardID, playerID)] > 0
}

// submitScoreNow writes the score immediately. When the score is not a new
// best the result carries the standing best score.
func (e *Emulator) submitScoreNow(ctx context.Context, opts options) Reply {
	leaderboardID, err := opts.getString("leaderboardId")
	if err != nil {
		return exception(err)
	}
	score, err := opts.getLong("score")
	if err != nil {
		return exception(err)
	}

	higherIsBetter := e.cfg.HigherIsBetter(leaderboardID)
	newBest, err := e.scores.SubmitScore(ctx, leaderboardID, e.playerID(), score, higherIsBetter)
	if err != nil {
		return exception(err)
	}

	best := score
	if !newBest {
		entry, err := e.scores.PlayerScore(ctx, leaderboardID, e.playerID(), higherIsBetter)
		if err != nil {
			return exception(err)
		}
		best = entry.Score
	}

	return e.send(domain.SubmitScoreResult{
		Response:       domain.NewResponse(domain.StatusOK, ""),
		LeaderboardID:  leaderboardID,
		PlayerID:       e.playerID(),
		FormattedScore: e.formatScore(best),
		NewBest:        newBest,
		RawScore:       best,
		ScoreTag:       "",
	})
}

func (e *Emulator) getPlayerScore(ctx context.Context, opts options) Reply {
	leaderboardID, err := opts.getString("leaderboardId")
	if err != nil {
		return exception(err)
	}

	entry, err := e.scores.PlayerScore(ctx, leaderboardID, e.playerID(), e.cfg.HigherIsBetter(leaderboardID))
	if errors.Is(err, domain.ErrScoreNotFound) {
		return e.send(domain.NewResponse(domain.StatusUnknownError, "There isn't any score record for this player"))
	}
	if err != nil {
		return exception(err)
	}

	return e.send(domain.LeaderboardScore{
		Response:    domain.NewResponse(domain.StatusOK, ""),
		PlayerScore: entry.Score,
		PlayerRank:  entry.Rank,
		IsStale:     e.isStale(leaderboardID, e.playerID()),
	})
}
