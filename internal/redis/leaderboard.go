package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/domain"
)

// ScoreStore keeps leaderboard scores in Redis sorted sets, one per leaderboard
type ScoreStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewScoreStore connects to Redis and returns a score store
func NewScoreStore(cfg *config.RedisConfig, logger *slog.Logger) (*ScoreStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewScoreStoreFromClient(client, logger), nil
}

// NewScoreStoreFromClient wraps an existing client
func NewScoreStoreFromClient(client *redis.Client, logger *slog.Logger) *ScoreStore {
	return &ScoreStore{
		client: client,
		logger: logger,
	}
}

// Close closes the Redis connection
func (s *ScoreStore) Close() error {
	return s.client.Close()
}

// Ping reports whether Redis is reachable
func (s *ScoreStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *ScoreStore) leaderboardKey(leaderboardID string) string {
	return fmt.Sprintf("leaderboard:%s:scores", leaderboardID)
}

// SubmitScore records score when it beats the player's best and reports whether it did.
// ZADD GT/LT makes the compare-and-set atomic.
func (s *ScoreStore) SubmitScore(ctx context.Context, leaderboardID, playerID string, score int64, higherIsBetter bool) (bool, error) {
	key := s.leaderboardKey(leaderboardID)

	changed, err := s.client.ZAddArgs(ctx, key, redis.ZAddArgs{
		GT:      higherIsBetter,
		LT:      !higherIsBetter,
		Ch:      true,
		Members: []redis.Z{{Score: float64(score), Member: playerID}},
	}).Result()
	if err != nil {
		return false, fmt.Errorf("setting score: %w", err)
	}

	if changed > 0 {
		s.logger.Debug("new best score",
			"leaderboard_id", leaderboardID,
			"player_id", playerID,
			"score", score,
		)
	}
	return changed > 0, nil
}

// PlayerScore returns a player's best score and 1-based rank
func (s *ScoreStore) PlayerScore(ctx context.Context, leaderboardID, playerID string, higherIsBetter bool) (*domain.ScoreEntry, error) {
	key := s.leaderboardKey(leaderboardID)

	// Use pipeline to get both rank and score
	pipe := s.client.Pipeline()
	var rankCmd *redis.IntCmd
	if higherIsBetter {
		rankCmd = pipe.ZRevRank(ctx, key, playerID)
	} else {
		rankCmd = pipe.ZRank(ctx, key, playerID)
	}
	scoreCmd := pipe.ZScore(ctx, key, playerID)
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting player score: %w", err)
	}

	rank, err := rankCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting rank result: %w", err)
	}
	score, err := scoreCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("getting score result: %w", err)
	}

	return &domain.ScoreEntry{
		LeaderboardID: leaderboardID,
		PlayerID:      playerID,
		Score:         int64(score),
		Rank:          rank + 1,
	}, nil
}
