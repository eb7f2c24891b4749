package redis

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgames-bridge/internal/domain"
)

func newTestStore(t *testing.T) (*ScoreStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewScoreStoreFromClient(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestScoreStore_SubmitScore(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	best, err := s.SubmitScore(ctx, "lb", "p1", 100, true)
	require.NoError(t, err)
	assert.True(t, best)

	best, err = s.SubmitScore(ctx, "lb", "p1", 90, true)
	require.NoError(t, err)
	assert.False(t, best)

	best, err = s.SubmitScore(ctx, "lb", "p1", 150, true)
	require.NoError(t, err)
	assert.True(t, best)

	stored, err := mr.ZScore("leaderboard:lb:scores", "p1")
	require.NoError(t, err)
	assert.Equal(t, float64(150), stored)
}

func TestScoreStore_LowerIsBetter(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.SubmitScore(ctx, "speedrun", "p1", 5000, false)
	require.NoError(t, err)
	best, err := s.SubmitScore(ctx, "speedrun", "p1", 6000, false)
	require.NoError(t, err)
	assert.False(t, best)
	best, err = s.SubmitScore(ctx, "speedrun", "p1", 4000, false)
	require.NoError(t, err)
	assert.True(t, best)

	_, err = s.SubmitScore(ctx, "speedrun", "p2", 4500, false)
	require.NoError(t, err)

	entry, err := s.PlayerScore(ctx, "speedrun", "p1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), entry.Score)
	assert.Equal(t, int64(1), entry.Rank)

	entry, err = s.PlayerScore(ctx, "speedrun", "p2", false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Rank)
}

func TestScoreStore_PlayerScore(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.PlayerScore(ctx, "lb", "p1", true)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)

	for player, score := range map[string]int64{"p1": 10, "p2": 30, "p3": 20} {
		_, err := s.SubmitScore(ctx, "lb", player, score, true)
		require.NoError(t, err)
	}

	entry, err := s.PlayerScore(ctx, "lb", "p3", true)
	require.NoError(t, err)
	assert.Equal(t, domain.ScoreEntry{LeaderboardID: "lb", PlayerID: "p3", Score: 20, Rank: 2}, *entry)

	_, err = s.PlayerScore(ctx, "lb", "nobody", true)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)
}

func TestScoreStore_ConcurrentSubmissionsKeepBest(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(score int64) {
			defer wg.Done()
			_, _ = s.SubmitScore(ctx, "lb", "p1", score, true)
		}(i)
	}
	wg.Wait()

	entry, err := s.PlayerScore(ctx, "lb", "p1", true)
	require.NoError(t, err)
	assert.Equal(t, int64(20), entry.Score)
}

func TestScoreStore_Unreachable(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	_, err := s.SubmitScore(context.Background(), "lb", "p1", 1, true)
	assert.Error(t, err)
	assert.Error(t, s.Ping(context.Background()))
}
