package emulator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgames-bridge/internal/domain"
)

func TestMemoryScoreStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryScoreStore()

	_, err := s.PlayerScore(ctx, "lb", "p1", true)
	assert.ErrorIs(t, err, domain.ErrScoreNotFound)

	for player, score := range map[string]int64{"p1": 100, "p2": 300, "p3": 200, "p4": 200} {
		best, err := s.SubmitScore(ctx, "lb", player, score, true)
		require.NoError(t, err)
		assert.True(t, best)
	}

	best, err := s.SubmitScore(ctx, "lb", "p1", 50, true)
	require.NoError(t, err)
	assert.False(t, best)

	tests := []struct {
		player string
		score  int64
		rank   int64
	}{
		{"p2", 300, 1},
		{"p3", 200, 2},
		{"p4", 200, 3},
		{"p1", 100, 4},
	}
	for _, tt := range tests {
		entry, err := s.PlayerScore(ctx, "lb", tt.player, true)
		require.NoError(t, err)
		assert.Equal(t, tt.score, entry.Score, tt.player)
		assert.Equal(t, tt.rank, entry.Rank, tt.player)
	}

	entry, err := s.PlayerScore(ctx, "lb", "p1", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.Rank)
}

func TestMemorySaveStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySaveStore()

	_, err := s.LoadSnapshot(ctx, "p1", "slot1")
	assert.ErrorIs(t, err, domain.ErrSaveNotFound)
	assert.ErrorIs(t, s.DeleteSnapshot(ctx, "p1", "slot1"), domain.ErrSaveNotFound)

	snap := domain.Snapshot{Name: "slot1", Data: "abc", Metadata: domain.SnapshotMetadata{SaveTime: 42}}
	require.NoError(t, s.SaveSnapshot(ctx, "p1", snap))

	got, err := s.LoadSnapshot(ctx, "p1", "slot1")
	require.NoError(t, err)
	assert.Equal(t, snap, *got)

	_, err = s.LoadSnapshot(ctx, "p2", "slot1")
	assert.ErrorIs(t, err, domain.ErrSaveNotFound)

	require.NoError(t, s.DeleteSnapshot(ctx, "p1", "slot1"))
	_, err = s.LoadSnapshot(ctx, "p1", "slot1")
	assert.ErrorIs(t, err, domain.ErrSaveNotFound)
}

func TestMemoryAchievementStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryAchievementStore()

	_, err := s.Achievement(ctx, "p1", "a1")
	assert.ErrorIs(t, err, domain.ErrAchievementNotFound)

	state, err := s.IncrementAchievement(ctx, "p1", "a1", 4, 10)
	require.NoError(t, err)
	assert.Equal(t, 4, state.CurrentSteps)
	assert.False(t, state.Unlocked)

	state, err = s.IncrementAchievement(ctx, "p1", "a1", 20, 10)
	require.NoError(t, err)
	assert.Equal(t, 10, state.CurrentSteps)
	assert.True(t, state.Unlocked)

	state, err = s.UnlockAchievement(ctx, "p1", "a2", 1)
	require.NoError(t, err)
	assert.True(t, state.Unlocked)

	stored, err := s.Achievement(ctx, "p1", "a2")
	require.NoError(t, err)
	assert.Equal(t, *state, *stored)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		state    domain.AchievementState
		steps    int
		total    int
		want     int
		unlocked bool
	}{
		{"partial", domain.AchievementState{}, 3, 10, 3, false},
		{"exact", domain.AchievementState{CurrentSteps: 7}, 3, 10, 10, true},
		{"past total", domain.AchievementState{CurrentSteps: 7}, 30, 10, 10, true},
		{"already unlocked", domain.AchievementState{CurrentSteps: 10, Unlocked: true}, 5, 10, 10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Advance(tt.state, tt.steps, tt.total)
			assert.Equal(t, tt.want, got.CurrentSteps)
			assert.Equal(t, tt.unlocked, got.Unlocked)
			assert.Equal(t, tt.total, got.TotalSteps)
		})
	}
}
