package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgames-bridge/internal/domain"
)

// newTestRepository connects to the database named by PLAYGAMES_TEST_POSTGRES_DSN
// and starts from empty tables.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	dsn := os.Getenv("PLAYGAMES_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PLAYGAMES_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)

	repo := NewRepositoryFromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(repo.Close)

	require.NoError(t, repo.RunMigrations(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE snapshots, achievements`)
	require.NoError(t, err)
	return repo
}

func TestRepository_Snapshots(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.LoadSnapshot(ctx, "p1", "slot1")
	assert.ErrorIs(t, err, domain.ErrSaveNotFound)

	snap := domain.Snapshot{
		Name: "slot1",
		Data: "abc",
		Metadata: domain.SnapshotMetadata{
			Title:         "slot1",
			SaveTime:      1700000000000,
			PlayedTime:    -1,
			ProgressValue: 40,
			DeviceName:    "emulator",
			PlayerID:      "p1",
		},
	}
	require.NoError(t, repo.SaveSnapshot(ctx, "p1", snap))

	got, err := repo.LoadSnapshot(ctx, "p1", "slot1")
	require.NoError(t, err)
	assert.Equal(t, snap, *got)

	snap.Data = "def"
	snap.Metadata.SaveTime++
	require.NoError(t, repo.SaveSnapshot(ctx, "p1", snap))
	got, err = repo.LoadSnapshot(ctx, "p1", "slot1")
	require.NoError(t, err)
	assert.Equal(t, "def", got.Data)

	require.NoError(t, repo.DeleteSnapshot(ctx, "p1", "slot1"))
	assert.ErrorIs(t, repo.DeleteSnapshot(ctx, "p1", "slot1"), domain.ErrSaveNotFound)
}

func TestRepository_Achievements(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Achievement(ctx, "p1", "a1")
	assert.ErrorIs(t, err, domain.ErrAchievementNotFound)

	state, err := repo.IncrementAchievement(ctx, "p1", "a1", 3, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.AchievementState{AchievementID: "a1", CurrentSteps: 3, TotalSteps: 5}, *state)

	state, err = repo.IncrementAchievement(ctx, "p1", "a1", 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, state.CurrentSteps)
	assert.True(t, state.Unlocked)

	state, err = repo.UnlockAchievement(ctx, "p1", "a2", 1)
	require.NoError(t, err)
	assert.True(t, state.Unlocked)

	stored, err := repo.Achievement(ctx, "p1", "a2")
	require.NoError(t, err)
	assert.Equal(t, *state, *stored)
}
