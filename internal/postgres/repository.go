package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/domain"
)

// Repository keeps cloud saves and achievement progress in PostgreSQL
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return NewRepositoryFromPool(pool, logger), nil
}

// NewRepositoryFromPool wraps an existing pool
func NewRepositoryFromPool(pool *pgxpool.Pool, logger *slog.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger,
	}
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Ping reports whether the database is reachable
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			player_id VARCHAR(64) NOT NULL,
			name VARCHAR(255) NOT NULL,
			data TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL,
			save_time BIGINT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (player_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			player_id VARCHAR(64) NOT NULL,
			achievement_id VARCHAR(128) NOT NULL,
			current_steps INT NOT NULL DEFAULT 0,
			total_steps INT NOT NULL,
			unlocked BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (player_id, achievement_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_save_time ON snapshots(player_id, save_time DESC)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}

// LoadSnapshot retrieves a save by name
func (r *Repository) LoadSnapshot(ctx context.Context, playerID, name string) (*domain.Snapshot, error) {
	query := `
		SELECT name, data, metadata
		FROM snapshots
		WHERE player_id = $1 AND name = $2
	`
	var snapshot domain.Snapshot
	var metadataJSON []byte
	err := r.pool.QueryRow(ctx, query, playerID, name).Scan(
		&snapshot.Name,
		&snapshot.Data,
		&metadataJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSaveNotFound
		}
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	if err := json.Unmarshal(metadataJSON, &snapshot.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return &snapshot, nil
}

// SaveSnapshot inserts or replaces a save
func (r *Repository) SaveSnapshot(ctx context.Context, playerID string, snapshot domain.Snapshot) error {
	metadataJSON, err := json.Marshal(snapshot.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	query := `
		INSERT INTO snapshots (player_id, name, data, metadata, save_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (player_id, name)
		DO UPDATE SET data = $3, metadata = $4, save_time = $5, updated_at = $6
	`
	_, err = r.pool.Exec(ctx, query,
		playerID,
		snapshot.Name,
		snapshot.Data,
		metadataJSON,
		snapshot.Metadata.SaveTime,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// DeleteSnapshot removes a save
func (r *Repository) DeleteSnapshot(ctx context.Context, playerID, name string) error {
	query := `DELETE FROM snapshots WHERE player_id = $1 AND name = $2`
	result, err := r.pool.Exec(ctx, query, playerID, name)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrSaveNotFound
	}
	return nil
}

// UnlockAchievement marks an achievement as unlocked with all steps complete
func (r *Repository) UnlockAchievement(ctx context.Context, playerID, achievementID string, totalSteps int) (*domain.AchievementState, error) {
	query := `
		INSERT INTO achievements (player_id, achievement_id, current_steps, total_steps, unlocked, updated_at)
		VALUES ($1, $2, $3::int, $3::int, TRUE, $4)
		ON CONFLICT (player_id, achievement_id)
		DO UPDATE SET current_steps = $3::int, total_steps = $3::int, unlocked = TRUE, updated_at = $4
		RETURNING current_steps, total_steps, unlocked
	`
	state := domain.AchievementState{AchievementID: achievementID}
	err := r.pool.QueryRow(ctx, query, playerID, achievementID, totalSteps, time.Now()).Scan(
		&state.CurrentSteps,
		&state.TotalSteps,
		&state.Unlocked,
	)
	if err != nil {
		return nil, fmt.Errorf("unlocking achievement: %w", err)
	}
	return &state, nil
}

// IncrementAchievement adds steps, capping at totalSteps and unlocking once reached
func (r *Repository) IncrementAchievement(ctx context.Context, playerID, achievementID string, steps, totalSteps int) (*domain.AchievementState, error) {
	query := `
		INSERT INTO achievements (player_id, achievement_id, current_steps, total_steps, unlocked, updated_at)
		VALUES ($1, $2, LEAST($3::int, $4::int), $4::int, $3::int >= $4::int, $5)
		ON CONFLICT (player_id, achievement_id)
		DO UPDATE SET
			current_steps = CASE
				WHEN achievements.unlocked THEN $4::int
				ELSE LEAST(achievements.current_steps + $3::int, $4::int)
			END,
			total_steps = $4::int,
			unlocked = achievements.unlocked OR achievements.current_steps + $3::int >= $4::int,
			updated_at = $5
		RETURNING current_steps, total_steps, unlocked
	`
	state := domain.AchievementState{AchievementID: achievementID}
	err := r.pool.QueryRow(ctx, query, playerID, achievementID, steps, totalSteps, time.Now()).Scan(
		&state.CurrentSteps,
		&state.TotalSteps,
		&state.Unlocked,
	)
	if err != nil {
		return nil, fmt.Errorf("incrementing achievement: %w", err)
	}

	if state.Unlocked {
		r.logger.Debug("achievement complete", "player_id", playerID, "achievement_id", achievementID)
	}
	return &state, nil
}

// Achievement retrieves a player's progress on an achievement
func (r *Repository) Achievement(ctx context.Context, playerID, achievementID string) (*domain.AchievementState, error) {
	query := `
		SELECT current_steps, total_steps, unlocked
		FROM achievements
		WHERE player_id = $1 AND achievement_id = $2
	`
	state := domain.AchievementState{AchievementID: achievementID}
	err := r.pool.QueryRow(ctx, query, playerID, achievementID).Scan(
		&state.CurrentSteps,
		&state.TotalSteps,
		&state.Unlocked,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("getting achievement: %w", err)
	}
	return &state, nil
}
