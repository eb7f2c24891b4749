package emulator

import (
	"context"
	"sort"
	"sync"

	"github.com/playgames-bridge/internal/domain"
)

// ScoreStore keeps leaderboard scores
type ScoreStore interface {
	// SubmitScore records score if it beats the player's best and reports
	// whether it did.
	SubmitScore(ctx context.Context, leaderboardID, playerID string, score int64, higherIsBetter bool) (bool, error)
	// PlayerScore returns domain.ErrScoreNotFound when the player has no score.
	PlayerScore(ctx context.Context, leaderboardID, playerID string, higherIsBetter bool) (*domain.ScoreEntry, error)
}

// SaveStore keeps cloud saves
type SaveStore interface {
	// LoadSnapshot returns domain.ErrSaveNotFound for unknown saves.
	LoadSnapshot(ctx context.Context, playerID, name string) (*domain.Snapshot, error)
	SaveSnapshot(ctx context.Context, playerID string, snapshot domain.Snapshot) error
	// DeleteSnapshot returns domain.ErrSaveNotFound for unknown saves.
	DeleteSnapshot(ctx context.Context, playerID, name string) error
}

// AchievementStore keeps achievement progress
type AchievementStore interface {
	UnlockAchievement(ctx context.Context, playerID, achievementID string, totalSteps int) (*domain.AchievementState, error)
	IncrementAchievement(ctx context.Context, playerID, achievementID string, steps, totalSteps int) (*domain.AchievementState, error)
	// Achievement returns domain.ErrAchievementNotFound when the player has
	// made no progress.
	Achievement(ctx context.Context, playerID, achievementID string) (*domain.AchievementState, error)
}

// ScorePublisher hands fire-and-forget submissions to an asynchronous pipeline
type ScorePublisher interface {
	PublishScore(ctx context.Context, event domain.ScoreEvent) error
}

// Stores groups the backends the emulator runs on
type Stores struct {
	Scores       ScoreStore
	Saves        SaveStore
	Achievements AchievementStore
}

// MemoryStores returns in-process backends for every store
func MemoryStores() Stores {
	return Stores{
		Scores:       NewMemoryScoreStore(),
		Saves:        NewMemorySaveStore(),
		Achievements: NewMemoryAchievementStore(),
	}
}

// Advance applies steps to an achievement, capping at totalSteps
func Advance(state domain.AchievementState, steps, totalSteps int) domain.AchievementState {
	state.TotalSteps = totalSteps
	if state.Unlocked {
		state.CurrentSteps = totalSteps
		return state
	}
	state.CurrentSteps += steps
	if state.CurrentSteps >= totalSteps {
		state.CurrentSteps = totalSteps
		state.Unlocked = true
	}
	return state
}

// Better reports whether score beats current in the given order
func Better(score, current int64, higherIsBetter bool) bool {
	if higherIsBetter {
		return score > current
	}
	return score < current
}

// MemoryScoreStore is a ScoreStore held in process memory
type MemoryScoreStore struct {
	mu     sync.RWMutex
	boards map[string]map[string]int64
}

// NewMemoryScoreStore creates an empty score store
func NewMemoryScoreStore() *MemoryScoreStore {
	return &MemoryScoreStore{boards: make(map[string]map[string]int64)}
}

func (s *MemoryScoreStore) SubmitScore(_ context.Context, leaderboardID, playerID string, score int64, higherIsBetter bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[leaderboardID]
	if !ok {
		board = make(map[string]int64)
		s.boards[leaderboardID] = board
	}
	if current, ok := board[playerID]; ok && !Better(score, current, higherIsBetter) {
		return false, nil
	}
	board[playerID] = score
	return true, nil
}

func (s *MemoryScoreStore) PlayerScore(_ context.Context, leaderboardID, playerID string, higherIsBetter bool) (*domain.ScoreEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board := s.boards[leaderboardID]
	score, ok := board[playerID]
	if !ok {
		return nil, domain.ErrScoreNotFound
	}

	players := make([]string, 0, len(board))
	for id := range board {
		players = append(players, id)
	}
	sort.Slice(players, func(i, j int) bool {
		a, b := board[players[i]], board[players[j]]
		if a != b {
			return Better(a, b, higherIsBetter)
		}
		return players[i] < players[j]
	})

	entry := &domain.ScoreEntry{LeaderboardID: leaderboardID, PlayerID: playerID, Score: score}
	for i, id := range players {
		if id == playerID {
			entry.Rank = int64(i + 1)
			break
		}
	}
	return entry, nil
}

// MemorySaveStore is a SaveStore held in process memory
type MemorySaveStore struct {
	mu    sync.RWMutex
	saves map[string]map[string]domain.Snapshot
}

// NewMemorySaveStore creates an empty save store
func NewMemorySaveStore() *MemorySaveStore {
	return &MemorySaveStore{saves: make(map[string]map[string]domain.Snapshot)}
}

func (s *MemorySaveStore) LoadSnapshot(_ context.Context, playerID, name string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.saves[playerID][name]
	if !ok {
		return nil, domain.ErrSaveNotFound
	}
	return &snapshot, nil
}

func (s *MemorySaveStore) SaveSnapshot(_ context.Context, playerID string, snapshot domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	saves, ok := s.saves[playerID]
	if !ok {
		saves = make(map[string]domain.Snapshot)
		s.saves[playerID] = saves
	}
	saves[snapshot.Name] = snapshot
	return nil
}

func (s *MemorySaveStore) DeleteSnapshot(_ context.Context, playerID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.saves[playerID][name]; !ok {
		return domain.ErrSaveNotFound
	}
	delete(s.saves[playerID], name)
	return nil
}

// MemoryAchievementStore is an AchievementStore held in process memory
type MemoryAchievementStore struct {
	mu    sync.Mutex
	state map[string]map[string]domain.AchievementState
}

// NewMemoryAchievementStore creates an empty achievement store
func NewMemoryAchievementStore() *MemoryAchievementStore {
	return &MemoryAchievementStore{state: make(map[string]map[string]domain.AchievementState)}
}

func (s *MemoryAchievementStore) update(playerID, achievementID string, fn func(domain.AchievementState) domain.AchievementState) *domain.AchievementState {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.state[playerID]
	if !ok {
		player = make(map[string]domain.AchievementState)
		s.state[playerID] = player
	}
	current, ok := player[achievementID]
	if !ok {
		current = domain.AchievementState{AchievementID: achievementID}
	}
	next := fn(current)
	player[achievementID] = next
	return &next
}

func (s *MemoryAchievementStore) UnlockAchievement(_ context.Context, playerID, achievementID string, totalSteps int) (*domain.AchievementState, error) {
	return s.update(playerID, achievementID, func(state domain.AchievementState) domain.AchievementState {
		state.TotalSteps = totalSteps
		state.CurrentSteps = totalSteps
		state.Unlocked = true
		return state
	}), nil
}

func (s *MemoryAchievementStore) IncrementAchievement(_ context.Context, playerID, achievementID string, steps, totalSteps int) (*domain.AchievementState, error) {
	return s.update(playerID, achievementID, func(state domain.AchievementState) domain.AchievementState {
		return Advance(state, steps, totalSteps)
	}), nil
}

func (s *MemoryAchievementStore) Achievement(_ context.Context, playerID, achievementID string) (*domain.AchievementState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.state[playerID][achievementID]
	if !ok {
		return nil, domain.ErrAchievementNotFound
	}
	return &state, nil
}
