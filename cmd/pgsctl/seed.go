package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/playgames-bridge/internal/domain"
	"github.com/playgames-bridge/internal/emulator"
	"github.com/playgames-bridge/internal/kafka"
)

// SeedCmd fills a leaderboard with rival players so ranks have company.
// Scores go through the same Kafka topic the emulator consumes.
type SeedCmd struct {
	Leaderboard string        `short:"l" required:"" help:"Leaderboard ID."`
	Players     int           `short:"n" default:"100" help:"Number of rival players."`
	Rate        int           `short:"r" default:"50" help:"Updates per second after the initial population."`
	Duration    time.Duration `short:"d" help:"Keep updating rival scores for this long (0 = initial population only)."`
}

var errNoPlayers = errors.New("players must be greater than 0")

// Validate is called by kong after parsing
func (c *SeedCmd) Validate() error {
	if c.Players <= 0 {
		return errNoPlayers
	}
	return nil
}

func (c *SeedCmd) Run(globals *CLI) error {
	cfg := globals.loadConfig()
	logger := globals.logger()

	producer, err := kafka.NewProducer(&cfg.Kafka, logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := &seeder{
		publisher:      producer,
		leaderboardID:  c.Leaderboard,
		higherIsBetter: cfg.Emulator.HigherIsBetter(c.Leaderboard),
		players:        c.Players,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		out:            os.Stdout,
	}

	fmt.Printf("Publishing %d rival players to %s on %s\n", c.Players, cfg.Kafka.Topic, c.Leaderboard)
	sent, err := s.populate(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d players\n", sent)

	if c.Duration <= 0 {
		return nil
	}
	updates, err := s.run(ctx, c.Rate, c.Duration)
	fmt.Printf("Sent %d updates\n", updates)
	return err
}

var rivalPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

func rivalName(idx int) string {
	prefix := rivalPrefixes[idx%len(rivalPrefixes)]
	return fmt.Sprintf("%s%d", prefix, idx/len(rivalPrefixes)+1)
}

type seeder struct {
	publisher      emulator.ScorePublisher
	leaderboardID  string
	higherIsBetter bool
	players        int
	rng            *rand.Rand
	out            io.Writer
}

func (s *seeder) publish(ctx context.Context, playerIdx int, score int64) error {
	return s.publisher.PublishScore(ctx, domain.ScoreEvent{
		LeaderboardID:  s.leaderboardID,
		PlayerID:       rivalName(playerIdx),
		Score:          score,
		HigherIsBetter: s.higherIsBetter,
		SubmittedAt:    time.Now(),
	})
}

// populate gives every rival an initial score
func (s *seeder) populate(ctx context.Context) (int, error) {
	for i := 0; i < s.players; i++ {
		if err := s.publish(ctx, i, int64(s.rng.Intn(5000)+1000)); err != nil {
			return i, fmt.Errorf("publishing initial score: %w", err)
		}
	}
	return s.players, nil
}

// run publishes rate updates per second until d elapses or ctx ends. The top
// twenty rivals get most of the updates so the head of the board moves.
func (s *seeder) run(ctx context.Context, rate int, d time.Duration) (int, error) {
	if s.players <= 0 {
		return 0, errNoPlayers
	}
	if rate <= 0 {
		rate = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	deadline := time.NewTimer(d)
	defer deadline.Stop()

	var sent int
	for {
		select {
		case <-ctx.Done():
			return sent, nil
		case <-deadline.C:
			return sent, nil
		case <-ticker.C:
			idx := s.pickRival()
			if err := s.publish(ctx, idx, s.updateScore(idx)); err != nil {
				return sent, fmt.Errorf("publishing update: %w", err)
			}
			sent++
		}
	}
}

func (s *seeder) pickRival() int {
	if s.players <= 20 || s.rng.Intn(100) < 70 {
		return s.rng.Intn(min(s.players, 20))
	}
	return s.rng.Intn(s.players-20) + 20
}

func (s *seeder) updateScore(idx int) int64 {
	switch {
	case idx < 10:
		return int64(s.rng.Intn(800) + 400)
	case idx < 50:
		return int64(s.rng.Intn(600) + 300)
	default:
		return int64(s.rng.Intn(400) + 200)
	}
}
