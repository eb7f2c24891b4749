package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.Bridge.URL)
	assert.Equal(t, SignInApprove, cfg.Emulator.SignIn)
	assert.Equal(t, StoreMemory, cfg.Emulator.ScoreStore)
	assert.Equal(t, StoreMemory, cfg.Emulator.SaveStore)
	assert.True(t, cfg.Emulator.PlayServices.Available())
	assert.Equal(t, 100, cfg.Emulator.DefaultTotalSteps)
	assert.Equal(t, "playgames-scores", cfg.Kafka.Topic)
	assert.False(t, cfg.Kafka.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestParse(t *testing.T) {
	t.Setenv("PGS_TEST_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(`
server:
  port: 9090
log:
  level: debug
  format: text
postgres:
  password: ${PGS_TEST_PASSWORD}
emulator:
  sign_in: cancel
  play_services:
    error_code: 2
  lower_is_better: [speedrun]
  achievements:
    collector: 10
  latency: 50ms
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "ws://localhost:9090/ws", cfg.Bridge.URL)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.Equal(t, "s3cret", cfg.Postgres.Password)
	assert.Equal(t, SignInCancel, cfg.Emulator.SignIn)
	assert.False(t, cfg.Emulator.PlayServices.Available())
	assert.Equal(t, "SERVICE_VERSION_UPDATE_REQUIRED", cfg.Emulator.PlayServices.ErrorString)
	assert.False(t, cfg.Emulator.HigherIsBetter("speedrun"))
	assert.True(t, cfg.Emulator.HigherIsBetter("highscore"))
	assert.Equal(t, 10, cfg.Emulator.TotalSteps("collector"))
	assert.Equal(t, 100, cfg.Emulator.TotalSteps("unknown"))
	assert.Equal(t, 50*time.Millisecond, cfg.Emulator.Latency)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]string{
		"sign in":     "emulator:\n  sign_in: maybe\n",
		"score store": "emulator:\n  score_store: mongo\n",
		"save store":  "emulator:\n  save_store: redis\n",
		"log format":  "log:\n  format: xml\n",
		"bad yaml":    "server: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLogConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, (&LogConfig{Level: "warn"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&LogConfig{Level: "loud"}).SlogLevel())
}
