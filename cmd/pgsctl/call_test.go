package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgames-bridge/internal/bridge"
	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/emulator"
)

func TestParseStep(t *testing.T) {
	tests := []struct {
		name      string
		arg       string
		wantInput string
		wantErr   bool
	}{
		{name: "bare action", arg: "isSignedIn"},
		{name: "with input", arg: `loadGame={"saveName":"slot1"}`, wantInput: `{"saveName":"slot1"}`},
		{name: "unknown action", arg: "bogus", wantErr: true},
		{name: "invalid JSON", arg: `loadGame={"saveName"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseStep(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInput, string(s.input))
		})
	}
}

func newDispatcher(t *testing.T) *bridge.Dispatcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig().Emulator
	e := emulator.New(emulator.MemoryStores(), &cfg, logger)
	t.Cleanup(e.Close)
	return bridge.NewDispatcher(e, logger)
}

func TestRunSteps(t *testing.T) {
	d := newDispatcher(t)
	steps, err := parseSteps([]string{
		"auth",
		`saveGame={"saveName":"slot1","saveData":"abc"}`,
		`loadGame={"saveName":"slot1"}`,
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runSteps(context.Background(), d, steps, false, &out))

	assert.Contains(t, out.String(), "auth ok")
	assert.Contains(t, out.String(), "saveGame ok")
	assert.Contains(t, out.String(), `"saveData":"abc"`)
}

func TestRunSteps_StopsOnFailure(t *testing.T) {
	d := newDispatcher(t)
	steps, err := parseSteps([]string{`loadGame={"saveName":"slot1"}`, "isSignedIn"})
	require.NoError(t, err)

	var out bytes.Buffer
	err = runSteps(context.Background(), d, steps, false, &out)

	assert.True(t, errors.Is(err, errStepFailed))
	assert.Contains(t, out.String(), "loadGame failed")
	assert.NotContains(t, out.String(), "isSignedIn")
}

func TestRunSteps_KeepGoing(t *testing.T) {
	d := newDispatcher(t)
	steps, err := parseSteps([]string{`loadGame={"saveName":"slot1"}`, "isSignedIn"})
	require.NoError(t, err)

	var out bytes.Buffer
	err = runSteps(context.Background(), d, steps, true, &out)

	assert.ErrorIs(t, err, errStepFailed)
	assert.Contains(t, out.String(), "isSignedIn ok")
}
