package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgames-bridge/internal/bridge"
	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/domain"
	"github.com/playgames-bridge/internal/emulator"
	"github.com/playgames-bridge/internal/websocket"
)

func setupTestHandler(t *testing.T) (*Handler, *emulator.Emulator) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.DefaultConfig().Emulator
	e := emulator.New(emulator.MemoryStores(), &cfg, logger)
	hub := websocket.NewHub(e, time.Second, logger)
	go hub.Run()
	t.Cleanup(func() {
		hub.Stop()
		e.Close()
	})
	return NewHandler(e, hub, logger), e
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeAPI(t *testing.T, rr *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

func decodeReply(t *testing.T, rr *httptest.ResponseRecorder) emulator.Reply {
	t.Helper()
	var reply emulator.Reply
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&reply))
	return reply
}

func TestHealthCheck(t *testing.T) {
	h, _ := setupTestHandler(t)

	rr := do(t, h.Router(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeAPI(t, rr)
	assert.True(t, resp.Success)
}

func TestReadyCheck(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	rr := do(t, router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	h.AddReadinessCheck("redis", func(ctx context.Context) error { return errors.New("connection refused") })
	rr = do(t, router, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decodeAPI(t, rr)
	assert.False(t, resp.Success)
	assert.Equal(t, map[string]interface{}{"redis": "connection refused"}, resp.Data)
}

func TestInvokeCall(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	rr := do(t, router, http.MethodPost, "/api/v1/calls/isSignedIn", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	reply := decodeReply(t, rr)
	require.True(t, reply.OK)
	var signedIn domain.SignedInResponse
	require.NoError(t, json.Unmarshal(reply.Payload, &signedIn))
	assert.False(t, signedIn.IsSignedIn)

	reply = decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/loadGame", `{"saveName":"slot1"}`))
	require.False(t, reply.OK)
	assert.ErrorIs(t, bridge.ParseFailure(reply.Payload), domain.ErrNotSignedIn)

	reply = decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/auth", `{}`))
	require.True(t, reply.OK)

	reply = decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/saveGame", `{"saveName":"slot1","saveData":"abc"}`))
	require.True(t, reply.OK)

	reply = decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/loadGame", `{"saveName":"slot1"}`))
	require.True(t, reply.OK)
	var loaded domain.LoadGameResult
	require.NoError(t, json.Unmarshal(reply.Payload, &loaded))
	assert.Equal(t, "abc", loaded.SaveData)
}

func TestInvokeCall_Errors(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "invalid JSON",
			path:       "/api/v1/calls/auth",
			body:       `{"bad`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown action",
			path:       "/api/v1/calls/bogus",
			wantStatus: http.StatusOK,
			wantMsg:    emulator.InvalidAction,
		},
		{
			name:       "wrong service",
			path:       "/api/v1/calls/auth?service=Other",
			wantStatus: http.StatusOK,
			wantMsg:    "Class not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantMsg == "" {
				return
			}
			reply := decodeReply(t, rr)
			assert.False(t, reply.OK)
			assert.Equal(t, tt.wantMsg, bridge.ParseFailure(reply.Payload).Message)
		})
	}
}

func TestInjectConflict(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	rr := do(t, router, http.MethodPost, "/api/v1/emulator/conflicts", `{"save_name":"slot1","save_data":"remote"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/emulator/conflicts", `{"save_data":"remote"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(t, router, http.MethodPost, "/api/v1/emulator/conflicts", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	require.True(t, decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/auth", "")).OK)
	require.True(t, decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/saveGame", `{"saveName":"slot1","saveData":"local"}`)).OK)

	rr = do(t, router, http.MethodPost, "/api/v1/emulator/conflicts", `{"save_name":"slot1","save_data":"remote"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	resp := decodeAPI(t, rr)
	require.True(t, resp.Success)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["id"])

	reply := decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/loadGame", `{"saveName":"slot1"}`))
	require.False(t, reply.OK)
	assert.ErrorIs(t, bridge.ParseFailure(reply.Payload), domain.ErrSnapshotConflict)
}

func TestGetSave(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	rr := do(t, router, http.MethodGet, "/api/v1/emulator/saves/slot1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.True(t, decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/auth", "")).OK)
	require.True(t, decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/saveGame", `{"saveName":"slot1","saveData":"abc"}`)).OK)

	rr = do(t, router, http.MethodGet, "/api/v1/emulator/saves/slot1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Success bool            `json:"success"`
		Data    domain.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "slot1", resp.Data.Name)
	assert.Equal(t, "abc", resp.Data.Data)
	assert.Equal(t, "slot1", resp.Data.Metadata.Title)
}

func TestGetAchievement(t *testing.T) {
	h, _ := setupTestHandler(t)
	router := h.Router()

	rr := do(t, router, http.MethodGet, "/api/v1/emulator/achievements/ach_1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	require.True(t, decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/auth", "")).OK)
	require.True(t, decodeReply(t, do(t, router, http.MethodPost, "/api/v1/calls/incrementAchievementNow", `{"achievementId":"ach_1","numSteps":3}`)).OK)

	rr = do(t, router, http.MethodGet, "/api/v1/emulator/achievements/ach_1", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data domain.AchievementState `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 3, resp.Data.CurrentSteps)
	assert.False(t, resp.Data.Unlocked)
}

func TestGetWebSocketStats(t *testing.T) {
	h, _ := setupTestHandler(t)

	rr := do(t, h.Router(), http.MethodGet, "/api/v1/ws/stats", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data websocket.Stats `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, 0, resp.Data.Connections)
}

func TestMetricsRoute(t *testing.T) {
	h, _ := setupTestHandler(t)
	h.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("playgames_calls_total 1\n"))
	}))

	rr := do(t, h.Router(), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.Contains(rr.Body.Bytes(), []byte("playgames_calls_total")))
}

func TestCORS(t *testing.T) {
	h, _ := setupTestHandler(t)

	rr := do(t, h.Router(), http.MethodOptions, "/api/v1/calls/auth", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
