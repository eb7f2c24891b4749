package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playgames-bridge/internal/bridge"
	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/domain"
	"github.com/playgames-bridge/internal/emulator"
	wsproto "github.com/playgames-bridge/internal/websocket"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// startHost runs an emulator behind a hub, the way the emulator binary does
func startHost(t *testing.T) (*wsproto.Hub, *emulator.Emulator, string) {
	t.Helper()
	cfg := config.DefaultConfig().Emulator
	e := emulator.New(emulator.MemoryStores(), &cfg, discardLogger())
	hub := wsproto.NewHub(e, time.Second, discardLogger())
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsproto.ServeWs(hub, discardLogger(), w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
		e.Close()
	})
	return hub, e, wsURL(srv)
}

func dial(t *testing.T, url string, callTimeout time.Duration) *Client {
	t.Helper()
	c, err := Dial(context.Background(), &config.BridgeConfig{
		URL:              url,
		HandshakeTimeout: time.Second,
		CallTimeout:      callTimeout,
	}, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type result struct {
	ok      bool
	payload json.RawMessage
}

func call(t *testing.T, d *bridge.Dispatcher, action string, input interface{}) result {
	t.Helper()
	done := make(chan result, 2)
	d.Call(action, input,
		func(p json.RawMessage) { done <- result{ok: true, payload: p} },
		func(p json.RawMessage) { done <- result{ok: false, payload: p} },
	)
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no callback", action)
		return result{}
	}
}

func TestClient_RoundTrip(t *testing.T) {
	_, _, url := startHost(t)
	d := bridge.NewDispatcher(dial(t, url, 0), discardLogger())

	r := call(t, d, domain.ActionIsSignedIn, nil)
	require.True(t, r.ok)
	var signedIn domain.SignedInResponse
	require.NoError(t, json.Unmarshal(r.payload, &signedIn))
	assert.False(t, signedIn.IsSignedIn)

	r = call(t, d, domain.ActionLoadGame, domain.SaveNameInput{SaveName: "slot1"})
	require.False(t, r.ok)
	assert.ErrorIs(t, bridge.ParseFailure(r.payload), domain.ErrNotSignedIn)

	require.True(t, call(t, d, domain.ActionAuth, domain.AuthInput{}).ok)
	require.True(t, call(t, d, domain.ActionSaveGame, domain.SaveGameInput{SaveName: "slot1", SaveData: "abc"}).ok)

	r = call(t, d, domain.ActionLoadGame, domain.SaveNameInput{SaveName: "slot1"})
	require.True(t, r.ok)
	var loaded domain.LoadGameResult
	require.NoError(t, json.Unmarshal(r.payload, &loaded))
	assert.Equal(t, "abc", loaded.SaveData)

	r = call(t, d, domain.ActionSignOut, nil)
	assert.True(t, r.ok)
	assert.Empty(t, r.payload)

	r = call(t, d, "bogus", nil)
	require.False(t, r.ok)
	assert.Equal(t, emulator.InvalidAction, bridge.ParseFailure(r.payload).Message)
}

func TestClient_InterleavedCalls(t *testing.T) {
	_, _, url := startHost(t)
	d := bridge.NewDispatcher(dial(t, url, 0), discardLogger())
	require.True(t, call(t, d, domain.ActionAuth, nil).ok)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("slot%d", i)
			data := fmt.Sprintf("data-%d", i)
			if !call(t, d, domain.ActionSaveGame, domain.SaveGameInput{SaveName: name, SaveData: data}).ok {
				t.Errorf("save %s failed", name)
				return
			}
			r := call(t, d, domain.ActionLoadGame, domain.SaveNameInput{SaveName: name})
			var loaded domain.LoadGameResult
			if err := json.Unmarshal(r.payload, &loaded); err != nil {
				t.Error(err)
				return
			}
			assert.Equal(t, data, loaded.SaveData)
		}(i)
	}
	wg.Wait()
}

func TestClient_Notices(t *testing.T) {
	hub, e, url := startHost(t)
	c := dial(t, url, 0)
	d := bridge.NewDispatcher(c, discardLogger())

	require.True(t, call(t, d, domain.ActionAuth, nil).ok)
	require.True(t, call(t, d, domain.ActionSaveGame, domain.SaveGameInput{SaveName: "slot1", SaveData: "abc"}).ok)

	id, err := e.InjectConflict(context.Background(), domain.Snapshot{Name: "slot1", Data: "remote"})
	require.NoError(t, err)
	hub.BroadcastNotice(wsproto.Notice{Event: "conflict_injected", SaveName: "slot1", ID: id})

	select {
	case n := <-c.Notices():
		assert.Equal(t, "conflict_injected", n.Event)
		assert.Equal(t, "slot1", n.SaveName)
	case <-time.After(2 * time.Second):
		t.Fatal("no notice")
	}

	r := call(t, d, domain.ActionLoadGame, domain.SaveNameInput{SaveName: "slot1"})
	assert.ErrorIs(t, bridge.ParseFailure(r.payload), domain.ErrSnapshotConflict)
}

// silentHost accepts calls and never answers. Closing release drops the connection.
func silentHost(t *testing.T) (string, chan struct{}) {
	t.Helper()
	release := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
		<-release
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	return wsURL(srv), release
}

func TestClient_DisconnectFailsPending(t *testing.T) {
	url, release := silentHost(t)
	c := dial(t, url, 0)
	d := bridge.NewDispatcher(c, discardLogger())

	results := make(chan result, 3)
	for i := 0; i < 3; i++ {
		d.Call(domain.ActionIsSignedIn, nil,
			func(p json.RawMessage) { results <- result{ok: true, payload: p} },
			func(p json.RawMessage) { results <- result{ok: false, payload: p} },
		)
	}
	require.Eventually(t, func() bool { return c.Pending() == 3 }, time.Second, 5*time.Millisecond)

	close(release)
	for i := 0; i < 3; i++ {
		select {
		case r := <-results:
			assert.False(t, r.ok)
			f := bridge.ParseFailure(r.payload)
			assert.Equal(t, bridge.FailureMessage, f.Kind)
			assert.Equal(t, "IOException: connection closed", f.Message)
		case <-time.After(2 * time.Second):
			t.Fatal("pending call never failed")
		}
	}

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after disconnect")
	}

	r := call(t, d, domain.ActionIsSignedIn, nil)
	assert.False(t, r.ok)
	assert.Equal(t, 0, c.Pending())
}

func TestClient_CallTimeout(t *testing.T) {
	url, release := silentHost(t)
	defer close(release)
	c := dial(t, url, 50*time.Millisecond)
	d := bridge.NewDispatcher(c, discardLogger())

	r := call(t, d, domain.ActionIsSignedIn, nil)
	require.False(t, r.ok)
	assert.Equal(t, "IOException: call timed out", bridge.ParseFailure(r.payload).Message)
	assert.Equal(t, 0, c.Pending())
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	_, err := Dial(context.Background(), &config.BridgeConfig{URL: url, HandshakeTimeout: time.Second}, discardLogger())
	assert.Error(t, err)
}
