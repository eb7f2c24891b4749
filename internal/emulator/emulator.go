// Package emulator stands in for the native game-services platform. It
// answers every catalogue operation the way the native plugin does, backed by
// pluggable stores, so the bridge can be exercised without a device.
package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/playgames-bridge/internal/bridge"
	"github.com/playgames-bridge/internal/config"
	"github.com/playgames-bridge/internal/domain"
)

// InvalidAction is the failure sent for actions outside the catalogue
const InvalidAction = domain.InvalidActionMessage

// Reply is the single completion of a call
type Reply struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CallObserver is notified around every executed call
type CallObserver interface {
	CallStarted(action string)
	CallFinished(action, outcome string, elapsed time.Duration)
}

// Emulator executes catalogue operations against its stores
type Emulator struct {
	scores       ScoreStore
	saves        SaveStore
	achievements AchievementStore
	publisher    ScorePublisher
	observer     CallObserver
	cfg          *config.EmulatorConfig
	logger       *slog.Logger
	printer      *message.Printer
	now          func() time.Time

	mu         sync.Mutex
	signedIn   bool
	authorized bool
	pending    *conflict
	divergent  map[string]divergentSave
	inFlight   map[string]int
	lastSave   int64

	wg sync.WaitGroup
}

// New creates an emulator over the given stores
func New(stores Stores, cfg *config.EmulatorConfig, logger *slog.Logger) *Emulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Emulator{
		scores:       stores.Scores,
		saves:        stores.Saves,
		achievements: stores.Achievements,
		cfg:          cfg,
		logger:       logger,
		printer:      message.NewPrinter(language.English),
		now:          time.Now,
		authorized:   cfg.PreviouslyAuthorized,
		divergent:    make(map[string]divergentSave),
		inFlight:     make(map[string]int),
	}
}

// SetPublisher routes fire-and-forget score submissions through p
func (e *Emulator) SetPublisher(p ScorePublisher) {
	e.publisher = p
}

// SetObserver installs a call observer
func (e *Emulator) SetObserver(o CallObserver) {
	e.observer = o
}

// SetClock replaces the time source
func (e *Emulator) SetClock(now func() time.Time) {
	e.now = now
}

// Exec implements bridge.Transport. Each call completes on its own goroutine.
func (e *Emulator) Exec(success, failure bridge.Callback, service, action string, args []interface{}) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		if e.cfg.Latency > 0 {
			time.Sleep(e.cfg.Latency)
		}

		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.OperationLimit)
		defer cancel()

		reply := e.Execute(ctx, service, action, args)
		if reply.OK {
			success(reply.Payload)
		} else {
			failure(reply.Payload)
		}
	}()
}

// Execute runs one call synchronously
func (e *Emulator) Execute(ctx context.Context, service, action string, args []interface{}) Reply {
	start := time.Now()
	if e.observer != nil {
		e.observer.CallStarted(action)
	}

	reply := e.execute(ctx, service, action, args)

	if e.observer != nil {
		e.observer.CallFinished(action, outcome(reply), time.Since(start))
	}
	return reply
}

func (e *Emulator) execute(ctx context.Context, service, action string, args []interface{}) Reply {
	if service != domain.ServiceName {
		e.logger.Warn("call for unknown service", "service", service, "action", action)
		return failMessage("Class not found")
	}

	if !e.cfg.PlayServices.Available() {
		e.logger.Warn("play services not available",
			"action", action,
			"error_code", e.cfg.PlayServices.ErrorCode,
			"error_string", e.cfg.PlayServices.ErrorString,
		)
		return e.send(domain.GooglePlayErrorResponse{
			Response: domain.NewResponse(domain.StatusGooglePlayError, "GooglePlayServices not available"),
			GooglePlayError: domain.GooglePlayError{
				ErrorCode:   e.cfg.PlayServices.ErrorCode,
				ErrorString: e.cfg.PlayServices.ErrorString,
			},
		})
	}

	if !domain.IsOperation(action) {
		e.logger.Warn("invalid action", "action", action)
		return failMessage(InvalidAction)
	}

	opts, err := parseOptions(args)
	if err != nil {
		return exception(err)
	}

	e.logger.Debug("processing action", "action", action)

	switch action {
	case domain.ActionAuth:
		return e.auth(opts)
	case domain.ActionSignOut:
		return e.signOut()
	case domain.ActionIsSignedIn:
		return e.isSignedIn()
	}

	if !e.isSessionActive() {
		return e.send(domain.NewResponse(domain.StatusNotSignIn, action+": not yet signed in"))
	}

	switch action {
	case domain.ActionShowPlayer:
		return e.showPlayer()
	case domain.ActionSubmitScore:
		return e.submitScore(ctx, opts)
	case domain.ActionSubmitScoreNow:
		return e.submitScoreNow(ctx, opts)
	case domain.ActionGetPlayerScore:
		return e.getPlayerScore(ctx, opts)
	case domain.ActionShowAllLeaderboards, domain.ActionShowAchievements:
		return e.send(domain.NewResponse(domain.StatusOK, ""))
	case domain.ActionShowLeaderboard:
		return e.showLeaderboard(opts)
	case domain.ActionUnlockAchievement:
		return e.unlockAchievement(ctx, opts, false)
	case domain.ActionUnlockAchievementNow:
		return e.unlockAchievement(ctx, opts, true)
	case domain.ActionIncrementAchievement:
		return e.incrementAchievement(ctx, opts, false)
	case domain.ActionIncrementAchievementNow:
		return e.incrementAchievement(ctx, opts, true)
	case domain.ActionSaveGame:
		return e.saveGame(ctx, opts)
	case domain.ActionLoadGame:
		return e.loadGame(ctx, opts)
	case domain.ActionResolveSnapshotConflict:
		return e.resolveSnapshotConflict(ctx, opts)
	case domain.ActionDeleteSaveGame:
		return e.deleteSaveGame(ctx, opts)
	}
	return failMessage(InvalidAction)
}

// Close waits for in-flight calls and background score applications
func (e *Emulator) Close() {
	e.wg.Wait()
}

// send marshals a response carrying status and message. OK responses go to
// the success channel, everything else to the failure channel.
func (e *Emulator) send(v interface{}) Reply {
	data, err := json.Marshal(v)
	if err != nil {
		return exception(err)
	}
	var envelope domain.Response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return exception(err)
	}
	if !envelope.Status.OK() {
		e.logger.Warn("call failed", "status", envelope.Status.String(), "message", envelope.Message)
	}
	return Reply{OK: envelope.Status.OK(), Payload: data}
}

func failMessage(msg string) Reply {
	return Reply{OK: false, Payload: bridge.MessageFailure(msg)}
}

// exception reports err as a bare string failure
func exception(err error) Reply {
	if err == nil {
		return failMessage("UNKNOWN ERROR")
	}

	var (
		optErr    *OptionError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		netErr    net.Error
	)
	switch {
	case errors.As(err, &optErr), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return failMessage("JSONException: " + err.Error())
	case errors.As(err, &netErr), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return failMessage("IOException: " + err.Error())
	default:
		return failMessage("Exception: " + err.Error())
	}
}

// outcome labels a reply by status name, or "message" for bare string failures
func outcome(r Reply) string {
	if r.OK {
		return domain.StatusOK.String()
	}
	f := bridge.ParseFailure(r.Payload)
	if f.Kind == bridge.FailureMessage {
		return bridge.FailureMessage.String()
	}
	return f.Status.String()
}

func (e *Emulator) formatScore(score int64) string {
	return e.printer.Sprintf("%d", score)
}

// saveTime returns a strictly increasing modification timestamp in milliseconds
func (e *Emulator) saveTime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts := e.now().UnixMilli()
	if ts <= e.lastSave {
		ts = e.lastSave + 1
	}
	e.lastSave = ts
	return ts
}

func (e *Emulator) playerID() string {
	return e.cfg.Player.ID
}

func scoreKey(leaderboardID, playerID string) string {
	return fmt.Sprintf("%s/%s", leaderboardID, playerID)
}
