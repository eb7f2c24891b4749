package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/playgames-bridge/internal/domain"
	"github.com/playgames-bridge/internal/emulator"
	"github.com/playgames-bridge/internal/websocket"
)

// Emulator is the part of the emulator the HTTP surface drives
type Emulator interface {
	Execute(ctx context.Context, service, action string, args []interface{}) emulator.Reply
	InjectConflict(ctx context.Context, snapshot domain.Snapshot) (string, error)
	Snapshot(ctx context.Context, name string) (*domain.Snapshot, error)
	AchievementProgress(ctx context.Context, achievementID string) (*domain.AchievementState, error)
}

// ReadinessCheck reports whether a backend is usable
type ReadinessCheck func(ctx context.Context) error

// Handler provides HTTP handlers for the emulator host
type Handler struct {
	emulator Emulator
	hub      *websocket.Hub
	metrics  http.Handler
	checks   map[string]ReadinessCheck
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(emulator Emulator, hub *websocket.Hub, logger *slog.Logger) *Handler {
	return &Handler{
		emulator: emulator,
		hub:      hub,
		checks:   make(map[string]ReadinessCheck),
		logger:   logger,
	}
}

// SetMetricsHandler serves h on /metrics
func (h *Handler) SetMetricsHandler(metrics http.Handler) {
	h.metrics = metrics
}

// AddReadinessCheck makes /ready depend on check
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ConflictRequest is the body of a conflict injection
type ConflictRequest struct {
	SaveName string                  `json:"save_name"`
	SaveData string                  `json:"save_data"`
	Metadata domain.SnapshotMetadata `json:"metadata"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/calls/{action}", h.InvokeCall)

		r.Route("/emulator", func(r chi.Router) {
			r.Post("/conflicts", h.InjectConflict)
			r.Get("/saves/{saveName}", h.GetSave)
			r.Get("/achievements/{achievementID}", h.GetAchievement)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// requestLogger logs each request through the handler's slog logger
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.hub.Stats())
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck runs every readiness check and reports the failing ones
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := make(map[string]string)
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    failed,
			Error:   "not ready",
		})
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// InvokeCall runs one catalogue operation. The body, if any, is the input
// record. The response is the reply envelope, also for failed calls.
func (h *Handler) InvokeCall(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	service := r.URL.Query().Get("service")
	if service == "" {
		service = domain.ServiceName
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput)
		return
	}

	var args []interface{}
	if len(body) > 0 {
		if !json.Valid(body) {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput)
			return
		}
		args = []interface{}{json.RawMessage(body)}
	}

	reply := h.emulator.Execute(r.Context(), service, action, args)
	h.writeJSON(w, http.StatusOK, reply)
}

// InjectConflict records a divergent version of a save
func (h *Handler) InjectConflict(w http.ResponseWriter, r *http.Request) {
	var req ConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidInput)
		return
	}

	id, err := h.emulator.InjectConflict(r.Context(), domain.Snapshot{
		Name:     req.SaveName,
		Data:     req.SaveData,
		Metadata: req.Metadata,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			h.writeError(w, http.StatusBadRequest, err)
		case errors.Is(err, domain.ErrSaveNotFound):
			h.writeError(w, http.StatusNotFound, err)
		default:
			h.logger.Error("failed to inject conflict", "error", err)
			h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		}
		return
	}

	h.hub.BroadcastNotice(websocket.Notice{Event: "conflict_injected", SaveName: req.SaveName, ID: id})
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"id": id},
	})
}

// GetSave returns the stored version of a save
func (h *Handler) GetSave(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.emulator.Snapshot(r.Context(), chi.URLParam(r, "saveName"))
	if err != nil {
		if errors.Is(err, domain.ErrSaveNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get save", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, snapshot)
}

// GetAchievement returns the player's progress on an achievement
func (h *Handler) GetAchievement(w http.ResponseWriter, r *http.Request) {
	state, err := h.emulator.AchievementProgress(r.Context(), chi.URLParam(r, "achievementID"))
	if err != nil {
		if errors.Is(err, domain.ErrAchievementNotFound) {
			h.writeError(w, http.StatusNotFound, err)
			return
		}
		h.logger.Error("failed to get achievement", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
		return
	}
	h.writeSuccess(w, state)
}
