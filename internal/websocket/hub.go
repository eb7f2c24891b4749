package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playgames-bridge/internal/emulator"
)

// Message types
const (
	MessageTypeCall   = "call"
	MessageTypeReply  = "reply"
	MessageTypeNotice = "notice"
	MessageTypePing   = "ping"
	MessageTypePong   = "pong"
	MessageTypeError  = "error"
)

// Message is a websocket frame. Calls carry ID, Service, Action and Args;
// replies carry the call ID, OK and Payload.
type Message struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	Service   string            `json:"service,omitempty"`
	Action    string            `json:"action,omitempty"`
	Args      []json.RawMessage `json:"args,omitempty"`
	OK        bool              `json:"ok,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Error     string            `json:"error,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Notice is broadcast to every connection when the emulated platform changes
// outside of a call
type Notice struct {
	Event    string `json:"event"`
	SaveName string `json:"save_name,omitempty"`
	ID       string `json:"id,omitempty"`
}

// Executor runs one call
type Executor interface {
	Execute(ctx context.Context, service, action string, args []interface{}) emulator.Reply
}

// Stats summarizes hub activity
type Stats struct {
	Connections int   `json:"connections"`
	CallsServed int64 `json:"calls_served"`
	CallsActive int64 `json:"calls_active"`
}

// Hub tracks connected clients and executes their calls
type Hub struct {
	executor    Executor
	callTimeout time.Duration

	// All connected clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Outbound notices for every client
	broadcast chan *Message

	mu     sync.RWMutex
	calls  sync.WaitGroup
	served atomic.Int64
	active atomic.Int64

	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new Hub
func NewHub(executor Executor, callTimeout time.Duration, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		executor:    executor,
		callTimeout: callTimeout,
		clients:     make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("websocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("websocket hub stopping")
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub and waits for running calls
func (h *Hub) Stop() {
	h.cancel()
	// wait out any execute holding the read lock before Wait
	h.mu.Lock()
	defer h.calls.Wait()
	h.mu.Unlock()
}

// broadcastMessage sends a message to all clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

// BroadcastNotice tells every client about a platform change
func (h *Hub) BroadcastNotice(notice Notice) {
	data, err := json.Marshal(notice)
	if err != nil {
		h.logger.Error("failed to marshal notice", "error", err)
		return
	}
	message := &Message{
		Type:      MessageTypeNotice,
		Payload:   data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		client.close()
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// execute runs a call frame for client and queues the reply. Calls from one
// connection run concurrently, so replies may arrive in any order.
func (h *Hub) execute(client *Client, msg *Message) {
	h.mu.RLock()
	if h.ctx.Err() != nil {
		h.mu.RUnlock()
		return
	}
	h.calls.Add(1)
	h.mu.RUnlock()

	h.active.Add(1)
	go func() {
		defer h.calls.Done()
		defer h.active.Add(-1)

		ctx, cancel := context.WithTimeout(h.ctx, h.callTimeout)
		defer cancel()

		args := make([]interface{}, len(msg.Args))
		for i, arg := range msg.Args {
			args[i] = arg
		}

		reply := h.executor.Execute(ctx, msg.Service, msg.Action, args)
		h.served.Add(1)

		client.sendMessage(&Message{
			Type:      MessageTypeReply,
			ID:        msg.ID,
			OK:        reply.OK,
			Payload:   reply.Payload,
			Timestamp: time.Now(),
		})
	}()
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns connection and call counts
func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.GetTotalConnections(),
		CallsServed: h.served.Load(),
		CallsActive: h.active.Load(),
	}
}
