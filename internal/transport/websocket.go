// Package transport carries bridge calls to a remote emulator over a websocket.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/playgames-bridge/internal/bridge"
	"github.com/playgames-bridge/internal/config"
	wsproto "github.com/playgames-bridge/internal/websocket"
)

const writeWait = 10 * time.Second

// ErrClosed is returned by Close on a connection that is already closed
var ErrClosed = errors.New("transport closed")

type pendingCall struct {
	action  string
	success bridge.Callback
	failure bridge.Callback
	timer   *time.Timer
}

// Client is a bridge.Transport that forwards calls as JSON frames. Replies
// are matched to calls by ID, so any number of calls may be outstanding.
type Client struct {
	conn        *websocket.Conn
	callTimeout time.Duration
	logger      *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingCall
	closed  bool

	notices chan wsproto.Notice
	done    chan struct{}
}

// Dial connects to the emulator host at cfg.URL
func Dial(ctx context.Context, cfg *config.BridgeConfig, logger *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", cfg.URL, err)
	}

	c := &Client{
		conn:        conn,
		callTimeout: cfg.CallTimeout,
		logger:      logger,
		pending:     make(map[string]*pendingCall),
		notices:     make(chan wsproto.Notice, 16),
		done:        make(chan struct{}),
	}
	go c.readLoop()

	logger.Info("bridge transport connected", "url", cfg.URL)
	return c, nil
}

// Exec implements bridge.Transport
func (c *Client) Exec(success, failure bridge.Callback, service, action string, args []interface{}) {
	frame := wsproto.Message{
		Type:      wsproto.MessageTypeCall,
		ID:        uuid.NewString(),
		Service:   service,
		Action:    action,
		Args:      make([]json.RawMessage, len(args)),
		Timestamp: time.Now(),
	}
	for i, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			go failure(bridge.MessageFailure("JSONException: " + err.Error()))
			return
		}
		frame.Args[i] = data
	}

	call := &pendingCall{action: action, success: success, failure: failure}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		go failure(bridge.MessageFailure("IOException: connection closed"))
		return
	}
	c.pending[frame.ID] = call
	if c.callTimeout > 0 {
		id := frame.ID
		call.timer = time.AfterFunc(c.callTimeout, func() {
			if p := c.take(id); p != nil {
				c.logger.Warn("call timed out", "call_id", id, "action", p.action)
				p.failure(bridge.MessageFailure("IOException: call timed out"))
			}
		})
	}
	c.mu.Unlock()

	if err := c.write(&frame); err != nil {
		if p := c.take(frame.ID); p != nil {
			go p.failure(bridge.MessageFailure("IOException: " + err.Error()))
		}
	}
}

func (c *Client) write(frame *wsproto.Message) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// take removes and returns the pending call with id, or nil when it already completed
func (c *Client) take(id string) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	if p.timer != nil {
		p.timer.Stop()
	}
	return p
}

// readLoop routes replies until the connection drops, then fails every
// outstanding call
func (c *Client) readLoop() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Error("bridge transport read failed", "error", err)
			}
			c.failPending()
			return
		}

		// the host may pack several frames into one message
		for _, raw := range bytes.Split(data, []byte{'\n'}) {
			if len(bytes.TrimSpace(raw)) == 0 {
				continue
			}
			var frame wsproto.Message
			if err := json.Unmarshal(raw, &frame); err != nil {
				c.logger.Warn("invalid frame", "error", err)
				continue
			}
			c.route(&frame)
		}
	}
}

func (c *Client) route(frame *wsproto.Message) {
	switch frame.Type {
	case wsproto.MessageTypeReply:
		p := c.take(frame.ID)
		if p == nil {
			c.logger.Warn("reply for unknown call", "call_id", frame.ID)
			return
		}
		if frame.OK {
			go p.success(frame.Payload)
		} else {
			go p.failure(frame.Payload)
		}

	case wsproto.MessageTypeError:
		if p := c.take(frame.ID); p != nil {
			go p.failure(bridge.MessageFailure(frame.Error))
			return
		}
		c.logger.Warn("error from host", "error", frame.Error)

	case wsproto.MessageTypeNotice:
		var notice wsproto.Notice
		if err := json.Unmarshal(frame.Payload, &notice); err != nil {
			c.logger.Warn("invalid notice", "error", err)
			return
		}
		c.logger.Info("host notice", "event", notice.Event, "save_name", notice.SaveName)
		select {
		case c.notices <- notice:
		default:
		}

	case wsproto.MessageTypePong:
	default:
		c.logger.Debug("unknown frame type", "type", frame.Type)
	}
}

func (c *Client) failPending() {
	c.mu.Lock()
	c.closed = true
	pending := c.pending
	c.pending = make(map[string]*pendingCall)
	c.mu.Unlock()

	for id, p := range pending {
		if p.timer != nil {
			p.timer.Stop()
		}
		c.logger.Warn("call dropped by disconnect", "call_id", id, "action", p.action)
		go p.failure(bridge.MessageFailure("IOException: connection closed"))
	}
}

// Notices delivers host notices, such as injected conflicts. Notices are
// dropped while nobody reads.
func (c *Client) Notices() <-chan wsproto.Notice {
	return c.notices
}

// Done is closed once the connection is gone, whether the host dropped it or
// Close was called
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Pending returns the number of calls waiting for a reply
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Close sends a close frame and waits for the read loop to finish. Calls
// still outstanding fail.
func (c *Client) Close() error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		c.conn.Close()
		return ErrClosed
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	select {
	case <-c.done:
	case <-time.After(writeWait):
	}
	c.conn.Close()
	<-c.done
	return err
}
