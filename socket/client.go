// Package socket is the realtime channel to the inference backend. The
// backend exposes two endpoints: a signal socket for session membership and
// a result socket that streams binary inference frames.
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"marionette/core"
	"marionette/protocol"

	"github.com/gorilla/websocket"
)

const (
	defaultSendBufferSize = 256
	writeTimeout          = 10 * time.Second
)

// ClientConfig configures a socket client.
type ClientConfig struct {
	URL            string
	Name           string // "signal" or "result", for logs
	SendBufferSize int
	Logger         *core.Logger
}

// Client is a websocket client that sends JSON envelopes and receives both
// JSON envelopes and binary frames. All inbound messages are dispatched from
// a single read goroutine, so handlers observe arrival order.
type Client struct {
	config ClientConfig
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	logger *core.Logger

	mu       sync.RWMutex
	handlers map[protocol.EventName]func(payload json.RawMessage)
	onBinary func(data []byte)

	sendCh    chan []byte
	pending   atomic.Int64 // queued or being written
	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once
}

// NewClient creates a new socket client. Connect must be called before use.
func NewClient(cfg ClientConfig) *Client {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = core.GetLogger()
	}
	return &Client{
		config:   cfg,
		logger:   cfg.Logger.With(map[string]interface{}{"component": "socket", "socket": cfg.Name}),
		handlers: make(map[protocol.EventName]func(json.RawMessage)),
		sendCh:   make(chan []byte, cfg.SendBufferSize),
		done:     make(chan struct{}),
	}
}

// On registers the handler for a text event. A later registration replaces
// the earlier one.
func (c *Client) On(event protocol.EventName, handler func(payload json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = handler
}

// OnBinary registers the handler for binary frames. nil detaches it.
func (c *Client) OnBinary(handler func(data []byte)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onBinary = handler
}

// Connect dials the endpoint and starts the read and write loops. The
// provided context controls the client's lifetime.
func (c *Client) Connect(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	c.logger.With(map[string]interface{}{"url": c.config.URL}).Info("connecting")

	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.config.URL, nil)
	if err != nil {
		c.cancel()
		return fmt.Errorf("socket: dial %q: %w", c.config.URL, err)
	}
	c.conn = conn

	go c.readLoop()
	go c.writeLoop()

	return nil
}

// Emit queues an event for sending. When the buffer is full the oldest
// queued message is dropped.
func (c *Client) Emit(event protocol.EventName, payload interface{}) {
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		c.logger.With(map[string]interface{}{"error": err, "event": string(event)}).Warn("failed to marshal message, dropping")
		return
	}
	c.pending.Add(1)
	select {
	case c.sendCh <- data:
	default:
		select {
		case <-c.sendCh:
			c.pending.Add(-1)
		default:
		}
		select {
		case c.sendCh <- data:
		default:
			c.pending.Add(-1)
		}
	}
}

// Done is closed when the connection drops or the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the connection drops or the context is cancelled.
func (c *Client) Wait() error {
	<-c.done
	return nil
}

// Close flushes queued messages (bounded by writeTimeout) and shuts down the client.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cancel == nil {
			c.doneOnce.Do(func() { close(c.done) })
			return
		}
		c.flush()
		c.cancel()
		if c.conn != nil {
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			c.conn.Close()
		}
	})
}

func (c *Client) flush() {
	deadline := time.Now().Add(writeTimeout)
	for time.Now().Before(deadline) {
		if c.pending.Load() <= 0 {
			return
		}
		select {
		case <-c.done:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (c *Client) readLoop() {
	defer func() {
		c.doneOnce.Do(func() { close(c.done) })
		c.cancel()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.With(map[string]interface{}{"error": err}).Warn("connection lost")
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			c.mu.RLock()
			handler := c.onBinary
			c.mu.RUnlock()
			if handler != nil {
				handler(data)
			}
			continue
		}

		event, payload, err := protocol.Unmarshal(data)
		if err != nil {
			c.logger.With(map[string]interface{}{"error": err}).Warn("invalid message")
			continue
		}
		c.mu.RLock()
		handler, ok := c.handlers[event]
		c.mu.RUnlock()
		if !ok {
			c.logger.With(map[string]interface{}{"event": string(event)}).Debug("unhandled event")
			continue
		}
		handler(payload)
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case data := <-c.sendCh:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := c.conn.WriteMessage(websocket.TextMessage, data)
			c.pending.Add(-1)
			if err != nil {
				c.logger.With(map[string]interface{}{"error": err}).Warn("write failed")
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
