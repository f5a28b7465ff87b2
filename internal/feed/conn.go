// Package feed maintains resilient streaming connections to venue market-data
// endpoints. Each Conn owns one WebSocket, a heartbeat loop, and a bounded
// reconnect policy, and delivers every inbound frame as a canonical Event on
// a single-consumer channel so downstream code preserves per-instrument
// ordering without running on the transport goroutine.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/hedgebot/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds each dial attempt.
	handshakeTimeout = 15 * time.Second

	// defaultHeartbeatInterval is how often the liveness ping is sent.
	defaultHeartbeatInterval = 10 * time.Second

	// defaultHeartbeatFailLimit terminates the heartbeat loop after this many
	// consecutive send failures. The main connection is left to the read loop.
	defaultHeartbeatFailLimit = 3

	// defaultMaxReconnectAttempts bounds the reconnect policy.
	defaultMaxReconnectAttempts = 5

	// defaultBaseReconnectDelay is the delay before the first reconnect attempt.
	defaultBaseReconnectDelay = 5 * time.Second

	// eventBuffer absorbs short bursts without blocking the read loop.
	eventBuffer = 256
)

// ConnConfig configures one venue feed connection.
type ConnConfig struct {
	Venue       domain.Venue
	Endpoint    string
	Instruments []string

	HeartbeatInterval    time.Duration
	HeartbeatFailLimit   int
	MaxReconnectAttempts int
	BaseReconnectDelay   time.Duration
}

func (c *ConnConfig) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.HeartbeatFailLimit <= 0 {
		c.HeartbeatFailLimit = defaultHeartbeatFailLimit
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = defaultMaxReconnectAttempts
	}
	if c.BaseReconnectDelay <= 0 {
		c.BaseReconnectDelay = defaultBaseReconnectDelay
	}
}

// Conn is one logical subscription against one venue's streaming endpoint.
// A fresh socket is constructed on every reconnect attempt and the original
// subscription is resent, because venues do not persist subscriptions across
// connection breaks.
type Conn struct {
	cfg    ConnConfig
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	events chan Event
	done   chan struct{}
}

// NewConn creates a feed connection. Open must be called to start it.
func NewConn(cfg ConnConfig, logger *slog.Logger) *Conn {
	cfg.applyDefaults()
	return &Conn{
		cfg: cfg,
		logger: logger.With(
			slog.String("component", "feed"),
			slog.String("venue", string(cfg.Venue)),
		),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
}

// Events returns the canonical event channel. It is closed after a fatal
// event or after Close.
func (c *Conn) Events() <-chan Event { return c.events }

// Open dials the endpoint, sends the subscription control message, and starts
// the read and heartbeat loops. The initial dial failure is returned to the
// caller; later disconnects are handled by the reconnect policy.
func (c *Conn) Open(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("feed: open %s: %w", c.cfg.Venue, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.heartbeatLoop(conn)
	go c.run(conn)
	return nil
}

// Close disables reconnection and tears down the socket and heartbeat loop.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		return c.conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal loops
// --------------------------------------------------------------------------

// dial constructs a fresh socket and sends the subscription message.
func (c *Conn) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.cfg.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	sub := subscribeCommand{
		AssetIDs: c.cfg.Instruments,
		Channel:  "market",
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("marshal subscription: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send subscription: %w", err)
	}
	return conn, nil
}

// run reads frames from the current socket until it fails, then drives the
// reconnect policy. It owns the events channel and closes it on exit.
func (c *Conn) run(conn *websocket.Conn) {
	defer close(c.events)

	for {
		err := c.readAll(conn)
		if c.isClosed() {
			return
		}
		c.logger.Warn("connection lost", slog.String("error", err.Error()))

		next, ok := c.reconnect()
		if !ok {
			if !c.isClosed() {
				c.emit(Event{
					Kind: KindFatal,
					Err: fmt.Errorf("feed: %s after %d attempts: %w",
						c.cfg.Venue, c.cfg.MaxReconnectAttempts, domain.ErrReconnectFailed),
				})
			}
			return
		}
		conn = next
	}
}

// readAll consumes frames from one socket until a read error.
func (c *Conn) readAll(conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			return fmt.Errorf("%w: %v", domain.ErrWSDisconnect, err)
		}
		for _, ev := range parseFrame(c.cfg.Venue, raw, time.Now().UTC()) {
			if !c.emit(ev) {
				return domain.ErrContextDone
			}
		}
	}
}

// emit delivers one event, giving up when the connection is shut down.
func (c *Conn) emit(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

// reconnect attempts to re-establish the connection. The delay before attempt
// n is base*2^(n-1), capped at 300s. The attempt counter covers one outage;
// it resets once a connection is re-established. Returns ok=false when the
// attempt budget is exhausted or the connection was closed.
func (c *Conn) reconnect() (*websocket.Conn, bool) {
	for attempt := 1; attempt <= c.cfg.MaxReconnectAttempts; attempt++ {
		delay := reconnectDelay(c.cfg.BaseReconnectDelay, attempt)
		c.logger.Info("reconnecting",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", c.cfg.MaxReconnectAttempts),
			slog.Duration("delay", delay),
		)

		select {
		case <-c.done:
			return nil, false
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		conn, err := c.dial(ctx)
		cancel()
		if err != nil {
			c.logger.Warn("reconnect attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return nil, false
		}
		c.conn = conn
		c.mu.Unlock()

		go c.heartbeatLoop(conn)
		c.logger.Info("reconnected", slog.Int("attempts_used", attempt))
		return conn, true
	}
	return nil, false
}

// heartbeatLoop sends a liveness ping at a fixed interval for the life of one
// socket. Consecutive send failures beyond the limit stop the loop; the read
// loop remains responsible for detecting a dead connection.
func (c *Conn) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			current := c.conn
			c.mu.Unlock()
			if current != conn {
				// Socket was replaced by a reconnect; its new heartbeat loop
				// took over.
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				failures++
				c.logger.Warn("heartbeat send failed",
					slog.Int("consecutive", failures),
					slog.String("error", err.Error()),
				)
				if failures >= c.cfg.HeartbeatFailLimit {
					c.logger.Warn("heartbeat loop stopped",
						slog.Int("failures", failures),
					)
					return
				}
				continue
			}
			failures = 0
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
