// Package stream maintains the persistent market-data connection. The
// client is an explicit state machine over {Disconnected, Connecting,
// Streaming} with exponential reconnect backoff; the transport is injected
// so the machine is testable without a network.
package stream

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"token-alpha-engine/internal/observability"
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Conn is a single established stream connection.
type Conn interface {
	// ReadMessage blocks for the next raw message.
	ReadMessage() ([]byte, error)
	// Close tears the connection down.
	Close() error
}

// Dialer establishes stream connections. Tests inject a fake; production
// uses the websocket implementation below.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Conn, error)
}

// Config configures client behavior.
type Config struct {
	// ReconnectDelay is the initial backoff after a failure.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// IdleTimeout bounds the wait for a single message; pings are sent at
	// a fraction of it.
	IdleTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    5 * time.Second,
		MaxReconnectDelay: 60 * time.Second,
		IdleTimeout:       10 * time.Second,
	}
}

// Client drives the connect/read/reconnect loop and hands every raw
// message to a handler, one at a time.
type Client struct {
	endpoint string
	config   Config
	dialer   Dialer
	logger   *log.Logger

	mu    sync.Mutex
	state State

	// backoffHook, when set, observes each backoff wait. Test seam.
	backoffHook func(time.Duration)
}

// NewClient creates a stream client.
func NewClient(endpoint string, config Config, dialer Dialer, logger *log.Logger) *Client {
	if dialer == nil {
		dialer = &WebsocketDialer{HandshakeTimeout: 10 * time.Second, IdleTimeout: config.IdleTimeout}
	}
	return &Client{
		endpoint: endpoint,
		config:   config,
		dialer:   dialer,
		logger:   logger,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	observability.DefaultMetrics.StreamState.Set(float64(s))
}

// Run drives the connection loop until ctx is cancelled. handle is called
// synchronously per message; the next message is not read until it
// returns. The loop has no terminal state besides cancellation: every
// failure waits out the current backoff and retries, doubling the delay up
// to the ceiling, and a successful connect resets it to the initial value.
func (c *Client) Run(ctx context.Context, handle func([]byte)) error {
	backoff := c.config.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			c.setState(StateDisconnected)
			return err
		}

		c.setState(StateConnecting)
		observability.DefaultMetrics.StreamReconnects.Inc()
		conn, err := c.dialer.Dial(ctx, c.endpoint)
		if err != nil {
			c.setState(StateDisconnected)
			c.logger.Printf("connect failed: %v, retrying in %s", err, backoff)
			if err := c.wait(ctx, backoff); err != nil {
				return err
			}
			backoff = nextBackoff(backoff, c.config.MaxReconnectDelay)
			continue
		}

		backoff = c.config.ReconnectDelay
		c.setState(StateStreaming)

		// Close the connection on cancellation so the blocking read
		// returns and shutdown happens between messages.
		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-readDone:
			}
		}()

		readErr := c.readLoop(ctx, conn, handle)
		close(readDone)
		conn.Close()
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Printf("stream error: %v, reconnecting in %s", readErr, backoff)
		if err := c.wait(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, c.config.MaxReconnectDelay)
	}
}

// readLoop reads messages until the connection fails.
func (c *Client) readLoop(ctx context.Context, conn Conn, handle func([]byte)) error {
	for {
		msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		handle(msg)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// wait sleeps for the backoff duration, interruptible by cancellation.
func (c *Client) wait(ctx context.Context, d time.Duration) error {
	if c.backoffHook != nil {
		c.backoffHook(d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// nextBackoff doubles the delay up to the ceiling.
func nextBackoff(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

// WebsocketDialer dials gorilla websocket connections.
type WebsocketDialer struct {
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
}

// Dial establishes a websocket connection.
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return newWebsocketConn(conn, d.IdleTimeout), nil
}

// websocketConn wraps a gorilla connection with idle deadlines and a ping
// loop.
type websocketConn struct {
	conn        *websocket.Conn
	idleTimeout time.Duration
	done        chan struct{}
	closeOnce   sync.Once
}

func newWebsocketConn(conn *websocket.Conn, idleTimeout time.Duration) *websocketConn {
	c := &websocketConn{
		conn:        conn,
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	go c.pingLoop()
	return c
}

// ReadMessage blocks for the next message, bounded by the idle timeout.
func (c *websocketConn) ReadMessage() ([]byte, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
		return nil, err
	}
	_, msg, err := c.conn.ReadMessage()
	return msg, err
}

// Close closes the underlying connection and stops the ping loop.
func (c *websocketConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return c.conn.Close()
}

// pingLoop keeps the connection alive at half the idle timeout.
func (c *websocketConn) pingLoop() {
	interval := c.idleTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(interval)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
