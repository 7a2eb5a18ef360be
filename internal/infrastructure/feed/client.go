package feed

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/fleetops/fleet-dashboard/internal/api/metrics"
)

// Status is the lifecycle state of the upstream connection.
type Status string

const (
	StatusConnecting Status = "connecting"
	StatusOpen       Status = "open"
	StatusClosing    Status = "closing"
	StatusClosed     Status = "closed"
)

const (
	defaultRetryInterval = 5 * time.Second
	defaultMaxRetries    = 5
)

// ErrNotOpen is returned by Send when the connection is not open. Payloads
// are never queued for later delivery.
var ErrNotOpen = errors.New("feed connection is not open")

// Config holds the connection parameters for the upstream feed.
type Config struct {
	URL           string
	RetryInterval time.Duration
	MaxRetries    int
}

// Client maintains a websocket connection to the upstream feed with a fixed
// retry interval and a bounded retry budget. The budget resets on every
// successful open and on manual Reconnect.
//
// Handlers are invoked from the client's goroutines. A status handler runs
// under the client's mutex and must not call back into the client; the
// exhausted handler runs on its own goroutine and may.
type Client struct {
	cfg    Config
	log    zerolog.Logger
	dialer *websocket.Dialer

	onMessage   func([]byte)
	onStatus    func(Status)
	onExhausted func()

	mu          sync.Mutex
	conn        *websocket.Conn
	status      Status
	attempts    int
	retryTimer  *time.Timer
	manualClose bool
	exhausted   bool
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	return &Client{
		cfg:    cfg,
		log:    log.With().Str("component", "feed").Logger(),
		dialer: websocket.DefaultDialer,
		status: StatusClosed,
	}
}

// OnMessage registers the handler for incoming frames. Set handlers before
// calling Connect.
func (c *Client) OnMessage(fn func([]byte)) { c.onMessage = fn }

// OnStatus registers the handler for connection state transitions.
func (c *Client) OnStatus(fn func(Status)) { c.onStatus = fn }

// OnExhausted registers the handler invoked once when the retry budget is
// spent. The client stays closed until Reconnect is called.
func (c *Client) OnExhausted(fn func()) { c.onExhausted = fn }

// Status reports the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Connect opens the connection. It is a no-op while a connection or a
// pending retry is already in flight.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.status == StatusOpen || c.status == StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.manualClose = false
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	go c.dial()
}

// Reconnect resets the retry budget and opens a fresh connection. This is
// the only way out of the exhausted state.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.status == StatusOpen || c.status == StatusConnecting {
		c.mu.Unlock()
		return
	}
	c.clearRetryLocked()
	c.attempts = 0
	c.exhausted = false
	c.manualClose = false
	c.setStatusLocked(StatusConnecting)
	c.mu.Unlock()

	go c.dial()
}

// Send writes a JSON payload to the open connection. It fails immediately
// when the connection is not open; nothing is queued.
func (c *Client) Send(payload any) error {
	c.mu.Lock()
	conn, st := c.conn, c.status
	c.mu.Unlock()

	if st != StatusOpen || conn == nil {
		return fmt.Errorf("%w: status %s", ErrNotOpen, st)
	}
	return conn.WriteJSON(payload)
}

// Close shuts the connection down cleanly and cancels any pending retry.
// A clean close never triggers reconnection.
func (c *Client) Close() {
	c.mu.Lock()
	c.manualClose = true
	c.clearRetryLocked()
	conn := c.conn
	if conn != nil {
		c.setStatusLocked(StatusClosing)
	} else {
		c.setStatusLocked(StatusClosed)
	}
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
}

func (c *Client) dial() {
	conn, resp, err := c.dialer.Dial(c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.manualClose {
		if conn != nil {
			_ = conn.Close()
		}
		c.setStatusLocked(StatusClosed)
		return
	}
	if err != nil {
		c.log.Warn().Err(err).Str("url", c.cfg.URL).Int("attempt", c.attempts).Msg("feed dial failed")
		c.scheduleRetryLocked()
		return
	}

	c.conn = conn
	c.attempts = 0
	c.exhausted = false
	c.setStatusLocked(StatusOpen)
	c.log.Info().Str("url", c.cfg.URL).Msg("feed connected")

	go c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Client) handleDisconnect(conn *websocket.Conn, err error) {
	_ = conn.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	// A stale read loop from a superseded connection must not disturb the
	// current one.
	if c.conn != conn {
		return
	}
	c.conn = nil

	clean := websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	if c.manualClose || clean {
		c.setStatusLocked(StatusClosed)
		c.log.Info().Msg("feed closed")
		return
	}

	c.log.Warn().Err(err).Msg("feed connection lost")
	// Observers see the connection reach closed before the retry flips it
	// back to connecting.
	c.setStatusLocked(StatusClosed)
	c.scheduleRetryLocked()
}

// scheduleRetryLocked arms the next retry or, once the budget is spent,
// parks the client in the closed state and reports exhaustion exactly once.
func (c *Client) scheduleRetryLocked() {
	if c.attempts >= c.cfg.MaxRetries {
		c.setStatusLocked(StatusClosed)
		if !c.exhausted {
			c.exhausted = true
			metrics.FeedExhaustedTotal.Inc()
			c.log.Error().Int("attempts", c.attempts).Msg("feed retry budget exhausted")
			if c.onExhausted != nil {
				go c.onExhausted()
			}
		}
		return
	}

	c.attempts++
	metrics.FeedReconnectsTotal.Inc()
	c.setStatusLocked(StatusConnecting)
	c.log.Info().Int("attempt", c.attempts).Dur("in", c.cfg.RetryInterval).Msg("feed retry scheduled")
	c.retryTimer = time.AfterFunc(c.cfg.RetryInterval, c.dial)
}

func (c *Client) clearRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) setStatusLocked(s Status) {
	if c.status == s {
		return
	}
	c.status = s
	if c.onStatus != nil {
		c.onStatus(s)
	}
}
