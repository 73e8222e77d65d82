// Package wschannel implements a duplex websocket message channel with
// automatic reconnection and exponential backoff.
//
// A Channel maintains at most one live connection at a time. Inbound messages
// are forwarded verbatim to the caller-supplied handler; no parsing happens at
// this layer. On abnormal close the channel reconnects after
// min(baseDelay * 2^attempt, maxDelay), giving up permanently once the attempt
// count reaches the retry budget or the peer closes with the normal code.
package wschannel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Status describes the connection state of a channel.
type Status int

// Channel status values.
const (
	StatusClosed Status = iota
	StatusConnecting
	StatusOpen
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusOpen:
		return "open"
	default:
		return "closed"
	}
}

// Config holds the reconnect policy for a channel.
type Config struct {
	// MaxRetries is the number of abnormal closes tolerated before the
	// channel gives up permanently.
	MaxRetries uint32

	// BaseDelay is the reconnect delay for the first attempt.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// DefaultConfig returns the stock reconnect policy.
func DefaultConfig() Config {
	return Config{
		MaxRetries: 10,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
	}
}

// Conn is the subset of a websocket connection the channel needs.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// DialFunc opens a websocket connection to the given URL.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func defaultDial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a channel's identity, transport mode, and callbacks.
// Callbacks are invoked from the channel's internal goroutines, never
// concurrently with each other for the same connection generation.
type Options struct {
	// Name identifies the channel in logs and metrics (e.g. "video").
	Name string

	// Binary selects the outbound message type for Send.
	Binary bool

	// Logger for structured logging. Defaults to slog.Default().
	Logger *slog.Logger

	// OnMessage receives every inbound message verbatim.
	OnMessage func(messageType int, data []byte)

	// OnOpen fires after each successful open (including reopens).
	OnOpen func()

	// OnClose fires once when the channel stops on its own: normal close
	// or retry exhaustion. Explicit teardown does not fire it.
	OnClose func()

	// OnReconnect fires when a reconnect is scheduled, with the attempt
	// number (0-based) and the computed delay.
	OnReconnect func(attempt uint32, delay time.Duration)

	// Dial overrides the websocket dialer. Defaults to gorilla's dialer.
	Dial DialFunc
}

// Channel is a resilient websocket channel. The zero value is not usable;
// construct with New.
type Channel struct {
	cfg  Config
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	gen     uint64
	url     string
	conn    Conn
	status  Status
	attempt uint32
	timer   *time.Timer
	bo      *backoff.ExponentialBackOff
}

// New creates a channel with no target URL. Call SetURL to connect.
func New(cfg Config, opts Options) *Channel {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dial == nil {
		opts.Dial = defaultDial
	}
	return &Channel{
		cfg:  cfg,
		opts: opts,
		log:  opts.Logger.With(slog.String("channel", opts.Name)),
		bo:   newBackOff(cfg),
	}
}

// newBackOff builds the deterministic exponential policy
// min(baseDelay * 2^n, maxDelay) with no jitter.
func newBackOff(cfg Config) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = cfg.BaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = cfg.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

// SetURL changes the channel target. Any existing connection and pending
// reconnect are torn down first; handlers are detached before the old socket
// closes, so late events on it can never fire. A non-empty URL starts a fresh
// connection with a zeroed attempt counter; an empty URL leaves the channel
// closed.
func (c *Channel) SetURL(url string) {
	c.mu.Lock()
	c.teardownLocked()
	c.url = url
	if url == "" {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.status = StatusConnecting
	c.mu.Unlock()

	go c.dial(gen, url)
}

// Close tears the channel down permanently until a new URL is supplied.
func (c *Channel) Close() {
	c.SetURL("")
}

// teardownLocked detaches handlers from the current connection (by bumping
// the generation), cancels any pending reconnect, and resets the retry state.
func (c *Channel) teardownLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.status = StatusClosed
	c.attempt = 0
	c.bo.Reset()
}

// Connected reports whether the channel has an open connection.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == StatusOpen
}

// Status returns the current connection status.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Attempt returns the current abnormal-close count.
func (c *Channel) Attempt() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempt
}

// Send writes a message on the current connection. The message type follows
// the channel's transport mode. Returns an error if the channel is not open.
func (c *Channel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusOpen || c.conn == nil {
		return ErrNotConnected
	}
	mt := websocket.TextMessage
	if c.opts.Binary {
		mt = websocket.BinaryMessage
	}
	return c.conn.WriteMessage(mt, data)
}

// dial attempts a single connection for the given generation.
func (c *Channel) dial(gen uint64, url string) {
	conn, err := c.opts.Dial(context.Background(), url)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.log.Warn("dial failed", slog.String("error", err.Error()))
		c.handleAbnormalCloseLocked(gen, url)
		return
	}

	c.conn = conn
	c.status = StatusOpen
	c.attempt = 0
	c.bo.Reset()
	c.mu.Unlock()

	c.log.Debug("channel open")
	if c.opts.OnOpen != nil {
		c.opts.OnOpen()
	}

	go c.readLoop(gen, url, conn)
}

// readLoop forwards inbound messages until the connection fails or the
// channel is torn down.
func (c *Channel) readLoop(gen uint64, url string, conn Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, url, err)
			return
		}

		c.mu.Lock()
		stale := c.gen != gen
		c.mu.Unlock()
		if stale {
			return
		}

		if c.opts.OnMessage != nil {
			c.opts.OnMessage(mt, data)
		}
	}
}

// handleClose classifies a read error as normal or abnormal and either stops
// permanently or schedules a reconnect.
func (c *Channel) handleClose(gen uint64, url string, err error) {
	c.mu.Lock()
	if c.gen != gen {
		// Torn down already; the teardown path owns the state.
		c.mu.Unlock()
		return
	}
	c.conn = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		c.log.Debug("channel closed normally")
		c.status = StatusClosed
		c.mu.Unlock()
		if c.opts.OnClose != nil {
			c.opts.OnClose()
		}
		return
	}

	c.log.Warn("connection lost", slog.String("error", err.Error()))
	c.handleAbnormalCloseLocked(gen, url)
}

// handleAbnormalCloseLocked schedules a reconnect or gives up when the retry
// budget is exhausted. Releases c.mu.
func (c *Channel) handleAbnormalCloseLocked(gen uint64, url string) {
	if c.attempt >= c.cfg.MaxRetries {
		c.log.Warn("retry budget exhausted, giving up",
			slog.Uint64("attempts", uint64(c.attempt)))
		c.status = StatusClosed
		c.mu.Unlock()
		if c.opts.OnClose != nil {
			c.opts.OnClose()
		}
		return
	}

	attempt := c.attempt
	delay := c.bo.NextBackOff()
	c.attempt++
	c.status = StatusConnecting
	c.timer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		c.dial(gen, url)
	})
	c.mu.Unlock()

	c.log.Debug("reconnect scheduled",
		slog.Uint64("attempt", uint64(attempt)),
		slog.Duration("delay", delay))
	if c.opts.OnReconnect != nil {
		c.opts.OnReconnect(attempt, delay)
	}
}
