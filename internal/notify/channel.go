package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// State is the connection state of the channel.
type State int

const (
	Connecting State = iota
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// DefaultCooldown is the wait between a close and the next connect attempt.
const DefaultCooldown = 5 * time.Second

const (
	msgSubscribe  = "subscribe"
	msgSubscribed = "subscribed"
	msgDataChange = "data_change"
)

// Event is a server message. Only data_change events reach the handler.
type Event struct {
	Type     string `json:"type"`
	SlaveID  *int   `json:"slave_id,omitempty"`
	DataType string `json:"data_type,omitempty"`
	Address  *int   `json:"address,omitempty"`
}

// Options configure a Channel.
type Options struct {
	URL      string
	Cooldown time.Duration
	Dialer   *websocket.Dialer
	Logger   *zap.Logger

	// OnChange receives the device id of every data_change event.
	OnChange func(slaveID int)
	// OnState receives every state transition. retryAt is set while Closed.
	OnState func(state State, retryAt time.Time)
}

// Channel keeps a subscription to the simulator's push endpoint alive. It
// reconnects after every close, waiting one cooldown between attempts.
type Channel struct {
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	state State
	retry *time.Timer
}

// New builds a Channel. Nothing is dialed until Run.
func New(opts Options) *Channel {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{opts: opts, logger: logger.Named("notify"), state: Closed}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Run connects, subscribes and delivers events until ctx is done. A pending
// reconnect timer is stopped on return.
func (c *Channel) Run(ctx context.Context) error {
	defer c.stopRetry()
	for {
		c.setState(Connecting, time.Time{})
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.logger.Warn("channel closed", zap.String("url", c.opts.URL), zap.Error(err))
		}
		if ctx.Err() != nil {
			c.setState(Closed, time.Time{})
			return ctx.Err()
		}

		timer := c.scheduleRetry()
		select {
		case <-ctx.Done():
			c.setState(Closed, time.Time{})
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection from dial to close.
func (c *Channel) session(ctx context.Context) error {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	// Unblock ReadMessage when ctx ends.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := conn.WriteJSON(Event{Type: msgSubscribe}); err != nil {
		return err
	}
	c.setState(Open, time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		c.handle(data)
	}
}

func (c *Channel) handle(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		c.logger.Warn("malformed message dropped", zap.ByteString("payload", truncate(data)), zap.Error(err))
		return
	}
	switch ev.Type {
	case msgSubscribed:
		c.logger.Debug("subscription confirmed")
	case msgDataChange:
		if ev.SlaveID == nil {
			c.logger.Warn("malformed message dropped", zap.ByteString("payload", truncate(data)), zap.Error(errors.New("data_change without slave_id")))
			return
		}
		if c.opts.OnChange != nil {
			c.opts.OnChange(*ev.SlaveID)
		}
	default:
		c.logger.Debug("message ignored", zap.String("type", ev.Type))
	}
}

// scheduleRetry arms the single reconnect timer and reports Closed with its
// due time.
func (c *Channel) scheduleRetry() *time.Timer {
	retryAt := time.Now().Add(c.opts.Cooldown)
	c.mu.Lock()
	if c.retry != nil {
		c.retry.Stop()
	}
	c.retry = time.NewTimer(c.opts.Cooldown)
	timer := c.retry
	c.mu.Unlock()

	c.setState(Closed, retryAt)
	return timer
}

func (c *Channel) stopRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}

func (c *Channel) setState(s State, retryAt time.Time) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()

	if prev != s {
		c.logger.Debug("channel state", zap.String("state", s.String()))
	}
	if c.opts.OnState != nil {
		c.opts.OnState(s, retryAt)
	}
}

func truncate(b []byte) []byte {
	const limit = 200
	if len(b) > limit {
		return b[:limit]
	}
	return b
}
