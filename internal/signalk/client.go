package signalk

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

type ClientConfig struct {
	Name string
	// URL of the delta stream, e.g.
	// ws://localhost:3000/signalk/v1/stream?subscribe=all
	URL string

	// ReconnectMax caps the exponential backoff between connection attempts.
	ReconnectMax time.Duration
	DialTimeout  time.Duration
}

// Client reads Signal K delta messages from a WebSocket and hands the raw
// bytes to a callback. It reconnects with exponential backoff, doubling from
// one second up to ReconnectMax, and resets after a successful connection.
type Client struct {
	cfg ClientConfig

	started atomic.Bool
	closed  atomic.Bool

	mu       sync.RWMutex
	state    string
	lastErr  string
	lastSeen time.Time
	count    uint64

	cancel context.CancelFunc
	done   chan struct{}
}

type ClientSnapshot struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Messages    uint64 `json:"messages"`
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("signalk client name is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("signalk client url is required")
	}
	if cfg.ReconnectMax <= 0 {
		cfg.ReconnectMax = 5 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Client{cfg: cfg, state: "stopped", done: make(chan struct{})}, nil
}

// Start connects and reads delta messages until the context is cancelled.
// onDelta receives the raw message bytes; it should be fast.
func (c *Client) Start(ctx context.Context, onDelta func(raw []byte)) error {
	if c == nil {
		return fmt.Errorf("signalk client is nil")
	}
	if c.closed.Load() {
		return fmt.Errorf("signalk client is closed")
	}
	if onDelta == nil {
		return fmt.Errorf("signalk onDelta is nil")
	}
	if c.started.Swap(true) {
		return fmt.Errorf("signalk client already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setState("connecting", "")

	go func() {
		defer close(c.done)
		c.runLoop(runCtx, onDelta)
	}()
	return nil
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.closed.Swap(true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
}

func (c *Client) Snapshot(nowUTC time.Time) ClientSnapshot {
	if c == nil {
		return ClientSnapshot{}
	}
	c.mu.RLock()
	state := c.state
	lastErr := c.lastErr
	lastSeen := c.lastSeen
	count := c.count
	c.mu.RUnlock()

	out := ClientSnapshot{
		Name:      c.cfg.Name,
		URL:       c.cfg.URL,
		State:     state,
		LastError: lastErr,
		Messages:  count,
	}
	if !lastSeen.IsZero() {
		out.LastSeenUTC = lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (c *Client) runLoop(ctx context.Context, onDelta func(raw []byte)) {
	dialer := &websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	delay := 1 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.setState("stopped", "")
			return
		default:
		}

		c.setState("connecting", "")
		conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.setState("error", err.Error())
			slog.Warn("signalk connect failed", "url", c.cfg.URL, "err", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				c.setState("stopped", "")
				return
			}
			delay = min(delay*2, c.cfg.ReconnectMax)
			continue
		}

		c.setState("connected", "")
		slog.Info("signalk connected", "url", c.cfg.URL)
		delay = 1 * time.Second

		// Unblock ReadMessage when the context is cancelled.
		readCtx, stopWatch := context.WithCancel(ctx)
		go func() {
			<-readCtx.Done()
			_ = conn.Close()
		}()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					stopWatch()
					c.setState("stopped", "")
					return
				}
				c.setState("disconnected", err.Error())
				slog.Warn("signalk read failed", "err", err)
				break
			}
			onDelta(raw)

			now := time.Now().UTC()
			c.mu.Lock()
			c.lastSeen = now
			c.count++
			c.mu.Unlock()
		}
		stopWatch()

		if !sleepCtx(ctx, delay) {
			c.setState("stopped", "")
			return
		}
		delay = min(delay*2, c.cfg.ReconnectMax)
	}
}

func (c *Client) setState(state string, lastErr string) {
	c.mu.Lock()
	c.state = state
	if lastErr != "" {
		c.lastErr = lastErr
	} else if state == "connected" || state == "connecting" || state == "stopped" {
		// Clear stale errors on healthy/neutral states so status output
		// doesn't look broken after a transient startup failure.
		c.lastErr = ""
	}
	c.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
