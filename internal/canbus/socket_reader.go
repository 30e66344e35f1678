package canbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type SocketReaderConfig struct {
	Name      string
	Interface string

	ReconnectDelay time.Duration
}

// SocketReader reads raw frames from a local socketcan interface and hands
// them to a callback, reopening the socket on error.
type SocketReader struct {
	cfg SocketReaderConfig

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

type SocketSnapshot struct {
	Name        string `json:"name"`
	Interface   string `json:"interface"`
	State       string `json:"state"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Frames      uint64 `json:"frames"`
}

func NewSocketReader(cfg SocketReaderConfig) (*SocketReader, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("can reader name is required")
	}
	if cfg.Interface == "" {
		return nil, fmt.Errorf("can reader interface is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 1 * time.Second
	}
	return &SocketReader{cfg: cfg, state: "stopped", done: make(chan struct{})}, nil
}

// Start opens the interface and reads frames until the context is cancelled.
// onFrame should be fast; if it can block, it should offload work.
func (r *SocketReader) Start(ctx context.Context, onFrame func(Frame)) error {
	if r == nil {
		return fmt.Errorf("can reader is nil")
	}
	if r.closed.Load() {
		return fmt.Errorf("can reader is closed")
	}
	if onFrame == nil {
		return fmt.Errorf("can onFrame is nil")
	}
	if r.started.Swap(true) {
		return fmt.Errorf("can reader already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.setState("opening", "")

	go func() {
		defer close(r.done)
		r.runLoop(runCtx, onFrame)
	}()
	return nil
}

func (r *SocketReader) Close() {
	if r == nil {
		return
	}
	if r.closed.Swap(true) {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *SocketReader) Snapshot(nowUTC time.Time) SocketSnapshot {
	if r == nil {
		return SocketSnapshot{}
	}
	r.mu.RLock()
	state := r.state
	lastErr := r.lastErr
	lastSeen := r.lastSeen
	count := r.count
	r.mu.RUnlock()

	out := SocketSnapshot{
		Name:      r.cfg.Name,
		Interface: r.cfg.Interface,
		State:     state,
		LastError: lastErr,
		Frames:    count,
	}
	if !lastSeen.IsZero() {
		out.LastSeenUTC = lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (r *SocketReader) runLoop(ctx context.Context, onFrame func(Frame)) {
	for {
		select {
		case <-ctx.Done():
			r.setState("stopped", "")
			return
		default:
		}

		r.setState("opening", "")
		sock, err := openSocketCAN(r.cfg.Interface)
		if err != nil {
			r.setState("error", err.Error())
			slog.Warn("can open failed", "interface", r.cfg.Interface, "err", err)
			if !sleepCtx(ctx, r.cfg.ReconnectDelay) {
				r.setState("stopped", "")
				return
			}
			continue
		}

		r.setState("open", "")
		slog.Info("can interface open", "interface", r.cfg.Interface)

		// Unblock the read when the context is cancelled.
		readCtx, stopWatch := context.WithCancel(ctx)
		go func() {
			<-readCtx.Done()
			_ = sock.Close()
		}()

		for {
			frame, err := sock.ReadFrame()
			if err != nil {
				if ctx.Err() != nil {
					stopWatch()
					r.setState("stopped", "")
					return
				}
				r.setState("error", err.Error())
				slog.Warn("can read failed", "err", err)
				break
			}
			onFrame(frame)

			now := time.Now().UTC()
			r.mu.Lock()
			r.lastSeen = now
			r.count++
			r.mu.Unlock()
		}
		stopWatch()

		if !sleepCtx(ctx, r.cfg.ReconnectDelay) {
			r.setState("stopped", "")
			return
		}
	}
}

func (r *SocketReader) setState(state string, lastErr string) {
	r.mu.Lock()
	r.state = state
	if lastErr != "" {
		r.lastErr = lastErr
	} else if state == "open" || state == "opening" || state == "stopped" {
		r.lastErr = ""
	}
	r.mu.Unlock()
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
