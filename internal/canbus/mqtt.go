package canbus

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type MQTTSourceConfig struct {
	Name   string
	Broker string // e.g. tcp://gateway.local:1883
	Topic  string // e.g. boat/can/frames

	ClientID string
	Username string
	Password string

	ConnectTimeout time.Duration
}

// MQTTSource subscribes to a gateway topic carrying raw CAN frames as JSON
// and hands them to a callback. Reconnection is delegated to the paho client.
type MQTTSource struct {
	cfg    MQTTSourceConfig
	client mqtt.Client

	started atomic.Bool
	closed  atomic.Bool

	mu       sync.RWMutex
	lastErr  string
	lastSeen time.Time
	count    uint64
	dropped  uint64
}

type MQTTSnapshot struct {
	Name        string `json:"name"`
	Broker      string `json:"broker"`
	Topic       string `json:"topic"`
	Connected   bool   `json:"connected"`
	LastError   string `json:"last_error,omitempty"`
	LastSeenUTC string `json:"last_seen_utc,omitempty"`
	Frames      uint64 `json:"frames"`
	Dropped     uint64 `json:"dropped"`
}

func NewMQTTSource(cfg MQTTSourceConfig) (*MQTTSource, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("mqtt source name is required")
	}
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt source broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt source topic is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("saillogger-%d", time.Now().Unix())
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	return &MQTTSource{cfg: cfg}, nil
}

// Start connects to the broker and subscribes. The paho client keeps the
// connection alive and resubscribes on reconnect.
func (m *MQTTSource) Start(onFrame func(Frame)) error {
	if m == nil {
		return fmt.Errorf("mqtt source is nil")
	}
	if m.closed.Load() {
		return fmt.Errorf("mqtt source is closed")
	}
	if onFrame == nil {
		return fmt.Errorf("mqtt onFrame is nil")
	}
	if m.started.Swap(true) {
		return fmt.Errorf("mqtt source already started")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(m.cfg.Broker)
	opts.SetClientID(m.cfg.ClientID)
	if m.cfg.Username != "" {
		opts.SetUsername(m.cfg.Username)
		opts.SetPassword(m.cfg.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(m.cfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(client mqtt.Client) {
		slog.Info("mqtt connected", "broker", m.cfg.Broker)
		token := client.Subscribe(m.cfg.Topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			frame, ok := ParseFramePayload(msg.Payload())
			if !ok {
				m.mu.Lock()
				m.dropped++
				m.mu.Unlock()
				return
			}
			onFrame(frame)
			now := time.Now().UTC()
			m.mu.Lock()
			m.lastSeen = now
			m.count++
			m.mu.Unlock()
		})
		token.Wait()
		if err := token.Error(); err != nil {
			m.setErr("subscribe: " + err.Error())
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "err", err)
		m.setErr(err.Error())
	}

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(m.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (m *MQTTSource) Close() {
	if m == nil {
		return
	}
	if m.closed.Swap(true) {
		return
	}
	if m.client != nil && m.client.IsConnected() {
		m.client.Disconnect(1000)
	}
}

func (m *MQTTSource) Snapshot(nowUTC time.Time) MQTTSnapshot {
	if m == nil {
		return MQTTSnapshot{}
	}
	m.mu.RLock()
	lastErr := m.lastErr
	lastSeen := m.lastSeen
	count := m.count
	dropped := m.dropped
	m.mu.RUnlock()

	out := MQTTSnapshot{
		Name:      m.cfg.Name,
		Broker:    m.cfg.Broker,
		Topic:     m.cfg.Topic,
		Connected: m.client != nil && m.client.IsConnected(),
		LastError: lastErr,
		Frames:    count,
		Dropped:   dropped,
	}
	if !lastSeen.IsZero() {
		out.LastSeenUTC = lastSeen.UTC().Format(time.RFC3339Nano)
	}
	return out
}

func (m *MQTTSource) setErr(msg string) {
	m.mu.Lock()
	m.lastErr = msg
	m.mu.Unlock()
}

type framePayload struct {
	ID   uint32          `json:"id"`
	Ext  *bool           `json:"ext"`
	Data json.RawMessage `json:"data"`
	TS   *float64        `json:"ts"` // unix milliseconds
}

// ParseFramePayload parses one gateway JSON payload into a Frame.
//
// Expected shape: {"id": <29-bit id>, "ext": true, "data": "00d83200ffff", "ts": 1723315800123}
// where data may also be an array of byte values. Frames marked non-extended
// are dropped; a missing timestamp falls back to now.
func ParseFramePayload(payload []byte) (Frame, bool) {
	var msg framePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Frame{}, false
	}
	if msg.Ext != nil && !*msg.Ext {
		return Frame{}, false
	}

	data, ok := parseFrameData(msg.Data)
	if !ok || len(data) > 8 {
		return Frame{}, false
	}

	ts := time.Now().UTC()
	if msg.TS != nil {
		ts = time.UnixMilli(int64(*msg.TS)).UTC()
	}

	return Frame{
		ArbitrationID: msg.ID & 0x1FFFFFFF,
		Data:          data,
		Timestamp:     ts,
	}, true
}

func parseFrameData(raw json.RawMessage) ([]byte, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var hexStr string
	if err := json.Unmarshal(raw, &hexStr); err == nil {
		hexStr = strings.TrimPrefix(strings.TrimSpace(hexStr), "0x")
		data, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, false
		}
		return data, true
	}

	var nums []float64
	if err := json.Unmarshal(raw, &nums); err != nil {
		return nil, false
	}
	data := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return nil, false
		}
		data[i] = byte(n)
	}
	return data, true
}
