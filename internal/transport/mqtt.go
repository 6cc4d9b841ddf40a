package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	// BrokerURL is the broker address (mqtt://, tcp://, ssl:// or ws://).
	BrokerURL string

	// ClientID identifies this client to the broker.
	ClientID string

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// KeepAlive is the MQTT keep-alive interval in seconds. Default: 30.
	KeepAlive uint16

	// ConnectTimeout bounds the initial connection attempt. Default: 10s.
	ConnectTimeout time.Duration

	// WillTopic, when set, registers a broker-side last-will message that
	// marks this client offline after an ungraceful disconnect. A retained
	// "online" status is published to the same topic on every connect.
	WillTopic string
}

// MQTT publishes over an MQTT v5 connection with automatic reconnection.
// Publishes issued while the connection is down fail with the context's
// deadline rather than queueing, keeping the pipeline's drop-not-resend
// contract.
type MQTT struct {
	cm        *autopaho.ConnectionManager
	willTopic string

	mu        sync.Mutex
	connected bool
	closed    bool
}

var (
	_ Publisher = (*MQTT)(nil)
	_ Connected = (*MQTT)(nil)
)

// NewMQTT connects to the broker and returns once the connection manager is
// running. The returned publisher reconnects automatically with exponential
// backoff; ctx bounds only the initial setup.
func NewMQTT(ctx context.Context, cfg MQTTConfig) (*MQTT, error) {
	serverURL, err := url.Parse(normalizeBrokerURL(cfg.BrokerURL))
	if err != nil {
		return nil, fmt.Errorf("transport: invalid broker URL %q: %w", cfg.BrokerURL, err)
	}
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 30
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	m := &MQTT{willTopic: cfg.WillTopic}

	clientCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		ConnectUsername:               cfg.Username,
		ConnectPassword:               []byte(cfg.Password),
		ConnectTimeout:                cfg.ConnectTimeout,

		ReconnectBackoff: autopaho.NewExponentialBackoff(
			1*time.Second,
			60*time.Second,
			2*time.Second,
			2.0,
		),

		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			m.mu.Lock()
			m.connected = true
			m.mu.Unlock()
			slog.Info("mqtt connected", "broker", serverURL.Host)
			if cfg.WillTopic != "" {
				go publishStatus(cm, cfg.WillTopic, statusOnline)
			}
		},

		OnConnectionDown: func() bool {
			m.mu.Lock()
			m.connected = false
			closed := m.closed
			m.mu.Unlock()
			if !closed {
				slog.Warn("mqtt connection lost, reconnecting", "broker", serverURL.Host)
			}
			return !closed
		},

		OnConnectError: func(err error) {
			slog.Error("mqtt connect error", "broker", serverURL.Host, "err", err)
		},

		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
		},
	}

	if cfg.WillTopic != "" {
		clientCfg.WillMessage = &paho.WillMessage{
			Topic:   cfg.WillTopic,
			Payload: []byte(statusOffline),
			QoS:     1,
			Retain:  true,
		}
	}

	cm, err := autopaho.NewConnection(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("transport: mqtt connection: %w", err)
	}
	m.cm = cm

	if err := cm.AwaitConnection(ctx); err != nil {
		_ = cm.Disconnect(context.Background())
		return nil, fmt.Errorf("transport: await mqtt connection: %w", err)
	}
	return m, nil
}

// Publish sends one message at the given QoS. JSON payloads are tagged with
// a content type so broker-side consumers can route on it.
func (m *MQTT) Publish(ctx context.Context, topic string, payload []byte, json bool, qos byte) error {
	pub := &paho.Publish{
		QoS:     qos,
		Topic:   topic,
		Payload: payload,
	}
	if json {
		pub.Properties = &paho.PublishProperties{ContentType: "application/json"}
	}
	if _, err := m.cm.Publish(ctx, pub); err != nil {
		return fmt.Errorf("transport: mqtt publish %s: %w", topic, err)
	}
	return nil
}

// Connected reports whether the broker link is currently up.
func (m *MQTT) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Close disconnects from the broker. Safe to call more than once.
func (m *MQTT) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	// A graceful disconnect does not fire the broker-side will, so retract
	// the presence ourselves.
	if m.willTopic != "" {
		publishStatus(m.cm, m.willTopic, statusOffline)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.cm.Disconnect(ctx)
}

const (
	statusOnline  = `{"status":"online"}`
	statusOffline = `{"status":"offline"}`
)

// publishStatus sends a retained presence message. Failures are logged, not
// returned: presence is advisory and never blocks the pipeline.
func publishStatus(cm *autopaho.ConnectionManager, topic, status string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := cm.Publish(ctx, &paho.Publish{
		QoS:     1,
		Retain:  true,
		Topic:   topic,
		Payload: []byte(status),
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	if err != nil {
		slog.Warn("mqtt presence publish failed", "topic", topic, "err", err)
	}
}

// normalizeBrokerURL rewrites tcp:// to mqtt:// for autopaho compatibility.
func normalizeBrokerURL(raw string) string {
	if len(raw) > 6 && raw[:6] == "tcp://" {
		return "mqtt://" + raw[6:]
	}
	return raw
}
