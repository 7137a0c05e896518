package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// DefaultBufferSize is how many messages are held while the broker is
// unreachable.
const DefaultBufferSize = 256

// Config describes the broker connection.
type Config struct {
	Broker     string
	ClientID   string // defaults to "dht22-<pin>"
	Pin        int
	BufferSize int

	// OnConnect and OnDisconnect, if set, are called from the client's
	// goroutines when the connection state changes.
	OnConnect    func()
	OnDisconnect func(err error)

	Logger *logrus.Entry
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// the connection is down are buffered and replayed, oldest first, once it is
// re-established.
type RealPublisher struct {
	client       paho.Client
	readingTopic string
	systemTopic  string
	log          *logrus.Entry

	mu  sync.Mutex
	buf *ringBuffer
}

// WillPayload is the retained last-will message the broker publishes on the
// system topic if the daemon disappears without a clean shutdown.
func WillPayload() []byte {
	payload, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "MQTT_DISCONNECT"})
	return payload
}

// NewRealPublisher creates a publisher connected to the given broker. The
// client keeps retrying in the background, so a broker that is down at
// startup is not fatal.
func NewRealPublisher(cfg Config) (*RealPublisher, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("dht22-%d", cfg.Pin)
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.NewEntry(logrus.StandardLogger()).WithField("prefix", "mqtt")
	}

	p := newPublisher(nil, cfg)
	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(p.systemTopic, string(WillPayload()), 1, true).
		SetOnConnectHandler(func(paho.Client) {
			p.log.WithField("broker", cfg.Broker).Info("connected")
			p.flush()
			if cfg.OnConnect != nil {
				cfg.OnConnect()
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("connection lost")
			if cfg.OnDisconnect != nil {
				cfg.OnDisconnect(err)
			}
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		p.log.WithField("broker", cfg.Broker).Warn("broker not reachable yet, buffering until connected")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func newPublisher(client paho.Client, cfg Config) *RealPublisher {
	return &RealPublisher{
		client:       client,
		readingTopic: ReadingTopic(cfg.Pin),
		systemTopic:  SystemTopic(cfg.Pin),
		log:          cfg.Logger,
		buf:          newRingBuffer(cfg.BufferSize, cfg.Logger),
	}
}

// Publish sends a reading to the MQTT broker.
func (p *RealPublisher) Publish(event ReadingEvent) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.readingTopic, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events - we want to ensure delivery
	return p.send(bufferedMsg{topic: p.systemTopic, payload: payload, qos: 1, retained: event.Retained})
}

// send publishes msg, or buffers it when the connection is down or the
// publish fails.
func (p *RealPublisher) send(msg bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return nil
	}
	if err := p.publish(msg); err != nil {
		p.mu.Lock()
		p.buf.push(msg)
		p.mu.Unlock()
		return err
	}
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// flush replays buffered messages. On the first failure the rest go back
// into the buffer for the next connection.
func (p *RealPublisher) flush() {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	for i, msg := range pending {
		if err := p.publish(msg); err != nil {
			p.log.WithError(err).WithField("remaining", len(pending)-i).Warn("replay interrupted")
			p.mu.Lock()
			for _, m := range pending[i:] {
				p.buf.push(m)
			}
			p.mu.Unlock()
			return
		}
	}
	p.log.WithField("messages", len(pending)).Info("replayed buffered messages")
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// IsConnected reports whether the client currently has a broker connection.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
