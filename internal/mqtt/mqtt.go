// Package mqtt publishes sensor readings and daemon lifecycle events to an
// MQTT broker, with a fake for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/dht22-sensor/internal/dht"
)

// TopicPrefix is the root of every topic this daemon publishes to.
const TopicPrefix = "sensors/dht22"

// ReadingTopic returns the topic readings from pin are published to.
func ReadingTopic(pin int) string {
	return fmt.Sprintf("%s/%d/reading", TopicPrefix, pin)
}

// SystemTopic returns the topic lifecycle events for pin are published to.
func SystemTopic(pin int) string {
	return fmt.Sprintf("%s/%d/system", TopicPrefix, pin)
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a reading to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event ReadingEvent) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// ReadingEvent is one successful poll.
type ReadingEvent struct {
	Timestamp time.Time
	Reading   dht.Reading
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a reading.
type Payload struct {
	DHT22 ReadingPayload `json:"dht22"`
}

// ReadingPayload contains the reading details.
type ReadingPayload struct {
	Timestamp   string  `json:"timestamp"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
}

// FormatPayload creates the JSON payload for a reading.
func FormatPayload(event ReadingEvent) ([]byte, error) {
	payload := Payload{
		DHT22: ReadingPayload{
			Timestamp:   event.Timestamp.UTC().Format(time.RFC3339),
			Humidity:    event.Reading.Humidity,
			Temperature: event.Reading.Temperature,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// NopPublisher discards everything. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ReadingEvent) error { return nil }

func (NopPublisher) PublishSystem(SystemEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
