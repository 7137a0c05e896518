package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/dht22-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event               string       `json:"event,omitempty"`
	Reason              string       `json:"reason,omitempty"`
	Reading             *ReadingJSON `json:"reading,omitempty"`
	LastError           string       `json:"last_error,omitempty"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	UptimeSeconds       int64        `json:"uptime_seconds"`
	StartTime           string       `json:"start_time"`
	Timestamp           string       `json:"timestamp"`
	MQTT                MQTTStatus   `json:"mqtt"`
	Counts              logic.Counts `json:"poll_counts"`
	Config              ConfigJSON   `json:"config"`
}

// ReadingJSON is the last successful reading.
type ReadingJSON struct {
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Timestamp   string  `json:"timestamp"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	Pin         int    `json:"pin"`
	IntervalMs  int64  `json:"interval_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	MaxAttempts int    `json:"max_attempts"`
	Broker      string `json:"broker"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		LastError:           string(snap.LastError),
		ConsecutiveFailures: snap.ConsecutiveFailures,
		UptimeSeconds:       int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:           snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:           snap.Now.UTC().Format(time.RFC3339),
		MQTT:                MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:              snap.Counts,
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			Pin:         snap.Config.Pin,
			IntervalMs:  snap.Config.IntervalMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			MaxAttempts: snap.Config.MaxAttempts,
			Broker:      snap.Config.Broker,
		},
	}
	if snap.HasReading() {
		inner.Reading = &ReadingJSON{
			Humidity:    snap.Reading.Humidity,
			Temperature: snap.Reading.Temperature,
			Timestamp:   snap.ReadingAt.UTC().Format(time.RFC3339),
		}
	}
	return inner
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
