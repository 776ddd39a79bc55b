package network

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
)

// LightStateMessage is published whenever the controller reports a mode.
// Topic: sensecap/indicator/light/state
// QoS: configured (default 1), Retained: No
//
// The payload has exactly two fields, e.g. {"mode":"bright","state":1}.
type LightStateMessage struct {
	Mode  device.LightMode `json:"mode"`
	State int              `json:"state"`
}

// NewLightStateMessage creates the message for mode m being on or off.
func NewLightStateMessage(m device.LightMode, on bool) LightStateMessage {
	return LightStateMessage{Mode: m, State: boolToState(on)}
}

// LightCommandMessage is a remote mode command.
// Topic: sensecap/indicator/light/set
//
// It uses the same shape as LightStateMessage so a dashboard can echo a
// state message back as a command.
type LightCommandMessage struct {
	Mode  string `json:"mode"`
	State *int   `json:"state"`
}

// ParseLightCommand decodes a light command payload.
//
// Returns:
//   - device.LightMode: The commanded mode
//   - bool: The commanded flag
//   - error: ErrInvalidCommand if the payload is not a valid command
func ParseLightCommand(payload []byte) (device.LightMode, bool, error) {
	var msg LightCommandMessage
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	m, err := device.ParseLightMode(msg.Mode)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}

	if msg.State == nil {
		return 0, false, fmt.Errorf("%w: state is required", ErrInvalidCommand)
	}
	switch *msg.State {
	case 0:
		return m, false, nil
	case 1:
		return m, true, nil
	default:
		return 0, false, fmt.Errorf("%w: state must be 0 or 1, got %d", ErrInvalidCommand, *msg.State)
	}
}

// ParseWaterLevel decodes a water level payload: a decimal integer with
// optional surrounding whitespace. Out-of-range integers saturate to the
// int bounds; the controller clamps them to [0,100] afterwards.
//
// Example:
//
//	ParseWaterLevel([]byte(" 42\n")) // 42, nil
//	ParseWaterLevel([]byte("4.2"))   // 0, ErrInvalidWaterLevel
func ParseWaterLevel(payload []byte) (int, error) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return 0, fmt.Errorf("%w: empty payload", ErrInvalidWaterLevel)
	}

	level, err := strconv.Atoi(s)
	if err == nil {
		return level, nil
	}

	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(s, "-") {
			return math.MinInt, nil
		}
		return math.MaxInt, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidWaterLevel, s)
}

func boolToState(on bool) int {
	if on {
		return 1
	}
	return 0
}

// HealthStatus represents the operational status of the network bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the broker is connected and publishing works.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the indicator runs but the broker is unreachable.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the indicator's status to the broker.
// Topic: sensecap/indicator/health
// QoS: 1, Retained: Yes
// Interval: Every 30 seconds
type HealthMessage struct {
	Device        string       `json:"device"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// State is the indicator state at the time of the report.
	State *device.State `json:"state,omitempty"`

	Statistics *Stats `json:"statistics,omitempty"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// Stats counts bridge traffic since start.
type Stats struct {
	// Published is the number of light state messages the broker accepted.
	Published uint64 `json:"published"`

	// PublishFailed counts publishes the client rejected.
	PublishFailed uint64 `json:"publish_failed"`

	// Dropped counts messages discarded because the outbox was full.
	Dropped uint64 `json:"dropped"`

	// Received counts inbound messages that changed state.
	Received uint64 `json:"received"`

	// Rejected counts inbound messages that failed to parse.
	Rejected uint64 `json:"rejected"`
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(deviceID, version string, status HealthStatus, state device.State, stats Stats, startTime time.Time) HealthMessage {
	return HealthMessage{
		Device:        deviceID,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       version,
		UptimeSeconds: int64(time.Since(startTime).Seconds()),
		State:         &state,
		Statistics:    &stats,
	}
}
