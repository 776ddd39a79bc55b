package mqtt

import (
	"strings"

	"github.com/nerrad567/indicator-core/internal/infrastructure/config"
)

// Topics provides the indicator's configured MQTT topics.
//
// Topic names come from config so a deployment can re-home the device
// under its own prefix; the defaults match the original firmware:
//
//	topics := mqtt.NewTopics(cfg.MQTT.Topics)
//	topics.WaterLevel() // "sensecap/indicator/water/level"
type Topics struct {
	cfg config.MQTTTopicsConfig
}

// NewTopics creates a Topics from config.
func NewTopics(cfg config.MQTTTopicsConfig) Topics {
	return Topics{cfg: cfg}
}

// LightState is where mode changes are published ({"mode":...,"state":...}).
func (t Topics) LightState() string { return t.cfg.LightState }

// LightCommand is where remote mode commands arrive. Empty disables them.
func (t Topics) LightCommand() string { return t.cfg.LightCommand }

// WaterLevel is where tank level readings arrive (decimal integer payload).
func (t Topics) WaterLevel() string { return t.cfg.WaterLevel }

// Status carries the retained online/offline status and the LWT.
func (t Topics) Status() string { return t.cfg.Status }

// Health carries the periodic retained health report.
func (t Topics) Health() string { return t.cfg.Health }

// Match reports whether topic matches the subscription filter, honouring
// the + (single level) and # (multi level) wildcards.
//
// Example:
//
//	Match("sensecap/+/water/#", "sensecap/indicator/water/level") // true
func Match(filter, topic string) bool {
	if filter == topic {
		return true
	}

	fParts := strings.Split(filter, "/")
	tParts := strings.Split(topic, "/")

	for i, f := range fParts {
		switch {
		case f == "#":
			return true
		case i >= len(tParts):
			return false
		case f == "+":
			continue
		case f != tParts[i]:
			return false
		}
	}
	return len(fParts) == len(tParts)
}
