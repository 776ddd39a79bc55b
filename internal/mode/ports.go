package mode

import (
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
)

// Publisher sends a mode's state to the network.
//
// Implementations must not block: they queue the message and deliver it
// best-effort. Delivery failures never reach the controller.
type Publisher interface {
	PublishMode(m device.LightMode, on bool)
}

// Renderer asks the presentation layer to redraw part of the state.
//
// Implementations must not block waiting for the display.
type Renderer interface {
	RenderMode(m device.LightMode, on bool)
	RenderWaterLevel(level int)
}

// Observer is notified after every transition, once its render and publish
// signals have been dispatched. Implementations must not block.
type Observer interface {
	StateChanged(change Change)
}

// Change describes one controller transition.
type Change struct {
	// Source is the controller operation, one of the device.StateHistorySource* values.
	Source     string
	Transition device.Transition
	At         time.Time
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(m device.LightMode, on bool)

// PublishMode calls f(m, on).
func (f PublisherFunc) PublishMode(m device.LightMode, on bool) { f(m, on) }

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(change Change)

// StateChanged calls f(change).
func (f ObserverFunc) StateChanged(change Change) { f(change) }
