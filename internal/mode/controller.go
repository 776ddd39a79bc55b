package mode

import (
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
)

// Deps holds the collaborators of a Controller.
type Deps struct {
	Publisher Publisher // required
	Renderer  Renderer  // required
	Observer  Observer  // optional

	// DefaultWaterLevel seeds the initial state; it is clamped.
	DefaultWaterLevel int
}

// Controller is the only component that constructs state transitions.
//
// It owns the device.Store and enforces mutual exclusion between the light
// modes. Every operation runs to completion without blocking and never
// fails, so it may be called from the network callback goroutine and the
// poll/render loop alike.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Side effects are dispatched in the same order as the transitions
//     that produced them.
type Controller struct {
	store     *device.Store
	publisher Publisher
	renderer  Renderer
	observer  Observer

	// emitMu covers a write together with the dispatch of its signals.
	// Reads do not take it.
	emitMu sync.Mutex

	now func() time.Time
}

// New creates a Controller with a fresh state: both modes off and the
// configured default water level.
//
// Parameters:
//   - deps: Publisher and Renderer ports, optional Observer, default water level
//
// Returns:
//   - *Controller: Controller ready for use
//   - error: If a required port is missing
func New(deps Deps) (*Controller, error) {
	if deps.Publisher == nil {
		return nil, fmt.Errorf("%w: publisher", ErrMissingDependency)
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("%w: renderer", ErrMissingDependency)
	}

	return &Controller{
		store:     device.NewStore(device.NewState(deps.DefaultWaterLevel)),
		publisher: deps.Publisher,
		renderer:  deps.Renderer,
		observer:  deps.Observer,
		now:       time.Now,
	}, nil
}

// Option adjusts the signals of one SetMode or ToggleMode call.
type Option func(*callOptions)

type callOptions struct {
	echo bool
}

// WithEcho makes the call also redraw m itself. Inputs whose widget does
// not follow the state on its own (queued presses, remote commands) use it,
// so the redraw is ordered with the signals of every other transition.
func WithEcho() Option {
	return func(o *callOptions) { o.echo = true }
}

func applyOptions(opts []Option) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// SetMode sets m's flag to on. Turning a mode on turns the other mode off
// in the same atomic write.
//
// Signals, in order:
//  1. if the other mode was on and has been forced off, RenderMode(other, false)
//  2. with WithEcho, RenderMode(m, on)
//  3. PublishMode(m, on), always, even when the flag did not change
func (c *Controller) SetMode(m device.LightMode, on bool, opts ...Option) {
	if !m.Valid() {
		return
	}
	o := applyOptions(opts)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	tr := c.store.Write(func(s device.State) device.State {
		return s.WithMode(m, on)
	})
	c.emitModeChange(m, tr, o, device.StateHistorySourceSetMode)
}

// ToggleMode flips m's flag. The read of the current value and the write
// of its negation happen under one store lock, so concurrent toggles
// never read the same stale value. Signals are those of SetMode.
func (c *Controller) ToggleMode(m device.LightMode, opts ...Option) {
	if !m.Valid() {
		return
	}
	o := applyOptions(opts)

	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	tr := c.store.Write(func(s device.State) device.State {
		return s.WithMode(m, !s.Mode(m))
	})
	c.emitModeChange(m, tr, o, device.StateHistorySourceToggleMode)
}

// UpdateWaterLevel clamps level to [0,100], stores it and asks the
// renderer to redraw the water indicator.
func (c *Controller) UpdateWaterLevel(level int) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	tr := c.store.Write(func(s device.State) device.State {
		return s.WithWaterLevel(level)
	})
	c.renderer.RenderWaterLevel(tr.Next.WaterLevel)
	c.notify(device.StateHistorySourceWaterLevel, tr)
}

// ModeState reports whether m is on.
func (c *Controller) ModeState(m device.LightMode) bool {
	return c.store.Read().Mode(m)
}

// WaterLevel returns the current water level.
func (c *Controller) WaterLevel() int {
	return c.store.Read().WaterLevel
}

// Snapshot returns a consistent copy of the whole state.
func (c *Controller) Snapshot() device.State {
	return c.store.Read()
}

// emitModeChange dispatches the signals for a mode transition. Caller holds emitMu.
func (c *Controller) emitModeChange(m device.LightMode, tr device.Transition, o callOptions, source string) {
	on := tr.Next.Mode(m)
	other := m.Other()

	if on && tr.Prev.Mode(other) {
		c.renderer.RenderMode(other, false)
	}
	if o.echo {
		c.renderer.RenderMode(m, on)
	}
	c.publisher.PublishMode(m, on)
	c.notify(source, tr)
}

func (c *Controller) notify(source string, tr device.Transition) {
	if c.observer == nil {
		return
	}
	c.observer.StateChanged(Change{
		Source:     source,
		Transition: tr,
		At:         c.now().UTC(),
	})
}
