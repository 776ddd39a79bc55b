package presentation

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/mode"
)

const (
	defaultRenderQueueSize = 256
	defaultInputQueueSize  = 64
)

// Bridge connects the mode controller to the panel display.
//
// As a mode.Renderer it queues redraws without blocking; Flush draws them.
// Touch input is queued by Press and applied to the controller by
// PollInput. Flush and PollInput are meant to be called from the single
// poll/render loop goroutine; everything else is safe for concurrent use.
//
// A display error is logged once and permanently disables drawing. The
// controller and the network side keep running.
type Bridge struct {
	display    Display
	thresholds mode.Thresholds
	ctrl       Controller

	renders chan RenderCommand
	input   chan TouchEvent

	failed atomic.Bool

	rendered  atomic.Uint64
	discarded atomic.Uint64
	dropped   atomic.Uint64
	presses   atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// Controller is the part of *mode.Controller that touch input drives.
type Controller interface {
	SetMode(m device.LightMode, on bool, opts ...mode.Option)
	ToggleMode(m device.LightMode, opts ...mode.Option)
}

// Logger is the structured logger the bridge writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// TouchEvent is one widget press waiting for the poll loop.
type TouchEvent struct {
	Widget string
	// Source records where the press came from ("panel", "api").
	Source string
	At     time.Time
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Display receives render commands. Required.
	Display Display

	// Thresholds classify water levels for the water indicator.
	Thresholds mode.Thresholds

	RenderQueueSize int
	InputQueueSize  int

	Logger Logger
}

// NewBridge creates a presentation bridge. Call Bind before the poll loop
// starts calling PollInput.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.Display == nil {
		return nil, ErrDisplayRequired
	}

	renderSize := opts.RenderQueueSize
	if renderSize <= 0 {
		renderSize = defaultRenderQueueSize
	}
	inputSize := opts.InputQueueSize
	if inputSize <= 0 {
		inputSize = defaultInputQueueSize
	}

	return &Bridge{
		display:    opts.Display,
		thresholds: opts.Thresholds,
		renders:    make(chan RenderCommand, renderSize),
		input:      make(chan TouchEvent, inputSize),
		logger:     opts.Logger,
	}, nil
}

// Bind sets the controller touch input is applied to.
func (b *Bridge) Bind(ctrl Controller) {
	b.ctrl = ctrl
}

// RenderMode implements mode.Renderer.
func (b *Bridge) RenderMode(m device.LightMode, on bool) {
	b.enqueue(RenderCommand{Kind: KindMode, Mode: m, On: on})
}

// RenderWaterLevel implements mode.Renderer.
func (b *Bridge) RenderWaterLevel(level int) {
	b.enqueue(RenderCommand{
		Kind:   KindWater,
		Level:  level,
		Status: mode.ClassifyWaterLevel(level, b.thresholds),
	})
}

func (b *Bridge) enqueue(cmd RenderCommand) {
	if b.failed.Load() {
		b.discarded.Add(1)
		return
	}

	select {
	case b.renders <- cmd:
	default:
		b.dropped.Add(1)
		b.logWarn("render queue full, dropping command", "kind", string(cmd.Kind))
	}
}

// Press queues a press of widgetID from the panel.
func (b *Bridge) Press(widgetID string) error {
	return b.Submit(TouchEvent{Widget: widgetID, Source: "panel"})
}

// Submit queues a touch event. It does not block.
func (b *Bridge) Submit(ev TouchEvent) error {
	if _, ok := LookupWidget(ev.Widget); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWidget, ev.Widget)
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	select {
	case b.input <- ev:
		return nil
	default:
		return ErrInputQueueFull
	}
}

// PollInput applies every queued touch event to the controller, which also
// redraws the pressed widget's mode. It returns the number of events handled.
func (b *Bridge) PollInput() int {
	if b.ctrl == nil {
		return 0
	}

	n := 0
	for {
		select {
		case ev := <-b.input:
			b.apply(ev)
			n++
		default:
			return n
		}
	}
}

func (b *Bridge) apply(ev TouchEvent) {
	w, ok := LookupWidget(ev.Widget)
	if !ok {
		return
	}

	// The pressed widget is redrawn by the controller under the same
	// lock as the transition.
	if w.Toggle {
		b.ctrl.ToggleMode(w.Mode, mode.WithEcho())
	} else {
		b.ctrl.SetMode(w.Mode, w.On, mode.WithEcho())
	}
	b.presses.Add(1)

	b.logDebug("widget pressed", "widget", w.ID, "source", ev.Source)
}

// Flush draws all queued render commands. After the first display error
// the bridge is marked failed and remaining and future commands are
// discarded. It returns the number of commands drawn.
func (b *Bridge) Flush() int {
	n := 0
	for {
		select {
		case cmd := <-b.renders:
			if b.failed.Load() {
				b.discarded.Add(1)
				continue
			}
			if err := b.display.Render(cmd); err != nil {
				b.failed.Store(true)
				b.discarded.Add(1)
				b.logError("display failed, presentation disabled", "error", err)
				continue
			}
			b.rendered.Add(1)
			n++
		default:
			return n
		}
	}
}

// Status is a point-in-time view of the bridge.
type Status struct {
	Failed        bool   `json:"failed"`
	PendingRender int    `json:"pending_render"`
	PendingInput  int    `json:"pending_input"`
	Rendered      uint64 `json:"rendered"`
	Discarded     uint64 `json:"discarded"`
	Dropped       uint64 `json:"dropped"`
	Presses       uint64 `json:"presses"`
}

// Status returns the bridge status.
func (b *Bridge) Status() Status {
	return Status{
		Failed:        b.failed.Load(),
		PendingRender: len(b.renders),
		PendingInput:  len(b.input),
		Rendered:      b.rendered.Load(),
		Discarded:     b.discarded.Load(),
		Dropped:       b.dropped.Load(),
		Presses:       b.presses.Load(),
	}
}

// Failed reports whether the display has failed.
func (b *Bridge) Failed() bool {
	return b.failed.Load()
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) getLogger() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (b *Bridge) logWarn(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}

func (b *Bridge) logError(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Error(msg, keysAndValues...)
	}
}
