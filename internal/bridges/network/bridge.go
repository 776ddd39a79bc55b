package network

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/indicator-core/internal/mode"
)

const (
	defaultQueueSize = 64

	// drainTimeout bounds how long Stop spends publishing queued messages.
	drainTimeout = 2 * time.Second
)

// Bridge connects the mode controller to the MQTT broker.
// It handles:
//   - Publishing light state for every controller PublishMode signal
//   - Receiving water level readings and forwarding them to the controller
//   - Receiving remote light commands
//   - Periodic health reporting
//
// Publishing is asynchronous: PublishMode only enqueues, and a single
// worker goroutine drains the queue in order. The bridge works without a
// broker; messages are then counted as failed and discarded.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	mqtt   MQTTClient // nil when running offline
	topics mqtt.Topics
	qos    byte

	ctrl   Controller
	health *HealthReporter

	outbox chan []byte

	published     atomic.Uint64
	publishFailed atomic.Uint64
	dropped       atomic.Uint64
	received      atomic.Uint64
	rejected      atomic.Uint64

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// MQTTClient is the subset of *mqtt.Client the bridge uses.
// This allows mocking in tests.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Controller is the part of *mode.Controller the bridge drives.
type Controller interface {
	SetMode(m device.LightMode, on bool, opts ...mode.Option)
	UpdateWaterLevel(level int)
	Snapshot() device.State
}

// Logger is the structured logger the bridge writes to.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// MQTTClient is the broker connection. Nil runs the bridge offline.
	MQTTClient MQTTClient

	// Topics are the configured topic names.
	Topics mqtt.Topics

	// QoS is used for light state publishes and subscriptions.
	QoS byte

	// QueueSize bounds the publish outbox. Default: 64.
	QueueSize int

	// DeviceID and Version identify the indicator in health messages.
	DeviceID string
	Version  string

	// HealthInterval is how often health is published. Default: 30s.
	HealthInterval time.Duration

	// Logger is an optional structured logger.
	Logger Logger
}

// NewBridge creates a bridge. Call Bind and then Start.
func NewBridge(opts Options) *Bridge {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	b := &Bridge{
		mqtt:   opts.MQTTClient,
		topics: opts.Topics,
		qos:    opts.QoS,
		outbox: make(chan []byte, size),
		done:   make(chan struct{}),
		logger: opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		DeviceID:  opts.DeviceID,
		Version:   opts.Version,
		Topic:     opts.Topics.Health(),
		Interval:  opts.HealthInterval,
		Publisher: opts.MQTTClient,
		Snapshot:  b.snapshot,
		Stats:     b.Stats,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b
}

// Bind sets the controller that inbound messages drive.
// It must be called before Start; the controller in turn uses the bridge
// as its mode.Publisher.
func (b *Bridge) Bind(ctrl Controller) {
	b.ctrl = ctrl
}

// Start subscribes to the inbound topics and starts the publish worker
// and health reporting.
func (b *Bridge) Start(ctx context.Context) error {
	if b.ctrl == nil {
		return ErrNotBound
	}

	var err error
	b.startOnce.Do(func() {
		if b.mqtt != nil {
			if err = b.subscribe(); err != nil {
				return
			}
		} else {
			b.logWarn("no MQTT client, running offline")
		}

		b.wg.Add(1)
		go b.publishLoop()

		if b.mqtt != nil && b.topics.Health() != "" {
			if perr := b.health.PublishStarting(); perr != nil {
				b.logDebug("failed to publish starting status", "error", perr)
			}
			b.health.Start(ctx)
		}

		b.logInfo("network bridge started",
			"water_topic", b.topics.WaterLevel(),
			"state_topic", b.topics.LightState())
	})
	return err
}

func (b *Bridge) subscribe() error {
	if err := b.mqtt.Subscribe(b.topics.WaterLevel(), b.qos, b.HandleWaterLevel); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, b.topics.WaterLevel(), err)
	}

	if b.topics.LightCommand() != "" {
		if err := b.mqtt.Subscribe(b.topics.LightCommand(), b.qos, b.HandleLightCommand); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, b.topics.LightCommand(), err)
		}
	}
	return nil
}

// Stop stops health reporting and the publish worker, giving queued
// messages a short window to go out first. Safe to call multiple times.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.wg.Wait()

		if b.mqtt != nil && b.topics.Health() != "" {
			b.health.Stop()
		}
		b.logInfo("network bridge stopped")
	})
}

// PublishMode implements mode.Publisher. It never blocks: when the outbox
// is full the message is dropped with a warning.
func (b *Bridge) PublishMode(m device.LightMode, on bool) {
	payload, err := json.Marshal(NewLightStateMessage(m, on))
	if err != nil {
		b.logError("encoding light state", "mode", m.String(), "error", err)
		return
	}

	select {
	case b.outbox <- payload:
	default:
		b.dropped.Add(1)
		b.logWarn("publish queue full, dropping light state", "mode", m.String(), "on", on)
	}
}

// publishLoop drains the outbox in order until Stop.
func (b *Bridge) publishLoop() {
	defer b.wg.Done()

	for {
		select {
		case payload := <-b.outbox:
			b.publish(payload)
		case <-b.done:
			b.drain()
			return
		}
	}
}

// drain publishes whatever is still queued, within drainTimeout.
func (b *Bridge) drain() {
	deadline := time.Now().Add(drainTimeout)
	for time.Now().Before(deadline) {
		select {
		case payload := <-b.outbox:
			b.publish(payload)
		default:
			return
		}
	}
}

func (b *Bridge) publish(payload []byte) {
	if b.mqtt == nil {
		b.publishFailed.Add(1)
		return
	}

	if err := b.mqtt.Publish(b.topics.LightState(), payload, b.qos, false); err != nil {
		b.publishFailed.Add(1)
		b.logWarn("light state publish failed",
			"topic", b.topics.LightState(),
			"payload", string(payload),
			"error", err)
		return
	}
	b.published.Add(1)
	b.logDebug("light state published", "payload", string(payload))
}

// HandleWaterLevel processes a water level message. Invalid payloads are
// counted and returned as errors without touching the state.
//
// It is the subscription handler for the water level topic and is also fed
// by the simulator, so both sources share one parse path.
func (b *Bridge) HandleWaterLevel(topic string, payload []byte) error {
	level, err := ParseWaterLevel(payload)
	if err != nil {
		b.rejected.Add(1)
		return fmt.Errorf("%s: %w", topic, err)
	}

	b.received.Add(1)
	b.ctrl.UpdateWaterLevel(level)
	return nil
}

// HandleLightCommand processes a remote light command. The controller
// redraws the commanded mode so the panel shows what the network asked for.
func (b *Bridge) HandleLightCommand(topic string, payload []byte) error {
	m, on, err := ParseLightCommand(payload)
	if err != nil {
		b.rejected.Add(1)
		return fmt.Errorf("%s: %w", topic, err)
	}

	b.received.Add(1)
	b.ctrl.SetMode(m, on, mode.WithEcho())
	b.logInfo("light command applied", "mode", m.String(), "on", on)
	return nil
}

// Stats returns the traffic counters.
func (b *Bridge) Stats() Stats {
	return Stats{
		Published:     b.published.Load(),
		PublishFailed: b.publishFailed.Load(),
		Dropped:       b.dropped.Load(),
		Received:      b.received.Load(),
		Rejected:      b.rejected.Load(),
	}
}

// Connected reports whether the broker connection is up.
func (b *Bridge) Connected() bool {
	return b.mqtt != nil && b.mqtt.IsConnected()
}

// Status is a point-in-time view of the bridge for status logging and metrics.
type Status struct {
	Connected bool  `json:"connected"`
	Queued    int   `json:"queued"`
	Stats     Stats `json:"stats"`
}

// Status returns the bridge status.
func (b *Bridge) Status() Status {
	return Status{
		Connected: b.Connected(),
		Queued:    len(b.outbox),
		Stats:     b.Stats(),
	}
}

func (b *Bridge) snapshot() device.State {
	if b.ctrl == nil {
		return device.State{}
	}
	return b.ctrl.Snapshot()
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	b.health.SetLogger(logger)
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

func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	if logger := b.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
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
