package loop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultTickInterval   = 30 * time.Millisecond
	defaultStatusInterval = 5 * time.Second
)

// ErrNoPresenter is returned by New when Config.Presenter is nil.
var ErrNoPresenter = errors.New("loop: presenter is required")

// Presenter is the part of the presentation bridge the loop drives.
// Both methods are called from the loop goroutine only.
type Presenter interface {
	PollInput() int
	Flush() int
}

// StatusFunc returns the key/value pairs of one status log line.
type StatusFunc func() []any

// Logger is the structured logger the loop writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
}

// Config holds configuration for a Loop.
type Config struct {
	// TickInterval is the poll/render period. Default: 30ms.
	TickInterval time.Duration

	// StatusInterval is how often Status is logged. Default: 5s.
	StatusInterval time.Duration

	Presenter Presenter

	// Status supplies the periodic status line. Nil disables status logging.
	Status StatusFunc

	Logger Logger
}

// Loop is the single goroutine that owns touch polling and display flushes.
type Loop struct {
	tickInterval   time.Duration
	statusInterval time.Duration
	presenter      Presenter
	status         StatusFunc

	ticks    atomic.Uint64
	running  atomic.Bool
	inputs   atomic.Uint64
	rendered atomic.Uint64

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Loop. Call Run to start it.
func New(cfg Config) (*Loop, error) {
	if cfg.Presenter == nil {
		return nil, ErrNoPresenter
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	status := cfg.StatusInterval
	if status <= 0 {
		status = defaultStatusInterval
	}

	return &Loop{
		tickInterval:   tick,
		statusInterval: status,
		presenter:      cfg.Presenter,
		status:         cfg.Status,
		logger:         cfg.Logger,
	}, nil
}

// Run ticks until ctx is cancelled. Pending renders are flushed once more
// before it returns. Run returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return errors.New("loop: already running")
	}
	defer l.running.Store(false)

	ticker := time.NewTicker(l.tickInterval)
	defer ticker.Stop()

	var statusC <-chan time.Time
	if l.status != nil {
		statusTicker := time.NewTicker(l.statusInterval)
		defer statusTicker.Stop()
		statusC = statusTicker.C
	}

	l.logDebug("poll/render loop started", "tick", l.tickInterval.String())

	for {
		select {
		case <-ctx.Done():
			l.rendered.Add(uint64(l.presenter.Flush()))
			l.logDebug("poll/render loop stopped", "ticks", l.ticks.Load())
			return nil
		case <-ticker.C:
			l.Tick()
		case <-statusC:
			l.logStatus()
		}
	}
}

// Tick runs one poll/render cycle: input first, then renders.
func (l *Loop) Tick() {
	l.inputs.Add(uint64(l.presenter.PollInput()))
	l.rendered.Add(uint64(l.presenter.Flush()))
	l.ticks.Add(1)
}

func (l *Loop) logStatus() {
	kv := l.status()
	kv = append(kv, "ticks", l.ticks.Load())
	l.logInfo("indicator status", kv...)
}

// Stats is a snapshot of the loop's counters.
type Stats struct {
	Ticks    uint64 `json:"ticks"`
	Inputs   uint64 `json:"inputs"`
	Rendered uint64 `json:"rendered"`
}

// Stats returns the loop's counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:    l.ticks.Load(),
		Inputs:   l.inputs.Load(),
		Rendered: l.rendered.Load(),
	}
}

// SetLogger sets the logger for the loop.
func (l *Loop) SetLogger(logger Logger) {
	l.loggerMu.Lock()
	l.logger = logger
	l.loggerMu.Unlock()
}

func (l *Loop) getLogger() Logger {
	l.loggerMu.RLock()
	defer l.loggerMu.RUnlock()
	return l.logger
}

func (l *Loop) logDebug(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

func (l *Loop) logInfo(msg string, keysAndValues ...any) {
	if logger := l.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}
