package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/indicator-core/internal/mode"
)

const (
	defaultQueueSize     = 128
	defaultPruneInterval = 24 * time.Hour
	writeTimeout         = 5 * time.Second
	drainTimeout         = 2 * time.Second
)

// HistoryWriter is the part of the state history repository the recorder uses.
type HistoryWriter interface {
	RecordStateChange(ctx context.Context, deviceID string, state device.State, source string) error
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}

// PointWriter queues time-series points. *influxdb.Client implements it.
type PointWriter interface {
	WriteIndicatorState(p influxdb.StatePoint)
}

// Logger is the structured logger the recorder writes to.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Config holds configuration for a Recorder.
type Config struct {
	DeviceID string

	// History receives each change. Nil disables the audit trail.
	History HistoryWriter

	// Points receives each change. Nil disables InfluxDB telemetry.
	Points PointWriter

	// Thresholds classify the water level tag on points.
	Thresholds mode.Thresholds

	QueueSize int

	// Retention is how long history is kept. Zero disables pruning.
	Retention time.Duration

	// PruneInterval is how often pruning runs. Default: 24h.
	PruneInterval time.Duration

	Logger Logger
}

// Recorder implements mode.Observer.
//
// Thread Safety:
//   - StateChanged is safe for concurrent use and never blocks.
type Recorder struct {
	cfg   Config
	queue chan mode.Change

	recorded atomic.Uint64
	failed   atomic.Uint64
	dropped  atomic.Uint64
	pruned   atomic.Uint64

	started  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewRecorder creates a Recorder. Call Start to begin writing.
func NewRecorder(cfg Config) *Recorder {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = defaultPruneInterval
	}

	return &Recorder{
		cfg:    cfg,
		queue:  make(chan mode.Change, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: cfg.Logger,
	}
}

// StateChanged implements mode.Observer. Changes arriving while the queue
// is full are dropped.
func (r *Recorder) StateChanged(change mode.Change) {
	select {
	case r.queue <- change:
	default:
		r.dropped.Add(1)
		r.logWarn("telemetry queue full, dropping change", "source", change.Source)
	}
}

// Start launches the writer goroutine. ctx bounds the writes.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return errors.New("telemetry: recorder already started")
	}

	r.wg.Add(1)
	go r.run(ctx)

	return nil
}

// Stop drains queued changes and stops the writer. Safe to call more than once.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

func (r *Recorder) run(ctx context.Context) {
	defer r.wg.Done()

	var pruneC <-chan time.Time
	if r.cfg.History != nil && r.cfg.Retention > 0 {
		r.prune(ctx)
		ticker := time.NewTicker(r.cfg.PruneInterval)
		defer ticker.Stop()
		pruneC = ticker.C
	}

	for {
		select {
		case <-r.done:
			r.drain()
			return
		case <-ctx.Done():
			r.drain()
			return
		case change := <-r.queue:
			r.record(ctx, change)
		case <-pruneC:
			r.prune(ctx)
		}
	}
}

// drain writes what is still queued, bounded by drainTimeout.
func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	for {
		select {
		case change := <-r.queue:
			r.record(ctx, change)
		default:
			return
		}
	}
}

func (r *Recorder) record(ctx context.Context, change mode.Change) {
	state := change.Transition.Next

	if r.cfg.Points != nil {
		r.cfg.Points.WriteIndicatorState(influxdb.StatePoint{
			DeviceID:    r.cfg.DeviceID,
			Source:      change.Source,
			WaterStatus: string(mode.ClassifyWaterLevel(state.WaterLevel, r.cfg.Thresholds)),
			BrightOn:    state.BrightOn,
			RelaxOn:     state.RelaxOn,
			WaterLevel:  state.WaterLevel,
			At:          change.At,
		})
	}

	if r.cfg.History != nil {
		writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := r.cfg.History.RecordStateChange(writeCtx, r.cfg.DeviceID, state, change.Source)
		cancel()
		if err != nil {
			r.failed.Add(1)
			r.logWarn("state history write failed", "source", change.Source, "error", err)
			return
		}
	}

	r.recorded.Add(1)
}

func (r *Recorder) prune(ctx context.Context) {
	pruneCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	n, err := r.cfg.History.PruneHistory(pruneCtx, r.cfg.Retention)
	if err != nil {
		r.logWarn("state history prune failed", "error", err)
		return
	}
	r.pruned.Add(uint64(n)) //nolint:gosec // G115: row counts are non-negative
	if n > 0 {
		r.logInfo("state history pruned", "rows", n, "retention", r.cfg.Retention.String())
	}
}

// Stats is a snapshot of the recorder's counters.
type Stats struct {
	Recorded uint64 `json:"recorded"`
	Failed   uint64 `json:"failed"`
	Dropped  uint64 `json:"dropped"`
	Pruned   uint64 `json:"pruned"`
	Queued   int    `json:"queued"`
}

// Stats returns the recorder's counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Failed:   r.failed.Load(),
		Dropped:  r.dropped.Load(),
		Pruned:   r.pruned.Load(),
		Queued:   len(r.queue),
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.loggerMu.Lock()
	r.logger = logger
	r.loggerMu.Unlock()
}

func (r *Recorder) getLogger() Logger {
	r.loggerMu.RLock()
	defer r.loggerMu.RUnlock()
	return r.logger
}

func (r *Recorder) logInfo(msg string, keysAndValues ...any) {
	if logger := r.getLogger(); logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

func (r *Recorder) logWarn(msg string, keysAndValues ...any) {
	if logger := r.getLogger(); logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
