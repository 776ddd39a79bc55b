package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

const defaultInterval = 5 * time.Second

// WaterSink consumes a water level payload as if it arrived on topic.
// *network.Bridge implements it.
type WaterSink interface {
	HandleWaterLevel(topic string, payload []byte) error
}

// Logger is the structured logger the simulator writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Config holds simulator settings.
type Config struct {
	// Sink receives generated levels. Required.
	Sink WaterSink

	// Topic is passed to the sink; it only appears in logs and errors.
	Topic string

	// Interval between readings; zero uses 5 seconds.
	Interval time.Duration

	// Seed makes the sequence reproducible. Zero seeds from the clock.
	Seed uint64

	Logger Logger
}

// Simulator emits a random level in [0,100] every interval.
type Simulator struct {
	sink     WaterSink
	topic    string
	interval time.Duration
	logger   Logger

	rand   *rand.Rand
	randMu sync.Mutex

	running atomic.Bool
	emitted atomic.Uint64
	failed  atomic.Uint64
}

// New creates a simulator.
func New(cfg Config) (*Simulator, error) {
	if cfg.Sink == nil {
		return nil, fmt.Errorf("water sink is required")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Simulator{
		sink:     cfg.Sink,
		topic:    cfg.Topic,
		interval: interval,
		logger:   cfg.Logger,
		rand:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Step generates and delivers one reading and returns the level sent.
func (s *Simulator) Step() (int, error) {
	s.randMu.Lock()
	level := s.rand.IntN(101)
	s.randMu.Unlock()

	if err := s.sink.HandleWaterLevel(s.topic, []byte(strconv.Itoa(level))); err != nil {
		s.failed.Add(1)
		return level, fmt.Errorf("delivering simulated level: %w", err)
	}
	s.emitted.Add(1)
	return level, nil
}

// Run emits readings until ctx is cancelled. It returns an error only if
// the simulator is already running.
func (s *Simulator) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("simulator already running")
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			level, err := s.Step()
			if err != nil {
				if s.logger != nil {
					s.logger.Warn("simulated water level rejected", "level", level, "error", err)
				}
				continue
			}
			if s.logger != nil {
				s.logger.Debug("simulated water level", "level", level)
			}
		}
	}
}

// Stats holds simulator counters.
type Stats struct {
	Emitted uint64 `json:"emitted"`
	Failed  uint64 `json:"failed"`
}

// Stats returns the simulator counters.
func (s *Simulator) Stats() Stats {
	return Stats{Emitted: s.emitted.Load(), Failed: s.failed.Load()}
}
