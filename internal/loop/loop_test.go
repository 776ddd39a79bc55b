package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakePresenter records the order of PollInput and Flush calls.
type fakePresenter struct {
	mu    sync.Mutex
	calls []string
	input int
}

func (p *fakePresenter) PollInput() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "poll")
	n := p.input
	p.input = 0
	return n
}

func (p *fakePresenter) Flush() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, "flush")
	return 1
}

func (p *fakePresenter) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("debug: " + msg) }
func (l *recordingLogger) Info(msg string, kv ...any) {
	l.record(fmt.Sprint(append([]any{"info: " + msg}, kv...)...))
}

func (l *recordingLogger) record(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, s)
}

func (l *recordingLogger) count(prefix string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, m := range l.msgs {
		if len(m) >= len(prefix) && m[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func TestNew_RequiresPresenter(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoPresenter) {
		t.Errorf("New() error = %v, want ErrNoPresenter", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	l, err := New(Config{Presenter: &fakePresenter{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if l.tickInterval != defaultTickInterval {
		t.Errorf("tickInterval = %v, want %v", l.tickInterval, defaultTickInterval)
	}
	if l.statusInterval != defaultStatusInterval {
		t.Errorf("statusInterval = %v, want %v", l.statusInterval, defaultStatusInterval)
	}
}

func TestTick_PollsBeforeFlush(t *testing.T) {
	p := &fakePresenter{input: 2}
	l, err := New(Config{Presenter: p})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.Tick()
	l.Tick()

	want := []string{"poll", "flush", "poll", "flush"}
	got := p.Calls()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	stats := l.Stats()
	if stats.Ticks != 2 || stats.Inputs != 2 || stats.Rendered != 2 {
		t.Errorf("Stats() = %+v, want 2 ticks, 2 inputs, 2 rendered", stats)
	}
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	p := &fakePresenter{}
	logger := &recordingLogger{}
	l, err := New(Config{
		TickInterval:   time.Millisecond,
		StatusInterval: 5 * time.Millisecond,
		Presenter:      p,
		Status:         func() []any { return []any{"mqtt_connected", false} },
		Logger:         logger,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for (l.Stats().Ticks < 3 || logger.count("info: indicator status") == 0) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if l.Stats().Ticks < 3 {
		t.Errorf("Ticks = %d, want at least 3", l.Stats().Ticks)
	}
	if logger.count("info: indicator status") == 0 {
		t.Error("no status line logged")
	}

	// The final flush on shutdown is the last call.
	calls := p.Calls()
	if calls[len(calls)-1] != "flush" {
		t.Errorf("last call = %s, want flush", calls[len(calls)-1])
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	l, err := New(Config{TickInterval: time.Millisecond, Presenter: &fakePresenter{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for l.Stats().Ticks == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := l.Run(ctx); err == nil {
		t.Error("second Run() should fail while the first is running")
	}
}
