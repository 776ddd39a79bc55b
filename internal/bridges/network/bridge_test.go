package network

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/indicator-core/internal/device"
	"github.com/nerrad567/indicator-core/internal/infrastructure/config"
	"github.com/nerrad567/indicator-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/indicator-core/internal/mode"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	handlers      map[string]mqtt.MessageHandler
	connected     bool
	publishErr    error
	subscribeErr  error
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]mqtt.MessageHandler),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	m.publishErr = err
	m.mu.Unlock()
}

// PublishedTo returns messages published to topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []mockPublish
	for _, p := range m.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockSubscription(nil), m.subscriptions...)
}

// SimulateMessage simulates receiving an MQTT message on a topic.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) error {
	m.mu.Lock()
	handler, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return handler(topic, payload)
}

// renderCall records one Renderer invocation.
type renderCall struct {
	Kind  string // "mode" or "water"
	Mode  device.LightMode
	On    bool
	Level int
}

type recordingRenderer struct {
	mu    sync.Mutex
	calls []renderCall
}

func (r *recordingRenderer) RenderMode(m device.LightMode, on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{Kind: "mode", Mode: m, On: on})
}

func (r *recordingRenderer) RenderWaterLevel(level int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, renderCall{Kind: "water", Level: level})
}

func (r *recordingRenderer) Calls() []renderCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]renderCall(nil), r.calls...)
}

func testTopics() mqtt.Topics {
	return mqtt.NewTopics(config.MQTTTopicsConfig{
		LightState:   "sensecap/indicator/light/state",
		LightCommand: "sensecap/indicator/light/set",
		WaterLevel:   "sensecap/indicator/water/level",
		Status:       "sensecap/indicator/status",
		Health:       "sensecap/indicator/health",
	})
}

// newTestBridge wires a started bridge to a real controller.
func newTestBridge(t *testing.T, client MQTTClient) (*Bridge, *mode.Controller, *recordingRenderer) {
	t.Helper()

	renderer := &recordingRenderer{}
	bridge := NewBridge(Options{
		MQTTClient: client,
		Topics:     testTopics(),
		QoS:        1,
		DeviceID:   "sensecap-indicator-d1",
		Version:    "test",
	})

	ctrl, err := mode.New(mode.Deps{
		Publisher:         bridge,
		Renderer:          renderer,
		DefaultWaterLevel: 50,
	})
	if err != nil {
		t.Fatalf("mode.New() error = %v", err)
	}
	bridge.Bind(ctrl)

	if err := bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(bridge.Stop)

	return bridge, ctrl, renderer
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// =============================================================================
// Start / Subscribe Tests
// =============================================================================

func TestStart_Subscribes(t *testing.T) {
	client := NewMockMQTTClient()
	newTestBridge(t, client)

	subs := client.GetSubscriptions()
	want := []mockSubscription{
		{Topic: "sensecap/indicator/water/level", QoS: 1},
		{Topic: "sensecap/indicator/light/set", QoS: 1},
	}
	if len(subs) != len(want) {
		t.Fatalf("subscriptions = %v, want %v", subs, want)
	}
	for i := range want {
		if subs[i] != want[i] {
			t.Errorf("subscription[%d] = %v, want %v", i, subs[i], want[i])
		}
	}
}

func TestStart_RequiresBind(t *testing.T) {
	bridge := NewBridge(Options{MQTTClient: NewMockMQTTClient(), Topics: testTopics()})

	if err := bridge.Start(context.Background()); !errors.Is(err, ErrNotBound) {
		t.Errorf("Start() error = %v, want ErrNotBound", err)
	}
}

func TestStart_SubscribeError(t *testing.T) {
	client := NewMockMQTTClient()
	client.subscribeErr = errors.New("broker said no")

	bridge := NewBridge(Options{MQTTClient: client, Topics: testTopics()})
	bridge.Bind(&stubController{})

	if err := bridge.Start(context.Background()); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Start() error = %v, want ErrSubscribeFailed", err)
	}
}

// =============================================================================
// Inbound Water Level Tests
// =============================================================================

// Inbound "150" clamps to 100 and triggers one water render.
func TestScenarioC_WaterLevelClamped(t *testing.T) {
	client := NewMockMQTTClient()
	_, ctrl, renderer := newTestBridge(t, client)

	if err := client.SimulateMessage("sensecap/indicator/water/level", []byte("150")); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	if got := ctrl.WaterLevel(); got != 100 {
		t.Errorf("WaterLevel() = %d, want 100", got)
	}

	calls := renderer.Calls()
	if len(calls) != 1 || calls[0] != (renderCall{Kind: "water", Level: 100}) {
		t.Errorf("render calls = %+v, want one water render of 100", calls)
	}
}

// Inbound "abc" is dropped: no state change, no render.
func TestScenarioD_WaterLevelGarbageIgnored(t *testing.T) {
	client := NewMockMQTTClient()
	bridge, ctrl, renderer := newTestBridge(t, client)
	before := ctrl.Snapshot()

	err := client.SimulateMessage("sensecap/indicator/water/level", []byte("abc"))
	if !errors.Is(err, ErrInvalidWaterLevel) {
		t.Errorf("handler error = %v, want ErrInvalidWaterLevel", err)
	}

	if after := ctrl.Snapshot(); after != before {
		t.Errorf("state changed from %+v to %+v", before, after)
	}
	if calls := renderer.Calls(); len(calls) != 0 {
		t.Errorf("render calls = %+v, want none", calls)
	}
	if got := bridge.Stats().Rejected; got != 1 {
		t.Errorf("Rejected = %d, want 1", got)
	}
}

func TestParseWaterLevel(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"plain", "42", 42, false},
		{"zero", "0", 0, false},
		{"surrounding whitespace", " 42\n", 42, false},
		{"explicit plus", "+7", 7, false},
		{"negative", "-5", -5, false},
		{"above range", "150", 150, false},
		{"overflow saturates high", "99999999999999999999999", math.MaxInt, false},
		{"overflow saturates low", "-99999999999999999999999", math.MinInt, false},
		{"empty", "", 0, true},
		{"whitespace only", "  ", 0, true},
		{"letters", "abc", 0, true},
		{"decimal", "4.2", 0, true},
		{"trailing garbage", "42abc", 0, true},
		{"json", `{"level":42}`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWaterLevel([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWaterLevel) {
					t.Errorf("ParseWaterLevel(%q) error = %v, want ErrInvalidWaterLevel", tt.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseWaterLevel(%q) error = %v", tt.payload, err)
			}
			if got != tt.want {
				t.Errorf("ParseWaterLevel(%q) = %d, want %d", tt.payload, got, tt.want)
			}
		})
	}
}

func TestWaterLevel_NegativeClampsToZero(t *testing.T) {
	client := NewMockMQTTClient()
	_, ctrl, _ := newTestBridge(t, client)

	if err := client.SimulateMessage("sensecap/indicator/water/level", []byte("-20")); err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if got := ctrl.WaterLevel(); got != 0 {
		t.Errorf("WaterLevel() = %d, want 0", got)
	}
}

// =============================================================================
// Outbound Publish Tests
// =============================================================================

func TestPublishMode_Payload(t *testing.T) {
	client := NewMockMQTTClient()
	_, ctrl, _ := newTestBridge(t, client)

	ctrl.SetMode(device.ModeBright, true)

	waitFor(t, "light state publish", func() bool {
		return len(client.PublishedTo("sensecap/indicator/light/state")) == 1
	})

	msg := client.PublishedTo("sensecap/indicator/light/state")[0]
	if string(msg.Payload) != `{"mode":"bright","state":1}` {
		t.Errorf("payload = %s, want {\"mode\":\"bright\",\"state\":1}", msg.Payload)
	}
	if msg.QoS != 1 || msg.Retained {
		t.Errorf("qos=%d retained=%v, want QoS 1 not retained", msg.QoS, msg.Retained)
	}
}

// Two toggles publish on then off, in order.
func TestScenarioE_PublishOrder(t *testing.T) {
	client := NewMockMQTTClient()
	bridge, ctrl, _ := newTestBridge(t, client)

	ctrl.ToggleMode(device.ModeBright)
	ctrl.ToggleMode(device.ModeBright)

	waitFor(t, "two publishes", func() bool { return bridge.Stats().Published == 2 })

	msgs := client.PublishedTo("sensecap/indicator/light/state")
	want := []string{`{"mode":"bright","state":1}`, `{"mode":"bright","state":0}`}
	for i, w := range want {
		if string(msgs[i].Payload) != w {
			t.Errorf("publish[%d] = %s, want %s", i, msgs[i].Payload, w)
		}
	}

	snap := ctrl.Snapshot()
	if snap.BrightOn || snap.RelaxOn {
		t.Errorf("state = %+v, want both modes off", snap)
	}
}

func TestPublishMode_QueueFullDrops(t *testing.T) {
	// Not started: nothing drains the outbox.
	bridge := NewBridge(Options{MQTTClient: NewMockMQTTClient(), Topics: testTopics(), QueueSize: 1})

	bridge.PublishMode(device.ModeBright, true)
	bridge.PublishMode(device.ModeRelax, true)

	stats := bridge.Stats()
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
	if q := bridge.Status().Queued; q != 1 {
		t.Errorf("Queued = %d, want 1", q)
	}
}

func TestPublishMode_FailureDoesNotTouchState(t *testing.T) {
	client := NewMockMQTTClient()
	client.SetPublishError(mqtt.ErrNotConnected)
	bridge, ctrl, _ := newTestBridge(t, client)

	ctrl.SetMode(device.ModeRelax, true)

	waitFor(t, "failed publish", func() bool { return bridge.Stats().PublishFailed == 1 })

	if !ctrl.ModeState(device.ModeRelax) {
		t.Error("relax mode rolled back after publish failure")
	}
}

func TestOfflineBridge(t *testing.T) {
	bridge, ctrl, _ := newTestBridge(t, nil)

	ctrl.SetMode(device.ModeBright, true)

	waitFor(t, "offline discard", func() bool { return bridge.Stats().PublishFailed == 1 })
	if bridge.Connected() {
		t.Error("Connected() = true without client")
	}
	if !ctrl.ModeState(device.ModeBright) {
		t.Error("bright mode not set while offline")
	}
}

func TestStop_Idempotent(t *testing.T) {
	bridge, _, _ := newTestBridge(t, NewMockMQTTClient())
	bridge.Stop()
	bridge.Stop()
}

// =============================================================================
// Inbound Light Command Tests
// =============================================================================

func TestLightCommand_SetsModeAndEchoes(t *testing.T) {
	client := NewMockMQTTClient()
	_, ctrl, renderer := newTestBridge(t, client)
	ctrl.SetMode(device.ModeBright, true)

	err := client.SimulateMessage("sensecap/indicator/light/set", []byte(`{"mode":"relax","state":1}`))
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.BrightOn || !snap.RelaxOn {
		t.Errorf("state = %+v, want relax only", snap)
	}

	want := []renderCall{
		{Kind: "mode", Mode: device.ModeBright, On: false},
		{Kind: "mode", Mode: device.ModeRelax, On: true},
	}
	calls := renderer.Calls()
	if len(calls) != len(want) {
		t.Fatalf("render calls = %+v, want %+v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("render[%d] = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestParseLightCommand(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantMode device.LightMode
		wantOn   bool
		wantErr  bool
	}{
		{"bright on", `{"mode":"bright","state":1}`, device.ModeBright, true, false},
		{"relax off", `{"mode":"relax","state":0}`, device.ModeRelax, false, false},
		{"mode case insensitive", `{"mode":"RELAX","state":1}`, device.ModeRelax, true, false},
		{"unknown mode", `{"mode":"dim","state":1}`, 0, false, true},
		{"missing state", `{"mode":"relax"}`, 0, false, true},
		{"state out of range", `{"mode":"relax","state":2}`, 0, false, true},
		{"unknown field", `{"mode":"relax","state":1,"level":3}`, 0, false, true},
		{"not json", `relax`, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, on, err := ParseLightCommand([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidCommand) {
					t.Errorf("error = %v, want ErrInvalidCommand", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if m != tt.wantMode || on != tt.wantOn {
				t.Errorf("got (%v, %v), want (%v, %v)", m, on, tt.wantMode, tt.wantOn)
			}
		})
	}
}

func TestLightCommand_InvalidIgnored(t *testing.T) {
	client := NewMockMQTTClient()
	bridge, ctrl, renderer := newTestBridge(t, client)
	before := ctrl.Snapshot()

	err := client.SimulateMessage("sensecap/indicator/light/set", []byte(`{"mode":"dim","state":1}`))
	if !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("handler error = %v, want ErrInvalidCommand", err)
	}
	if ctrl.Snapshot() != before {
		t.Error("state changed on invalid command")
	}
	if len(renderer.Calls()) != 0 {
		t.Error("invalid command rendered")
	}
	if bridge.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", bridge.Stats().Rejected)
	}
}

func TestLightStateMessage_ExactlyTwoFields(t *testing.T) {
	payload, err := json.Marshal(NewLightStateMessage(device.ModeRelax, false))
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if len(fields) != 2 || fields["mode"] != "relax" || fields["state"] != float64(0) {
		t.Errorf("payload = %s, want {\"mode\":\"relax\",\"state\":0}", payload)
	}
}

// stubController satisfies Controller for tests that never deliver messages.
type stubController struct{}

func (stubController) SetMode(device.LightMode, bool, ...mode.Option) {}
func (stubController) UpdateWaterLevel(int)                           {}
func (stubController) Snapshot() device.State                         { return device.State{} }
