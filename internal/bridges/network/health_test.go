package network

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nerrad567/indicator-core/internal/device"
)

const healthTopic = "sensecap/indicator/health"

func newTestReporter(client *MockMQTTClient) *HealthReporter {
	return NewHealthReporter(HealthReporterConfig{
		DeviceID:  "sensecap-indicator-d1",
		Version:   "test",
		Topic:     healthTopic,
		Publisher: client,
		Snapshot: func() device.State {
			return device.State{BrightOn: true, WaterLevel: 15}
		},
		Stats: func() Stats { return Stats{Published: 3} },
	})
}

func lastHealth(t *testing.T, client *MockMQTTClient) (HealthMessage, mockPublish) {
	t.Helper()

	msgs := client.PublishedTo(healthTopic)
	if len(msgs) == 0 {
		t.Fatal("no health message published")
	}
	last := msgs[len(msgs)-1]

	var msg HealthMessage
	if err := json.Unmarshal(last.Payload, &msg); err != nil {
		t.Fatalf("health payload not JSON: %v", err)
	}
	return msg, last
}

func TestHealthReporter_PublishNow(t *testing.T) {
	tests := []struct {
		name       string
		connected  bool
		wantStatus HealthStatus
		wantReason string
	}{
		{"connected", true, HealthHealthy, ""},
		{"disconnected", false, HealthDegraded, "MQTT disconnected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockMQTTClient()
			client.SetConnected(tt.connected)
			h := newTestReporter(client)

			if err := h.PublishNow(); err != nil {
				t.Fatalf("PublishNow() error = %v", err)
			}

			msg, raw := lastHealth(t, client)
			if msg.Status != tt.wantStatus || msg.Reason != tt.wantReason {
				t.Errorf("status = %q (%q), want %q (%q)", msg.Status, msg.Reason, tt.wantStatus, tt.wantReason)
			}
			if !raw.Retained || raw.QoS != 1 {
				t.Errorf("retained=%v qos=%d, want retained QoS 1", raw.Retained, raw.QoS)
			}
			if msg.State == nil || msg.State.WaterLevel != 15 || !msg.State.BrightOn {
				t.Errorf("state = %+v, want bright on at 15%%", msg.State)
			}
			if msg.Statistics == nil || msg.Statistics.Published != 3 {
				t.Errorf("statistics = %+v, want published 3", msg.Statistics)
			}
			if msg.Device != "sensecap-indicator-d1" {
				t.Errorf("device = %q", msg.Device)
			}
		})
	}
}

func TestHealthReporter_StartStop(t *testing.T) {
	client := NewMockMQTTClient()
	h := newTestReporter(client)

	h.Start(context.Background())
	waitFor(t, "initial health", func() bool { return len(client.PublishedTo(healthTopic)) >= 1 })

	h.Stop()
	h.Stop()

	msg, _ := lastHealth(t, client)
	if msg.Status != HealthStopping {
		t.Errorf("final status = %q, want stopping", msg.Status)
	}
}

func TestHealthReporter_NoTopic(t *testing.T) {
	client := NewMockMQTTClient()
	h := NewHealthReporter(HealthReporterConfig{Publisher: client})

	if err := h.PublishNow(); err != nil {
		t.Errorf("PublishNow() error = %v", err)
	}
	if n := len(client.PublishedTo("")); n != 0 {
		t.Errorf("published %d messages without a topic", n)
	}
}

func TestHealthReporter_StartingStatus(t *testing.T) {
	client := NewMockMQTTClient()
	h := newTestReporter(client)

	if err := h.PublishStarting(); err != nil {
		t.Fatalf("PublishStarting() error = %v", err)
	}
	msg, _ := lastHealth(t, client)
	if msg.Status != HealthStarting {
		t.Errorf("status = %q, want starting", msg.Status)
	}
}
