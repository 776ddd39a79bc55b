package discovery

import (
	"errors"
	"net"
	"slices"
	"testing"

	"github.com/hashicorp/mdns"
)

func testConfig() Config {
	return Config{
		DeviceID:  "sensecap-indicator-d1",
		Version:   "1.2.0",
		HostName:  "indicator",
		Port:      8080,
		IPs:       []net.IP{net.ParseIP("192.168.1.40")},
		PanelPath: "/panel/",
	}
}

// ====================================================================
// Advertiser
// ====================================================================

func TestNewAdvertiser(t *testing.T) {
	a, err := NewAdvertiser(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}

	svc := a.Service()
	if svc.Instance != "sensecap-indicator-d1" {
		t.Errorf("Instance = %q", svc.Instance)
	}
	if svc.Service != DefaultService {
		t.Errorf("Service = %q, want %q", svc.Service, DefaultService)
	}
	if svc.HostName != "indicator.local." {
		t.Errorf("HostName = %q, want indicator.local.", svc.HostName)
	}
	if svc.Port != 8080 {
		t.Errorf("Port = %d, want 8080", svc.Port)
	}

	wantTXT := []string{"id=sensecap-indicator-d1", "version=1.2.0", "path=/panel/"}
	if !slices.Equal(svc.TXT, wantTXT) {
		t.Errorf("TXT = %v, want %v", svc.TXT, wantTXT)
	}
}

func TestNewAdvertiser_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no device id", func(c *Config) { c.DeviceID = "" }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"port out of range", func(c *Config) { c.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := NewAdvertiser(cfg, nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("NewAdvertiser() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestAdvertiser_StopWithoutStart(t *testing.T) {
	a, err := NewAdvertiser(testConfig(), nil)
	if err != nil {
		t.Fatalf("NewAdvertiser() error = %v", err)
	}
	a.Stop()
	a.Stop()
}

// ====================================================================
// Browse
// ====================================================================

func TestPeerFromEntry(t *testing.T) {
	tests := []struct {
		name   string
		entry  *mdns.ServiceEntry
		want   Peer
		wantOK bool
	}{
		{
			name: "indicator",
			entry: &mdns.ServiceEntry{
				Host:       "indicator.local.",
				AddrV4:     net.ParseIP("192.168.1.40"),
				Port:       8080,
				InfoFields: []string{"id=d1", "version=1.2.0", "path=/panel/"},
			},
			want: Peer{
				DeviceID:  "d1",
				Host:      "indicator.local",
				Addr:      net.ParseIP("192.168.1.40"),
				Port:      8080,
				Version:   "1.2.0",
				PanelPath: "/panel/",
			},
			wantOK: true,
		},
		{
			name:  "no id record",
			entry: &mdns.ServiceEntry{Host: "printer.local.", Port: 631, InfoFields: []string{"rp=ipp"}},
		},
		{name: "nil entry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := peerFromEntry(tt.entry)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.DeviceID != tt.want.DeviceID || got.Host != tt.want.Host || got.Port != tt.want.Port ||
				got.Version != tt.want.Version || got.PanelPath != tt.want.PanelPath || !got.Addr.Equal(tt.want.Addr) {
				t.Errorf("peer = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPeerURL(t *testing.T) {
	tests := []struct {
		peer Peer
		want string
	}{
		{Peer{Addr: net.ParseIP("192.168.1.40"), Port: 8080, PanelPath: "/panel/"}, "http://192.168.1.40:8080/panel/"},
		{Peer{Host: "indicator.local", Port: 80}, "http://indicator.local:80"},
	}

	for _, tt := range tests {
		if got := tt.peer.URL(); got != tt.want {
			t.Errorf("URL() = %q, want %q", got, tt.want)
		}
	}
}
