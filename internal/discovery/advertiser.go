package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/hashicorp/mdns"
)

const (
	// DefaultService is the DNS-SD service type of the indicator API.
	DefaultService = "_indicator._tcp"

	// DefaultDomain is the mDNS domain.
	DefaultDomain = "local."

	txtDeviceID = "id="
	txtVersion  = "version="
	txtPath     = "path="
)

// Logger is the structured logger the advertiser writes to.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// Config describes the advertised service.
type Config struct {
	// DeviceID becomes the instance name and the id= TXT record. Required.
	DeviceID string
	Version  string

	Service string
	Domain  string

	// HostName defaults to the OS host name.
	HostName string

	// Port is the API port. Required.
	Port int

	// IPs defaults to the host's non-loopback IPv4 addresses.
	IPs []net.IP

	// PanelPath is published as path= so clients can open the panel.
	PanelPath string
}

// Advertiser answers mDNS queries for the indicator's service.
type Advertiser struct {
	service *mdns.MDNSService

	server *mdns.Server
	mu     sync.Mutex

	logger Logger
}

// NewAdvertiser builds the service record. Nothing is sent until Start.
func NewAdvertiser(cfg Config, logger Logger) (*Advertiser, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidConfig)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: port %d", ErrInvalidConfig, cfg.Port)
	}
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}

	host := cfg.HostName
	if host != "" && !strings.HasSuffix(host, ".") {
		host = host + "." + strings.TrimSuffix(cfg.Domain, ".") + "."
	}

	ips := cfg.IPs
	if len(ips) == 0 {
		ips = localIPv4s()
	}

	service, err := mdns.NewMDNSService(cfg.DeviceID, cfg.Service, cfg.Domain, host, cfg.Port, ips, txtRecords(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Advertiser{service: service, logger: logger}, nil
}

func txtRecords(cfg Config) []string {
	txt := []string{txtDeviceID + cfg.DeviceID}
	if cfg.Version != "" {
		txt = append(txt, txtVersion+cfg.Version)
	}
	if cfg.PanelPath != "" {
		txt = append(txt, txtPath+cfg.PanelPath)
	}
	return txt
}

// Start begins answering queries on the multicast group.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return ErrAlreadyStarted
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: a.service})
	if err != nil {
		return fmt.Errorf("starting mdns server: %w", err)
	}
	a.server = server

	if a.logger != nil {
		a.logger.Info("mdns advertisement started",
			"instance", a.service.Instance,
			"service", a.service.Service,
			"port", a.service.Port,
		)
	}
	return nil
}

// Stop withdraws the advertisement. Safe to call when not started.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	if err := a.server.Shutdown(); err != nil && a.logger != nil {
		a.logger.Warn("mdns shutdown failed", "error", err)
	}
	a.server = nil
}

// Service returns the advertised record.
func (a *Advertiser) Service() *mdns.MDNSService {
	return a.service
}

// localIPv4s returns the non-loopback IPv4 interface addresses. The host
// name of a panel often does not resolve, so the record carries these.
func localIPv4s() []net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}

	var ips []net.IP
	for _, addr := range addrs {
		ipnet, ok := addr.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			ips = append(ips, v4)
		}
	}
	return ips
}
