package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const defaultBrowseTimeout = 3 * time.Second

// Peer is an indicator found on the network.
type Peer struct {
	DeviceID  string `json:"device_id"`
	Host      string `json:"host"`
	Addr      net.IP `json:"addr"`
	Port      int    `json:"port"`
	Version   string `json:"version,omitempty"`
	PanelPath string `json:"panel_path,omitempty"`
}

// URL returns the peer's panel URL.
func (p Peer) URL() string {
	host := p.Host
	if p.Addr != nil {
		host = p.Addr.String()
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(p.Port)) + p.PanelPath
}

// Browse queries the network for indicators until timeout or ctx ends.
// A zero timeout uses 3 seconds; an empty service uses DefaultService.
func Browse(ctx context.Context, service string, timeout time.Duration) ([]Peer, error) {
	if service == "" {
		service = DefaultService
	}
	if timeout <= 0 {
		timeout = defaultBrowseTimeout
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	queryErr := make(chan error, 1)

	go func() {
		queryErr <- mdns.Query(&mdns.QueryParam{
			Service:     service,
			Domain:      "local",
			Timeout:     timeout,
			Entries:     entries,
			DisableIPv6: true,
		})
		close(entries)
	}()

	seen := make(map[string]struct{})
	var peers []Peer
	for {
		select {
		case <-ctx.Done():
			return peers, ctx.Err()
		case entry, ok := <-entries:
			if !ok {
				if err := <-queryErr; err != nil {
					return peers, fmt.Errorf("mdns query: %w", err)
				}
				return peers, nil
			}
			peer, ok := peerFromEntry(entry)
			if !ok {
				continue
			}
			if _, dup := seen[peer.DeviceID]; dup {
				continue
			}
			seen[peer.DeviceID] = struct{}{}
			peers = append(peers, peer)
		}
	}
}

// peerFromEntry converts a query answer. Entries without an id= record
// are not indicators.
func peerFromEntry(entry *mdns.ServiceEntry) (Peer, bool) {
	if entry == nil {
		return Peer{}, false
	}

	p := Peer{
		Host: strings.TrimSuffix(entry.Host, "."),
		Addr: entry.AddrV4,
		Port: entry.Port,
	}
	for _, field := range entry.InfoFields {
		switch {
		case strings.HasPrefix(field, txtDeviceID):
			p.DeviceID = strings.TrimPrefix(field, txtDeviceID)
		case strings.HasPrefix(field, txtVersion):
			p.Version = strings.TrimPrefix(field, txtVersion)
		case strings.HasPrefix(field, txtPath):
			p.PanelPath = strings.TrimPrefix(field, txtPath)
		}
	}

	if p.DeviceID == "" {
		return Peer{}, false
	}
	return p, true
}
