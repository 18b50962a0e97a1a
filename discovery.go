package main

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const hueService = "_hue._tcp"

// Bridge is a Hue bridge announced over mDNS.
type Bridge struct {
	ID    string
	Model string
	Name  string
	IP    net.IP
	Port  int
}

func (b Bridge) String() string {
	return fmt.Sprintf("%s (%s) at %s", b.Name, b.ID, b.IP)
}

// FindBridges browses the local network for Hue bridges until timeout and
// returns every distinct bridge that answered.
func FindBridges(ctx context.Context, timeout time.Duration) ([]Bridge, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("creating mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, hueService, "local.", entries); err != nil {
		return nil, fmt.Errorf("browsing for Hue bridges: %w", err)
	}

	var bridges []Bridge
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return bridges, nil
		case entry, ok := <-entries:
			if !ok {
				return bridges, nil
			}
			b, ok := bridgeFromEntry(entry)
			if !ok || seen[b.key()] {
				continue
			}
			seen[b.key()] = true
			bridges = append(bridges, b)
		}
	}
}

func (b Bridge) key() string {
	if b.ID != "" {
		return b.ID
	}
	return b.IP.String()
}

// bridgeFromEntry reads a service entry. Entries without an address are
// dropped since nothing can be paired with them.
func bridgeFromEntry(entry *zeroconf.ServiceEntry) (Bridge, bool) {
	if entry == nil {
		return Bridge{}, false
	}
	b := Bridge{Name: entry.Instance, Port: entry.Port}
	switch {
	case len(entry.AddrIPv4) > 0:
		b.IP = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		b.IP = entry.AddrIPv6[0]
	default:
		return Bridge{}, false
	}

	for _, txt := range entry.Text {
		key, value, ok := strings.Cut(txt, "=")
		if !ok {
			continue
		}
		switch key {
		case "bridgeid":
			b.ID = strings.ToLower(value)
		case "modelid":
			b.Model = value
		}
	}
	return b, true
}
