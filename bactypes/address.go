package bactypes

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// GlobalBroadcastNetwork is the reserved network number (0xFFFF) meaning
// "every network known to the router".
const GlobalBroadcastNetwork uint16 = 0xFFFF

// Address is a BACnet network address: an optional network number plus a
// data-link-specific MAC. A nil Network means "local network"; empty Mac
// means "local broadcast" on that network.
type Address struct {
	Network *uint16
	Mac     []byte
}

// LocalBroadcast is the address used to reach every device on the local
// network segment.
func LocalBroadcast() Address { return Address{} }

// GlobalBroadcast is the address used to reach every device on every
// network a router knows about.
func GlobalBroadcast() Address {
	n := GlobalBroadcastNetwork
	return Address{Network: &n}
}

// IsLocal reports whether the address has no network number, i.e. it names
// a device (or broadcast) on the network this device is directly attached
// to.
func (a Address) IsLocal() bool { return a.Network == nil }

// IsBroadcast reports whether the MAC is empty, i.e. the address names
// every device reachable on its network rather than a single device.
func (a Address) IsBroadcast() bool { return len(a.Mac) == 0 }

// IsGlobalBroadcast reports whether the address is the reserved
// every-network broadcast.
func (a Address) IsGlobalBroadcast() bool {
	return a.Network != nil && *a.Network == GlobalBroadcastNetwork
}

// NetworkNumber returns the network number and whether one is present.
func (a Address) NetworkNumber() (uint16, bool) {
	if a.Network == nil {
		return 0, false
	}
	return *a.Network, true
}

// Remote reports whether this address names a device beyond the local
// network (a non-nil, non-global network number).
func (a Address) Remote() bool {
	return a.Network != nil && *a.Network != GlobalBroadcastNetwork
}

func (a Address) String() string {
	mac := hex.EncodeToString(a.Mac)
	if a.Network == nil {
		if mac == "" {
			return "*"
		}
		return mac
	}
	if mac == "" {
		return fmt.Sprintf("%d:*", *a.Network)
	}
	return fmt.Sprintf("%d:%s", *a.Network, mac)
}

// Key returns a comparable value suitable for use as a map key (Address
// itself holds a slice and a pointer, neither of which is comparable).
func (a Address) Key() string {
	return a.String()
}

// NewIPMac packs an IPv4 address and UDP port into the 6-byte MAC form
// BACnet/IP uses (4 bytes address, 2 bytes port, big-endian).
func NewIPMac(ip net.IP, port uint16) []byte {
	ip4 := ip.To4()
	mac := make([]byte, 6)
	copy(mac, ip4)
	mac[4] = byte(port >> 8)
	mac[5] = byte(port)
	return mac
}

// ParseIPMac reverses NewIPMac.
func ParseIPMac(mac []byte) (net.IP, uint16, error) {
	if len(mac) != 6 {
		return nil, 0, fmt.Errorf("bactypes: IP MAC must be 6 bytes, got %d", len(mac))
	}
	ip := net.IPv4(mac[0], mac[1], mac[2], mac[3])
	port := uint16(mac[4])<<8 | uint16(mac[5])
	return ip, port, nil
}

// ParseAddress parses three forms: a bare host ("192.168.1.100", using the
// default BACnet/IP port), a host with port ("192.168.1.100:47809"), or a
// routed form ("5:192.168.1.100:47808", network:host:port).
func ParseAddress(s string) (Address, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		ip := net.ParseIP(parts[0])
		if ip == nil {
			return Address{}, fmt.Errorf("bactypes: invalid address %q", s)
		}
		return Address{Mac: NewIPMac(ip, 47808)}, nil
	case 2:
		ip := net.ParseIP(parts[0])
		if ip == nil {
			return Address{}, fmt.Errorf("bactypes: invalid address %q", s)
		}
		port, err := strconv.ParseUint(parts[1], 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("bactypes: invalid port in %q: %w", s, err)
		}
		return Address{Mac: NewIPMac(ip, uint16(port))}, nil
	case 3:
		net64, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("bactypes: invalid network in %q: %w", s, err)
		}
		ip := net.ParseIP(parts[1])
		if ip == nil {
			return Address{}, fmt.Errorf("bactypes: invalid address %q", s)
		}
		port, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("bactypes: invalid port in %q: %w", s, err)
		}
		n := uint16(net64)
		return Address{Network: &n, Mac: NewIPMac(ip, uint16(port))}, nil
	default:
		return Address{}, fmt.Errorf("bactypes: invalid address %q", s)
	}
}
