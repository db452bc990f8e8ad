// Package bacipv6 implements the BACnet/IPv6 datalink binding (ASHRAE 135
// Annex U): UDP over IPv6, with broadcasts sent to an IPv6 multicast group
// and a 3-byte VMAC instead of the packed IP+port MAC bacip uses. Grounded
// on transport/bacip's UDP port, with the IPv4 broadcast address replaced
// by a multicast group address.
package bacipv6

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/transport"
)

// DefaultPort is the well-known BACnet/IPv6 UDP port.
const DefaultPort = 47808

// DefaultMulticastGroup is the virtual link-local multicast group BACnet/IPv6
// devices join absent site-specific configuration (Annex U.2.2.1).
const DefaultMulticastGroup = "ff02::bac0"

// Port implements transport.Port over UDP6 with a virtual 3-byte MAC
// (VMAC), sending to a multicast group in place of IPv4 broadcast. The
// socket does not join that group.
type Port struct {
	conn      *net.UDPConn
	group     *net.UDPAddr
	localMac  []byte

	mu     sync.Mutex
	onRecv transport.ReceiveFunc
	cancel context.CancelFunc
	log    *logrus.Entry
}

// New binds a UDP6 socket at bindAddr and resolves groupAddr (use
// DefaultMulticastGroup), scoped to iface, as the broadcast destination; the
// socket is not joined to the group. A random VMAC is generated unless
// SetLocalMac is called afterward.
func New(iface string, bindAddr string, groupAddr string) (*Port, error) {
	udpAddr, err := net.ResolveUDPAddr("udp6", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("bacipv6: resolving bind address %q: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp6", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bacipv6: listening on %q: %w", bindAddr, err)
	}

	group, err := net.ResolveUDPAddr("udp6", net.JoinHostPort(groupAddr, fmt.Sprintf("%d", udpAddr.Port)))
	if err != nil {
		return nil, fmt.Errorf("bacipv6: resolving multicast group %q: %w", groupAddr, err)
	}
	if ifi, err := net.InterfaceByName(iface); err == nil {
		group.Zone = ifi.Name
	}

	mac := make([]byte, 3)
	if _, err := rand.Read(mac); err != nil {
		return nil, fmt.Errorf("bacipv6: generating VMAC: %w", err)
	}

	return &Port{
		conn:     conn,
		group:    group,
		localMac: mac,
		log:      logrus.WithField("component", "bacipv6"),
	}, nil
}

// SetLocalMac overrides the randomly generated VMAC.
func (p *Port) SetLocalMac(vmac []byte) { p.localMac = append([]byte{}, vmac...) }

func (p *Port) OnReceive(fn transport.ReceiveFunc) { p.onRecv = fn }

func (p *Port) LocalMac() []byte { return p.localMac }

func (p *Port) MaxNPDULength() int { return 1497 } // 1500-byte MTU minus 3; the 7-byte BVLC header is not subtracted

func (p *Port) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.readLoop(runCtx)
	return nil
}

func (p *Port) Stop(context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	return p.conn.Close()
}

func (p *Port) readLoop(ctx context.Context) {
	buf := make([]byte, 1500)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, addr, err := p.conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("bacipv6 read error")
			continue
		}
		body, sourceMac, err := decodeBVLC(buf[:n])
		if err != nil {
			p.log.WithError(err).Warn("dropping malformed BVLC frame")
			continue
		}
		if sourceMac == nil {
			sourceMac = []byte(addr.IP)
		}
		if p.onRecv != nil {
			p.onRecv(body, sourceMac)
		}
	}
}

func (p *Port) SendUnicast(npduBytes []byte, mac []byte) error {
	addr := &net.UDPAddr{IP: p.group.IP, Port: p.group.Port, Zone: p.group.Zone}
	if len(mac) >= 16 {
		addr = &net.UDPAddr{IP: net.IP(mac[:16]), Port: p.group.Port}
	}
	frame := encodeOriginalUnicast(npduBytes, p.localMac)
	_, err := p.conn.WriteToUDP(frame, addr)
	return err
}

func (p *Port) SendBroadcast(npduBytes []byte) error {
	frame := encodeOriginalBroadcast(npduBytes, p.localMac)
	_, err := p.conn.WriteToUDP(frame, p.group)
	return err
}
