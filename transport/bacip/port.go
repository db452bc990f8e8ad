package bacip

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/metrics"
	"github.com/bacgo/bacnet/transport"
)

// DefaultPort is the well-known BACnet/IP UDP port, 0xBAC0.
const DefaultPort = 47808

// Port implements transport.Port over UDP with BVLL framing. BBMD and
// foreign-device-registration behavior are optional submodules attached
// after construction; a bare Port sends/receives Original-* BVLL only.
type Port struct {
	conn      *net.UDPConn
	localAddr *net.UDPAddr
	localMac  []byte

	bbmd      *BBMD
	registrar *ForeignDeviceRegistrar
	broadcast *net.UDPAddr

	mu     sync.Mutex
	onRecv transport.ReceiveFunc
	cancel context.CancelFunc
	log    *logrus.Entry
}

// New binds a UDP socket at bindAddr (use ":47808" to listen on all
// interfaces at the default port).
func New(bindAddr string) (*Port, error) {
	udpAddr, err := net.ResolveUDPAddr("udp4", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("bacip: resolving bind address %q: %w", bindAddr, err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("bacip: listening on %q: %w", bindAddr, err)
	}
	local := conn.LocalAddr().(*net.UDPAddr)
	p := &Port{
		conn:      conn,
		localAddr: local,
		log:       logrus.WithField("component", "bacip"),
	}
	return p, nil
}

// SetLocalMac overrides the MAC advertised for this port (IP+port packed
// per bactypes.NewIPMac); useful when binding to 0.0.0.0 but advertising a
// specific interface address.
func (p *Port) SetLocalMac(ip net.IP, port uint16) { p.localMac = bactypes.NewIPMac(ip, port) }

// AttachBBMD installs the optional Broadcast Distribution Device
// submodule.
func (p *Port) AttachBBMD(b *BBMD) { p.bbmd = b; b.port = p }

// AttachForeignDeviceRegistrar installs the optional foreign-device
// registration submodule.
func (p *Port) AttachForeignDeviceRegistrar(r *ForeignDeviceRegistrar) {
	p.registrar = r
	r.port = p
}

func (p *Port) OnReceive(fn transport.ReceiveFunc) { p.onRecv = fn }

func (p *Port) LocalMac() []byte {
	if p.localMac != nil {
		return p.localMac
	}
	ip := p.localAddr.IP
	if ip == nil || ip.IsUnspecified() {
		ip = net.IPv4(0, 0, 0, 0)
	}
	return bactypes.NewIPMac(ip, uint16(p.localAddr.Port))
}

func (p *Port) MaxNPDULength() int { return 1497 } // 1500 Ethernet MTU - 3 byte IP/UDP slack budget for BVLL framing is handled by caller

func (p *Port) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.readLoop(runCtx)
	if p.registrar != nil {
		go p.registrar.run(runCtx)
	}
	return nil
}

func (p *Port) Stop(ctx context.Context) error {
	if p.registrar != nil {
		p.registrar.deregister()
	}
	if p.cancel != nil {
		p.cancel()
	}
	return p.conn.Close()
}

func (p *Port) SendUnicast(npdu []byte, mac []byte) error {
	ip, port, err := bactypes.ParseIPMac(mac)
	if err != nil {
		return err
	}
	msg := Encode(FuncOriginalUnicastNPDU, npdu)
	_, err = p.conn.WriteToUDP(msg, &net.UDPAddr{IP: ip, Port: int(port)})
	return err
}

func (p *Port) SendBroadcast(npdu []byte) error {
	msg := Encode(FuncOriginalBroadcastNPDU, npdu)
	if err := p.sendLocalBroadcast(msg); err != nil {
		return err
	}
	if p.bbmd != nil {
		return p.bbmd.forward(npdu)
	}
	return nil
}

func (p *Port) sendLocalBroadcast(bvll []byte) error {
	// A directed broadcast requires the subnet broadcast address; callers
	// that need precise subnet targeting configure it via SetBroadcastAddr.
	addr := p.broadcastAddr()
	_, err := p.conn.WriteToUDP(bvll, addr)
	return err
}

// defaultBroadcast is the UDP address used for local broadcast sends. It is the limited broadcast address at the default BACnet/IP port;
// override via SetBroadcastAddr once the bind interface's subnet is known.
var defaultBroadcast = &net.UDPAddr{IP: net.IPv4bcast, Port: DefaultPort}

func (p *Port) broadcastAddr() *net.UDPAddr {
	if p.broadcast != nil {
		return p.broadcast
	}
	return defaultBroadcast
}

// SetBroadcastAddr configures the subnet-directed broadcast address (e.g.
// 192.168.1.255:47808) used for local broadcast sends.
func (p *Port) SetBroadcastAddr(addr *net.UDPAddr) { p.broadcast = addr }

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
			select {
			case <-ctx.Done():
				return
			default:
			}
			p.log.WithError(err).Warn("bacip: read error")
			continue
		}
		p.handleDatagram(buf[:n], addr)
	}
}

func (p *Port) handleDatagram(data []byte, from *net.UDPAddr) {
	msg, err := Decode(data)
	if err != nil {
		metrics.NPDUDropped.WithLabelValues("bvll-decode").Inc()
		p.log.WithError(err).Debug("bacip: dropping malformed BVLL message")
		return
	}
	fromMac := bactypes.NewIPMac(from.IP, uint16(from.Port))

	switch msg.Function {
	case FuncOriginalUnicastNPDU, FuncOriginalBroadcastNPDU:
		if p.onRecv != nil {
			p.onRecv(msg.Data, fromMac)
		}
	case FuncForwardedNPDU:
		if len(msg.Data) < 6 {
			return
		}
		originMac := msg.Data[:6]
		if p.onRecv != nil {
			p.onRecv(msg.Data[6:], originMac)
		}
	default:
		if p.bbmd != nil {
			p.bbmd.handleBVLL(msg, from)
		}
		if p.registrar != nil {
			p.registrar.handleBVLL(msg, from)
		}
	}
}
