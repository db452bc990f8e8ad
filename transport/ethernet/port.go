// Package ethernet implements the BACnet Ethernet datalink binding
// (ASHRAE 135 Annex H): NPDUs carried in 802.2 LLC Type 1 frames over a raw
// AF_PACKET socket, addressed by 6-byte MAC. Grounded on
// golang.org/x/sys/unix, the syscall package the example pack pulls in for
// low-level socket options not exposed by net.
package ethernet

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/transport"
)

// llcDSAP and llcSSAP are the 802.2 LLC SAP values assigned to BACnet (0x82 SSAP/DSAP, Annex H.1).
const (
	llcDSAP    byte = 0x82
	llcSSAP    byte = 0x82
	llcControl byte = 0x03 // unnumbered information, Type 1 operation
)

var broadcastMac = []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// Port implements transport.Port over a raw AF_PACKET socket bound to one
// network interface, framing NPDUs in an 802.3 length-field frame plus an
// 802.2 LLC header.
type Port struct {
	fd        int
	ifIndex   int
	localMac  []byte

	mu     sync.Mutex
	onRecv transport.ReceiveFunc
	cancel context.CancelFunc
	log    *logrus.Entry
}

// New opens a raw socket on the named interface. Requires CAP_NET_RAW.
func New(ifaceName string) (*Port, error) {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("ethernet: looking up interface %q: %w", ifaceName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("ethernet: opening raw socket: %w", err)
	}

	addr := unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: iface.Index}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ethernet: binding to %q: %w", ifaceName, err)
	}

	return &Port{
		fd:       fd,
		ifIndex:  iface.Index,
		localMac: append([]byte{}, iface.HardwareAddr...),
		log:      logrus.WithField("component", "ethernet").WithField("iface", ifaceName),
	}, nil
}

func htons(v int) uint16 { return uint16(v)<<8 | uint16(v)>>8 }

func (p *Port) OnReceive(fn transport.ReceiveFunc) { p.onRecv = fn }

func (p *Port) LocalMac() []byte { return p.localMac }

func (p *Port) MaxNPDULength() int { return 1497 } // 1500-byte Ethernet MTU minus 3-byte LLC header

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
	return unix.Close(p.fd)
}

func (p *Port) readLoop(ctx context.Context) {
	buf := make([]byte, 1514)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, from, err := unix.Recvfrom(p.fd, buf, 0)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.WithError(err).Warn("ethernet read error")
			continue
		}
		npduBytes, err := decodeFrame(buf[:n])
		if err != nil {
			continue // not a BACnet LLC frame, or frame too short
		}
		var sourceMac []byte
		if ll, ok := from.(*unix.SockaddrLinklayer); ok {
			sourceMac = append([]byte{}, ll.Addr[:6]...)
		}
		if p.onRecv != nil {
			p.onRecv(npduBytes, sourceMac)
		}
	}
}

func (p *Port) SendUnicast(npduBytes []byte, mac []byte) error {
	return p.sendTo(npduBytes, mac)
}

func (p *Port) SendBroadcast(npduBytes []byte) error {
	return p.sendTo(npduBytes, broadcastMac)
}

func (p *Port) sendTo(npduBytes []byte, destMac []byte) error {
	frame, err := encodeFrame(p.localMac, destMac, npduBytes)
	if err != nil {
		return err
	}
	var addr unix.SockaddrLinklayer
	addr.Ifindex = p.ifIndex
	addr.Halen = 6
	copy(addr.Addr[:6], destMac)
	return unix.Sendto(p.fd, frame, 0, &addr)
}

// encodeFrame writes destination MAC, source MAC, 802.3 length field, and
// the 802.2 LLC Type-1 header ahead of the NPDU.
func encodeFrame(srcMac, destMac, npduBytes []byte) ([]byte, error) {
	if len(srcMac) != 6 || len(destMac) != 6 {
		return nil, fmt.Errorf("ethernet: MAC addresses must be 6 bytes")
	}
	llcLen := 3 + len(npduBytes)
	out := make([]byte, 0, 14+llcLen)
	out = append(out, destMac...)
	out = append(out, srcMac...)
	out = append(out, byte(llcLen>>8), byte(llcLen))
	out = append(out, llcDSAP, llcSSAP, llcControl)
	out = append(out, npduBytes...)
	return out, nil
}

func decodeFrame(buf []byte) ([]byte, error) {
	if len(buf) < 17 {
		return nil, fmt.Errorf("ethernet: frame too short")
	}
	length := int(buf[12])<<8 | int(buf[13])
	if length > 1500 {
		return nil, fmt.Errorf("ethernet: not an 802.3 length-field frame (Ethernet II)")
	}
	if buf[14] != llcDSAP || buf[15] != llcSSAP {
		return nil, fmt.Errorf("ethernet: not a BACnet LLC frame")
	}
	return append([]byte{}, buf[17:]...), nil
}
