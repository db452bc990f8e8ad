package bacip

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"
)

// BDTEntry is one row of a Broadcast Distribution Table: a peer BBMD
// address plus the broadcast distribution mask applied to it.
type BDTEntry struct {
	Addr *net.UDPAddr
	Mask net.IPMask
}

// FDTEntry is one row of a Foreign Device Table: a registered foreign
// device and the remaining seconds before its registration lapses.
type FDTEntry struct {
	Addr           *net.UDPAddr
	TTLSeconds     uint16
	RemainingSeconds uint16
}

// BBMD is the optional Broadcast Distribution Device submodule. When the
// owning Port locally broadcasts, the BBMD also forwards a Forwarded-NPDU
// to every BDT peer (masking out itself).
type BBMD struct {
	port *Port
	self *net.UDPAddr

	mu  sync.Mutex
	bdt []BDTEntry
	fdt []FDTEntry
	log *logrus.Entry
}

// NewBBMD builds a BBMD that identifies itself as self (so it can mask
// itself out of BDT forwarding).
func NewBBMD(self *net.UDPAddr) *BBMD {
	return &BBMD{self: self, log: logrus.WithField("component", "bbmd")}
}

// SetBDT replaces the broadcast distribution table.
func (b *BBMD) SetBDT(entries []BDTEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bdt = append([]BDTEntry{}, entries...)
}

func (b *BBMD) forward(npduBytes []byte) error {
	b.mu.Lock()
	peers := append([]BDTEntry{}, b.bdt...)
	b.mu.Unlock()

	originMac := b.port.LocalMac()
	payload := append(append([]byte{}, originMac...), npduBytes...)
	msg := Encode(FuncForwardedNPDU, payload)

	for _, peer := range peers {
		if peer.Addr.IP.Equal(b.self.IP) && peer.Addr.Port == b.self.Port {
			continue
		}
		if _, err := b.port.conn.WriteToUDP(msg, peer.Addr); err != nil {
			b.log.WithError(err).WithField("peer", peer.Addr).Warn("bbmd: forward failed")
		}
	}
	return nil
}

func (b *BBMD) handleBVLL(msg Message, from *net.UDPAddr) {
	switch msg.Function {
	case FuncRegisterForeignDevice:
		if len(msg.Data) < 2 {
			return
		}
		ttl := uint16(msg.Data[0])<<8 | uint16(msg.Data[1])
		b.registerForeign(from, ttl)
	case FuncDeleteForeignDeviceTableEntry:
		b.deleteForeign(from)
	case FuncDistributeBroadcastToNetwork:
		b.forward(msg.Data)
		if b.port.onRecv != nil {
			b.port.onRecv(msg.Data, b.addrMac(from))
		}
	case FuncReadBroadcastDistTable:
		// Not answered: no Read-Broadcast-Distribution-Table-Ack is sent.
	}
}

func (b *BBMD) registerForeign(from *net.UDPAddr, ttl uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.fdt {
		if e.Addr.IP.Equal(from.IP) && e.Addr.Port == from.Port {
			b.fdt[i].TTLSeconds = ttl
			b.fdt[i].RemainingSeconds = ttl
			return
		}
	}
	b.fdt = append(b.fdt, FDTEntry{Addr: from, TTLSeconds: ttl, RemainingSeconds: ttl})
}

func (b *BBMD) deleteForeign(from *net.UDPAddr) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.fdt[:0]
	for _, e := range b.fdt {
		if e.Addr.IP.Equal(from.IP) && e.Addr.Port == from.Port {
			continue
		}
		out = append(out, e)
	}
	b.fdt = out
}

func (b *BBMD) addrMac(a *net.UDPAddr) []byte {
	mac := make([]byte, 6)
	copy(mac, a.IP.To4())
	mac[4] = byte(a.Port >> 8)
	mac[5] = byte(a.Port)
	return mac
}
