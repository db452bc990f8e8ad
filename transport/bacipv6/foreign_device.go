package bacipv6

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ForeignDeviceRegistrar periodically sends Register-Foreign-Device to a
// BACnet/IPv6 BBMD with a TTL, carrying the local 3-byte VMAC in every
// message as Annex U requires, and sends
// Delete-Foreign-Device-Table-Entry on Stop when still registered.
// Mirrors transport/bacip's registrar over the BVLC6 envelope.
type ForeignDeviceRegistrar struct {
	port *Port
	bbmd *net.UDPAddr
	ttl  time.Duration

	mu         sync.Mutex
	registered bool
	cancel     context.CancelFunc
	log        *logrus.Entry
}

// NewForeignDeviceRegistrar targets the given BBMD with the given TTL. The
// registrar re-registers at ttl/2 to stay ahead of expiry.
func NewForeignDeviceRegistrar(port *Port, bbmd *net.UDPAddr, ttl time.Duration) *ForeignDeviceRegistrar {
	return &ForeignDeviceRegistrar{
		port: port,
		bbmd: bbmd,
		ttl:  ttl,
		log:  logrus.WithField("component", "fd6-registrar"),
	}
}

// Start begins the registration loop.
func (r *ForeignDeviceRegistrar) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	go r.run(runCtx)
}

// Stop halts re-registration and deletes our entry from the BBMD when one
// is outstanding.
func (r *ForeignDeviceRegistrar) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.deregister()
}

func (r *ForeignDeviceRegistrar) run(ctx context.Context) {
	if err := r.register(); err != nil {
		r.log.WithError(err).Warn("initial foreign-device registration failed")
	}
	interval := r.ttl / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.register(); err != nil {
				r.log.WithError(err).Warn("foreign-device re-registration failed")
			}
		}
	}
}

func (r *ForeignDeviceRegistrar) register() error {
	ttlSec := uint16(r.ttl.Seconds())
	payload := []byte{byte(ttlSec >> 8), byte(ttlSec)}
	msg := encodeWithSource(FuncRegisterForeignDevice, payload, r.port.localMac)
	_, err := r.port.conn.WriteToUDP(msg, r.bbmd)
	if err == nil {
		r.mu.Lock()
		r.registered = true
		r.mu.Unlock()
	}
	return err
}

func (r *ForeignDeviceRegistrar) deregister() {
	r.mu.Lock()
	wasRegistered := r.registered
	r.registered = false
	r.mu.Unlock()
	if !wasRegistered {
		return
	}
	msg := encodeWithSource(FuncDeleteForeignDeviceTableEntry, nil, r.port.localMac)
	_, _ = r.port.conn.WriteToUDP(msg, r.bbmd)
}
