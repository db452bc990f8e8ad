package bacip

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ForeignDeviceRegistrar periodically sends Register-Foreign-Device to a
// configured BBMD with a TTL, and sends Delete-Foreign-Device-Table-Entry
// on Stop() when still registered.
type ForeignDeviceRegistrar struct {
	port   *Port
	bbmd   *net.UDPAddr
	ttl    time.Duration

	mu         sync.Mutex
	registered bool
	log        *logrus.Entry
}

// NewForeignDeviceRegistrar targets the given BBMD with the given TTL. The
// registrar re-registers at ttl/2 to stay ahead of expiry.
func NewForeignDeviceRegistrar(bbmd *net.UDPAddr, ttl time.Duration) *ForeignDeviceRegistrar {
	return &ForeignDeviceRegistrar{bbmd: bbmd, ttl: ttl, log: logrus.WithField("component", "fd-registrar")}
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
	msg := Encode(FuncRegisterForeignDevice, payload)
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
	msg := Encode(FuncDeleteForeignDeviceTableEntry, nil)
	_, _ = r.port.conn.WriteToUDP(msg, r.bbmd)
}

func (r *ForeignDeviceRegistrar) handleBVLL(msg Message, from *net.UDPAddr) {
	if msg.Function == FuncResult {
		// BVLC-Result: nothing to act on beyond logging a non-zero code.
		if len(msg.Data) >= 2 && (msg.Data[0] != 0 || msg.Data[1] != 0) {
			r.log.WithField("code", msg.Data).Warn("foreign-device registration rejected")
		}
	}
}
