// Package network implements the non-router Network layer: one manager per
// device that wraps APDUs into NPDUs, maintains a router cache, resolves
// local vs remote destinations, and handles the three inbound
// network-message types a non-router must act on.
package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/metrics"
	"github.com/bacgo/bacnet/npdu"
	"github.com/bacgo/bacnet/transport"
)

// RouterCacheEntry caches the MAC of the local router that reaches a
// remote DNET, and when we learned it.
type RouterCacheEntry struct {
	RouterMac []byte
	LearnedAt time.Time
}

// APDUHandler receives a decoded application layer payload plus the
// BACnet-level source address it arrived from.
type APDUHandler func(apdu []byte, source bactypes.Address, expectingReply bool)

// Layer is the non-router Network layer manager. It owns exactly one
// transport port.
type Layer struct {
	port          transport.Port
	networkNumber *uint16 // nil until configured or learned

	mu    sync.Mutex
	cache map[uint16]RouterCacheEntry

	handlers []APDUHandler
	log      *logrus.Entry
}

// Option configures a Layer at construction time.
type Option func(*Layer)

// WithNetworkNumber pre-configures the local network number, when one is
// known.
func WithNetworkNumber(n uint16) Option {
	return func(l *Layer) { l.networkNumber = &n }
}

// WithLogger overrides the default logger (used by tests to capture
// output).
func WithLogger(log *logrus.Entry) Option {
	return func(l *Layer) { l.log = log }
}

// New builds a Layer over the given transport port.
func New(port transport.Port, opts ...Option) *Layer {
	l := &Layer{
		port:  port,
		cache: make(map[uint16]RouterCacheEntry),
		log:   logrus.WithField("component", "network"),
	}
	for _, opt := range opts {
		opt(l)
	}
	port.OnReceive(l.handleInbound)
	return l
}

// OnReceive adds a callback invoked for every inbound application APDU.
// The client TSM, server TSM, and application each register one and filter
// by PDU type themselves.
func (l *Layer) OnReceive(fn APDUHandler) { l.handlers = append(l.handlers, fn) }

// Send wraps apdu in an NPDU and routes it to destination.
func (l *Layer) Send(apduBytes []byte, destination bactypes.Address, expectingReply bool) error {
	n := npdu.NPDU{ExpectingReply: expectingReply, APDU: apduBytes}

	switch {
	case destination.IsLocal() && destination.IsBroadcast():
		metrics.NPDUSent.WithLabelValues("local").Inc()
		return l.port.SendBroadcast(n.Encode())

	case destination.IsGlobalBroadcast():
		n.Destination = &npdu.NetworkAddress{Net: bactypes.GlobalBroadcastNetwork}
		n.HopCount = 255
		metrics.NPDUSent.WithLabelValues("global").Inc()
		return l.port.SendBroadcast(n.Encode())

	case destination.IsLocal():
		metrics.NPDUSent.WithLabelValues("local").Inc()
		return l.port.SendUnicast(n.Encode(), destination.Mac)

	default:
		dnet, _ := destination.NetworkNumber()
		if destination.IsBroadcast() {
			n.Destination = &npdu.NetworkAddress{Net: dnet}
			n.HopCount = 255
			metrics.NPDUSent.WithLabelValues("remote-broadcast").Inc()
			return l.port.SendBroadcast(n.Encode())
		}
		n.Destination = &npdu.NetworkAddress{Net: dnet, Mac: destination.Mac}
		n.HopCount = 255

		l.mu.Lock()
		entry, ok := l.cache[dnet]
		l.mu.Unlock()
		if ok {
			metrics.NPDUSent.WithLabelValues("routed").Inc()
			return l.port.SendUnicast(n.Encode(), entry.RouterMac)
		}

		metrics.NPDUSent.WithLabelValues("routed-unknown").Inc()
		if err := l.port.SendBroadcast(n.Encode()); err != nil {
			return err
		}
		return l.sendWhoIsRouterToNetwork(dnet)
	}
}

func (l *Layer) sendWhoIsRouterToNetwork(dnet uint16) error {
	msg := npdu.NPDU{
		IsNetworkMessage: true,
		MessageType:      npdu.MsgWhoIsRouterToNetwork,
		MessageData:      []byte{byte(dnet >> 8), byte(dnet)},
		HopCount:         255,
	}
	return l.port.SendBroadcast(msg.Encode())
}

// CacheRouter returns the router MAC cached for dnet, if any.
func (l *Layer) CacheRouter(dnet uint16) ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.cache[dnet]
	if !ok {
		return nil, false
	}
	return entry.RouterMac, true
}

func (l *Layer) learnRoute(dnet uint16, routerMac []byte, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache[dnet] = RouterCacheEntry{RouterMac: append([]byte{}, routerMac...), LearnedAt: now}
}

func (l *Layer) handleInbound(raw []byte, sourceMac []byte) {
	metrics.NPDUReceived.WithLabelValues("port").Inc()
	n, err := npdu.Decode(raw)
	if err != nil {
		metrics.NPDUDropped.WithLabelValues("malformed-npdu").Inc()
		l.log.WithError(err).Warn("dropping malformed NPDU")
		return
	}

	if n.IsNetworkMessage {
		l.handleNetworkMessage(n, sourceMac)
		return
	}

	src := l.deriveSource(n, sourceMac)
	for _, handler := range l.handlers {
		handler(n.APDU, src, n.ExpectingReply)
	}
}

func (l *Layer) deriveSource(n npdu.NPDU, sourceMac []byte) bactypes.Address {
	if n.Source != nil {
		return bactypes.Address{Network: &n.Source.Net, Mac: n.Source.Mac}
	}
	return bactypes.Address{Mac: sourceMac}
}

func (l *Layer) handleNetworkMessage(n npdu.NPDU, sourceMac []byte) {
	switch n.MessageType {
	case npdu.MsgIAmRouterToNetwork:
		now := time.Now()
		for i := 0; i+1 < len(n.MessageData); i += 2 {
			dnet := uint16(n.MessageData[i])<<8 | uint16(n.MessageData[i+1])
			l.learnRoute(dnet, sourceMac, now)
		}

	case npdu.MsgWhatIsNetworkNumber:
		if n.NoRouting() {
			metrics.NPDUDropped.WithLabelValues("network-message-must-not-route").Inc()
			return
		}
		if l.networkNumber == nil {
			return
		}
		resp := npdu.NPDU{
			IsNetworkMessage: true,
			MessageType:      npdu.MsgNetworkNumberIs,
			MessageData:      []byte{byte(*l.networkNumber >> 8), byte(*l.networkNumber), 1},
			HopCount:         255,
		}
		if err := l.port.SendBroadcast(resp.Encode()); err != nil {
			l.log.WithError(err).Warn("failed to answer What-Is-Network-Number")
		}

	case npdu.MsgNetworkNumberIs:
		if n.NoRouting() {
			metrics.NPDUDropped.WithLabelValues("network-message-must-not-route").Inc()
			return
		}
		if l.networkNumber != nil || len(n.MessageData) < 3 {
			return
		}
		authoritative := n.MessageData[2] != 0
		if !authoritative {
			return
		}
		learned := uint16(n.MessageData[0])<<8 | uint16(n.MessageData[1])
		l.networkNumber = &learned
		l.log.WithField("network", learned).Info("learned local network number")

	default:
		metrics.NPDUDropped.WithLabelValues(fmt.Sprintf("unhandled-message-type-%d", n.MessageType)).Inc()
	}
}
