// Package bacsc implements a BACnet Secure Connect node (ASHRAE 135 Annex
// AB): NPDUs framed as BVLC-SC messages over a TLS 1.3 websocket
// connection to a hub, with automatic primary/failover reconnection.
// Grounded on transport/bacip's Port shape and on github.com/gorilla/websocket,
// the websocket library the example pack pulls in for framed duplex
// connections.
package bacsc

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/transport"
)

// Config carries everything a node Port needs at construction.
type Config struct {
	PrimaryHubURL  string
	FailoverHubURL string // optional
	TLS            *tls.Config
	// AllowPlaintext permits running without TLS material (ws:// URLs).
	// Production BACnet/SC requires mutual TLS; this exists for bench
	// setups only and Start logs a warning when it is used.
	AllowPlaintext bool
}

// Port implements transport.Port as a BACnet/SC node: one persistent
// websocket connection to a hub, carrying BVLC-SC encapsulated NPDUs. It
// has no broadcast primitive of its own — the hub distributes a broadcast
// message to every connected node (Annex AB.2.3).
//
// Unicast and broadcast headers are constant per (us, them) pair, so the
// Port memoizes them: the hot send path is header-lookup + payload-concat
// with no per-message framing work.
type Port struct {
	cfg       Config
	localVMAC []byte
	connector *HubConnector

	mu     sync.Mutex
	onRecv transport.ReceiveFunc
	cancel context.CancelFunc

	headerMu        sync.Mutex
	unicastHeaders  map[string][]byte
	broadcastHeader []byte

	log *logrus.Entry
}

// New builds a node Port that will dial cfg.PrimaryHubURL (e.g.
// "wss://hub.example:443/") once Start is called.
func New(cfg Config) (*Port, error) {
	if _, err := url.Parse(cfg.PrimaryHubURL); err != nil {
		return nil, fmt.Errorf("bacsc: invalid hub url %q: %w", cfg.PrimaryHubURL, err)
	}
	if cfg.FailoverHubURL != "" {
		if _, err := url.Parse(cfg.FailoverHubURL); err != nil {
			return nil, fmt.Errorf("bacsc: invalid failover hub url %q: %w", cfg.FailoverHubURL, err)
		}
	}
	if cfg.TLS == nil && !cfg.AllowPlaintext {
		return nil, fmt.Errorf("bacsc: no TLS configuration; set AllowPlaintext to run without one")
	}
	vmac := make([]byte, vmacLen)
	if _, err := rand.Read(vmac); err != nil {
		return nil, fmt.Errorf("bacsc: generating VMAC: %w", err)
	}
	p := &Port{
		cfg:            cfg,
		localVMAC:      vmac,
		connector:      NewHubConnector(cfg.PrimaryHubURL, cfg.FailoverHubURL, cfg.TLS),
		unicastHeaders: make(map[string][]byte),
		log:            logrus.WithField("component", "bacsc"),
	}
	p.broadcastHeader = header(MsgEncapsulatedNPDU, p.localVMAC, nil)
	return p, nil
}

// SetLocalMac overrides the random VMAC (tests, stable addressing).
func (p *Port) SetLocalMac(vmac []byte) {
	p.localVMAC = append([]byte{}, vmac...)
	p.headerMu.Lock()
	defer p.headerMu.Unlock()
	p.unicastHeaders = make(map[string][]byte)
	p.broadcastHeader = header(MsgEncapsulatedNPDU, p.localVMAC, nil)
}

func (p *Port) OnReceive(fn transport.ReceiveFunc) { p.onRecv = fn }

func (p *Port) LocalMac() []byte { return p.localVMAC }

// Hub exposes the connector so callers can observe failover status.
func (p *Port) Hub() *HubConnector { return p.connector }

func (p *Port) MaxNPDULength() int { return 61327 } // Annex AB.1.2.1 max BVLC-SC message size minus header

// Start launches the hub connection loop and returns once a first
// connection is up (bounded by ctx).
func (p *Port) Start(ctx context.Context) error {
	if p.cfg.TLS == nil {
		p.log.Warn("starting BACnet/SC without TLS — plaintext websocket, bench use only")
	}
	runCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	go p.connector.Run(runCtx, func(conn wsConn) error { return p.serve(runCtx, conn) })

	return p.connector.WaitConnected(ctx)
}

// Stop tears the hub connection down with a clean websocket close.
func (p *Port) Stop(context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if conn := p.connector.Conn(); conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	return nil
}

// serve owns one established hub connection: it answers heartbeats and
// delivers encapsulated NPDUs until the connection fails.
func (p *Port) serve(ctx context.Context, conn wsConn) error {
	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go p.heartbeatLoop(ctx, conn, heartbeatDone)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			p.log.WithError(err).Warn("dropping malformed BVLC-SC message")
			continue
		}
		switch frame.MsgType {
		case MsgEncapsulatedNPDU:
			if p.onRecv != nil {
				p.onRecv(frame.Payload, frame.SourceVMAC)
			}
		case MsgHeartbeatRequest:
			_ = conn.WriteMessage(websocket.BinaryMessage, header(MsgHeartbeatAck, p.localVMAC, nil))
		}
	}
}

func (p *Port) heartbeatLoop(ctx context.Context, conn wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.BinaryMessage, header(MsgHeartbeatRequest, p.localVMAC, nil)); err != nil {
				p.log.WithError(err).Warn("bacsc heartbeat failed")
				return
			}
		}
	}
}

// unicastHeader returns the memoized 16-byte BVLC-SC header for mac.
func (p *Port) unicastHeader(mac []byte) []byte {
	p.headerMu.Lock()
	defer p.headerMu.Unlock()
	key := string(mac)
	if h, ok := p.unicastHeaders[key]; ok {
		return h
	}
	h := header(MsgEncapsulatedNPDU, p.localVMAC, mac)
	p.unicastHeaders[key] = h
	return h
}

func (p *Port) send(frame []byte) error {
	conn := p.connector.Conn()
	if conn == nil {
		return fmt.Errorf("bacsc: not connected to a hub")
	}
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// SendUnicast frames npduBytes for the destination VMAC and sends it via
// the hub.
func (p *Port) SendUnicast(npduBytes []byte, mac []byte) error {
	h := p.unicastHeader(mac)
	frame := make([]byte, 0, len(h)+len(npduBytes))
	frame = append(frame, h...)
	frame = append(frame, npduBytes...)
	return p.send(frame)
}

// SendBroadcast asks the hub to distribute the message to every node it
// serves (Annex AB.2.3); the frame carries no destination VMAC.
func (p *Port) SendBroadcast(npduBytes []byte) error {
	frame := make([]byte, 0, len(p.broadcastHeader)+len(npduBytes))
	frame = append(frame, p.broadcastHeader...)
	frame = append(frame, npduBytes...)
	return p.send(frame)
}
