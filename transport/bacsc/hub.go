package bacsc

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// HubStatus reports which hub, if any, the connector currently holds a
// connection to.
type HubStatus int

const (
	StatusNoConnection HubStatus = iota
	StatusConnectedToPrimary
	StatusConnectedToFailover
)

func (s HubStatus) String() string {
	switch s {
	case StatusConnectedToPrimary:
		return "primary"
	case StatusConnectedToFailover:
		return "failover"
	default:
		return "no-connection"
	}
}

// Reconnect backoff bounds (Annex AB.6.2 defaults).
const (
	DefaultMinReconnect = 5 * time.Second
	DefaultMaxReconnect = 600 * time.Second
)

// HubSubprotocol is the websocket subprotocol a node-to-hub connection
// negotiates.
const HubSubprotocol = "hub.bsc.bacnet.org"

// DirectSubprotocol is negotiated on direct node-to-node connections.
const DirectSubprotocol = "dc.bsc.bacnet.org"

// wsConn is the slice of *websocket.Conn the connector and port drive;
// tests substitute an in-memory fake.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// dialFunc opens one websocket connection to url. The production dialer
// wraps gorilla/websocket; tests stub it.
type dialFunc func(ctx context.Context, url string) (wsConn, error)

// HubConnector maintains one persistent hub connection: primary URI first,
// failover URI when the primary is down, exponential backoff between
// attempts (reset on success).
type HubConnector struct {
	primaryURL  string
	failoverURL string // empty means no failover

	minReconnect time.Duration
	maxReconnect time.Duration
	dial         dialFunc

	mu        sync.Mutex
	status    HubStatus
	conn      wsConn
	connected chan struct{} // closed on connect, replaced on drop

	log *logrus.Entry
}

// NewHubConnector builds a connector for the given hub URIs. failoverURL
// may be empty. tlsConfig applies to both.
func NewHubConnector(primaryURL, failoverURL string, tlsConfig *tls.Config) *HubConnector {
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: 10 * time.Second,
		Subprotocols:     []string{HubSubprotocol},
	}
	return &HubConnector{
		primaryURL:   primaryURL,
		failoverURL:  failoverURL,
		minReconnect: DefaultMinReconnect,
		maxReconnect: DefaultMaxReconnect,
		dial: func(ctx context.Context, url string) (wsConn, error) {
			conn, _, err := dialer.DialContext(ctx, url, nil)
			return conn, err
		},
		connected: make(chan struct{}),
		log:       logrus.WithField("component", "bacsc-hub-connector"),
	}
}

// SetReconnectBounds overrides the backoff window (tests shrink it).
func (h *HubConnector) SetReconnectBounds(min, max time.Duration) {
	h.minReconnect = min
	h.maxReconnect = max
}

// Status returns the current connection status.
func (h *HubConnector) Status() HubStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// Conn returns the live hub connection, or nil.
func (h *HubConnector) Conn() wsConn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// WaitConnected blocks until a hub connection is up or ctx expires.
func (h *HubConnector) WaitConnected(ctx context.Context) error {
	h.mu.Lock()
	ch := h.connected
	status := h.status
	h.mu.Unlock()
	if status != StatusNoConnection {
		return nil
	}
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("bacsc: no hub connection: %w", ctx.Err())
	}
}

// Run dials hubs until ctx is cancelled. Each established connection is
// handed to serve, which owns it until it fails; when serve returns the
// connector reconnects, primary first.
func (h *HubConnector) Run(ctx context.Context, serve func(conn wsConn) error) {
	backoff := h.minReconnect
	for ctx.Err() == nil {
		conn, status := h.attempt(ctx)
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > h.maxReconnect {
				backoff = h.maxReconnect
			}
			continue
		}

		backoff = h.minReconnect
		h.setConnected(conn, status)
		h.log.WithField("hub", status.String()).Info("hub connection established")

		err := serve(conn)
		h.setDisconnected()
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		h.log.WithError(err).Warn("hub connection lost, reconnecting")
	}
}

// attempt tries primary then failover once each.
func (h *HubConnector) attempt(ctx context.Context) (wsConn, HubStatus) {
	if conn, err := h.dial(ctx, h.primaryURL); err == nil {
		return conn, StatusConnectedToPrimary
	} else {
		h.log.WithError(err).WithField("hub", h.primaryURL).Debug("primary hub dial failed")
	}
	if h.failoverURL == "" {
		return nil, StatusNoConnection
	}
	if conn, err := h.dial(ctx, h.failoverURL); err == nil {
		return conn, StatusConnectedToFailover
	} else {
		h.log.WithError(err).WithField("hub", h.failoverURL).Debug("failover hub dial failed")
	}
	return nil, StatusNoConnection
}

func (h *HubConnector) setConnected(conn wsConn, status HubStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn = conn
	h.status = status
	close(h.connected)
}

func (h *HubConnector) setDisconnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conn = nil
	h.status = StatusNoConnection
	h.connected = make(chan struct{})
}
