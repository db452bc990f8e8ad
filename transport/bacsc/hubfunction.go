package bacsc

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// HubFunction is the hub side of BACnet/SC (Annex AB.3): a websocket
// server that accepts node connections, learns each node's VMAC from its
// first frame, and forwards messages between nodes — unicast to the
// destination VMAC, broadcast to everyone else.
type HubFunction struct {
	upgrader       websocket.Upgrader
	maxConnections int

	mu     sync.Mutex
	spokes map[string]*spoke

	log *logrus.Entry
}

type spoke struct {
	vmac []byte
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes to conn
}

func (s *spoke) write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// NewHubFunction builds a hub. maxConnections of 0 means unlimited.
func NewHubFunction(maxConnections int) *HubFunction {
	return &HubFunction{
		upgrader: websocket.Upgrader{
			Subprotocols: []string{HubSubprotocol},
		},
		maxConnections: maxConnections,
		spokes:         make(map[string]*spoke),
		log:            logrus.WithField("component", "bacsc-hub"),
	}
}

// Handler returns the http.Handler to mount on the hub's TLS listener.
func (h *HubFunction) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.WithError(err).Warn("websocket upgrade failed")
			return
		}
		h.serveSpoke(conn)
	})
}

// ListenAndServe runs a standalone hub on addr. tlsConfig nil serves
// plaintext (bench use only; production hubs terminate mutual TLS 1.3).
func (h *HubFunction) ListenAndServe(ctx context.Context, addr string, tlsConfig *tls.Config) error {
	server := &http.Server{Addr: addr, Handler: h.Handler(), TLSConfig: tlsConfig}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if tlsConfig != nil {
		return server.ListenAndServeTLS("", "")
	}
	h.log.Warn("hub serving plaintext websocket, bench use only")
	return server.ListenAndServe()
}

// ConnectedNodes returns how many spokes are registered.
func (h *HubFunction) ConnectedNodes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.spokes)
}

func (h *HubFunction) serveSpoke(conn *websocket.Conn) {
	defer conn.Close()

	var sp *spoke
	defer func() {
		if sp != nil {
			h.mu.Lock()
			delete(h.spokes, string(sp.vmac))
			h.mu.Unlock()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := DecodeFrame(data)
		if err != nil {
			h.log.WithError(err).Warn("dropping malformed frame from spoke")
			continue
		}
		if frame.SourceVMAC == nil {
			continue
		}
		if sp == nil {
			sp = h.register(frame.SourceVMAC, conn)
			if sp == nil {
				return // over the connection limit, or VMAC collision
			}
		}

		switch frame.MsgType {
		case MsgHeartbeatRequest:
			_ = sp.write(header(MsgHeartbeatAck, nil, frame.SourceVMAC))
		case MsgEncapsulatedNPDU:
			h.forward(frame, data)
		}
	}
}

// register admits a spoke, rejecting VMAC collisions and connections over
// the limit.
func (h *HubFunction) register(vmac []byte, conn *websocket.Conn) *spoke {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(vmac)
	if _, taken := h.spokes[key]; taken {
		h.log.WithField("vmac", key).Warn("rejecting spoke with duplicate VMAC")
		return nil
	}
	if h.maxConnections > 0 && len(h.spokes) >= h.maxConnections {
		h.log.Warn("rejecting spoke, connection limit reached")
		return nil
	}
	sp := &spoke{vmac: append([]byte{}, vmac...), conn: conn}
	h.spokes[key] = sp
	return sp
}

// forward relays a frame: to the addressed spoke when the destination
// VMAC is present, to every other spoke when it is absent (broadcast).
func (h *HubFunction) forward(frame Frame, raw []byte) {
	h.mu.Lock()
	var targets []*spoke
	if frame.DestVMAC != nil {
		if sp, ok := h.spokes[string(frame.DestVMAC)]; ok {
			targets = append(targets, sp)
		}
	} else {
		for key, sp := range h.spokes {
			if key == string(frame.SourceVMAC) {
				continue
			}
			targets = append(targets, sp)
		}
	}
	h.mu.Unlock()

	for _, sp := range targets {
		if err := sp.write(raw); err != nil {
			h.log.WithError(err).Warn("forward to spoke failed")
		}
	}
}
