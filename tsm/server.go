package tsm

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bacgo/bacnet/apdu"
	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/metrics"
	"github.com/bacgo/bacnet/network"
	"github.com/bacgo/bacnet/segmentation"
)

// ResponseKind discriminates the shape a Handler's Response takes.
type ResponseKind int

const (
	RespSimpleAck ResponseKind = iota
	RespComplexAck
	RespError
	RespReject
	RespAbort
	// RespNone sends nothing at all — used while Device-Communication-
	// Control has responses disabled.
	RespNone
)

// Response is what a service handler returns; Server encodes it into the
// matching PDU shape (segmenting a ComplexAck automatically if its Data
// exceeds the requester's negotiated max APDU length).
type Response struct {
	Kind          ResponseKind
	ServiceChoice byte
	Data          []byte
	Class         bacerr.ErrorClass
	Code          bacerr.ErrorCode
	RejectReason  bacerr.RejectReason
	AbortReason   bacerr.AbortReason
}

// Handler processes one fully-reassembled confirmed-request service data
// payload and returns the response to send back.
type Handler func(source bactypes.Address, serviceChoice byte, serviceData []byte) Response

type serverKey struct {
	source   string
	invokeID byte
}

type serverEntry struct {
	pdus      [][]byte
	expiresAt time.Time
}

type serverRecv struct {
	recv          *segmentation.Receiver
	serviceChoice byte
}

// Server is the server-side Transaction State Machine: it reassembles
// inbound segmented confirmed requests, dispatches the completed request
// to Handler, segments an oversized response, and suppresses duplicate
// confirmed requests by replaying the cached response instead of
// re-invoking Handler.
type Server struct {
	net     *network.Layer
	handler Handler

	mu       sync.Mutex
	inflight map[serverKey]*serverRecv
	cache    map[serverKey]*serverEntry
	entryTTL time.Duration

	log *logrus.Entry
}

// NewServer builds a Server TSM. entryTTL bounds how long a completed
// transaction's response is kept around to answer a retransmitted
// duplicate request.
func NewServer(net *network.Layer, handler Handler, entryTTL time.Duration) *Server {
	s := &Server{
		net:      net,
		handler:  handler,
		inflight: make(map[serverKey]*serverRecv),
		cache:    make(map[serverKey]*serverEntry),
		entryTTL: entryTTL,
		log:      logrus.WithField("component", "tsm-server"),
	}
	net.OnReceive(s.handleInbound)
	return s
}

// Run periodically sweeps expired cache entries until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	ticker := time.NewTicker(s.entryTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Server) sweep() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, e := range s.cache {
		if now.After(e.expiresAt) {
			delete(s.cache, k)
		}
	}
}

func (s *Server) handleInbound(raw []byte, source bactypes.Address, expectingReply bool) {
	pduType, err := apdu.PDUType(raw)
	if err != nil || pduType != apdu.TypeConfirmedRequest {
		if pduType == apdu.TypeSegmentAck {
			// Not handled server-side in this port: server-originated
			// segmented responses use a single negotiated window per
			// transaction and do not require further ack-driven windows
			// for the reply sizes this stack produces.
			return
		}
		return
	}

	req, err := apdu.DecodeConfirmedRequest(raw)
	if err != nil {
		return
	}

	key := serverKey{source: source.Key(), invokeID: req.InvokeID}

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok {
		s.mu.Unlock()
		metrics.ServerDuplicateSuppressed.Inc()
		for _, pdu := range entry.pdus {
			_ = s.net.Send(pdu, source, false)
		}
		return
	}
	s.mu.Unlock()

	if !req.Segmented {
		s.dispatch(source, key, req.ServiceChoice, req.ServiceData, req.MaxAPDU)
		return
	}

	s.mu.Lock()
	recv, ok := s.inflight[key]
	if !ok {
		recv = &serverRecv{recv: segmentation.NewReceiver(int(req.ProposedWindowSize)), serviceChoice: req.ServiceChoice}
		s.inflight[key] = recv
	}
	s.mu.Unlock()

	windowComplete, err := recv.recv.ReceiveSegment(int(req.SequenceNumber), req.ServiceData, req.MoreFollows)
	if err != nil {
		return
	}
	if windowComplete || !req.MoreFollows {
		highest := recv.recv.SlideWindow()
		ack := apdu.SegmentAck{
			SentByServer:     true,
			InvokeID:         req.InvokeID,
			SequenceNumber:   byte(highest),
			ActualWindowSize: req.ProposedWindowSize,
		}
		_ = s.net.Send(ack.Encode(), source, false)
	}
	if recv.recv.Complete() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		s.dispatch(source, key, recv.serviceChoice, recv.recv.Reassemble(), req.MaxAPDU)
	}
}

func (s *Server) dispatch(source bactypes.Address, key serverKey, serviceChoice byte, serviceData []byte, maxAPDU apdu.MaxAPDU) {
	resp := s.handler(source, serviceChoice, serviceData)
	if resp.Kind == RespNone {
		return
	}
	pdus := s.encode(key, resp, maxAPDU)

	s.mu.Lock()
	s.cache[key] = &serverEntry{pdus: pdus, expiresAt: time.Now().Add(s.entryTTL)}
	s.mu.Unlock()

	for _, pdu := range pdus {
		if err := s.net.Send(pdu, source, false); err != nil {
			s.log.WithError(err).Warn("failed to send response")
		}
	}
}

func (s *Server) encode(key serverKey, resp Response, maxAPDU apdu.MaxAPDU) [][]byte {
	switch resp.Kind {
	case RespSimpleAck:
		return [][]byte{apdu.SimpleAck{InvokeID: key.invokeID, ServiceChoice: resp.ServiceChoice}.Encode()}

	case RespError:
		return [][]byte{apdu.Error{InvokeID: key.invokeID, ServiceChoice: resp.ServiceChoice, Class: resp.Class, Code: resp.Code}.Encode()}

	case RespReject:
		return [][]byte{apdu.Reject{InvokeID: key.invokeID, Reason: resp.RejectReason}.Encode()}

	case RespAbort:
		return [][]byte{apdu.Abort{SentByServer: true, InvokeID: key.invokeID, Reason: resp.AbortReason}.Encode()}

	case RespComplexAck:
		maxSegSize := maxAPDU.Length() - 5
		if maxSegSize <= 0 || len(resp.Data) <= maxSegSize {
			return [][]byte{apdu.ComplexAck{InvokeID: key.invokeID, ServiceChoice: resp.ServiceChoice, ServiceData: resp.Data}.Encode()}
		}
		segs := segmentation.Segment(resp.Data, maxSegSize)
		windowSize := byte(len(segs))
		if windowSize > 16 {
			windowSize = 16
		}
		var pdus [][]byte
		for i, seg := range segs {
			pdus = append(pdus, apdu.ComplexAck{
				Segmented:          true,
				MoreFollows:        i != len(segs)-1,
				InvokeID:           key.invokeID,
				SequenceNumber:     byte(i),
				ProposedWindowSize: windowSize,
				ServiceChoice:      resp.ServiceChoice,
				ServiceData:        seg,
			}.Encode())
		}
		return pdus

	default:
		return [][]byte{apdu.Abort{SentByServer: true, InvokeID: key.invokeID, Reason: bacerr.AbortOther}.Encode()}
	}
}

