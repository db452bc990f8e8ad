// Package tsm implements the client and server Transaction State Machines:
// per-peer invoke-id allocation, retry/timeout handling and inbound
// ack/error/reject/abort dispatch on the client side; duplicate
// suppression and cached-response replay on the server side. Both key
// transactions by (peer, invoke-id) and are built against the
// network.Layer abstraction rather than a hardcoded UDP connection.
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

// clientKey identifies one outstanding transaction: the invoke-id space is
// per peer, so the pair (destination, invoke-id) is the unit of uniqueness
// on the wire — the same way serverKey pairs (source, invoke-id).
type clientKey struct {
	dest     string
	invokeID byte
}

// Result is delivered to the caller of Client.Request once the transaction
// reaches a terminal state.
type Result struct {
	SimpleAck  *apdu.SimpleAck
	ComplexAck *apdu.ComplexAck // ServiceData holds the fully reassembled payload
	Err        error            // a *bacerr.Error on Error/Reject/Abort/Timeout PDUs
}

type invocation struct {
	dest        bactypes.Address
	invokeID    byte
	req         apdu.ConfirmedRequest
	result      chan Result
	retriesLeft int
	timer       *time.Timer
	segRecv     *segmentation.Receiver
	done        bool

	// sender/serviceChoice/windowSize are populated only for a
	// Client-originated segmented request (RequestSegmented).
	sender        *segmentation.Sender
	serviceChoice byte
	windowSize    byte
}

func (inv *invocation) key() clientKey {
	return clientKey{dest: inv.dest.Key(), invokeID: inv.invokeID}
}

// Client is the client-side Transaction State Machine: one per
// application, tracking every in-flight confirmed request by
// (destination, invoke-id).
type Client struct {
	net         *network.Layer
	apduTimeout time.Duration
	retries     int

	mu           sync.Mutex
	nextInvokeID byte
	pending      map[clientKey]*invocation

	log *logrus.Entry
}

// NewClient builds a Client TSM bound to net, using apduTimeout as the
// per-segment/per-request ack timeout and retries as the retransmit count
// before a transaction aborts with Timeout, matching the APDU-Timeout /
// Number-Of-APDU-Retries device properties.
func NewClient(net *network.Layer, apduTimeout time.Duration, retries int) *Client {
	c := &Client{
		net:         net,
		apduTimeout: apduTimeout,
		retries:     retries,
		pending:     make(map[clientKey]*invocation),
		log:         logrus.WithField("component", "tsm-client"),
	}
	net.OnReceive(c.handleInbound)
	return c
}

// allocateInvokeID scans (destination, candidate) pairs in rotating order
// starting from the next-invoke-id counter, skipping IDs with an in-flight
// invocation toward the same peer. Fails after 256 misses.
func (c *Client) allocateInvokeID(destKey string) (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < 256; i++ {
		c.nextInvokeID++
		candidate := c.nextInvokeID
		if _, busy := c.pending[clientKey{dest: destKey, invokeID: candidate}]; !busy {
			return candidate, nil
		}
	}
	return 0, bacerr.Abort(bacerr.AbortOutOfResources)
}

// Request sends a confirmed service request and blocks until a terminal
// PDU arrives, the context is cancelled, or retries are exhausted.
func (c *Client) Request(ctx context.Context, dest bactypes.Address, serviceChoice byte, serviceData []byte, maxAPDU apdu.MaxAPDU) Result {
	invokeID, err := c.allocateInvokeID(dest.Key())
	if err != nil {
		return Result{Err: err}
	}
	req := apdu.ConfirmedRequest{
		SegmentedResponseAccepted: true,
		MaxSegments:               apdu.MaxSegmentsUnspecified,
		MaxAPDU:                   maxAPDU,
		InvokeID:                  invokeID,
		ServiceChoice:             serviceChoice,
		ServiceData:               serviceData,
	}

	inv := &invocation{
		dest:        dest,
		invokeID:    invokeID,
		req:         req,
		result:      make(chan Result, 1),
		retriesLeft: c.retries,
	}
	key := clientKey{dest: dest.Key(), invokeID: invokeID}

	c.mu.Lock()
	c.pending[key] = inv
	c.mu.Unlock()

	c.transmit(inv)

	select {
	case res := <-inv.result:
		return res
	case <-ctx.Done():
		c.cancel(key)
		return Result{Err: bacerr.Timeout()}
	}
}

// RequestSegmented sends a confirmed request whose service data is too
// large for one APDU, splitting it into windowSize-wide batches of
// segments and driving the client side of the segmented-send state
// machine. peerMaxSegments is the peer's advertised segment limit; a
// payload needing more segments than that aborts locally with
// APDU-too-long before anything is sent.
func (c *Client) RequestSegmented(ctx context.Context, dest bactypes.Address, serviceChoice byte, serviceData []byte, maxAPDU apdu.MaxAPDU, windowSize byte, peerMaxSegments apdu.MaxSegments) Result {
	maxSegSize := maxAPDU.Length() - 6
	if maxSegSize <= 0 {
		maxSegSize = maxAPDU.Length()
	}
	segs := segmentation.Segment(serviceData, maxSegSize)

	segLimit := peerMaxSegments.Value()
	if peerMaxSegments == apdu.MaxSegmentsUnspecified {
		segLimit = 0 // no limit known
	}
	sender, err := segmentation.NewSender(segs, int(windowSize), segLimit)
	if err != nil {
		return Result{Err: err}
	}

	invokeID, err := c.allocateInvokeID(dest.Key())
	if err != nil {
		return Result{Err: err}
	}
	inv := &invocation{
		dest:          dest,
		invokeID:      invokeID,
		result:        make(chan Result, 1),
		retriesLeft:   c.retries,
		sender:        sender,
		serviceChoice: serviceChoice,
		windowSize:    windowSize,
	}
	key := clientKey{dest: dest.Key(), invokeID: invokeID}

	c.mu.Lock()
	c.pending[key] = inv
	c.mu.Unlock()

	c.sendWindow(inv)

	select {
	case res := <-inv.result:
		return res
	case <-ctx.Done():
		c.cancel(key)
		return Result{Err: bacerr.Timeout()}
	}
}

func (c *Client) sendWindow(inv *invocation) {
	batch := inv.sender.FillWindow()
	for _, seg := range batch {
		req := apdu.ConfirmedRequest{
			Segmented:                 inv.sender.TotalSegments() > 1,
			MoreFollows:               seg.MoreFollows,
			SegmentedResponseAccepted: true,
			MaxSegments:               apdu.MaxSegmentsUnspecified,
			InvokeID:                  inv.invokeID,
			SequenceNumber:            byte(seg.SequenceNumber),
			ProposedWindowSize:        inv.windowSize,
			ServiceChoice:             inv.serviceChoice,
			ServiceData:               seg.Data,
		}
		metrics.ConfirmedRequestsSent.Inc()
		if err := c.net.Send(req.Encode(), inv.dest, true); err != nil {
			c.finish(inv, Result{Err: bacerr.Parse("tsm: send failed", err)})
			return
		}
	}
	inv.timer = time.AfterFunc(c.apduTimeout, func() { c.onTimeout(inv.key()) })
}

func (c *Client) advanceSend(inv *invocation, ack apdu.SegmentAck) {
	if inv.timer != nil {
		inv.timer.Stop()
	}
	inv.sender.HandleSegmentAck(int(ack.SequenceNumber), ack.NegativeAck, int(ack.ActualWindowSize))
	if inv.sender.Done() {
		// The final ComplexAck/SimpleAck for the whole request arrives
		// separately and is handled by onSimpleAck/onComplexAck.
		return
	}
	if ack.NegativeAck {
		metrics.ConfirmedRequestRetries.Inc()
	}
	c.sendWindow(inv)
}

func (c *Client) transmit(inv *invocation) {
	metrics.ConfirmedRequestsSent.Inc()
	if err := c.net.Send(inv.req.Encode(), inv.dest, true); err != nil {
		c.finish(inv, Result{Err: bacerr.Parse("tsm: send failed", err)})
		return
	}
	inv.timer = time.AfterFunc(c.apduTimeout, func() { c.onTimeout(inv.key()) })
}

func (c *Client) onTimeout(key clientKey) {
	c.mu.Lock()
	inv, ok := c.pending[key]
	c.mu.Unlock()
	if !ok || inv.done {
		return
	}
	if inv.retriesLeft <= 0 {
		metrics.ConfirmedRequestTimeouts.Inc()
		c.finish(inv, Result{Err: bacerr.Timeout()})
		return
	}
	inv.retriesLeft--
	metrics.ConfirmedRequestRetries.Inc()
	c.transmit(inv)
}

func (c *Client) cancel(key clientKey) {
	c.mu.Lock()
	inv, ok := c.pending[key]
	delete(c.pending, key)
	c.mu.Unlock()
	if ok && inv.timer != nil {
		inv.timer.Stop()
	}
}

func (c *Client) finish(inv *invocation, res Result) {
	c.mu.Lock()
	if inv.done {
		c.mu.Unlock()
		return
	}
	inv.done = true
	delete(c.pending, inv.key())
	c.mu.Unlock()
	if inv.timer != nil {
		inv.timer.Stop()
	}
	inv.result <- res
}

// handleInbound is registered with network.Layer and dispatches every
// inbound APDU addressed to a pending invocation.
func (c *Client) handleInbound(raw []byte, source bactypes.Address, expectingReply bool) {
	pduType, err := apdu.PDUType(raw)
	if err != nil {
		return
	}
	switch pduType {
	case apdu.TypeSimpleAck:
		c.onSimpleAck(raw, source)
	case apdu.TypeComplexAck:
		c.onComplexAck(raw, source)
	case apdu.TypeSegmentAck:
		c.onSegmentAck(raw, source)
	case apdu.TypeError:
		c.onError(raw, source)
	case apdu.TypeReject:
		c.onReject(raw, source)
	case apdu.TypeAbort:
		c.onAbort(raw, source)
	}
}

// lookup matches an inbound PDU to a pending invocation by
// (source, invoke-id). A response from any other peer — a late reply
// after the ID was reused, or a spoofed datagram — finds nothing and is
// silently ignored.
func (c *Client) lookup(source bactypes.Address, invokeID byte) (*invocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inv, ok := c.pending[clientKey{dest: source.Key(), invokeID: invokeID}]
	return inv, ok
}

func (c *Client) onSimpleAck(raw []byte, source bactypes.Address) {
	ack, err := apdu.DecodeSimpleAck(raw)
	if err != nil {
		return
	}
	inv, ok := c.lookup(source, ack.InvokeID)
	if !ok {
		return
	}
	c.finish(inv, Result{SimpleAck: &ack})
}

func (c *Client) onComplexAck(raw []byte, source bactypes.Address) {
	ack, err := apdu.DecodeComplexAck(raw)
	if err != nil {
		return
	}
	inv, ok := c.lookup(source, ack.InvokeID)
	if !ok {
		return
	}
	if inv.timer != nil {
		inv.timer.Stop()
	}

	if !ack.Segmented {
		c.finish(inv, Result{ComplexAck: &ack})
		return
	}

	c.mu.Lock()
	if inv.segRecv == nil {
		inv.segRecv = segmentation.NewReceiver(int(ack.ProposedWindowSize))
	}
	recv := inv.segRecv
	c.mu.Unlock()

	windowComplete, err := recv.ReceiveSegment(int(ack.SequenceNumber), ack.ServiceData, ack.MoreFollows)
	if err != nil {
		c.finish(inv, Result{Err: err.(*bacerr.Error)})
		return
	}

	if windowComplete || !ack.MoreFollows {
		highest := recv.SlideWindow()
		segAck := apdu.SegmentAck{
			SentByServer:     false,
			InvokeID:         ack.InvokeID,
			SequenceNumber:   byte(highest),
			ActualWindowSize: ack.ProposedWindowSize,
		}
		_ = c.net.Send(segAck.Encode(), inv.dest, false)
	}

	if recv.Complete() {
		full := ack
		full.ServiceData = recv.Reassemble()
		c.finish(inv, Result{ComplexAck: &full})
		return
	}

	inv.timer = time.AfterFunc(c.apduTimeout, func() { c.onTimeout(inv.key()) })
}

func (c *Client) onSegmentAck(raw []byte, source bactypes.Address) {
	// Segment-ACKs received here acknowledge our own outbound segmented
	// request; client-originated segmentation of the request body is
	// handled by Client.RequestSegmented.
	ack, err := apdu.DecodeSegmentAck(raw)
	if err != nil {
		return
	}
	inv, ok := c.lookup(source, ack.InvokeID)
	if !ok || inv.sender == nil {
		return
	}
	c.advanceSend(inv, ack)
}

func (c *Client) onError(raw []byte, source bactypes.Address) {
	e, err := apdu.DecodeError(raw)
	if err != nil {
		return
	}
	inv, ok := c.lookup(source, e.InvokeID)
	if !ok {
		return
	}
	c.finish(inv, Result{Err: bacerr.Protocol(e.Class, e.Code)})
}

func (c *Client) onReject(raw []byte, source bactypes.Address) {
	r, err := apdu.DecodeReject(raw)
	if err != nil {
		return
	}
	inv, ok := c.lookup(source, r.InvokeID)
	if !ok {
		return
	}
	c.finish(inv, Result{Err: bacerr.Reject(r.Reason)})
}

func (c *Client) onAbort(raw []byte, source bactypes.Address) {
	a, err := apdu.DecodeAbort(raw)
	if err != nil {
		return
	}
	inv, ok := c.lookup(source, a.InvokeID)
	if !ok {
		return
	}
	c.finish(inv, Result{Err: bacerr.Abort(a.Reason)})
}
