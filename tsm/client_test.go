package tsm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/apdu"
	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/network"
	"github.com/bacgo/bacnet/npdu"
	"github.com/bacgo/bacnet/transport"
)

type fakePort struct {
	recv       transport.ReceiveFunc
	unicast    [][]byte
	broadcasts [][]byte
}

func newFakePort() *fakePort { return &fakePort{} }

func (p *fakePort) Start(ctx context.Context) error { return nil }
func (p *fakePort) Stop(ctx context.Context) error  { return nil }
func (p *fakePort) SendUnicast(n []byte, mac []byte) error {
	p.unicast = append(p.unicast, n)
	return nil
}
func (p *fakePort) SendBroadcast(n []byte) error {
	p.broadcasts = append(p.broadcasts, n)
	return nil
}
func (p *fakePort) OnReceive(fn transport.ReceiveFunc) { p.recv = fn }
func (p *fakePort) LocalMac() []byte                   { return []byte{1} }
func (p *fakePort) MaxNPDULength() int                 { return 1476 }

// deliver wraps apduBytes in an NPDU and feeds it into the network layer as
// if it had arrived over the wire.
func deliver(p *fakePort, apduBytes []byte, sourceMac []byte) {
	n := npdu.NPDU{APDU: apduBytes}
	p.recv(n.Encode(), sourceMac)
}

func destAddr() bactypes.Address { return bactypes.Address{Mac: []byte{9, 9}} }

func TestClientRequestSimpleAck(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, time.Second, 2)

	done := make(chan Result, 1)
	go func() {
		done <- c.Request(context.Background(), destAddr(), 15, []byte{0x01}, apdu.MaxAPDU1476)
	}()

	// wait until the request has actually been sent before replying
	require.Eventually(t, func() bool { return len(port.unicast) == 1 }, time.Second, time.Millisecond)

	req, err := apdu.DecodeConfirmedRequest(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)

	ack := apdu.SimpleAck{InvokeID: req.InvokeID, ServiceChoice: 15}
	deliver(port, ack.Encode(), []byte{9, 9})

	res := <-done
	require.NoError(t, res.Err)
	require.NotNil(t, res.SimpleAck)
	assert.Equal(t, req.InvokeID, res.SimpleAck.InvokeID)
}

func TestClientRequestComplexAckUnsegmented(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, time.Second, 2)

	done := make(chan Result, 1)
	go func() {
		done <- c.Request(context.Background(), destAddr(), 12, nil, apdu.MaxAPDU1476)
	}()

	require.Eventually(t, func() bool { return len(port.unicast) == 1 }, time.Second, time.Millisecond)
	req, err := apdu.DecodeConfirmedRequest(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)

	ack := apdu.ComplexAck{InvokeID: req.InvokeID, ServiceChoice: 12, ServiceData: []byte{0xAA, 0xBB}}
	deliver(port, ack.Encode(), []byte{9, 9})

	res := <-done
	require.NoError(t, res.Err)
	require.NotNil(t, res.ComplexAck)
	assert.Equal(t, []byte{0xAA, 0xBB}, res.ComplexAck.ServiceData)
}

func TestClientRequestErrorResponse(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, time.Second, 2)

	done := make(chan Result, 1)
	go func() {
		done <- c.Request(context.Background(), destAddr(), 15, nil, apdu.MaxAPDU1476)
	}()

	require.Eventually(t, func() bool { return len(port.unicast) == 1 }, time.Second, time.Millisecond)
	req, err := apdu.DecodeConfirmedRequest(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)

	e := apdu.Error{InvokeID: req.InvokeID, ServiceChoice: 15, Class: bacerr.ClassObject, Code: bacerr.CodeUnknownObject}
	deliver(port, e.Encode(), []byte{9, 9})

	res := <-done
	require.Error(t, res.Err)
	assert.True(t, bacerr.IsProtocol(res.Err, bacerr.ClassObject, bacerr.CodeUnknownObject))
}

func TestClientRequestTimeoutAfterRetries(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, 20*time.Millisecond, 1)

	res := c.Request(context.Background(), destAddr(), 15, nil, apdu.MaxAPDU1476)
	assert.Error(t, res.Err)
	// one initial send plus one retry
	assert.GreaterOrEqual(t, len(port.unicast), 2)
}

func TestClientRequestContextCancel(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, time.Minute, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		done <- c.Request(ctx, destAddr(), 15, nil, apdu.MaxAPDU1476)
	}()
	require.Eventually(t, func() bool { return len(port.unicast) == 1 }, time.Second, time.Millisecond)
	cancel()

	res := <-done
	assert.Error(t, res.Err)
}

func TestClientIgnoresResponseFromWrongSource(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, time.Second, 2)

	done := make(chan Result, 1)
	go func() {
		done <- c.Request(context.Background(), destAddr(), 15, nil, apdu.MaxAPDU1476)
	}()

	require.Eventually(t, func() bool { return len(port.unicast) == 1 }, time.Second, time.Millisecond)
	req, err := apdu.DecodeConfirmedRequest(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)

	// Same invoke-id, wrong peer: must not complete the transaction.
	ack := apdu.SimpleAck{InvokeID: req.InvokeID, ServiceChoice: 15}
	deliver(port, ack.Encode(), []byte{7, 7})
	select {
	case res := <-done:
		t.Fatalf("stray response completed the transaction: %+v", res)
	case <-time.After(50 * time.Millisecond):
	}

	// The real peer's response still lands.
	deliver(port, ack.Encode(), []byte{9, 9})
	res := <-done
	require.NoError(t, res.Err)
	require.NotNil(t, res.SimpleAck)
}

func TestClientSegmentedRequestOverPeerLimitAborts(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	c := NewClient(net, time.Second, 2)

	// 3000 bytes at max-APDU 50 needs far more than 2 segments.
	payload := make([]byte, 3000)
	res := c.RequestSegmented(context.Background(), destAddr(), 14, payload, apdu.MaxAPDU50, 16, apdu.MaxSegments2)
	require.Error(t, res.Err)
	be, ok := res.Err.(*bacerr.Error)
	require.True(t, ok)
	assert.Equal(t, bacerr.KindAbort, be.Kind)
	assert.Equal(t, bacerr.AbortAPDUTooLong, be.Abort)
	assert.Empty(t, port.unicast, "nothing goes on the wire")
}

// mustDecodeAPDU strips the NPDU header off a raw port send to recover the
// enclosed APDU bytes.
func mustDecodeAPDU(raw []byte) []byte {
	n, err := npdu.Decode(raw)
	if err != nil {
		panic(err)
	}
	return n.APDU
}
