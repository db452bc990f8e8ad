package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/npdu"
	"github.com/bacgo/bacnet/transport"
)

type fakePort struct {
	recv        transport.ReceiveFunc
	unicastSent [][]byte
	unicastMac  [][]byte
	broadcasts  [][]byte
	localMac    []byte
}

func newFakePort() *fakePort {
	return &fakePort{localMac: []byte{1, 2, 3, 4}}
}

func (p *fakePort) Start(ctx context.Context) error { return nil }
func (p *fakePort) Stop(ctx context.Context) error  { return nil }

func (p *fakePort) SendUnicast(n []byte, mac []byte) error {
	p.unicastSent = append(p.unicastSent, n)
	p.unicastMac = append(p.unicastMac, mac)
	return nil
}

func (p *fakePort) SendBroadcast(n []byte) error {
	p.broadcasts = append(p.broadcasts, n)
	return nil
}

func (p *fakePort) OnReceive(fn transport.ReceiveFunc) { p.recv = fn }
func (p *fakePort) LocalMac() []byte                   { return p.localMac }
func (p *fakePort) MaxNPDULength() int                 { return 1476 }

func TestSendLocalBroadcast(t *testing.T) {
	port := newFakePort()
	l := New(port)
	require.NoError(t, l.Send([]byte{0xAA}, bactypes.LocalBroadcast(), false))
	assert.Len(t, port.broadcasts, 1)
	assert.Empty(t, port.unicastSent)
}

func TestSendLocalUnicast(t *testing.T) {
	port := newFakePort()
	l := New(port)
	dest := bactypes.Address{Mac: []byte{9, 9}}
	require.NoError(t, l.Send([]byte{0xBB}, dest, true))
	require.Len(t, port.unicastSent, 1)
	assert.Equal(t, []byte{9, 9}, port.unicastMac[0])
}

func TestSendGlobalBroadcast(t *testing.T) {
	port := newFakePort()
	l := New(port)
	require.NoError(t, l.Send([]byte{0xCC}, bactypes.GlobalBroadcast(), false))
	require.Len(t, port.broadcasts, 1)
	n, err := npdu.Decode(port.broadcasts[0])
	require.NoError(t, err)
	require.NotNil(t, n.Destination)
	assert.Equal(t, bactypes.GlobalBroadcastNetwork, n.Destination.Net)
}

func TestSendRemoteUnknownRouteSendsWhoIsRouter(t *testing.T) {
	port := newFakePort()
	l := New(port)
	net := uint16(7)
	dest := bactypes.Address{Network: &net, Mac: []byte{1}}
	require.NoError(t, l.Send([]byte{0xDD}, dest, false))
	// one broadcast for the NPDU itself, one for Who-Is-Router-To-Network
	assert.Len(t, port.broadcasts, 2)
}

func TestSendRemoteCachedRouteUsesUnicast(t *testing.T) {
	port := newFakePort()
	l := New(port)
	l.learnRoute(7, []byte{5, 5, 5}, time.Now())

	net := uint16(7)
	dest := bactypes.Address{Network: &net, Mac: []byte{1}}
	require.NoError(t, l.Send([]byte{0xEE}, dest, false))
	require.Len(t, port.unicastSent, 1)
	assert.Equal(t, []byte{5, 5, 5}, port.unicastMac[0])
}

func TestHandleInboundDispatchesAPDU(t *testing.T) {
	port := newFakePort()
	l := New(port)
	var gotAPDU []byte
	var gotSource bactypes.Address
	l.OnReceive(func(a []byte, src bactypes.Address, expectingReply bool) {
		gotAPDU = a
		gotSource = src
	})

	n := npdu.NPDU{APDU: []byte{0x01, 0x02}}
	port.recv(n.Encode(), []byte{7, 7})
	assert.Equal(t, []byte{0x01, 0x02}, gotAPDU)
	assert.Equal(t, []byte{7, 7}, gotSource.Mac)
}

func TestHandleInboundLearnsRouteFromIAmRouter(t *testing.T) {
	port := newFakePort()
	l := New(port)

	n := npdu.NPDU{
		IsNetworkMessage: true,
		MessageType:      npdu.MsgIAmRouterToNetwork,
		MessageData:      []byte{0, 9},
	}
	port.recv(n.Encode(), []byte{1, 1})

	mac, ok := l.CacheRouter(9)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 1}, mac)
}

func TestCacheRouterMiss(t *testing.T) {
	port := newFakePort()
	l := New(port)
	_, ok := l.CacheRouter(123)
	assert.False(t, ok)
}
