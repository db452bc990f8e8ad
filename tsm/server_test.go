package tsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/apdu"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/network"
)

func TestServerDispatchesSimpleAck(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	var gotChoice byte
	var gotData []byte
	handler := func(source bactypes.Address, serviceChoice byte, serviceData []byte) Response {
		gotChoice = serviceChoice
		gotData = serviceData
		return Response{Kind: RespSimpleAck, ServiceChoice: serviceChoice}
	}
	NewServer(net, handler, time.Minute)

	req := apdu.ConfirmedRequest{InvokeID: 3, ServiceChoice: 15, ServiceData: []byte{0x01}}
	deliver(port, req.Encode(), []byte{5, 5})

	assert.Equal(t, byte(15), gotChoice)
	assert.Equal(t, []byte{0x01}, gotData)
	require.Len(t, port.unicast, 1)
	ack, err := apdu.DecodeSimpleAck(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)
	assert.Equal(t, byte(3), ack.InvokeID)
}

func TestServerDuplicateRequestReplaysCache(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	calls := 0
	handler := func(source bactypes.Address, serviceChoice byte, serviceData []byte) Response {
		calls++
		return Response{Kind: RespSimpleAck, ServiceChoice: serviceChoice}
	}
	NewServer(net, handler, time.Minute)

	req := apdu.ConfirmedRequest{InvokeID: 7, ServiceChoice: 15}
	deliver(port, req.Encode(), []byte{5, 5})
	deliver(port, req.Encode(), []byte{5, 5})

	assert.Equal(t, 1, calls)
	assert.Len(t, port.unicast, 2)
}

func TestServerErrorResponse(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	handler := func(source bactypes.Address, serviceChoice byte, serviceData []byte) Response {
		return Response{Kind: RespError, ServiceChoice: serviceChoice}
	}
	NewServer(net, handler, time.Minute)

	req := apdu.ConfirmedRequest{InvokeID: 1, ServiceChoice: 15}
	deliver(port, req.Encode(), []byte{5, 5})

	require.Len(t, port.unicast, 1)
	typ, err := apdu.PDUType(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)
	assert.Equal(t, apdu.TypeError, typ)
}

func TestServerSegmentsLargeComplexAck(t *testing.T) {
	port := newFakePort()
	net := network.New(port)
	big := make([]byte, 300)
	handler := func(source bactypes.Address, serviceChoice byte, serviceData []byte) Response {
		return Response{Kind: RespComplexAck, ServiceChoice: serviceChoice, Data: big}
	}
	NewServer(net, handler, time.Minute)

	req := apdu.ConfirmedRequest{InvokeID: 2, ServiceChoice: 12, MaxAPDU: apdu.MaxAPDU50}
	deliver(port, req.Encode(), []byte{5, 5})

	assert.Greater(t, len(port.unicast), 1, "a 300-byte ComplexAck over MaxAPDU50 must be segmented")
	first, err := apdu.DecodeComplexAck(mustDecodeAPDU(port.unicast[0]))
	require.NoError(t, err)
	assert.True(t, first.Segmented)
}
