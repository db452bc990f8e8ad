package npdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeAPDUOnly(t *testing.T) {
	n := NPDU{Priority: PriorityUrgent, APDU: []byte{0x10, 0x20}}
	buf := n.Encode()
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, n.Priority, got.Priority)
	assert.Equal(t, n.APDU, got.APDU)
	assert.False(t, got.IsNetworkMessage)
	assert.Equal(t, byte(255), got.HopCount)
}

func TestEncodeDecodeWithDestinationAndSource(t *testing.T) {
	n := NPDU{
		ExpectingReply: true,
		Destination:    &NetworkAddress{Net: 5, Mac: []byte{1, 2, 3}},
		Source:         &NetworkAddress{Net: 10, Mac: []byte{9, 8}},
		HopCount:       200,
		APDU:           []byte{0xAA},
	}
	buf := n.Encode()
	got, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, got.Destination)
	require.NotNil(t, got.Source)
	assert.Equal(t, n.Destination.Net, got.Destination.Net)
	assert.Equal(t, n.Destination.Mac, got.Destination.Mac)
	assert.Equal(t, n.Source.Net, got.Source.Net)
	assert.Equal(t, n.Source.Mac, got.Source.Mac)
	assert.Equal(t, n.HopCount, got.HopCount)
	assert.True(t, got.ExpectingReply)
	assert.Equal(t, n.APDU, got.APDU)
}

func TestEncodeDecodeNetworkMessageWithVendorID(t *testing.T) {
	n := NPDU{
		IsNetworkMessage: true,
		MessageType:      0x80,
		VendorID:         99,
		MessageData:      []byte{1, 2, 3, 4},
	}
	buf := n.Encode()
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, got.IsNetworkMessage)
	assert.Equal(t, n.MessageType, got.MessageType)
	assert.Equal(t, n.VendorID, got.VendorID)
	assert.Equal(t, n.MessageData, got.MessageData)
}

func TestEncodeDecodeNetworkMessageStandard(t *testing.T) {
	n := NPDU{IsNetworkMessage: true, MessageType: MsgWhoIsRouterToNetwork}
	buf := n.Encode()
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, MsgWhoIsRouterToNetwork, got.MessageType)
	assert.Equal(t, uint16(0), got.VendorID)
}

func TestDecodeRejectsBadVersion(t *testing.T) {
	_, err := Decode([]byte{0, 0})
	assert.Error(t, err)
}

func TestDecodeRejectsShortBuffer(t *testing.T) {
	_, err := Decode([]byte{ProtocolVersion})
	assert.Error(t, err)
}

func TestDecodeRejectsInvalidSourceNetwork(t *testing.T) {
	n := NPDU{Source: &NetworkAddress{Net: 0, Mac: nil}, APDU: []byte{1}}
	buf := n.Encode()
	_, err := Decode(buf)
	assert.Error(t, err)

	n = NPDU{Source: &NetworkAddress{Net: 0xFFFF, Mac: nil}, APDU: []byte{1}}
	buf = n.Encode()
	_, err = Decode(buf)
	assert.Error(t, err)
}

func TestNoRouting(t *testing.T) {
	n := NPDU{}
	assert.False(t, n.NoRouting())

	n.Source = &NetworkAddress{Net: 10}
	assert.True(t, n.NoRouting())
}
