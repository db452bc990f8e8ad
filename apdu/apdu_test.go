package apdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bacerr"
)

func TestConfirmedRequestRoundTripUnsegmented(t *testing.T) {
	r := ConfirmedRequest{
		SegmentedResponseAccepted: true,
		MaxSegments:               MaxSegments0,
		MaxAPDU:                   MaxAPDU1476,
		InvokeID:                  7,
		ServiceChoice:             12,
		ServiceData:               []byte{0xAA, 0xBB},
	}
	buf := r.Encode()
	got, err := DecodeConfirmedRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestConfirmedRequestRoundTripSegmented(t *testing.T) {
	r := ConfirmedRequest{
		Segmented:          true,
		MoreFollows:        true,
		MaxSegments:        MaxSegments4,
		MaxAPDU:            MaxAPDU206,
		InvokeID:           99,
		SequenceNumber:     3,
		ProposedWindowSize: 5,
		ServiceChoice:      15,
		ServiceData:        []byte{0x01},
	}
	buf := r.Encode()
	got, err := DecodeConfirmedRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestDecodeConfirmedRequestTooShort(t *testing.T) {
	_, err := DecodeConfirmedRequest([]byte{0, 0})
	assert.Error(t, err)
}

func TestUnconfirmedRequestRoundTrip(t *testing.T) {
	r := UnconfirmedRequest{ServiceChoice: 8, ServiceData: []byte{1, 2, 3}}
	buf := r.Encode()
	got, err := DecodeUnconfirmedRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestSimpleAckRoundTrip(t *testing.T) {
	a := SimpleAck{InvokeID: 4, ServiceChoice: 15}
	buf := a.Encode()
	got, err := DecodeSimpleAck(buf)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestComplexAckRoundTripSegmented(t *testing.T) {
	a := ComplexAck{
		Segmented:          true,
		MoreFollows:        false,
		InvokeID:           1,
		SequenceNumber:     2,
		ProposedWindowSize: 4,
		ServiceChoice:      12,
		ServiceData:        []byte{0xDE, 0xAD},
	}
	buf := a.Encode()
	got, err := DecodeComplexAck(buf)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestSegmentAckRoundTrip(t *testing.T) {
	a := SegmentAck{NegativeAck: true, SentByServer: true, InvokeID: 9, SequenceNumber: 2, ActualWindowSize: 3}
	buf := a.Encode()
	got, err := DecodeSegmentAck(buf)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestErrorRoundTrip(t *testing.T) {
	e := Error{InvokeID: 3, ServiceChoice: 12, Class: bacerr.ClassDevice, Code: bacerr.CodeUnknownObject}
	buf := e.Encode()
	got, err := DecodeError(buf)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}

func TestRejectRoundTrip(t *testing.T) {
	r := Reject{InvokeID: 6, Reason: bacerr.RejectUnrecognizedService}
	buf := r.Encode()
	got, err := DecodeReject(buf)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestAbortRoundTrip(t *testing.T) {
	a := Abort{SentByServer: true, InvokeID: 2, Reason: bacerr.AbortTSMTimeout}
	buf := a.Encode()
	got, err := DecodeAbort(buf)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestPDUType(t *testing.T) {
	typ, err := PDUType([]byte{TypeComplexAck << 4})
	require.NoError(t, err)
	assert.Equal(t, TypeComplexAck, typ)

	_, err = PDUType(nil)
	assert.Error(t, err)
}

func TestMaxAPDULength(t *testing.T) {
	assert.Equal(t, 50, MaxAPDU50.Length())
	assert.Equal(t, 1476, MaxAPDU1476.Length())
	assert.Equal(t, 1476, MaxAPDU(99).Length())
}

func TestMaxAPDUForLength(t *testing.T) {
	assert.Equal(t, MaxAPDU50, MaxAPDUForLength(10))
	assert.Equal(t, MaxAPDU128, MaxAPDUForLength(127))
	assert.Equal(t, MaxAPDU1476, MaxAPDUForLength(2000))
}

func TestMaxSegmentsValue(t *testing.T) {
	assert.Equal(t, 1, MaxSegments0.Value())
	assert.Equal(t, 64, MaxSegments64.Value())
	assert.Equal(t, 65, MaxSegmentsUnspecified.Value())
}
