package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
)

func testObjectID() bactypes.ObjectID {
	return bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 3}
}

func TestReadPropertyRequestRoundTrip(t *testing.T) {
	req := ReadPropertyRequest{ObjectID: testObjectID(), Property: object.PropPresentValue}
	got, err := DecodeReadPropertyRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestReadPropertyRequestRoundTripWithArrayIndex(t *testing.T) {
	idx := uint32(4)
	req := ReadPropertyRequest{ObjectID: testObjectID(), Property: object.PropStateText, ArrayIndex: &idx}
	got, err := DecodeReadPropertyRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ArrayIndex)
	assert.Equal(t, idx, *got.ArrayIndex)
	assert.Equal(t, req.ObjectID, got.ObjectID)
	assert.Equal(t, req.Property, got.Property)
}

func TestReadPropertyACKRoundTrip(t *testing.T) {
	ack := ReadPropertyACK{ObjectID: testObjectID(), Property: object.PropPresentValue, Value: bactypes.Real(21.5)}
	got, err := DecodeReadPropertyACK(ack.Encode())
	require.NoError(t, err)
	assert.Equal(t, ack.ObjectID, got.ObjectID)
	assert.Equal(t, ack.Property, got.Property)
	assert.Equal(t, ack.Value, got.Value)
}

func TestReadPropertyACKRoundTripWithArrayIndex(t *testing.T) {
	idx := uint32(1)
	ack := ReadPropertyACK{ObjectID: testObjectID(), Property: object.PropObjectList, ArrayIndex: &idx, Value: bactypes.Unsigned(7)}
	got, err := DecodeReadPropertyACK(ack.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ArrayIndex)
	assert.Equal(t, idx, *got.ArrayIndex)
	assert.Equal(t, ack.Value, got.Value)
}

func TestWritePropertyRequestRoundTrip(t *testing.T) {
	req := WritePropertyRequest{ObjectID: testObjectID(), Property: object.PropPresentValue, Value: bactypes.Real(10)}
	got, err := DecodeWritePropertyRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.ObjectID, got.ObjectID)
	assert.Equal(t, req.Property, got.Property)
	assert.Equal(t, req.Value, got.Value)
	assert.Nil(t, got.Priority)
	assert.Nil(t, got.ArrayIndex)
}

func TestWritePropertyRequestRoundTripWithPriorityAndArrayIndex(t *testing.T) {
	idx := uint32(2)
	prio := 8
	req := WritePropertyRequest{ObjectID: testObjectID(), Property: object.PropPresentValue, ArrayIndex: &idx, Value: bactypes.Unsigned(5), Priority: &prio}
	got, err := DecodeWritePropertyRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ArrayIndex)
	require.NotNil(t, got.Priority)
	assert.Equal(t, idx, *got.ArrayIndex)
	assert.Equal(t, prio, *got.Priority)
	assert.Equal(t, req.Value, got.Value)
}

func TestWhoIsRequestRoundTripWithLimits(t *testing.T) {
	low, high := uint32(10), uint32(99)
	req := WhoIsRequest{LowLimit: &low, HighLimit: &high}
	got, err := DecodeWhoIsRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.LowLimit)
	require.NotNil(t, got.HighLimit)
	assert.Equal(t, low, *got.LowLimit)
	assert.Equal(t, high, *got.HighLimit)
}

func TestWhoIsRequestUnrestrictedEncodesEmpty(t *testing.T) {
	req := WhoIsRequest{}
	assert.Nil(t, req.Encode())
	got, err := DecodeWhoIsRequest(nil)
	require.NoError(t, err)
	assert.Nil(t, got.LowLimit)
	assert.Nil(t, got.HighLimit)
}

func TestIAmRequestRoundTrip(t *testing.T) {
	req := IAmRequest{
		DeviceID:              bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1234},
		MaxAPDULength:         1476,
		SegmentationSupported: 0,
		VendorID:              260,
	}
	got, err := DecodeIAmRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestSubscribeCOVRequestRoundTrip(t *testing.T) {
	req := SubscribeCOVRequest{ProcessID: 7, MonitoredObjectID: testObjectID(), IssueConfirmedNotifications: true, Lifetime: 120}
	got, err := DecodeSubscribeCOVRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestSubscribeCOVRequestCancellationRoundTrip(t *testing.T) {
	req := SubscribeCOVRequest{ProcessID: 7, MonitoredObjectID: testObjectID(), Cancellation: true}
	got, err := DecodeSubscribeCOVRequest(req.Encode())
	require.NoError(t, err)
	assert.True(t, got.Cancellation)
	assert.Equal(t, req.ProcessID, got.ProcessID)
	assert.Equal(t, req.MonitoredObjectID, got.MonitoredObjectID)
}

func TestCOVNotificationRequestRoundTrip(t *testing.T) {
	req := COVNotificationRequest{
		ProcessID:          3,
		InitiatingDeviceID: bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1},
		MonitoredObjectID:  testObjectID(),
		TimeRemaining:      30,
		Values: map[object.PropertyID]bactypes.Value{
			object.PropPresentValue: bactypes.Real(12.5),
		},
	}
	got, err := DecodeCOVNotificationRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.ProcessID, got.ProcessID)
	assert.Equal(t, req.InitiatingDeviceID, got.InitiatingDeviceID)
	assert.Equal(t, req.MonitoredObjectID, got.MonitoredObjectID)
	assert.Equal(t, req.TimeRemaining, got.TimeRemaining)
	assert.Equal(t, req.Values, got.Values)
}
