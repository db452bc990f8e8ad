package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
)

func TestWhoHasRequestRoundTripByObjectID(t *testing.T) {
	id := testObjectID()
	low, high := uint32(0), uint32(4194302)
	req := WhoHasRequest{LowLimit: &low, HighLimit: &high, ObjectID: &id}
	got, err := DecodeWhoHasRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ObjectID)
	assert.Equal(t, id, *got.ObjectID)
	require.NotNil(t, got.LowLimit)
	assert.Equal(t, low, *got.LowLimit)
	assert.Nil(t, got.ObjectName)
}

func TestWhoHasRequestRoundTripByName(t *testing.T) {
	name := "zone-temp-1"
	req := WhoHasRequest{ObjectName: &name}
	got, err := DecodeWhoHasRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ObjectName)
	assert.Equal(t, name, *got.ObjectName)
	assert.Nil(t, got.ObjectID)
}

func TestWhoHasRequestRejectsEmpty(t *testing.T) {
	_, err := DecodeWhoHasRequest(nil)
	assert.Error(t, err)
}

func TestIHaveRequestRoundTrip(t *testing.T) {
	req := IHaveRequest{
		DeviceID:   bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1234},
		ObjectID:   testObjectID(),
		ObjectName: "zone-temp-1",
	}
	got, err := DecodeIHaveRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestAtomicReadFileRoundTrip(t *testing.T) {
	req := AtomicReadFileRequest{
		FileID: bactypes.ObjectID{Type: bactypes.ObjectFile, Instance: 1},
		Start:  1024,
		Count:  480,
	}
	got, err := DecodeAtomicReadFileRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)

	ack := AtomicReadFileACK{EndOfFile: true, Start: 1024, Data: []byte("firmware chunk")}
	gotAck, err := DecodeAtomicReadFileACK(ack.Encode())
	require.NoError(t, err)
	assert.True(t, gotAck.EndOfFile)
	assert.Equal(t, ack.Start, gotAck.Start)
	assert.Equal(t, ack.Data, []byte(gotAck.Data))
}

func TestAtomicWriteFileRoundTrip(t *testing.T) {
	req := AtomicWriteFileRequest{
		FileID: bactypes.ObjectID{Type: bactypes.ObjectFile, Instance: 1},
		Start:  -1,
		Data:   []byte{0xde, 0xad, 0xbe, 0xef},
	}
	got, err := DecodeAtomicWriteFileRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.FileID, got.FileID)
	assert.Equal(t, int64(-1), got.Start)
	assert.Equal(t, req.Data, []byte(got.Data))

	ack := AtomicWriteFileACK{Start: 4096}
	gotAck, err := DecodeAtomicWriteFileACK(ack.Encode())
	require.NoError(t, err)
	assert.Equal(t, ack, gotAck)
}

func TestCreateObjectRequestRoundTripByType(t *testing.T) {
	objType := bactypes.ObjectAnalogValue
	req := CreateObjectRequest{
		ObjectType: &objType,
		InitialValues: []PropertyValue{
			{Property: object.PropObjectName, Value: bactypes.CharacterString{Value: "new-av"}},
		},
	}
	got, err := DecodeCreateObjectRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ObjectType)
	assert.Equal(t, objType, *got.ObjectType)
	assert.Nil(t, got.ObjectID)
	require.Len(t, got.InitialValues, 1)
	assert.Equal(t, bactypes.CharacterString{Value: "new-av"}, got.InitialValues[0].Value)
}

func TestCreateObjectRequestRoundTripByID(t *testing.T) {
	id := bactypes.ObjectID{Type: bactypes.ObjectBinaryValue, Instance: 77}
	req := CreateObjectRequest{ObjectID: &id}
	got, err := DecodeCreateObjectRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.ObjectID)
	assert.Equal(t, id, *got.ObjectID)
	assert.Empty(t, got.InitialValues)
}

func TestDeleteObjectRequestRoundTrip(t *testing.T) {
	req := DeleteObjectRequest{ObjectID: testObjectID()}
	got, err := DecodeDeleteObjectRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestListElementRequestRoundTrip(t *testing.T) {
	req := ListElementRequest{
		ObjectID: testObjectID(),
		Property: object.PropDateList,
		Elements: []bactypes.Value{
			bactypes.Date{Year: 126, Month: 12, Day: 25, DayOfWeek: bactypes.WildcardByte},
			bactypes.Date{Year: 127, Month: 1, Day: 1, DayOfWeek: bactypes.WildcardByte},
		},
	}
	got, err := DecodeListElementRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.ObjectID, got.ObjectID)
	assert.Equal(t, req.Property, got.Property)
	assert.Equal(t, req.Elements, got.Elements)
}

func TestDeviceCommunicationControlRoundTrip(t *testing.T) {
	minutes := uint16(30)
	password := "let-me-in"
	req := DeviceCommunicationControlRequest{
		TimeDurationMinutes: &minutes,
		Enable:              CommDisable,
		Password:            &password,
	}
	got, err := DecodeDeviceCommunicationControlRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.TimeDurationMinutes)
	assert.Equal(t, minutes, *got.TimeDurationMinutes)
	assert.Equal(t, CommDisable, got.Enable)
	require.NotNil(t, got.Password)
	assert.Equal(t, password, *got.Password)
}

func TestDeviceCommunicationControlRequiresEnable(t *testing.T) {
	_, err := DecodeDeviceCommunicationControlRequest(nil)
	assert.Error(t, err)
}

func TestReinitializeDeviceRoundTrip(t *testing.T) {
	password := "restart-pw"
	req := ReinitializeDeviceRequest{State: ReinitWarmstart, Password: &password}
	got, err := DecodeReinitializeDeviceRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, ReinitWarmstart, got.State)
	require.NotNil(t, got.Password)
	assert.Equal(t, password, *got.Password)
}

func TestTimeSynchronizationRoundTripPreservesWildcards(t *testing.T) {
	req := TimeSynchronizationRequest{
		Date: bactypes.Date{Year: 126, Month: 8, Day: 1, DayOfWeek: bactypes.WildcardByte},
		Time: bactypes.Time{Hour: 14, Minute: 30, Second: 0, Hundredth: bactypes.WildcardByte},
	}
	got, err := DecodeTimeSynchronizationRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req, got)
}
