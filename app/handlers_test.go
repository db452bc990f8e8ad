package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/service"
	"github.com/bacgo/bacnet/transport"
	"github.com/bacgo/bacnet/tsm"
)

// nullPort is a transport.Port that swallows every send.
type nullPort struct {
	recv transport.ReceiveFunc
}

func (p *nullPort) Start(context.Context) error              { return nil }
func (p *nullPort) Stop(context.Context) error               { return nil }
func (p *nullPort) SendUnicast(npdu []byte, mac []byte) error { return nil }
func (p *nullPort) SendBroadcast(npdu []byte) error           { return nil }
func (p *nullPort) OnReceive(fn transport.ReceiveFunc)        { p.recv = fn }
func (p *nullPort) LocalMac() []byte                          { return []byte{1, 2, 3, 4, 5, 6} }
func (p *nullPort) MaxNPDULength() int                        { return 1476 }

func newTestApp(t *testing.T) *Application {
	t.Helper()
	cfg := DeviceConfig{
		DeviceID:    bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1234},
		Name:        "test-device",
		VendorName:  "bacgo",
		VendorID:    999,
		APDUTimeout: time.Second,
		APDURetries: 1,
		Password:    "secret",
	}
	return New(cfg, &nullPort{})
}

func testSource() bactypes.Address {
	return bactypes.Address{Mac: []byte{10, 0, 0, 1, 0xBA, 0xC0}}
}

func TestHandleReadPropertyMultipleMixedResults(t *testing.T) {
	a := newTestApp(t)
	ai := object.NewAnalogInput(bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 1}, "ai-1", object.UnitsDegreesCelsius)
	ai.SetRaw(object.PropPresentValue, bactypes.Real(72.5))
	require.NoError(t, a.Database().Add(ai))

	req := service.ReadPropertyMultipleRequest{
		Specs: []service.ReadAccessSpec{
			{
				ObjectID: ai.ID(),
				Properties: []service.PropertyReference{
					{Property: object.PropPresentValue},
					{Property: object.PropHighLimit}, // not in an AI's table
				},
			},
		},
	}
	resp := a.handle(testSource(), service.ServiceReadPropertyMultiple, req.Encode())
	require.Equal(t, tsm.RespComplexAck, resp.Kind)

	ack, err := service.DecodeReadPropertyMultipleACK(resp.Data)
	require.NoError(t, err)
	require.Len(t, ack.Results, 1)
	require.Len(t, ack.Results[0].Results, 2)
	assert.Equal(t, bactypes.Real(72.5), ack.Results[0].Results[0].Value)
	require.NotNil(t, ack.Results[0].Results[1].Err)
	assert.Equal(t, bacerr.CodeUnknownProperty, ack.Results[0].Results[1].Err.Code)
}

func TestHandleWritePropertyMultiple(t *testing.T) {
	a := newTestApp(t)
	ao := object.NewAnalogOutput(bactypes.ObjectID{Type: bactypes.ObjectAnalogOutput, Instance: 1}, "ao-1", object.UnitsPercent, 0)
	require.NoError(t, a.Database().Add(ao))

	prio := 8
	req := service.WritePropertyMultipleRequest{
		Specs: []service.WriteAccessSpec{
			{
				ObjectID: ao.ID(),
				Values: []service.PropertyValue{
					{Property: object.PropPresentValue, Value: bactypes.Real(55), Priority: &prio},
				},
			},
		},
	}
	resp := a.handle(testSource(), service.ServiceWritePropertyMultiple, req.Encode())
	assert.Equal(t, tsm.RespSimpleAck, resp.Kind)

	v, err := a.Database().Read(ao.ID(), object.PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Real(55), v)
}

func TestHandleAtomicFileServices(t *testing.T) {
	a := newTestApp(t)
	fileID := bactypes.ObjectID{Type: bactypes.ObjectFile, Instance: 1}
	f := object.NewFile(fileID, "config", "configuration")
	require.NoError(t, a.Database().Add(f))

	writeReq := service.AtomicWriteFileRequest{FileID: fileID, Start: 0, Data: []byte("hello file")}
	resp := a.handle(testSource(), service.ServiceAtomicWriteFile, writeReq.Encode())
	require.Equal(t, tsm.RespComplexAck, resp.Kind)
	writeAck, err := service.DecodeAtomicWriteFileACK(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, int64(0), writeAck.Start)

	readReq := service.AtomicReadFileRequest{FileID: fileID, Start: 6, Count: 100}
	resp = a.handle(testSource(), service.ServiceAtomicReadFile, readReq.Encode())
	require.Equal(t, tsm.RespComplexAck, resp.Kind)
	readAck, err := service.DecodeAtomicReadFileACK(resp.Data)
	require.NoError(t, err)
	assert.True(t, readAck.EndOfFile)
	assert.Equal(t, []byte("file"), readAck.Data)
}

func TestHandleCreateAndDeleteObject(t *testing.T) {
	a := newTestApp(t)
	objType := bactypes.ObjectAnalogValue
	createReq := service.CreateObjectRequest{
		ObjectType: &objType,
		InitialValues: []service.PropertyValue{
			{Property: object.PropObjectName, Value: bactypes.CharacterString{Value: "created-av"}},
		},
	}
	resp := a.handle(testSource(), service.ServiceCreateObject, createReq.Encode())
	require.Equal(t, tsm.RespComplexAck, resp.Kind)
	ack, err := service.DecodeCreateObjectACK(resp.Data)
	require.NoError(t, err)
	assert.Equal(t, bactypes.ObjectAnalogValue, ack.ObjectID.Type)

	obj, err := a.Database().Get(ack.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, "created-av", obj.Name())

	deleteReq := service.DeleteObjectRequest{ObjectID: ack.ObjectID}
	resp = a.handle(testSource(), service.ServiceDeleteObject, deleteReq.Encode())
	assert.Equal(t, tsm.RespSimpleAck, resp.Kind)

	_, err = a.Database().Get(ack.ObjectID)
	assert.True(t, bacerr.IsProtocol(err, bacerr.ClassObject, bacerr.CodeUnknownObject))
}

func TestHandleCreateObjectUnsupportedType(t *testing.T) {
	a := newTestApp(t)
	objType := bactypes.ObjectLoop
	req := service.CreateObjectRequest{ObjectType: &objType}
	resp := a.handle(testSource(), service.ServiceCreateObject, req.Encode())
	require.Equal(t, tsm.RespError, resp.Kind)
	assert.Equal(t, bacerr.CodeDynamicCreationNotSupported, resp.Code)
}

func TestHandleDeviceCommunicationControl(t *testing.T) {
	a := newTestApp(t)
	ai := object.NewAnalogInput(bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 1}, "ai-1", object.UnitsNoUnits)
	require.NoError(t, a.Database().Add(ai))
	readReq := service.ReadPropertyRequest{ObjectID: ai.ID(), Property: object.PropPresentValue}

	// Wrong password is refused.
	wrong := "nope"
	dcc := service.DeviceCommunicationControlRequest{Enable: service.CommDisable, Password: &wrong}
	resp := a.handle(testSource(), service.ServiceDeviceCommunicationControl, dcc.Encode())
	require.Equal(t, tsm.RespError, resp.Kind)
	assert.Equal(t, bacerr.CodePasswordFailure, resp.Code)

	// Correct password disables responses: reads are silently dropped.
	right := "secret"
	dcc.Password = &right
	resp = a.handle(testSource(), service.ServiceDeviceCommunicationControl, dcc.Encode())
	require.Equal(t, tsm.RespSimpleAck, resp.Kind)

	resp = a.handle(testSource(), service.ServiceReadProperty, readReq.Encode())
	assert.Equal(t, tsm.RespNone, resp.Kind)

	// DCC itself still answers while disabled; re-enable restores reads.
	enable := service.DeviceCommunicationControlRequest{Enable: service.CommEnable, Password: &right}
	resp = a.handle(testSource(), service.ServiceDeviceCommunicationControl, enable.Encode())
	require.Equal(t, tsm.RespSimpleAck, resp.Kind)

	resp = a.handle(testSource(), service.ServiceReadProperty, readReq.Encode())
	assert.Equal(t, tsm.RespComplexAck, resp.Kind)
}

func TestHandleReinitializeDevice(t *testing.T) {
	a := newTestApp(t)
	var gotState service.ReinitState
	a.cfg.OnReinitialize = func(state service.ReinitState) { gotState = state }

	right := "secret"
	req := service.ReinitializeDeviceRequest{State: service.ReinitWarmstart, Password: &right}
	resp := a.handle(testSource(), service.ServiceReinitializeDevice, req.Encode())
	require.Equal(t, tsm.RespSimpleAck, resp.Kind)
	assert.Equal(t, service.ReinitWarmstart, gotState)
}

func TestHandleListElements(t *testing.T) {
	a := newTestApp(t)
	msv := object.NewMultiStateValue(bactypes.ObjectID{Type: bactypes.ObjectMultiStateValue, Instance: 1}, "msv-1", 3, []string{"off", "low", "high"})
	require.NoError(t, a.Database().Add(msv))

	add := service.ListElementRequest{
		ObjectID: msv.ID(),
		Property: object.PropStateText,
		Elements: []bactypes.Value{bactypes.CharacterString{Value: "max"}},
	}
	resp := a.handle(testSource(), service.ServiceAddListElement, add.Encode())
	require.Equal(t, tsm.RespSimpleAck, resp.Kind)

	count, err := a.Database().Read(msv.ID(), object.PropStateText, uint32Ptr(0))
	require.NoError(t, err)
	assert.Equal(t, bactypes.Unsigned(4), count)

	resp = a.handle(testSource(), service.ServiceRemoveListElement, add.Encode())
	require.Equal(t, tsm.RespSimpleAck, resp.Kind)
	count, err = a.Database().Read(msv.ID(), object.PropStateText, uint32Ptr(0))
	require.NoError(t, err)
	assert.Equal(t, bactypes.Unsigned(3), count)

	// Removing an element that is not there reports inconsistent
	// parameters.
	missing := service.ListElementRequest{
		ObjectID: msv.ID(),
		Property: object.PropStateText,
		Elements: []bactypes.Value{bactypes.CharacterString{Value: "absent"}},
	}
	resp = a.handle(testSource(), service.ServiceRemoveListElement, missing.Encode())
	require.Equal(t, tsm.RespError, resp.Kind)
	assert.Equal(t, bacerr.CodeInconsistentParameters, resp.Code)
}

func TestHandleUnknownServiceRejects(t *testing.T) {
	a := newTestApp(t)
	resp := a.handle(testSource(), 250, nil)
	require.Equal(t, tsm.RespReject, resp.Kind)
	assert.Equal(t, bacerr.RejectUnrecognizedService, resp.RejectReason)
}

func uint32Ptr(v uint32) *uint32 { return &v }
