package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// CreateObjectRequest asks the device to instantiate a new object, named
// either by bare type (the device picks an instance number) or by full
// identifier. Exactly one of ObjectType/ObjectID is set.
type CreateObjectRequest struct {
	ObjectType    *bactypes.ObjectType
	ObjectID      *bactypes.ObjectID
	InitialValues []PropertyValue
}

func (r CreateObjectRequest) Encode() []byte {
	out := tag.EncodeOpening(0)
	if r.ObjectID != nil {
		out = append(out, contextObjectID(1, *r.ObjectID)...)
	} else if r.ObjectType != nil {
		out = append(out, contextUnsigned(0, uint64(*r.ObjectType))...)
	}
	out = append(out, tag.EncodeClosing(0)...)
	if len(r.InitialValues) > 0 {
		out = append(out, tag.EncodeOpening(1)...)
		for _, pv := range r.InitialValues {
			out = append(out, pv.encode()...)
		}
		out = append(out, tag.EncodeClosing(1)...)
	}
	return out
}

func DecodeCreateObjectRequest(buf []byte) (CreateObjectRequest, error) {
	var req CreateObjectRequest
	s := newScanner(buf)
	if err := s.open(0); err != nil {
		return req, err
	}
	t, contents, err := s.contents()
	if err != nil {
		return req, err
	}
	switch t.Number {
	case 0:
		v, err := primitive.DecodeUnsigned(contents)
		if err != nil {
			return req, err
		}
		objType := bactypes.ObjectType(v)
		req.ObjectType = &objType
	case 1:
		id, err := primitive.DecodeObjectID(contents)
		if err != nil {
			return req, err
		}
		req.ObjectID = &id
	default:
		return req, fmt.Errorf("service: unexpected object-specifier tag %d", t.Number)
	}
	if !s.atClosing(0) {
		return req, fmt.Errorf("service: unterminated object specifier")
	}
	if s.more() {
		if err := s.open(1); err != nil {
			return req, err
		}
		for !s.atClosing(1) {
			pv, err := decodePropertyValue(s)
			if err != nil {
				return req, err
			}
			req.InitialValues = append(req.InitialValues, pv)
		}
	}
	return req, nil
}

// CreateObjectACK returns the identifier of the created object.
type CreateObjectACK struct {
	ObjectID bactypes.ObjectID
}

func (a CreateObjectACK) Encode() []byte {
	out, _ := primitive.EncodeValue(a.ObjectID)
	return out
}

func DecodeCreateObjectACK(buf []byte) (CreateObjectACK, error) {
	var ack CreateObjectACK
	v, _, err := primitive.DecodeApplicationValue(buf, 0)
	if err != nil {
		return ack, err
	}
	id, ok := v.(bactypes.ObjectID)
	if !ok {
		return ack, fmt.Errorf("service: CreateObject ack is not an object identifier")
	}
	ack.ObjectID = id
	return ack, nil
}

// DeleteObjectRequest deletes the named object.
type DeleteObjectRequest struct {
	ObjectID bactypes.ObjectID
}

func (r DeleteObjectRequest) Encode() []byte {
	out, _ := primitive.EncodeValue(r.ObjectID)
	return out
}

func DecodeDeleteObjectRequest(buf []byte) (DeleteObjectRequest, error) {
	var req DeleteObjectRequest
	v, _, err := primitive.DecodeApplicationValue(buf, 0)
	if err != nil {
		return req, err
	}
	id, ok := v.(bactypes.ObjectID)
	if !ok {
		return req, fmt.Errorf("service: DeleteObject request is not an object identifier")
	}
	req.ObjectID = id
	return req, nil
}

// ListElementRequest is the shared body of Confirmed-Add-List-Element and
// Confirmed-Remove-List-Element: the target property plus the elements to
// add or remove.
type ListElementRequest struct {
	ObjectID   bactypes.ObjectID
	Property   object.PropertyID
	ArrayIndex *uint32
	Elements   []bactypes.Value
}

func (r ListElementRequest) Encode() []byte {
	out := contextObjectID(0, r.ObjectID)
	out = append(out, contextUnsigned(1, uint64(r.Property))...)
	if r.ArrayIndex != nil {
		out = append(out, contextUnsigned(2, uint64(*r.ArrayIndex))...)
	}
	out = append(out, tag.EncodeOpening(3)...)
	for _, e := range r.Elements {
		enc, _ := primitive.EncodeValue(e)
		out = append(out, enc...)
	}
	out = append(out, tag.EncodeClosing(3)...)
	return out
}

func DecodeListElementRequest(buf []byte) (ListElementRequest, error) {
	var req ListElementRequest
	s := newScanner(buf)
	id, err := s.objectID(0)
	if err != nil {
		return req, err
	}
	req.ObjectID = id
	prop, err := s.propertyID(1)
	if err != nil {
		return req, err
	}
	req.Property = prop
	if t, perr := s.peek(); perr == nil && t.Number == 2 && !t.Opening {
		v, err := s.unsigned(2)
		if err != nil {
			return req, err
		}
		idx := uint32(v)
		req.ArrayIndex = &idx
	}
	if err := s.open(3); err != nil {
		return req, err
	}
	inner, err := s.enclosed(3)
	if err != nil {
		return req, err
	}
	offset := 0
	for offset < len(inner) {
		v, next, err := primitive.DecodeApplicationValue(inner, offset)
		if err != nil {
			return req, err
		}
		req.Elements = append(req.Elements, v)
		offset = next
	}
	return req, nil
}

// CommState is the enable/disable argument of
// Device-Communication-Control.
type CommState uint32

const (
	CommEnable             CommState = 0
	CommDisable            CommState = 1
	CommDisableInitiation  CommState = 2
)

// DeviceCommunicationControlRequest tells the device to stop (or resume)
// talking on the network, optionally for a bounded number of minutes and
// optionally gated by a password.
type DeviceCommunicationControlRequest struct {
	TimeDurationMinutes *uint16
	Enable              CommState
	Password            *string
}

func (r DeviceCommunicationControlRequest) Encode() []byte {
	var out []byte
	if r.TimeDurationMinutes != nil {
		out = append(out, contextUnsigned(0, uint64(*r.TimeDurationMinutes))...)
	}
	out = append(out, contextUnsigned(1, uint64(r.Enable))...)
	if r.Password != nil {
		contents, _ := primitive.EncodeCharacterString(bactypes.CharacterString{Value: *r.Password})
		out = append(out, tag.Encode(2, tag.Context, uint32(len(contents)))...)
		out = append(out, contents...)
	}
	return out
}

func DecodeDeviceCommunicationControlRequest(buf []byte) (DeviceCommunicationControlRequest, error) {
	var req DeviceCommunicationControlRequest
	s := newScanner(buf)
	seenEnable := false
	for s.more() {
		t, contents, err := s.contents()
		if err != nil {
			return req, err
		}
		switch t.Number {
		case 0:
			v, err := primitive.DecodeUnsigned(contents)
			if err != nil {
				return req, err
			}
			minutes := uint16(v)
			req.TimeDurationMinutes = &minutes
		case 1:
			v, err := primitive.DecodeUnsigned(contents)
			if err != nil {
				return req, err
			}
			req.Enable = CommState(v)
			seenEnable = true
		case 2:
			cs, err := primitive.DecodeCharacterString(contents)
			if err != nil {
				return req, err
			}
			password := cs.Value
			req.Password = &password
		default:
			return req, fmt.Errorf("service: unexpected tag %d in DeviceCommunicationControl", t.Number)
		}
	}
	if !seenEnable {
		return req, fmt.Errorf("service: DeviceCommunicationControl missing enable-disable")
	}
	return req, nil
}

// ReinitState is the Reinitialize-Device state argument.
type ReinitState uint32

const (
	ReinitColdstart    ReinitState = 0
	ReinitWarmstart    ReinitState = 1
	ReinitStartBackup  ReinitState = 2
	ReinitEndBackup    ReinitState = 3
	ReinitStartRestore ReinitState = 4
	ReinitEndRestore   ReinitState = 5
	ReinitAbortRestore ReinitState = 6
)

// ReinitializeDeviceRequest asks the device to restart or enter a
// backup/restore phase, optionally gated by a password.
type ReinitializeDeviceRequest struct {
	State    ReinitState
	Password *string
}

func (r ReinitializeDeviceRequest) Encode() []byte {
	out := contextUnsigned(0, uint64(r.State))
	if r.Password != nil {
		contents, _ := primitive.EncodeCharacterString(bactypes.CharacterString{Value: *r.Password})
		out = append(out, tag.Encode(1, tag.Context, uint32(len(contents)))...)
		out = append(out, contents...)
	}
	return out
}

func DecodeReinitializeDeviceRequest(buf []byte) (ReinitializeDeviceRequest, error) {
	var req ReinitializeDeviceRequest
	s := newScanner(buf)
	v, err := s.unsigned(0)
	if err != nil {
		return req, err
	}
	req.State = ReinitState(v)
	if s.more() {
		t, contents, err := s.contents()
		if err != nil {
			return req, err
		}
		if t.Number != 1 {
			return req, fmt.Errorf("service: unexpected tag %d in ReinitializeDevice", t.Number)
		}
		cs, err := primitive.DecodeCharacterString(contents)
		if err != nil {
			return req, err
		}
		password := cs.Value
		req.Password = &password
	}
	return req, nil
}

// TimeSynchronizationRequest is the body shared by the local-time and UTC
// Time-Synchronization broadcasts: an application-tagged date/time pair.
type TimeSynchronizationRequest struct {
	Date bactypes.Date
	Time bactypes.Time
}

func (r TimeSynchronizationRequest) Encode() []byte {
	out, _ := primitive.EncodeValue(r.Date)
	clock, _ := primitive.EncodeValue(r.Time)
	return append(out, clock...)
}

func DecodeTimeSynchronizationRequest(buf []byte) (TimeSynchronizationRequest, error) {
	var req TimeSynchronizationRequest
	s := newScanner(buf)
	v, err := s.appValue()
	if err != nil {
		return req, err
	}
	date, ok := v.(bactypes.Date)
	if !ok {
		return req, fmt.Errorf("service: time-synchronization date is not a date")
	}
	req.Date = date

	v, err = s.appValue()
	if err != nil {
		return req, err
	}
	clock, ok := v.(bactypes.Time)
	if !ok {
		return req, fmt.Errorf("service: time-synchronization time is not a time")
	}
	req.Time = clock
	return req, nil
}
