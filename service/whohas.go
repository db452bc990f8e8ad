package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// WhoHasRequest is the Unconfirmed-Who-Has service request: locate the
// device holding a particular object, named either by identifier or by
// object name. Exactly one of ObjectID/ObjectName should be set.
type WhoHasRequest struct {
	LowLimit   *uint32
	HighLimit  *uint32
	ObjectID   *bactypes.ObjectID
	ObjectName *string
}

func (r WhoHasRequest) Encode() []byte {
	var out []byte
	if r.LowLimit != nil && r.HighLimit != nil {
		out = append(out, contextUnsigned(0, uint64(*r.LowLimit))...)
		out = append(out, contextUnsigned(1, uint64(*r.HighLimit))...)
	}
	if r.ObjectID != nil {
		out = append(out, contextObjectID(2, *r.ObjectID)...)
		return out
	}
	if r.ObjectName != nil {
		contents, _ := primitive.EncodeCharacterString(bactypes.CharacterString{Value: *r.ObjectName})
		out = append(out, tag.Encode(3, tag.Context, uint32(len(contents)))...)
		out = append(out, contents...)
	}
	return out
}

func DecodeWhoHasRequest(buf []byte) (WhoHasRequest, error) {
	var req WhoHasRequest
	s := newScanner(buf)
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
			low := uint32(v)
			req.LowLimit = &low
		case 1:
			v, err := primitive.DecodeUnsigned(contents)
			if err != nil {
				return req, err
			}
			high := uint32(v)
			req.HighLimit = &high
		case 2:
			id, err := primitive.DecodeObjectID(contents)
			if err != nil {
				return req, err
			}
			req.ObjectID = &id
		case 3:
			cs, err := primitive.DecodeCharacterString(contents)
			if err != nil {
				return req, err
			}
			name := cs.Value
			req.ObjectName = &name
		default:
			return req, fmt.Errorf("service: unexpected tag %d in Who-Has request", t.Number)
		}
	}
	if req.ObjectID == nil && req.ObjectName == nil {
		return req, fmt.Errorf("service: Who-Has names neither object id nor object name")
	}
	return req, nil
}

// IHaveRequest is the Unconfirmed-I-Have response a device broadcasts when
// a Who-Has matched one of its objects.
type IHaveRequest struct {
	DeviceID   bactypes.ObjectID
	ObjectID   bactypes.ObjectID
	ObjectName string
}

func (r IHaveRequest) Encode() []byte {
	out, _ := primitive.EncodeValue(r.DeviceID)
	objID, _ := primitive.EncodeValue(r.ObjectID)
	name, _ := primitive.EncodeValue(bactypes.CharacterString{Value: r.ObjectName})
	out = append(out, objID...)
	out = append(out, name...)
	return out
}

func DecodeIHaveRequest(buf []byte) (IHaveRequest, error) {
	var req IHaveRequest
	s := newScanner(buf)
	v, err := s.appValue()
	if err != nil {
		return req, err
	}
	deviceID, ok := v.(bactypes.ObjectID)
	if !ok {
		return req, fmt.Errorf("service: I-Have device id is not an object identifier")
	}
	req.DeviceID = deviceID

	v, err = s.appValue()
	if err != nil {
		return req, err
	}
	objectID, ok := v.(bactypes.ObjectID)
	if !ok {
		return req, fmt.Errorf("service: I-Have object id is not an object identifier")
	}
	req.ObjectID = objectID

	v, err = s.appValue()
	if err != nil {
		return req, err
	}
	name, ok := v.(bactypes.CharacterString)
	if !ok {
		return req, fmt.Errorf("service: I-Have object name is not a character string")
	}
	req.ObjectName = name.Value
	return req, nil
}
