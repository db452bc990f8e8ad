// Package service implements the confirmed/unconfirmed service request and
// response encodings: the wire format for each service's parameters, built
// from the tag/primitive codecs as a small tagged-parameter writer/reader
// rather than fixed byte literals assembled by hand.
package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// Confirmed service choice numbers (ASHRAE 135 clause 21).
const (
	ServiceReadProperty           byte = 12
	ServiceReadPropertyMultiple   byte = 14
	ServiceWriteProperty          byte = 15
	ServiceWritePropertyMultiple  byte = 16
	ServiceSubscribeCOV           byte = 5
	ServiceConfirmedCOVNotification byte = 1
	ServiceReadRange              byte = 26
	ServiceAtomicReadFile         byte = 6
	ServiceAtomicWriteFile        byte = 7
	ServiceCreateObject           byte = 10
	ServiceDeleteObject           byte = 11
	ServiceAddListElement         byte = 8
	ServiceRemoveListElement      byte = 9
	ServiceAcknowledgeAlarm       byte = 0
	ServiceGetAlarmSummary        byte = 3
	ServiceGetEventInformation    byte = 29
	ServiceGetEnrollmentSummary   byte = 4
	ServiceReinitializeDevice     byte = 20
	ServiceDeviceCommunicationControl byte = 17
	ServiceConfirmedTextMessage   byte = 18
	ServiceConfirmedAuditNotification byte = 32
	ServiceAuditLogQuery          byte = 33
)

// Unconfirmed service choice numbers.
const (
	ServiceUnconfirmedCOVNotification byte = 2
	ServiceWhoIs                      byte = 8
	ServiceIAm                        byte = 0
	ServiceWhoHas                     byte = 7
	ServiceIHave                      byte = 1
	ServiceTimeSynchronization        byte = 6
	ServiceUTCTimeSynchronization     byte = 9
	ServiceUnconfirmedTextMessage     byte = 5
	ServiceUnconfirmedAuditNotification byte = 10
)

// contextValue writes value application-tagged, then wraps it in a
// context-specific open/close pair numbered tagNumber. This is the
// "context-tagged wrapped application value" shape most ReadProperty-family
// parameters use.
func contextValue(tagNumber uint32, value bactypes.Value) []byte {
	inner, _ := primitive.EncodeValue(value)
	out := tag.EncodeOpening(tagNumber)
	out = append(out, inner...)
	out = append(out, tag.EncodeClosing(tagNumber)...)
	return out
}

// contextUnsigned writes an unsigned integer directly context-tagged (not
// wrapped in an application tag) — the shape used for small fixed fields
// like Property-Identifier and Array-Index.
func contextUnsigned(tagNumber uint32, v uint64) []byte {
	contents := primitive.EncodeUnsigned(v)
	return append(tag.Encode(tagNumber, tag.Context, uint32(len(contents))), contents...)
}

func contextObjectID(tagNumber uint32, id bactypes.ObjectID) []byte {
	contents := primitive.EncodeObjectID(id)
	return append(tag.Encode(tagNumber, tag.Context, uint32(len(contents))), contents...)
}

func contextBool(tagNumber uint32, v bool) []byte {
	val := uint64(0)
	if v {
		val = 1
	}
	contents := primitive.EncodeUnsigned(val)
	return append(tag.Encode(tagNumber, tag.Context, uint32(len(contents))), contents...)
}

// ReadPropertyRequest is the Confirmed-Read-Property service request body.
type ReadPropertyRequest struct {
	ObjectID    bactypes.ObjectID
	Property    object.PropertyID
	ArrayIndex  *uint32
}

func (r ReadPropertyRequest) Encode() []byte {
	out := contextObjectID(0, r.ObjectID)
	out = append(out, contextUnsigned(1, uint64(r.Property))...)
	if r.ArrayIndex != nil {
		out = append(out, contextUnsigned(2, uint64(*r.ArrayIndex))...)
	}
	return out
}

func DecodeReadPropertyRequest(buf []byte) (ReadPropertyRequest, error) {
	var req ReadPropertyRequest
	offset := 0
	for offset < len(buf) {
		t, next, err := tag.Decode(buf, offset)
		if err != nil {
			return req, err
		}
		switch t.Number {
		case 0:
			id, err := primitive.DecodeObjectID(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.ObjectID = id
			offset = next + int(t.Length)
		case 1:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.Property = object.PropertyID(v)
			offset = next + int(t.Length)
		case 2:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			idx := uint32(v)
			req.ArrayIndex = &idx
			offset = next + int(t.Length)
		default:
			return req, fmt.Errorf("service: unexpected tag %d in ReadProperty request", t.Number)
		}
	}
	return req, nil
}

// ReadPropertyACK is the Complex-ACK body for a successful ReadProperty.
type ReadPropertyACK struct {
	ObjectID   bactypes.ObjectID
	Property   object.PropertyID
	ArrayIndex *uint32
	Value      bactypes.Value
}

func (a ReadPropertyACK) Encode() []byte {
	out := contextObjectID(0, a.ObjectID)
	out = append(out, contextUnsigned(1, uint64(a.Property))...)
	if a.ArrayIndex != nil {
		out = append(out, contextUnsigned(2, uint64(*a.ArrayIndex))...)
	}
	out = append(out, contextValue(3, a.Value)...)
	return out
}

func DecodeReadPropertyACK(buf []byte) (ReadPropertyACK, error) {
	var ack ReadPropertyACK
	offset := 0
	for offset < len(buf) {
		t, next, err := tag.Decode(buf, offset)
		if err != nil {
			return ack, err
		}
		switch {
		case t.Number == 0 && !t.Opening:
			id, err := primitive.DecodeObjectID(buf[next : next+int(t.Length)])
			if err != nil {
				return ack, err
			}
			ack.ObjectID = id
			offset = next + int(t.Length)
		case t.Number == 1 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return ack, err
			}
			ack.Property = object.PropertyID(v)
			offset = next + int(t.Length)
		case t.Number == 2 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return ack, err
			}
			idx := uint32(v)
			ack.ArrayIndex = &idx
			offset = next + int(t.Length)
		case t.Number == 3 && t.Opening:
			inner, after, err := tag.ExtractContextValue(buf, next, 3)
			if err != nil {
				return ack, err
			}
			value, _, err := primitive.DecodeApplicationValue(inner, 0)
			if err != nil {
				return ack, err
			}
			ack.Value = value
			offset = after
		default:
			return ack, fmt.Errorf("service: unexpected tag %d in ReadProperty ack", t.Number)
		}
	}
	return ack, nil
}

// WritePropertyRequest is the Confirmed-Write-Property service request body.
type WritePropertyRequest struct {
	ObjectID   bactypes.ObjectID
	Property   object.PropertyID
	ArrayIndex *uint32
	Value      bactypes.Value
	Priority   *int
}

func (r WritePropertyRequest) Encode() []byte {
	out := contextObjectID(0, r.ObjectID)
	out = append(out, contextUnsigned(1, uint64(r.Property))...)
	if r.ArrayIndex != nil {
		out = append(out, contextUnsigned(2, uint64(*r.ArrayIndex))...)
	}
	out = append(out, contextValue(3, r.Value)...)
	if r.Priority != nil {
		out = append(out, contextUnsigned(4, uint64(*r.Priority))...)
	}
	return out
}

func DecodeWritePropertyRequest(buf []byte) (WritePropertyRequest, error) {
	var req WritePropertyRequest
	offset := 0
	for offset < len(buf) {
		t, next, err := tag.Decode(buf, offset)
		if err != nil {
			return req, err
		}
		switch {
		case t.Number == 0 && !t.Opening:
			id, err := primitive.DecodeObjectID(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.ObjectID = id
			offset = next + int(t.Length)
		case t.Number == 1 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.Property = object.PropertyID(v)
			offset = next + int(t.Length)
		case t.Number == 2 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			idx := uint32(v)
			req.ArrayIndex = &idx
			offset = next + int(t.Length)
		case t.Number == 3 && t.Opening:
			inner, after, err := tag.ExtractContextValue(buf, next, 3)
			if err != nil {
				return req, err
			}
			value, _, err := primitive.DecodeApplicationValue(inner, 0)
			if err != nil {
				return req, err
			}
			req.Value = value
			offset = after
		case t.Number == 4 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			p := int(v)
			req.Priority = &p
			offset = next + int(t.Length)
		default:
			return req, fmt.Errorf("service: unexpected tag %d in WriteProperty request", t.Number)
		}
	}
	return req, nil
}

// WhoIsRequest is the Unconfirmed-Who-Is service request, with optional
// device-instance-range limits.
type WhoIsRequest struct {
	LowLimit  *uint32
	HighLimit *uint32
}

func (r WhoIsRequest) Encode() []byte {
	if r.LowLimit == nil || r.HighLimit == nil {
		return nil
	}
	out := contextUnsigned(0, uint64(*r.LowLimit))
	return append(out, contextUnsigned(1, uint64(*r.HighLimit))...)
}

func DecodeWhoIsRequest(buf []byte) (WhoIsRequest, error) {
	var req WhoIsRequest
	offset := 0
	for offset < len(buf) {
		t, next, err := tag.Decode(buf, offset)
		if err != nil {
			return req, err
		}
		v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
		if err != nil {
			return req, err
		}
		switch t.Number {
		case 0:
			low := uint32(v)
			req.LowLimit = &low
		case 1:
			high := uint32(v)
			req.HighLimit = &high
		}
		offset = next + int(t.Length)
	}
	return req, nil
}

// IAmRequest is the Unconfirmed-I-Am service request every device sends in
// response to Who-Is (and unsolicited on startup).
type IAmRequest struct {
	DeviceID             bactypes.ObjectID
	MaxAPDULength         uint32
	SegmentationSupported uint32
	VendorID              uint32
}

func (r IAmRequest) Encode() []byte {
	out, _ := primitive.EncodeValue(r.DeviceID)
	maxAPDU, _ := primitive.EncodeValue(bactypes.Unsigned(r.MaxAPDULength))
	seg, _ := primitive.EncodeValue(bactypes.Enumerated(r.SegmentationSupported))
	vendor, _ := primitive.EncodeValue(bactypes.Unsigned(r.VendorID))
	out = append(out, maxAPDU...)
	out = append(out, seg...)
	out = append(out, vendor...)
	return out
}

func DecodeIAmRequest(buf []byte) (IAmRequest, error) {
	var req IAmRequest
	v, next, err := primitive.DecodeApplicationValue(buf, 0)
	if err != nil {
		return req, err
	}
	id, ok := v.(bactypes.ObjectID)
	if !ok {
		return req, fmt.Errorf("service: I-Am device id is not an object identifier")
	}
	req.DeviceID = id

	v, next, err = primitive.DecodeApplicationValue(buf, next)
	if err != nil {
		return req, err
	}
	maxAPDU, ok := v.(bactypes.Unsigned)
	if !ok {
		return req, fmt.Errorf("service: I-Am max-apdu is not unsigned")
	}
	req.MaxAPDULength = uint32(maxAPDU)

	v, next, err = primitive.DecodeApplicationValue(buf, next)
	if err != nil {
		return req, err
	}
	seg, ok := v.(bactypes.Enumerated)
	if !ok {
		return req, fmt.Errorf("service: I-Am segmentation is not enumerated")
	}
	req.SegmentationSupported = uint32(seg)

	v, _, err = primitive.DecodeApplicationValue(buf, next)
	if err != nil {
		return req, err
	}
	vendor, ok := v.(bactypes.Unsigned)
	if !ok {
		return req, fmt.Errorf("service: I-Am vendor-id is not unsigned")
	}
	req.VendorID = uint32(vendor)
	return req, nil
}

// SubscribeCOVRequest is the Confirmed-Subscribe-COV service request body.
type SubscribeCOVRequest struct {
	ProcessID                   uint32
	MonitoredObjectID            bactypes.ObjectID
	IssueConfirmedNotifications bool
	Lifetime                    uint32 // 0 means indefinite; Cancellation below signals a cancel
	Cancellation                bool
}

func (r SubscribeCOVRequest) Encode() []byte {
	out := contextUnsigned(0, uint64(r.ProcessID))
	out = append(out, contextObjectID(1, r.MonitoredObjectID)...)
	if r.Cancellation {
		return out
	}
	out = append(out, contextBool(2, r.IssueConfirmedNotifications)...)
	out = append(out, contextUnsigned(3, uint64(r.Lifetime))...)
	return out
}

func DecodeSubscribeCOVRequest(buf []byte) (SubscribeCOVRequest, error) {
	req := SubscribeCOVRequest{Cancellation: true}
	offset := 0
	for offset < len(buf) {
		t, next, err := tag.Decode(buf, offset)
		if err != nil {
			return req, err
		}
		switch t.Number {
		case 0:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.ProcessID = uint32(v)
		case 1:
			id, err := primitive.DecodeObjectID(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.MonitoredObjectID = id
		case 2:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.IssueConfirmedNotifications = v != 0
			req.Cancellation = false
		case 3:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.Lifetime = uint32(v)
			req.Cancellation = false
		}
		offset = next + int(t.Length)
	}
	return req, nil
}

// COVNotificationRequest is the body shared by Confirmed- and
// Unconfirmed-COV-Notification.
type COVNotificationRequest struct {
	ProcessID         uint32
	InitiatingDeviceID bactypes.ObjectID
	MonitoredObjectID  bactypes.ObjectID
	TimeRemaining      uint32
	Values             map[object.PropertyID]bactypes.Value
}

func (r COVNotificationRequest) Encode() []byte {
	out := contextUnsigned(0, uint64(r.ProcessID))
	out = append(out, contextObjectID(1, r.InitiatingDeviceID)...)
	out = append(out, contextObjectID(2, r.MonitoredObjectID)...)
	out = append(out, contextUnsigned(3, uint64(r.TimeRemaining))...)
	out = append(out, tag.EncodeOpening(4)...)
	for prop, value := range r.Values {
		out = append(out, contextUnsigned(0, uint64(prop))...)
		out = append(out, contextValue(2, value)...)
	}
	out = append(out, tag.EncodeClosing(4)...)
	return out
}

func DecodeCOVNotificationRequest(buf []byte) (COVNotificationRequest, error) {
	req := COVNotificationRequest{Values: make(map[object.PropertyID]bactypes.Value)}
	offset := 0
	for offset < len(buf) {
		t, next, err := tag.Decode(buf, offset)
		if err != nil {
			return req, err
		}
		switch {
		case t.Number == 0 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.ProcessID = uint32(v)
			offset = next + int(t.Length)
		case t.Number == 1 && !t.Opening:
			id, err := primitive.DecodeObjectID(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.InitiatingDeviceID = id
			offset = next + int(t.Length)
		case t.Number == 2 && !t.Opening:
			id, err := primitive.DecodeObjectID(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.MonitoredObjectID = id
			offset = next + int(t.Length)
		case t.Number == 3 && !t.Opening:
			v, err := primitive.DecodeUnsigned(buf[next : next+int(t.Length)])
			if err != nil {
				return req, err
			}
			req.TimeRemaining = uint32(v)
			offset = next + int(t.Length)
		case t.Number == 4 && t.Opening:
			inner, after, err := tag.ExtractContextValue(buf, next, 4)
			if err != nil {
				return req, err
			}
			if err := decodePropertyValues(inner, req.Values); err != nil {
				return req, err
			}
			offset = after
		default:
			return req, fmt.Errorf("service: unexpected tag %d in COV notification", t.Number)
		}
	}
	return req, nil
}

func decodePropertyValues(buf []byte, out map[object.PropertyID]bactypes.Value) error {
	offset := 0
	for offset < len(buf) {
		propTag, next, err := tag.Decode(buf, offset)
		if err != nil {
			return err
		}
		if propTag.Number != 0 || propTag.Opening {
			return fmt.Errorf("service: expected property-identifier tag in COV value list")
		}
		v, err := primitive.DecodeUnsigned(buf[next : next+int(propTag.Length)])
		if err != nil {
			return err
		}
		prop := object.PropertyID(v)
		offset = next + int(propTag.Length)

		valTag, valNext, err := tag.Decode(buf, offset)
		if err != nil {
			return err
		}
		if !valTag.Opening || valTag.Number != 2 {
			return fmt.Errorf("service: expected property-value opening tag in COV value list")
		}
		inner, after, err := tag.ExtractContextValue(buf, valNext, 2)
		if err != nil {
			return err
		}
		value, _, err := primitive.DecodeApplicationValue(inner, 0)
		if err != nil {
			return err
		}
		out[prop] = value
		offset = after
	}
	return nil
}
