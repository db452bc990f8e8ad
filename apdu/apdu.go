// Package apdu implements the eight BACnet PDU shapes that travel inside an
// NPDU: ConfirmedRequest, UnconfirmedRequest, SimpleAck, ComplexAck,
// SegmentAck, Error, Reject, Abort.
package apdu

import (
	"fmt"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/primitive"
)

// PDU type nibble values (high nibble of the first APDU byte).
const (
	TypeConfirmedRequest   byte = 0x0
	TypeUnconfirmedRequest byte = 0x1
	TypeSimpleAck          byte = 0x2
	TypeComplexAck         byte = 0x3
	TypeSegmentAck         byte = 0x4
	TypeError              byte = 0x5
	TypeReject             byte = 0x6
	TypeAbort              byte = 0x7
)

// MaxSegments is the 3-bit enumeration carried in the second control byte
// of segmentable PDUs.
type MaxSegments byte

const (
	MaxSegments0 MaxSegments = iota // unsegmented
	MaxSegments2
	MaxSegments4
	MaxSegments8
	MaxSegments16
	MaxSegments32
	MaxSegments64
	MaxSegmentsUnspecified
)

var maxSegmentsValues = map[MaxSegments]int{
	MaxSegments0: 1, MaxSegments2: 2, MaxSegments4: 4, MaxSegments8: 8,
	MaxSegments16: 16, MaxSegments32: 32, MaxSegments64: 64, MaxSegmentsUnspecified: 65,
}

// Value returns the maximum segment count this enumeration permits
// (unspecified is treated as "no limit we know of", represented as 65 so
// it never accidentally compares less than a real count).
func (m MaxSegments) Value() int { return maxSegmentsValues[m] }

// MaxAPDU is the 4-bit enumeration naming the legal max-APDU-length value
// set {50,128,206,480,1024,1476}.
type MaxAPDU byte

const (
	MaxAPDU50 MaxAPDU = iota
	MaxAPDU128
	MaxAPDU206
	MaxAPDU480
	MaxAPDU1024
	MaxAPDU1476
)

var maxAPDULengths = map[MaxAPDU]int{
	MaxAPDU50: 50, MaxAPDU128: 128, MaxAPDU206: 206,
	MaxAPDU480: 480, MaxAPDU1024: 1024, MaxAPDU1476: 1476,
}

// Length returns the byte length this code names. Unknown codes decode to
// 1476 conservatively.
func (m MaxAPDU) Length() int {
	if l, ok := maxAPDULengths[m]; ok {
		return l
	}
	return 1476
}

// MaxAPDUForLength picks the smallest enumerated length that fits payload
// bytes, defaulting to the largest if payload exceeds all of them.
func MaxAPDUForLength(payload int) MaxAPDU {
	for _, code := range []MaxAPDU{MaxAPDU50, MaxAPDU128, MaxAPDU206, MaxAPDU480, MaxAPDU1024, MaxAPDU1476} {
		if payload <= maxAPDULengths[code] {
			return code
		}
	}
	return MaxAPDU1476
}

// ConfirmedRequest is the Confirmed-Request-PDU shape.
type ConfirmedRequest struct {
	Segmented         bool
	MoreFollows       bool
	SegmentedResponseAccepted bool
	MaxSegments       MaxSegments
	MaxAPDU           MaxAPDU
	InvokeID          byte
	SequenceNumber    byte // valid when Segmented
	ProposedWindowSize byte // valid when Segmented
	ServiceChoice     byte
	ServiceData       []byte
}

func (r ConfirmedRequest) Encode() []byte {
	flags := byte(0)
	if r.Segmented {
		flags |= 0x08
	}
	if r.MoreFollows {
		flags |= 0x04
	}
	if r.SegmentedResponseAccepted {
		flags |= 0x02
	}
	out := []byte{(TypeConfirmedRequest << 4) | flags}
	out = append(out, (byte(r.MaxSegments)<<4)|byte(r.MaxAPDU))
	out = append(out, r.InvokeID)
	if r.Segmented {
		out = append(out, r.SequenceNumber, r.ProposedWindowSize)
	}
	out = append(out, r.ServiceChoice)
	out = append(out, r.ServiceData...)
	return out
}

func DecodeConfirmedRequest(buf []byte) (ConfirmedRequest, error) {
	if len(buf) < 4 {
		return ConfirmedRequest{}, fmt.Errorf("apdu: confirmed-request too short")
	}
	first := buf[0]
	r := ConfirmedRequest{
		Segmented:                 first&0x08 != 0,
		MoreFollows:               first&0x04 != 0,
		SegmentedResponseAccepted: first&0x02 != 0,
		MaxSegments:               MaxSegments(buf[1] >> 4),
		MaxAPDU:                   MaxAPDU(buf[1] & 0x0F),
		InvokeID:                  buf[2],
	}
	i := 3
	if r.Segmented {
		if len(buf) < i+2 {
			return ConfirmedRequest{}, fmt.Errorf("apdu: segmented confirmed-request too short")
		}
		r.SequenceNumber = buf[i]
		r.ProposedWindowSize = buf[i+1]
		i += 2
	}
	if len(buf) < i+1 {
		return ConfirmedRequest{}, fmt.Errorf("apdu: confirmed-request missing service choice")
	}
	r.ServiceChoice = buf[i]
	r.ServiceData = append([]byte{}, buf[i+1:]...)
	return r, nil
}

// UnconfirmedRequest is the Unconfirmed-Request-PDU shape.
type UnconfirmedRequest struct {
	ServiceChoice byte
	ServiceData   []byte
}

func (r UnconfirmedRequest) Encode() []byte {
	out := []byte{TypeUnconfirmedRequest << 4, r.ServiceChoice}
	return append(out, r.ServiceData...)
}

func DecodeUnconfirmedRequest(buf []byte) (UnconfirmedRequest, error) {
	if len(buf) < 2 {
		return UnconfirmedRequest{}, fmt.Errorf("apdu: unconfirmed-request too short")
	}
	return UnconfirmedRequest{ServiceChoice: buf[1], ServiceData: append([]byte{}, buf[2:]...)}, nil
}

// SimpleAck acknowledges a confirmed request with no data.
type SimpleAck struct {
	InvokeID      byte
	ServiceChoice byte
}

func (a SimpleAck) Encode() []byte {
	return []byte{TypeSimpleAck << 4, a.InvokeID, a.ServiceChoice}
}

func DecodeSimpleAck(buf []byte) (SimpleAck, error) {
	if len(buf) < 3 {
		return SimpleAck{}, fmt.Errorf("apdu: simple-ack too short")
	}
	return SimpleAck{InvokeID: buf[1], ServiceChoice: buf[2]}, nil
}

// ComplexAck carries response data and may itself be segmented.
type ComplexAck struct {
	Segmented          bool
	MoreFollows        bool
	InvokeID           byte
	SequenceNumber     byte
	ProposedWindowSize byte
	ServiceChoice      byte
	ServiceData        []byte
}

func (a ComplexAck) Encode() []byte {
	flags := byte(0)
	if a.Segmented {
		flags |= 0x08
	}
	if a.MoreFollows {
		flags |= 0x04
	}
	out := []byte{(TypeComplexAck << 4) | flags, a.InvokeID}
	if a.Segmented {
		out = append(out, a.SequenceNumber, a.ProposedWindowSize)
	}
	out = append(out, a.ServiceChoice)
	return append(out, a.ServiceData...)
}

func DecodeComplexAck(buf []byte) (ComplexAck, error) {
	if len(buf) < 3 {
		return ComplexAck{}, fmt.Errorf("apdu: complex-ack too short")
	}
	first := buf[0]
	a := ComplexAck{
		Segmented:   first&0x08 != 0,
		MoreFollows: first&0x04 != 0,
		InvokeID:    buf[1],
	}
	i := 2
	if a.Segmented {
		if len(buf) < i+2 {
			return ComplexAck{}, fmt.Errorf("apdu: segmented complex-ack too short")
		}
		a.SequenceNumber = buf[i]
		a.ProposedWindowSize = buf[i+1]
		i += 2
	}
	if len(buf) < i+1 {
		return ComplexAck{}, fmt.Errorf("apdu: complex-ack missing service choice")
	}
	a.ServiceChoice = buf[i]
	a.ServiceData = append([]byte{}, buf[i+1:]...)
	return a, nil
}

// SegmentAck flows between segment windows.
type SegmentAck struct {
	NegativeAck      bool
	SentByServer     bool
	InvokeID         byte
	SequenceNumber   byte
	ActualWindowSize byte
}

func (a SegmentAck) Encode() []byte {
	flags := byte(0)
	if a.NegativeAck {
		flags |= 0x02
	}
	if a.SentByServer {
		flags |= 0x01
	}
	return []byte{(TypeSegmentAck << 4) | flags, a.InvokeID, a.SequenceNumber, a.ActualWindowSize}
}

func DecodeSegmentAck(buf []byte) (SegmentAck, error) {
	if len(buf) < 4 {
		return SegmentAck{}, fmt.Errorf("apdu: segment-ack too short")
	}
	first := buf[0]
	return SegmentAck{
		NegativeAck:      first&0x02 != 0,
		SentByServer:     first&0x01 != 0,
		InvokeID:         buf[1],
		SequenceNumber:   buf[2],
		ActualWindowSize: buf[3],
	}, nil
}

// Error carries an application-tagged (error-class, error-code) pair.
type Error struct {
	InvokeID      byte
	ServiceChoice byte
	Class         bacerr.ErrorClass
	Code          bacerr.ErrorCode
}

func (e Error) Encode() []byte {
	out := []byte{TypeError << 4, e.InvokeID, e.ServiceChoice}
	classBytes, _ := primitive.EncodeValue(bactypes.Enumerated(e.Class))
	codeBytes, _ := primitive.EncodeValue(bactypes.Enumerated(e.Code))
	return append(append(out, classBytes...), codeBytes...)
}

func DecodeError(buf []byte) (Error, error) {
	if len(buf) < 3 {
		return Error{}, fmt.Errorf("apdu: error-pdu too short")
	}
	e := Error{InvokeID: buf[1], ServiceChoice: buf[2]}
	class, next, err := primitive.DecodeApplicationValue(buf, 3)
	if err != nil {
		return Error{}, fmt.Errorf("apdu: decoding error-class: %w", err)
	}
	classEnum, ok := class.(bactypes.Enumerated)
	if !ok {
		return Error{}, fmt.Errorf("apdu: error-class is not enumerated")
	}
	e.Class = bacerr.ErrorClass(classEnum)
	code, _, err := primitive.DecodeApplicationValue(buf, next)
	if err != nil {
		return Error{}, fmt.Errorf("apdu: decoding error-code: %w", err)
	}
	codeEnum, ok := code.(bactypes.Enumerated)
	if !ok {
		return Error{}, fmt.Errorf("apdu: error-code is not enumerated")
	}
	e.Code = bacerr.ErrorCode(codeEnum)
	return e, nil
}

// Reject carries a single reason byte.
type Reject struct {
	InvokeID byte
	Reason   bacerr.RejectReason
}

func (r Reject) Encode() []byte {
	return []byte{TypeReject << 4, r.InvokeID, byte(r.Reason)}
}

func DecodeReject(buf []byte) (Reject, error) {
	if len(buf) < 3 {
		return Reject{}, fmt.Errorf("apdu: reject-pdu too short")
	}
	return Reject{InvokeID: buf[1], Reason: bacerr.RejectReason(buf[2])}, nil
}

// Abort carries a single reason byte plus the sent-by-server flag.
type Abort struct {
	SentByServer bool
	InvokeID     byte
	Reason       bacerr.AbortReason
}

func (a Abort) Encode() []byte {
	flags := byte(0)
	if a.SentByServer {
		flags |= 0x01
	}
	return []byte{(TypeAbort << 4) | flags, a.InvokeID, byte(a.Reason)}
}

func DecodeAbort(buf []byte) (Abort, error) {
	if len(buf) < 3 {
		return Abort{}, fmt.Errorf("apdu: abort-pdu too short")
	}
	return Abort{SentByServer: buf[0]&0x01 != 0, InvokeID: buf[1], Reason: bacerr.AbortReason(buf[2])}, nil
}

// PDUType returns the high nibble of the first APDU byte without parsing
// the rest — used by dispatchers to pick which Decode* to call.
func PDUType(buf []byte) (byte, error) {
	if len(buf) == 0 {
		return 0, fmt.Errorf("apdu: empty buffer")
	}
	return buf[0] >> 4, nil
}
