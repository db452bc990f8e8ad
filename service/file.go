package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// AtomicReadFileRequest is the stream-access form of the
// Confirmed-Atomic-Read-File service request: read Count octets starting
// at octet offset Start of the named File object.
type AtomicReadFileRequest struct {
	FileID bactypes.ObjectID
	Start  int64
	Count  uint64
}

func (r AtomicReadFileRequest) Encode() []byte {
	out, _ := primitive.EncodeValue(r.FileID)
	out = append(out, tag.EncodeOpening(0)...)
	start, _ := primitive.EncodeValue(bactypes.Signed(r.Start))
	count, _ := primitive.EncodeValue(bactypes.Unsigned(r.Count))
	out = append(out, start...)
	out = append(out, count...)
	out = append(out, tag.EncodeClosing(0)...)
	return out
}

func DecodeAtomicReadFileRequest(buf []byte) (AtomicReadFileRequest, error) {
	var req AtomicReadFileRequest
	s := newScanner(buf)
	v, err := s.appValue()
	if err != nil {
		return req, err
	}
	id, ok := v.(bactypes.ObjectID)
	if !ok {
		return req, fmt.Errorf("service: AtomicReadFile file id is not an object identifier")
	}
	req.FileID = id

	if err := s.open(0); err != nil {
		return req, err
	}
	start, err := s.appValue()
	if err != nil {
		return req, err
	}
	count, err := s.appValue()
	if err != nil {
		return req, err
	}
	startS, ok1 := start.(bactypes.Signed)
	countU, ok2 := count.(bactypes.Unsigned)
	if !ok1 || !ok2 {
		return req, fmt.Errorf("service: malformed AtomicReadFile stream access")
	}
	req.Start = int64(startS)
	req.Count = uint64(countU)
	if !s.atClosing(0) {
		return req, fmt.Errorf("service: unterminated AtomicReadFile stream access")
	}
	return req, nil
}

// AtomicReadFileACK is the Complex-ACK body for a stream-access
// AtomicReadFile.
type AtomicReadFileACK struct {
	EndOfFile bool
	Start     int64
	Data      []byte
}

func (a AtomicReadFileACK) Encode() []byte {
	out, _ := primitive.EncodeValue(bactypes.Boolean(a.EndOfFile))
	out = append(out, tag.EncodeOpening(0)...)
	start, _ := primitive.EncodeValue(bactypes.Signed(a.Start))
	data, _ := primitive.EncodeValue(bactypes.OctetString(a.Data))
	out = append(out, start...)
	out = append(out, data...)
	out = append(out, tag.EncodeClosing(0)...)
	return out
}

func DecodeAtomicReadFileACK(buf []byte) (AtomicReadFileACK, error) {
	var ack AtomicReadFileACK
	s := newScanner(buf)
	v, err := s.appValue()
	if err != nil {
		return ack, err
	}
	eof, ok := v.(bactypes.Boolean)
	if !ok {
		return ack, fmt.Errorf("service: AtomicReadFile ack end-of-file is not boolean")
	}
	ack.EndOfFile = bool(eof)

	if err := s.open(0); err != nil {
		return ack, err
	}
	start, err := s.appValue()
	if err != nil {
		return ack, err
	}
	data, err := s.appValue()
	if err != nil {
		return ack, err
	}
	startS, ok1 := start.(bactypes.Signed)
	dataO, ok2 := data.(bactypes.OctetString)
	if !ok1 || !ok2 {
		return ack, fmt.Errorf("service: malformed AtomicReadFile ack")
	}
	ack.Start = int64(startS)
	ack.Data = []byte(dataO)
	if !s.atClosing(0) {
		return ack, fmt.Errorf("service: unterminated AtomicReadFile ack")
	}
	return ack, nil
}

// AtomicWriteFileRequest is the stream-access form of the
// Confirmed-Atomic-Write-File service request. Start of -1 appends to the
// end of the file.
type AtomicWriteFileRequest struct {
	FileID bactypes.ObjectID
	Start  int64
	Data   []byte
}

func (r AtomicWriteFileRequest) Encode() []byte {
	out, _ := primitive.EncodeValue(r.FileID)
	out = append(out, tag.EncodeOpening(0)...)
	start, _ := primitive.EncodeValue(bactypes.Signed(r.Start))
	data, _ := primitive.EncodeValue(bactypes.OctetString(r.Data))
	out = append(out, start...)
	out = append(out, data...)
	out = append(out, tag.EncodeClosing(0)...)
	return out
}

func DecodeAtomicWriteFileRequest(buf []byte) (AtomicWriteFileRequest, error) {
	var req AtomicWriteFileRequest
	s := newScanner(buf)
	v, err := s.appValue()
	if err != nil {
		return req, err
	}
	id, ok := v.(bactypes.ObjectID)
	if !ok {
		return req, fmt.Errorf("service: AtomicWriteFile file id is not an object identifier")
	}
	req.FileID = id

	if err := s.open(0); err != nil {
		return req, err
	}
	start, err := s.appValue()
	if err != nil {
		return req, err
	}
	data, err := s.appValue()
	if err != nil {
		return req, err
	}
	startS, ok1 := start.(bactypes.Signed)
	dataO, ok2 := data.(bactypes.OctetString)
	if !ok1 || !ok2 {
		return req, fmt.Errorf("service: malformed AtomicWriteFile stream access")
	}
	req.Start = int64(startS)
	req.Data = []byte(dataO)
	if !s.atClosing(0) {
		return req, fmt.Errorf("service: unterminated AtomicWriteFile stream access")
	}
	return req, nil
}

// AtomicWriteFileACK carries the octet offset the write actually landed at
// (meaningful for append writes).
type AtomicWriteFileACK struct {
	Start int64
}

func (a AtomicWriteFileACK) Encode() []byte {
	contents := primitive.EncodeSigned(a.Start)
	return append(tag.Encode(0, tag.Context, uint32(len(contents))), contents...)
}

func DecodeAtomicWriteFileACK(buf []byte) (AtomicWriteFileACK, error) {
	var ack AtomicWriteFileACK
	s := newScanner(buf)
	t, contents, err := s.contents()
	if err != nil {
		return ack, err
	}
	if t.Number != 0 {
		return ack, fmt.Errorf("service: expected tag 0 in AtomicWriteFile ack, got %d", t.Number)
	}
	v, err := primitive.DecodeSigned(contents)
	if err != nil {
		return ack, err
	}
	ack.Start = v
	return ack, nil
}
