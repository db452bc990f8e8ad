package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// RangeKind selects which of ReadRange's three range qualifiers a request
// carries, or none at all (read the whole list).
type RangeKind int

const (
	RangeAll RangeKind = iota
	RangeByPosition
	RangeBySequence
	RangeByTime
)

// Context tag numbers for the range choice (ASHRAE 135 clause 15.8.1.1).
const (
	rangeTagByPosition uint32 = 3
	rangeTagBySequence uint32 = 6
	rangeTagByTime     uint32 = 7
)

// ReadRangeRequest is the Confirmed-Read-Range service request body,
// reading a slice of a list-valued property (typically a Trend Log
// buffer).
type ReadRangeRequest struct {
	ObjectID   bactypes.ObjectID
	Property   object.PropertyID
	ArrayIndex *uint32

	Kind RangeKind
	// ReferenceIndex is 1-based for by-position requests.
	ReferenceIndex    uint32
	ReferenceSequence uint32
	ReferenceDate     bactypes.Date
	ReferenceTime     bactypes.Time
	// Count is the signed item count: negative reads backward from the
	// reference point.
	Count int32
}

func (r ReadRangeRequest) Encode() []byte {
	out := contextObjectID(0, r.ObjectID)
	out = append(out, contextUnsigned(1, uint64(r.Property))...)
	if r.ArrayIndex != nil {
		out = append(out, contextUnsigned(2, uint64(*r.ArrayIndex))...)
	}
	switch r.Kind {
	case RangeAll:
	case RangeByPosition:
		out = append(out, tag.EncodeOpening(rangeTagByPosition)...)
		ref, _ := primitive.EncodeValue(bactypes.Unsigned(r.ReferenceIndex))
		count, _ := primitive.EncodeValue(bactypes.Signed(r.Count))
		out = append(out, ref...)
		out = append(out, count...)
		out = append(out, tag.EncodeClosing(rangeTagByPosition)...)
	case RangeBySequence:
		out = append(out, tag.EncodeOpening(rangeTagBySequence)...)
		ref, _ := primitive.EncodeValue(bactypes.Unsigned(r.ReferenceSequence))
		count, _ := primitive.EncodeValue(bactypes.Signed(r.Count))
		out = append(out, ref...)
		out = append(out, count...)
		out = append(out, tag.EncodeClosing(rangeTagBySequence)...)
	case RangeByTime:
		out = append(out, tag.EncodeOpening(rangeTagByTime)...)
		date, _ := primitive.EncodeValue(r.ReferenceDate)
		clock, _ := primitive.EncodeValue(r.ReferenceTime)
		count, _ := primitive.EncodeValue(bactypes.Signed(r.Count))
		out = append(out, date...)
		out = append(out, clock...)
		out = append(out, count...)
		out = append(out, tag.EncodeClosing(rangeTagByTime)...)
	}
	return out
}

func DecodeReadRangeRequest(buf []byte) (ReadRangeRequest, error) {
	var req ReadRangeRequest
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
	if !s.more() {
		return req, nil
	}
	t, err := s.peek()
	if err != nil {
		return req, err
	}
	if !t.Opening {
		return req, fmt.Errorf("service: expected range qualifier opening tag, got %d", t.Number)
	}
	if err := s.open(t.Number); err != nil {
		return req, err
	}
	switch t.Number {
	case rangeTagByPosition, rangeTagBySequence:
		ref, err := s.appValue()
		if err != nil {
			return req, err
		}
		count, err := s.appValue()
		if err != nil {
			return req, err
		}
		refU, ok1 := ref.(bactypes.Unsigned)
		countS, ok2 := count.(bactypes.Signed)
		if !ok1 || !ok2 {
			return req, fmt.Errorf("service: malformed range qualifier")
		}
		if t.Number == rangeTagByPosition {
			req.Kind = RangeByPosition
			req.ReferenceIndex = uint32(refU)
		} else {
			req.Kind = RangeBySequence
			req.ReferenceSequence = uint32(refU)
		}
		req.Count = int32(countS)
	case rangeTagByTime:
		req.Kind = RangeByTime
		date, err := s.appValue()
		if err != nil {
			return req, err
		}
		clock, err := s.appValue()
		if err != nil {
			return req, err
		}
		count, err := s.appValue()
		if err != nil {
			return req, err
		}
		d, ok1 := date.(bactypes.Date)
		c, ok2 := clock.(bactypes.Time)
		n, ok3 := count.(bactypes.Signed)
		if !ok1 || !ok2 || !ok3 {
			return req, fmt.Errorf("service: malformed by-time range qualifier")
		}
		req.ReferenceDate = d
		req.ReferenceTime = c
		req.Count = int32(n)
	default:
		return req, fmt.Errorf("service: unknown range qualifier tag %d", t.Number)
	}
	if !s.atClosing(t.Number) {
		return req, fmt.Errorf("service: unterminated range qualifier")
	}
	return req, nil
}

// ReadRangeACK is the Complex-ACK body for ReadRange. ItemData holds the
// raw application-tagged item encodings; interpretation is the caller's
// (the service layer does not know the item type).
type ReadRangeACK struct {
	ObjectID   bactypes.ObjectID
	Property   object.PropertyID
	ArrayIndex *uint32

	FirstItem bool
	LastItem  bool
	MoreItems bool

	ItemCount           uint32
	ItemData            []byte
	FirstSequenceNumber *uint32
}

func (a ReadRangeACK) Encode() []byte {
	out := contextObjectID(0, a.ObjectID)
	out = append(out, contextUnsigned(1, uint64(a.Property))...)
	if a.ArrayIndex != nil {
		out = append(out, contextUnsigned(2, uint64(*a.ArrayIndex))...)
	}
	flags := primitive.EncodeBitString(bactypes.NewBitString(a.FirstItem, a.LastItem, a.MoreItems))
	out = append(out, tag.Encode(3, tag.Context, uint32(len(flags)))...)
	out = append(out, flags...)
	out = append(out, contextUnsigned(4, uint64(a.ItemCount))...)
	out = append(out, tag.EncodeOpening(5)...)
	out = append(out, a.ItemData...)
	out = append(out, tag.EncodeClosing(5)...)
	if a.FirstSequenceNumber != nil {
		out = append(out, contextUnsigned(6, uint64(*a.FirstSequenceNumber))...)
	}
	return out
}

func DecodeReadRangeACK(buf []byte) (ReadRangeACK, error) {
	var ack ReadRangeACK
	s := newScanner(buf)
	id, err := s.objectID(0)
	if err != nil {
		return ack, err
	}
	ack.ObjectID = id
	prop, err := s.propertyID(1)
	if err != nil {
		return ack, err
	}
	ack.Property = prop
	if t, perr := s.peek(); perr == nil && t.Number == 2 && !t.Opening {
		v, err := s.unsigned(2)
		if err != nil {
			return ack, err
		}
		idx := uint32(v)
		ack.ArrayIndex = &idx
	}
	t, contents, err := s.contents()
	if err != nil {
		return ack, err
	}
	if t.Number != 3 {
		return ack, fmt.Errorf("service: expected result-flags tag 3, got %d", t.Number)
	}
	flags, err := primitive.DecodeBitString(contents)
	if err != nil {
		return ack, err
	}
	ack.FirstItem = flags.Bit(0)
	ack.LastItem = flags.Bit(1)
	ack.MoreItems = flags.Bit(2)

	count, err := s.unsigned(4)
	if err != nil {
		return ack, err
	}
	ack.ItemCount = uint32(count)

	if err := s.open(5); err != nil {
		return ack, err
	}
	items, err := s.enclosed(5)
	if err != nil {
		return ack, err
	}
	ack.ItemData = items

	if s.more() {
		v, err := s.unsigned(6)
		if err != nil {
			return ack, err
		}
		seq := uint32(v)
		ack.FirstSequenceNumber = &seq
	}
	return ack, nil
}
