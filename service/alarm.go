package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// TimeStamp is the BACnetTimeStamp choice: a bare time, a sequence number,
// or a full date+time. Exactly one field is set.
type TimeStamp struct {
	Time     *bactypes.Time
	Sequence *uint32
	// Date is set together with DateTime for the datetime choice.
	Date     *bactypes.Date
	DateTime *bactypes.Time
}

// encode writes the timestamp wrapped in an opening/closing pair numbered
// tagNumber, with the choice context-tagged inside.
func (ts TimeStamp) encode(tagNumber uint32) []byte {
	out := tag.EncodeOpening(tagNumber)
	switch {
	case ts.Time != nil:
		contents := primitive.EncodeTime(*ts.Time)
		out = append(out, tag.Encode(0, tag.Context, uint32(len(contents)))...)
		out = append(out, contents...)
	case ts.Sequence != nil:
		out = append(out, contextUnsigned(1, uint64(*ts.Sequence))...)
	case ts.Date != nil && ts.DateTime != nil:
		out = append(out, tag.EncodeOpening(2)...)
		date, _ := primitive.EncodeValue(*ts.Date)
		clock, _ := primitive.EncodeValue(*ts.DateTime)
		out = append(out, date...)
		out = append(out, clock...)
		out = append(out, tag.EncodeClosing(2)...)
	}
	return append(out, tag.EncodeClosing(tagNumber)...)
}

func decodeTimeStamp(s *scanner, tagNumber uint32) (TimeStamp, error) {
	var ts TimeStamp
	if err := s.open(tagNumber); err != nil {
		return ts, err
	}
	t, err := s.peek()
	if err != nil {
		return ts, err
	}
	switch {
	case t.Number == 0 && !t.Opening:
		_, contents, err := s.contents()
		if err != nil {
			return ts, err
		}
		clock, err := primitive.DecodeTime(contents)
		if err != nil {
			return ts, err
		}
		ts.Time = &clock
	case t.Number == 1 && !t.Opening:
		v, err := s.unsigned(1)
		if err != nil {
			return ts, err
		}
		seq := uint32(v)
		ts.Sequence = &seq
	case t.Number == 2 && t.Opening:
		if err := s.open(2); err != nil {
			return ts, err
		}
		dv, err := s.appValue()
		if err != nil {
			return ts, err
		}
		cv, err := s.appValue()
		if err != nil {
			return ts, err
		}
		date, ok1 := dv.(bactypes.Date)
		clock, ok2 := cv.(bactypes.Time)
		if !ok1 || !ok2 {
			return ts, fmt.Errorf("service: malformed datetime timestamp")
		}
		if !s.atClosing(2) {
			return ts, fmt.Errorf("service: unterminated datetime timestamp")
		}
		ts.Date = &date
		ts.DateTime = &clock
	default:
		return ts, fmt.Errorf("service: unknown timestamp choice tag %d", t.Number)
	}
	if !s.atClosing(tagNumber) {
		return ts, fmt.Errorf("service: unterminated timestamp")
	}
	return ts, nil
}

// AcknowledgeAlarmRequest is the Confirmed-Acknowledge-Alarm service
// request: an operator confirms they have seen an event notification.
type AcknowledgeAlarmRequest struct {
	ProcessID       uint32
	EventObjectID   bactypes.ObjectID
	EventStateAcked uint32
	EventTimeStamp  TimeStamp
	AckSource       string
	TimeOfAck       TimeStamp
}

func (r AcknowledgeAlarmRequest) Encode() []byte {
	out := contextUnsigned(0, uint64(r.ProcessID))
	out = append(out, contextObjectID(1, r.EventObjectID)...)
	out = append(out, contextUnsigned(2, uint64(r.EventStateAcked))...)
	out = append(out, r.EventTimeStamp.encode(3)...)
	source, _ := primitive.EncodeCharacterString(bactypes.CharacterString{Value: r.AckSource})
	out = append(out, tag.Encode(4, tag.Context, uint32(len(source)))...)
	out = append(out, source...)
	out = append(out, r.TimeOfAck.encode(5)...)
	return out
}

func DecodeAcknowledgeAlarmRequest(buf []byte) (AcknowledgeAlarmRequest, error) {
	var req AcknowledgeAlarmRequest
	s := newScanner(buf)
	v, err := s.unsigned(0)
	if err != nil {
		return req, err
	}
	req.ProcessID = uint32(v)
	id, err := s.objectID(1)
	if err != nil {
		return req, err
	}
	req.EventObjectID = id
	state, err := s.unsigned(2)
	if err != nil {
		return req, err
	}
	req.EventStateAcked = uint32(state)
	ts, err := decodeTimeStamp(s, 3)
	if err != nil {
		return req, err
	}
	req.EventTimeStamp = ts
	t, contents, err := s.contents()
	if err != nil {
		return req, err
	}
	if t.Number != 4 {
		return req, fmt.Errorf("service: expected ack-source tag 4, got %d", t.Number)
	}
	cs, err := primitive.DecodeCharacterString(contents)
	if err != nil {
		return req, err
	}
	req.AckSource = cs.Value
	ack, err := decodeTimeStamp(s, 5)
	if err != nil {
		return req, err
	}
	req.TimeOfAck = ack
	return req, nil
}

// AlarmSummary is one element of a GetAlarmSummary ACK.
type AlarmSummary struct {
	ObjectID         bactypes.ObjectID
	AlarmState       uint32
	AckedTransitions bactypes.BitString
}

// GetAlarmSummaryACK lists every object currently in alarm. The request
// itself has no parameters.
type GetAlarmSummaryACK struct {
	Summaries []AlarmSummary
}

func (a GetAlarmSummaryACK) Encode() []byte {
	var out []byte
	for _, s := range a.Summaries {
		id, _ := primitive.EncodeValue(s.ObjectID)
		state, _ := primitive.EncodeValue(bactypes.Enumerated(s.AlarmState))
		acked, _ := primitive.EncodeValue(s.AckedTransitions)
		out = append(out, id...)
		out = append(out, state...)
		out = append(out, acked...)
	}
	return out
}

func DecodeGetAlarmSummaryACK(buf []byte) (GetAlarmSummaryACK, error) {
	var ack GetAlarmSummaryACK
	s := newScanner(buf)
	for s.more() {
		var sum AlarmSummary
		v, err := s.appValue()
		if err != nil {
			return ack, err
		}
		id, ok := v.(bactypes.ObjectID)
		if !ok {
			return ack, fmt.Errorf("service: alarm summary object id is not an object identifier")
		}
		sum.ObjectID = id
		v, err = s.appValue()
		if err != nil {
			return ack, err
		}
		state, ok := v.(bactypes.Enumerated)
		if !ok {
			return ack, fmt.Errorf("service: alarm summary state is not enumerated")
		}
		sum.AlarmState = uint32(state)
		v, err = s.appValue()
		if err != nil {
			return ack, err
		}
		acked, ok := v.(bactypes.BitString)
		if !ok {
			return ack, fmt.Errorf("service: alarm summary acked-transitions is not a bit string")
		}
		sum.AckedTransitions = acked
		ack.Summaries = append(ack.Summaries, sum)
	}
	return ack, nil
}

// GetEventInformationRequest pages through a device's event state: the
// optional LastReceived identifier continues from a previous page.
type GetEventInformationRequest struct {
	LastReceived *bactypes.ObjectID
}

func (r GetEventInformationRequest) Encode() []byte {
	if r.LastReceived == nil {
		return nil
	}
	return contextObjectID(0, *r.LastReceived)
}

func DecodeGetEventInformationRequest(buf []byte) (GetEventInformationRequest, error) {
	var req GetEventInformationRequest
	if len(buf) == 0 {
		return req, nil
	}
	s := newScanner(buf)
	id, err := s.objectID(0)
	if err != nil {
		return req, err
	}
	req.LastReceived = &id
	return req, nil
}

// EventSummary is one element of a GetEventInformation ACK.
type EventSummary struct {
	ObjectID         bactypes.ObjectID
	EventState       uint32
	AckedTransitions bactypes.BitString
	EventTimeStamps  [3]TimeStamp
	NotifyType       uint32
	EventEnable      bactypes.BitString
	EventPriorities  [3]uint32
}

// GetEventInformationACK is the Complex-ACK body for GetEventInformation.
type GetEventInformationACK struct {
	Events     []EventSummary
	MoreEvents bool
}

func (a GetEventInformationACK) Encode() []byte {
	out := tag.EncodeOpening(0)
	for _, e := range a.Events {
		out = append(out, contextObjectID(0, e.ObjectID)...)
		out = append(out, contextUnsigned(1, uint64(e.EventState))...)
		acked := primitive.EncodeBitString(e.AckedTransitions)
		out = append(out, tag.Encode(2, tag.Context, uint32(len(acked)))...)
		out = append(out, acked...)
		out = append(out, tag.EncodeOpening(3)...)
		for _, ts := range e.EventTimeStamps {
			out = append(out, ts.encode(0)...)
		}
		out = append(out, tag.EncodeClosing(3)...)
		out = append(out, contextUnsigned(4, uint64(e.NotifyType))...)
		enable := primitive.EncodeBitString(e.EventEnable)
		out = append(out, tag.Encode(5, tag.Context, uint32(len(enable)))...)
		out = append(out, enable...)
		out = append(out, tag.EncodeOpening(6)...)
		for _, p := range e.EventPriorities {
			enc, _ := primitive.EncodeValue(bactypes.Unsigned(p))
			out = append(out, enc...)
		}
		out = append(out, tag.EncodeClosing(6)...)
	}
	out = append(out, tag.EncodeClosing(0)...)
	out = append(out, contextBool(1, a.MoreEvents)...)
	return out
}

func DecodeGetEventInformationACK(buf []byte) (GetEventInformationACK, error) {
	var ack GetEventInformationACK
	s := newScanner(buf)
	if err := s.open(0); err != nil {
		return ack, err
	}
	for !s.atClosing(0) {
		var e EventSummary
		id, err := s.objectID(0)
		if err != nil {
			return ack, err
		}
		e.ObjectID = id
		state, err := s.unsigned(1)
		if err != nil {
			return ack, err
		}
		e.EventState = uint32(state)
		t, contents, err := s.contents()
		if err != nil {
			return ack, err
		}
		if t.Number != 2 {
			return ack, fmt.Errorf("service: expected acked-transitions tag 2, got %d", t.Number)
		}
		acked, err := primitive.DecodeBitString(contents)
		if err != nil {
			return ack, err
		}
		e.AckedTransitions = acked
		if err := s.open(3); err != nil {
			return ack, err
		}
		for i := 0; i < 3; i++ {
			ts, err := decodeTimeStamp(s, 0)
			if err != nil {
				return ack, err
			}
			e.EventTimeStamps[i] = ts
		}
		if !s.atClosing(3) {
			return ack, fmt.Errorf("service: unterminated event timestamps")
		}
		notify, err := s.unsigned(4)
		if err != nil {
			return ack, err
		}
		e.NotifyType = uint32(notify)
		t, contents, err = s.contents()
		if err != nil {
			return ack, err
		}
		if t.Number != 5 {
			return ack, fmt.Errorf("service: expected event-enable tag 5, got %d", t.Number)
		}
		enable, err := primitive.DecodeBitString(contents)
		if err != nil {
			return ack, err
		}
		e.EventEnable = enable
		if err := s.open(6); err != nil {
			return ack, err
		}
		for i := 0; i < 3; i++ {
			v, err := s.appValue()
			if err != nil {
				return ack, err
			}
			p, ok := v.(bactypes.Unsigned)
			if !ok {
				return ack, fmt.Errorf("service: event priority is not unsigned")
			}
			e.EventPriorities[i] = uint32(p)
		}
		if !s.atClosing(6) {
			return ack, fmt.Errorf("service: unterminated event priorities")
		}
		ack.Events = append(ack.Events, e)
	}
	t, contents, err := s.contents()
	if err != nil {
		return ack, err
	}
	if t.Number != 1 {
		return ack, fmt.Errorf("service: expected more-events tag 1, got %d", t.Number)
	}
	v, err := primitive.DecodeUnsigned(contents)
	if err != nil {
		return ack, err
	}
	ack.MoreEvents = v != 0
	return ack, nil
}

// AcknowledgmentFilter values for GetEnrollmentSummary.
const (
	AckFilterAll      uint32 = 0
	AckFilterAcked    uint32 = 1
	AckFilterNotAcked uint32 = 2
)

// GetEnrollmentSummaryRequest filters the device's event enrollments.
type GetEnrollmentSummaryRequest struct {
	AcknowledgmentFilter    uint32
	EventStateFilter        *uint32
	MinPriority             *uint8
	MaxPriority             *uint8
	NotificationClassFilter *uint32
}

func (r GetEnrollmentSummaryRequest) Encode() []byte {
	out := contextUnsigned(0, uint64(r.AcknowledgmentFilter))
	if r.EventStateFilter != nil {
		out = append(out, contextUnsigned(3, uint64(*r.EventStateFilter))...)
	}
	if r.MinPriority != nil && r.MaxPriority != nil {
		out = append(out, tag.EncodeOpening(4)...)
		out = append(out, contextUnsigned(0, uint64(*r.MinPriority))...)
		out = append(out, contextUnsigned(1, uint64(*r.MaxPriority))...)
		out = append(out, tag.EncodeClosing(4)...)
	}
	if r.NotificationClassFilter != nil {
		out = append(out, contextUnsigned(5, uint64(*r.NotificationClassFilter))...)
	}
	return out
}

func DecodeGetEnrollmentSummaryRequest(buf []byte) (GetEnrollmentSummaryRequest, error) {
	var req GetEnrollmentSummaryRequest
	s := newScanner(buf)
	v, err := s.unsigned(0)
	if err != nil {
		return req, err
	}
	req.AcknowledgmentFilter = uint32(v)
	for s.more() {
		t, err := s.peek()
		if err != nil {
			return req, err
		}
		switch {
		case t.Number == 3 && !t.Opening:
			v, err := s.unsigned(3)
			if err != nil {
				return req, err
			}
			state := uint32(v)
			req.EventStateFilter = &state
		case t.Number == 4 && t.Opening:
			if err := s.open(4); err != nil {
				return req, err
			}
			min, err := s.unsigned(0)
			if err != nil {
				return req, err
			}
			max, err := s.unsigned(1)
			if err != nil {
				return req, err
			}
			if !s.atClosing(4) {
				return req, fmt.Errorf("service: unterminated priority filter")
			}
			minP, maxP := uint8(min), uint8(max)
			req.MinPriority = &minP
			req.MaxPriority = &maxP
		case t.Number == 5 && !t.Opening:
			v, err := s.unsigned(5)
			if err != nil {
				return req, err
			}
			class := uint32(v)
			req.NotificationClassFilter = &class
		default:
			return req, fmt.Errorf("service: unexpected tag %d in GetEnrollmentSummary", t.Number)
		}
	}
	return req, nil
}

// EnrollmentSummary is one element of a GetEnrollmentSummary ACK.
type EnrollmentSummary struct {
	ObjectID          bactypes.ObjectID
	EventType         uint32
	EventState        uint32
	Priority          uint32
	NotificationClass *uint32
}

// GetEnrollmentSummaryACK is the Complex-ACK body for
// GetEnrollmentSummary.
type GetEnrollmentSummaryACK struct {
	Summaries []EnrollmentSummary
}

func (a GetEnrollmentSummaryACK) Encode() []byte {
	var out []byte
	for _, s := range a.Summaries {
		id, _ := primitive.EncodeValue(s.ObjectID)
		eventType, _ := primitive.EncodeValue(bactypes.Enumerated(s.EventType))
		state, _ := primitive.EncodeValue(bactypes.Enumerated(s.EventState))
		priority, _ := primitive.EncodeValue(bactypes.Unsigned(s.Priority))
		out = append(out, id...)
		out = append(out, eventType...)
		out = append(out, state...)
		out = append(out, priority...)
		if s.NotificationClass != nil {
			class, _ := primitive.EncodeValue(bactypes.Unsigned(*s.NotificationClass))
			out = append(out, class...)
		}
	}
	return out
}

func DecodeGetEnrollmentSummaryACK(buf []byte) (GetEnrollmentSummaryACK, error) {
	var ack GetEnrollmentSummaryACK
	s := newScanner(buf)
	for s.more() {
		var sum EnrollmentSummary
		v, err := s.appValue()
		if err != nil {
			return ack, err
		}
		id, ok := v.(bactypes.ObjectID)
		if !ok {
			return ack, fmt.Errorf("service: enrollment summary object id is not an object identifier")
		}
		sum.ObjectID = id
		v, err = s.appValue()
		if err != nil {
			return ack, err
		}
		eventType, ok := v.(bactypes.Enumerated)
		if !ok {
			return ack, fmt.Errorf("service: enrollment summary event type is not enumerated")
		}
		sum.EventType = uint32(eventType)
		v, err = s.appValue()
		if err != nil {
			return ack, err
		}
		state, ok := v.(bactypes.Enumerated)
		if !ok {
			return ack, fmt.Errorf("service: enrollment summary event state is not enumerated")
		}
		sum.EventState = uint32(state)
		v, err = s.appValue()
		if err != nil {
			return ack, err
		}
		priority, ok := v.(bactypes.Unsigned)
		if !ok {
			return ack, fmt.Errorf("service: enrollment summary priority is not unsigned")
		}
		sum.Priority = uint32(priority)
		// The notification class is optional; the next record, if any,
		// starts with an object identifier, so an unsigned here is
		// unambiguous.
		if s.more() {
			if t, err := s.peek(); err == nil && t.Class == tag.Application && t.Number == uint32(bactypes.TagUnsigned) {
				v, err := s.appValue()
				if err != nil {
					return ack, err
				}
				class := uint32(v.(bactypes.Unsigned))
				sum.NotificationClass = &class
			}
		}
		ack.Summaries = append(ack.Summaries, sum)
	}
	return ack, nil
}
