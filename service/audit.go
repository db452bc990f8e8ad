package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// Decode bounds for audit record sequences. A hostile peer can otherwise
// claim arbitrarily long sequences and make the decoder allocate without
// limit.
const (
	maxAuditRecords = 10000
)

// AuditOperation is the audited operation kind carried in every audit
// notification.
type AuditOperation uint32

const (
	AuditOpRead AuditOperation = iota
	AuditOpWrite
	AuditOpCreate
	AuditOpDelete
	AuditOpLifeSafety
	AuditOpAcknowledgeAlarm
	AuditOpDeviceDisableComm
	AuditOpDeviceEnableComm
	AuditOpDeviceReset
	AuditOpDeviceBackup
	AuditOpDeviceRestore
	AuditOpSubscription
	AuditOpNotificationReceived
	AuditOpGeneralInterrogation
)

// AuditNotification is one audit record: who did what to which object,
// when.
type AuditNotification struct {
	SourceDate   bactypes.Date
	SourceTime   bactypes.Time
	SourceDevice bactypes.ObjectID
	Operation    AuditOperation
	TargetObject bactypes.ObjectID
	Description  *string
}

func (n AuditNotification) encode() []byte {
	out := tag.EncodeOpening(0)
	date, _ := primitive.EncodeValue(n.SourceDate)
	clock, _ := primitive.EncodeValue(n.SourceTime)
	out = append(out, date...)
	out = append(out, clock...)
	out = append(out, tag.EncodeClosing(0)...)
	out = append(out, contextObjectID(1, n.SourceDevice)...)
	out = append(out, contextUnsigned(2, uint64(n.Operation))...)
	out = append(out, contextObjectID(3, n.TargetObject)...)
	if n.Description != nil {
		contents, _ := primitive.EncodeCharacterString(bactypes.CharacterString{Value: *n.Description})
		out = append(out, tag.Encode(4, tag.Context, uint32(len(contents)))...)
		out = append(out, contents...)
	}
	return out
}

func decodeAuditNotification(s *scanner) (AuditNotification, error) {
	var n AuditNotification
	if err := s.open(0); err != nil {
		return n, err
	}
	dv, err := s.appValue()
	if err != nil {
		return n, err
	}
	cv, err := s.appValue()
	if err != nil {
		return n, err
	}
	date, ok1 := dv.(bactypes.Date)
	clock, ok2 := cv.(bactypes.Time)
	if !ok1 || !ok2 {
		return n, fmt.Errorf("service: malformed audit source timestamp")
	}
	if !s.atClosing(0) {
		return n, fmt.Errorf("service: unterminated audit source timestamp")
	}
	n.SourceDate = date
	n.SourceTime = clock

	device, err := s.objectID(1)
	if err != nil {
		return n, err
	}
	n.SourceDevice = device
	op, err := s.unsigned(2)
	if err != nil {
		return n, err
	}
	n.Operation = AuditOperation(op)
	target, err := s.objectID(3)
	if err != nil {
		return n, err
	}
	n.TargetObject = target
	if t, perr := s.peek(); perr == nil && t.Number == 4 && !t.Opening && !t.Closing {
		_, contents, err := s.contents()
		if err != nil {
			return n, err
		}
		cs, err := primitive.DecodeCharacterString(contents)
		if err != nil {
			return n, err
		}
		desc := cs.Value
		n.Description = &desc
	}
	return n, nil
}

// AuditNotificationRequest is the body shared by Confirmed- and
// Unconfirmed-Audit-Notification: a batch of audit records.
type AuditNotificationRequest struct {
	Notifications []AuditNotification
}

func (r AuditNotificationRequest) Encode() []byte {
	out := tag.EncodeOpening(0)
	for _, n := range r.Notifications {
		out = append(out, tag.EncodeOpening(1)...)
		out = append(out, n.encode()...)
		out = append(out, tag.EncodeClosing(1)...)
	}
	return append(out, tag.EncodeClosing(0)...)
}

func DecodeAuditNotificationRequest(buf []byte) (AuditNotificationRequest, error) {
	var req AuditNotificationRequest
	s := newScanner(buf)
	if err := s.open(0); err != nil {
		return req, err
	}
	for !s.atClosing(0) {
		if len(req.Notifications) >= maxAuditRecords {
			return req, fmt.Errorf("service: audit notification batch exceeds %d records", maxAuditRecords)
		}
		if err := s.open(1); err != nil {
			return req, err
		}
		n, err := decodeAuditNotification(s)
		if err != nil {
			return req, err
		}
		if !s.atClosing(1) {
			return req, fmt.Errorf("service: unterminated audit notification")
		}
		req.Notifications = append(req.Notifications, n)
	}
	return req, nil
}

// AuditLogQueryRequest reads a slice of an Audit Log object's record
// buffer, by starting sequence number.
type AuditLogQueryRequest struct {
	LogID          bactypes.ObjectID
	StartSequence  *uint32
	RequestedCount *uint32
}

func (r AuditLogQueryRequest) Encode() []byte {
	out := contextObjectID(0, r.LogID)
	if r.StartSequence != nil {
		out = append(out, contextUnsigned(1, uint64(*r.StartSequence))...)
	}
	if r.RequestedCount != nil {
		out = append(out, contextUnsigned(2, uint64(*r.RequestedCount))...)
	}
	return out
}

func DecodeAuditLogQueryRequest(buf []byte) (AuditLogQueryRequest, error) {
	var req AuditLogQueryRequest
	s := newScanner(buf)
	id, err := s.objectID(0)
	if err != nil {
		return req, err
	}
	req.LogID = id
	for s.more() {
		t, contents, err := s.contents()
		if err != nil {
			return req, err
		}
		v, err := primitive.DecodeUnsigned(contents)
		if err != nil {
			return req, err
		}
		switch t.Number {
		case 1:
			start := uint32(v)
			req.StartSequence = &start
		case 2:
			count := uint32(v)
			req.RequestedCount = &count
		default:
			return req, fmt.Errorf("service: unexpected tag %d in AuditLogQuery", t.Number)
		}
	}
	return req, nil
}

// AuditLogRecord pairs a notification with its position in the log.
type AuditLogRecord struct {
	Sequence     uint32
	Notification AuditNotification
}

// AuditLogQueryACK is the Complex-ACK body for AuditLogQuery.
type AuditLogQueryACK struct {
	LogID       bactypes.ObjectID
	Records     []AuditLogRecord
	NoMoreItems bool
}

func (a AuditLogQueryACK) Encode() []byte {
	out := contextObjectID(0, a.LogID)
	out = append(out, tag.EncodeOpening(1)...)
	for _, rec := range a.Records {
		out = append(out, contextUnsigned(0, uint64(rec.Sequence))...)
		out = append(out, tag.EncodeOpening(1)...)
		out = append(out, rec.Notification.encode()...)
		out = append(out, tag.EncodeClosing(1)...)
	}
	out = append(out, tag.EncodeClosing(1)...)
	out = append(out, contextBool(2, a.NoMoreItems)...)
	return out
}

func DecodeAuditLogQueryACK(buf []byte) (AuditLogQueryACK, error) {
	var ack AuditLogQueryACK
	s := newScanner(buf)
	id, err := s.objectID(0)
	if err != nil {
		return ack, err
	}
	ack.LogID = id
	if err := s.open(1); err != nil {
		return ack, err
	}
	for !s.atClosing(1) {
		if len(ack.Records) >= maxAuditRecords {
			return ack, fmt.Errorf("service: audit log query result exceeds %d records", maxAuditRecords)
		}
		var rec AuditLogRecord
		seq, err := s.unsigned(0)
		if err != nil {
			return ack, err
		}
		rec.Sequence = uint32(seq)
		if err := s.open(1); err != nil {
			return ack, err
		}
		n, err := decodeAuditNotification(s)
		if err != nil {
			return ack, err
		}
		if !s.atClosing(1) {
			return ack, fmt.Errorf("service: unterminated audit log record")
		}
		rec.Notification = n
		ack.Records = append(ack.Records, rec)
	}
	t, contents, err := s.contents()
	if err != nil {
		return ack, err
	}
	if t.Number != 2 {
		return ack, fmt.Errorf("service: expected no-more-items tag 2, got %d", t.Number)
	}
	v, err := primitive.DecodeUnsigned(contents)
	if err != nil {
		return ack, err
	}
	ack.NoMoreItems = v != 0
	return ack, nil
}
