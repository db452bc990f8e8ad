package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
)

func TestAcknowledgeAlarmRoundTrip(t *testing.T) {
	eventTime := bactypes.Time{Hour: 9, Minute: 15, Second: 30}
	ackSeq := uint32(7)
	req := AcknowledgeAlarmRequest{
		ProcessID:       1,
		EventObjectID:   testObjectID(),
		EventStateAcked: 3, // high-limit
		EventTimeStamp:  TimeStamp{Time: &eventTime},
		AckSource:       "operator-7",
		TimeOfAck:       TimeStamp{Sequence: &ackSeq},
	}
	got, err := DecodeAcknowledgeAlarmRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.ProcessID, got.ProcessID)
	assert.Equal(t, req.EventObjectID, got.EventObjectID)
	assert.Equal(t, req.EventStateAcked, got.EventStateAcked)
	require.NotNil(t, got.EventTimeStamp.Time)
	assert.Equal(t, eventTime, *got.EventTimeStamp.Time)
	assert.Equal(t, "operator-7", got.AckSource)
	require.NotNil(t, got.TimeOfAck.Sequence)
	assert.Equal(t, ackSeq, *got.TimeOfAck.Sequence)
}

func TestAcknowledgeAlarmDateTimeTimestamp(t *testing.T) {
	date := bactypes.Date{Year: 126, Month: 8, Day: 1, DayOfWeek: 6}
	clock := bactypes.Time{Hour: 9, Minute: 15}
	ts := TimeStamp{Date: &date, DateTime: &clock}
	req := AcknowledgeAlarmRequest{
		EventObjectID:  testObjectID(),
		EventTimeStamp: ts,
		TimeOfAck:      ts,
	}
	got, err := DecodeAcknowledgeAlarmRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, got.EventTimeStamp.Date)
	assert.Equal(t, date, *got.EventTimeStamp.Date)
	require.NotNil(t, got.EventTimeStamp.DateTime)
	assert.Equal(t, clock, *got.EventTimeStamp.DateTime)
}

func TestGetAlarmSummaryACKRoundTrip(t *testing.T) {
	ack := GetAlarmSummaryACK{
		Summaries: []AlarmSummary{
			{ObjectID: testObjectID(), AlarmState: 3, AckedTransitions: bactypes.NewBitString(true, false, true)},
			{ObjectID: bactypes.ObjectID{Type: bactypes.ObjectBinaryInput, Instance: 2}, AlarmState: 1, AckedTransitions: bactypes.NewBitString(true, true, true)},
		},
	}
	got, err := DecodeGetAlarmSummaryACK(ack.Encode())
	require.NoError(t, err)
	assert.Equal(t, ack, got)
}

func TestGetEventInformationRoundTrip(t *testing.T) {
	last := testObjectID()
	req := GetEventInformationRequest{LastReceived: &last}
	gotReq, err := DecodeGetEventInformationRequest(req.Encode())
	require.NoError(t, err)
	require.NotNil(t, gotReq.LastReceived)
	assert.Equal(t, last, *gotReq.LastReceived)

	empty, err := DecodeGetEventInformationRequest(nil)
	require.NoError(t, err)
	assert.Nil(t, empty.LastReceived)

	t1 := bactypes.Time{Hour: 1}
	t2 := bactypes.Time{Hour: 2}
	t3 := bactypes.Time{Hour: 3}
	ack := GetEventInformationACK{
		Events: []EventSummary{
			{
				ObjectID:         testObjectID(),
				EventState:       3,
				AckedTransitions: bactypes.NewBitString(true, true, false),
				EventTimeStamps:  [3]TimeStamp{{Time: &t1}, {Time: &t2}, {Time: &t3}},
				NotifyType:       0,
				EventEnable:      bactypes.NewBitString(true, true, true),
				EventPriorities:  [3]uint32{8, 8, 16},
			},
		},
		MoreEvents: true,
	}
	gotAck, err := DecodeGetEventInformationACK(ack.Encode())
	require.NoError(t, err)
	require.Len(t, gotAck.Events, 1)
	e := gotAck.Events[0]
	assert.Equal(t, uint32(3), e.EventState)
	require.NotNil(t, e.EventTimeStamps[1].Time)
	assert.Equal(t, t2, *e.EventTimeStamps[1].Time)
	assert.Equal(t, [3]uint32{8, 8, 16}, e.EventPriorities)
	assert.True(t, gotAck.MoreEvents)
}

func TestGetEnrollmentSummaryRoundTrip(t *testing.T) {
	state := uint32(2)
	minP, maxP := uint8(1), uint8(8)
	class := uint32(4)
	req := GetEnrollmentSummaryRequest{
		AcknowledgmentFilter:    AckFilterNotAcked,
		EventStateFilter:        &state,
		MinPriority:             &minP,
		MaxPriority:             &maxP,
		NotificationClassFilter: &class,
	}
	got, err := DecodeGetEnrollmentSummaryRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, AckFilterNotAcked, got.AcknowledgmentFilter)
	require.NotNil(t, got.EventStateFilter)
	assert.Equal(t, state, *got.EventStateFilter)
	require.NotNil(t, got.MinPriority)
	assert.Equal(t, minP, *got.MinPriority)
	require.NotNil(t, got.NotificationClassFilter)
	assert.Equal(t, class, *got.NotificationClassFilter)

	nc := uint32(4)
	ack := GetEnrollmentSummaryACK{
		Summaries: []EnrollmentSummary{
			{ObjectID: testObjectID(), EventType: 4, EventState: 2, Priority: 8, NotificationClass: &nc},
			{ObjectID: bactypes.ObjectID{Type: bactypes.ObjectBinaryInput, Instance: 5}, EventType: 1, EventState: 0, Priority: 16},
		},
	}
	gotAck, err := DecodeGetEnrollmentSummaryACK(ack.Encode())
	require.NoError(t, err)
	require.Len(t, gotAck.Summaries, 2)
	require.NotNil(t, gotAck.Summaries[0].NotificationClass)
	assert.Equal(t, nc, *gotAck.Summaries[0].NotificationClass)
	assert.Nil(t, gotAck.Summaries[1].NotificationClass)
}

func TestAuditNotificationRoundTrip(t *testing.T) {
	desc := "operator write to setpoint"
	req := AuditNotificationRequest{
		Notifications: []AuditNotification{
			{
				SourceDate:   bactypes.Date{Year: 126, Month: 8, Day: 1, DayOfWeek: 6},
				SourceTime:   bactypes.Time{Hour: 10, Minute: 0},
				SourceDevice: bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 99},
				Operation:    AuditOpWrite,
				TargetObject: testObjectID(),
				Description:  &desc,
			},
			{
				SourceDate:   bactypes.Date{Year: 126, Month: 8, Day: 1, DayOfWeek: 6},
				SourceTime:   bactypes.Time{Hour: 10, Minute: 5},
				SourceDevice: bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 99},
				Operation:    AuditOpDeviceReset,
				TargetObject: bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1},
			},
		},
	}
	got, err := DecodeAuditNotificationRequest(req.Encode())
	require.NoError(t, err)
	require.Len(t, got.Notifications, 2)
	assert.Equal(t, req.Notifications[0], got.Notifications[0])
	assert.Nil(t, got.Notifications[1].Description)
}

func TestAuditLogQueryRoundTrip(t *testing.T) {
	start := uint32(100)
	count := uint32(50)
	req := AuditLogQueryRequest{
		LogID:          bactypes.ObjectID{Type: bactypes.ObjectAuditLog, Instance: 1},
		StartSequence:  &start,
		RequestedCount: &count,
	}
	got, err := DecodeAuditLogQueryRequest(req.Encode())
	require.NoError(t, err)
	assert.Equal(t, req.LogID, got.LogID)
	require.NotNil(t, got.StartSequence)
	assert.Equal(t, start, *got.StartSequence)

	ack := AuditLogQueryACK{
		LogID: req.LogID,
		Records: []AuditLogRecord{
			{
				Sequence: 100,
				Notification: AuditNotification{
					SourceDate:   bactypes.Date{Year: 126, Month: 8, Day: 1, DayOfWeek: 6},
					SourceTime:   bactypes.Time{Hour: 10},
					SourceDevice: bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 99},
					Operation:    AuditOpCreate,
					TargetObject: testObjectID(),
				},
			},
		},
		NoMoreItems: true,
	}
	gotAck, err := DecodeAuditLogQueryACK(ack.Encode())
	require.NoError(t, err)
	assert.Equal(t, ack, gotAck)
}
