package trendlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
)

func monitoredDB(t *testing.T) (*object.Database, bactypes.ObjectID) {
	db := object.NewDatabase()
	id := bactypes.ObjectID{Type: bactypes.ObjectAnalogValue, Instance: 1}
	require.NoError(t, db.Add(object.NewAnalogValue(id, "AV-1", object.UnitsNoUnits)))
	return db, id
}

func TestSampleAppendsRecordUntilFull(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 3)

	tl.Sample()
	tl.Sample()
	assert.Equal(t, 2, tl.RecordCount())

	recs := tl.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, "0", recs[0].Value)
}

func TestSampleWrapsCircularBuffer(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 2)

	for i := 0; i < 4; i++ {
		require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(i), nil, nil))
		tl.Sample()
	}

	assert.Equal(t, 2, tl.RecordCount())
	recs := tl.Records()
	require.Len(t, recs, 2)
	// the buffer only has room for the last two samples, oldest first
	assert.Equal(t, "2", recs[0].Value)
	assert.Equal(t, "3", recs[1].Value)
}

func TestSampleStopsWhenFullIfConfigured(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 1)
	tl.StopWhenFull = true

	require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(1), nil, nil))
	tl.Sample()
	require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(2), nil, nil))
	tl.Sample()

	recs := tl.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "1", recs[0].Value, "a full stop-when-full buffer never overwrites its single recorded sample")
}

func TestSampleSkippedWhenDisabled(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 5)
	tl.Enabled = false
	tl.Sample()
	assert.Equal(t, 0, tl.RecordCount())
}

func TestSampleCapturesStatusFlags(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 1)
	tl.Sample()
	recs := tl.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, "0000", recs[0].StatusFlags)
}

func TestValueTextFormatsEachPrimitive(t *testing.T) {
	assert.Equal(t, "1.5", valueText(bactypes.Real(1.5)))
	assert.Equal(t, "2.5", valueText(bactypes.Double(2.5)))
	assert.Equal(t, "7", valueText(bactypes.Unsigned(7)))
	assert.Equal(t, "-3", valueText(bactypes.Signed(-3)))
	assert.Equal(t, "true", valueText(bactypes.Boolean(true)))
	assert.Equal(t, "false", valueText(bactypes.Boolean(false)))
	assert.Equal(t, "4", valueText(bactypes.Enumerated(4)))
	assert.Equal(t, "hi", valueText(bactypes.CharacterString{Value: "hi"}))
}

func TestExportJSONRoundTrip(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 5)
	tl.Sample()

	data, err := tl.ExportJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), jsonFormatTag)
	assert.Contains(t, string(data), `"value":"0"`)
}

func TestExportImportCSVRoundTrip(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 5)
	require.NoError(t, db.Write(id, object.PropPresentValue, bactypes.Real(42), nil, nil))
	tl.Sample()

	csv, err := tl.ExportCSV()
	require.NoError(t, err)

	other := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 2}, db, id, object.PropPresentValue, 5)
	require.NoError(t, other.ImportCSV(csv))
	assert.Equal(t, tl.Records(), other.Records())
}

func TestEngineRegisterKeepsEveryLogType(t *testing.T) {
	db, id := monitoredDB(t)
	polled := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 5)
	polled.Type = LoggingPolled
	covDriven := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 2}, db, id, object.PropPresentValue, 5)
	covDriven.Type = LoggingCOV

	e := NewEngine()
	e.Register(polled)
	e.Register(covDriven)
	assert.Len(t, e.logs, 2)
	assert.Same(t, covDriven, e.Find(covDriven.ID))
}

func TestEngineRunStopsOnContextCancel(t *testing.T) {
	db, id := monitoredDB(t)
	tl := New(bactypes.ObjectID{Type: bactypes.ObjectTrendLog, Instance: 1}, db, id, object.PropPresentValue, 5)
	tl.Interval = 5 * time.Millisecond
	e := NewEngine()
	e.Register(tl)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	e.Run(ctx)

	assert.Greater(t, tl.RecordCount(), 0)
}
