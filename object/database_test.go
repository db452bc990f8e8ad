package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
)

func TestDatabaseAddGetRemove(t *testing.T) {
	db := NewDatabase()
	id := bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 1}
	obj := NewAnalogInput(id, "AI-1", UnitsNoUnits)

	require.NoError(t, db.Add(obj))
	err := db.Add(obj)
	assert.True(t, bacerr.IsProtocol(err, bacerr.ClassObject, bacerr.CodeObjectIdentifierAlreadyExists))

	got, err := db.Get(id)
	require.NoError(t, err)
	assert.Equal(t, obj, got)

	require.NoError(t, db.Remove(id))
	_, err = db.Get(id)
	assert.True(t, bacerr.IsProtocol(err, bacerr.ClassObject, bacerr.CodeUnknownObject))
}

func TestDatabaseCannotRemoveDevice(t *testing.T) {
	db := NewDatabase()
	devID := bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1}
	d := NewDevice(devID, "Device-1", "Acme", 1, "1.0")
	db.SetDevice(d)

	err := db.Remove(devID)
	assert.True(t, bacerr.IsProtocol(err, bacerr.ClassObject, bacerr.CodeObjectDeletionNotPermitted))
}

func TestDatabaseListSortedByTypeThenInstance(t *testing.T) {
	db := NewDatabase()
	id1 := bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 5}
	id2 := bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 1}
	id3 := bactypes.ObjectID{Type: bactypes.ObjectBinaryInput, Instance: 1}
	require.NoError(t, db.Add(NewAnalogInput(id1, "a", UnitsNoUnits)))
	require.NoError(t, db.Add(NewAnalogInput(id2, "b", UnitsNoUnits)))
	require.NoError(t, db.Add(NewBinaryInput(id3, "c")))

	list := db.List()
	require.Len(t, list, 3)
	assert.Equal(t, id2, list[0])
	assert.Equal(t, id1, list[1])
	assert.Equal(t, id3, list[2])
}

func TestDatabaseWriteFansOutToCallbacks(t *testing.T) {
	db := NewDatabase()
	id := bactypes.ObjectID{Type: bactypes.ObjectAnalogValue, Instance: 1}
	require.NoError(t, db.Add(NewAnalogValue(id, "AV-1", UnitsNoUnits)))

	var gotID bactypes.ObjectID
	var gotProp PropertyID
	db.OnChange(func(oid bactypes.ObjectID, prop PropertyID) {
		gotID = oid
		gotProp = prop
	})

	require.NoError(t, db.Write(id, PropPresentValue, bactypes.Real(7), nil, nil))
	assert.Equal(t, id, gotID)
	assert.Equal(t, PropPresentValue, gotProp)

	v, err := db.Read(id, PropPresentValue, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Real(7), v)
}

func TestDatabaseAddBumpsDeviceRevision(t *testing.T) {
	db := NewDatabase()
	devID := bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1}
	d := NewDevice(devID, "Device-1", "Acme", 1, "1.0")
	db.SetDevice(d)

	aiID := bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 1}
	require.NoError(t, db.Add(NewAnalogInput(aiID, "AI-1", UnitsNoUnits)))

	rev, err := d.Read(PropDatabaseRevision, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Unsigned(1), rev)
}
