package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bacgo/bacnet/bactypes"
)

func TestNewDeviceDefaults(t *testing.T) {
	id := bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1}
	d := NewDevice(id, "Device-1", "Acme", 9, "1.0")

	v, err := d.Read(PropVendorName, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.CharacterString{Value: "Acme"}, v)

	v, err = d.Read(PropDatabaseRevision, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Unsigned(0), v)
}

func TestDeviceBumpRevision(t *testing.T) {
	id := bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1}
	d := NewDevice(id, "Device-1", "Acme", 9, "1.0")
	d.BumpRevision()
	d.BumpRevision()
	v, err := d.Read(PropDatabaseRevision, nil)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Unsigned(2), v)
}

func TestDeviceObjectListVirtualArray(t *testing.T) {
	db := NewDatabase()
	id := bactypes.ObjectID{Type: bactypes.ObjectDevice, Instance: 1}
	d := NewDevice(id, "Device-1", "Acme", 9, "1.0")
	db.SetDevice(d)

	aiID := bactypes.ObjectID{Type: bactypes.ObjectAnalogInput, Instance: 1}
	require.NoError(t, db.Add(NewAnalogInput(aiID, "AI-1", UnitsNoUnits)))

	var idx uint32 = 0
	count, err := d.Read(PropObjectList, &idx)
	require.NoError(t, err)
	assert.Equal(t, bactypes.Unsigned(2), count) // device itself + the analog input
}
