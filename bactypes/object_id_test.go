package bactypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectIDEncodeDecode(t *testing.T) {
	id := ObjectID{Type: ObjectAnalogInput, Instance: 12345}
	enc := id.Encode()
	got := DecodeObjectID(enc)
	assert.Equal(t, id, got)
}

func TestObjectIDEncodeMasksInstance(t *testing.T) {
	id := ObjectID{Type: ObjectDevice, Instance: InstanceMask + 100}
	enc := id.Encode()
	got := DecodeObjectID(enc)
	assert.Equal(t, ObjectDevice, got.Type)
	assert.Equal(t, uint32(99), got.Instance)
}

func TestObjectIDEqual(t *testing.T) {
	a := ObjectID{Type: ObjectBinaryOutput, Instance: 1}
	b := ObjectID{Type: ObjectBinaryOutput, Instance: 1}
	c := ObjectID{Type: ObjectBinaryOutput, Instance: 2}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestObjectTypeString(t *testing.T) {
	assert.Equal(t, "device", ObjectDevice.String())
	assert.Equal(t, "analog-input", ObjectAnalogInput.String())
	assert.Equal(t, "object-type-9999", ObjectType(9999).String())
}

func TestObjectIDString(t *testing.T) {
	id := ObjectID{Type: ObjectAnalogOutput, Instance: 7}
	assert.Equal(t, "analog-output:7", id.String())
}
