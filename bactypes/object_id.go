// Package bactypes holds the value types shared by every layer of the
// stack: the BACnet ObjectIdentifier, network Address, and the primitive
// value sum type that the tag/primitive codecs produce and consume.
package bactypes

import "fmt"

// ObjectType is the BACnet object-type enumeration (ASHRAE 135 clause 21).
type ObjectType uint16

const (
	ObjectAnalogInput ObjectType = iota
	ObjectAnalogOutput
	ObjectAnalogValue
	ObjectBinaryInput
	ObjectBinaryOutput
	ObjectBinaryValue
	ObjectCalendar
	ObjectCommand
	ObjectDevice
	ObjectEventEnrollment
	ObjectFile
	ObjectGroup
	ObjectLoop
	ObjectMultiStateInput
	ObjectMultiStateOutput
	ObjectNotificationClass
	ObjectProgram
	ObjectSchedule
	ObjectAveraging
	ObjectMultiStateValue
	ObjectTrendLog
	ObjectLifeSafetyPoint
	ObjectLifeSafetyZone
	ObjectAccumulator
	ObjectPulseConverter
	ObjectEventLog
	ObjectGlobalGroup
	ObjectTrendLogMultiple
	ObjectLoadControl
	ObjectStructuredView
	ObjectAccessDoor
	ObjectTimer
	ObjectAccessCredential
	ObjectAccessPoint
	ObjectAccessRights
	ObjectAccessUser
	ObjectAccessZone
	ObjectCredentialDataInput
	ObjectNetworkSecurity
	ObjectBitstringValue
	ObjectCharacterStringValue
	ObjectDatePatternValue
	ObjectDateValue
	ObjectDatetimePatternValue
	ObjectDatetimeValue
	ObjectIntegerValue
	ObjectLargeAnalogValue
	ObjectOctetstringValue
	ObjectPositiveIntegerValue
	ObjectTimePatternValue
	ObjectTimeValue
	ObjectNotificationForwarder
	ObjectAlertEnrollment
	ObjectChannel
	ObjectLightingOutput
	ObjectBinaryLightingOutput
	ObjectNetworkPort
	ObjectElevatorGroup
	ObjectEscalator
	ObjectLift
	ObjectStagingValue
	ObjectAuditLog
	ObjectAuditReporter
	ObjectColorObject
	ObjectColorTemperature
)

var objectTypeNames = map[ObjectType]string{
	ObjectAnalogInput: "analog-input", ObjectAnalogOutput: "analog-output",
	ObjectAnalogValue: "analog-value", ObjectBinaryInput: "binary-input",
	ObjectBinaryOutput: "binary-output", ObjectBinaryValue: "binary-value",
	ObjectCalendar: "calendar", ObjectCommand: "command", ObjectDevice: "device",
	ObjectEventEnrollment: "event-enrollment", ObjectFile: "file",
	ObjectGroup: "group", ObjectLoop: "loop",
	ObjectMultiStateInput: "multi-state-input", ObjectMultiStateOutput: "multi-state-output",
	ObjectNotificationClass: "notification-class", ObjectProgram: "program",
	ObjectSchedule: "schedule", ObjectAveraging: "averaging",
	ObjectMultiStateValue: "multi-state-value", ObjectTrendLog: "trend-log",
	ObjectLifeSafetyPoint: "life-safety-point", ObjectLifeSafetyZone: "life-safety-zone",
	ObjectAccumulator: "accumulator", ObjectPulseConverter: "pulse-converter",
	ObjectNetworkPort: "network-port", ObjectElevatorGroup: "elevator-group",
	ObjectEscalator: "escalator", ObjectLift: "lift", ObjectChannel: "channel",
}

// String returns the ASHRAE 135 property-name spelling of the object type,
// or "object-type-N" for values this port does not name individually.
func (t ObjectType) String() string {
	if n, ok := objectTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("object-type-%d", uint16(t))
}

// ObjectID is the (object-type, instance-number) pair identifying every
// BACnet object. Instance numbers are 22 bits unsigned (0..4194302, with 4194303 reserved
// as a wildcard in some services).
type ObjectID struct {
	Type     ObjectType
	Instance uint32
}

const InstanceMask = 0x3FFFFF

// Encode packs the identifier into the 32-bit wire form
// (type << 22) | (instance & 0x3fffff).
func (o ObjectID) Encode() uint32 {
	return (uint32(o.Type) << 22) | (o.Instance & InstanceMask)
}

// DecodeObjectID unpacks the 32-bit wire form produced by Encode.
func DecodeObjectID(v uint32) ObjectID {
	return ObjectID{Type: ObjectType(v >> 22), Instance: v & InstanceMask}
}

func (o ObjectID) String() string {
	return fmt.Sprintf("%s:%d", o.Type, o.Instance)
}

// Equal reports value equality, satisfying the data model's requirement
// that ObjectIdentifier equality and hashing are by value (Go structs with
// comparable fields already hash/compare by value as map keys).
func (o ObjectID) Equal(other ObjectID) bool {
	return o.Type == other.Type && o.Instance == other.Instance
}
