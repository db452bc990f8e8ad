// Package object implements the polymorphic object model and database: a
// tagged-variant Object per BACnet object type, each with a static
// property-definition table, commandable priority arrays, and the central
// Read/Write entry points that enforce access control and commandable
// semantics.
package object

import "github.com/bacgo/bacnet/bactypes"

// Access names the read/write permission a property carries.
type Access int

const (
	ReadOnly Access = iota
	ReadWrite
	WriteOnly
	Commandable
)

// PropertyDef is the static, per-object-type definition of one property:
// its datatype marker (via a zero Value of the right dynamic type),
// access mode, required flag, and default.
type PropertyDef struct {
	ID       PropertyID
	Access   Access
	Required bool
	Default  bactypes.Value
	IsArray  bool
}

// PropertyID is the BACnet property-identifier enumeration (ASHRAE 135
// clause 21), covering the properties this port's object types expose.
type PropertyID uint32

const (
	PropAckedTransitions PropertyID = 0
	PropAckRequired      PropertyID = 1
	PropActiveText       PropertyID = 4
	PropAPDUTimeout      PropertyID = 11
	PropNumberOfAPDURetries PropertyID = 73
	PropDatabaseRevision PropertyID = 155
	PropMaxAPDULength    PropertyID = 62
	PropSegmentationSupported PropertyID = 107
	PropSystemStatus     PropertyID = 112
	PropCOVIncrement     PropertyID = 22
	PropDateList         PropertyID = 23
	PropDescription      PropertyID = 28
	PropDeviceType       PropertyID = 31
	PropEffectivePeriod  PropertyID = 32
	PropExceptionSchedule PropertyID = 38
	PropArchive          PropertyID = 13
	PropFileAccessMethod PropertyID = 41
	PropFileSize         PropertyID = 42
	PropFileType         PropertyID = 43
	PropModificationDate PropertyID = 71
	PropReadOnly         PropertyID = 99
	PropFirmwareRevision PropertyID = 44
	PropHighLimit        PropertyID = 45
	PropInactiveText     PropertyID = 46
	PropListOfObjectPropertyReferences PropertyID = 54
	PropLogBuffer        PropertyID = 131
	PropLogEnable        PropertyID = 133
	PropLogInterval      PropertyID = 135
	PropLoggingType      PropertyID = 197
	PropLowLimit         PropertyID = 59
	PropMaxPresValue     PropertyID = 65
	PropMinPresValue     PropertyID = 69
	PropMinimumOffTime   PropertyID = 66
	PropMinimumOnTime    PropertyID = 67
	PropModelName        PropertyID = 70
	PropNumberOfStates   PropertyID = 74
	PropObjectIdentifier PropertyID = 75
	PropObjectList       PropertyID = 76
	PropObjectName       PropertyID = 77
	PropObjectType       PropertyID = 79
	PropOutOfService     PropertyID = 81
	PropPolarity         PropertyID = 84
	PropPresentValue     PropertyID = 85
	PropPriorityArray    PropertyID = 87
	PropPriorityForWriting PropertyID = 88
	PropSetpoint         PropertyID = 108
	PropControlledVariableReference  PropertyID = 19
	PropManipulatedVariableReference PropertyID = 60
	PropMACAddress       PropertyID = 423
	PropAPDULength       PropertyID = 399
	PropNetworkNumber    PropertyID = 425
	PropNetworkType      PropertyID = 427
	PropLinkSpeed        PropertyID = 420
	PropProtocolVersion  PropertyID = 98
	PropRecordCount      PropertyID = 141
	PropReliability      PropertyID = 103
	PropRelinquishDefault PropertyID = 104
	PropScheduleDefault  PropertyID = 174
	PropStartTime        PropertyID = 142
	PropStateText        PropertyID = 110
	PropStatusFlags      PropertyID = 111
	PropStopTime         PropertyID = 143
	PropStopWhenFull     PropertyID = 144
	PropTotalRecordCount PropertyID = 145
	PropTrigger          PropertyID = 205
	PropUnits            PropertyID = 117
	PropUpdateInterval   PropertyID = 118
	PropVendorIdentifier PropertyID = 120
	PropVendorName       PropertyID = 121
	PropWeeklySchedule   PropertyID = 123
	PropBufferSize       PropertyID = 126
	PropAlignIntervals   PropertyID = 193
	PropIntervalOffset   PropertyID = 195
)

// StatusFlags is the 4-bit Status_Flags bit string every object carries:
// in-alarm, fault, overridden, out-of-service.
type StatusFlags struct {
	InAlarm      bool
	Fault        bool
	Overridden   bool
	OutOfService bool
}

func (s StatusFlags) ToBitString() bactypes.BitString {
	return bactypes.NewBitString(s.InAlarm, s.Fault, s.Overridden, s.OutOfService)
}
