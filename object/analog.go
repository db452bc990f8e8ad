package object

import "github.com/bacgo/bacnet/bactypes"

// AnalogUnits mirrors the BACnet Engineering-Units enumeration values used
// by the analog object types; only the handful exercised by tests and
// demos are named here.
type AnalogUnits uint32

const (
	UnitsDegreesCelsius AnalogUnits = 62
	UnitsPercent        AnalogUnits = 98
	UnitsNoUnits        AnalogUnits = 95
)

func analogInputDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:     {ID: PropPresentValue, Access: ReadOnly, Required: true, Default: bactypes.Real(0)},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropOutOfService:     {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropUnits:            {ID: PropUnits, Access: ReadWrite, Required: true, Default: bactypes.Enumerated(UnitsNoUnits)},
		PropCOVIncrement:     {ID: PropCOVIncrement, Access: ReadWrite, Required: false, Default: bactypes.Real(1)},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
		PropReliability:      {ID: PropReliability, Access: ReadOnly, Required: false, Default: bactypes.Enumerated(0)},
	}
}

// NewAnalogInput builds an Analog Input object. Present_Value is read-only
// at the protocol boundary; callers update it via SetRaw from the device's
// own I/O loop.
func NewAnalogInput(id bactypes.ObjectID, name string, units AnalogUnits) *Base {
	b := NewBase(id, name, analogInputDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropUnits, bactypes.Enumerated(units))
	b.SetRaw(PropPresentValue, bactypes.Real(0))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	return b
}

func analogValueDefs(commandable bool) map[PropertyID]*PropertyDef {
	access := ReadWrite
	if commandable {
		access = Commandable
	}
	defs := analogInputDefs()
	defs[PropPresentValue] = &PropertyDef{ID: PropPresentValue, Access: access, Required: true, Default: bactypes.Real(0)}
	if commandable {
		defs[PropPriorityArray] = &PropertyDef{ID: PropPriorityArray, Access: ReadOnly, Required: true}
		defs[PropRelinquishDefault] = &PropertyDef{ID: PropRelinquishDefault, Access: ReadWrite, Required: true, Default: bactypes.Real(0)}
	}
	return defs
}

// NewAnalogOutput builds a commandable Analog Output object (16-level
// priority array, invariant C1/C2).
func NewAnalogOutput(id bactypes.ObjectID, name string, units AnalogUnits, relinquishDefault bactypes.Real) *Base {
	b := NewBase(id, name, analogValueDefs(true))
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropUnits, bactypes.Enumerated(units))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	b.SetRaw(PropRelinquishDefault, relinquishDefault)
	b.EnableCommandable(relinquishDefault)
	return b
}

// NewAnalogValue builds a writable (non-commandable) Analog Value object.
func NewAnalogValue(id bactypes.ObjectID, name string, units AnalogUnits) *Base {
	b := NewBase(id, name, analogValueDefs(false))
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropUnits, bactypes.Enumerated(units))
	b.SetRaw(PropPresentValue, bactypes.Real(0))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	return b
}
