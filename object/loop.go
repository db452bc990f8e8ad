package object

import "github.com/bacgo/bacnet/bactypes"

func loopDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:     {ID: PropPresentValue, Access: ReadOnly, Required: true, Default: bactypes.Real(0)},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropOutOfService:     {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropSetpoint:         {ID: PropSetpoint, Access: ReadWrite, Required: true, Default: bactypes.Real(0)},
		PropControlledVariableReference:  {ID: PropControlledVariableReference, Access: ReadWrite, Required: true},
		PropManipulatedVariableReference: {ID: PropManipulatedVariableReference, Access: ReadWrite, Required: true},
		PropUnits:            {ID: PropUnits, Access: ReadWrite, Required: false, Default: bactypes.Enumerated(UnitsNoUnits)},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// NewLoop builds a Loop object: the control-loop tuning itself happens in
// the application (the stack stores setpoint and references, it does not
// run a PID).
func NewLoop(id bactypes.ObjectID, name string, setpoint bactypes.Real) *Base {
	b := NewBase(id, name, loopDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropPresentValue, bactypes.Real(0))
	b.SetRaw(PropSetpoint, setpoint)
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	return b
}
