package object

import "github.com/bacgo/bacnet/bactypes"

func multiStateDefs(commandable bool) map[PropertyID]*PropertyDef {
	access := ReadWrite
	if commandable {
		access = Commandable
	}
	defs := map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:     {ID: PropPresentValue, Access: access, Required: true, Default: bactypes.Unsigned(1)},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropOutOfService:     {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropNumberOfStates:   {ID: PropNumberOfStates, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(1)},
		PropStateText:        {ID: PropStateText, Access: ReadWrite, Required: false, IsArray: true},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
	if commandable {
		defs[PropPriorityArray] = &PropertyDef{ID: PropPriorityArray, Access: ReadOnly, Required: true}
		defs[PropRelinquishDefault] = &PropertyDef{ID: PropRelinquishDefault, Access: ReadWrite, Required: true, Default: bactypes.Unsigned(1)}
	}
	return defs
}

func seedMultiStateCommon(b *Base, id bactypes.ObjectID, name string, numberOfStates int, stateText []string) {
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	b.SetRaw(PropNumberOfStates, bactypes.Unsigned(numberOfStates))
	if len(stateText) > 0 {
		list := make(ValueList, len(stateText))
		for i, s := range stateText {
			list[i] = bactypes.CharacterString{Value: s}
		}
		b.SetRaw(PropStateText, list)
	}
}

// NewMultiStateInput builds a Multi-State Input object. Present_Value is
// read-only at the protocol boundary; 1-based state numbering per ASHRAE
// 135 clause 12.18.
func NewMultiStateInput(id bactypes.ObjectID, name string, numberOfStates int, stateText []string) *Base {
	b := NewBase(id, name, multiStateDefs(false))
	b.defs[PropPresentValue].Access = ReadOnly
	seedMultiStateCommon(b, id, name, numberOfStates, stateText)
	b.SetRaw(PropPresentValue, bactypes.Unsigned(1))
	return b
}

// NewMultiStateOutput builds a commandable Multi-State Output object.
func NewMultiStateOutput(id bactypes.ObjectID, name string, numberOfStates int, stateText []string) *Base {
	b := NewBase(id, name, multiStateDefs(true))
	seedMultiStateCommon(b, id, name, numberOfStates, stateText)
	b.SetRaw(PropRelinquishDefault, bactypes.Unsigned(1))
	b.EnableCommandable(bactypes.Unsigned(1))
	return b
}

// NewMultiStateValue builds a writable (non-commandable) Multi-State Value
// object.
func NewMultiStateValue(id bactypes.ObjectID, name string, numberOfStates int, stateText []string) *Base {
	b := NewBase(id, name, multiStateDefs(false))
	seedMultiStateCommon(b, id, name, numberOfStates, stateText)
	b.SetRaw(PropPresentValue, bactypes.Unsigned(1))
	return b
}
