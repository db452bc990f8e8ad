package object

import "github.com/bacgo/bacnet/bactypes"

// basicDefs is the property table shared by the object types this port
// represents without type-specific behavior (life-safety, channel,
// elevator-group/lift/escalator): identification, an enumerated
// present-value, and the common status properties. Commandable and COV
// plumbing is generic across types, so nothing further is needed for
// these to participate in reads, writes, and subscriptions.
func basicDefs(presentValueWritable bool) map[PropertyID]*PropertyDef {
	access := ReadOnly
	if presentValueWritable {
		access = ReadWrite
	}
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:     {ID: PropPresentValue, Access: access, Required: true, Default: bactypes.Enumerated(0)},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropReliability:      {ID: PropReliability, Access: ReadOnly, Required: false, Default: bactypes.Enumerated(0)},
		PropOutOfService:     {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

func seedBasic(b *Base, id bactypes.ObjectID, name string) *Base {
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropPresentValue, bactypes.Enumerated(0))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	return b
}

// NewLifeSafetyPoint builds a Life Safety Point object.
func NewLifeSafetyPoint(id bactypes.ObjectID, name string) *Base {
	return seedBasic(NewBase(id, name, basicDefs(false)), id, name)
}

// NewLifeSafetyZone builds a Life Safety Zone object.
func NewLifeSafetyZone(id bactypes.ObjectID, name string) *Base {
	return seedBasic(NewBase(id, name, basicDefs(false)), id, name)
}

// NewChannel builds a Channel object: a writable value fan-out whose
// member list lives in List_Of_Object_Property_References.
func NewChannel(id bactypes.ObjectID, name string) *Base {
	defs := basicDefs(true)
	defs[PropListOfObjectPropertyReferences] = &PropertyDef{ID: PropListOfObjectPropertyReferences, Access: ReadWrite, Required: true, IsArray: true}
	b := seedBasic(NewBase(id, name, defs), id, name)
	b.SetRaw(PropListOfObjectPropertyReferences, ValueList{})
	return b
}

// NewElevatorGroup builds an Elevator Group object.
func NewElevatorGroup(id bactypes.ObjectID, name string) *Base {
	return seedBasic(NewBase(id, name, basicDefs(false)), id, name)
}

// NewLift builds a Lift object.
func NewLift(id bactypes.ObjectID, name string) *Base {
	return seedBasic(NewBase(id, name, basicDefs(false)), id, name)
}

// NewEscalator builds an Escalator object.
func NewEscalator(id bactypes.ObjectID, name string) *Base {
	return seedBasic(NewBase(id, name, basicDefs(false)), id, name)
}
