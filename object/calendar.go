package object

import "github.com/bacgo/bacnet/bactypes"

func calendarDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:     {ID: PropPresentValue, Access: ReadOnly, Required: true, Default: bactypes.Boolean(false)},
		PropDateList:         {ID: PropDateList, Access: ReadWrite, Required: true, IsArray: true},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// NewCalendar builds a Calendar object. The schedule engine evaluates its
// Date_List each cycle and updates Present_Value via SetRaw.
func NewCalendar(id bactypes.ObjectID, name string) *Base {
	b := NewBase(id, name, calendarDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropPresentValue, bactypes.Boolean(false))
	b.SetRaw(PropDateList, ValueList{})
	return b
}

func scheduleDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier:  {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:        {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:        {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:      {ID: PropPresentValue, Access: ReadOnly, Required: true},
		PropEffectivePeriod:   {ID: PropEffectivePeriod, Access: ReadWrite, Required: true, IsArray: true},
		PropWeeklySchedule:    {ID: PropWeeklySchedule, Access: ReadWrite, Required: false, IsArray: true},
		PropExceptionSchedule: {ID: PropExceptionSchedule, Access: ReadWrite, Required: false, IsArray: true},
		PropScheduleDefault:   {ID: PropScheduleDefault, Access: ReadWrite, Required: true},
		PropListOfObjectPropertyReferences: {ID: PropListOfObjectPropertyReferences, Access: ReadWrite, Required: true, IsArray: true},
		PropPriorityForWriting: {ID: PropPriorityForWriting, Access: ReadWrite, Required: true, Default: bactypes.Unsigned(16)},
		PropStatusFlags:        {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropOutOfService:       {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropDescription:        {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// NewSchedule builds a Schedule object. The schedule engine writes the
// resolved value into Present_Value each cycle; wire the engine's
// schedule.Schedule.Target to this object's Base.
func NewSchedule(id bactypes.ObjectID, name string, scheduleDefault bactypes.Value) *Base {
	b := NewBase(id, name, scheduleDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropScheduleDefault, scheduleDefault)
	b.SetRaw(PropPriorityForWriting, bactypes.Unsigned(16))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	b.SetRaw(PropListOfObjectPropertyReferences, ValueList{})
	return b
}
