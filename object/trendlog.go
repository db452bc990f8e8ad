package object

import "github.com/bacgo/bacnet/bactypes"

// LoggingType enumeration values for the Logging_Type property.
const (
	LoggingTypePolled    uint32 = 0
	LoggingTypeCOV       uint32 = 1
	LoggingTypeTriggered uint32 = 2
)

func trendLogDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropLogEnable:        {ID: PropLogEnable, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropStartTime:        {ID: PropStartTime, Access: ReadWrite, Required: false},
		PropStopTime:         {ID: PropStopTime, Access: ReadWrite, Required: false},
		PropLogInterval:      {ID: PropLogInterval, Access: ReadWrite, Required: false, Default: bactypes.Unsigned(6000)},
		PropLoggingType:      {ID: PropLoggingType, Access: ReadOnly, Required: true, Default: bactypes.Enumerated(LoggingTypePolled)},
		PropAlignIntervals:   {ID: PropAlignIntervals, Access: ReadWrite, Required: false, Default: bactypes.Boolean(false)},
		PropIntervalOffset:   {ID: PropIntervalOffset, Access: ReadWrite, Required: false, Default: bactypes.Unsigned(0)},
		PropTrigger:          {ID: PropTrigger, Access: ReadWrite, Required: false, Default: bactypes.Boolean(false)},
		PropStopWhenFull:     {ID: PropStopWhenFull, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropBufferSize:       {ID: PropBufferSize, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(0)},
		PropLogBuffer:        {ID: PropLogBuffer, Access: ReadOnly, Required: true, IsArray: true},
		PropRecordCount:      {ID: PropRecordCount, Access: ReadWrite, Required: true, Default: bactypes.Unsigned(0)},
		PropTotalRecordCount: {ID: PropTotalRecordCount, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(0)},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// NewTrendLog builds the database-visible Trend Log object. The trendlog
// engine owns the actual record buffer and does not write into this object,
// so Record_Count and Total_Record_Count keep their default of 0; the
// application serves ReadRange against the engine's buffer directly.
func NewTrendLog(id bactypes.ObjectID, name string, bufferSize int) *Base {
	b := NewBase(id, name, trendLogDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropLogEnable, bactypes.Boolean(true))
	b.SetRaw(PropBufferSize, bactypes.Unsigned(bufferSize))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	return b
}
