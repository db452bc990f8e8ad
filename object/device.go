package object

import (
	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
)

func deviceDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier:  {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:        {ID: PropObjectName, Access: ReadWrite, Required: true},
		PropObjectType:        {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropSystemStatus:      {ID: PropSystemStatus, Access: ReadOnly, Required: true, Default: bactypes.Enumerated(0)},
		PropVendorName:        {ID: PropVendorName, Access: ReadOnly, Required: true},
		PropVendorIdentifier:  {ID: PropVendorIdentifier, Access: ReadOnly, Required: true},
		PropModelName:         {ID: PropModelName, Access: ReadOnly, Required: false},
		PropFirmwareRevision:  {ID: PropFirmwareRevision, Access: ReadOnly, Required: true},
		PropProtocolVersion:   {ID: PropProtocolVersion, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(1)},
		PropObjectList:        {ID: PropObjectList, Access: ReadOnly, Required: true, IsArray: true},
		PropMaxAPDULength:     {ID: PropMaxAPDULength, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(1476)},
		PropSegmentationSupported: {ID: PropSegmentationSupported, Access: ReadOnly, Required: true, Default: bactypes.Enumerated(0)},
		PropAPDUTimeout:       {ID: PropAPDUTimeout, Access: ReadWrite, Required: true, Default: bactypes.Unsigned(3000)},
		PropNumberOfAPDURetries: {ID: PropNumberOfAPDURetries, Access: ReadWrite, Required: true, Default: bactypes.Unsigned(3)},
		PropDatabaseRevision:  {ID: PropDatabaseRevision, Access: ReadOnly, Required: true, Default: bactypes.Unsigned(0)},
		PropDescription:       {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// Device is the one mandatory object every BACnet node exposes. Its
// Object_List property is virtual: it is served by walking the owning
// Database rather than from stored state, so the list always reflects the
// current object population.
type Device struct {
	*Base
	db *Database
}

// NewDevice builds a Device object. AttachDatabase must be called once the
// owning Database exists, wiring Object_List to it.
func NewDevice(id bactypes.ObjectID, name, vendorName string, vendorID uint32, firmwareRevision string) *Device {
	b := NewBase(id, name, deviceDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropVendorName, bactypes.CharacterString{Value: vendorName})
	b.SetRaw(PropVendorIdentifier, bactypes.Unsigned(vendorID))
	b.SetRaw(PropFirmwareRevision, bactypes.CharacterString{Value: firmwareRevision})
	return &Device{Base: b}
}

// AttachDatabase wires Object_List to walk db's object population. Called
// once by Database.SetDevice.
func (d *Device) AttachDatabase(db *Database) {
	d.db = db
	d.SetVirtualArray(PropObjectList,
		func() int { return len(db.List()) },
		func(n int) (bactypes.Value, error) {
			list := db.List()
			if n < 1 || n > len(list) {
				return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeInvalidArrayIndex)
			}
			return list[n-1], nil
		},
	)
}

func (d *Device) BumpRevision() {
	rev, _ := d.GetRaw(PropDatabaseRevision)
	u, _ := rev.(bactypes.Unsigned)
	d.SetRaw(PropDatabaseRevision, u+1)
}
