package object

import "github.com/bacgo/bacnet/bactypes"

// Network_Type enumeration values for the Network Port object.
const (
	NetworkTypeEthernet uint32 = 0
	NetworkTypeIPv4     uint32 = 5
	NetworkTypeIPv6     uint32 = 7
	NetworkTypeSC       uint32 = 11
)

func networkPortDefs() map[PropertyID]*PropertyDef {
	return map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropReliability:      {ID: PropReliability, Access: ReadOnly, Required: true, Default: bactypes.Enumerated(0)},
		PropOutOfService:     {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropNetworkType:      {ID: PropNetworkType, Access: ReadOnly, Required: true},
		PropNetworkNumber:    {ID: PropNetworkNumber, Access: ReadWrite, Required: true, Default: bactypes.Unsigned(0)},
		PropMACAddress:       {ID: PropMACAddress, Access: ReadOnly, Required: true},
		PropAPDULength:       {ID: PropAPDULength, Access: ReadOnly, Required: true},
		PropLinkSpeed:        {ID: PropLinkSpeed, Access: ReadOnly, Required: false, Default: bactypes.Real(0)},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
}

// NewNetworkPort builds a Network Port object describing one of the
// device's datalink bindings.
func NewNetworkPort(id bactypes.ObjectID, name string, networkType uint32, mac []byte, maxAPDU int) *Base {
	b := NewBase(id, name, networkPortDefs())
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropNetworkType, bactypes.Enumerated(networkType))
	b.SetRaw(PropMACAddress, bactypes.OctetString(mac))
	b.SetRaw(PropAPDULength, bactypes.Unsigned(maxAPDU))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	return b
}
