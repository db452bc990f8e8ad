// Package npdu implements the Network-layer Protocol Data Unit codec:
// version byte, control octet, optional source/destination address, hop
// count, and either a network message or an application APDU payload.
package npdu

import (
	"fmt"
)

const ProtocolVersion byte = 1

// Control octet bit layout (ASHRAE 135 clause 6.2.2).
const (
	ctrlNetworkMessage byte = 0x80
	ctrlDestination    byte = 0x20
	ctrlSource         byte = 0x08
	ctrlExpectingReply byte = 0x04
	ctrlPriorityMask   byte = 0x03
)

// Priority is the 2-bit NPDU priority field.
type Priority byte

const (
	PriorityNormal Priority = iota
	PriorityUrgent
	PriorityCritical
	PriorityLifeSafety
)

// NetworkAddress is the DNET/MAC or SNET/MAC pair carried when the NPDU has
// a destination or source field.
type NetworkAddress struct {
	Net uint16
	Mac []byte
}

// NPDU is the decoded network-layer header plus its payload, which is
// either a network message (IsNetworkMessage true) or raw APDU bytes.
type NPDU struct {
	IsNetworkMessage bool
	ExpectingReply   bool
	Priority         Priority

	Destination *NetworkAddress
	Source      *NetworkAddress
	HopCount    byte // valid when Destination != nil

	MessageType byte   // valid when IsNetworkMessage
	VendorID    uint16 // valid when IsNetworkMessage && MessageType >= 0x80
	MessageData []byte // valid when IsNetworkMessage

	APDU []byte // valid when !IsNetworkMessage
}

// Network message types relevant to a non-router.
const (
	MsgWhoIsRouterToNetwork  byte = 0x00
	MsgIAmRouterToNetwork    byte = 0x01
	MsgWhatIsNetworkNumber   byte = 0x12
	MsgNetworkNumberIs       byte = 0x13
)

// Encode serializes the NPDU. The buffer size is computed up front so the
// header is written into one pre-sized slice.
func (n NPDU) Encode() []byte {
	size := 2 // version + control
	if n.Destination != nil {
		size += 2 + 1 + len(n.Destination.Mac) // DNET + DLEN + mac
	}
	if n.Source != nil {
		size += 2 + 1 + len(n.Source.Mac)
	}
	if n.Destination != nil {
		size += 1 // hop count
	}
	if n.IsNetworkMessage {
		size += 1 + len(n.MessageData)
		if n.MessageType >= 0x80 {
			size += 2
		}
	} else {
		size += len(n.APDU)
	}

	buf := make([]byte, size)
	buf[0] = ProtocolVersion

	ctrl := byte(n.Priority) & ctrlPriorityMask
	if n.IsNetworkMessage {
		ctrl |= ctrlNetworkMessage
	}
	if n.Destination != nil {
		ctrl |= ctrlDestination
	}
	if n.Source != nil {
		ctrl |= ctrlSource
	}
	if n.ExpectingReply {
		ctrl |= ctrlExpectingReply
	}
	buf[1] = ctrl

	i := 2
	if n.Destination != nil {
		buf[i] = byte(n.Destination.Net >> 8)
		buf[i+1] = byte(n.Destination.Net)
		buf[i+2] = byte(len(n.Destination.Mac))
		i += 3
		i += copy(buf[i:], n.Destination.Mac)
	}
	if n.Source != nil {
		buf[i] = byte(n.Source.Net >> 8)
		buf[i+1] = byte(n.Source.Net)
		buf[i+2] = byte(len(n.Source.Mac))
		i += 3
		i += copy(buf[i:], n.Source.Mac)
	}
	if n.Destination != nil {
		buf[i] = n.HopCount
		i++
	}

	if n.IsNetworkMessage {
		buf[i] = n.MessageType
		i++
		if n.MessageType >= 0x80 {
			buf[i] = byte(n.VendorID >> 8)
			buf[i+1] = byte(n.VendorID)
			i += 2
		}
		i += copy(buf[i:], n.MessageData)
	} else {
		copy(buf[i:], n.APDU)
	}
	return buf
}

// Decode parses an NPDU. Protocol-version must be 1; all length fields are
// bounds-checked; SNET=0 and SNET=0xFFFF are rejected.
func Decode(buf []byte) (NPDU, error) {
	if len(buf) < 2 {
		return NPDU{}, fmt.Errorf("npdu: buffer too short for header")
	}
	if buf[0] != ProtocolVersion {
		return NPDU{}, fmt.Errorf("npdu: unsupported protocol version %d", buf[0])
	}
	ctrl := buf[1]
	n := NPDU{
		IsNetworkMessage: ctrl&ctrlNetworkMessage != 0,
		ExpectingReply:   ctrl&ctrlExpectingReply != 0,
		Priority:         Priority(ctrl & ctrlPriorityMask),
	}
	i := 2
	if ctrl&ctrlDestination != 0 {
		if len(buf) < i+3 {
			return NPDU{}, fmt.Errorf("npdu: short buffer reading destination")
		}
		dnet := uint16(buf[i])<<8 | uint16(buf[i+1])
		dlen := int(buf[i+2])
		i += 3
		if len(buf) < i+dlen {
			return NPDU{}, fmt.Errorf("npdu: short buffer reading destination mac")
		}
		mac := append([]byte{}, buf[i:i+dlen]...)
		i += dlen
		n.Destination = &NetworkAddress{Net: dnet, Mac: mac}
	}
	if ctrl&ctrlSource != 0 {
		if len(buf) < i+3 {
			return NPDU{}, fmt.Errorf("npdu: short buffer reading source")
		}
		snet := uint16(buf[i])<<8 | uint16(buf[i+1])
		slen := int(buf[i+2])
		i += 3
		if snet == 0 || snet == 0xFFFF {
			return NPDU{}, fmt.Errorf("npdu: invalid source network number %d", snet)
		}
		if len(buf) < i+slen {
			return NPDU{}, fmt.Errorf("npdu: short buffer reading source mac")
		}
		mac := append([]byte{}, buf[i:i+slen]...)
		i += slen
		n.Source = &NetworkAddress{Net: snet, Mac: mac}
	}
	if n.Destination != nil {
		if len(buf) < i+1 {
			return NPDU{}, fmt.Errorf("npdu: short buffer reading hop count")
		}
		n.HopCount = buf[i]
		i++
	} else {
		// T5: when destination is absent, hop count defaults to 255.
		n.HopCount = 255
	}

	if n.IsNetworkMessage {
		if len(buf) < i+1 {
			return NPDU{}, fmt.Errorf("npdu: short buffer reading message type")
		}
		n.MessageType = buf[i]
		i++
		if n.MessageType >= 0x80 {
			if len(buf) < i+2 {
				return NPDU{}, fmt.Errorf("npdu: short buffer reading vendor id")
			}
			n.VendorID = uint16(buf[i])<<8 | uint16(buf[i+1])
			i += 2
		}
		n.MessageData = append([]byte{}, buf[i:]...)
	} else {
		n.APDU = append([]byte{}, buf[i:]...)
	}
	return n, nil
}

// NoRouting reports whether a What-Is-Network-Number or Network-Number-Is
// message carries SNET/SADR or DNET/DADR, which must never be routed.
func (n NPDU) NoRouting() bool {
	return n.Source != nil || n.Destination != nil
}
