package bacipv6

import "fmt"

// BVLCType is the fixed first byte of every BACnet/IPv6 BVLC message
// (Annex U.1, distinct from BACnet/IP's 0x81).
const BVLCType byte = 0x82

// BVLC function codes relevant to a non-BBMD, non-foreign-device node
// (Annex U.1).
const (
	FuncOriginalUnicastNPDU           byte = 0x0b
	FuncOriginalBroadcastNPDU         byte = 0x0c
	FuncAddressResolution             byte = 0x03
	FuncAddressResolutionAck          byte = 0x04
	FuncRegisterForeignDevice         byte = 0x09
	FuncDeleteForeignDeviceTableEntry byte = 0x0a
)

// encodeOriginalUnicast writes a 7-byte header (type, function, 2-byte
// length, 3-byte source VMAC) followed by the NPDU.
func encodeOriginalUnicast(npduBytes []byte, sourceMac []byte) []byte {
	return encodeWithSource(FuncOriginalUnicastNPDU, npduBytes, sourceMac)
}

func encodeOriginalBroadcast(npduBytes []byte, sourceMac []byte) []byte {
	return encodeWithSource(FuncOriginalBroadcastNPDU, npduBytes, sourceMac)
}

func encodeWithSource(function byte, npduBytes []byte, sourceMac []byte) []byte {
	total := 4 + 3 + len(npduBytes)
	out := make([]byte, 4, total)
	out[0] = BVLCType
	out[1] = function
	out[2] = byte(total >> 8)
	out[3] = byte(total)
	out = append(out, sourceMac...)
	return append(out, npduBytes...)
}

// decodeBVLC parses a BVLC frame and returns the enclosed NPDU bytes plus
// the sender's 3-byte VMAC. Only Original-Unicast-NPDU and
// Original-Broadcast-NPDU frames are accepted; any other function is an
// error.
func decodeBVLC(buf []byte) ([]byte, []byte, error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("bacipv6: bvlc buffer too short")
	}
	if buf[0] != BVLCType {
		return nil, nil, fmt.Errorf("bacipv6: not a BACnet/IPv6 BVLC message (type 0x%02x)", buf[0])
	}
	length := int(buf[2])<<8 | int(buf[3])
	if length != len(buf) {
		return nil, nil, fmt.Errorf("bacipv6: bvlc length field %d does not match buffer length %d", length, len(buf))
	}
	switch buf[1] {
	case FuncOriginalUnicastNPDU, FuncOriginalBroadcastNPDU:
		if len(buf) < 7 {
			return nil, nil, fmt.Errorf("bacipv6: short original-npdu frame")
		}
		mac := append([]byte{}, buf[4:7]...)
		return append([]byte{}, buf[7:]...), mac, nil
	default:
		return nil, nil, fmt.Errorf("bacipv6: unhandled bvlc function 0x%02x", buf[1])
	}
}
