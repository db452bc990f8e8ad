package bacsc

import (
	"encoding/binary"
	"fmt"
)

// BVLC-SC message types relevant to a node's data path (Annex AB.1).
const (
	MsgEncapsulatedNPDU byte = 0x01
	MsgHeartbeatRequest byte = 0x04
	MsgHeartbeatAck     byte = 0x05
)

// Control-octet flags: which optional VMAC fields follow the fixed
// header.
const (
	ctrlOriginPresent byte = 0x08
	ctrlDestPresent   byte = 0x04
)

const vmacLen = 6

// Frame is one decoded BVLC-SC message.
type Frame struct {
	MsgType    byte
	MessageID  uint16
	SourceVMAC []byte // nil when absent
	DestVMAC   []byte // nil means broadcast / hub-addressed
	Payload    []byte
}

// header builds the fixed BVLC-SC header for the given addressing: 16
// bytes for unicast (origin + destination VMAC), 10 bytes for broadcast
// (origin only). These are constant per (source, dest) pair, which is what
// makes the Port's per-destination header cache worthwhile.
func header(msgType byte, sourceVMAC, destVMAC []byte) []byte {
	control := byte(0)
	size := 4
	if sourceVMAC != nil {
		control |= ctrlOriginPresent
		size += vmacLen
	}
	if destVMAC != nil {
		control |= ctrlDestPresent
		size += vmacLen
	}
	out := make([]byte, 4, size)
	out[0] = msgType
	out[1] = control
	binary.BigEndian.PutUint16(out[2:4], 0)
	if sourceVMAC != nil {
		out = append(out, sourceVMAC...)
	}
	if destVMAC != nil {
		out = append(out, destVMAC...)
	}
	return out
}

// DecodeFrame parses a BVLC-SC message.
func DecodeFrame(buf []byte) (Frame, error) {
	if len(buf) < 4 {
		return Frame{}, fmt.Errorf("bacsc: message too short (%d bytes)", len(buf))
	}
	f := Frame{
		MsgType:   buf[0],
		MessageID: binary.BigEndian.Uint16(buf[2:4]),
	}
	control := buf[1]
	offset := 4
	if control&ctrlOriginPresent != 0 {
		if len(buf) < offset+vmacLen {
			return Frame{}, fmt.Errorf("bacsc: truncated origin VMAC")
		}
		f.SourceVMAC = append([]byte{}, buf[offset:offset+vmacLen]...)
		offset += vmacLen
	}
	if control&ctrlDestPresent != 0 {
		if len(buf) < offset+vmacLen {
			return Frame{}, fmt.Errorf("bacsc: truncated destination VMAC")
		}
		f.DestVMAC = append([]byte{}, buf[offset:offset+vmacLen]...)
		offset += vmacLen
	}
	f.Payload = append([]byte{}, buf[offset:]...)
	return f, nil
}
