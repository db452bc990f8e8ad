// Package tag implements the BACnet ASN.1-style tag header codec: the
// one-to-five-byte header that precedes every application or
// context-specific value on the wire.
package tag

import (
	"fmt"
)

// Class distinguishes application tags (tag number is the fixed
// application-primitive number) from context-specific tags (tag number is
// assigned by the enclosing construct).
type Class int

const (
	Application Class = iota
	Context
)

// extLength sentinel L/V/T values (ASHRAE 135 clause 20.2.1.3.1).
const (
	lvtExtended byte = 5
	lvtOpening  byte = 6
	lvtClosing  byte = 7
)

// Extended-length thresholds.
const (
	extLen1 = 253
	extLen2 = 65535
)

// Tag is a decoded tag header: a number, a class, and either a length (for
// primitive values) or an opening/closing flag (for constructed values).
type Tag struct {
	Number   uint32
	Class    Class
	Length   uint32 // valid when !Opening && !Closing
	Opening  bool
	Closing  bool
}

// IsBoolean reports whether this is an application-tagged boolean, whose
// L/V/T field carries the value (0=false, nonzero=true) rather than a
// length.
func (t Tag) IsBoolean() bool {
	return t.Class == Application && t.Number == 1
}

// BooleanValue interprets Length as the boolean value carried inline by an
// application Boolean tag.
func (t Tag) BooleanValue() bool { return t.Length != 0 }

// precomputedOpening and precomputedClosing hold the single-byte encoding for the 15 most
// common context opening/closing tag numbers (0..14), the hot path for
// service-parameter encoding.
var precomputedOpening [15]byte
var precomputedClosing [15]byte

func init() {
	for n := byte(0); n < 15; n++ {
		precomputedOpening[n] = headerByte(n, Context, lvtOpening)
		precomputedClosing[n] = headerByte(n, Context, lvtClosing)
	}
}

func headerByte(number byte, class Class, lvt byte) byte {
	b := (number << 4) | (lvt & 0x07)
	if class == Context {
		b |= 0x08
	}
	return b
}

// EncodeOpening writes a context-specific opening tag for tagNumber.
func EncodeOpening(tagNumber uint32) []byte {
	if tagNumber < 15 {
		return []byte{precomputedOpening[tagNumber]}
	}
	return encodeExtendedNumberLVT(tagNumber, Context, lvtOpening)
}

// EncodeClosing writes a context-specific closing tag for tagNumber.
func EncodeClosing(tagNumber uint32) []byte {
	if tagNumber < 15 {
		return []byte{precomputedClosing[tagNumber]}
	}
	return encodeExtendedNumberLVT(tagNumber, Context, lvtClosing)
}

// Encode writes the tag header for a primitive value of the given length.
// It takes the fast path (single byte) whenever tagNumber <= 14 and
// length <= 4.
func Encode(tagNumber uint32, class Class, length uint32) []byte {
	if tagNumber < 15 && length <= 4 {
		return []byte{headerByte(byte(tagNumber), class, byte(length))}
	}
	if tagNumber < 15 {
		out := []byte{headerByte(byte(tagNumber), class, lvtExtended)}
		return append(out, encodeExtendedLength(length)...)
	}
	lvt := lengthLVT(length)
	out := encodeExtendedNumberLVT(tagNumber, class, lvt)
	if lvt == lvtExtended {
		out = append(out, encodeExtendedLength(length)...)
	}
	return out
}

func lengthLVT(length uint32) byte {
	if length <= 4 {
		return byte(length)
	}
	return lvtExtended
}

// encodeExtendedNumberLVT writes the two-byte header for tagNumber >= 15
// (marker nibble 15 plus the tag number byte) with lvt packed into the
// first byte. Callers append the extended-length bytes themselves when
// lvt is lvtExtended.
func encodeExtendedNumberLVT(tagNumber uint32, class Class, lvt byte) []byte {
	first := (byte(15) << 4) | (lvt & 0x07)
	if class == Context {
		first |= 0x08
	}
	return []byte{first, extendedTagNumberByte(tagNumber)}
}

func extendedTagNumberByte(tagNumber uint32) byte {
	if tagNumber > 255 {
		// ASHRAE 135 caps extended tag numbers at one byte (0..254, 255
		// reserved); callers must not request numbers beyond that.
		return 255
	}
	return byte(tagNumber)
}

func encodeExtendedLength(length uint32) []byte {
	switch {
	case length <= extLen1:
		return []byte{byte(length)}
	case length <= extLen2:
		return []byte{254, byte(length >> 8), byte(length)}
	default:
		return []byte{
			255,
			byte(length >> 24), byte(length >> 16), byte(length >> 8), byte(length),
		}
	}
}

// Decode parses the tag header starting at buf[offset] and returns the
// descriptor plus the offset immediately following the header.
func Decode(buf []byte, offset int) (Tag, int, error) {
	if offset >= len(buf) {
		return Tag{}, offset, fmt.Errorf("tag: short buffer at offset %d", offset)
	}
	first := buf[offset]
	offset++

	number := uint32(first >> 4)
	class := Application
	if first&0x08 != 0 {
		class = Context
	}
	lvt := first & 0x07

	if number == 15 {
		if offset >= len(buf) {
			return Tag{}, offset, fmt.Errorf("tag: short buffer reading extended tag number")
		}
		number = uint32(buf[offset])
		offset++
	}

	switch lvt {
	case lvtOpening:
		return Tag{Number: number, Class: class, Opening: true}, offset, nil
	case lvtClosing:
		return Tag{Number: number, Class: class, Closing: true}, offset, nil
	case lvtExtended:
		length, next, err := decodeExtendedLength(buf, offset)
		if err != nil {
			return Tag{}, offset, err
		}
		return Tag{Number: number, Class: class, Length: length}, next, nil
	default:
		return Tag{Number: number, Class: class, Length: uint32(lvt)}, offset, nil
	}
}

func decodeExtendedLength(buf []byte, offset int) (uint32, int, error) {
	if offset >= len(buf) {
		return 0, offset, fmt.Errorf("tag: short buffer reading extended length")
	}
	switch buf[offset] {
	case 254:
		if offset+3 > len(buf) {
			return 0, offset, fmt.Errorf("tag: short buffer reading 2-byte extended length")
		}
		v := uint32(buf[offset+1])<<8 | uint32(buf[offset+2])
		return v, offset + 3, nil
	case 255:
		if offset+5 > len(buf) {
			return 0, offset, fmt.Errorf("tag: short buffer reading 4-byte extended length")
		}
		v := uint32(buf[offset+1])<<24 | uint32(buf[offset+2])<<16 | uint32(buf[offset+3])<<8 | uint32(buf[offset+4])
		return v, offset + 5, nil
	default:
		return uint32(buf[offset]), offset + 1, nil
	}
}

// maxNestingDepth bounds recursion in ExtractContextValue so malformed input
// with runaway nested opening tags cannot blow the stack.
const maxNestingDepth = 64

// ExtractContextValue walks from offsetAfterOpening to the matching closing
// tag for tagNumber, counting nested opening/closing pairs of the SAME tag
// number along the way, and returns the raw enclosed bytes plus the offset
// past the closing tag.
func ExtractContextValue(buf []byte, offsetAfterOpening int, tagNumber uint32) ([]byte, int, error) {
	start := offsetAfterOpening
	depth := 1
	offset := offsetAfterOpening
	for depth > 0 {
		if depth > maxNestingDepth {
			return nil, offset, fmt.Errorf("tag: nesting depth exceeds %d", maxNestingDepth)
		}
		t, next, err := Decode(buf, offset)
		if err != nil {
			return nil, offset, err
		}
		switch {
		case t.Opening && t.Number == tagNumber:
			depth++
			offset = next
		case t.Closing && t.Number == tagNumber:
			depth--
			if depth == 0 {
				return buf[start:offset], next, nil
			}
			offset = next
		case t.Opening || t.Closing:
			offset = next
		default:
			offset = next + int(t.Length)
			if offset > len(buf) {
				return nil, offset, fmt.Errorf("tag: content length overruns buffer")
			}
		}
	}
	return buf[start:offset], offset, nil
}
