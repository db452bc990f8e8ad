// Package primitive encodes and decodes the twelve BACnet application
// primitive contents bytes, and provides the application-tagged wrapper
// that prepends a tag header to them.
package primitive

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/tag"
)

// EncodeUnsigned writes the minimum-byte big-endian unsigned form (at least
// one byte; zero encodes as a single 0x00).
func EncodeUnsigned(v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return append([]byte{}, buf[i:]...)
}

// DecodeUnsigned reverses EncodeUnsigned.
func DecodeUnsigned(contents []byte) (uint64, error) {
	if len(contents) == 0 || len(contents) > 8 {
		return 0, fmt.Errorf("primitive: invalid unsigned length %d", len(contents))
	}
	var v uint64
	for _, b := range contents {
		v = (v << 8) | uint64(b)
	}
	return v, nil
}

// EncodeSigned writes the minimum-byte two's-complement big-endian form.
func EncodeSigned(v int64) []byte {
	if v >= -128 && v <= 127 {
		return []byte{byte(v)}
	}
	if v >= -32768 && v <= 32767 {
		return []byte{byte(v >> 8), byte(v)}
	}
	if v >= -8388608 && v <= 8388607 {
		return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	}
	if v >= -2147483648 && v <= 2147483647 {
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return buf[:]
}

// DecodeSigned reverses EncodeSigned, sign-extending from the contents
// length.
func DecodeSigned(contents []byte) (int64, error) {
	n := len(contents)
	if n == 0 || n > 8 {
		return 0, fmt.Errorf("primitive: invalid signed length %d", n)
	}
	v := int64(int8(contents[0]))
	for i := 1; i < n; i++ {
		v = (v << 8) | int64(contents[i])
	}
	return v, nil
}

// EncodeReal writes a 4-byte big-endian IEEE-754 single.
func EncodeReal(v float32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], math.Float32bits(v))
	return buf[:]
}

func DecodeReal(contents []byte) (float32, error) {
	if len(contents) != 4 {
		return 0, fmt.Errorf("primitive: real must be 4 bytes, got %d", len(contents))
	}
	return math.Float32frombits(binary.BigEndian.Uint32(contents)), nil
}

// EncodeDouble writes an 8-byte big-endian IEEE-754 double.
func EncodeDouble(v float64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
	return buf[:]
}

func DecodeDouble(contents []byte) (float64, error) {
	if len(contents) != 8 {
		return 0, fmt.Errorf("primitive: double must be 8 bytes, got %d", len(contents))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(contents)), nil
}

func EncodeOctetString(v []byte) []byte { return append([]byte{}, v...) }

func DecodeOctetString(contents []byte) []byte { return append([]byte{}, contents...) }

// EncodeCharacterString writes the leading charset byte followed by the
// string bytes in that encoding.
func EncodeCharacterString(v bactypes.CharacterString) ([]byte, error) {
	var body []byte
	switch v.Charset {
	case bactypes.CharsetUTF8, bactypes.CharsetISO8859_1:
		body = []byte(v.Value)
	case bactypes.CharsetUTF16BE:
		body = utf16beFromString(v.Value)
	case bactypes.CharsetUTF32BE:
		body = utf32beFromString(v.Value)
	default:
		return nil, fmt.Errorf("primitive: unsupported character set %d", v.Charset)
	}
	return append([]byte{byte(v.Charset)}, body...), nil
}

// DecodeCharacterString rejects unknown character-set identifiers.
func DecodeCharacterString(contents []byte) (bactypes.CharacterString, error) {
	if len(contents) == 0 {
		return bactypes.CharacterString{}, fmt.Errorf("primitive: empty character string")
	}
	cs := bactypes.CharacterSet(contents[0])
	body := contents[1:]
	switch cs {
	case bactypes.CharsetUTF8, bactypes.CharsetISO8859_1:
		return bactypes.CharacterString{Charset: cs, Value: string(body)}, nil
	case bactypes.CharsetUTF16BE:
		return bactypes.CharacterString{Charset: cs, Value: utf16beToString(body)}, nil
	case bactypes.CharsetUTF32BE:
		return bactypes.CharacterString{Charset: cs, Value: utf32beToString(body)}, nil
	default:
		return bactypes.CharacterString{}, fmt.Errorf("primitive: unknown character set %d", cs)
	}
}

func utf16beFromString(s string) []byte {
	r := []rune(s)
	out := make([]byte, 0, len(r)*2)
	for _, c := range r {
		out = append(out, byte(c>>8), byte(c))
	}
	return out
}

func utf16beToString(b []byte) string {
	r := make([]rune, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		r = append(r, rune(uint16(b[i])<<8|uint16(b[i+1])))
	}
	return string(r)
}

func utf32beFromString(s string) []byte {
	r := []rune(s)
	out := make([]byte, 0, len(r)*4)
	for _, c := range r {
		out = append(out, byte(c>>24), byte(c>>16), byte(c>>8), byte(c))
	}
	return out
}

func utf32beToString(b []byte) string {
	r := make([]rune, 0, len(b)/4)
	for i := 0; i+3 < len(b); i += 4 {
		r = append(r, rune(uint32(b[i])<<24|uint32(b[i+1])<<16|uint32(b[i+2])<<8|uint32(b[i+3])))
	}
	return string(r)
}

// EncodeBitString writes the leading unused-bits byte then the bit bytes.
func EncodeBitString(v bactypes.BitString) []byte {
	byteLen := (v.BitCount + 7) / 8
	unused := byteLen*8 - v.BitCount
	if v.BitCount == 0 {
		unused = 0
	}
	out := make([]byte, 1+byteLen)
	out[0] = byte(unused)
	for i := 0; i < v.BitCount; i++ {
		if v.Bit(i) {
			out[1+i/8] |= 0x80 >> uint(i%8)
		}
	}
	return out
}

func DecodeBitString(contents []byte) (bactypes.BitString, error) {
	if len(contents) == 0 {
		return bactypes.BitString{}, fmt.Errorf("primitive: empty bit string")
	}
	unused := int(contents[0])
	if unused < 0 || unused > 7 {
		return bactypes.BitString{}, fmt.Errorf("primitive: invalid unused-bits count %d", unused)
	}
	body := contents[1:]
	count := len(body)*8 - unused
	var bs bactypes.BitString
	bs.BitCount = count
	for i := 0; i < count && i < len(bs.Bits); i++ {
		if body[i/8]&(0x80>>uint(i%8)) != 0 {
			bs.Bits[i] = true
		}
	}
	return bs, nil
}

func EncodeEnumerated(v uint32) []byte { return EncodeUnsigned(uint64(v)) }

func DecodeEnumerated(contents []byte) (uint32, error) {
	v, err := DecodeUnsigned(contents)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// EncodeDate writes the 4-byte (year-1900, month, day, day-of-week) form,
// preserving wildcard fields unchanged.
func EncodeDate(d bactypes.Date) []byte {
	return []byte{d.Year, d.Month, d.Day, d.DayOfWeek}
}

func DecodeDate(contents []byte) (bactypes.Date, error) {
	if len(contents) != 4 {
		return bactypes.Date{}, fmt.Errorf("primitive: date must be 4 bytes, got %d", len(contents))
	}
	return bactypes.Date{Year: contents[0], Month: contents[1], Day: contents[2], DayOfWeek: contents[3]}, nil
}

// EncodeTime writes the 4-byte (hour, minute, second, hundredth) form.
func EncodeTime(t bactypes.Time) []byte {
	return []byte{t.Hour, t.Minute, t.Second, t.Hundredth}
}

func DecodeTime(contents []byte) (bactypes.Time, error) {
	if len(contents) != 4 {
		return bactypes.Time{}, fmt.Errorf("primitive: time must be 4 bytes, got %d", len(contents))
	}
	return bactypes.Time{Hour: contents[0], Minute: contents[1], Second: contents[2], Hundredth: contents[3]}, nil
}

func EncodeObjectID(o bactypes.ObjectID) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], o.Encode())
	return buf[:]
}

func DecodeObjectID(contents []byte) (bactypes.ObjectID, error) {
	if len(contents) != 4 {
		return bactypes.ObjectID{}, fmt.Errorf("primitive: object id must be 4 bytes, got %d", len(contents))
	}
	return bactypes.DecodeObjectID(binary.BigEndian.Uint32(contents)), nil
}

// EncodeApplication composes an application-tagged wrapper:
// tag_header(tagNum, Application, len(contents)) + contents.
func EncodeApplication(tagNum byte, contents []byte) []byte {
	return append(tag.Encode(uint32(tagNum), tag.Application, uint32(len(contents))), contents...)
}

// EncodeValue dispatches on the dynamic type of v and returns its
// application-tagged wire form.
func EncodeValue(v bactypes.Value) ([]byte, error) {
	switch x := v.(type) {
	case bactypes.Null:
		return EncodeApplication(bactypes.TagNull, nil), nil
	case bactypes.Boolean:
		lvt := byte(0)
		if x {
			lvt = 1
		}
		return []byte{(bactypes.TagBoolean << 4) | lvt}, nil
	case bactypes.Unsigned:
		return EncodeApplication(bactypes.TagUnsigned, EncodeUnsigned(uint64(x))), nil
	case bactypes.Signed:
		return EncodeApplication(bactypes.TagSigned, EncodeSigned(int64(x))), nil
	case bactypes.Real:
		return EncodeApplication(bactypes.TagReal, EncodeReal(float32(x))), nil
	case bactypes.Double:
		return EncodeApplication(bactypes.TagDouble, EncodeDouble(float64(x))), nil
	case bactypes.OctetString:
		return EncodeApplication(bactypes.TagOctetString, EncodeOctetString(x)), nil
	case bactypes.CharacterString:
		body, err := EncodeCharacterString(x)
		if err != nil {
			return nil, err
		}
		return EncodeApplication(bactypes.TagCharacterString, body), nil
	case bactypes.BitString:
		return EncodeApplication(bactypes.TagBitString, EncodeBitString(x)), nil
	case bactypes.Enumerated:
		return EncodeApplication(bactypes.TagEnumerated, EncodeEnumerated(uint32(x))), nil
	case bactypes.Date:
		return EncodeApplication(bactypes.TagDate, EncodeDate(x)), nil
	case bactypes.Time:
		return EncodeApplication(bactypes.TagTime, EncodeTime(x)), nil
	case bactypes.ObjectID:
		return EncodeApplication(bactypes.TagObjectID, EncodeObjectID(x)), nil
	default:
		return nil, fmt.Errorf("primitive: unsupported value type %T", v)
	}
}

// DecodeApplicationValue reads one application-tagged value starting at
// buf[offset] and returns the value plus the offset past it.
func DecodeApplicationValue(buf []byte, offset int) (bactypes.Value, int, error) {
	t, next, err := tag.Decode(buf, offset)
	if err != nil {
		return nil, offset, err
	}
	if t.Class != tag.Application {
		return nil, offset, fmt.Errorf("primitive: expected application tag at offset %d", offset)
	}
	if t.IsBoolean() {
		return bactypes.Boolean(t.BooleanValue()), next, nil
	}
	end := next + int(t.Length)
	if end > len(buf) {
		return nil, offset, fmt.Errorf("primitive: contents overrun buffer")
	}
	contents := buf[next:end]
	v, err := decodeByTagNumber(byte(t.Number), contents)
	if err != nil {
		return nil, offset, err
	}
	return v, end, nil
}

func decodeByTagNumber(tagNum byte, contents []byte) (bactypes.Value, error) {
	switch tagNum {
	case bactypes.TagNull:
		return bactypes.Null{}, nil
	case bactypes.TagUnsigned:
		v, err := DecodeUnsigned(contents)
		return bactypes.Unsigned(v), err
	case bactypes.TagSigned:
		v, err := DecodeSigned(contents)
		return bactypes.Signed(v), err
	case bactypes.TagReal:
		v, err := DecodeReal(contents)
		return bactypes.Real(v), err
	case bactypes.TagDouble:
		v, err := DecodeDouble(contents)
		return bactypes.Double(v), err
	case bactypes.TagOctetString:
		return bactypes.OctetString(DecodeOctetString(contents)), nil
	case bactypes.TagCharacterString:
		return DecodeCharacterString(contents)
	case bactypes.TagBitString:
		return DecodeBitString(contents)
	case bactypes.TagEnumerated:
		v, err := DecodeEnumerated(contents)
		return bactypes.Enumerated(v), err
	case bactypes.TagDate:
		return DecodeDate(contents)
	case bactypes.TagTime:
		return DecodeTime(contents)
	case bactypes.TagObjectID:
		return DecodeObjectID(contents)
	default:
		return nil, fmt.Errorf("primitive: unknown application tag number %d", tagNum)
	}
}
