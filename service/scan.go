package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// scanner walks a service-data buffer one tag at a time. The decoders in
// service.go spell their loops out by hand; the decoders in the package's
// other files share this cursor instead so each nested sequence does not
// repeat the same bounds arithmetic.
type scanner struct {
	buf    []byte
	offset int
}

func newScanner(buf []byte) *scanner { return &scanner{buf: buf} }

func (s *scanner) more() bool { return s.offset < len(s.buf) }

// peek decodes the tag header at the cursor without consuming it.
func (s *scanner) peek() (tag.Tag, error) {
	t, _, err := tag.Decode(s.buf, s.offset)
	return t, err
}

// contents consumes the tag header at the cursor plus its contents bytes.
func (s *scanner) contents() (tag.Tag, []byte, error) {
	t, next, err := tag.Decode(s.buf, s.offset)
	if err != nil {
		return t, nil, err
	}
	if t.Opening || t.Closing {
		return t, nil, fmt.Errorf("service: expected primitive tag at offset %d", s.offset)
	}
	end := next + int(t.Length)
	if end > len(s.buf) {
		return t, nil, fmt.Errorf("service: tag contents overrun buffer at offset %d", s.offset)
	}
	s.offset = end
	return t, s.buf[next:end], nil
}

// unsigned consumes a context-tagged unsigned with the given tag number.
func (s *scanner) unsigned(tagNumber uint32) (uint64, error) {
	t, contents, err := s.contents()
	if err != nil {
		return 0, err
	}
	if t.Number != tagNumber {
		return 0, fmt.Errorf("service: expected tag %d, got %d", tagNumber, t.Number)
	}
	return primitive.DecodeUnsigned(contents)
}

// objectID consumes a context-tagged object identifier.
func (s *scanner) objectID(tagNumber uint32) (bactypes.ObjectID, error) {
	t, contents, err := s.contents()
	if err != nil {
		return bactypes.ObjectID{}, err
	}
	if t.Number != tagNumber {
		return bactypes.ObjectID{}, fmt.Errorf("service: expected tag %d, got %d", tagNumber, t.Number)
	}
	return primitive.DecodeObjectID(contents)
}

// open consumes an opening tag with the given number.
func (s *scanner) open(tagNumber uint32) error {
	t, next, err := tag.Decode(s.buf, s.offset)
	if err != nil {
		return err
	}
	if !t.Opening || t.Number != tagNumber {
		return fmt.Errorf("service: expected opening tag %d at offset %d", tagNumber, s.offset)
	}
	s.offset = next
	return nil
}

// atClosing reports whether the cursor sits on a closing tag with the given
// number, consuming it when it does.
func (s *scanner) atClosing(tagNumber uint32) bool {
	t, next, err := tag.Decode(s.buf, s.offset)
	if err != nil || !t.Closing || t.Number != tagNumber {
		return false
	}
	s.offset = next
	return true
}

// enclosed consumes an already-open constructed value through its matching
// closing tag and returns the raw enclosed bytes.
func (s *scanner) enclosed(tagNumber uint32) ([]byte, error) {
	inner, after, err := tag.ExtractContextValue(s.buf, s.offset, tagNumber)
	if err != nil {
		return nil, err
	}
	s.offset = after
	return inner, nil
}

// appValue consumes one application-tagged value at the cursor.
func (s *scanner) appValue() (bactypes.Value, error) {
	v, next, err := primitive.DecodeApplicationValue(s.buf, s.offset)
	if err != nil {
		return nil, err
	}
	s.offset = next
	return v, nil
}

// wrappedValue consumes an opening tag, one application-tagged value, and
// the matching closing tag — the standard "ABSTRACT-SYNTAX.&Type" shape.
func (s *scanner) wrappedValue(tagNumber uint32) (bactypes.Value, error) {
	if err := s.open(tagNumber); err != nil {
		return nil, err
	}
	inner, err := s.enclosed(tagNumber)
	if err != nil {
		return nil, err
	}
	v, _, err := primitive.DecodeApplicationValue(inner, 0)
	return v, err
}

// propertyID consumes a context-tagged property identifier.
func (s *scanner) propertyID(tagNumber uint32) (object.PropertyID, error) {
	v, err := s.unsigned(tagNumber)
	return object.PropertyID(v), err
}
