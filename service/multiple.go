package service

import (
	"fmt"

	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
	"github.com/bacgo/bacnet/object"
	"github.com/bacgo/bacnet/primitive"
	"github.com/bacgo/bacnet/tag"
)

// PropertyReference names one property to read: identifier plus optional
// array index.
type PropertyReference struct {
	Property   object.PropertyID
	ArrayIndex *uint32
}

// ReadAccessSpec pairs one object with the list of properties to read from
// it.
type ReadAccessSpec struct {
	ObjectID   bactypes.ObjectID
	Properties []PropertyReference
}

// ReadPropertyMultipleRequest is the Confirmed-Read-Property-Multiple
// service request body: a sequence of read-access specifications.
type ReadPropertyMultipleRequest struct {
	Specs []ReadAccessSpec
}

func (r ReadPropertyMultipleRequest) Encode() []byte {
	var out []byte
	for _, spec := range r.Specs {
		out = append(out, contextObjectID(0, spec.ObjectID)...)
		out = append(out, tag.EncodeOpening(1)...)
		for _, ref := range spec.Properties {
			out = append(out, contextUnsigned(0, uint64(ref.Property))...)
			if ref.ArrayIndex != nil {
				out = append(out, contextUnsigned(1, uint64(*ref.ArrayIndex))...)
			}
		}
		out = append(out, tag.EncodeClosing(1)...)
	}
	return out
}

func DecodeReadPropertyMultipleRequest(buf []byte) (ReadPropertyMultipleRequest, error) {
	var req ReadPropertyMultipleRequest
	s := newScanner(buf)
	for s.more() {
		var spec ReadAccessSpec
		id, err := s.objectID(0)
		if err != nil {
			return req, err
		}
		spec.ObjectID = id
		if err := s.open(1); err != nil {
			return req, err
		}
		for !s.atClosing(1) {
			var ref PropertyReference
			prop, err := s.propertyID(0)
			if err != nil {
				return req, err
			}
			ref.Property = prop
			if t, err := s.peek(); err == nil && t.Number == 1 && !t.Opening && !t.Closing {
				v, err := s.unsigned(1)
				if err != nil {
					return req, err
				}
				idx := uint32(v)
				ref.ArrayIndex = &idx
			}
			spec.Properties = append(spec.Properties, ref)
		}
		req.Specs = append(req.Specs, spec)
	}
	return req, nil
}

// ReadResult is one per-property outcome inside a ReadPropertyMultiple ACK:
// either a value or an inline (error-class, error-code) pair. Fan-out
// failures never abort the whole call.
type ReadResult struct {
	Property   object.PropertyID
	ArrayIndex *uint32
	Value      bactypes.Value // nil when Err is set
	Err        *bacerr.Error  // nil on success
}

// ReadAccessResult groups the per-property outcomes for one object.
type ReadAccessResult struct {
	ObjectID bactypes.ObjectID
	Results  []ReadResult
}

// ReadPropertyMultipleACK is the Complex-ACK body for
// ReadPropertyMultiple.
type ReadPropertyMultipleACK struct {
	Results []ReadAccessResult
}

func (a ReadPropertyMultipleACK) Encode() []byte {
	var out []byte
	for _, res := range a.Results {
		out = append(out, contextObjectID(0, res.ObjectID)...)
		out = append(out, tag.EncodeOpening(1)...)
		for _, r := range res.Results {
			out = append(out, contextUnsigned(2, uint64(r.Property))...)
			if r.ArrayIndex != nil {
				out = append(out, contextUnsigned(3, uint64(*r.ArrayIndex))...)
			}
			if r.Err != nil {
				out = append(out, tag.EncodeOpening(5)...)
				class, _ := primitive.EncodeValue(bactypes.Enumerated(r.Err.Class))
				code, _ := primitive.EncodeValue(bactypes.Enumerated(r.Err.Code))
				out = append(out, class...)
				out = append(out, code...)
				out = append(out, tag.EncodeClosing(5)...)
			} else {
				out = append(out, contextValue(4, r.Value)...)
			}
		}
		out = append(out, tag.EncodeClosing(1)...)
	}
	return out
}

func DecodeReadPropertyMultipleACK(buf []byte) (ReadPropertyMultipleACK, error) {
	var ack ReadPropertyMultipleACK
	s := newScanner(buf)
	for s.more() {
		var res ReadAccessResult
		id, err := s.objectID(0)
		if err != nil {
			return ack, err
		}
		res.ObjectID = id
		if err := s.open(1); err != nil {
			return ack, err
		}
		for !s.atClosing(1) {
			var r ReadResult
			prop, err := s.propertyID(2)
			if err != nil {
				return ack, err
			}
			r.Property = prop
			t, err := s.peek()
			if err != nil {
				return ack, err
			}
			if t.Number == 3 && !t.Opening && !t.Closing {
				v, err := s.unsigned(3)
				if err != nil {
					return ack, err
				}
				idx := uint32(v)
				r.ArrayIndex = &idx
				t, err = s.peek()
				if err != nil {
					return ack, err
				}
			}
			switch {
			case t.Opening && t.Number == 4:
				v, err := s.wrappedValue(4)
				if err != nil {
					return ack, err
				}
				r.Value = v
			case t.Opening && t.Number == 5:
				if err := s.open(5); err != nil {
					return ack, err
				}
				class, err := s.appValue()
				if err != nil {
					return ack, err
				}
				code, err := s.appValue()
				if err != nil {
					return ack, err
				}
				if !s.atClosing(5) {
					return ack, fmt.Errorf("service: unterminated error in RPM ack")
				}
				classEnum, ok1 := class.(bactypes.Enumerated)
				codeEnum, ok2 := code.(bactypes.Enumerated)
				if !ok1 || !ok2 {
					return ack, fmt.Errorf("service: RPM error pair is not enumerated")
				}
				r.Err = bacerr.Protocol(bacerr.ErrorClass(classEnum), bacerr.ErrorCode(codeEnum))
			default:
				return ack, fmt.Errorf("service: unexpected tag %d in RPM result element", t.Number)
			}
			res.Results = append(res.Results, r)
		}
		ack.Results = append(ack.Results, res)
	}
	return ack, nil
}

// PropertyValue is one property write inside WritePropertyMultiple (and the
// initial-values list of CreateObject): identifier, optional array index,
// value, optional priority.
type PropertyValue struct {
	Property   object.PropertyID
	ArrayIndex *uint32
	Value      bactypes.Value
	Priority   *int
}

func (p PropertyValue) encode() []byte {
	out := contextUnsigned(0, uint64(p.Property))
	if p.ArrayIndex != nil {
		out = append(out, contextUnsigned(1, uint64(*p.ArrayIndex))...)
	}
	out = append(out, contextValue(2, p.Value)...)
	if p.Priority != nil {
		out = append(out, contextUnsigned(3, uint64(*p.Priority))...)
	}
	return out
}

func decodePropertyValue(s *scanner) (PropertyValue, error) {
	var p PropertyValue
	prop, err := s.propertyID(0)
	if err != nil {
		return p, err
	}
	p.Property = prop
	if t, err := s.peek(); err == nil && t.Number == 1 && !t.Opening && !t.Closing {
		v, err := s.unsigned(1)
		if err != nil {
			return p, err
		}
		idx := uint32(v)
		p.ArrayIndex = &idx
	}
	v, err := s.wrappedValue(2)
	if err != nil {
		return p, err
	}
	p.Value = v
	if t, err := s.peek(); err == nil && t.Number == 3 && !t.Opening && !t.Closing {
		pr, err := s.unsigned(3)
		if err != nil {
			return p, err
		}
		priority := int(pr)
		p.Priority = &priority
	}
	return p, nil
}

// WriteAccessSpec pairs one object with the property values to write to
// it.
type WriteAccessSpec struct {
	ObjectID bactypes.ObjectID
	Values   []PropertyValue
}

// WritePropertyMultipleRequest is the Confirmed-Write-Property-Multiple
// service request body.
type WritePropertyMultipleRequest struct {
	Specs []WriteAccessSpec
}

func (r WritePropertyMultipleRequest) Encode() []byte {
	var out []byte
	for _, spec := range r.Specs {
		out = append(out, contextObjectID(0, spec.ObjectID)...)
		out = append(out, tag.EncodeOpening(1)...)
		for _, pv := range spec.Values {
			out = append(out, pv.encode()...)
		}
		out = append(out, tag.EncodeClosing(1)...)
	}
	return out
}

func DecodeWritePropertyMultipleRequest(buf []byte) (WritePropertyMultipleRequest, error) {
	var req WritePropertyMultipleRequest
	s := newScanner(buf)
	for s.more() {
		var spec WriteAccessSpec
		id, err := s.objectID(0)
		if err != nil {
			return req, err
		}
		spec.ObjectID = id
		if err := s.open(1); err != nil {
			return req, err
		}
		for !s.atClosing(1) {
			pv, err := decodePropertyValue(s)
			if err != nil {
				return req, err
			}
			spec.Values = append(spec.Values, pv)
		}
		req.Specs = append(req.Specs, spec)
	}
	return req, nil
}
