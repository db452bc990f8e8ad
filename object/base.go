package object

import (
	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
)

// Object is implemented by every concrete BACnet object type. It is a
// tagged variant with a shared vtable of read/write/initial-properties
// hooks rather than a class hierarchy: behavior specific to one
// kind of object (commandable priority resolution, binary polarity
// inversion, a virtual Device.Object_List) is composed onto Base via
// optional fields and closures rather than subclassing.
type Object interface {
	ID() bactypes.ObjectID
	Name() string
	Defs() map[PropertyID]*PropertyDef

	Read(prop PropertyID, arrayIndex *uint32) (bactypes.Value, error)
	Write(prop PropertyID, value bactypes.Value, priority *int, arrayIndex *uint32) error

	// Priority returns the object's commandable priority array, or nil if
	// this object/property set carries no commandable property.
	Priority() *PriorityArray
}

// ArrayLenFunc and ArrayElemFunc let a concrete type serve a virtual array
// property (e.g. Device.Object_List) without Base needing to know about
// it.
type ArrayLenFunc func() int
type ArrayElemFunc func(n int) (bactypes.Value, error)

// PresentValueFilter transforms the resolved present-value on the way out
// of Read (e.g. Binary polarity inversion, invariant C3) without touching
// the stored slot values.
type PresentValueFilter func(bactypes.Value) bactypes.Value

// WriteInterceptor runs before a write is applied to storage; it can coerce
// the value (enum/double coercion) or veto the write by returning an error.
// Returning a nil value with a nil error means "apply the write unchanged".
type WriteInterceptor func(prop PropertyID, value bactypes.Value, priority *int) (bactypes.Value, error)

// Base is the common object record embedded by every concrete type. Fields
// left zero simply opt the object out of that piece of behavior.
type Base struct {
	id   bactypes.ObjectID
	name string
	defs map[PropertyID]*PropertyDef
	vals map[PropertyID]bactypes.Value

	priority *PriorityArray // non-nil iff PresentValue is commandable

	virtualProp      PropertyID
	virtualArrayLen  ArrayLenFunc
	virtualArrayElem ArrayElemFunc

	presentValueFilter PresentValueFilter
	writeInterceptor   WriteInterceptor

	// OnChange is invoked after every successful write, with the property
	// that changed. Concrete types install it for post-write behavior
	// (e.g. Binary arming its minimum-on/off-time hold); the database's
	// own change-callback registry fans writes out to COV/TrendLog.
	OnChange func(prop PropertyID)
}

// NewBase constructs a Base with the given identifier, name, and property
// definition table. Initial values should be set with SetRaw before the
// object is exposed.
func NewBase(id bactypes.ObjectID, name string, defs map[PropertyID]*PropertyDef) *Base {
	return &Base{id: id, name: name, defs: defs, vals: make(map[PropertyID]bactypes.Value)}
}

func (b *Base) ID() bactypes.ObjectID          { return b.id }
func (b *Base) Name() string                   { return b.name }
func (b *Base) Defs() map[PropertyID]*PropertyDef { return b.defs }
func (b *Base) Priority() *PriorityArray        { return b.priority }

// SetRaw stores a value directly, bypassing access control — used by
// constructors to seed initial property values.
func (b *Base) SetRaw(prop PropertyID, v bactypes.Value) { b.vals[prop] = v }

// GetRaw reads the stored value with no commandable resolution or
// filtering.
func (b *Base) GetRaw(prop PropertyID) (bactypes.Value, bool) {
	v, ok := b.vals[prop]
	return v, ok
}

// EnableCommandable installs a priority array for the given relinquish
// default, turning PresentValue into a commandable property. def.Access
// must already be Commandable.
func (b *Base) EnableCommandable(relinquishDefault bactypes.Value) {
	b.priority = &PriorityArray{RelinquishDefault: relinquishDefault}
}

// SetVirtualArray wires a virtual array-typed property (e.g.
// Device.Object_List) whose length/elements are computed on read rather
// than stored.
func (b *Base) SetVirtualArray(prop PropertyID, length ArrayLenFunc, elem ArrayElemFunc) {
	b.virtualProp = prop
	b.virtualArrayLen = length
	b.virtualArrayElem = elem
}

// SetPresentValueFilter installs a read-side transform applied only to
// PropPresentValue (invariant C3).
func (b *Base) SetPresentValueFilter(f PresentValueFilter) { b.presentValueFilter = f }

// SetWriteInterceptor installs a write-side hook run before storage.
func (b *Base) SetWriteInterceptor(f WriteInterceptor) { b.writeInterceptor = f }

// Read implements the common property-read contract.
func (b *Base) Read(prop PropertyID, arrayIndex *uint32) (bactypes.Value, error) {
	def, ok := b.defs[prop]
	if !ok {
		return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeUnknownProperty)
	}

	if prop == b.virtualProp && b.virtualArrayLen != nil {
		return b.readVirtualArray(arrayIndex)
	}

	if arrayIndex != nil {
		if !def.IsArray {
			return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodePropertyIsNotAnArray)
		}
		return b.readArrayElement(prop, *arrayIndex)
	}

	if prop == PropPresentValue && b.priority != nil {
		v := b.priority.Resolve()
		if b.presentValueFilter != nil {
			v = b.presentValueFilter(v)
		}
		return v, nil
	}

	v, ok := b.vals[prop]
	if !ok {
		if def.Default != nil {
			return def.Default, nil
		}
		return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeValueNotInitialized)
	}
	if prop == PropPresentValue && b.presentValueFilter != nil {
		v = b.presentValueFilter(v)
	}
	return v, nil
}

func (b *Base) readVirtualArray(arrayIndex *uint32) (bactypes.Value, error) {
	length := b.virtualArrayLen()
	if arrayIndex == nil {
		// A read without an array index returns the element count, the
		// same as index 0; the elements themselves are only returned one
		// index at a time.
		return bactypes.Unsigned(length), nil
	}
	if *arrayIndex == 0 {
		return bactypes.Unsigned(length), nil
	}
	return b.virtualArrayElem(int(*arrayIndex))
}

func (b *Base) readArrayElement(prop PropertyID, index uint32) (bactypes.Value, error) {
	v, ok := b.vals[prop]
	if !ok {
		return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeValueNotInitialized)
	}
	list, ok := v.(ValueList)
	if !ok {
		return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodePropertyIsNotAnArray)
	}
	if index == 0 {
		return bactypes.Unsigned(len(list)), nil
	}
	if int(index) > len(list) {
		return nil, bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeInvalidArrayIndex)
	}
	return list[index-1], nil
}

// ValueList is the stored representation of an array-typed property. It is
// a constructed value, not an application primitive: its ApplicationTag is
// a sentinel and callers encode arrays element by element.
type ValueList []bactypes.Value

func (ValueList) ApplicationTag() byte { return 0xFF }

// Write implements the common property-write contract.
func (b *Base) Write(prop PropertyID, value bactypes.Value, priority *int, arrayIndex *uint32) error {
	def, ok := b.defs[prop]
	if !ok {
		return bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeUnknownProperty)
	}
	if def.Access == ReadOnly {
		return bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeWriteAccessDenied)
	}
	if priority != nil {
		if def.Access != Commandable {
			return bacerr.Protocol(bacerr.ClassServices, bacerr.CodeParameterOutOfRange)
		}
		if err := ValidatePriority(*priority); err != nil {
			return err
		}
	}

	coerced := coerceValue(def, value)

	if b.writeInterceptor != nil {
		v, err := b.writeInterceptor(prop, coerced, priority)
		if err != nil {
			return err
		}
		if v != nil {
			coerced = v
		}
	}

	if def.Access == Commandable && prop == PropPresentValue {
		p := 16
		if priority != nil {
			p = *priority
		}
		b.priority.Set(p, coerced, "write", bactypes.Time{})
		if b.OnChange != nil {
			b.OnChange(prop)
		}
		return nil
	}

	if arrayIndex != nil {
		if !def.IsArray {
			return bacerr.Protocol(bacerr.ClassProperty, bacerr.CodePropertyIsNotAnArray)
		}
		if err := b.writeArrayElement(prop, coerced, *arrayIndex); err != nil {
			return err
		}
		if b.OnChange != nil {
			b.OnChange(prop)
		}
		return nil
	}

	b.vals[prop] = coerced
	if b.OnChange != nil {
		b.OnChange(prop)
	}
	return nil
}

func (b *Base) writeArrayElement(prop PropertyID, value bactypes.Value, index uint32) error {
	if index == 0 {
		return bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeWriteAccessDenied)
	}
	v, ok := b.vals[prop]
	if !ok {
		v = ValueList{}
	}
	list, ok := v.(ValueList)
	if !ok {
		return bacerr.Protocol(bacerr.ClassProperty, bacerr.CodePropertyIsNotAnArray)
	}
	if int(index) > len(list) {
		return bacerr.Protocol(bacerr.ClassProperty, bacerr.CodeInvalidArrayIndex)
	}
	list[index-1] = value
	b.vals[prop] = list
	return nil
}

// coerceValue implements write-time coercion: integers written
// to enum-typed fields become the matching enum member (silently ignored on
// no match); floats written to a double-precision field are wrapped in the
// Double marker.
func coerceValue(def *PropertyDef, value bactypes.Value) bactypes.Value {
	if def.Default == nil {
		return value
	}
	switch def.Default.(type) {
	case bactypes.Enumerated:
		switch v := value.(type) {
		case bactypes.Unsigned:
			return bactypes.Enumerated(v)
		case bactypes.Signed:
			if v >= 0 {
				return bactypes.Enumerated(v)
			}
			return value
		}
	case bactypes.Double:
		switch v := value.(type) {
		case bactypes.Real:
			return bactypes.Double(v)
		case bactypes.Double:
			return v
		}
	}
	return value
}
