package object

import (
	"time"

	"github.com/bacgo/bacnet/bactypes"
)

// Polarity is the Binary object Polarity property: Normal reports the
// stored state unchanged; Reverse inverts it on read without touching the
// stored slot values (invariant C3).
type Polarity int

const (
	PolarityNormal Polarity = iota
	PolarityReverse
)

func binaryDefs(commandable bool) map[PropertyID]*PropertyDef {
	access := ReadWrite
	if commandable {
		access = Commandable
	}
	defs := map[PropertyID]*PropertyDef{
		PropObjectIdentifier: {ID: PropObjectIdentifier, Access: ReadOnly, Required: true},
		PropObjectName:       {ID: PropObjectName, Access: ReadOnly, Required: true},
		PropObjectType:       {ID: PropObjectType, Access: ReadOnly, Required: true},
		PropPresentValue:     {ID: PropPresentValue, Access: access, Required: true, Default: bactypes.Enumerated(0)},
		PropStatusFlags:      {ID: PropStatusFlags, Access: ReadOnly, Required: true},
		PropOutOfService:     {ID: PropOutOfService, Access: ReadWrite, Required: true, Default: bactypes.Boolean(false)},
		PropPolarity:         {ID: PropPolarity, Access: ReadWrite, Required: true, Default: bactypes.Enumerated(PolarityNormal)},
		PropActiveText:       {ID: PropActiveText, Access: ReadWrite, Required: false},
		PropInactiveText:     {ID: PropInactiveText, Access: ReadWrite, Required: false},
		PropDescription:      {ID: PropDescription, Access: ReadWrite, Required: false},
	}
	if commandable {
		defs[PropPriorityArray] = &PropertyDef{ID: PropPriorityArray, Access: ReadOnly, Required: true}
		defs[PropRelinquishDefault] = &PropertyDef{ID: PropRelinquishDefault, Access: ReadWrite, Required: true, Default: bactypes.Enumerated(0)}
		defs[PropMinimumOnTime] = &PropertyDef{ID: PropMinimumOnTime, Access: ReadWrite, Required: false, Default: bactypes.Unsigned(0)}
		defs[PropMinimumOffTime] = &PropertyDef{ID: PropMinimumOffTime, Access: ReadWrite, Required: false, Default: bactypes.Unsigned(0)}
	}
	return defs
}

// minTimeLock implements invariant C4: after a commanded transition, the
// new state is held for at least Minimum_On_Time / Minimum_Off_Time
// seconds. Commands arriving during the hold are stored in the priority
// array normally; present-value keeps reporting the held state until the
// hold expires, at which point reads resolve from the array again. now is
// re-read on every write/read so the lock is driven by wall-clock time
// rather than a counter.
type minTimeLock struct {
	now        func() time.Time
	lockUntil  time.Time
	heldActive bool // state reported while the hold is in effect
	prevActive bool // array resolution captured just before the current write
}

func newMinTimeLock(now func() time.Time) *minTimeLock {
	if now == nil {
		now = time.Now
	}
	return &minTimeLock{now: now}
}

// Binary wraps Base with the polarity-inversion read filter and the
// minimum-on/off-time write interceptor a commandable Binary Output needs.
type Binary struct {
	*Base
	lock *minTimeLock
}

func (bn *Binary) polarityFilter(v bactypes.Value) bactypes.Value {
	pol, _ := bn.GetRaw(PropPolarity)
	if p, ok := pol.(bactypes.Enumerated); !ok || Polarity(p) != PolarityReverse {
		return v
	}
	e, ok := v.(bactypes.Enumerated)
	if !ok {
		return v
	}
	if e == 0 {
		return bactypes.Enumerated(1)
	}
	return bactypes.Enumerated(0)
}

// holdFilter is the present-value read filter for a minimum-on/off-time
// output: while the hold is in effect it reports the held state instead of
// the array resolution, then applies polarity. Slot values are never
// touched.
func (bn *Binary) holdFilter(v bactypes.Value) bactypes.Value {
	if bn.lock != nil && bn.lock.now().Before(bn.lock.lockUntil) {
		held := bactypes.Enumerated(0)
		if bn.lock.heldActive {
			held = bactypes.Enumerated(1)
		}
		v = held
	}
	return bn.polarityFilter(v)
}

// minTimePreWrite captures the array resolution before a present-value
// write lands, so afterWrite can detect whether the write caused a
// transition. It never alters the written value — commands during a hold
// are stored, just not reported (invariant C4).
func (bn *Binary) minTimePreWrite(prop PropertyID, value bactypes.Value, priority *int) (bactypes.Value, error) {
	if prop == PropPresentValue && bn.lock != nil {
		bn.lock.prevActive = bn.resolvedActive()
	}
	return nil, nil
}

// afterWrite runs once a present-value write has been stored. A write
// inside the hold window changes nothing visible; outside it, a
// transition arms a new hold for the state just entered.
func (bn *Binary) afterWrite(prop PropertyID) {
	if prop != PropPresentValue || bn.lock == nil {
		return
	}
	now := bn.lock.now()
	if now.Before(bn.lock.lockUntil) {
		return
	}
	resolved := bn.resolvedActive()
	if resolved == bn.lock.prevActive {
		bn.lock.heldActive = resolved
		return
	}
	var holdSeconds uint64
	if resolved {
		if v, ok := bn.GetRaw(PropMinimumOnTime); ok {
			holdSeconds, _ = asUnsigned(v)
		}
	} else {
		if v, ok := bn.GetRaw(PropMinimumOffTime); ok {
			holdSeconds, _ = asUnsigned(v)
		}
	}
	if holdSeconds > 0 {
		bn.lock.lockUntil = now.Add(time.Duration(holdSeconds) * time.Second)
	}
	bn.lock.heldActive = resolved
}

// resolvedActive reads the commandable resolution straight from the
// priority array, without the read-side hold or polarity filters.
func (bn *Binary) resolvedActive() bool {
	if p := bn.Priority(); p != nil {
		if e, ok := p.Resolve().(bactypes.Enumerated); ok {
			return e == 1
		}
		return false
	}
	v, _ := bn.GetRaw(PropPresentValue)
	e, ok := v.(bactypes.Enumerated)
	return ok && e == 1
}

func asUnsigned(v bactypes.Value) (uint64, bool) {
	u, ok := v.(bactypes.Unsigned)
	if !ok {
		return 0, false
	}
	return uint64(u), true
}

// NewBinaryInput builds a Binary Input object. Polarity inversion applies
// on read (C3); Present_Value is read-only at the protocol boundary.
func NewBinaryInput(id bactypes.ObjectID, name string) *Base {
	b := NewBase(id, name, binaryDefs(false))
	b.defs[PropPresentValue].Access = ReadOnly
	seedBinaryCommon(b, id, name)
	wrapped := &Binary{Base: b}
	b.SetPresentValueFilter(wrapped.polarityFilter)
	return b
}

// NewBinaryOutput builds a commandable Binary Output object with C3
// polarity inversion and C4 minimum-on/off-time locking.
func NewBinaryOutput(id bactypes.ObjectID, name string) *Base {
	b := NewBase(id, name, binaryDefs(true))
	seedBinaryCommon(b, id, name)
	b.SetRaw(PropRelinquishDefault, bactypes.Enumerated(0))
	b.SetRaw(PropMinimumOnTime, bactypes.Unsigned(0))
	b.SetRaw(PropMinimumOffTime, bactypes.Unsigned(0))
	b.EnableCommandable(bactypes.Enumerated(0))

	bn := &Binary{Base: b, lock: newMinTimeLock(nil)}
	b.SetPresentValueFilter(bn.holdFilter)
	b.SetWriteInterceptor(bn.minTimePreWrite)
	b.OnChange = bn.afterWrite
	return b
}

// NewBinaryValue builds a writable (non-commandable) Binary Value object.
func NewBinaryValue(id bactypes.ObjectID, name string) *Base {
	b := NewBase(id, name, binaryDefs(false))
	seedBinaryCommon(b, id, name)
	bn := &Binary{Base: b}
	b.SetPresentValueFilter(bn.polarityFilter)
	return b
}

func seedBinaryCommon(b *Base, id bactypes.ObjectID, name string) {
	b.SetRaw(PropObjectIdentifier, id)
	b.SetRaw(PropObjectName, bactypes.CharacterString{Value: name})
	b.SetRaw(PropObjectType, bactypes.Enumerated(id.Type))
	b.SetRaw(PropPresentValue, bactypes.Enumerated(0))
	b.SetRaw(PropStatusFlags, StatusFlags{}.ToBitString())
	b.SetRaw(PropPolarity, bactypes.Enumerated(PolarityNormal))
}
