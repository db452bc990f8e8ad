package object

import (
	"github.com/bacgo/bacnet/bacerr"
	"github.com/bacgo/bacnet/bactypes"
)

// PriorityArray is the 16-slot commandable priority array: slot index =
// priority-1; nil means "not commanded at this priority". ValueSource and
// CommandTime parallel the slot array for the winning entry's provenance.
type PriorityArray struct {
	Slots        [16]bactypes.Value
	ValueSources [16]string
	CommandTimes [16]bactypes.Time

	RelinquishDefault bactypes.Value
}

// NumPriorities is the legal priority range size; priorities are 1..16.
const NumPriorities = 16

// Resolve implements invariant C1: present-value is the first non-nil slot,
// or RelinquishDefault if every slot is nil.
func (p *PriorityArray) Resolve() bactypes.Value {
	for _, v := range p.Slots {
		if v != nil {
			return v
		}
	}
	return p.RelinquishDefault
}

// CurrentCommandPriority returns the 1-based priority of the winning slot,
// or 0 if every slot is relinquished.
func (p *PriorityArray) CurrentCommandPriority() int {
	for i, v := range p.Slots {
		if v != nil {
			return i + 1
		}
	}
	return 0
}

// Set implements invariant C2: writing a non-nil value to slot priority
// commands it; writing nil relinquishes it. priority must be 1..16,
// validated by the caller (Object.Write) before Set is called.
func (p *PriorityArray) Set(priority int, value bactypes.Value, source string, at bactypes.Time) {
	i := priority - 1
	p.Slots[i] = value
	p.ValueSources[i] = source
	p.CommandTimes[i] = at
}

// ValidatePriority enforces invariant C2's range check: priorities are
// 1..16; 0 and 17+ are parameter-out-of-range.
func ValidatePriority(priority int) error {
	if priority < 1 || priority > NumPriorities {
		return bacerr.Protocol(bacerr.ClassServices, bacerr.CodeParameterOutOfRange)
	}
	return nil
}
