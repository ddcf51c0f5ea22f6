// Package device models the four Modbus memory banks of a slave and the
// immutable snapshot the console mirrors.
package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/mbdeck/internal/fault"
)

// Bank identifies one of the four addressable memory areas of a slave.
type Bank int

const (
	Coils Bank = iota
	DiscreteInputs
	HoldingRegisters
	InputRegisters
)

// Banks lists every bank in display order.
var Banks = []Bank{Coils, DiscreteInputs, HoldingRegisters, InputRegisters}

// Key returns the wire name used by the HTTP API.
func (b Bank) Key() string {
	switch b {
	case Coils:
		return "coils"
	case DiscreteInputs:
		return "discrete_inputs"
	case HoldingRegisters:
		return "holding_registers"
	case InputRegisters:
		return "input_registers"
	}
	return fmt.Sprintf("bank(%d)", int(b))
}

// Label returns the human name of the bank.
func (b Bank) Label() string {
	switch b {
	case Coils:
		return "Coils"
	case DiscreteInputs:
		return "Discrete Inputs"
	case HoldingRegisters:
		return "Holding Registers"
	case InputRegisters:
		return "Input Registers"
	}
	return b.Key()
}

func (b Bank) String() string { return b.Key() }

// Writable reports whether the console may write to the bank.
func (b Bank) Writable() bool {
	return b == Coils || b == HoldingRegisters
}

// IsBit reports whether the bank holds boolean values.
func (b Bank) IsBit() bool {
	return b == Coils || b == DiscreteInputs
}

// ParseBank resolves a wire name or a short alias to a Bank.
func ParseBank(name string) (Bank, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "coils", "coil", "co":
		return Coils, true
	case "discrete_inputs", "discrete", "di":
		return DiscreteInputs, true
	case "holding_registers", "holding", "hr":
		return HoldingRegisters, true
	case "input_registers", "input", "ir":
		return InputRegisters, true
	}
	return 0, false
}

// Value is a single bank cell. Bit banks use Bit, register banks use Word.
type Value struct {
	Bit  bool
	Word uint16
}

// BitValue wraps a boolean cell.
func BitValue(v bool) Value { return Value{Bit: v} }

// WordValue wraps a register cell.
func WordValue(v uint16) Value { return Value{Word: v} }

// Format renders v the way bank b displays it.
func (v Value) Format(b Bank) string {
	if b.IsBit() {
		if v.Bit {
			return "ON"
		}
		return "OFF"
	}
	return fmt.Sprintf("%d", v.Word)
}

// Sizes holds the configured length of every bank.
type Sizes struct {
	Coils            int `json:"coils"`
	DiscreteInputs   int `json:"discrete_inputs"`
	HoldingRegisters int `json:"holding_registers"`
	InputRegisters   int `json:"input_registers"`
}

// Of returns the size of bank b.
func (s Sizes) Of(b Bank) int {
	switch b {
	case Coils:
		return s.Coils
	case DiscreteInputs:
		return s.DiscreteInputs
	case HoldingRegisters:
		return s.HoldingRegisters
	case InputRegisters:
		return s.InputRegisters
	}
	return 0
}

// MaxBankSize is the largest bank length a slave accepts.
const MaxBankSize = 65536

// SizeDeltas requests new bank lengths. Nil fields leave the bank unchanged.
type SizeDeltas struct {
	Coils            *int `json:"coils,omitempty"`
	DiscreteInputs   *int `json:"discrete_inputs,omitempty"`
	HoldingRegisters *int `json:"holding_registers,omitempty"`
	InputRegisters   *int `json:"input_registers,omitempty"`
}

// IsEmpty reports whether no bank length is requested.
func (d SizeDeltas) IsEmpty() bool {
	return d.Coils == nil && d.DiscreteInputs == nil && d.HoldingRegisters == nil && d.InputRegisters == nil
}

// Set stores n as the requested length of bank b.
func (d *SizeDeltas) Set(b Bank, n int) {
	v := n
	switch b {
	case Coils:
		d.Coils = &v
	case DiscreteInputs:
		d.DiscreteInputs = &v
	case HoldingRegisters:
		d.HoldingRegisters = &v
	case InputRegisters:
		d.InputRegisters = &v
	}
}

// Get returns the requested length of bank b, if any.
func (d SizeDeltas) Get(b Bank) (int, bool) {
	var p *int
	switch b {
	case Coils:
		p = d.Coils
	case DiscreteInputs:
		p = d.DiscreteInputs
	case HoldingRegisters:
		p = d.HoldingRegisters
	case InputRegisters:
		p = d.InputRegisters
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Validate checks every requested length lies in [0, MaxBankSize].
func (d SizeDeltas) Validate() error {
	for _, b := range Banks {
		if n, ok := d.Get(b); ok && (n < 0 || n > MaxBankSize) {
			return fault.New(fault.Validation, "resize", "%s must be between 0 and %d, got %d", b.Label(), MaxBankSize, n)
		}
	}
	return nil
}

// Snapshot is the state of all four banks of one slave at one instant.
// The zero value is an empty snapshot for no device.
type Snapshot struct {
	SlaveID    int
	ObservedAt time.Time

	coils            []bool
	discreteInputs   []bool
	holdingRegisters []uint16
	inputRegisters   []uint16
}

// NewSnapshot copies the given banks into an immutable snapshot.
func NewSnapshot(slaveID int, coils, discrete []bool, holding, input []uint16) Snapshot {
	return Snapshot{
		SlaveID:          slaveID,
		ObservedAt:       time.Now(),
		coils:            cloneBits(coils),
		discreteInputs:   cloneBits(discrete),
		holdingRegisters: cloneWords(holding),
		inputRegisters:   cloneWords(input),
	}
}

// Len returns the number of cells in bank b.
func (s Snapshot) Len(b Bank) int {
	switch b {
	case Coils:
		return len(s.coils)
	case DiscreteInputs:
		return len(s.discreteInputs)
	case HoldingRegisters:
		return len(s.holdingRegisters)
	case InputRegisters:
		return len(s.inputRegisters)
	}
	return 0
}

// Sizes returns the bank lengths observed in the snapshot.
func (s Snapshot) Sizes() Sizes {
	return Sizes{
		Coils:            len(s.coils),
		DiscreteInputs:   len(s.discreteInputs),
		HoldingRegisters: len(s.holdingRegisters),
		InputRegisters:   len(s.inputRegisters),
	}
}

// At returns the cell at address in bank b.
func (s Snapshot) At(b Bank, address int) (Value, bool) {
	if address < 0 || address >= s.Len(b) {
		return Value{}, false
	}
	switch b {
	case Coils:
		return BitValue(s.coils[address]), true
	case DiscreteInputs:
		return BitValue(s.discreteInputs[address]), true
	case HoldingRegisters:
		return WordValue(s.holdingRegisters[address]), true
	default:
		return WordValue(s.inputRegisters[address]), true
	}
}

// Bits returns a copy of a bit bank. Register banks return nil.
func (s Snapshot) Bits(b Bank) []bool {
	switch b {
	case Coils:
		return cloneBits(s.coils)
	case DiscreteInputs:
		return cloneBits(s.discreteInputs)
	}
	return nil
}

// Words returns a copy of a register bank. Bit banks return nil.
func (s Snapshot) Words(b Bank) []uint16 {
	switch b {
	case HoldingRegisters:
		return cloneWords(s.holdingRegisters)
	case InputRegisters:
		return cloneWords(s.inputRegisters)
	}
	return nil
}

// WordRange returns length words of bank b starting at start. Addresses past
// the end of the bank read as zero.
func (s Snapshot) WordRange(b Bank, start, length int) []uint16 {
	if length <= 0 {
		return nil
	}
	out := make([]uint16, length)
	for i := range out {
		if v, ok := s.At(b, start+i); ok {
			out[i] = v.Word
		}
	}
	return out
}

// IsZero reports whether the snapshot carries no device data.
func (s Snapshot) IsZero() bool {
	return s.SlaveID == 0 && s.ObservedAt.IsZero()
}

func cloneBits(in []bool) []bool {
	if in == nil {
		return nil
	}
	out := make([]bool, len(in))
	copy(out, in)
	return out
}

func cloneWords(in []uint16) []uint16 {
	if in == nil {
		return nil
	}
	out := make([]uint16, len(in))
	copy(out, in)
	return out
}
