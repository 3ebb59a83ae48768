// Package opcode contains the static opcode metadata tables that drive instruction decoding.
package opcode

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownOpcode is returned when a byte does not map to any table entry.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrUnknownMnemonic is returned when a mnemonic is not part of the table.
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
)

// Flags describes the control-flow class of an opcode.
type Flags uint8

// control-flow flags.
const (
	EntersBlock Flags = 1 << iota // opens a structured block (wasm block/loop/if)
	LeavesBlock                   // closes a structured block (wasm else/end)
	Branch                        // transfers control to a static or dynamic target
	NoFlow                        // execution does not continue to the next instruction
	Conditional                   // branch is only taken depending on a condition
	Call                          // transfers control to another function and returns
)

// Is returns whether all given flags are set.
func (f Flags) Is(flags Flags) bool {
	return f&flags == flags
}

// Entry is the immutable metadata of a single opcode.
type Entry struct {
	Mnemonic string
	Operand  OperandShape
	Flags    Flags
	Pops     int
	Pushes   int
}

// UnknownOpcodeError reports a byte that has no table entry.
type UnknownOpcodeError struct {
	Table  string
	Opcode byte
	Offset uint64
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("%s: opcode 0x%02x at offset 0x%x", e.Table, e.Opcode, e.Offset)
}

func (e *UnknownOpcodeError) Unwrap() error {
	return ErrUnknownOpcode
}

// Table maps opcode values to entries for one platform.
type Table struct {
	name    string
	entries [256]*Entry
	reverse map[string]byte
}

// NewTable creates a table from the given entries and builds the reverse mnemonic index.
func NewTable(name string, entries map[byte]Entry) (*Table, error) {
	t := &Table{
		name:    name,
		reverse: make(map[string]byte, len(entries)),
	}

	for op, entry := range entries {
		if entry.Mnemonic == "" {
			return nil, fmt.Errorf("opcode 0x%02x has no mnemonic", op)
		}
		if existing, ok := t.reverse[entry.Mnemonic]; ok {
			return nil, fmt.Errorf("mnemonic '%s' used by opcodes 0x%02x and 0x%02x", entry.Mnemonic, existing, op)
		}
		entry := entry
		t.entries[op] = &entry
		t.reverse[entry.Mnemonic] = op
	}
	return t, nil
}

// MustNewTable creates a table and panics on invalid table data.
// It is meant for package level tables that are defined in code.
func MustNewTable(name string, entries map[byte]Entry) *Table {
	t, err := NewTable(name, entries)
	if err != nil {
		panic(fmt.Sprintf("creating %s opcode table: %s", name, err))
	}
	return t
}

// Name returns the platform name of the table.
func (t *Table) Name() string {
	return t.name
}

// Lookup returns the entry for the given opcode.
func (t *Table) Lookup(op byte) (Entry, error) {
	entry := t.entries[op]
	if entry == nil {
		return Entry{}, &UnknownOpcodeError{Table: t.name, Opcode: op}
	}
	return *entry, nil
}

// ReverseLookup returns the opcode and entry for the given mnemonic.
func (t *Table) ReverseLookup(mnemonic string) (byte, Entry, error) {
	op, ok := t.reverse[mnemonic]
	if !ok {
		return 0, Entry{}, fmt.Errorf("%s: '%s': %w", t.name, mnemonic, ErrUnknownMnemonic)
	}
	return op, *t.entries[op], nil
}

// Len returns the number of defined opcodes.
func (t *Table) Len() int {
	return len(t.reverse)
}

// Opcodes returns all defined opcodes in ascending order.
func (t *Table) Opcodes() []byte {
	ops := make([]byte, 0, len(t.reverse))
	for _, op := range t.reverse {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		return ops[i] < ops[j]
	})
	return ops
}
