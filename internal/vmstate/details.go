package vmstate

import (
	"slices"
	"sort"
)

// Details is a snapshot of a state that is safe to keep after the state changed.
// Values are rendered as hex strings.
type Details struct {
	Storage       map[string]string `json:"storage"`
	Memory        []byte            `json:"memory"`
	Stack         []string          `json:"stack"`
	SSAStack      []string          `json:"ssa_stack"`
	SymbolicStack []string          `json:"symbolic_stack"`
	LastReturned  []byte            `json:"last_returned"`
	Gas           uint64            `json:"gas"`
	PC            uint64            `json:"pc"`
}

// Details returns a snapshot of the state.
func (s *State) Details() Details {
	d := Details{
		Storage:       make(map[string]string, len(s.Storage)),
		Memory:        slices.Clone(s.Memory),
		Stack:         make([]string, 0, len(s.Stack)),
		SSAStack:      slices.Clone(s.SSAStack),
		SymbolicStack: make([]string, 0, len(s.SymbolicStack)),
		LastReturned:  slices.Clone(s.LastReturned),
		Gas:           s.Gas,
		PC:            s.PC,
	}

	for key, value := range s.Storage {
		d.Storage[key.Hex()] = value.Hex()
	}
	for _, value := range s.Stack {
		d.Stack = append(d.Stack, value.Hex())
	}
	for _, expr := range s.SymbolicStack {
		d.SymbolicStack = append(d.SymbolicStack, expr.String())
	}
	return d
}

// StorageKeys returns the storage keys of the snapshot in sorted order.
func (d Details) StorageKeys() []string {
	keys := make([]string, 0, len(d.Storage))
	for key := range d.Storage {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
