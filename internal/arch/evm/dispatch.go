package evm

import (
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/symbols"
)

// selectorSize is the size of an ABI function selector in bytes.
const selectorSize = 4

// DispatchEntry is a public function entry of the selector dispatcher.
type DispatchEntry struct {
	Selector uint32
	Offset   uint64 // JUMPDEST that starts the function body
}

// SelectorName returns the symbol name that is used for a dispatched function.
func SelectorName(selector uint32) string {
	return fmt.Sprintf("selector_%08x", selector)
}

// Dispatch detects the function selector dispatcher that the compilers emit at the start
// of the runtime code. Every comparison of the call data selector against a constant
// is followed by a conditional jump to the function body:
//
//	[DUP1] PUSH4 selector EQ PUSHn target JUMPI
//	PUSH4 selector DUP2 EQ PUSHn target JUMPI
//
// Entries are returned in code order, a selector is only reported once.
func Dispatch(instructions []instruction.Instruction) []DispatchEntry {
	destinations := make(map[uint64]struct{})
	for _, ins := range instructions {
		if ins.Opcode == byte(vm.JUMPDEST) {
			destinations[ins.Offset] = struct{}{}
		}
	}

	var entries []DispatchEntry
	seen := make(map[uint32]struct{})

	for i, ins := range instructions {
		if ins.Opcode != byte(vm.PUSH4) || len(ins.Operand) != selectorSize {
			continue
		}

		rest := instructions[i+1:]
		if len(rest) > 0 && rest[0].Opcode == byte(vm.DUP2) {
			rest = rest[1:]
		}
		if len(rest) < 3 || rest[0].Opcode != byte(vm.EQ) || rest[2].Opcode != byte(vm.JUMPI) {
			continue
		}

		target, ok := PushValue(rest[1])
		if !ok {
			continue
		}
		if _, ok := destinations[target]; !ok {
			continue
		}

		value, _ := PushValue(ins)
		selector := uint32(value)
		if _, ok := seen[selector]; ok {
			continue
		}
		seen[selector] = struct{}{}
		entries = append(entries, DispatchEntry{Selector: selector, Offset: target})
	}
	return entries
}

// dispatchSymbols returns a symbol table naming the dispatched functions, nil if no
// dispatcher was found. Entries sharing a body keep the first selector name.
func dispatchSymbols(instructions []instruction.Instruction) *symbols.Table {
	entries := Dispatch(instructions)
	if len(entries) == 0 {
		return nil
	}

	table := symbols.New()
	for _, entry := range entries {
		if table.Has(entry.Offset) {
			continue
		}
		// offsets are checked above and Dispatch reports every selector once,
		// so neither the offset nor the name can collide
		_ = table.Add(symbols.Symbol{
			Offset:   entry.Offset,
			Name:     SelectorName(entry.Selector),
			Exported: true,
		})
	}
	return table
}
