// Package wasm provides the WebAssembly platform support used by EOS contracts.
package wasm

import (
	"bytes"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// Name of the platform.
const Name = "wasm"

var _ arch.Architecture = (*Wasm)(nil)

// Wasm implements the WebAssembly platform.
type Wasm struct{}

// New returns a new WebAssembly platform.
func New() *Wasm {
	return &Wasm{}
}

// Name returns the platform name.
func (w *Wasm) Name() string {
	return Name
}

// Table returns the WebAssembly MVP opcode table.
func (w *Wasm) Table() *opcode.Table {
	return table
}

// Disassemble parses a binary module. Input that does not start with the module magic is
// decoded as a single raw function body.
func (w *Wasm) Disassemble(code []byte) (arch.Module, error) {
	if HasMagic(code) {
		return ParseModule(code)
	}

	instructions, err := instruction.Decode(table, code, 0)
	if err != nil {
		return arch.Module{}, err
	}
	return arch.Module{Instructions: instructions}, nil
}

// HasMagic returns whether the data starts with the binary module magic.
func HasMagic(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Resolver returns a resolver that matches the structured control instructions.
func (w *Wasm) Resolver(instructions []instruction.Instruction) arch.BranchResolver {
	s := resolve(instructions)
	return arch.ResolverFunc(func(index int) []uint64 {
		return s.targets[index]
	})
}

// CallTarget returns the function index of a direct call. Indirect calls are resolved
// through the table at runtime.
func (w *Wasm) CallTarget(ins instruction.Instruction) (arch.CallRef, bool) {
	if ins.Opcode != Call {
		return arch.CallRef{}, false
	}

	index, _, err := opcode.ReadULEB128(ins.Operand)
	if err != nil {
		return arch.CallRef{}, false
	}
	return arch.CallRef{ByIndex: true, Index: index}, true
}

// StateConfig returns the default state limits.
func (w *Wasm) StateConfig() arch.StateConfig {
	return arch.DefaultStateConfig()
}
