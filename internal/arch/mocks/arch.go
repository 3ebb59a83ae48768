// Package mocks provides mock implementations of arch interfaces for testing.
package mocks

import (
	"fmt"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// Opcodes of the mock table.
const (
	Nop  byte = 0x00
	Halt byte = 0x01
	Jmp  byte = 0x02
	Jcc  byte = 0x03
	Call byte = 0x04
)

// Table is a minimal opcode table without operands, operand bytes of mock instructions are
// passed explicitly.
var Table = opcode.MustNewTable("mock", map[byte]opcode.Entry{
	Nop:  {Mnemonic: "nop"},
	Halt: {Mnemonic: "halt", Flags: opcode.NoFlow},
	Jmp:  {Mnemonic: "jmp", Flags: opcode.Branch},
	Jcc:  {Mnemonic: "jcc", Flags: opcode.Branch | opcode.Conditional, Pops: 1},
	Call: {Mnemonic: "call", Flags: opcode.Call},
})

var _ arch.Architecture = (*Architecture)(nil)

// Architecture is a mock platform with explicitly configured branch and call targets.
type Architecture struct {
	Targets map[uint64][]uint64     // branch instruction offset to static targets
	Calls   map[uint64]arch.CallRef // call instruction offset to callee
	Module  arch.Module             // returned by Disassemble
	Err     error                   // returned by Disassemble
	Config  arch.StateConfig
}

// Name returns the platform name.
func (m *Architecture) Name() string {
	return "mock"
}

// Table returns the mock table.
func (m *Architecture) Table() *opcode.Table {
	return Table
}

// Disassemble returns the configured module or error.
func (m *Architecture) Disassemble([]byte) (arch.Module, error) {
	return m.Module, m.Err
}

// Resolver resolves branches using the configured targets.
func (m *Architecture) Resolver(instructions []instruction.Instruction) arch.BranchResolver {
	return arch.ResolverFunc(func(index int) []uint64 {
		return m.Targets[instructions[index].Offset]
	})
}

// CallTarget returns the configured callee.
func (m *Architecture) CallTarget(ins instruction.Instruction) (arch.CallRef, bool) {
	ref, ok := m.Calls[ins.Offset]
	return ref, ok
}

// StateConfig returns the configured limits.
func (m *Architecture) StateConfig() arch.StateConfig {
	return m.Config
}

// Instruction creates an instruction of the mock table at the offset with the given total
// size in bytes.
func Instruction(offset uint64, op byte, size int) instruction.Instruction {
	entry, err := Table.Lookup(op)
	if err != nil {
		panic(fmt.Sprintf("mock opcode 0x%02x: %v", op, err))
	}

	var operand []byte
	if size > 1 {
		operand = make([]byte, size-1)
	}
	return instruction.New(offset, op, entry, operand)
}

// Linear creates consecutive single byte instructions starting at offset 0.
func Linear(ops ...byte) []instruction.Instruction {
	instructions := make([]instruction.Instruction, 0, len(ops))
	for i, op := range ops {
		instructions = append(instructions, Instruction(uint64(i), op, 1))
	}
	return instructions
}
