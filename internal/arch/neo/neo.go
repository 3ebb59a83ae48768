// Package neo provides the NEO 2 AVM platform support.
package neo

import (
	"encoding/binary"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// Name of the platform.
const Name = "neo"

var _ arch.Architecture = (*Neo)(nil)

// Neo implements the NEO 2 AVM platform.
type Neo struct{}

// New returns a new NEO platform.
func New() *Neo {
	return &Neo{}
}

// Name returns the platform name.
func (n *Neo) Name() string {
	return Name
}

// Table returns the AVM opcode table.
func (n *Neo) Table() *opcode.Table {
	return table
}

// Disassemble decodes an AVM script. Scripts carry no function table.
func (n *Neo) Disassemble(code []byte) (arch.Module, error) {
	instructions, err := instruction.Decode(table, code, 0)
	if err != nil {
		return arch.Module{}, err
	}
	return arch.Module{Instructions: instructions}, nil
}

// Resolver returns a resolver that decodes the relative operand of the jump instructions.
func (n *Neo) Resolver(instructions []instruction.Instruction) arch.BranchResolver {
	return arch.ResolverFunc(func(index int) []uint64 {
		target, ok := BranchTarget(instructions[index])
		if !ok {
			return nil
		}
		return []uint64{target}
	})
}

// CallTarget returns the callee of the script local calls. Calls to other contracts
// and interop services are not resolvable.
func (n *Neo) CallTarget(ins instruction.Instruction) (arch.CallRef, bool) {
	target, ok := BranchTarget(ins)
	if !ok {
		return arch.CallRef{}, false
	}
	return arch.CallRef{Offset: target}, true
}

// StateConfig returns the default state limits.
func (n *Neo) StateConfig() arch.StateConfig {
	return arch.DefaultStateConfig()
}

// BranchTarget returns the absolute target of a relative jump or call. The signed
// little endian offset is relative to the start of the instruction, for the 3 byte
// encodings this equals operand + offset_end - 2.
func BranchTarget(ins instruction.Instruction) (uint64, bool) {
	var relative int16
	switch ins.Opcode {
	case Jmp, JmpIf, JmpIfNot, Call:
		if len(ins.Operand) != 2 {
			return 0, false
		}
		relative = int16(binary.LittleEndian.Uint16(ins.Operand))
		target := int64(relative) + int64(ins.OffsetEnd) - 2
		return checkedTarget(target)

	case CallI:
		// return value count, parameter count, offset
		if len(ins.Operand) != 4 {
			return 0, false
		}
		relative = int16(binary.LittleEndian.Uint16(ins.Operand[2:]))
		return checkedTarget(int64(relative) + int64(ins.Offset))

	default:
		return 0, false
	}
}

func checkedTarget(target int64) (uint64, bool) {
	if target < 0 {
		return 0, false
	}
	return uint64(target), true
}
