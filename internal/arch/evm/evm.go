// Package evm provides the Ethereum virtual machine platform support.
package evm

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// Name of the platform.
const Name = "evm"

// cbor map headers used by the compiler metadata trailer.
const (
	cborMap1 = 0xa1
	cborMap2 = 0xa2
	cborMap3 = 0xa3
)

var (
	_ arch.Architecture   = (*EVM)(nil)
	_ arch.LeaderProvider = (*EVM)(nil)
)

// EVM implements the Ethereum virtual machine platform.
type EVM struct {
	keepMetadata bool
}

// Option configures the platform.
type Option func(*EVM)

// WithMetadata disables the removal of the compiler metadata trailer before decoding.
func WithMetadata() Option {
	return func(e *EVM) {
		e.keepMetadata = true
	}
}

// New returns a new EVM platform.
func New(opts ...Option) *EVM {
	e := &EVM{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the platform name.
func (e *EVM) Name() string {
	return Name
}

// Table returns the opcode table that is derived from the go-ethereum opcode names.
func (e *EVM) Table() *opcode.Table {
	return table
}

// Disassemble decodes the runtime bytecode. A trailing compiler metadata section is
// removed first unless the platform was created using WithMetadata. The functions found
// in the selector dispatcher are returned as symbols.
func (e *EVM) Disassemble(code []byte) (arch.Module, error) {
	if !e.keepMetadata {
		code = StripMetadata(code)
	}

	instructions, err := instruction.Decode(table, code, 0)
	if err != nil {
		return arch.Module{}, err
	}
	return arch.Module{
		Instructions: instructions,
		Symbols:      dispatchSymbols(instructions),
	}, nil
}

// Resolver returns a resolver for jumps whose target is pushed by the directly
// preceding instruction. Targets that are not a JUMPDEST are invalid and not returned.
func (e *EVM) Resolver(instructions []instruction.Instruction) arch.BranchResolver {
	destinations := make(map[uint64]struct{})
	for _, offset := range e.Leaders(instructions) {
		destinations[offset] = struct{}{}
	}

	return arch.ResolverFunc(func(index int) []uint64 {
		if index == 0 {
			return nil
		}
		target, ok := PushValue(instructions[index-1])
		if !ok {
			return nil
		}
		if _, ok := destinations[target]; !ok {
			return nil
		}
		return []uint64{target}
	})
}

// Leaders returns the offsets of all JUMPDEST instructions, they start a basic block
// even if no static jump to them was found.
func (e *EVM) Leaders(instructions []instruction.Instruction) []uint64 {
	var leaders []uint64
	for _, ins := range instructions {
		if ins.Opcode == byte(vm.JUMPDEST) {
			leaders = append(leaders, ins.Offset)
		}
	}
	return leaders
}

// CallTarget always fails, calls leave the contract and are resolved by address at runtime.
func (e *EVM) CallTarget(instruction.Instruction) (arch.CallRef, bool) {
	return arch.CallRef{}, false
}

// StateConfig returns the default state limits.
func (e *EVM) StateConfig() arch.StateConfig {
	return arch.DefaultStateConfig()
}

// PushValue returns the value pushed by a PUSH instruction if it fits into 64 bits.
func PushValue(ins instruction.Instruction) (uint64, bool) {
	op := vm.OpCode(ins.Opcode)
	if !op.IsPush() {
		return 0, false
	}

	value := new(uint256.Int).SetBytes(ins.Operand)
	if !value.IsUint64() {
		return 0, false
	}
	return value.Uint64(), true
}

// StripMetadata removes the CBOR encoded compiler metadata that solc and vyper append to
// the runtime code. The last two bytes contain the big endian length of the metadata.
func StripMetadata(code []byte) []byte {
	if len(code) < 2 {
		return code
	}

	size := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	start := len(code) - 2 - size
	if size == 0 || start < 0 {
		return code
	}

	switch code[start] {
	case cborMap1, cborMap2, cborMap3:
		return code[:start]
	default:
		return code
	}
}
