// Package arch contains types and functions used for multi platform support.
// It acts as a bridge between the generic control-flow recovery and the platform specific code.
package arch

import (
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
	"github.com/retroenv/contractcfg/internal/symbols"
)

// Architecture contains platform specific information.
// Platform differences are expressed as data and small resolvers, the control-flow
// recovery itself is shared by all platforms.
type Architecture interface {
	// Name returns the platform name.
	Name() string
	// Table returns the opcode table of the platform.
	Table() *opcode.Table
	// Disassemble turns raw module bytes into an instruction sequence. Platforms that
	// ship function boundaries inside the module format also return a symbol table.
	Disassemble(code []byte) (Module, error)
	// Resolver returns the branch resolver for the given instruction sequence.
	Resolver(instructions []instruction.Instruction) BranchResolver
	// CallTarget returns the statically resolvable callee of a call instruction.
	CallTarget(ins instruction.Instruction) (CallRef, bool)
	// StateConfig returns the virtual machine state limits of the platform.
	StateConfig() StateConfig
}

// LeaderProvider is implemented by platforms that know additional block leaders
// that are not branch targets, for example EVM jump destinations.
type LeaderProvider interface {
	Leaders(instructions []instruction.Instruction) []uint64
}

// BranchResolver resolves the static targets of branch instructions.
type BranchResolver interface {
	// Targets returns the static target offsets of the branch at the given index of the
	// instruction sequence. An empty result marks a dynamic target.
	Targets(index int) []uint64
}

// Module is the result of disassembling raw module bytes.
type Module struct {
	Instructions []instruction.Instruction
	Symbols      *symbols.Table // optional function table, nil if the format has none
	Imports      []string       // names of imported functions, indexed by function index

	// FunctionOffsets contains the entry offsets of the module defined functions in
	// function index order, not counting imported functions.
	FunctionOffsets []uint64
}

// CallRef references the callee of a call instruction.
type CallRef struct {
	ByIndex bool   // callee is referenced by function index instead of offset
	Index   uint64 // function index including imported functions
	Offset  uint64 // offset of the callee entry
}

// StateConfig defines the virtual machine state limits of a platform.
type StateConfig struct {
	Gas           uint64 // default gas or fuel budget of an execution
	MemoryCeiling uint64 // exclusive upper bound for memory extension requests
}

// Default state limits used by all supported platforms.
const (
	DefaultGas           = 1000000
	DefaultMemoryCeiling = 4096
)

// DefaultStateConfig returns the default virtual machine state limits.
func DefaultStateConfig() StateConfig {
	return StateConfig{
		Gas:           DefaultGas,
		MemoryCeiling: DefaultMemoryCeiling,
	}
}

// ResolverFunc adapts a function to the BranchResolver interface.
type ResolverFunc func(index int) []uint64

// Targets calls f(index).
func (f ResolverFunc) Targets(index int) []uint64 {
	return f(index)
}
