// Package vmstate models the machine state of a single execution path.
package vmstate

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/holiman/uint256"
	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
)

// State errors.
var (
	ErrMemoryBoundsExceeded = errors.New("memory bounds exceeded")
	ErrStackUnderflow       = errors.New("stack underflow")
)

// MemoryBoundsExceededError is returned for memory extension requests that reach the
// memory ceiling.
type MemoryBoundsExceededError struct {
	Start   uint64
	Size    uint64
	Ceiling uint64
}

func (e *MemoryBoundsExceededError) Error() string {
	return fmt.Sprintf("extending memory by %d bytes at %d exceeds ceiling %d", e.Size, e.Start, e.Ceiling)
}

func (e *MemoryBoundsExceededError) Unwrap() error {
	return ErrMemoryBoundsExceeded
}

// Config contains the limits of a state, zero values are replaced by the defaults.
type Config = arch.StateConfig

// Value is a stack value in its concrete, SSA and symbolic views.
type Value struct {
	Concrete uint256.Int
	SSA      string
	Symbolic Expression
}

// State is the machine state of one execution path. A state is owned by a single path,
// Fork returns a copy for every additional path.
type State struct {
	Storage       map[uint256.Int]uint256.Int
	Memory        []byte
	Stack         []uint256.Int
	SSAStack      []string
	SymbolicStack []Expression
	LastReturned  []byte

	Gas     uint64
	PC      uint64
	Current *instruction.Instruction
	Visited []uint64

	ceiling  uint64
	ssaCount int
}

// New returns an empty state using the passed limits.
func New(cfg Config) *State {
	if cfg.Gas == 0 {
		cfg.Gas = arch.DefaultGas
	}
	if cfg.MemoryCeiling == 0 {
		cfg.MemoryCeiling = arch.DefaultMemoryCeiling
	}

	return &State{
		Storage: make(map[uint256.Int]uint256.Int),
		Gas:     cfg.Gas,
		ceiling: cfg.MemoryCeiling,
	}
}

// ExtendMemory grows the memory with zero bytes so that the range [start, start+size)
// is addressable. Requests with a start or size at or above the ceiling are rejected.
func (s *State) ExtendMemory(start, size uint64) error {
	if start >= s.ceiling || size >= s.ceiling {
		return &MemoryBoundsExceededError{Start: start, Size: size, Ceiling: s.ceiling}
	}

	if end := start + size; size > 0 && end > uint64(len(s.Memory)) {
		s.Memory = append(s.Memory, make([]byte, end-uint64(len(s.Memory)))...)
	}
	return nil
}

// Push pushes a value onto the stack and returns the SSA name that was assigned to it.
// A nil expression is replaced by the constant value.
func (s *State) Push(value uint256.Int, expr Expression) string {
	if expr == nil {
		expr = Constant{Value: value}
	}

	name := fmt.Sprintf("%%%d", s.ssaCount)
	s.ssaCount++

	s.Stack = append(s.Stack, value)
	s.SSAStack = append(s.SSAStack, name)
	s.SymbolicStack = append(s.SymbolicStack, expr)
	return name
}

// Pop removes the top value of the stack.
func (s *State) Pop() (Value, error) {
	n := len(s.Stack)
	if n == 0 {
		return Value{}, ErrStackUnderflow
	}

	v := Value{
		Concrete: s.Stack[n-1],
		SSA:      s.SSAStack[n-1],
		Symbolic: s.SymbolicStack[n-1],
	}
	s.Stack = s.Stack[:n-1]
	s.SSAStack = s.SSAStack[:n-1]
	s.SymbolicStack = s.SymbolicStack[:n-1]
	return v, nil
}

// Step records the execution of the instruction and consumes one unit of gas.
// It returns false if the gas is exhausted, the instruction is not executed in that case.
func (s *State) Step(ins instruction.Instruction) bool {
	if !s.Consume(1) {
		return false
	}

	s.PC = ins.Offset
	s.Current = &ins
	s.Visited = append(s.Visited, ins.Offset)
	return true
}

// Consume subtracts the cost from the remaining gas. If not enough gas is left the
// gas is set to zero and false is returned.
func (s *State) Consume(cost uint64) bool {
	if cost > s.Gas {
		s.Gas = 0
		return false
	}
	s.Gas -= cost
	return true
}

// Store writes a storage slot.
func (s *State) Store(key, value uint256.Int) {
	s.Storage[key] = value
}

// Load reads a storage slot, unset slots are zero.
func (s *State) Load(key uint256.Int) uint256.Int {
	return s.Storage[key]
}

// Fork returns a deep copy of the state that shares no mutable data with it.
func (s *State) Fork() *State {
	fork := *s
	fork.Storage = maps.Clone(s.Storage)
	fork.Memory = slices.Clone(s.Memory)
	fork.Stack = slices.Clone(s.Stack)
	fork.SSAStack = slices.Clone(s.SSAStack)
	fork.SymbolicStack = slices.Clone(s.SymbolicStack)
	fork.LastReturned = slices.Clone(s.LastReturned)
	fork.Visited = slices.Clone(s.Visited)
	if s.Current != nil {
		current := *s.Current
		fork.Current = &current
	}
	return &fork
}
