// Package function groups an instruction sequence into function sized spans.
package function

import (
	"fmt"

	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/symbols"
)

// MainName is the name of the entry function of a module.
const MainName = "Main"

// Boundary describes how the extent of a function was determined.
type Boundary uint8

// boundary sources.
const (
	Heuristic Boundary = iota // halt delimited linear layout
	Symbol                    // explicit symbol or export table
)

func (b Boundary) String() string {
	if b == Symbol {
		return "symbol"
	}
	return "heuristic"
}

// Function is a contiguous span of the module instruction sequence.
type Function struct {
	Name        string
	StartOffset uint64
	EndOffset   uint64 // last byte of the last instruction, inclusive
	Size        uint64
	Start       instruction.Instruction
	End         instruction.Instruction
	Boundary    Boundary

	Instructions []instruction.Instruction // sub slice of the module sequence
	BasicBlocks  []*block.BasicBlock       // blocks whose start offset is inside the function
}

// Name returns the deterministic function name for a start offset.
func Name(offset uint64) string {
	return fmt.Sprintf("func_%x", offset)
}

// Contains returns whether the offset is inside of the function.
func (f *Function) Contains(offset uint64) bool {
	return offset >= f.StartOffset && offset <= f.EndOffset
}

// Enumerate splits the instructions into functions using the halt instruction heuristic.
// The first function starts at the first instruction and is named Main. Every function ends
// at a halt instruction or at the last instruction, the following instruction starts the next
// function. This assumes single entry, non overlapping, linearly laid out function bodies.
func Enumerate(instructions []instruction.Instruction) []*Function {
	var functions []*Function
	start := 0

	for i, ins := range instructions {
		if !ins.IsHalt() && i != len(instructions)-1 {
			continue
		}

		name := MainName
		if start > 0 {
			name = Name(instructions[start].Offset)
		}
		functions = append(functions, newFunction(name, instructions[start:i+1], Heuristic))
		start = i + 1
	}
	return functions
}

// FromSymbols splits the instructions at the offsets of the symbol table. Symbols that do not
// point to the start of an instruction are ignored. Instructions in front of the first symbol
// form the Main function.
func FromSymbols(instructions []instruction.Instruction, table *symbols.Table) []*Function {
	if len(instructions) == 0 {
		return nil
	}

	var functions []*Function
	start := 0
	name := MainName

	for i, ins := range instructions {
		sym, ok := table.Get(ins.Offset)
		if !ok {
			continue
		}
		if i > start {
			functions = append(functions, newFunction(name, instructions[start:i], Symbol))
		}
		start = i
		name = sym.Name
	}

	functions = append(functions, newFunction(name, instructions[start:], Symbol))
	return functions
}

func newFunction(name string, instructions []instruction.Instruction, boundary Boundary) *Function {
	first := instructions[0]
	last := instructions[len(instructions)-1]

	return &Function{
		Name:         name,
		StartOffset:  first.Offset,
		EndOffset:    last.OffsetEnd,
		Size:         last.OffsetEnd - first.Offset,
		Start:        first,
		End:          last,
		Boundary:     boundary,
		Instructions: instructions[:len(instructions):len(instructions)],
	}
}
