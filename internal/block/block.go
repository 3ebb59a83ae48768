// Package block partitions an instruction sequence into basic blocks and emits the
// control-flow edges between them.
package block

import (
	"fmt"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/retrogolib/set"
)

// BasicBlock is a maximal straight-line run of instructions.
type BasicBlock struct {
	Name        string
	StartOffset uint64
	EndOffset   uint64 // last byte of the last instruction, inclusive
	Start       instruction.Instruction
	End         instruction.Instruction

	Instructions []instruction.Instruction
}

// Name returns the deterministic block name for a start offset.
func Name(offset uint64) string {
	return fmt.Sprintf("block_%x", offset)
}

func newBlock(ins instruction.Instruction) *BasicBlock {
	return &BasicBlock{
		Name:        Name(ins.Offset),
		StartOffset: ins.Offset,
		Start:       ins,
	}
}

func (b *BasicBlock) close(ins instruction.Instruction) {
	b.EndOffset = ins.OffsetEnd
	b.End = ins
}

// Build walks the instructions in order and splits them into basic blocks at every
// instruction whose following offset is a cross reference. The edges are returned
// deduplicated in the order that they were first emitted.
func Build(instructions []instruction.Instruction, resolver arch.BranchResolver,
	xrefs set.Set[uint64]) ([]*BasicBlock, []Edge) {

	var blocks []*BasicBlock
	edges := newEdgeList()

	var current *BasicBlock
	for i, ins := range instructions {
		if current == nil {
			current = newBlock(ins)
		}
		current.Instructions = append(current.Instructions, ins)

		if !xrefs.Contains(ins.Next()) {
			continue
		}

		addEdges(edges, current.Name, ins, resolver, i, i < len(instructions)-1)
		current.close(ins)
		blocks = append(blocks, current)
		current = nil
	}

	// the trailing block is only open if the last instruction did not close it,
	// it has no successor inside of the sequence
	if current != nil {
		last := len(instructions) - 1
		addEdges(edges, current.Name, instructions[last], resolver, last, false)
		current.close(instructions[last])
		blocks = append(blocks, current)
	}

	return blocks, edges.edges
}

// addEdges emits the outgoing edges of a block that ends with the given instruction.
// Edges to the following offset are only emitted if the block has a successor block.
func addEdges(edges *edgeList, source string, ins instruction.Instruction, resolver arch.BranchResolver,
	index int, hasNext bool) {

	switch {
	case ins.IsBranchUnconditional():
		for _, target := range resolver.Targets(index) {
			edges.add(Edge{Source: source, Target: Name(target), Kind: Unconditional})
		}

	case ins.IsBranchConditional():
		for _, target := range resolver.Targets(index) {
			edges.add(Edge{Source: source, Target: Name(target), Kind: ConditionalTrue})
		}
		if hasNext {
			edges.add(Edge{Source: source, Target: Name(ins.Next()), Kind: ConditionalFalse})
		}

	case ins.IsHalt():
		// no successor

	case hasNext:
		edges.add(Edge{Source: source, Target: Name(ins.Next()), Kind: Fallthrough})
	}
}
