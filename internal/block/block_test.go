package block_test

import (
	"testing"

	"github.com/retroenv/contractcfg/internal/arch/mocks"
	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/xref"
	"github.com/retroenv/retrogolib/assert"
)

func build(instructions []instruction.Instruction, targets map[uint64][]uint64) ([]*block.BasicBlock, []block.Edge) {
	ar := &mocks.Architecture{Targets: targets}
	resolver := ar.Resolver(instructions)
	xrefs := xref.Enumerate(instructions, resolver)
	return block.Build(instructions, resolver, xrefs)
}

func TestBuild_Linear(t *testing.T) {
	instructions := mocks.Linear(mocks.Nop, mocks.Nop, mocks.Nop, mocks.Halt)

	blocks, edges := build(instructions, nil)
	assert.Len(t, blocks, 1)
	assert.Len(t, edges, 0)

	bb := blocks[0]
	assert.Equal(t, "block_0", bb.Name)
	assert.Equal(t, uint64(0), bb.StartOffset)
	assert.Equal(t, uint64(3), bb.EndOffset)
	assert.Equal(t, bb.Instructions[0], bb.Start)
	assert.Equal(t, bb.Instructions[3], bb.End)
}

func TestBuild_Unconditional(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Jmp, 10),
		mocks.Instruction(10, mocks.Nop, 1),
		mocks.Instruction(11, mocks.Halt, 1),
	}

	blocks, edges := build(instructions, map[uint64][]uint64{0: {10}})
	assert.Len(t, blocks, 2)
	assert.Equal(t, "block_0", blocks[0].Name)
	assert.Equal(t, uint64(9), blocks[0].EndOffset)
	assert.Equal(t, "block_a", blocks[1].Name)

	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_a", Kind: block.Unconditional},
	}, edges)
}

func TestBuild_Conditional(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Jcc, 2),
		mocks.Instruction(2, mocks.Nop, 1),
		mocks.Instruction(3, mocks.Halt, 1),
		mocks.Instruction(4, mocks.Halt, 1),
	}

	blocks, edges := build(instructions, map[uint64][]uint64{0: {4}})
	assert.Len(t, blocks, 3)

	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_4", Kind: block.ConditionalTrue},
		{Source: "block_0", Target: "block_2", Kind: block.ConditionalFalse},
	}, edges)
}

func TestBuild_Fallthrough(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Nop, 1),
		mocks.Instruction(1, mocks.Jmp, 2),
	}

	// the jump targets itself, which splits the block in front of it
	blocks, edges := build(instructions, map[uint64][]uint64{1: {1}})
	assert.Len(t, blocks, 2)
	assert.Equal(t, "block_0", blocks[0].Name)
	assert.Equal(t, "block_1", blocks[1].Name)

	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_1", Kind: block.Fallthrough},
		{Source: "block_1", Target: "block_1", Kind: block.Unconditional},
	}, edges)
}

func TestBuild_TrailingBranch(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Nop, 1),
		mocks.Instruction(1, mocks.Jcc, 2),
	}

	blocks, edges := build(instructions, map[uint64][]uint64{1: {0}})
	assert.Len(t, blocks, 1)

	// no false edge as no block follows the trailing branch
	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_0", Kind: block.ConditionalTrue},
	}, edges)
}

func TestBuild_DeduplicatesEdges(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Jcc, 2),
		mocks.Instruction(2, mocks.Halt, 1),
	}

	// both the taken and the not taken path lead to the same block
	blocks, edges := build(instructions, map[uint64][]uint64{0: {2, 2}})
	assert.Len(t, blocks, 2)
	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_2", Kind: block.ConditionalTrue},
		{Source: "block_0", Target: "block_2", Kind: block.ConditionalFalse},
	}, edges)
}

func TestBuild_Partition(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Nop, 1),
		mocks.Instruction(1, mocks.Jcc, 3),
		mocks.Instruction(4, mocks.Nop, 1),
		mocks.Instruction(5, mocks.Halt, 1),
		mocks.Instruction(6, mocks.Nop, 1),
		mocks.Instruction(7, mocks.Halt, 1),
	}

	blocks, _ := build(instructions, map[uint64][]uint64{1: {6}})

	var covered []instruction.Instruction
	for _, bb := range blocks {
		covered = append(covered, bb.Instructions...)
	}
	assert.Equal(t, instructions, covered)
}

func TestEdgeKind_String(t *testing.T) {
	assert.Equal(t, "unconditional", block.Unconditional.String())
	assert.Equal(t, "conditional_true", block.ConditionalTrue.String())
	assert.Equal(t, "conditional_false", block.ConditionalFalse.String())
	assert.Equal(t, "fallthrough", block.Fallthrough.String())
	assert.Equal(t, "unknown", block.EdgeKind(99).String())
}
