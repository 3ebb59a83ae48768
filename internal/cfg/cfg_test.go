package cfg

import (
	"errors"
	"testing"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/arch/mocks"
	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/function"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/symbols"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func build(t *testing.T, ar arch.Architecture, instructions []instruction.Instruction, opts ...Option) *CFG {
	t.Helper()
	opts = append([]Option{WithInstructions(instructions), WithLogger(log.NewTestLogger(t))}, opts...)
	graph, err := Build(ar, opts...)
	assert.NoError(t, err)
	return graph
}

func blockNames(graph *CFG) []string {
	names := make([]string, 0, len(graph.BasicBlocks))
	for _, bb := range graph.BasicBlocks {
		names = append(names, bb.Name)
	}
	return names
}

func TestBuild_Linear(t *testing.T) {
	instructions := mocks.Linear(mocks.Nop, mocks.Nop, mocks.Nop, mocks.Nop, mocks.Nop, mocks.Nop)
	graph := build(t, &mocks.Architecture{}, instructions)

	assert.Len(t, graph.Functions, 1)
	assert.Equal(t, function.MainName, graph.Functions[0].Name)
	assert.Len(t, graph.BasicBlocks, 1)
	assert.Len(t, graph.Edges, 0)
	assert.True(t, graph.Analyzed())
}

func TestBuild_UnconditionalBranch(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Jmp, 10),
		mocks.Instruction(10, mocks.Nop, 1),
		mocks.Instruction(11, mocks.Halt, 1),
	}
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {10}}}
	graph := build(t, ar, instructions)

	assert.Equal(t, []string{"block_0", "block_a"}, blockNames(graph))
	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_a", Kind: block.Unconditional},
	}, graph.Edges)
	assert.Len(t, graph.Successors("block_a"), 0)
}

func conditionalSequence() []instruction.Instruction {
	instructions := []instruction.Instruction{mocks.Instruction(0, mocks.Jcc, 5)}
	for offset := uint64(5); offset < 20; offset++ {
		instructions = append(instructions, mocks.Instruction(offset, mocks.Nop, 1))
	}
	return append(instructions, mocks.Instruction(20, mocks.Halt, 1))
}

func TestBuild_ConditionalBranch(t *testing.T) {
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {20}}}
	graph := build(t, ar, conditionalSequence())

	assert.Equal(t, []string{"block_0", "block_5", "block_14"}, blockNames(graph))
	assert.Equal(t, []block.Edge{
		{Source: "block_0", Target: "block_14", Kind: block.ConditionalTrue},
		{Source: "block_0", Target: "block_5", Kind: block.ConditionalFalse},
	}, graph.Successors("block_0"))
	assert.Equal(t, []block.Edge{
		{Source: "block_5", Target: "block_14", Kind: block.Fallthrough},
	}, graph.Successors("block_5"))
}

func TestBuild_FunctionBoundaries(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Nop, 15),
		mocks.Instruction(15, mocks.Halt, 1),
		mocks.Instruction(16, mocks.Nop, 1),
		mocks.Instruction(17, mocks.Halt, 1),
	}
	graph := build(t, &mocks.Architecture{}, instructions)

	assert.Len(t, graph.Functions, 2)
	entry := graph.Functions[0]
	assert.Equal(t, function.MainName, entry.Name)
	assert.Equal(t, uint64(15), entry.EndOffset)
	second := graph.Functions[1]
	assert.Equal(t, "func_10", second.Name)
	assert.Equal(t, uint64(16), second.StartOffset)

	for _, ins := range entry.Instructions {
		assert.False(t, second.Contains(ins.Offset))
	}

	assert.Len(t, entry.BasicBlocks, 1)
	assert.Len(t, second.BasicBlocks, 1)
	assert.Equal(t, "block_10", second.BasicBlocks[0].Name)
}

func TestBuild_BlockAtFinalHalt(t *testing.T) {
	// the conditional branch targets the one byte halt that ends the function
	instructions := mocks.Linear(mocks.Jcc, mocks.Nop, mocks.Halt)
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {2}}}
	graph := build(t, ar, instructions)

	assert.Len(t, graph.Functions, 1)
	entry := graph.Functions[0]
	assert.Equal(t, uint64(2), entry.EndOffset)
	assert.Len(t, entry.BasicBlocks, 3)
	assert.Equal(t, "block_2", entry.BasicBlocks[2].Name)
}

func TestBuild_Symbols(t *testing.T) {
	instructions := mocks.Linear(mocks.Nop, mocks.Nop, mocks.Nop, mocks.Halt)

	table := symbols.New()
	assert.NoError(t, table.Add(symbols.Symbol{Offset: 2, Name: "withdraw"}))
	graph := build(t, &mocks.Architecture{}, instructions, WithSymbols(table))

	assert.Len(t, graph.Functions, 2)
	assert.Equal(t, function.MainName, graph.Functions[0].Name)
	assert.Equal(t, "withdraw", graph.Functions[1].Name)
	assert.Equal(t, function.Symbol, graph.Functions[1].Boundary)

	fun, ok := graph.FunctionAt(3)
	assert.True(t, ok)
	assert.Equal(t, "withdraw", fun.Name)

	// the symbol entry splits the straight line code into two blocks
	assert.Len(t, graph.BasicBlocks, 2)
	assert.Len(t, graph.Functions[0].BasicBlocks, 1)
	assert.Equal(t, "block_0", graph.Functions[0].BasicBlocks[0].Name)
	assert.Len(t, fun.BasicBlocks, 1)
	assert.Equal(t, "block_2", fun.BasicBlocks[0].Name)

	edges := graph.Successors("block_0")
	assert.Len(t, edges, 1)
	assert.Equal(t, block.Fallthrough, edges[0].Kind)
	assert.Equal(t, "block_2", edges[0].Target)
}

func TestBuild_Bytecode(t *testing.T) {
	table := symbols.New()
	assert.NoError(t, table.Add(symbols.Symbol{Offset: 1, Name: "exported"}))

	ar := &mocks.Architecture{
		Module: arch.Module{
			Instructions: mocks.Linear(mocks.Halt, mocks.Halt),
			Symbols:      table,
		},
	}
	graph, err := Build(ar, WithBytecode([]byte{0x01, 0x01}))
	assert.NoError(t, err)
	assert.Len(t, graph.Instructions, 2)
	assert.Equal(t, "exported", graph.Functions[1].Name)
	assert.Equal(t, "mock", graph.Architecture().Name())
}

func TestBuild_Errors(t *testing.T) {
	_, err := Build(&mocks.Architecture{})
	assert.True(t, errors.Is(err, ErrMissingInput))

	errDecode := errors.New("decode failure")
	_, err = Build(&mocks.Architecture{Err: errDecode}, WithBytecode([]byte{0x42}))
	assert.True(t, errors.Is(err, errDecode))
	assert.ErrorContains(t, err, "disassembling mock bytecode")
}

func TestBuild_Empty(t *testing.T) {
	graph := build(t, &mocks.Architecture{}, []instruction.Instruction{})
	assert.Len(t, graph.Functions, 0)
	assert.Len(t, graph.BasicBlocks, 0)

	_, ok := graph.EntryBlock()
	assert.False(t, ok)
}

func TestRunStaticAnalysis_Idempotent(t *testing.T) {
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {20}}}
	graph := build(t, ar, conditionalSequence(), WithoutStaticAnalysis())

	assert.False(t, graph.Analyzed())
	assert.Len(t, graph.BasicBlocks, 0)

	graph.RunStaticAnalysis()
	assert.True(t, graph.Analyzed())
	edges := len(graph.Edges)
	blocks := len(graph.Functions[0].BasicBlocks)

	graph.RunStaticAnalysis()
	assert.Equal(t, edges, len(graph.Edges))
	assert.Equal(t, blocks, len(graph.Functions[0].BasicBlocks))
}

func TestBuild_Deterministic(t *testing.T) {
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {20}}}
	first := build(t, ar, conditionalSequence())

	for range 10 {
		graph := build(t, ar, conditionalSequence())
		assert.Equal(t, blockNames(first), blockNames(graph))
		assert.Equal(t, first.Edges, graph.Edges)
	}
}

func TestCFG_Lookups(t *testing.T) {
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {20}}}
	graph := build(t, ar, conditionalSequence())

	entry, ok := graph.EntryBlock()
	assert.True(t, ok)
	assert.Equal(t, "block_0", entry.Name)

	bb, ok := graph.Block("block_5")
	assert.True(t, ok)
	assert.Equal(t, uint64(19), bb.EndOffset)

	_, ok = graph.Block("block_6")
	assert.False(t, ok)

	fun, ok := graph.Function(function.MainName)
	assert.True(t, ok)
	assert.Len(t, fun.BasicBlocks, 3)

	_, ok = graph.Function("missing")
	assert.False(t, ok)

	_, ok = graph.FunctionAt(21)
	assert.False(t, ok)
}

func TestCFG_BlockGraph(t *testing.T) {
	ar := &mocks.Architecture{Targets: map[uint64][]uint64{0: {20}}}
	graph := build(t, ar, conditionalSequence()).BlockGraph()

	assert.Len(t, graph.Nodes, 3)
	assert.Len(t, graph.Edges, 3)

	node := graph.Nodes[0]
	assert.Equal(t, "block_0", node.Name)
	assert.Equal(t, "0x0", node.Metadata["start"])
	assert.Equal(t, "0x4", node.Metadata["end"])
	assert.Equal(t, "1", node.Metadata["instructions"])
	assert.Equal(t, function.MainName, node.Metadata["function"])

	assert.Equal(t, GraphEdge{Source: "block_0", Target: "block_14", Kind: "conditional_true"}, graph.Edges[0])
}

func TestCFG_CallGraph(t *testing.T) {
	instructions := []instruction.Instruction{
		mocks.Instruction(0, mocks.Call, 1),
		mocks.Instruction(1, mocks.Call, 1),
		mocks.Instruction(2, mocks.Call, 1),
		mocks.Instruction(3, mocks.Call, 1),
		mocks.Instruction(4, mocks.Halt, 1),
		mocks.Instruction(5, mocks.Call, 1),
		mocks.Instruction(6, mocks.Halt, 1),
	}
	ar := &mocks.Architecture{
		Calls: map[uint64]arch.CallRef{
			0: {ByIndex: true, Index: 0},
			1: {ByIndex: true, Index: 1},
			2: {ByIndex: true, Index: 7},
			3: {Offset: 5},
			5: {ByIndex: true, Index: 0},
		},
		Module: arch.Module{
			Instructions:    instructions,
			Imports:         []string{"env.transfer"},
			FunctionOffsets: []uint64{0, 5},
		},
	}
	graph, err := Build(ar, WithBytecode([]byte{}), WithLogger(log.NewTestLogger(t)))
	assert.NoError(t, err)

	calls := graph.CallGraph()
	assert.Equal(t, []string{function.MainName, "func_5"}, calls.Functions)
	assert.Equal(t, []string{"env.transfer"}, calls.Imports)
	assert.Equal(t, []CallEdge{
		{Caller: function.MainName, Callee: "env.transfer"},
		{Caller: function.MainName, Callee: function.MainName},
		{Caller: function.MainName, Callee: "func_5"},
		{Caller: "func_5", Callee: "env.transfer"},
	}, calls.Edges)

	assert.Len(t, calls.Unresolved, 1)
	assert.Equal(t, uint64(2), calls.Unresolved[0].Instruction.Offset)

	interchange := calls.Graph()
	assert.Len(t, interchange.Nodes, 3)
	assert.Equal(t, "1", interchange.Nodes[0].Metadata["unresolved_calls"])
	assert.Equal(t, "true", interchange.Nodes[2].Metadata["imported"])
	assert.Len(t, interchange.Edges, 4)
	assert.Equal(t, "call", interchange.Edges[0].Kind)
}
