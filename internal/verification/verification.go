// Package verification verifies the structural properties of a recovered control-flow graph.
package verification

import (
	"errors"
	"fmt"

	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/cfg"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/retrogolib/set"
)

// maxReported limits the number of reported violations per check.
const maxReported = 10

// Verification errors, the returned error wraps one of them for every failed check.
var (
	ErrBlockPartition    = errors.New("basic blocks do not partition the instructions")
	ErrFunctionPartition = errors.New("functions do not partition the instructions")
	ErrDuplicateBlock    = errors.New("duplicate basic block name")
	ErrDanglingEdge      = errors.New("edge target is not a basic block")
)

// Verify checks that the basic blocks and the functions of the graph each partition the
// instruction sequence, that block names are unique and that all conditional edges point
// to the start of a basic block. All violations are returned joined.
func Verify(graph *cfg.CFG) error {
	var errs []error

	var blockSpans [][]instruction.Instruction
	for _, bb := range graph.BasicBlocks {
		blockSpans = append(blockSpans, bb.Instructions)
	}
	if err := checkPartition(graph.Instructions, blockSpans); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrBlockPartition, err))
	}

	var functionSpans [][]instruction.Instruction
	for _, fun := range graph.Functions {
		functionSpans = append(functionSpans, fun.Instructions)
	}
	if err := checkPartition(graph.Instructions, functionSpans); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrFunctionPartition, err))
	}

	errs = append(errs, checkBlockNames(graph.BasicBlocks)...)
	errs = append(errs, checkEdges(graph)...)

	return errors.Join(errs...)
}

// checkPartition verifies that the concatenated spans equal the instruction sequence.
func checkPartition(instructions []instruction.Instruction, spans [][]instruction.Instruction) error {
	index := 0
	for _, span := range spans {
		if len(span) == 0 {
			return errors.New("empty span")
		}
		for _, ins := range span {
			if index >= len(instructions) {
				return fmt.Errorf("instruction at offset 0x%x is outside of the sequence", ins.Offset)
			}
			if expected := instructions[index].Offset; ins.Offset != expected {
				return fmt.Errorf("expected instruction at offset 0x%x but found 0x%x", expected, ins.Offset)
			}
			index++
		}
	}

	if index != len(instructions) {
		return fmt.Errorf("%d of %d instructions are not covered", len(instructions)-index, len(instructions))
	}
	return nil
}

func checkBlockNames(blocks []*block.BasicBlock) []error {
	var errs []error
	names := set.New[string]()
	for _, bb := range blocks {
		if names.Contains(bb.Name) {
			errs = append(errs, fmt.Errorf("%w '%s'", ErrDuplicateBlock, bb.Name))
			continue
		}
		names.Add(bb.Name)
	}
	return limit(errs)
}

// checkEdges verifies that conditional edges target a basic block. Unconditional edges
// may leave the sequence for unresolved or invalid targets.
func checkEdges(graph *cfg.CFG) []error {
	var errs []error
	for _, edge := range graph.Edges {
		if edge.Kind != block.ConditionalTrue && edge.Kind != block.ConditionalFalse {
			continue
		}
		if _, ok := graph.Block(edge.Target); !ok {
			errs = append(errs, fmt.Errorf("%w: %s edge from '%s' to '%s'",
				ErrDanglingEdge, edge.Kind, edge.Source, edge.Target))
		}
	}
	return limit(errs)
}

func limit(errs []error) []error {
	if len(errs) <= maxReported {
		return errs
	}
	remaining := len(errs) - maxReported
	errs = errs[:maxReported]
	return append(errs, fmt.Errorf("%d further violations", remaining))
}
