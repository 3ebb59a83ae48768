package cfg

import (
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

// CallEdge is a statically resolved call from one function to another.
type CallEdge struct {
	Caller string
	Callee string
}

// UnresolvedCall is a call site whose callee can only be determined by a dynamic
// or symbolic pass.
type UnresolvedCall struct {
	Function    string
	Instruction instruction.Instruction
}

// CallGraph is the function level view of the module.
type CallGraph struct {
	Functions  []string // module functions in offset order
	Imports    []string // imported functions that are called
	Edges      []CallEdge
	Unresolved []UnresolvedCall
}

// CallGraph derives the function to function edges from the call class instructions.
// Calls whose target can not be resolved statically are returned separately.
func (c *CFG) CallGraph() CallGraph {
	var graph CallGraph
	for _, fun := range c.Functions {
		graph.Functions = append(graph.Functions, fun.Name)
	}

	seenEdges := set.New[CallEdge]()
	seenImports := set.New[string]()

	for _, fun := range c.Functions {
		for _, ins := range fun.Instructions {
			if !ins.IsCall() {
				continue
			}

			callee, imported, ok := c.resolveCallee(ins)
			if !ok {
				graph.Unresolved = append(graph.Unresolved, UnresolvedCall{
					Function:    fun.Name,
					Instruction: ins,
				})
				continue
			}

			if imported && !seenImports.Contains(callee) {
				seenImports.Add(callee)
				graph.Imports = append(graph.Imports, callee)
			}

			edge := CallEdge{Caller: fun.Name, Callee: callee}
			if !seenEdges.Contains(edge) {
				seenEdges.Add(edge)
				graph.Edges = append(graph.Edges, edge)
			}
		}
	}

	c.logger.Debug("Call graph extracted",
		log.Int("edges", len(graph.Edges)),
		log.Int("unresolved", len(graph.Unresolved)))

	return graph
}

// resolveCallee returns the callee name and whether the callee is an imported function.
func (c *CFG) resolveCallee(ins instruction.Instruction) (string, bool, bool) {
	ref, ok := c.arch.CallTarget(ins)
	if !ok {
		return "", false, false
	}

	offset := ref.Offset
	if ref.ByIndex {
		if ref.Index < uint64(len(c.imports)) {
			return c.imports[ref.Index], true, true
		}
		local := ref.Index - uint64(len(c.imports))
		if local >= uint64(len(c.functionOffsets)) {
			return "", false, false
		}
		offset = c.functionOffsets[local]
	}

	fun, ok := c.FunctionAt(offset)
	if !ok {
		return "", false, false
	}
	return fun.Name, false, true
}
