package cfg

import (
	"fmt"
	"strconv"
)

// Node is a graph node in the interchange format.
type Node struct {
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// GraphEdge is a graph edge in the interchange format.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"`
}

// Graph is the two list interchange format consumed by rendering and graph algorithm code.
type Graph struct {
	Nodes []Node      `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// BlockGraph returns the basic blocks and block edges of the module.
func (c *CFG) BlockGraph() Graph {
	graph := Graph{
		Nodes: make([]Node, 0, len(c.BasicBlocks)),
		Edges: make([]GraphEdge, 0, len(c.Edges)),
	}

	for _, bb := range c.BasicBlocks {
		meta := map[string]string{
			"start":        hexOffset(bb.StartOffset),
			"end":          hexOffset(bb.EndOffset),
			"instructions": strconv.Itoa(len(bb.Instructions)),
		}
		if fun, ok := c.FunctionAt(bb.StartOffset); ok {
			meta["function"] = fun.Name
		}
		graph.Nodes = append(graph.Nodes, Node{Name: bb.Name, Metadata: meta})
	}

	for _, edge := range c.Edges {
		graph.Edges = append(graph.Edges, GraphEdge{
			Source: edge.Source,
			Target: edge.Target,
			Kind:   edge.Kind.String(),
		})
	}
	return graph
}

// Graph returns the call graph in the interchange format. Imported functions are marked
// in the node metadata.
func (g CallGraph) Graph() Graph {
	graph := Graph{
		Nodes: make([]Node, 0, len(g.Functions)+len(g.Imports)),
		Edges: make([]GraphEdge, 0, len(g.Edges)),
	}

	unresolved := make(map[string]int)
	for _, call := range g.Unresolved {
		unresolved[call.Function]++
	}

	for _, name := range g.Functions {
		meta := map[string]string{}
		if count := unresolved[name]; count > 0 {
			meta["unresolved_calls"] = strconv.Itoa(count)
		}
		graph.Nodes = append(graph.Nodes, Node{Name: name, Metadata: meta})
	}
	for _, name := range g.Imports {
		graph.Nodes = append(graph.Nodes, Node{
			Name:     name,
			Metadata: map[string]string{"imported": "true"},
		})
	}

	for _, edge := range g.Edges {
		graph.Edges = append(graph.Edges, GraphEdge{
			Source: edge.Caller,
			Target: edge.Callee,
			Kind:   "call",
		})
	}
	return graph
}

func hexOffset(offset uint64) string {
	return fmt.Sprintf("0x%x", offset)
}
