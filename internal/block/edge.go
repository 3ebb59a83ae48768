package block

import "github.com/retroenv/retrogolib/set"

// EdgeKind classifies a control-flow edge between two basic blocks.
type EdgeKind uint8

// edge kinds.
const (
	Unconditional EdgeKind = iota
	ConditionalTrue
	ConditionalFalse
	Fallthrough
)

var edgeKindNames = map[EdgeKind]string{
	Unconditional:    "unconditional",
	ConditionalTrue:  "conditional_true",
	ConditionalFalse: "conditional_false",
	Fallthrough:      "fallthrough",
}

func (k EdgeKind) String() string {
	if name, ok := edgeKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Edge is a directed control-flow edge. Edges reference blocks by name so that a target
// can be addressed before the target block is constructed.
// Edge is a comparable value type and can be used as map or set key.
type Edge struct {
	Source string
	Target string
	Kind   EdgeKind
}

// edgeList collects edges in insertion order and drops duplicates.
type edgeList struct {
	seen  set.Set[Edge]
	edges []Edge
}

func newEdgeList() *edgeList {
	return &edgeList{
		seen: set.New[Edge](),
	}
}

func (l *edgeList) add(edge Edge) {
	if l.seen.Contains(edge) {
		return
	}
	l.seen.Add(edge)
	l.edges = append(l.edges, edge)
}
