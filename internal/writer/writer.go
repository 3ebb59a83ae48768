// Package writer implements the output formats of the recovered control-flow graph.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/cfg"
	"github.com/retroenv/contractcfg/internal/explore"
	"github.com/retroenv/contractcfg/internal/vmstate"
)

// Format is an output format.
type Format string

// supported output formats.
const (
	Text Format = "text"
	JSON Format = "json"
	Dot  Format = "dot"
)

// Formats returns all supported output formats.
func Formats() []Format {
	return []Format{Text, JSON, Dot}
}

// maxInstructionsShown limits the instructions that are listed in a dot node label.
const maxInstructionsShown = 20

// Options of the writer.
type Options struct {
	CallGraph bool           // output the call graph instead of the block graph
	Paths     []explore.Path // explored paths that are appended to the output
}

// Writer writes a control-flow graph in one of the supported formats.
type Writer struct {
	graph   *cfg.CFG
	options Options
	writer  io.Writer
}

// New creates a new writer.
func New(graph *cfg.CFG, writer io.Writer, options Options) *Writer {
	return &Writer{
		graph:   graph,
		options: options,
		writer:  writer,
	}
}

// Write outputs the graph in the given format.
func (w Writer) Write(format Format) error {
	switch format {
	case Text:
		return w.writeText()
	case JSON:
		return w.writeJSON()
	case Dot:
		return w.writeDot()
	default:
		return fmt.Errorf("unsupported output format '%s'", format)
	}
}

func (w Writer) writeText() error {
	if w.options.CallGraph {
		return w.writeCallGraphText()
	}

	for _, fun := range w.graph.Functions {
		if _, err := fmt.Fprintf(w.writer, "%s: ; 0x%04x-0x%04x %s\n",
			fun.Name, fun.StartOffset, fun.EndOffset, fun.Boundary); err != nil {
			return fmt.Errorf("writing function header: %w", err)
		}

		for _, bb := range fun.BasicBlocks {
			if _, err := fmt.Fprintf(w.writer, "  %s:\n", bb.Name); err != nil {
				return fmt.Errorf("writing block label: %w", err)
			}
			for _, ins := range bb.Instructions {
				if _, err := fmt.Fprintf(w.writer, "    %s\n", ins); err != nil {
					return fmt.Errorf("writing instruction: %w", err)
				}
			}
			for _, edge := range w.graph.Successors(bb.Name) {
				if _, err := fmt.Fprintf(w.writer, "    -> %s (%s)\n", edge.Target, edge.Kind); err != nil {
					return fmt.Errorf("writing edge: %w", err)
				}
			}
		}

		if _, err := fmt.Fprintln(w.writer); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}

	return w.writePathsText()
}

func (w Writer) writeCallGraphText() error {
	calls := w.graph.CallGraph()

	for _, edge := range calls.Edges {
		if _, err := fmt.Fprintf(w.writer, "%s -> %s\n", edge.Caller, edge.Callee); err != nil {
			return fmt.Errorf("writing call edge: %w", err)
		}
	}
	for _, call := range calls.Unresolved {
		if _, err := fmt.Fprintf(w.writer, "%s -> ? ; %s\n", call.Function, call.Instruction); err != nil {
			return fmt.Errorf("writing unresolved call: %w", err)
		}
	}
	return nil
}

func (w Writer) writePathsText() error {
	for i, path := range w.options.Paths {
		reason := path.Reason.String()
		if path.Truncated {
			reason += ", truncated"
		}
		if _, err := fmt.Fprintf(w.writer, "path %d (%s, gas %d): %s\n",
			i, reason, path.State.Gas, strings.Join(path.Blocks, " -> ")); err != nil {
			return fmt.Errorf("writing path: %w", err)
		}
	}
	return nil
}

type jsonPath struct {
	Blocks    []string        `json:"blocks"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error,omitempty"`
	Truncated bool            `json:"truncated,omitempty"`
	State     vmstate.Details `json:"state"`
}

type jsonOutput struct {
	Platform string     `json:"platform"`
	Graph    cfg.Graph  `json:"graph"`
	Paths    []jsonPath `json:"paths,omitempty"`
}

func (w Writer) writeJSON() error {
	out := jsonOutput{
		Platform: w.graph.Architecture().Name(),
	}
	if w.options.CallGraph {
		out.Graph = w.graph.CallGraph().Graph()
	} else {
		out.Graph = w.graph.BlockGraph()
	}

	for _, path := range w.options.Paths {
		p := jsonPath{
			Blocks:    path.Blocks,
			Reason:    path.Reason.String(),
			Truncated: path.Truncated,
			State:     path.State,
		}
		if path.Err != nil {
			p.Error = path.Err.Error()
		}
		out.Paths = append(out.Paths, p)
	}

	encoder := json.NewEncoder(w.writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

func (w Writer) writeDot() error {
	var sb strings.Builder
	sb.WriteString("digraph CFG {\n")
	sb.WriteString("  node [shape=box, fontname=\"Courier\"];\n")

	if w.options.CallGraph {
		w.callGraphDot(&sb)
	} else {
		w.blockGraphDot(&sb)
	}

	sb.WriteString("}\n")
	if _, err := io.WriteString(w.writer, sb.String()); err != nil {
		return fmt.Errorf("writing dot graph: %w", err)
	}
	return nil
}

func (w Writer) blockGraphDot(sb *strings.Builder) {
	for _, bb := range w.graph.BasicBlocks {
		label := fmt.Sprintf("%s\\l", bb.Name)
		for i, ins := range bb.Instructions {
			if i == maxInstructionsShown {
				label += "...\\l"
				break
			}
			label += escape(ins.String()) + "\\l"
		}
		fmt.Fprintf(sb, "  %q [label=\"%s\"];\n", bb.Name, label)
	}

	for _, edge := range w.graph.Edges {
		fmt.Fprintf(sb, "  %q -> %q [label=%q, color=%s];\n",
			edge.Source, edge.Target, edge.Kind.String(), edgeColor(edge.Kind))
	}
}

func (w Writer) callGraphDot(sb *strings.Builder) {
	graph := w.graph.CallGraph().Graph()
	for _, node := range graph.Nodes {
		shape := "box"
		if node.Metadata["imported"] == "true" {
			shape = "ellipse"
		}
		fmt.Fprintf(sb, "  %q [shape=%s];\n", node.Name, shape)
	}
	for _, edge := range graph.Edges {
		fmt.Fprintf(sb, "  %q -> %q;\n", edge.Source, edge.Target)
	}
}

func edgeColor(kind block.EdgeKind) string {
	switch kind {
	case block.ConditionalTrue:
		return "green"
	case block.ConditionalFalse:
		return "red"
	case block.Unconditional:
		return "blue"
	default:
		return "black"
	}
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "\\\"")
}
