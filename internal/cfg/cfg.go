// Package cfg assembles the control-flow graph of a module: its instructions, basic blocks,
// functions and the block level edges.
package cfg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/function"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/symbols"
	"github.com/retroenv/contractcfg/internal/xref"
	"github.com/retroenv/retrogolib/log"
)

// ErrMissingInput is returned when neither bytecode nor instructions are passed to Build.
var ErrMissingInput = errors.New("no bytecode or instructions provided")

// CFG is the control-flow graph of one decoded module.
type CFG struct {
	arch   arch.Architecture
	logger *log.Logger

	symbols         *symbols.Table
	imports         []string
	functionOffsets []uint64

	Instructions []instruction.Instruction
	BasicBlocks  []*block.BasicBlock
	Functions    []*function.Function
	Edges        []block.Edge

	analyzed   bool
	blockNames map[string]*block.BasicBlock
	successors map[string][]block.Edge
}

type buildOptions struct {
	bytecode       []byte
	instructions   []instruction.Instruction
	symbols        *symbols.Table
	logger         *log.Logger
	staticAnalysis bool
}

// Option configures the CFG construction.
type Option func(*buildOptions)

// WithBytecode sets the raw module bytes that are disassembled by the platform.
func WithBytecode(code []byte) Option {
	return func(o *buildOptions) {
		o.bytecode = code
	}
}

// WithInstructions sets a pre-decoded instruction sequence. It takes precedence over bytecode.
func WithInstructions(instructions []instruction.Instruction) Option {
	return func(o *buildOptions) {
		o.instructions = instructions
	}
}

// WithSymbols sets an explicit symbol table that overrides the function boundary heuristic.
func WithSymbols(table *symbols.Table) Option {
	return func(o *buildOptions) {
		o.symbols = table
	}
}

// WithLogger sets the logger that receives diagnostic output of the analysis.
func WithLogger(logger *log.Logger) Option {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithoutStaticAnalysis skips the analysis passes, they can be run later
// using RunStaticAnalysis.
func WithoutStaticAnalysis() Option {
	return func(o *buildOptions) {
		o.staticAnalysis = false
	}
}

// Build creates the control-flow graph for a module of the given platform.
func Build(ar arch.Architecture, opts ...Option) (*CFG, error) {
	options := buildOptions{
		staticAnalysis: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.bytecode == nil && options.instructions == nil {
		return nil, ErrMissingInput
	}

	logger := options.logger
	if logger == nil {
		cfg := log.DefaultConfig()
		cfg.Level = log.ErrorLevel
		logger = log.NewWithConfig(cfg)
	}

	c := &CFG{
		arch:    ar,
		logger:  logger,
		symbols: options.symbols,
	}

	if options.instructions != nil {
		c.Instructions = options.instructions
	} else {
		module, err := ar.Disassemble(options.bytecode)
		if err != nil {
			return nil, fmt.Errorf("disassembling %s bytecode: %w", ar.Name(), err)
		}
		c.Instructions = module.Instructions
		c.imports = module.Imports
		c.functionOffsets = module.FunctionOffsets
		if c.symbols == nil {
			c.symbols = module.Symbols
		}
	}

	logger.Debug("Decoded module",
		log.String("platform", ar.Name()),
		log.Int("instructions", len(c.Instructions)))

	if options.staticAnalysis {
		c.RunStaticAnalysis()
	}
	return c, nil
}

// RunStaticAnalysis enumerates functions, basic blocks and edges and assigns the blocks
// to the functions that contain them. Running it again has no effect.
func (c *CFG) RunStaticAnalysis() {
	if c.analyzed {
		return
	}
	c.analyzed = true

	resolver := c.arch.Resolver(c.Instructions)
	var leaders []uint64
	if provider, ok := c.arch.(arch.LeaderProvider); ok {
		leaders = provider.Leaders(c.Instructions)
	}

	if c.symbols.Len() > 0 {
		c.Functions = function.FromSymbols(c.Instructions, c.symbols)
		// symbol entries start a block so that no block spans two functions
		for _, fun := range c.Functions {
			leaders = append(leaders, fun.StartOffset)
		}
	} else {
		c.Functions = function.Enumerate(c.Instructions)
	}
	xrefs := xref.Enumerate(c.Instructions, resolver, leaders...)

	c.BasicBlocks, c.Edges = block.Build(c.Instructions, resolver, xrefs)
	assignBasicBlocks(c.BasicBlocks, c.Functions)
	c.index()

	c.logger.Debug("Static analysis finished",
		log.Int("functions", len(c.Functions)),
		log.Int("basic_blocks", len(c.BasicBlocks)),
		log.Int("edges", len(c.Edges)))
}

// assignBasicBlocks attaches every block to each function whose range contains the block
// start offset. The blocks stay owned by the CFG block list.
func assignBasicBlocks(blocks []*block.BasicBlock, functions []*function.Function) {
	for _, fun := range functions {
		for _, bb := range blocks {
			if fun.Contains(bb.StartOffset) {
				fun.BasicBlocks = append(fun.BasicBlocks, bb)
			}
		}
	}
}

func (c *CFG) index() {
	c.blockNames = make(map[string]*block.BasicBlock, len(c.BasicBlocks))
	for _, bb := range c.BasicBlocks {
		c.blockNames[bb.Name] = bb
	}

	c.successors = make(map[string][]block.Edge, len(c.BasicBlocks))
	for _, edge := range c.Edges {
		c.successors[edge.Source] = append(c.successors[edge.Source], edge)
	}
}

// Architecture returns the platform of the module.
func (c *CFG) Architecture() arch.Architecture {
	return c.arch
}

// Analyzed returns whether the static analysis passes have been run.
func (c *CFG) Analyzed() bool {
	return c.analyzed
}

// Block returns the basic block with the given name.
func (c *CFG) Block(name string) (*block.BasicBlock, bool) {
	bb, ok := c.blockNames[name]
	return bb, ok
}

// EntryBlock returns the first basic block of the module.
func (c *CFG) EntryBlock() (*block.BasicBlock, bool) {
	if len(c.BasicBlocks) == 0 {
		return nil, false
	}
	return c.BasicBlocks[0], true
}

// Successors returns the outgoing edges of the named block in emission order.
func (c *CFG) Successors(name string) []block.Edge {
	return c.successors[name]
}

// Function returns the function with the given name.
func (c *CFG) Function(name string) (*function.Function, bool) {
	for _, fun := range c.Functions {
		if fun.Name == name {
			return fun, true
		}
	}
	return nil, false
}

// FunctionAt returns the function that contains the given offset.
func (c *CFG) FunctionAt(offset uint64) (*function.Function, bool) {
	i := sort.Search(len(c.Functions), func(i int) bool {
		return c.Functions[i].EndOffset >= offset
	})
	if i < len(c.Functions) && c.Functions[i].Contains(offset) {
		return c.Functions[i], true
	}
	return nil, false
}
