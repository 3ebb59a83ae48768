// Package explore walks the execution paths of a control-flow graph, forking the machine
// state at every block with multiple successors.
package explore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/cfg"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/vmstate"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/sync/errgroup"
)

// Default exploration limits.
const (
	DefaultMaxVisits   = 2
	DefaultMaxPaths    = 4096
	DefaultConcurrency = 8
)

// ErrNoEntry is returned for graphs without basic blocks.
var ErrNoEntry = errors.New("graph has no entry block")

// Reason describes why a path ended.
type Reason uint8

// path termination reasons.
const (
	Halted    Reason = iota // last block ends with a halt instruction
	Exhausted               // gas ran out
	LoopBound               // a block was visited more often than allowed
	OpenEnd                 // the successor is dynamic or not a known block
	Fault                   // the stepper failed
)

func (r Reason) String() string {
	switch r {
	case Halted:
		return "halted"
	case Exhausted:
		return "exhausted"
	case LoopBound:
		return "loop_bound"
	case OpenEnd:
		return "open_end"
	case Fault:
		return "fault"
	default:
		return "unknown"
	}
}

// Stepper interprets a single instruction on the state of a path. An error ends the
// path with the Fault reason, other paths are not affected.
type Stepper func(state *vmstate.State, ins instruction.Instruction) error

// Options configures an exploration.
type Options struct {
	MaxVisits   int // maximum number of visits of a block per path
	MaxPaths    int // maximum number of paths of the whole exploration
	Concurrency int // maximum number of paths explored in parallel
	Stepper     Stepper
	Logger      *log.Logger

	State vmstate.Config // initial state limits, the zero value uses the platform limits
}

// Path is a single explored execution path.
type Path struct {
	Blocks    []string
	Reason    Reason
	Err       error // stepper error of a faulted path
	Truncated bool  // successors were dropped on this path because the path budget was used up
	State     vmstate.Details
}

type explorer struct {
	graph   *cfg.CFG
	options Options
	group   *errgroup.Group

	budget    atomic.Int64 // paths that may still be started
	truncated atomic.Bool

	mu    sync.Mutex
	paths []Path
}

// Run explores all paths from the entry block of the graph. Sibling paths are explored
// concurrently, the returned paths are sorted by their block sequence. At most MaxPaths
// paths are explored, forks beyond that are dropped and the forking path is marked as
// truncated. Which forks are dropped depends on scheduling unless Concurrency is 1.
func Run(ctx context.Context, graph *cfg.CFG, options Options) ([]Path, error) {
	entry, ok := graph.EntryBlock()
	if !ok {
		return nil, ErrNoEntry
	}

	if options.MaxVisits <= 0 {
		options.MaxVisits = DefaultMaxVisits
	}
	if options.MaxPaths <= 0 {
		options.MaxPaths = DefaultMaxPaths
	}
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(options.Concurrency)

	e := &explorer{
		graph:   graph,
		options: options,
		group:   group,
	}
	e.budget.Store(int64(options.MaxPaths) - 1) // the entry path

	stateConfig := options.State
	if stateConfig == (vmstate.Config{}) {
		stateConfig = graph.Architecture().StateConfig()
	}
	state := vmstate.New(stateConfig)
	err := e.spawn(ctx, state, entry, nil, make(map[string]int))
	if waitErr := group.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return nil, fmt.Errorf("exploring paths: %w", err)
	}

	sort.Slice(e.paths, func(i, j int) bool {
		return slices.Compare(e.paths[i].Blocks, e.paths[j].Blocks) < 0
	})

	if options.Logger != nil {
		options.Logger.Debug("Paths explored", log.Int("paths", len(e.paths)))
		if e.truncated.Load() {
			options.Logger.Warn("Path budget exhausted, exploration is incomplete",
				log.Int("max_paths", options.MaxPaths))
		}
	}
	return e.paths, nil
}

// spawn explores the path in a new goroutine if the concurrency limit allows it,
// otherwise in the calling goroutine.
func (e *explorer) spawn(ctx context.Context, state *vmstate.State, bb *block.BasicBlock,
	blocks []string, visits map[string]int) error {

	started := e.group.TryGo(func() error {
		return e.walk(ctx, state, bb, blocks, visits)
	})
	if started {
		return nil
	}
	return e.walk(ctx, state, bb, blocks, visits)
}

// reserve takes one path from the budget.
func (e *explorer) reserve() bool {
	if e.budget.Add(-1) >= 0 {
		return true
	}
	e.truncated.Store(true)
	return false
}

// walk follows single successors in place and forks the state for multiple successors.
func (e *explorer) walk(ctx context.Context, state *vmstate.State, bb *block.BasicBlock,
	blocks []string, visits map[string]int) error {

	truncated := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		visits[bb.Name]++
		if visits[bb.Name] > e.options.MaxVisits {
			e.finish(blocks, LoopBound, nil, truncated, state)
			return nil
		}
		blocks = append(blocks, bb.Name)

		for _, ins := range bb.Instructions {
			if !state.Step(ins) {
				e.finish(blocks, Exhausted, nil, truncated, state)
				return nil
			}
			if e.options.Stepper == nil {
				continue
			}
			if err := e.options.Stepper(state, ins); err != nil {
				e.finish(blocks, Fault, err, truncated, state)
				return nil
			}
		}

		successors := e.successors(bb)
		switch len(successors) {
		case 0:
			reason := OpenEnd
			if bb.End.IsHalt() {
				reason = Halted
			}
			e.finish(blocks, reason, nil, truncated, state)
			return nil

		case 1:
			bb = successors[0]

		default:
			for _, next := range successors[1:] {
				if !e.reserve() {
					truncated = true
					continue
				}
				if err := e.spawn(ctx, state.Fork(), next, slices.Clone(blocks), maps.Clone(visits)); err != nil {
					return err
				}
			}
			bb = successors[0]
		}
	}
}

// successors returns the known successor blocks. A dangling edge makes the path open
// ended, it is reported as a path without successor.
func (e *explorer) successors(bb *block.BasicBlock) []*block.BasicBlock {
	edges := e.graph.Successors(bb.Name)
	result := make([]*block.BasicBlock, 0, len(edges))
	for _, edge := range edges {
		next, ok := e.graph.Block(edge.Target)
		if !ok {
			return nil
		}
		result = append(result, next)
	}
	return result
}

func (e *explorer) finish(blocks []string, reason Reason, err error, truncated bool, state *vmstate.State) {
	path := Path{
		Blocks:    slices.Clone(blocks),
		Reason:    reason,
		Err:       err,
		Truncated: truncated,
		State:     state.Details(),
	}

	e.mu.Lock()
	e.paths = append(e.paths, path)
	e.mu.Unlock()
}
