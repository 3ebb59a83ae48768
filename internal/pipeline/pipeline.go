// Package pipeline orchestrates the control-flow recovery workflow stages.
package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/arch/evm"
	"github.com/retroenv/contractcfg/internal/arch/neo"
	"github.com/retroenv/contractcfg/internal/arch/wasm"
	"github.com/retroenv/contractcfg/internal/cfg"
	"github.com/retroenv/contractcfg/internal/config"
	"github.com/retroenv/contractcfg/internal/detector"
	"github.com/retroenv/contractcfg/internal/explore"
	"github.com/retroenv/contractcfg/internal/loader"
	"github.com/retroenv/contractcfg/internal/options"
	"github.com/retroenv/contractcfg/internal/verification"
	"github.com/retroenv/contractcfg/internal/writer"
	"github.com/retroenv/retrogolib/log"
)

// Pipeline orchestrates the complete analysis workflow.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
	loader   *loader.Loader
}

// Result contains the artifacts of an analysis run.
type Result struct {
	Platform string
	Graph    *cfg.CFG
	Paths    []explore.Path // nil unless path exploration was requested
}

// New creates a new analysis pipeline.
func New(logger *log.Logger) *Pipeline {
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		loader:   loader.New(),
	}
}

// Execute runs the complete analysis pipeline.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, analysis options.Analysis,
	output io.Writer) (*Result, error) {

	platform := analysis.Platform
	if platform == "" {
		var err error
		platform, err = p.detector.Detect(opts)
		if err != nil {
			return nil, fmt.Errorf("detecting platform: %w", err)
		}
	}

	input, err := p.loader.Load(opts, platform)
	if err != nil {
		return nil, fmt.Errorf("loading input: %w", err)
	}

	analysis.Platform = platform
	return p.ExecuteWithInput(ctx, input, opts, analysis, output)
}

// ExecuteWithInput runs the analysis pipeline with a pre-loaded input.
// This is useful for testing and programmatic usage where the bytecode is already in memory.
func (p *Pipeline) ExecuteWithInput(ctx context.Context, input loader.Input, opts options.Program,
	analysis options.Analysis, output io.Writer) (*Result, error) {

	ar, err := createArchitecture(analysis)
	if err != nil {
		return nil, fmt.Errorf("creating architecture: %w", err)
	}

	buildOpts := []cfg.Option{
		cfg.WithBytecode(input.Code),
		cfg.WithLogger(p.logger),
	}
	if input.Symbols != nil {
		buildOpts = append(buildOpts, cfg.WithSymbols(input.Symbols))
	}

	graph, err := cfg.Build(ar, buildOpts...)
	if err != nil {
		return nil, fmt.Errorf("building control-flow graph: %w", err)
	}
	p.printInfo(opts, graph)

	if opts.Verify {
		if err := verification.Verify(graph); err != nil {
			return nil, fmt.Errorf("verification failed: %w", err)
		}
		p.logger.Info("Verification successful")
	}

	result := &Result{
		Platform: ar.Name(),
		Graph:    graph,
	}

	if opts.Explore {
		result.Paths, err = explore.Run(ctx, graph, explore.Options{
			MaxVisits: analysis.MaxVisits,
			MaxPaths:  analysis.MaxPaths,
			Stepper:   explore.SymbolicStack,
			Logger:    p.logger,
			State:     config.StateConfig(ar, analysis.Gas),
		})
		if err != nil {
			return nil, fmt.Errorf("exploring graph: %w", err)
		}
	}

	format := opts.Format
	if format == "" {
		format = config.DefaultFormat
	}
	w := writer.New(graph, output, writer.Options{
		CallGraph: opts.CallGraph,
		Paths:     result.Paths,
	})
	if err := w.Write(writer.Format(format)); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}

	return result, nil
}

// createArchitecture creates the platform implementation for the analysis options.
func createArchitecture(analysis options.Analysis) (arch.Architecture, error) {
	switch analysis.Platform {
	case neo.Name:
		return neo.New(), nil
	case evm.Name:
		var evmOpts []evm.Option
		if analysis.KeepMetadata {
			evmOpts = append(evmOpts, evm.WithMetadata())
		}
		return evm.New(evmOpts...), nil
	case wasm.Name:
		return wasm.New(), nil
	default:
		return nil, fmt.Errorf("unsupported platform '%s'", analysis.Platform)
	}
}

// printInfo prints information about the analyzed module.
func (p *Pipeline) printInfo(opts options.Program, graph *cfg.CFG) {
	if opts.Quiet {
		return
	}

	p.logger.Info("Processing module",
		log.String("file", opts.Input),
		log.String("platform", graph.Architecture().Name()),
		log.Int("instructions", len(graph.Instructions)),
		log.Int("functions", len(graph.Functions)),
		log.Int("basic_blocks", len(graph.BasicBlocks)),
	)
}
