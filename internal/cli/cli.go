// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/contractcfg/internal/config"
	"github.com/retroenv/contractcfg/internal/detector"
	"github.com/retroenv/contractcfg/internal/options"
	"github.com/retroenv/contractcfg/internal/writer"
)

// ParseFlags parses command line flags and returns program and analysis options
func ParseFlags() (options.Program, options.Analysis, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	var analysis options.Analysis
	readAnalysisFlags(flags, &analysis)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Batch == "" && opts.Input == "") {
		return opts, options.Analysis{}, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, options.Analysis{}, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Analysis{}, err
	}

	if err := validateOptionCombinations(opts); err != nil {
		return opts, options.Analysis{}, err
	}

	if opts.Batch == "" && len(args) > 0 {
		opts.Input = args[0]
	}

	analysis.Platform = opts.Platform
	return opts, analysis, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: contractcfg [options] <file to analyze>\n\n")
	if e.flags != nil {
		e.flags.PrintDefaults()
	}
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after file to analyze, please pass the file to analyze as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Format = strings.ToLower(opts.Format)
	if !slices.Contains(writer.Formats(), writer.Format(opts.Format)) {
		formats := make([]string, 0, len(writer.Formats()))
		for _, format := range writer.Formats() {
			formats = append(formats, string(format))
		}
		return fmt.Errorf("unsupported output format: %s. Valid options: %s",
			opts.Format, strings.Join(formats, ", "))
	}

	opts.Platform = strings.ToLower(opts.Platform)
	if opts.Platform != "" && !slices.Contains(detector.Platforms(), opts.Platform) {
		return fmt.Errorf("unsupported platform: %s. Valid options: %s",
			opts.Platform, strings.Join(detector.Platforms(), ", "))
	}

	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return nil
}

// validateOptionCombinations checks for option combinations that can not be output.
func validateOptionCombinations(opts options.Program) error {
	if opts.Explore && opts.Format == string(writer.Dot) {
		return errors.New("explored paths can not be output in dot format, use text or json")
	}
	if opts.Explore && opts.CallGraph && opts.Format == string(writer.Text) {
		return errors.New("explored paths can not be output with the text call graph, use json")
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the input bytecode file, used if no file is passed as last argument")
	flags.StringVar(&opts.Output, "o", "", "name of the output file, printed on console if no name given")
	flags.StringVar(&opts.Symbols, "sym", "", "name of a symbol file with '<hex offset> <name>' lines that define function entries")
	flags.StringVar(&opts.Batch, "batch", "", "process a batch of given path and file mask and automatically name the output files, for example *.avm")
	flags.StringVar(&opts.Platform, "p", "", "platform to analyze for (neo, evm, wasm) - if not auto-detected from file extension or content")
	flags.StringVar(&opts.Format, "f", config.DefaultFormat, "output format (text/json/dot)")
	flags.BoolVar(&opts.CallGraph, "callgraph", false, "output the function call graph instead of the basic block graph")
	flags.BoolVar(&opts.Explore, "explore", false, "explore the execution paths from the entry block and output them")
	flags.BoolVar(&opts.Verify, "verify", false, "verify that blocks and functions partition the instructions and that all conditional edges resolve")
	flags.IntVar(&opts.Jobs, "j", config.DefaultJobs, "number of files to process concurrently in batch mode")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
}

func readAnalysisFlags(flags *flag.FlagSet, opts *options.Analysis) {
	defaults := options.NewAnalysis("")
	flags.IntVar(&opts.MaxVisits, "visits", defaults.MaxVisits, "maximum number of visits of a basic block on one explored path")
	flags.IntVar(&opts.MaxPaths, "paths", defaults.MaxPaths, "maximum number of explored paths, further forks are dropped")
	flags.Uint64Var(&opts.Gas, "gas", 0, "gas budget of an explored path, 0 uses the platform default")
	flags.BoolVar(&opts.KeepMetadata, "metadata", false, "decode the EVM compiler metadata trailer as code instead of stripping it")
}
