// Package options contains the program options.
package options

import (
	"strings"
)

// Parameters contains file path options.
type Parameters struct {
	Input   string `flag:"i" usage:"input bytecode file"`
	Output  string `flag:"o" usage:"output file (default: stdout)"`
	Symbols string `flag:"sym" usage:"symbol file with '<hex offset> <name>' lines"`
	Batch   string `flag:"batch" usage:"batch process files matching pattern (e.g. *.avm)"`
}

// Flags contains behavior options.
type Flags struct {
	Platform string `flag:"p" usage:"platform: neo, evm, wasm (default: auto-detect)"`
	Verify   bool   `flag:"verify" usage:"verify the partition and edge properties of the built graph"`
	Explore  bool   `flag:"explore" usage:"explore the execution paths of the entry function"`
	Jobs     int    `flag:"j" usage:"number of files processed concurrently in batch mode" default:"4"`
	Debug    bool   `flag:"debug" usage:"enable debug logging"`
	Quiet    bool   `flag:"q" usage:"quiet mode"`
}

// OutputFlags contains output formatting options.
type OutputFlags struct {
	Format    string `flag:"f" usage:"output format: text, json, dot" default:"text"`
	CallGraph bool   `flag:"callgraph" usage:"output the call graph instead of the block graph"`
}

// Program options of the analyzer.
type Program struct {
	Parameters
	Flags
	OutputFlags
}

// Analysis defines options to control the graph construction and path exploration.
type Analysis struct {
	Platform     string // platform name (e.g., neo, evm, wasm)
	KeepMetadata bool   // decode the EVM compiler metadata trailer as code
	MaxVisits    int    // maximum visits of a block on a single explored path
	MaxPaths     int    // maximum number of explored paths
	Gas          uint64 // gas budget of an explored path, 0 uses the platform default
}

// NewAnalysis returns a new analysis options instance with default options.
func NewAnalysis(platform string) Analysis {
	return Analysis{
		Platform:  strings.ToLower(platform),
		MaxVisits: 2,
		MaxPaths:  4096,
	}
}
