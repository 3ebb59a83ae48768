// Package loader handles bytecode and symbol file loading operations.
package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/retroenv/contractcfg/internal/arch/evm"
	"github.com/retroenv/contractcfg/internal/options"
	"github.com/retroenv/contractcfg/internal/symbols"
)

// Input is the loaded module and its optional symbol table.
type Input struct {
	Code    []byte
	Symbols *symbols.Table // nil if no symbol file was passed
}

// Loader handles loading bytecode files from disk.
type Loader struct{}

// New creates a new bytecode loader.
func New() *Loader {
	return &Loader{}
}

// Load reads the input file and the optional symbol file. EVM bytecode is commonly
// distributed as hex text, which is decoded to its binary form.
func (l *Loader) Load(opts options.Program, platform string) (Input, error) {
	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return Input{}, fmt.Errorf("reading file %s: %w", opts.Input, err)
	}

	input := Input{
		Code: l.LoadFromBytes(data, platform),
	}

	if opts.Symbols != "" {
		file, err := os.Open(opts.Symbols)
		if err != nil {
			return Input{}, fmt.Errorf("opening symbol file %s: %w", opts.Symbols, err)
		}
		defer func() { _ = file.Close() }()

		input.Symbols, err = ReadSymbols(file)
		if err != nil {
			return Input{}, fmt.Errorf("reading symbol file %s: %w", opts.Symbols, err)
		}
	}

	return input, nil
}

// LoadFromBytes returns the bytecode of the file content for the platform. Content
// that is not an even length hex string is raw bytecode.
func (l *Loader) LoadFromBytes(data []byte, platform string) []byte {
	if platform != evm.Name {
		return data
	}

	text := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(string(data)), "0x"), "0X")
	if text == "" {
		return data
	}
	code, err := hexutil.Decode("0x" + text)
	if err != nil {
		return data
	}
	return code
}

// ReadSymbols parses a symbol file. Every non empty line that does not start with '#'
// contains a hex offset followed by the symbol name.
func ReadSymbols(reader io.Reader) (*symbols.Table, error) {
	table := symbols.New()
	scanner := bufio.NewScanner(reader)

	for line := 1; scanner.Scan(); line++ {
		text := string(bytes.TrimSpace(scanner.Bytes()))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected '<offset> <name>', got '%s'", line, text)
		}

		offset, err := strconv.ParseUint(strings.TrimPrefix(fields[0], "0x"), 16, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing offset '%s': %w", line, fields[0], err)
		}

		if err := table.Add(symbols.Symbol{Offset: offset, Name: fields[1]}); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning symbols: %w", err)
	}
	return table, nil
}
