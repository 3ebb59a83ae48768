package fileprocessor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retroenv/contractcfg/internal/config"
	"github.com/retroenv/contractcfg/internal/options"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// PUSH1, JMPIF +7, CALL +4, RET, RET
var neoCode = []byte{0x51, 0x63, 0x07, 0x00, 0x65, 0x04, 0x00, 0x66, 0x66}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "token.avm")
	assert.NoError(t, os.WriteFile(input, neoCode, 0o600))

	opts := options.Program{
		Parameters:  options.Parameters{Input: input, Output: filepath.Join(dir, "token.dot")},
		Flags:       options.Flags{Quiet: true},
		OutputFlags: options.OutputFlags{Format: "dot"},
	}
	err := ProcessFile(context.Background(), log.NewTestLogger(t), opts, options.NewAnalysis(""))
	assert.NoError(t, err)

	output, err := os.ReadFile(opts.Output)
	assert.NoError(t, err)
	assert.True(t, len(output) > 0, "output should not be empty")
	assert.True(t, strings.HasPrefix(string(output), "digraph CFG {"), "output should be a dot graph")
}

func TestProcessFiles_Batch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.avm", "b.avm", "c.avm"} {
		assert.NoError(t, os.WriteFile(filepath.Join(dir, name), neoCode, 0o600))
	}
	// unknown opcode
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "broken.avm"), []byte{0x50}, 0o600))

	opts := options.Program{
		Parameters:  options.Parameters{Batch: filepath.Join(dir, "*.avm")},
		Flags:       options.Flags{Quiet: true, Jobs: 2},
		OutputFlags: options.OutputFlags{Format: "json"},
	}
	files, err := GetFilesToProcess(&opts)
	assert.NoError(t, err)
	assert.Len(t, files, 4)

	// failing files are logged at error level, which the test logger reports as failure
	logger := config.CreateLogger(false, true)
	err = ProcessFiles(context.Background(), logger, opts, options.NewAnalysis(""), files)
	assert.ErrorContains(t, err, "broken.avm")

	for _, name := range []string{"a", "b", "c"} {
		_, err := os.Stat(filepath.Join(dir, name+".cfg.json"))
		assert.NoError(t, err)
	}
}

func TestProcessFiles_Canceled(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "token.avm")
	assert.NoError(t, os.WriteFile(input, neoCode, 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := options.Program{
		Parameters:  options.Parameters{Input: input, Output: filepath.Join(dir, "token.txt")},
		Flags:       options.Flags{Quiet: true, Explore: true},
		OutputFlags: options.OutputFlags{Format: "text"},
	}
	err := ProcessFiles(ctx, log.NewTestLogger(t), opts, options.NewAnalysis(""), []string{input})
	assert.True(t, err != nil)
}

func TestGetFilesToProcess(t *testing.T) {
	opts := options.Program{
		Parameters: options.Parameters{Input: "token.avm"},
	}
	files, err := GetFilesToProcess(&opts)
	assert.NoError(t, err)
	assert.Equal(t, []string{"token.avm"}, files)
}

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input  string
		format string
		want   string
	}{
		{"token.avm", "text", "token.cfg.txt"},
		{"dir/erc20.hex", "json", "dir/erc20.cfg.json"},
		{"eosio.token.wasm", "dot", "eosio.token.cfg.dot"},
		{"contract", "", "contract.cfg.txt"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GenerateOutputFilename(tt.input, tt.format))
	}
}

func TestProcessFiles_SingleFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "broken.avm")
	assert.NoError(t, os.WriteFile(input, []byte{0x50}, 0o600))

	opts := options.Program{
		Parameters:  options.Parameters{Input: input, Output: filepath.Join(dir, "broken.txt")},
		Flags:       options.Flags{Quiet: true},
		OutputFlags: options.OutputFlags{Format: "text"},
	}
	err := ProcessFiles(context.Background(), config.CreateLogger(false, true), opts, options.NewAnalysis(""),
		[]string{input})
	assert.ErrorContains(t, err, "opcode 0x50")
}
