package wasm

import (
	"errors"
	"testing"

	"github.com/retroenv/contractcfg/internal/cfg"
	"github.com/retroenv/contractcfg/internal/opcode"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

// testModule imports env.f and defines two functions, the first one is exported as main
// and calls the import and the second function.
var testModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // header
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00, // type section
	0x02, 0x09, 0x01, 0x03, 'e', 'n', 'v', 0x01, 'f', 0x00, 0x00, // import section
	0x03, 0x03, 0x02, 0x00, 0x00, // function section
	0x07, 0x08, 0x01, 0x04, 'm', 'a', 'i', 'n', 0x00, 0x01, // export section
	0x0a, 0x0c, 0x02, // code section
	0x06, 0x00, 0x10, 0x00, 0x10, 0x02, 0x0b, // call 0, call 2, end
	0x03, 0x00, 0x01, 0x0b, // nop, end
}

func TestTable_ReverseLookup(t *testing.T) {
	for _, op := range table.Opcodes() {
		entry, err := table.Lookup(op)
		assert.NoError(t, err)

		reverse, _, err := table.ReverseLookup(entry.Mnemonic)
		assert.NoError(t, err)
		assert.Equal(t, op, reverse)
	}
}

func TestResolver_Structured(t *testing.T) {
	code := []byte{
		0x02, 0x40, // block
		0x03, 0x40, // loop
		0x41, 0x00, // i32.const 0
		0x0d, 0x00, // br_if 0
		0x0c, 0x01, // br 1
		0x0b,       // end
		0x0b,       // end
		0x04, 0x40, // if
		0x01,       // nop
		0x05,       // else
		0x01,       // nop
		0x0b,       // end
		0x0b,       // end
	}

	w := New()
	module, err := w.Disassemble(code)
	assert.NoError(t, err)
	assert.Len(t, module.Instructions, 13)

	resolver := w.Resolver(module.Instructions)

	tests := []struct {
		name     string
		index    int
		expected []uint64
	}{
		{"br_if to loop start", 3, []uint64{4}},
		{"br out of block", 4, []uint64{12}},
		{"if to else body", 7, []uint64{16}},
		{"else to end", 9, []uint64{18}},
		{"not a branch", 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolver.Targets(tt.index))
		})
	}
}

func TestResolver_BranchTable(t *testing.T) {
	code := []byte{
		0x02, 0x40, // block
		0x02, 0x40, // block
		0x41, 0x00, // i32.const 0
		0x0e, 0x02, 0x00, 0x01, 0x00, // br_table 0 1 default 0
		0x0b, // end
		0x0b, // end
		0x0b, // end
	}

	w := New()
	module, err := w.Disassemble(code)
	assert.NoError(t, err)

	resolver := w.Resolver(module.Instructions)
	assert.Equal(t, []uint64{12, 13}, resolver.Targets(3))
}

func TestResolver_ReturnLabel(t *testing.T) {
	// br 0 inside the function frame returns
	code := []byte{0x0c, 0x00, 0x0b}

	w := New()
	module, err := w.Disassemble(code)
	assert.NoError(t, err)

	resolver := w.Resolver(module.Instructions)
	assert.Len(t, resolver.Targets(0), 0)
}

func TestParseModule(t *testing.T) {
	module, err := ParseModule(testModule)
	assert.NoError(t, err)

	assert.Equal(t, []string{"env.f"}, module.Imports)
	assert.Equal(t, []uint64{45, 52}, module.FunctionOffsets)
	assert.Len(t, module.Instructions, 5)
	assert.Equal(t, uint64(45), module.Instructions[0].Offset)

	main, ok := module.Symbols.Get(45)
	assert.True(t, ok)
	assert.Equal(t, "main", main.Name)
	assert.True(t, main.Exported)

	second, ok := module.Symbols.Get(52)
	assert.True(t, ok)
	assert.Equal(t, "func_34", second.Name)

	// the end of a function body returns to the caller
	assert.True(t, module.Instructions[2].IsHalt())
	assert.False(t, module.Instructions[3].IsHalt())
}

func TestParseModule_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		err  error
	}{
		{"truncated header", []byte{0x00, 0x61}, ErrTruncated},
		{"invalid magic", []byte{0x01, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}, ErrInvalidMagic},
		{"invalid version", []byte{0x00, 0x61, 0x73, 0x6d, 0x02, 0x00, 0x00, 0x00}, ErrInvalidVersion},
		{"truncated section", testModule[:len(testModule)-3], ErrTruncated},
		{"missing code", testModule[:40], ErrFunctionCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseModule(tt.data)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}

func TestParseModule_UnknownOpcode(t *testing.T) {
	data := append([]byte{}, testModule...)
	data[len(data)-2] = 0xff

	_, err := ParseModule(data)
	assert.True(t, errors.Is(err, opcode.ErrUnknownOpcode))
}

func TestCallGraph(t *testing.T) {
	graph, err := cfg.Build(New(), cfg.WithBytecode(testModule), cfg.WithLogger(log.NewTestLogger(t)))
	assert.NoError(t, err)

	assert.Len(t, graph.Functions, 2)
	assert.Equal(t, "main", graph.Functions[0].Name)
	assert.Equal(t, "func_34", graph.Functions[1].Name)

	calls := graph.CallGraph()
	assert.Equal(t, []string{"main", "func_34"}, calls.Functions)
	assert.Equal(t, []string{"env.f"}, calls.Imports)
	assert.Equal(t, []cfg.CallEdge{
		{Caller: "main", Callee: "env.f"},
		{Caller: "main", Callee: "func_34"},
	}, calls.Edges)
	assert.Len(t, calls.Unresolved, 0)

	// the function bodies are not connected by an edge
	assert.Len(t, graph.Edges, 0)
	assert.Len(t, graph.BasicBlocks, 2)
}
