package verification

import (
	"errors"
	"testing"

	"github.com/retroenv/contractcfg/internal/arch/neo"
	"github.com/retroenv/contractcfg/internal/block"
	"github.com/retroenv/contractcfg/internal/cfg"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func build(t *testing.T, code []byte) *cfg.CFG {
	t.Helper()
	graph, err := cfg.Build(neo.New(), cfg.WithBytecode(code), cfg.WithLogger(log.NewTestLogger(t)))
	assert.NoError(t, err)
	return graph
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"linear", []byte{0x51, 0x52, 0x93, 0x61, 0x75, 0x66}},
		{"diamond", []byte{0x51, 0x63, 0x05, 0x00, 0x61, 0x66, 0x66}},
		{"two functions", []byte{0x61, 0x66, 0x61, 0x66}},
		{"loop", []byte{0x61, 0x62, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, Verify(build(t, tt.code)))
		})
	}
}

func TestVerify_BlockPartition(t *testing.T) {
	graph := build(t, []byte{0x61, 0x66, 0x61, 0x66})
	graph.BasicBlocks = graph.BasicBlocks[:1]

	err := Verify(graph)
	assert.True(t, errors.Is(err, ErrBlockPartition))
	assert.False(t, errors.Is(err, ErrFunctionPartition))
}

func TestVerify_FunctionPartition(t *testing.T) {
	graph := build(t, []byte{0x61, 0x66, 0x61, 0x66})
	graph.Functions = append(graph.Functions, graph.Functions[0])

	err := Verify(graph)
	assert.True(t, errors.Is(err, ErrFunctionPartition))
}

func TestVerify_DuplicateBlock(t *testing.T) {
	graph := build(t, []byte{0x61, 0x66, 0x61, 0x66})
	graph.BasicBlocks[1].Name = graph.BasicBlocks[0].Name

	err := Verify(graph)
	assert.True(t, errors.Is(err, ErrDuplicateBlock))
}

func TestVerify_DanglingEdge(t *testing.T) {
	// JMPIF into the operand of the following PUSHBYTES2
	graph := build(t, []byte{0x51, 0x63, 0x05, 0x00, 0x02, 0xaa, 0xbb, 0x66})

	err := Verify(graph)
	assert.True(t, errors.Is(err, ErrDanglingEdge))

	var found bool
	for _, edge := range graph.Edges {
		if edge.Kind == block.ConditionalTrue && edge.Target == "block_6" {
			found = true
		}
	}
	assert.True(t, found)
}
