package evm

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/retrogolib/assert"
)

// Selector dispatcher as emitted by solc, followed by the function bodies.
//
//	00: PUSH1 0x00 CALLDATALOAD PUSH1 0xe0 SHR
//	06: DUP1 PUSH4 0xa9059cbb EQ PUSH1 0x1b JUMPI
//	10: PUSH4 0x70a08231 DUP2 EQ PUSH1 0x1d JUMPI
//	1a: STOP
//	1b: JUMPDEST STOP
//	1d: JUMPDEST STOP
const dispatcherCode = "0x600035" + "60e01c" +
	"8063a9059cbb14601b57" +
	"6370a082318114601d57" +
	"00" +
	"5b00" +
	"5b00"

func TestDispatch(t *testing.T) {
	instructions, err := instruction.Decode(table, common.FromHex(dispatcherCode), 0)
	assert.NoError(t, err)

	entries := Dispatch(instructions)
	assert.Equal(t, []DispatchEntry{
		{Selector: 0xa9059cbb, Offset: 0x1b},
		{Selector: 0x70a08231, Offset: 0x1d},
	}, entries)
}

func TestDispatch_NoJumpDest(t *testing.T) {
	// PUSH4 sel EQ PUSH1 0x0a JUMPI STOP, the target is not a JUMPDEST
	instructions, err := instruction.Decode(table, common.FromHex("0x63a9059cbb14600a5700"), 0)
	assert.NoError(t, err)
	assert.Len(t, Dispatch(instructions), 0)
}

func TestDisassemble_DispatchSymbols(t *testing.T) {
	module, err := New().Disassemble(common.FromHex(dispatcherCode))
	assert.NoError(t, err)
	assert.NotNil(t, module.Symbols)
	assert.Equal(t, 2, module.Symbols.Len())

	sym, ok := module.Symbols.Get(0x1b)
	assert.True(t, ok)
	assert.Equal(t, "selector_a9059cbb", sym.Name)
	assert.True(t, sym.Exported)

	module, err = New().Disassemble(common.FromHex("0x6003565b00"))
	assert.NoError(t, err)
	assert.Nil(t, module.Symbols)
}
