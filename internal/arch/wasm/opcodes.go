package wasm

import "github.com/retroenv/contractcfg/internal/opcode"

// WebAssembly MVP opcodes that are referenced by the control-flow code.
const (
	Unreachable  byte = 0x00
	Nop          byte = 0x01
	Block        byte = 0x02
	Loop         byte = 0x03
	If           byte = 0x04
	Else         byte = 0x05
	End          byte = 0x0b
	Br           byte = 0x0c
	BrIf         byte = 0x0d
	BrTable      byte = 0x0e
	Return       byte = 0x0f
	Call         byte = 0x10
	CallIndirect byte = 0x11
	I32Const     byte = 0x41
)

var table = opcode.MustNewTable("wasm", entries())

var (
	blockType = opcode.Variable(opcode.KindBlockType, 0)
	uleb      = opcode.Variable(opcode.KindULEB128, 0)
	sleb      = opcode.Variable(opcode.KindSLEB128, 0)
	memArg    = opcode.Variable(opcode.KindMemArg, 0)
)

func entries() map[byte]opcode.Entry {
	m := map[byte]opcode.Entry{
		Unreachable:  {Mnemonic: "unreachable", Flags: opcode.NoFlow},
		Nop:          {Mnemonic: "nop"},
		Block:        {Mnemonic: "block", Operand: blockType, Flags: opcode.EntersBlock},
		Loop:         {Mnemonic: "loop", Operand: blockType, Flags: opcode.EntersBlock},
		If:           {Mnemonic: "if", Operand: blockType, Flags: opcode.EntersBlock | opcode.Branch | opcode.Conditional, Pops: 1},
		Else:         {Mnemonic: "else", Flags: opcode.EntersBlock | opcode.LeavesBlock | opcode.Branch},
		End:          {Mnemonic: "end", Flags: opcode.LeavesBlock},
		Br:           {Mnemonic: "br", Operand: uleb, Flags: opcode.Branch},
		BrIf:         {Mnemonic: "br_if", Operand: uleb, Flags: opcode.Branch | opcode.Conditional, Pops: 1},
		BrTable:      {Mnemonic: "br_table", Operand: opcode.Variable(opcode.KindBranchTable, 0), Flags: opcode.Branch, Pops: 1},
		Return:       {Mnemonic: "return", Flags: opcode.NoFlow},
		Call:         {Mnemonic: "call", Operand: uleb, Flags: opcode.Call},
		CallIndirect: {Mnemonic: "call_indirect", Operand: opcode.Variable(opcode.KindCallIndirect, 0), Flags: opcode.Call, Pops: 1},

		0x1a: {Mnemonic: "drop", Pops: 1},
		0x1b: {Mnemonic: "select", Pops: 3, Pushes: 1},

		0x20: {Mnemonic: "get_local", Operand: uleb, Pushes: 1},
		0x21: {Mnemonic: "set_local", Operand: uleb, Pops: 1},
		0x22: {Mnemonic: "tee_local", Operand: uleb, Pops: 1, Pushes: 1},
		0x23: {Mnemonic: "get_global", Operand: uleb, Pushes: 1},
		0x24: {Mnemonic: "set_global", Operand: uleb, Pops: 1},

		0x3f: {Mnemonic: "current_memory", Operand: opcode.Fixed(opcode.KindData, 1), Pushes: 1},
		0x40: {Mnemonic: "grow_memory", Operand: opcode.Fixed(opcode.KindData, 1), Pops: 1, Pushes: 1},

		I32Const: {Mnemonic: "i32.const", Operand: sleb, Pushes: 1},
		0x42:     {Mnemonic: "i64.const", Operand: sleb, Pushes: 1},
		0x43:     {Mnemonic: "f32.const", Operand: opcode.Fixed(opcode.KindFloat, 4), Pushes: 1},
		0x44:     {Mnemonic: "f64.const", Operand: opcode.Fixed(opcode.KindFloat, 8), Pushes: 1},

		0x45: {Mnemonic: "i32.eqz", Pops: 1, Pushes: 1},
		0x50: {Mnemonic: "i64.eqz", Pops: 1, Pushes: 1},
	}

	loads := []string{
		"i32.load", "i64.load", "f32.load", "f64.load",
		"i32.load8_s", "i32.load8_u", "i32.load16_s", "i32.load16_u",
		"i64.load8_s", "i64.load8_u", "i64.load16_s", "i64.load16_u",
		"i64.load32_s", "i64.load32_u",
	}
	addRange(m, 0x28, loads, opcode.Entry{Operand: memArg, Pops: 1, Pushes: 1})

	stores := []string{
		"i32.store", "i64.store", "f32.store", "f64.store",
		"i32.store8", "i32.store16", "i64.store8", "i64.store16", "i64.store32",
	}
	addRange(m, 0x36, stores, opcode.Entry{Operand: memArg, Pops: 2})

	binary := opcode.Entry{Pops: 2, Pushes: 1}
	unary := opcode.Entry{Pops: 1, Pushes: 1}

	addRange(m, 0x46, []string{
		"i32.eq", "i32.ne", "i32.lt_s", "i32.lt_u", "i32.gt_s", "i32.gt_u",
		"i32.le_s", "i32.le_u", "i32.ge_s", "i32.ge_u",
	}, binary)
	addRange(m, 0x51, []string{
		"i64.eq", "i64.ne", "i64.lt_s", "i64.lt_u", "i64.gt_s", "i64.gt_u",
		"i64.le_s", "i64.le_u", "i64.ge_s", "i64.ge_u",
	}, binary)
	addRange(m, 0x5b, []string{"f32.eq", "f32.ne", "f32.lt", "f32.gt", "f32.le", "f32.ge"}, binary)
	addRange(m, 0x61, []string{"f64.eq", "f64.ne", "f64.lt", "f64.gt", "f64.le", "f64.ge"}, binary)

	addRange(m, 0x67, []string{"i32.clz", "i32.ctz", "i32.popcnt"}, unary)
	addRange(m, 0x6a, []string{
		"i32.add", "i32.sub", "i32.mul", "i32.div_s", "i32.div_u", "i32.rem_s", "i32.rem_u",
		"i32.and", "i32.or", "i32.xor", "i32.shl", "i32.shr_s", "i32.shr_u", "i32.rotl", "i32.rotr",
	}, binary)
	addRange(m, 0x79, []string{"i64.clz", "i64.ctz", "i64.popcnt"}, unary)
	addRange(m, 0x7c, []string{
		"i64.add", "i64.sub", "i64.mul", "i64.div_s", "i64.div_u", "i64.rem_s", "i64.rem_u",
		"i64.and", "i64.or", "i64.xor", "i64.shl", "i64.shr_s", "i64.shr_u", "i64.rotl", "i64.rotr",
	}, binary)

	addRange(m, 0x8b, []string{
		"f32.abs", "f32.neg", "f32.ceil", "f32.floor", "f32.trunc", "f32.nearest", "f32.sqrt",
	}, unary)
	addRange(m, 0x92, []string{
		"f32.add", "f32.sub", "f32.mul", "f32.div", "f32.min", "f32.max", "f32.copysign",
	}, binary)
	addRange(m, 0x99, []string{
		"f64.abs", "f64.neg", "f64.ceil", "f64.floor", "f64.trunc", "f64.nearest", "f64.sqrt",
	}, unary)
	addRange(m, 0xa0, []string{
		"f64.add", "f64.sub", "f64.mul", "f64.div", "f64.min", "f64.max", "f64.copysign",
	}, binary)

	addRange(m, 0xa7, []string{
		"i32.wrap/i64",
		"i32.trunc_s/f32", "i32.trunc_u/f32", "i32.trunc_s/f64", "i32.trunc_u/f64",
		"i64.extend_s/i32", "i64.extend_u/i32",
		"i64.trunc_s/f32", "i64.trunc_u/f32", "i64.trunc_s/f64", "i64.trunc_u/f64",
		"f32.convert_s/i32", "f32.convert_u/i32", "f32.convert_s/i64", "f32.convert_u/i64",
		"f32.demote/f64",
		"f64.convert_s/i32", "f64.convert_u/i32", "f64.convert_s/i64", "f64.convert_u/i64",
		"f64.promote/f32",
		"i32.reinterpret/f32", "i64.reinterpret/f64", "f32.reinterpret/i32", "f64.reinterpret/i64",
	}, unary)

	return m
}

// addRange adds entries with consecutive opcodes that share operand and stack effect.
func addRange(m map[byte]opcode.Entry, first byte, mnemonics []string, template opcode.Entry) {
	for i, mnemonic := range mnemonics {
		entry := template
		entry.Mnemonic = mnemonic
		m[first+byte(i)] = entry
	}
}
