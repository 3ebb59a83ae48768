package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// undefinedPrefix is the prefix of the go-ethereum name of an undefined opcode.
const undefinedPrefix = "opcode "

type stackEffect struct {
	pops   int
	pushes int
}

var table = opcode.MustNewTable("evm", entries())

var stackEffects = map[vm.OpCode]stackEffect{
	vm.STOP:       {0, 0},
	vm.ADD:        {2, 1},
	vm.MUL:        {2, 1},
	vm.SUB:        {2, 1},
	vm.DIV:        {2, 1},
	vm.SDIV:       {2, 1},
	vm.MOD:        {2, 1},
	vm.SMOD:       {2, 1},
	vm.ADDMOD:     {3, 1},
	vm.MULMOD:     {3, 1},
	vm.EXP:        {2, 1},
	vm.SIGNEXTEND: {2, 1},

	vm.LT:     {2, 1},
	vm.GT:     {2, 1},
	vm.SLT:    {2, 1},
	vm.SGT:    {2, 1},
	vm.EQ:     {2, 1},
	vm.ISZERO: {1, 1},
	vm.AND:    {2, 1},
	vm.OR:     {2, 1},
	vm.XOR:    {2, 1},
	vm.NOT:    {1, 1},
	vm.BYTE:   {2, 1},
	vm.SHL:    {2, 1},
	vm.SHR:    {2, 1},
	vm.SAR:    {2, 1},

	vm.KECCAK256: {2, 1},

	vm.ADDRESS:        {0, 1},
	vm.BALANCE:        {1, 1},
	vm.ORIGIN:         {0, 1},
	vm.CALLER:         {0, 1},
	vm.CALLVALUE:      {0, 1},
	vm.CALLDATALOAD:   {1, 1},
	vm.CALLDATASIZE:   {0, 1},
	vm.CALLDATACOPY:   {3, 0},
	vm.CODESIZE:       {0, 1},
	vm.CODECOPY:       {3, 0},
	vm.GASPRICE:       {0, 1},
	vm.EXTCODESIZE:    {1, 1},
	vm.EXTCODECOPY:    {4, 0},
	vm.RETURNDATASIZE: {0, 1},
	vm.RETURNDATACOPY: {3, 0},
	vm.EXTCODEHASH:    {1, 1},

	vm.BLOCKHASH:   {1, 1},
	vm.COINBASE:    {0, 1},
	vm.TIMESTAMP:   {0, 1},
	vm.NUMBER:      {0, 1},
	vm.DIFFICULTY:  {0, 1},
	vm.GASLIMIT:    {0, 1},
	vm.CHAINID:     {0, 1},
	vm.SELFBALANCE: {0, 1},
	vm.BASEFEE:     {0, 1},
	vm.BLOBHASH:    {1, 1},
	vm.BLOBBASEFEE: {0, 1},

	vm.POP:      {1, 0},
	vm.MLOAD:    {1, 1},
	vm.MSTORE:   {2, 0},
	vm.MSTORE8:  {2, 0},
	vm.SLOAD:    {1, 1},
	vm.SSTORE:   {2, 0},
	vm.JUMP:     {1, 0},
	vm.JUMPI:    {2, 0},
	vm.PC:       {0, 1},
	vm.MSIZE:    {0, 1},
	vm.GAS:      {0, 1},
	vm.JUMPDEST: {0, 0},
	vm.TLOAD:    {1, 1},
	vm.TSTORE:   {2, 0},
	vm.MCOPY:    {3, 0},

	vm.CREATE:       {3, 1},
	vm.CALL:         {7, 1},
	vm.CALLCODE:     {7, 1},
	vm.RETURN:       {2, 0},
	vm.DELEGATECALL: {6, 1},
	vm.CREATE2:      {4, 1},
	vm.STATICCALL:   {6, 1},
	vm.REVERT:       {2, 0},
	vm.INVALID:      {0, 0},
	vm.SELFDESTRUCT: {1, 0},
}

var flowFlags = map[vm.OpCode]opcode.Flags{
	vm.JUMP:         opcode.Branch,
	vm.JUMPI:        opcode.Branch | opcode.Conditional,
	vm.STOP:         opcode.NoFlow,
	vm.RETURN:       opcode.NoFlow,
	vm.REVERT:       opcode.NoFlow,
	vm.INVALID:      opcode.NoFlow,
	vm.SELFDESTRUCT: opcode.NoFlow,
	vm.CREATE:       opcode.Call,
	vm.CREATE2:      opcode.Call,
	vm.CALL:         opcode.Call,
	vm.CALLCODE:     opcode.Call,
	vm.DELEGATECALL: opcode.Call,
	vm.STATICCALL:   opcode.Call,
}

// legacyRanges contains the opcode ranges of the legacy instruction set. Opcodes that
// go-ethereum names outside of these ranges are only valid in EOF containers and abort
// legacy execution.
var legacyRanges = [][2]byte{
	{0x00, 0x0b},
	{0x10, 0x1d},
	{0x20, 0x20},
	{0x30, 0x4a},
	{0x50, 0xa4},
	{0xf0, 0xf5},
	{0xfa, 0xfa},
	{0xfd, 0xff},
}

func entries() map[byte]opcode.Entry {
	m := make(map[byte]opcode.Entry)
	for i := range 256 {
		op := vm.OpCode(i)
		name := op.String()
		if strings.HasPrefix(name, undefinedPrefix) {
			continue
		}
		m[byte(i)] = newEntry(op, name)
	}
	return m
}

func newEntry(op vm.OpCode, name string) opcode.Entry {
	entry := opcode.Entry{
		Mnemonic: name,
		Flags:    flowFlags[op],
	}

	switch {
	case op.IsPush():
		entry.Pushes = 1
		if size := pushSize(op); size > 0 {
			entry.Operand = opcode.Fixed(opcode.KindData, size)
		}

	case op >= vm.DUP1 && op <= vm.DUP16:
		n := int(op-vm.DUP1) + 1
		entry.Pops, entry.Pushes = n, n+1

	case op >= vm.SWAP1 && op <= vm.SWAP16:
		n := int(op-vm.SWAP1) + 2
		entry.Pops, entry.Pushes = n, n

	case op >= vm.LOG0 && op <= vm.LOG4:
		entry.Pops = int(op-vm.LOG0) + 2

	case !isLegacy(byte(op)):
		entry.Flags = opcode.NoFlow

	default:
		effect := stackEffects[op]
		entry.Pops, entry.Pushes = effect.pops, effect.pushes
	}
	return entry
}

// pushSize returns the immediate size of a PUSH opcode.
func pushSize(op vm.OpCode) int {
	return int(op) - int(vm.PUSH0)
}

func isLegacy(b byte) bool {
	for _, r := range legacyRanges {
		if b >= r[0] && b <= r[1] {
			return true
		}
	}
	return false
}
