package neo

import (
	avm "github.com/nspcc-dev/neo-go/pkg/vm/opcode"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// NEO 2 AVM opcodes that are referenced by the control-flow code.
const (
	Jmp      = byte(avm.JMP)
	JmpIf    = byte(avm.JMPIF)
	JmpIfNot = byte(avm.JMPIFNOT)
	Call     = byte(avm.CALL)
	Ret      = byte(avm.RET)
	AppCall  = byte(avm.APPCALL)
	Syscall  = byte(avm.SYSCALL)
	TailCall = byte(avm.TAILCALL)
	CallI    = byte(avm.CALLI)
	Throw    = byte(avm.THROW)
	Nop      = byte(avm.NOP)
	Push0    = byte(avm.PUSH0)
	Push1    = byte(avm.PUSH1)
)

// scriptHashSize is the size of a contract script hash operand.
const scriptHashSize = 20

var table = opcode.MustNewTable("neo", entries())

// entries returns the operand shapes, control-flow flags and stack effects of the AVM
// opcodes. Mnemonics are the neo-go opcode names.
func entries() map[byte]opcode.Entry {
	relative := opcode.Fixed(opcode.KindRelative, 2)
	scriptHash := opcode.Fixed(opcode.KindAddress, scriptHashSize)

	shapes := map[avm.Opcode]opcode.Entry{
		avm.PUSH0:     {Pushes: 1},
		avm.PUSHDATA1: {Operand: opcode.Variable(opcode.KindLengthPrefixed, 1), Pushes: 1},
		avm.PUSHDATA2: {Operand: opcode.Variable(opcode.KindLengthPrefixed, 2), Pushes: 1},
		avm.PUSHDATA4: {Operand: opcode.Variable(opcode.KindLengthPrefixed, 4), Pushes: 1},
		avm.PUSHM1:    {Pushes: 1},

		// flow control
		avm.NOP:      {},
		avm.JMP:      {Operand: relative, Flags: opcode.Branch},
		avm.JMPIF:    {Operand: relative, Flags: opcode.Branch | opcode.Conditional, Pops: 1},
		avm.JMPIFNOT: {Operand: relative, Flags: opcode.Branch | opcode.Conditional, Pops: 1},
		avm.CALL:     {Operand: relative, Flags: opcode.Call},
		avm.RET:      {Flags: opcode.NoFlow},
		avm.APPCALL:  {Operand: scriptHash, Flags: opcode.Call},
		avm.SYSCALL:  {Operand: opcode.Variable(opcode.KindNeoVarBytes, 0), Flags: opcode.Call},
		avm.TAILCALL: {Operand: scriptHash, Flags: opcode.Call | opcode.NoFlow},

		// stack
		avm.DUPFROMALTSTACK: {Pushes: 1},
		avm.TOALTSTACK:      {Pops: 1},
		avm.FROMALTSTACK:    {Pushes: 1},
		avm.XDROP:           {Pops: 2},
		avm.XSWAP:           {Pops: 1},
		avm.XTUCK:           {Pops: 2, Pushes: 1},
		avm.DEPTH:           {Pushes: 1},
		avm.DROP:            {Pops: 1},
		avm.DUP:             {Pops: 1, Pushes: 2},
		avm.NIP:             {Pops: 2, Pushes: 1},
		avm.OVER:            {Pops: 2, Pushes: 3},
		avm.PICK:            {Pops: 1, Pushes: 1},
		avm.ROLL:            {Pops: 1, Pushes: 1},
		avm.ROT:             {Pops: 3, Pushes: 3},
		avm.SWAP:            {Pops: 2, Pushes: 2},
		avm.TUCK:            {Pops: 2, Pushes: 3},

		// splice
		avm.CAT:    {Pops: 2, Pushes: 1},
		avm.SUBSTR: {Pops: 3, Pushes: 1},
		avm.LEFT:   {Pops: 2, Pushes: 1},
		avm.RIGHT:  {Pops: 2, Pushes: 1},
		avm.SIZE:   {Pops: 1, Pushes: 1},

		// bitwise logic
		avm.INVERT: {Pops: 1, Pushes: 1},
		avm.AND:    {Pops: 2, Pushes: 1},
		avm.OR:     {Pops: 2, Pushes: 1},
		avm.XOR:    {Pops: 2, Pushes: 1},
		avm.EQUAL:  {Pops: 2, Pushes: 1},

		// arithmetic
		avm.INC:         {Pops: 1, Pushes: 1},
		avm.DEC:         {Pops: 1, Pushes: 1},
		avm.SIGN:        {Pops: 1, Pushes: 1},
		avm.NEGATE:      {Pops: 1, Pushes: 1},
		avm.ABS:         {Pops: 1, Pushes: 1},
		avm.NOT:         {Pops: 1, Pushes: 1},
		avm.NZ:          {Pops: 1, Pushes: 1},
		avm.ADD:         {Pops: 2, Pushes: 1},
		avm.SUB:         {Pops: 2, Pushes: 1},
		avm.MUL:         {Pops: 2, Pushes: 1},
		avm.DIV:         {Pops: 2, Pushes: 1},
		avm.MOD:         {Pops: 2, Pushes: 1},
		avm.SHL:         {Pops: 2, Pushes: 1},
		avm.SHR:         {Pops: 2, Pushes: 1},
		avm.BOOLAND:     {Pops: 2, Pushes: 1},
		avm.BOOLOR:      {Pops: 2, Pushes: 1},
		avm.NUMEQUAL:    {Pops: 2, Pushes: 1},
		avm.NUMNOTEQUAL: {Pops: 2, Pushes: 1},
		avm.LT:          {Pops: 2, Pushes: 1},
		avm.GT:          {Pops: 2, Pushes: 1},
		avm.LTE:         {Pops: 2, Pushes: 1},
		avm.GTE:         {Pops: 2, Pushes: 1},
		avm.MIN:         {Pops: 2, Pushes: 1},
		avm.MAX:         {Pops: 2, Pushes: 1},
		avm.WITHIN:      {Pops: 3, Pushes: 1},

		// crypto
		avm.SHA1:          {Pops: 1, Pushes: 1},
		avm.SHA256:        {Pops: 1, Pushes: 1},
		avm.HASH160:       {Pops: 1, Pushes: 1},
		avm.HASH256:       {Pops: 1, Pushes: 1},
		avm.CHECKSIG:      {Pops: 2, Pushes: 1},
		avm.VERIFY:        {Pops: 3, Pushes: 1},
		avm.CHECKMULTISIG: {Pops: 2, Pushes: 1},

		// array
		avm.ARRAYSIZE: {Pops: 1, Pushes: 1},
		avm.PACK:      {Pops: 1, Pushes: 1},
		avm.UNPACK:    {Pops: 1, Pushes: 1},
		avm.PICKITEM:  {Pops: 2, Pushes: 1},
		avm.SETITEM:   {Pops: 3},
		avm.NEWARRAY:  {Pops: 1, Pushes: 1},
		avm.NEWSTRUCT: {Pops: 1, Pushes: 1},
		avm.NEWMAP:    {Pushes: 1},
		avm.APPEND:    {Pops: 2},
		avm.REVERSE:   {Pops: 1},
		avm.REMOVE:    {Pops: 2},
		avm.HASKEY:    {Pops: 2, Pushes: 1},
		avm.KEYS:      {Pops: 1, Pushes: 1},
		avm.VALUES:    {Pops: 1, Pushes: 1},

		// stack isolation
		avm.CALLI:   {Operand: opcode.Fixed(opcode.KindRelative, 4), Flags: opcode.Call},
		avm.CALLE:   {Operand: opcode.Fixed(opcode.KindAddress, 2+scriptHashSize), Flags: opcode.Call},
		avm.CALLED:  {Operand: opcode.Fixed(opcode.KindData, 2), Flags: opcode.Call, Pops: 1},
		avm.CALLET:  {Operand: opcode.Fixed(opcode.KindAddress, 2+scriptHashSize), Flags: opcode.Call | opcode.NoFlow},
		avm.CALLEDT: {Operand: opcode.Fixed(opcode.KindData, 2), Flags: opcode.Call | opcode.NoFlow, Pops: 1},

		// exceptions
		avm.THROW:      {Flags: opcode.NoFlow},
		avm.THROWIFNOT: {Pops: 1},
	}

	for op := avm.PUSHBYTES1; op <= avm.PUSHBYTES75; op++ {
		shapes[op] = opcode.Entry{Operand: opcode.Fixed(opcode.KindData, int(op)), Pushes: 1}
	}
	for op := avm.PUSH1; op <= avm.PUSH16; op++ {
		shapes[op] = opcode.Entry{Pushes: 1}
	}

	m := make(map[byte]opcode.Entry, len(shapes))
	for op, entry := range shapes {
		entry.Mnemonic = op.String()
		m[byte(op)] = entry
	}
	return m
}
