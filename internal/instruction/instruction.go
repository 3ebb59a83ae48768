// Package instruction contains the decoded instruction type and the table driven decoder.
package instruction

import (
	"fmt"
	"strings"

	"github.com/retroenv/contractcfg/internal/opcode"
)

// Instruction is a single decoded opcode occurrence in a module.
// Instructions are created once during decoding and not modified afterwards.
type Instruction struct {
	Offset    uint64 // offset of the opcode byte
	OffsetEnd uint64 // offset of the last byte of the instruction, inclusive
	Opcode    byte
	Mnemonic  string
	Operand   []byte // operand bytes without the opcode byte, nil if the opcode has none

	Flags  opcode.Flags
	Pops   int
	Pushes int
}

// New creates an instruction for the given table entry. It is used by the decoder and by
// platform collaborators that supply pre-decoded instructions.
func New(offset uint64, op byte, entry opcode.Entry, operand []byte) Instruction {
	return Instruction{
		Offset:    offset,
		OffsetEnd: offset + uint64(len(operand)),
		Opcode:    op,
		Mnemonic:  entry.Mnemonic,
		Operand:   operand,
		Flags:     entry.Flags,
		Pops:      entry.Pops,
		Pushes:    entry.Pushes,
	}
}

// Next returns the offset of the first byte following the instruction.
func (i Instruction) Next() uint64 {
	return i.OffsetEnd + 1
}

// Size returns the encoded size of the instruction in bytes.
func (i Instruction) Size() uint64 {
	return i.OffsetEnd - i.Offset + 1
}

// IsBranchUnconditional returns whether the instruction always transfers control.
func (i Instruction) IsBranchUnconditional() bool {
	return i.Flags.Is(opcode.Branch) && !i.Flags.Is(opcode.Conditional)
}

// IsBranchConditional returns whether the instruction transfers control depending on a condition.
func (i Instruction) IsBranchConditional() bool {
	return i.Flags.Is(opcode.Branch | opcode.Conditional)
}

// IsHalt returns whether execution does not continue after the instruction.
func (i Instruction) IsHalt() bool {
	return i.Flags.Is(opcode.NoFlow)
}

// IsCall returns whether the instruction calls another function.
func (i Instruction) IsCall() bool {
	return i.Flags.Is(opcode.Call)
}

// String returns the offset, mnemonic and operand bytes in a human readable form.
func (i Instruction) String() string {
	if len(i.Operand) == 0 {
		return fmt.Sprintf("%04x: %s", i.Offset, i.Mnemonic)
	}

	var sb strings.Builder
	for idx, b := range i.Operand {
		if idx > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", b)
	}
	return fmt.Sprintf("%04x: %s %s", i.Offset, i.Mnemonic, sb.String())
}
