package instruction

import (
	"errors"
	"fmt"

	"github.com/retroenv/contractcfg/internal/opcode"
)

// MalformedOperandError reports an operand that could not be read from the remaining bytes.
type MalformedOperandError struct {
	Mnemonic string
	Offset   uint64
}

func (e *MalformedOperandError) Error() string {
	return fmt.Sprintf("operand of '%s' at offset 0x%x is truncated", e.Mnemonic, e.Offset)
}

func (e *MalformedOperandError) Unwrap() error {
	return opcode.ErrMalformedOperand
}

// Decode performs a linear sweep over the code and decodes all instructions using the table.
// The base offset is added to all instruction offsets. Decoding stops at the first unknown
// opcode or truncated operand, no partial result is returned as all following offsets would
// be out of sync.
func Decode(table *opcode.Table, code []byte, base uint64) ([]Instruction, error) {
	instructions := make([]Instruction, 0, len(code)/2)

	for pos := 0; pos < len(code); {
		offset := base + uint64(pos)
		op := code[pos]

		entry, err := table.Lookup(op)
		if err != nil {
			var unknownErr *opcode.UnknownOpcodeError
			if errors.As(err, &unknownErr) {
				unknownErr.Offset = offset
			}
			return nil, err
		}

		n, err := entry.Operand.Length(code[pos+1:])
		if err != nil {
			return nil, &MalformedOperandError{Mnemonic: entry.Mnemonic, Offset: offset}
		}

		var operand []byte
		if n > 0 {
			operand = make([]byte, n)
			copy(operand, code[pos+1:pos+1+n])
		}

		instructions = append(instructions, New(offset, op, entry, operand))
		pos += 1 + n
	}

	return instructions, nil
}
