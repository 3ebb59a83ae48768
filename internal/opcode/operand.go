package opcode

import (
	"encoding/binary"
	"errors"
)

// ErrMalformedOperand is returned when the declared operand shape can not be read
// from the remaining bytes.
var ErrMalformedOperand = errors.New("malformed operand")

// Form is the layout class of an operand.
type Form uint8

// operand forms.
const (
	FormNone Form = iota
	FormFixed
	FormVariable
)

// Kind describes how the operand bytes are interpreted.
type Kind uint8

// operand kinds.
const (
	KindNone Kind = iota
	KindData           // raw immediate data
	KindRelative       // signed offset relative to a platform defined anchor
	KindAddress        // absolute address or script hash
	KindFloat          // IEEE 754 immediate
	KindLengthPrefixed // little endian length of Size bytes followed by data
	KindNeoVarBytes    // NEO var-int length followed by data
	KindULEB128        // unsigned LEB128 value
	KindSLEB128        // signed LEB128 value
	KindBranchTable    // ULEB128 count followed by count+1 ULEB128 labels
	KindMemArg         // ULEB128 alignment and ULEB128 offset
	KindCallIndirect   // ULEB128 type index and a reserved byte
	KindBlockType      // single block type byte
)

// maxLEB128Bytes is the maximum encoded size of a 64 bit LEB128 value.
const maxLEB128Bytes = 10

// OperandShape declares the operand that follows an opcode byte.
type OperandShape struct {
	Form Form
	Kind Kind
	Size int // number of bytes for fixed operands, width of the length prefix for length prefixed ones
}

// None returns the shape of an opcode without operand.
func None() OperandShape {
	return OperandShape{}
}

// Fixed returns the shape of a fixed size operand.
func Fixed(kind Kind, size int) OperandShape {
	return OperandShape{Form: FormFixed, Kind: kind, Size: size}
}

// Variable returns the shape of a variable size operand.
func Variable(kind Kind, size int) OperandShape {
	return OperandShape{Form: FormVariable, Kind: kind, Size: size}
}

// Length returns the number of operand bytes at the start of the passed buffer.
func (s OperandShape) Length(b []byte) (int, error) {
	switch s.Form {
	case FormNone:
		return 0, nil
	case FormFixed:
		if len(b) < s.Size {
			return 0, ErrMalformedOperand
		}
		return s.Size, nil
	case FormVariable:
		return s.variableLength(b)
	default:
		return 0, ErrMalformedOperand
	}
}

func (s OperandShape) variableLength(b []byte) (int, error) {
	switch s.Kind {
	case KindLengthPrefixed:
		return lengthPrefixed(b, s.Size)
	case KindNeoVarBytes:
		return neoVarBytes(b)
	case KindULEB128:
		_, n, err := ReadULEB128(b)
		return n, err
	case KindSLEB128:
		_, n, err := ReadSLEB128(b)
		return n, err
	case KindBranchTable:
		return branchTable(b)
	case KindMemArg:
		return lebSequence(b, 2)
	case KindCallIndirect:
		n, err := lebSequence(b, 1)
		if err != nil {
			return 0, err
		}
		if len(b) < n+1 {
			return 0, ErrMalformedOperand
		}
		return n + 1, nil
	case KindBlockType:
		if len(b) < 1 {
			return 0, ErrMalformedOperand
		}
		return 1, nil
	default:
		return 0, ErrMalformedOperand
	}
}

func lengthPrefixed(b []byte, width int) (int, error) {
	if len(b) < width {
		return 0, ErrMalformedOperand
	}

	var size uint64
	switch width {
	case 1:
		size = uint64(b[0])
	case 2:
		size = uint64(binary.LittleEndian.Uint16(b))
	case 4:
		size = uint64(binary.LittleEndian.Uint32(b))
	default:
		return 0, ErrMalformedOperand
	}

	if uint64(len(b)-width) < size {
		return 0, ErrMalformedOperand
	}
	return width + int(size), nil
}

// neoVarBytes reads a NEO var-int prefixed byte array.
func neoVarBytes(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, ErrMalformedOperand
	}

	switch b[0] {
	case 0xfd:
		return lengthPrefixedAfter(b, 1, 2)
	case 0xfe:
		return lengthPrefixedAfter(b, 1, 4)
	case 0xff:
		if len(b) < 9 {
			return 0, ErrMalformedOperand
		}
		size := binary.LittleEndian.Uint64(b[1:])
		if uint64(len(b)-9) < size {
			return 0, ErrMalformedOperand
		}
		return 9 + int(size), nil
	default:
		size := int(b[0])
		if len(b)-1 < size {
			return 0, ErrMalformedOperand
		}
		return 1 + size, nil
	}
}

func lengthPrefixedAfter(b []byte, skip, width int) (int, error) {
	n, err := lengthPrefixed(b[skip:], width)
	if err != nil {
		return 0, err
	}
	return skip + n, nil
}

func branchTable(b []byte) (int, error) {
	count, n, err := ReadULEB128(b)
	if err != nil {
		return 0, err
	}
	if count > uint64(len(b)) {
		return 0, ErrMalformedOperand
	}
	rest, err := lebSequence(b[n:], int(count)+1)
	if err != nil {
		return 0, err
	}
	return n + rest, nil
}

func lebSequence(b []byte, count int) (int, error) {
	total := 0
	for range count {
		_, n, err := ReadULEB128(b[total:])
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// ReadULEB128 reads an unsigned LEB128 value and returns it with its encoded size.
// The unsigned LEB128 encoding is identical to the binary package varint encoding.
func ReadULEB128(b []byte) (uint64, int, error) {
	value, n := binary.Uvarint(b)
	if n <= 0 {
		return 0, 0, ErrMalformedOperand
	}
	return value, n, nil
}

// ReadSLEB128 reads a signed LEB128 value and returns it with its encoded size.
func ReadSLEB128(b []byte) (int64, int, error) {
	var value int64
	var shift uint
	for i := 0; i < len(b) && i < maxLEB128Bytes; i++ {
		value |= int64(b[i]&0x7f) << shift
		shift += 7
		if b[i]&0x80 == 0 {
			if shift < 64 && b[i]&0x40 != 0 {
				value |= -1 << shift
			}
			return value, i + 1, nil
		}
	}
	return 0, 0, ErrMalformedOperand
}
