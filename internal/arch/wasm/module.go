package wasm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/function"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
	"github.com/retroenv/contractcfg/internal/symbols"
)

// Module format errors.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic")
	ErrInvalidVersion = errors.New("unsupported wasm version")
	ErrTruncated      = errors.New("unexpected end of module")
	ErrFunctionCount  = errors.New("function and code section sizes differ")
)

var magic = []byte{0x00, 'a', 's', 'm'}

const version = 1

// section ids
const (
	sectionCustom   = 0
	sectionImport   = 2
	sectionFunction = 3
	sectionExport   = 7
	sectionCode     = 10
)

// external kinds of imports and exports
const (
	externalFunction = 0
	externalTable    = 1
	externalMemory   = 2
	externalGlobal   = 3
)

// nameSubsectionFunctions is the function names subsection of the custom name section.
const nameSubsectionFunctions = 1

// reader reads the primitive encodings of the binary module format.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrTruncated
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uleb() (uint64, error) {
	value, n, err := opcode.ReadULEB128(r.data[r.pos:])
	if err != nil {
		return 0, ErrTruncated
	}
	r.pos += n
	return value, nil
}

func (r *reader) readBytes(n uint64) ([]byte, error) {
	if n > uint64(len(r.data)-r.pos) {
		return nil, ErrTruncated
	}
	b := r.data[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *reader) name() (string, error) {
	n, err := r.uleb()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) limits() error {
	flags, err := r.readByte()
	if err != nil {
		return err
	}
	if _, err := r.uleb(); err != nil {
		return err
	}
	if flags&1 != 0 {
		_, err = r.uleb()
	}
	return err
}

// body is a decoded function body.
type body struct {
	offset       uint64 // offset of the first instruction
	instructions []instruction.Instruction
}

// moduleParser collects the sections that are relevant for the control-flow recovery.
type moduleParser struct {
	imports       []string
	functionCount uint64
	exports       map[uint64]string // function index to first export name
	names         map[uint64]string // function index to debug name
	bodies        []body
}

// ParseModule parses a binary WebAssembly module. The function bodies are decoded at their
// absolute file offsets and concatenated in function index order.
func ParseModule(data []byte) (arch.Module, error) {
	if len(data) < 8 {
		return arch.Module{}, ErrTruncated
	}
	if !bytes.Equal(data[:4], magic) {
		return arch.Module{}, ErrInvalidMagic
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != version {
		return arch.Module{}, fmt.Errorf("%w: %d", ErrInvalidVersion, v)
	}

	p := &moduleParser{
		exports: make(map[uint64]string),
		names:   make(map[uint64]string),
	}
	r := &reader{data: data, pos: 8}

	for r.pos < len(r.data) {
		id, err := r.readByte()
		if err != nil {
			return arch.Module{}, err
		}
		size, err := r.uleb()
		if err != nil {
			return arch.Module{}, fmt.Errorf("reading size of section %d: %w", id, err)
		}
		start := r.pos
		content, err := r.readBytes(size)
		if err != nil {
			return arch.Module{}, fmt.Errorf("reading section %d: %w", id, err)
		}

		section := &reader{data: data[:start+len(content)], pos: start}
		if err := p.section(id, section); err != nil {
			return arch.Module{}, fmt.Errorf("parsing section %d: %w", id, err)
		}
	}

	if uint64(len(p.bodies)) != p.functionCount {
		return arch.Module{}, ErrFunctionCount
	}
	return p.module()
}

func (p *moduleParser) section(id byte, r *reader) error {
	switch id {
	case sectionCustom:
		return p.custom(r)
	case sectionImport:
		return p.importSection(r)
	case sectionFunction:
		count, err := r.uleb()
		if err != nil {
			return err
		}
		p.functionCount = count
		return nil
	case sectionExport:
		return p.exportSection(r)
	case sectionCode:
		return p.codeSection(r)
	default:
		return nil
	}
}

func (p *moduleParser) importSection(r *reader) error {
	count, err := r.uleb()
	if err != nil {
		return err
	}

	for range count {
		moduleName, err := r.name()
		if err != nil {
			return err
		}
		field, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.readByte()
		if err != nil {
			return err
		}

		switch kind {
		case externalFunction:
			if _, err := r.uleb(); err != nil {
				return err
			}
			p.imports = append(p.imports, moduleName+"."+field)
		case externalTable:
			if _, err := r.readByte(); err != nil {
				return err
			}
			if err := r.limits(); err != nil {
				return err
			}
		case externalMemory:
			if err := r.limits(); err != nil {
				return err
			}
		case externalGlobal:
			if _, err := r.readBytes(2); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unsupported import kind %d", kind)
		}
	}
	return nil
}

func (p *moduleParser) exportSection(r *reader) error {
	count, err := r.uleb()
	if err != nil {
		return err
	}

	for range count {
		name, err := r.name()
		if err != nil {
			return err
		}
		kind, err := r.readByte()
		if err != nil {
			return err
		}
		index, err := r.uleb()
		if err != nil {
			return err
		}
		if _, ok := p.exports[index]; kind == externalFunction && !ok {
			p.exports[index] = name
		}
	}
	return nil
}

// custom reads the function names of the name section, other custom sections are skipped.
func (p *moduleParser) custom(r *reader) error {
	name, err := r.name()
	if err != nil {
		return err
	}
	if name != "name" {
		return nil
	}

	for r.pos < len(r.data) {
		id, err := r.readByte()
		if err != nil {
			return err
		}
		size, err := r.uleb()
		if err != nil {
			return err
		}
		content, err := r.readBytes(size)
		if err != nil {
			return err
		}
		if id != nameSubsectionFunctions {
			continue
		}

		sub := &reader{data: content}
		count, err := sub.uleb()
		if err != nil {
			return err
		}
		for range count {
			index, err := sub.uleb()
			if err != nil {
				return err
			}
			fn, err := sub.name()
			if err != nil {
				return err
			}
			p.names[index] = fn
		}
	}
	return nil
}

func (p *moduleParser) codeSection(r *reader) error {
	count, err := r.uleb()
	if err != nil {
		return err
	}

	for i := range count {
		size, err := r.uleb()
		if err != nil {
			return err
		}
		if size > uint64(len(r.data)-r.pos) {
			return ErrTruncated
		}
		end := r.pos + int(size)

		fn := &reader{data: r.data[:end], pos: r.pos}
		if err := skipLocals(fn); err != nil {
			return fmt.Errorf("reading locals of function body %d: %w", i, err)
		}

		offset := uint64(fn.pos)
		instructions, err := instruction.Decode(table, fn.data[fn.pos:], offset)
		if err != nil {
			return fmt.Errorf("decoding function body %d: %w", i, err)
		}
		markReturn(instructions)

		p.bodies = append(p.bodies, body{offset: offset, instructions: instructions})
		r.pos = end
	}
	return nil
}

func skipLocals(r *reader) error {
	groups, err := r.uleb()
	if err != nil {
		return err
	}
	for range groups {
		if _, err := r.uleb(); err != nil {
			return err
		}
		if _, err := r.readByte(); err != nil {
			return err
		}
	}
	return nil
}

// markReturn flags the end instruction that closes the function body as a return, it has
// no successor inside of the module sequence.
func markReturn(instructions []instruction.Instruction) {
	if len(instructions) == 0 {
		return
	}
	last := &instructions[len(instructions)-1]
	if last.Opcode == End {
		last.Flags |= opcode.NoFlow
	}
}

func (p *moduleParser) module() (arch.Module, error) {
	module := arch.Module{
		Symbols: symbols.New(),
		Imports: p.imports,
	}

	imported := uint64(len(p.imports))
	for i, b := range p.bodies {
		module.Instructions = append(module.Instructions, b.instructions...)
		module.FunctionOffsets = append(module.FunctionOffsets, b.offset)

		index := imported + uint64(i)
		sym := symbols.Symbol{Offset: b.offset}
		switch name, exported := p.exports[index]; {
		case exported:
			sym.Name, sym.Exported = name, true
		case p.names[index] != "":
			sym.Name = p.names[index]
		default:
			sym.Name = function.Name(b.offset)
		}

		if err := module.Symbols.Add(sym); err != nil {
			// debug names are not guaranteed to be unique
			sym.Name = function.Name(b.offset)
			if err := module.Symbols.Add(sym); err != nil {
				return arch.Module{}, fmt.Errorf("adding symbol of function %d: %w", index, err)
			}
		}
	}
	return module, nil
}
