package wasm

import (
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/opcode"
)

// frameKind is the kind of a structured control frame.
type frameKind uint8

const (
	functionFrame frameKind = iota
	blockFrame
	loopFrame
	ifFrame
)

type frame struct {
	kind   frameKind
	opener int // index of the opening instruction, -1 for the implicit function frame
	elseAt int // index of the else instruction of an if frame, -1 if none
	endAt  int // index of the matching end instruction, -1 if unmatched
}

// structure is the result of matching the structured control instructions.
type structure struct {
	instructions []instruction.Instruction
	frames       map[int]*frame // opener index to frame
	targets      [][]uint64
}

// resolve matches the structured control instructions of concatenated function bodies and
// computes the static targets of all branches. Every body is wrapped in an implicit function
// frame that is closed by the final end of the body.
func resolve(instructions []instruction.Instruction) *structure {
	s := &structure{
		instructions: instructions,
		frames:       make(map[int]*frame),
		targets:      make([][]uint64, len(instructions)),
	}
	s.match()
	s.branches()
	return s
}

// match assigns the else and end instructions to their opening instructions.
func (s *structure) match() {
	var stack []*frame

	for i, ins := range s.instructions {
		if len(stack) == 0 {
			stack = append(stack, &frame{kind: functionFrame, opener: -1, elseAt: -1, endAt: -1})
		}

		switch ins.Opcode {
		case Block, Loop, If:
			f := &frame{kind: kindOf(ins.Opcode), opener: i, elseAt: -1, endAt: -1}
			s.frames[i] = f
			stack = append(stack, f)

		case Else:
			if top := stack[len(stack)-1]; top.kind == ifFrame {
				top.elseAt = i
			}

		case End:
			stack[len(stack)-1].endAt = i
			stack = stack[:len(stack)-1]
		}
	}
}

// branches walks the instructions again and resolves the branch labels against the
// frames that are open at every branch.
func (s *structure) branches() {
	var stack []*frame

	for i, ins := range s.instructions {
		if len(stack) == 0 {
			stack = append(stack, &frame{kind: functionFrame, opener: -1, elseAt: -1, endAt: -1})
		}

		switch ins.Opcode {
		case Block, Loop:
			stack = append(stack, s.frames[i])

		case If:
			f := s.frames[i]
			stack = append(stack, f)
			// the branch is taken when the condition is zero
			switch {
			case f.elseAt >= 0:
				s.targets[i] = []uint64{s.instructions[f.elseAt].Next()}
			case f.endAt >= 0:
				s.targets[i] = []uint64{s.instructions[f.endAt].Next()}
			}

		case Else:
			top := stack[len(stack)-1]
			if top.kind == ifFrame && top.endAt >= 0 {
				s.targets[i] = []uint64{s.instructions[top.endAt].Next()}
			}

		case End:
			stack = stack[:len(stack)-1]

		case Br, BrIf:
			label, _, err := opcode.ReadULEB128(ins.Operand)
			if err != nil {
				continue
			}
			if target, ok := s.labelTarget(stack, label); ok {
				s.targets[i] = []uint64{target}
			}

		case BrTable:
			s.targets[i] = s.tableTargets(stack, ins.Operand)
		}
	}
}

// labelTarget returns the continuation of the frame that the relative label refers to.
// Branching to a loop continues at the start of the loop body, branching to any other
// frame continues after its end. A branch to the function frame is a return.
func (s *structure) labelTarget(stack []*frame, label uint64) (uint64, bool) {
	if label >= uint64(len(stack)) {
		return 0, false
	}

	f := stack[len(stack)-1-int(label)]
	switch {
	case f.kind == functionFrame:
		return 0, false
	case f.kind == loopFrame:
		return s.instructions[f.opener].Next(), true
	case f.endAt >= 0:
		return s.instructions[f.endAt].Next(), true
	default:
		return 0, false
	}
}

func (s *structure) tableTargets(stack []*frame, operand []byte) []uint64 {
	count, pos, err := opcode.ReadULEB128(operand)
	if err != nil {
		return nil
	}

	var targets []uint64
	seen := make(map[uint64]struct{})
	for range count + 1 {
		label, n, err := opcode.ReadULEB128(operand[pos:])
		if err != nil {
			return targets
		}
		pos += n

		target, ok := s.labelTarget(stack, label)
		if !ok {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		targets = append(targets, target)
	}
	return targets
}

func kindOf(op byte) frameKind {
	switch op {
	case Loop:
		return loopFrame
	case If:
		return ifFrame
	default:
		return blockFrame
	}
}
