package explore

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/contractcfg/internal/vmstate"
)

// SymbolicStack is a stepper that applies the stack effect of every instruction to the
// symbolic stack. Popped values become the arguments of the pushed expressions, values
// that are popped from an empty stack are treated as unknown inputs of the path.
func SymbolicStack(state *vmstate.State, ins instruction.Instruction) error {
	args := make([]vmstate.Expression, ins.Pops)
	for i := range ins.Pops {
		value, err := state.Pop()
		if err != nil {
			args[i] = vmstate.Symbol{Name: fmt.Sprintf("in_%x_%d", ins.Offset, i)}
			continue
		}
		args[i] = value.Symbolic
	}

	for range ins.Pushes {
		state.Push(uint256.Int{}, vmstate.Apply{Op: ins.Mnemonic, Args: args})
	}
	return nil
}
