// Package xref enumerates the cross references of an instruction sequence, the offsets
// that are targets of branches or start linear code after an early halt.
package xref

import (
	"github.com/retroenv/contractcfg/internal/arch"
	"github.com/retroenv/contractcfg/internal/instruction"
	"github.com/retroenv/retrogolib/set"
)

// Enumerate returns the set of offsets that are branch, fallthrough or post halt targets.
// Additional leader offsets are merged into the result.
func Enumerate(instructions []instruction.Instruction, resolver arch.BranchResolver, leaders ...uint64) set.Set[uint64] {
	xrefs := set.New[uint64]()
	last := len(instructions) - 1

	for i, ins := range instructions {
		switch {
		case ins.IsBranchUnconditional():
			for _, target := range resolver.Targets(i) {
				xrefs.Add(target)
			}

		case ins.IsBranchConditional():
			for _, target := range resolver.Targets(i) {
				xrefs.Add(target)
			}
			xrefs.Add(ins.Next())

		case ins.IsHalt() && i != last:
			xrefs.Add(ins.Next())
		}
	}

	for _, leader := range leaders {
		xrefs.Add(leader)
	}
	return xrefs
}
