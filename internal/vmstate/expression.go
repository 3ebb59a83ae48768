package vmstate

import (
	"strings"

	"github.com/holiman/uint256"
)

// Expression is a symbolic stack value.
type Expression interface {
	String() string
}

// Symbol is an unknown input value, for example call data or a function argument.
type Symbol struct {
	Name string
}

func (s Symbol) String() string {
	return s.Name
}

// Constant is a concrete value.
type Constant struct {
	Value uint256.Int
}

func (c Constant) String() string {
	return c.Value.Hex()
}

// Apply is the result of an operation on other expressions.
type Apply struct {
	Op   string
	Args []Expression
}

func (a Apply) String() string {
	var sb strings.Builder
	sb.WriteString(a.Op)
	sb.WriteByte('(')
	for i, arg := range a.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(arg.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
