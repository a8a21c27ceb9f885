package element

import "fmt"

// Operator selects what a basis evaluation produces at each point.
type Operator uint8

const (
	OpValue Operator = iota // one component
	OpGrad                  // Dim components, reference coordinates
)

func (op Operator) String() string {
	switch op {
	case OpValue:
		return "value"
	case OpGrad:
		return "grad"
	}
	return fmt.Sprintf("Operator(%d)", uint8(op))
}

// Components returns the number of output components of op on a cell of
// dimension dim.
func (op Operator) Components(dim int) int {
	if op == OpGrad {
		return dim
	}
	return 1
}
