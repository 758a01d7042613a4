package engine

import "fmt"

// InvariantViolation reports a broken engine invariant: CBDC outstanding
// diverging from the sum of holdings, allocation shares not summing to one,
// and the like. It indicates an engine bug, is fatal, and aborts the run
// rather than clamping the value into range.
type InvariantViolation struct {
	Step   int
	Field  string
	Value  any
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("invariant violated at step %d: %s = %v: %s", e.Step, e.Field, e.Value, e.Detail)
}
