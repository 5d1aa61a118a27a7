package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrInput indicates a particle or setting that fails basic validity.
	ErrInput = errors.New("dynamo: invalid input")

	// ErrAsymptote indicates two bodies at zero separation.
	ErrAsymptote = errors.New("dynamo: asymptote (bodies coincide)")

	// ErrOverflow indicates a non-finite or out of range state component.
	ErrOverflow = errors.New("dynamo: numeric overflow (NaN or Inf detected)")

	// ErrStepTooSmall indicates adaptive timestep became too small.
	ErrStepTooSmall = errors.New("dynamo: adaptive timestep below minimum")

	// ErrMaxEvaluations indicates the derivative evaluation budget ran out.
	ErrMaxEvaluations = errors.New("dynamo: maximum derivative evaluations exceeded")

	// ErrDimensionMismatch indicates mismatched state dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrIllegalTransition indicates a lifecycle call not allowed in the current state.
	ErrIllegalTransition = errors.New("dynamo: illegal state transition")

	// ErrDecode indicates a malformed persisted record.
	ErrDecode = errors.New("dynamo: malformed record")
)

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Time    float64
	State   State
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("t=%g: %v", e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
