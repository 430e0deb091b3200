package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for cascade runs.
var (
	// ErrConfiguration indicates an unknown model name, an unsupported grid
	// variable or an incompatible integrator/backend pairing.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrNotFound indicates an unknown species name or identifier.
	ErrNotFound = errors.New("dynamo: not found")

	// ErrPrecondition indicates a call made before the state it depends on
	// (atmosphere, interaction model, primary flux) was initialized.
	ErrPrecondition = errors.New("dynamo: precondition not met")

	// ErrNumerical indicates the integrator failed mid-solve.
	ErrNumerical = errors.New("dynamo: numerical integration failed")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrStepTooSmall indicates the adaptive depth step collapsed.
	ErrStepTooSmall = errors.New("dynamo: adaptive step below minimum")

	// ErrDimensionMismatch indicates a state whose length does not match the system.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")
)

// SimulationError wraps an error with the integration context it occurred in.
type SimulationError struct {
	Step    int
	Depth   float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (X=%.4g g/cm2): %v", e.Step, e.Depth, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// Configf returns an ErrConfiguration wrapped with a formatted reason.
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// NotFoundf returns an ErrNotFound wrapped with a formatted reason.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
