package dynamo

import "math"

// State is the flat flux vector. Species blocks are laid out back to back,
// each spanning the full energy grid.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// System is the right-hand side of the cascade equation at depth X.
type System interface {
	// DeriveTo sets dst to dφ/dX at depth X. dst and phi never alias.
	DeriveTo(dst, phi State, X float64)
	StateDim() int
}

// Integrator advances a state by a fixed depth step.
type Integrator interface {
	Step(sys System, phi State, X, dX float64) State
}

// Tolerance bounds the local error of an adaptive step per component:
// |err_i| <= Abs + Rel·|phi_i|.
type Tolerance struct {
	Rel float64
	Abs float64
}

// AdaptiveIntegrator controls its own step size. It returns the new state,
// the step actually taken and the suggested next step.
type AdaptiveIntegrator interface {
	Integrator
	StepAdaptive(sys System, phi State, X, dX float64, tol Tolerance) (State, float64, float64, error)
}

// Observer is notified after every completed integration step.
type Observer interface {
	OnStep(step, total int, X float64)
}
