package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cascade/internal/dynamo"
)

type Euler struct {
	deriv dynamo.State
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, phi dynamo.State, X, dX float64) dynamo.State {
	if len(e.deriv) != len(phi) {
		e.deriv = make(dynamo.State, len(phi))
	}
	sys.DeriveTo(e.deriv, phi, X)

	next := phi.Clone()
	floats.AddScaled(next, dX, e.deriv)
	return next
}
