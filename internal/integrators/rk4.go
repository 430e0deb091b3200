package integrators

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cascade/internal/dynamo"
)

// RK4 is the classical fourth-order method on fixed depth steps. Stage
// derivatives go into buffers kept across steps; only the result is
// allocated.
type RK4 struct {
	k   [4]dynamo.State
	tmp dynamo.State
}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.tmp) == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.tmp = make(dynamo.State, n)
}

func (r *RK4) Step(sys dynamo.System, phi dynamo.State, X, dX float64) dynamo.State {
	r.ensureScratch(len(phi))
	k1, k2, k3, k4 := r.k[0], r.k[1], r.k[2], r.k[3]
	half := 0.5 * dX

	sys.DeriveTo(k1, phi, X)
	sys.DeriveTo(k2, floats.AddScaledTo(r.tmp, phi, half, k1), X+half)
	sys.DeriveTo(k3, floats.AddScaledTo(r.tmp, phi, half, k2), X+half)
	sys.DeriveTo(k4, floats.AddScaledTo(r.tmp, phi, dX, k3), X+dX)

	// φ + dX/6·(k1 + 2k2 + 2k3 + k4)
	next := phi.Clone()
	floats.AddScaled(next, dX/6, k1)
	floats.AddScaled(next, dX/3, k2)
	floats.AddScaled(next, dX/3, k3)
	floats.AddScaled(next, dX/6, k4)
	return next
}
