package kernel

import (
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/operator"
)

// Gonum works on any operator representation through operator.Matrix.
type Gonum struct {
	ops      *operator.Set
	dec, out []float64
}

func NewGonum(ops *operator.Set) *Gonum {
	return &Gonum{ops: ops}
}

func (g *Gonum) Name() string {
	if g.ops.Sparse {
		return "gonum (sparse)"
	}
	return "gonum (dense)"
}

func (g *Gonum) Available() bool { return true }

func (g *Gonum) ensureScratch(n int) {
	if len(g.out) != n {
		g.dec = make([]float64, n)
		g.out = make([]float64, n)
	}
}

func (g *Gonum) Derive(dst, phi []float64, rhoInv float64) {
	g.ensureScratch(len(phi))
	g.ops.Int.MulVecTo(dst, phi)
	g.ops.Dec.MulVecTo(g.dec, phi)
	floats.AddScaled(dst, rhoInv, g.dec)
}

func (g *Gonum) Advance(phi dynamo.State, dX, rhoInv float64) dynamo.State {
	g.ensureScratch(len(phi))
	g.Derive(g.out, phi, rhoInv)
	floats.AddScaled(phi, dX, g.out)
	return phi
}
