package kernel

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/operator"
)

// BLAS folds both operators into one dense matrix per density value and
// uses gonum's BLAS matrix-vector product.
type BLAS struct {
	in, dec  *mat.Dense
	combined *mat.Dense
	// rhoInv is the density combined was built for; valid once built.
	rhoInv float64
	valid  bool
	out    *mat.VecDense
}

func NewBLAS(ops *operator.Set) (*BLAS, error) {
	in, ok1 := ops.Int.(operator.Dense)
	dec, ok2 := ops.Dec.(operator.Dense)
	if ops.Sparse || !ok1 || !ok2 {
		return nil, dynamo.Configf("blas kernel requires dense operators")
	}
	return &BLAS{in: in.Dense, dec: dec.Dense}, nil
}

func (b *BLAS) Name() string    { return "blas" }
func (b *BLAS) Available() bool { return true }

// matrix returns Int + rhoInv·Dec, rebuilt only when rhoInv changes.
func (b *BLAS) matrix(rhoInv float64) *mat.Dense {
	if b.valid && b.rhoInv == rhoInv {
		return b.combined
	}
	if b.combined == nil {
		r, c := b.in.Dims()
		b.combined = mat.NewDense(r, c, nil)
	}
	b.combined.Scale(rhoInv, b.dec)
	b.combined.Add(b.combined, b.in)
	b.rhoInv = rhoInv
	b.valid = true
	return b.combined
}

func (b *BLAS) Derive(dst, phi []float64, rhoInv float64) {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(b.matrix(rhoInv), mat.NewVecDense(len(phi), phi))
}

func (b *BLAS) Advance(phi dynamo.State, dX, rhoInv float64) dynamo.State {
	if b.out == nil || b.out.Len() != len(phi) {
		b.out = mat.NewVecDense(len(phi), nil)
	}
	b.out.MulVec(b.matrix(rhoInv), mat.NewVecDense(len(phi), phi))
	state := mat.NewVecDense(len(phi), phi)
	state.AddScaledVec(state, dX, b.out)
	return phi
}
