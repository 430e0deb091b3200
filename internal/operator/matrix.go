package operator

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a square operator over the state vector.
type Matrix interface {
	mat.Matrix
	// MulVecTo sets dst = M·x. dst and x must not alias.
	MulVecTo(dst, x []float64)
	NNZ() int
}

// Dense wraps a gonum dense operator.
type Dense struct {
	*mat.Dense
}

var _ Matrix = Dense{}

func (d Dense) MulVecTo(dst, x []float64) {
	r, _ := d.Dims()
	out := mat.NewVecDense(r, dst)
	out.MulVec(d.Dense, mat.NewVecDense(len(x), x))
}

func (d Dense) NNZ() int {
	r, c := d.Dims()
	n := 0
	for i := 0; i < r; i++ {
		for _, v := range d.RawRowView(i)[:c] {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// Set is the pair of transport operators of one interaction/decay model.
// Both are read-only and may be shared between concurrent solves.
type Set struct {
	Int Matrix
	Dec Matrix
	// MaxLdec is the largest inverse decay length over all state bins.
	MaxLdec float64
	Sparse  bool
	Dim     int
}

// Stats are operator diagnostics.
type Stats struct {
	Dim        int
	IntNNZ     int
	DecNNZ     int
	IntDensity float64
	DecDensity float64
}

func (s *Set) Stats() Stats {
	st := Stats{Dim: s.Dim, IntNNZ: s.Int.NNZ(), DecNNZ: s.Dec.NNZ()}
	if s.Dim > 0 {
		cells := float64(s.Dim) * float64(s.Dim)
		st.IntDensity = float64(st.IntNNZ) / cells
		st.DecDensity = float64(st.DecNNZ) / cells
	}
	return st
}

func (s Stats) String() string {
	return fmt.Sprintf("dim=%d int(nnz=%d, density=%.3g) dec(nnz=%d, density=%.3g)",
		s.Dim, s.IntNNZ, s.IntDensity, s.DecNNZ, s.DecDensity)
}
