package kernel

import (
	"runtime"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/operator"
)

// minRows is the smallest row chunk handed to a worker.
const minRows = 256

// Parallel splits sparse row products across CPU workers.
type Parallel struct {
	in, dec  *operator.CSR
	workers  int
	tmp, out []float64
}

func NewParallel(ops *operator.Set) (*Parallel, error) {
	in, ok1 := ops.Int.(*operator.CSR)
	dec, ok2 := ops.Dec.(*operator.CSR)
	if !ops.Sparse || !ok1 || !ok2 {
		return nil, dynamo.Configf("parallel kernel requires sparse operators")
	}
	return &Parallel{in: in, dec: dec, workers: runtime.NumCPU()}, nil
}

func (p *Parallel) Name() string    { return "parallel" }
func (p *Parallel) Available() bool { return true }

func (p *Parallel) ensureScratch(n int) {
	if len(p.out) != n {
		p.tmp = make([]float64, n)
		p.out = make([]float64, n)
	}
}

func (p *Parallel) Derive(dst, phi []float64, rhoInv float64) {
	p.ensureScratch(len(phi))
	dynamo.ParallelForN(p.workers, len(dst), minRows, func(lo, hi int) {
		p.in.MulVecRows(dst, phi, lo, hi)
		p.dec.MulVecRows(p.tmp, phi, lo, hi)
		for i := lo; i < hi; i++ {
			dst[i] += rhoInv * p.tmp[i]
		}
	})
}

func (p *Parallel) Advance(phi dynamo.State, dX, rhoInv float64) dynamo.State {
	p.ensureScratch(len(phi))
	p.Derive(p.out, phi, rhoInv)
	dynamo.ParallelForN(p.workers, len(phi), minRows, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			phi[i] += dX * p.out[i]
		}
	})
	return phi
}
