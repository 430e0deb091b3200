// Package kernel implements the linear step of the cascade equation on
// interchangeable linear-algebra backends.
package kernel

import (
	"sort"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/operator"
)

// LinearStepKernel applies the transport operators. Kernels keep scratch
// buffers and must not be shared between concurrent solves.
type LinearStepKernel interface {
	Name() string
	Available() bool
	// Derive sets dst = Int·phi + rhoInv·Dec·phi.
	Derive(dst, phi []float64, rhoInv float64)
	// Advance performs phi += dX·(Int·phi + rhoInv·Dec·phi) in place and
	// returns phi.
	Advance(phi dynamo.State, dX, rhoInv float64) dynamo.State
}

// Auto selects the best kernel for the operator representation.
const Auto = "auto"

type constructor func(ops *operator.Set) (LinearStepKernel, error)

var registry = map[string]constructor{
	"gonum":    func(ops *operator.Set) (LinearStepKernel, error) { return NewGonum(ops), nil },
	"parallel": func(ops *operator.Set) (LinearStepKernel, error) { return NewParallel(ops) },
	"blas":     func(ops *operator.Set) (LinearStepKernel, error) { return NewBLAS(ops) },
	"cuda":     func(ops *operator.Set) (LinearStepKernel, error) { return NewCUDA(ops) },
}

// New returns the named kernel bound to ops. Pairing a kernel with an
// operator representation it cannot handle is a configuration error.
func New(name string, ops *operator.Set) (LinearStepKernel, error) {
	if ops == nil {
		return nil, dynamo.Configf("kernel %s: no operators", name)
	}
	if name == "" || name == Auto {
		return AutoSelect(ops), nil
	}
	c, ok := registry[name]
	if !ok {
		return nil, dynamo.Configf("unknown kernel: %s", name)
	}
	return c(ops)
}

// AutoSelect prefers CUDA, then the parallel sparse kernel, then BLAS.
func AutoSelect(ops *operator.Set) LinearStepKernel {
	if k, err := NewCUDA(ops); err == nil {
		return k
	}
	if k, err := NewParallel(ops); err == nil {
		return k
	}
	if k, err := NewBLAS(ops); err == nil {
		return k
	}
	return NewGonum(ops)
}

// Names lists the registered kernels.
func Names() []string {
	out := make([]string, 0, len(registry)+1)
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return append(out, Auto)
}
