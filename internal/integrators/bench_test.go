package integrators

import (
	"testing"

	"github.com/san-kum/cascade/internal/dynamo"
)

type benchChain struct{ n int }

func (b *benchChain) StateDim() int { return b.n }
func (b *benchChain) DeriveTo(d, phi dynamo.State, X float64) {
	for i := 0; i < b.n; i++ {
		d[i] = -0.01 * phi[i]
		if i > 0 {
			d[i] += 0.01 * phi[i-1]
		}
	}
}

func benchState(n int) dynamo.State {
	x := make(dynamo.State, n)
	for i := range x {
		x[i] = 1
	}
	return x
}

func BenchmarkEuler(b *testing.B) {
	integrator := NewEuler()
	sys := &benchChain{n: 1000}
	x := benchState(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(sys, x, 0, 0.1)
	}
}

func BenchmarkRK4(b *testing.B) {
	integrator := NewRK4()
	sys := &benchChain{n: 1000}
	x := benchState(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(sys, x, 0, 0.1)
	}
}

func BenchmarkRK45(b *testing.B) {
	integrator := NewRK45()
	sys := &benchChain{n: 1000}
	x := benchState(1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x = integrator.Step(sys, x, 0, 0.1)
	}
}
