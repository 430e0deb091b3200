package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/cascade/internal/dynamo"
)

func TestRK45_Step(t *testing.T) {
	integrator := NewRK45()
	sys := &feed{}
	phi := dynamo.State{1.0, 0.0}

	dX := 1.0
	for i := 0; i < 300; i++ {
		phi = integrator.Step(sys, phi, float64(i)*dX, dX)
	}

	if !phi.IsValid() {
		t.Fatal("RK45 produced invalid state")
	}
	if math.Abs(phi[0]+phi[1]-1) > 1e-12 {
		t.Errorf("mother+daughter not conserved: %g", phi[0]+phi[1])
	}
	// ∫rate dX = 0.01·(X + X²/200)
	want := math.Exp(-0.01 * (300 + 300.0*300/200))
	if math.Abs(phi[0]-want) > 1e-9 {
		t.Errorf("mother %g, want %g", phi[0], want)
	}
}

func TestRK45_AdaptiveStep(t *testing.T) {
	integrator := NewRK45()
	sys := &attenuation{lambda: 50}
	phi := dynamo.State{1.0}

	tol := dynamo.Tolerance{Rel: 1e-8, Abs: 1e-14}
	x, taken, next, err := integrator.StepAdaptive(sys, phi, 0, 100, tol)
	if err != nil {
		t.Fatalf("StepAdaptive returned error: %v", err)
	}
	if taken >= 100 {
		t.Errorf("a step of 2λ should have been rejected, took %g", taken)
	}
	if next <= 0 {
		t.Errorf("invalid next step %g", next)
	}
	if math.Abs(x[0]-math.Exp(-taken/50)) > 1e-7 {
		t.Errorf("adaptive result %g, want %g", x[0], math.Exp(-taken/50))
	}
}

func TestRK45_AdaptiveIntegration(t *testing.T) {
	integrator := NewRK45()
	sys := &attenuation{lambda: 50}
	phi := dynamo.State{1.0}

	X, dX := 0.0, 1.0
	for 500-X > 1e-9 {
		dX = math.Min(dX, 500-X)
		var taken float64
		var err error
		phi, taken, dX, err = integrator.StepAdaptive(sys, phi, X, dX, DefaultTolerance)
		if err != nil {
			t.Fatal(err)
		}
		X += taken
	}
	if rel := math.Abs(phi[0]-math.Exp(-10)) / math.Exp(-10); rel > 1e-3 {
		t.Errorf("relative error %g", rel)
	}
}

func TestRK45_StepCollapse(t *testing.T) {
	integrator := NewRK45().WithMinStep(1)
	sys := &attenuation{lambda: 1e-3}

	_, _, _, err := integrator.StepAdaptive(sys, dynamo.State{1}, 0, 10, DefaultTolerance)
	if !errors.Is(err, dynamo.ErrStepTooSmall) {
		t.Errorf("expected ErrStepTooSmall, got %v", err)
	}
}
