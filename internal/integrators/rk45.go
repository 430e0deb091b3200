package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// DefaultTolerance matches the usual stiff-free cascade settings.
var DefaultTolerance = dynamo.Tolerance{Rel: 1e-4, Abs: 1e-12}

type RK45 struct {
	safety   float64
	minScale float64
	maxScale float64
	minStep  float64
	// maxRejects bounds retries of one step.
	maxRejects int

	k [7]dynamo.State
	x dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		safety:     0.9,
		minScale:   0.2,
		maxScale:   10.0,
		minStep:    1e-12,
		maxRejects: 60,
	}
}

// WithMinStep sets the step below which StepAdaptive gives up.
func (r *RK45) WithMinStep(dX float64) *RK45 {
	r.minStep = dX
	return r
}

func (r *RK45) ensureScratch(n int) {
	if len(r.x) != n {
		for i := range r.k {
			r.k[i] = make(dynamo.State, n)
		}
		r.x = make(dynamo.State, n)
	}
}

// Step takes one unchecked Dormand-Prince step.
func (r *RK45) Step(sys dynamo.System, phi dynamo.State, X, dX float64) dynamo.State {
	xNew, _ := r.attempt(sys, phi, X, dX, DefaultTolerance)
	return xNew
}

// StepAdaptive retries with smaller steps until the error estimate is
// within tol, and returns the state, the step taken and the next step.
func (r *RK45) StepAdaptive(sys dynamo.System, phi dynamo.State, X, dX float64, tol dynamo.Tolerance) (dynamo.State, float64, float64, error) {
	for attempt := 0; attempt <= r.maxRejects; attempt++ {
		if dX < r.minStep {
			return nil, 0, 0, fmt.Errorf("%w: dX=%g at X=%g", dynamo.ErrStepTooSmall, dX, X)
		}

		xNew, errRatio := r.attempt(sys, phi, X, dX, tol)
		if math.IsNaN(errRatio) || !xNew.IsValid() {
			return nil, 0, 0, dynamo.ErrInvalidState
		}

		if errRatio <= 1 {
			next := dX * r.maxScale
			if errRatio > 0 {
				next = dX * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
			}
			return xNew, dX, next, nil
		}

		dX *= math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
	}
	return nil, 0, 0, fmt.Errorf("%w: %d rejected steps at X=%g", dynamo.ErrStepTooSmall, r.maxRejects, X)
}

// attempt returns the fifth-order solution and the max-norm error ratio.
func (r *RK45) attempt(sys dynamo.System, phi dynamo.State, X, dX float64, tol dynamo.Tolerance) (dynamo.State, float64) {
	n := len(phi)
	r.ensureScratch(n)
	k1, k2, k3, k4, k5, k6, k7 := r.k[0], r.k[1], r.k[2], r.k[3], r.k[4], r.k[5], r.k[6]
	x := r.x

	sys.DeriveTo(k1, phi, X)

	for i := 0; i < n; i++ {
		x[i] = phi[i] + dX*b21*k1[i]
	}
	sys.DeriveTo(k2, x, X+a2*dX)

	for i := 0; i < n; i++ {
		x[i] = phi[i] + dX*(b31*k1[i]+b32*k2[i])
	}
	sys.DeriveTo(k3, x, X+a3*dX)

	for i := 0; i < n; i++ {
		x[i] = phi[i] + dX*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	sys.DeriveTo(k4, x, X+a4*dX)

	for i := 0; i < n; i++ {
		x[i] = phi[i] + dX*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	sys.DeriveTo(k5, x, X+a5*dX)

	for i := 0; i < n; i++ {
		x[i] = phi[i] + dX*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	sys.DeriveTo(k6, x, X+dX)

	xNew := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = phi[i] + dX*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}

	sys.DeriveTo(k7, xNew, X+dX)

	errMax := 0.0
	for i := 0; i < n; i++ {
		errEst := dX * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		scale := tol.Abs + tol.Rel*math.Max(math.Abs(phi[i]), math.Abs(xNew[i]))
		if scale <= 0 {
			scale = math.SmallestNonzeroFloat64
		}
		errMax = math.Max(errMax, math.Abs(errEst)/scale)
	}

	return xNew, errMax
}
