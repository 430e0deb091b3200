// Package solver integrates the cascade equation along atmospheric depth.
package solver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/integrators"
	"github.com/san-kum/cascade/internal/kernel"
	"github.com/san-kum/cascade/internal/planner"
)

// Solution is the flux at the surface and at the requested depths.
type Solution struct {
	Final     dynamo.State
	Snapshots []dynamo.State
	Depths    []float64
	Steps     int
	Surface   float64
	Elapsed   time.Duration
}

// Solver advances states with one kernel. It holds the kernel's scratch
// space, so a Solver runs one solve at a time.
type Solver struct {
	kernel    kernel.LinearStepKernel
	observers []dynamo.Observer
	logger    *slog.Logger
}

func New(k kernel.LinearStepKernel, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Solver{kernel: k, logger: logger}
}

func (s *Solver) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Solver) notify(step, total int, X float64) {
	for _, o := range s.observers {
		o.OnStep(step, total, X)
	}
}

// Euler applies phi += dX·(Int·phi + rhoInv·Dec·phi) along path, keeping
// a copy of phi after every snapshot step.
func (s *Solver) Euler(ctx context.Context, path *planner.Path, phi0 dynamo.State) (*Solution, error) {
	if path == nil {
		return nil, fmt.Errorf("%w: no integration path", dynamo.ErrPrecondition)
	}
	start := time.Now()
	phi := phi0.Clone()
	total := path.Steps()

	sol := &Solution{
		Snapshots: make([]dynamo.State, 0, len(path.Snapshots)),
		Depths:    append([]float64(nil), path.Depths...),
	}

	X := 0.0
	next := 0
	for i, dX := range path.DX {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		phi = s.kernel.Advance(phi, dX, path.RhoInv[i])
		X += dX

		if !phi.IsValid() {
			return nil, SimulationErr(i, X, dynamo.ErrInvalidState)
		}
		if next < len(path.Snapshots) && path.Snapshots[next] == i {
			sol.Snapshots = append(sol.Snapshots, phi.Clone())
			next++
		}
		s.notify(i+1, total, X)
	}

	sol.Final = phi
	sol.Steps = total
	sol.Surface = X
	sol.Elapsed = time.Since(start)
	s.logger.Info("euler solve finished",
		"kernel", s.kernel.Name(),
		"steps", total,
		"snapshots", len(sol.Snapshots),
		"elapsed", sol.Elapsed)
	return sol, nil
}

// SimulationErr builds the numerical failure error for a step.
func SimulationErr(step int, X float64, cause error) error {
	if cause == nil {
		cause = dynamo.ErrInvalidState
	}
	return &dynamo.SimulationError{Step: step, Depth: X, Wrapped: fmt.Errorf("%w: %w", dynamo.ErrNumerical, cause)}
}

// ODEParams configures the continuous-depth mode.
type ODEParams struct {
	// Method is "rk45" (adaptive) or "rk4" (fixed steps of DXStep).
	Method       string
	Tolerance    dynamo.Tolerance
	InitialDepth float64
	// DXStep is the depth chunk driven per outer iteration.
	DXStep   float64
	MaxSteps int
	// MinStep is the rk45 step below which the solve fails; 0 keeps the
	// integrator default.
	MinStep float64
}

func DefaultODEParams() ODEParams {
	return ODEParams{
		Method:       "rk45",
		Tolerance:    integrators.DefaultTolerance,
		InitialDepth: 0.1,
		DXStep:       1,
		MaxSteps:     1_000_000,
	}
}

// system exposes the kernel as a depth-dependent right-hand side.
type system struct {
	k       kernel.LinearStepKernel
	density planner.Density
	dim     int
}

func (c *system) StateDim() int { return c.dim }

func (c *system) DeriveTo(dst, phi dynamo.State, X float64) {
	c.k.Derive(dst, phi, c.density.InverseDensity(X))
}

// ODE integrates from params.InitialDepth to the surface in DXStep chunks.
func (s *Solver) ODE(ctx context.Context, density planner.Density, phi0 dynamo.State, params ODEParams) (*Solution, error) {
	if density == nil {
		return nil, fmt.Errorf("%w: no atmosphere", dynamo.ErrPrecondition)
	}
	if params.DXStep <= 0 || params.InitialDepth < 0 || params.MinStep < 0 {
		return nil, dynamo.Configf("ode chunk %g from depth %g", params.DXStep, params.InitialDepth)
	}
	if params.MaxSteps <= 0 {
		params.MaxSteps = DefaultODEParams().MaxSteps
	}
	if params.Tolerance == (dynamo.Tolerance{}) {
		params.Tolerance = integrators.DefaultTolerance
	}

	sys := &system{k: s.kernel, density: density, dim: len(phi0)}
	var adaptive dynamo.AdaptiveIntegrator
	var fixed dynamo.Integrator
	switch params.Method {
	case "", "rk45":
		rk := integrators.NewRK45()
		if params.MinStep > 0 {
			rk.WithMinStep(params.MinStep)
		}
		adaptive = rk
	case "rk4":
		fixed = integrators.NewRK4()
	default:
		return nil, dynamo.Configf("unknown ode method: %s", params.Method)
	}

	start := time.Now()
	surface := density.SurfaceDepth()
	eps := 1e-12 * math.Max(1, surface)

	phi := phi0.Clone()
	X := params.InitialDepth
	dX := params.DXStep
	steps := 0

	for surface-X > eps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := math.Min(X+params.DXStep, surface)

		for target-X > eps {
			if steps >= params.MaxSteps {
				return nil, SimulationErr(steps, X, fmt.Errorf("exceeded %d steps", params.MaxSteps))
			}
			h := math.Min(dX, target-X)

			if fixed != nil {
				phi = fixed.Step(sys, phi, X, h)
				X += h
			} else {
				next, taken, suggested, err := adaptive.StepAdaptive(sys, phi, X, h, params.Tolerance)
				if err != nil {
					return nil, SimulationErr(steps, X, err)
				}
				phi = next
				X += taken
				dX = suggested
			}
			if target-X <= eps {
				X = target
			}
			steps++

			if !phi.IsValid() {
				return nil, SimulationErr(steps, X, dynamo.ErrInvalidState)
			}
		}
		s.notify(steps, 0, X)
	}

	sol := &Solution{
		Final:   phi,
		Steps:   steps,
		Surface: X,
		Elapsed: time.Since(start),
	}
	s.logger.Info("ode solve finished",
		"method", params.Method,
		"kernel", s.kernel.Name(),
		"steps", steps,
		"elapsed", sol.Elapsed)
	return sol, nil
}

// IsNumerical reports whether err is an integration failure.
func IsNumerical(err error) bool {
	return errors.Is(err, dynamo.ErrNumerical)
}
