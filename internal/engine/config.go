// Package engine wires tables, particle index, operators, atmosphere and
// primary flux into solvable runs.
package engine

import (
	"slices"

	"github.com/san-kum/cascade/internal/atmosphere"
	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/integrators"
	"github.com/san-kum/cascade/internal/kernel"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/planner"
	"github.com/san-kum/cascade/internal/solver"
)

// IntegratorEuler steps along the planned path; the others run the
// continuous-depth ODE mode.
const IntegratorEuler = "euler"

type AtmosphereConfig struct {
	Kind     string
	Location string
	Season   string
}

// RunConfig is the immutable input of Build.
type RunConfig struct {
	// Tables is a YAML table file; empty selects the embedded toy tables.
	Tables           string
	InteractionModel string
	PrimaryModel     string
	PrimaryTag       string
	Atmosphere       AtmosphereConfig
	ZenithDeg        float64

	// Observers are mother species (names or ids) whose lepton daughters are
	// also scored in obs_ buckets.
	Observers []string
	// AliasLeptons overrides the lepton ids with pi_/k_/pr_ buckets when
	// non-nil.
	AliasLeptons    []int
	PromptReference int
	NoMixing        bool

	Sparse     bool
	Kernel     string
	Integrator string
	GridVar    string
	StepScale  float64
	MaxStep    float64

	Tolerance    dynamo.Tolerance
	InitialDepth float64
	DXStep       float64
	// MinStep fails an rk45 solve once its step shrinks below it.
	MinStep float64
}

func DefaultRunConfig() RunConfig {
	ode := solver.DefaultODEParams()
	return RunConfig{
		PrimaryModel: "HillasGaisser2012",
		PrimaryTag:   "H3a",
		Atmosphere: AtmosphereConfig{
			Kind:     atmosphere.KindCorsika,
			Location: "USStd",
		},
		PromptReference: particles.DefaultPromptReference,
		Sparse:          true,
		Kernel:          kernel.Auto,
		Integrator:      IntegratorEuler,
		GridVar:         planner.GridDepth,
		StepScale:       1,
		Tolerance:       ode.Tolerance,
		InitialDepth:    ode.InitialDepth,
		DXStep:          ode.DXStep,
	}
}

// Validate checks names and ranges that do not need the tables.
func (c RunConfig) Validate() error {
	if _, err := integrators.New(c.integrator()); err != nil {
		return err
	}
	if c.Kernel != "" && !slices.Contains(kernel.Names(), c.Kernel) {
		return dynamo.Configf("unknown kernel: %s", c.Kernel)
	}
	if c.ZenithDeg < 0 || c.ZenithDeg > 90 {
		return dynamo.Configf("zenith angle %g outside [0, 90]", c.ZenithDeg)
	}
	if c.StepScale < 0 || c.MaxStep < 0 || c.MinStep < 0 {
		return dynamo.Configf("negative step bound")
	}
	if !c.euler() && (c.DXStep <= 0 || c.InitialDepth < 0) {
		return dynamo.Configf("ode chunk %g from depth %g", c.DXStep, c.InitialDepth)
	}
	return nil
}

func (c RunConfig) integrator() string {
	if c.Integrator == "" {
		return IntegratorEuler
	}
	return c.Integrator
}

func (c RunConfig) euler() bool { return c.integrator() == IntegratorEuler }

func (c RunConfig) odeParams() solver.ODEParams {
	return solver.ODEParams{
		Method:       c.integrator(),
		Tolerance:    c.Tolerance,
		InitialDepth: c.InitialDepth,
		DXStep:       c.DXStep,
		MinStep:      c.MinStep,
	}
}

func (c RunConfig) plannerOptions() []planner.Option {
	var opts []planner.Option
	if c.StepScale > 0 {
		opts = append(opts, planner.WithStepScale(c.StepScale))
	}
	if c.MaxStep > 0 {
		opts = append(opts, planner.WithMaxStep(c.MaxStep))
	}
	return opts
}
