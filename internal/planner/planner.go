// Package planner computes the depth-step sequence of an explicit solve.
package planner

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/san-kum/cascade/internal/dynamo"
)

// GridDepth is the only supported snapshot grid variable, slant depth X.
const GridDepth = "X"

// DefaultMaxSteps bounds the path length.
const DefaultMaxSteps = 10_000_000

// Density is the atmosphere seen by the planner.
type Density interface {
	InverseDensity(X float64) float64
	SurfaceDepth() float64
}

// Path is an immutable integration path.
type Path struct {
	DX     []float64
	RhoInv []float64
	// Snapshots holds the step indices after which the state sits exactly
	// at the requested depth of the same position in Depths.
	Snapshots []int
	Depths    []float64
	GridVar   string
}

func (p *Path) Steps() int { return len(p.DX) }

// Depth returns the total depth covered.
func (p *Path) Depth() float64 {
	var X float64
	for _, dx := range p.DX {
		X += dx
	}
	return X
}

// Option configures a Planner.
type Option func(*Planner)

// WithStepScale multiplies every unclipped step.
func WithStepScale(f float64) Option {
	return func(p *Planner) { p.scale = f }
}

// WithMaxStep caps the step size in g/cm².
func WithMaxStep(dX float64) Option {
	return func(p *Planner) { p.maxStep = dX }
}

func WithMaxSteps(n int) Option {
	return func(p *Planner) { p.maxSteps = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// Planner sizes steps by the fastest decay, dX = scale/(maxLdec·ρ⁻¹(X)),
// and memoizes the last path.
type Planner struct {
	density  Density
	maxLdec  float64
	scale    float64
	maxStep  float64
	maxSteps int
	logger   *slog.Logger

	mu     sync.Mutex
	cached *Path
}

func New(density Density, maxLdec float64, opts ...Option) (*Planner, error) {
	p := &Planner{
		density:  density,
		maxLdec:  maxLdec,
		scale:    1,
		maxSteps: DefaultMaxSteps,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}

	if density == nil {
		return nil, fmt.Errorf("%w: no atmosphere", dynamo.ErrPrecondition)
	}
	if p.scale <= 0 {
		return nil, dynamo.Configf("step scale %g must be positive", p.scale)
	}
	if maxLdec <= 0 && p.maxStep <= 0 {
		return nil, dynamo.Configf("no decaying species and no maximum step bound the path")
	}
	return p, nil
}

// Plan returns the path for the requested snapshot depths. An identical
// request returns the cached path itself.
func (p *Planner) Plan(depths []float64, gridVar string) (*Path, error) {
	if gridVar == "" {
		gridVar = GridDepth
	}
	if gridVar != GridDepth {
		return nil, dynamo.Configf("grid variable %q not implemented", gridVar)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && p.cached.GridVar == gridVar && slices.Equal(p.cached.Depths, depths) {
		return p.cached, nil
	}

	surface := p.density.SurfaceDepth()
	if err := validateDepths(depths, surface); err != nil {
		return nil, err
	}

	path := &Path{
		Depths:  slices.Clone(depths),
		GridVar: gridVar,
	}

	X := 0.0
	next := 0
	for X < surface {
		if len(path.DX) >= p.maxSteps {
			return nil, fmt.Errorf("%w: path exceeds %d steps at X=%g", dynamo.ErrNumerical, p.maxSteps, X)
		}

		ri := p.density.InverseDensity(X)
		dX := p.step(ri)
		target := X + dX

		if next < len(depths) && target >= depths[next] {
			target = depths[next]
			path.Snapshots = append(path.Snapshots, len(path.DX))
			next++
		}
		if target > surface {
			target = surface
		}

		path.DX = append(path.DX, target-X)
		path.RhoInv = append(path.RhoInv, ri)
		X = target
	}

	p.logger.Debug("integration path",
		"steps", path.Steps(),
		"surface", surface,
		"snapshots", len(path.Snapshots))

	p.cached = path
	return path, nil
}

func (p *Planner) step(rhoInv float64) float64 {
	dX := p.maxStep
	if p.maxLdec > 0 {
		dX = p.scale / (p.maxLdec * rhoInv)
		if p.maxStep > 0 && dX > p.maxStep {
			dX = p.maxStep
		}
	}
	return dX
}

func validateDepths(depths []float64, surface float64) error {
	prev := 0.0
	for i, d := range depths {
		if d <= prev || d > surface {
			return dynamo.Configf("snapshot depth %d (%g) must increase within (0, %g]", i, d, surface)
		}
		prev = d
	}
	return nil
}
