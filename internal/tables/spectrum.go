package tables

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Spectrum kinds describing dN/dz of a daughter carrying energy fraction z.
const (
	SpectrumDelta   = "delta"
	SpectrumUniform = "uniform"
	SpectrumPower   = "power"
)

// quadPoints is the Gauss-Legendre order used per bin overlap.
const quadPoints = 16

// Spectrum is the energy-fraction distribution of a channel.
//
//	delta:   all daughters at z = Z (default 1)
//	uniform: flat in [ZMin, ZMax]
//	power:   (1-z)^Alpha / z in [ZMin, ZMax]
type Spectrum struct {
	Kind  string  `yaml:"kind" json:"kind"`
	Z     float64 `yaml:"z,omitempty" json:"z,omitempty"`
	ZMin  float64 `yaml:"zmin,omitempty" json:"zmin,omitempty"`
	ZMax  float64 `yaml:"zmax,omitempty" json:"zmax,omitempty"`
	Alpha float64 `yaml:"alpha,omitempty" json:"alpha,omitempty"`
}

func (s Spectrum) normalized() (Spectrum, error) {
	if s.Kind == "" {
		s.Kind = SpectrumDelta
	}
	switch s.Kind {
	case SpectrumDelta:
		if s.Z == 0 {
			s.Z = 1
		}
		if s.Z < 0 || s.Z > 1 {
			return s, dynamo.Configf("delta spectrum at z=%g", s.Z)
		}
	case SpectrumUniform, SpectrumPower:
		if s.ZMax == 0 {
			s.ZMax = 1
		}
		if s.Kind == SpectrumPower && s.ZMin <= 0 {
			s.ZMin = 1e-3
		}
		if s.ZMin < 0 || s.ZMax > 1 || s.ZMin >= s.ZMax {
			return s, dynamo.Configf("%s spectrum on [%g, %g]", s.Kind, s.ZMin, s.ZMax)
		}
		if s.Alpha < 0 {
			return s, dynamo.Configf("power spectrum with alpha=%g", s.Alpha)
		}
	default:
		return s, dynamo.Configf("unknown spectrum kind %q", s.Kind)
	}
	return s, nil
}

func (s Spectrum) density(z float64) float64 {
	switch s.Kind {
	case SpectrumPower:
		return math.Pow(1-z, s.Alpha) / z
	default:
		return 1
	}
}

func (s Spectrum) mass(lo, hi float64) float64 {
	lo = math.Max(lo, s.ZMin)
	hi = math.Min(hi, s.ZMax)
	if hi <= lo {
		return 0
	}
	if s.Kind == SpectrumUniform {
		return hi - lo
	}
	return quad.Fixed(s.density, lo, hi, quadPoints, nil, 0)
}

// Block compiles the spectrum into a grid transfer matrix scaled by
// fraction (branching ratio or multiplicity). Element (i, j) maps flux per
// GeV in mother bin j to flux per GeV in daughter bin i, so that
// Σ_i M_ij·W_i = fraction·W_j for daughters landing on the grid.
func (s Spectrum) Block(g Grid, fraction float64) (*mat.Dense, error) {
	s, err := s.normalized()
	if err != nil {
		return nil, err
	}

	n := g.Len()
	out := mat.NewDense(n, n, nil)

	if s.Kind == SpectrumDelta {
		for j := 0; j < n; j++ {
			i := g.Bin(s.Z * g.Centers[j])
			if i < 0 {
				continue
			}
			out.Set(i, j, fraction*g.Widths[j]/g.Widths[i])
		}
		return out, nil
	}

	total := s.mass(s.ZMin, s.ZMax)
	if total <= 0 {
		return nil, dynamo.Configf("%s spectrum has no mass", s.Kind)
	}

	for j := 0; j < n; j++ {
		Ej := g.Centers[j]
		for i := 0; i <= j && i < n; i++ {
			w := s.mass(g.Edges[i]/Ej, g.Edges[i+1]/Ej) / total
			if w == 0 {
				continue
			}
			out.Set(i, j, fraction*w*g.Widths[j]/g.Widths[i])
		}
	}
	return out, nil
}
