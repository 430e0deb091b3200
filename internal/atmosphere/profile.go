// Package atmosphere provides density profiles and the slant-depth geometry
// used to convert column depth into inverse density along a line of sight.
package atmosphere

import (
	"math"
	"sort"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Profile is a vertical density profile. Heights are in cm above sea level,
// densities in g/cm³.
type Profile interface {
	Name() string
	Density(h float64) float64
	// Thickness is the vertical column depth above h in g/cm².
	Thickness(h float64) float64
	Top() float64
}

// Corsika is the five-layer CORSIKA parametrization
//
//	T(h) = a_i + b_i·exp(-h/c_i)   layers 1-4
//	T(h) = a_5 - b_5·h/c_5         layer 5
type Corsika struct {
	name string
	a, b, c [5]float64
	edges   [5]float64
}

type corsikaParams struct {
	a, b, c [5]float64
	edges   [5]float64
}

var corsikaTables = map[string]corsikaParams{
	"USStd": {
		a:     [5]float64{-186.555305, -94.919, 0.61289, 0.0, 0.01128292},
		b:     [5]float64{1222.6562, 1144.9069, 1305.5948, 540.1778, 1.0},
		c:     [5]float64{994186.38, 878153.55, 636143.04, 772170.16, 1.0e9},
		edges: [5]float64{0, 4.0e5, 1.0e6, 4.0e6, 1.0e7},
	},
}

// NewCorsika returns the CORSIKA profile for a location. Seasonal
// variants are not tabulated, so season must be empty.
func NewCorsika(location, season string) (*Corsika, error) {
	p, ok := corsikaTables[location]
	if !ok {
		return nil, dynamo.Configf("unknown CORSIKA location: %s", location)
	}
	if season != "" {
		return nil, dynamo.Configf("CORSIKA location %s has no season %q", location, season)
	}
	return &Corsika{name: "CORSIKA/" + location, a: p.a, b: p.b, c: p.c, edges: p.edges}, nil
}

// CorsikaLocations lists the tabulated locations.
func CorsikaLocations() []string {
	out := make([]string, 0, len(corsikaTables))
	for k := range corsikaTables {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (c *Corsika) Name() string { return c.name }

func (c *Corsika) layer(h float64) int {
	for i := 4; i > 0; i-- {
		if h >= c.edges[i] {
			return i
		}
	}
	return 0
}

func (c *Corsika) Density(h float64) float64 {
	if h >= c.Top() {
		return 0
	}
	i := c.layer(h)
	if i == 4 {
		return c.b[4] / c.c[4]
	}
	return c.b[i] / c.c[i] * math.Exp(-h/c.c[i])
}

func (c *Corsika) Thickness(h float64) float64 {
	if h >= c.Top() {
		return 0
	}
	i := c.layer(h)
	if i == 4 {
		return c.a[4] - c.b[4]*h/c.c[4]
	}
	return c.a[i] + c.b[i]*math.Exp(-h/c.c[i])
}

// Top is where the linear outer layer reaches zero thickness.
func (c *Corsika) Top() float64 {
	return c.a[4] * c.c[4] / c.b[4]
}

// Isothermal is an exponential atmosphere X(h) = X0·exp(-h/H).
type Isothermal struct {
	X0     float64
	Height float64
	top    float64
}

func NewIsothermal() *Isothermal {
	return &Isothermal{X0: 1036, Height: 6.4e5, top: 112.8e5}
}

func (p *Isothermal) Name() string { return "isothermal" }

func (p *Isothermal) Density(h float64) float64 {
	if h >= p.top {
		return 0
	}
	return p.X0 / p.Height * math.Exp(-h/p.Height)
}

func (p *Isothermal) Thickness(h float64) float64 {
	if h >= p.top {
		return 0
	}
	return p.X0 * (math.Exp(-h/p.Height) - math.Exp(-p.top/p.Height))
}

func (p *Isothermal) Top() float64 { return p.top }
