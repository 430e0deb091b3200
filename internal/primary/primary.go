// Package primary provides cosmic-ray primary flux models and the initial
// state vectors built from them.
package primary

import (
	"math"
	"sort"
	"strconv"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Model yields the nucleon flux at the top of the atmosphere in
// (m² s sr GeV)⁻¹ per energy per nucleon.
type Model interface {
	Name() string
	Tag() string
	NucleonFlux(E float64) (p, n float64)
}

// Constructor builds a model for a tag; an empty tag selects the default.
type Constructor func(tag string) (Model, error)

var models = map[string]Constructor{
	"HillasGaisser2012": func(tag string) (Model, error) { return NewHillasGaisser(tag) },
	"PowerLaw":          func(tag string) (Model, error) { return NewPowerLaw(tag) },
}

// New returns the named primary model.
func New(name, tag string) (Model, error) {
	c, ok := models[name]
	if !ok {
		return nil, dynamo.Configf("unknown primary model: %s", name)
	}
	return c(tag)
}

// Names lists the registered models.
func Names() []string {
	out := make([]string, 0, len(models))
	for k := range models {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Nucleus decodes a CORSIKA id (A·100 + Z, 14 for protons).
func Nucleus(corsikaID int) (A, Z int, err error) {
	if corsikaID == 14 {
		return 1, 1, nil
	}
	Z = corsikaID % 100
	A = corsikaID / 100
	if Z <= 0 || A < Z {
		return 0, 0, dynamo.Configf("invalid CORSIKA id %d", corsikaID)
	}
	return A, Z, nil
}

type population struct {
	rigidity float64
	// norm and gamma per nucleus, in the order of hgNuclei.
	norm  [5]float64
	gamma [5]float64
}

var hgNuclei = [5]int{14, 402, 1407, 2713, 5426}

var hgPopulations = map[string][3]population{
	"H3a": {
		{4e6, [5]float64{7860, 3550, 2200, 1430, 2120}, [5]float64{1.66, 1.58, 1.63, 1.67, 1.63}},
		{3e7, [5]float64{20, 20, 13.4, 13.4, 13.4}, [5]float64{1.4, 1.4, 1.4, 1.4, 1.4}},
		{2e9, [5]float64{1.7, 1.7, 1.14, 1.14, 1.14}, [5]float64{1.4, 1.4, 1.4, 1.4, 1.4}},
	},
	"H4a": {
		{4e6, [5]float64{7860, 3550, 2200, 1430, 2120}, [5]float64{1.66, 1.58, 1.63, 1.67, 1.63}},
		{3e7, [5]float64{20, 20, 13.4, 13.4, 13.4}, [5]float64{1.4, 1.4, 1.4, 1.4, 1.4}},
		{6e10, [5]float64{200, 0, 0, 0, 0}, [5]float64{1.6, 1.6, 1.6, 1.6, 1.6}},
	},
}

// HillasGaisser is the three-population, five-group HillasGaisser2012 model.
type HillasGaisser struct {
	tag  string
	pops [3]population
}

func NewHillasGaisser(tag string) (*HillasGaisser, error) {
	if tag == "" {
		tag = "H3a"
	}
	pops, ok := hgPopulations[tag]
	if !ok {
		return nil, dynamo.Configf("unknown HillasGaisser2012 tag: %s", tag)
	}
	return &HillasGaisser{tag: tag, pops: pops}, nil
}

func (m *HillasGaisser) Name() string { return "HillasGaisser2012" }
func (m *HillasGaisser) Tag() string  { return m.tag }

// NucleusFlux is the all-particle flux of nucleus k at total energy E.
func (m *HillasGaisser) NucleusFlux(k int, E float64) float64 {
	_, Z, _ := Nucleus(hgNuclei[k])
	var flux float64
	for _, pop := range m.pops {
		if pop.norm[k] == 0 {
			continue
		}
		flux += pop.norm[k] * math.Pow(E, -pop.gamma[k]-1) * math.Exp(-E/(float64(Z)*pop.rigidity))
	}
	return flux
}

// NucleonFlux superposes every nucleus into Z protons and A-Z neutrons at
// E per nucleon.
func (m *HillasGaisser) NucleonFlux(E float64) (p, n float64) {
	for k, id := range hgNuclei {
		A, Z, _ := Nucleus(id)
		f := float64(A) * m.NucleusFlux(k, float64(A)*E)
		p += float64(Z) * f
		n += float64(A-Z) * f
	}
	return p, n
}

// PowerLaw is a pure proton flux 1.8e4·E^-γ.
type PowerLaw struct {
	Gamma float64
}

func NewPowerLaw(tag string) (*PowerLaw, error) {
	if tag == "" {
		return &PowerLaw{Gamma: 2.7}, nil
	}
	g, err := strconv.ParseFloat(tag, 64)
	if err != nil || g <= 1 {
		return nil, dynamo.Configf("power-law index %q", tag)
	}
	return &PowerLaw{Gamma: g}, nil
}

func (m *PowerLaw) Name() string { return "PowerLaw" }
func (m *PowerLaw) Tag() string  { return strconv.FormatFloat(m.Gamma, 'g', -1, 64) }

func (m *PowerLaw) NucleonFlux(E float64) (p, n float64) {
	return 1.8e4 * math.Pow(E, -m.Gamma), 0
}
