package particles

import "sort"

// h0 is the reference atmospheric scale height in cm used for the critical energy.
const h0 = 6.4e5

// Entry is one row of the immutable particle catalog.
type Entry struct {
	ID   int     `yaml:"pdg" json:"pdg"`
	Name string  `yaml:"name" json:"name"`
	Mass float64 `yaml:"mass" json:"mass"`
	CTau float64 `yaml:"ctau" json:"ctau"`

	Lepton         bool `yaml:"lepton" json:"lepton"`
	ForceResonance bool `yaml:"resonance" json:"resonance"`
}

// CriticalEnergy is m·h0/cτ; stable entries have zero critical energy.
func (e Entry) CriticalEnergy() float64 {
	if e.CTau <= 0 {
		return 0
	}
	return e.Mass * h0 / e.CTau
}

// Unstable reports whether the entry decays in flight.
func (e Entry) Unstable() bool {
	return e.CTau > 0 && !e.Lepton
}

// CrossSections supplies inverse interaction lengths per species.
type CrossSections interface {
	// InverseInteractionLength returns 1/λ_int per energy bin in cm²/g, or nil
	// when the species does not interact.
	InverseInteractionLength(id int) []float64
}

// sortByCriticalEnergy orders entries by ascending critical energy, keeping
// the catalog order for ties.
func sortByCriticalEnergy(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CriticalEnergy() < entries[j].CriticalEnergy()
	})
}
