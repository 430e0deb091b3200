package primary

import (
	"math"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/particles"
)

const (
	protonID  = 2212
	neutronID = 2112
	// fluxScale converts m⁻² to cm⁻².
	fluxScale = 1e-4
)

// InitialState fills the proton and neutron blocks with the model's
// nucleon flux in cm⁻². A catalog without neutrons only gets protons.
func InitialState(idx *particles.Index, m Model) (dynamo.State, error) {
	p, err := idx.ByID(protonID)
	if err != nil {
		return nil, err
	}
	n, _ := idx.ByID(neutronID)

	phi := make(dynamo.State, idx.Dim())
	for i, E := range idx.Energies() {
		pf, nf := m.NucleonFlux(E)
		phi[p.Lower()+i] = fluxScale * pf
		if n != nil && n.Tracked() {
			phi[n.Lower()+i] = fluxScale * nf
		}
	}
	return phi, nil
}

// SinglePrimary is the initial state of one nucleus of total energy E,
// superposed into nucleons at E/A and spread over the two grid bins
// neighbouring the nucleon energy. widths are the energy bin widths.
func SinglePrimary(idx *particles.Index, widths []float64, E float64, corsikaID int) (dynamo.State, error) {
	A, Z, err := Nucleus(corsikaID)
	if err != nil {
		return nil, err
	}
	energies := idx.Energies()
	if len(widths) != len(energies) {
		return nil, dynamo.ErrDimensionMismatch
	}

	p, err := idx.ByID(protonID)
	if err != nil {
		return nil, err
	}
	n, _ := idx.ByID(neutronID)
	if A > Z && n == nil {
		return nil, particles.NotFound(neutronID)
	}

	E /= float64(A)
	nearest := 0
	for i, c := range energies {
		if math.Abs(E-c) < math.Abs(E-energies[nearest]) {
			nearest = i
		}
	}
	lo, up := nearest-1, nearest
	if energies[nearest] < E {
		lo, up = nearest, nearest+1
	}
	if lo < 0 || up >= len(energies) {
		return nil, dynamo.Configf("nucleon energy %g GeV outside the grid", E)
	}

	scale := widths[0] / energies[0]
	wE := E * scale
	wUp := E + wE/2 - (energies[up] - widths[up]/2)
	wLo := energies[lo] + widths[lo]/2 - (E - wE/2)

	phi := make(dynamo.State, idx.Dim())
	phi[p.Lower()+lo] = float64(Z) * wLo / (widths[lo] * widths[lo])
	phi[p.Lower()+up] = float64(Z) * wUp / (widths[up] * widths[up])
	if A > Z {
		phi[n.Lower()+lo] = float64(A-Z) * wLo / (widths[lo] * widths[lo])
		phi[n.Lower()+up] = float64(A-Z) * wUp / (widths[up] * widths[up])
	}
	return phi, nil
}
