package engine

import (
	"math"
	"strings"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/solver"
)

// Lepton flux prefixes that sum several buckets.
const (
	PrefixTotal = "total_"
	PrefixConv  = "conv_"
)

// Solution is a solved run. It is immutable.
type Solution struct {
	*solver.Solution
	Zenith float64
	Kernel string
	Config RunConfig

	index *particles.Index
}

// Energies are the energy bin centers in GeV.
func (s *Solution) Energies() []float64 { return s.index.Energies() }

// Flux returns the surface flux of a species multiplied by E^mag.
func (s *Solution) Flux(name string, mag float64) ([]float64, error) {
	return s.flux(s.Final, name, mag)
}

// FluxAt returns the flux at the i-th snapshot depth.
func (s *Solution) FluxAt(name string, mag float64, snapshot int) ([]float64, error) {
	if snapshot < 0 || snapshot >= len(s.Snapshots) {
		return nil, dynamo.NotFoundf("snapshot %d of %d", snapshot, len(s.Snapshots))
	}
	return s.flux(s.Snapshots[snapshot], name, mag)
}

// Components lists the state buckets that make up a flux name: total_
// sums the prompt, pion, kaon and unaliased buckets, conv_ all but prompt.
func Components(name string) []string {
	var prefixes []string
	switch {
	case strings.HasPrefix(name, PrefixTotal):
		name = strings.TrimPrefix(name, PrefixTotal)
		prefixes = []string{"pr_", "pi_", "k_", ""}
	case strings.HasPrefix(name, PrefixConv):
		name = strings.TrimPrefix(name, PrefixConv)
		prefixes = []string{"pi_", "k_", ""}
	default:
		return []string{name}
	}
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p + name
	}
	return out
}

func (s *Solution) flux(phi dynamo.State, name string, mag float64) ([]float64, error) {
	out := make([]float64, s.index.Bins())
	for _, c := range Components(name) {
		sp, err := s.index.ByName(c)
		if err != nil {
			return nil, err
		}
		if !sp.Tracked() {
			return nil, dynamo.NotFoundf("%s has no state block", c)
		}
		for i, v := range phi[sp.Lower():sp.Upper()] {
			out[i] += v
		}
	}
	if mag != 0 {
		for i, E := range s.index.Energies() {
			out[i] *= math.Pow(E, mag)
		}
	}
	return out, nil
}

// Export collects several fluxes at the surface.
func (s *Solution) Export(names []string, mag float64) (map[string][]float64, error) {
	out := make(map[string][]float64, len(names))
	for _, n := range names {
		f, err := s.Flux(n, mag)
		if err != nil {
			return nil, err
		}
		out[n] = f
	}
	return out, nil
}
