package particles

import (
	"fmt"
	"math"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Alias bucket offsets: a lepton with id ±l is scored as ±(offset+l).
const (
	PromptOffset   = 7000
	PionOffset     = 7100
	KaonOffset     = 7200
	ObserverOffset = 7300
)

// AliasPrefixes maps name prefixes of alias buckets to their id offsets.
var AliasPrefixes = []struct {
	Prefix string
	Offset int
}{
	{"pr_", PromptOffset},
	{"pi_", PionOffset},
	{"k_", KaonOffset},
	{"obs_", ObserverOffset},
}

// DefaultAliasLeptons are the lepton ids that get alias buckets.
var DefaultAliasLeptons = []int{12, 13, 14, 16}

// Options controls classification and layout.
type Options struct {
	// NoMixing treats every unstable, non-forced species as a hadron.
	NoMixing bool
	// Crossover is the fraction of the interaction length below which a
	// decay depth counts as resonance-like.
	Crossover float64
	// MaxDensity is the air density in g/cm³ used to convert decay lengths.
	MaxDensity float64
	// AliasLeptons lists lepton ids (absolute) that get alias buckets.
	AliasLeptons []int
	// Projectiles lists ids with interaction yields in the selected model.
	Projectiles []int
}

func DefaultOptions() Options {
	return Options{
		Crossover:    0.5,
		MaxDensity:   1.240e-3,
		AliasLeptons: DefaultAliasLeptons,
	}
}

// Index is the particle index: classification, state layout and lookups.
type Index struct {
	bins     int
	energies []float64

	species    []*Species
	cascade    []*Species
	resonances []*Species

	byID   map[int]*Species
	byName map[string]*Species
}

// Build classifies the catalog on the energy grid and assigns state blocks.
// Tracked species are laid out in ascending critical energy.
func Build(entries []Entry, energies []float64, xs CrossSections, opts Options) (*Index, error) {
	if len(energies) == 0 {
		return nil, dynamo.Configf("empty energy grid")
	}
	if opts.Crossover <= 0 {
		opts.Crossover = DefaultOptions().Crossover
	}
	if opts.MaxDensity <= 0 {
		opts.MaxDensity = DefaultOptions().MaxDensity
	}

	catalog, err := withAliases(entries, opts.AliasLeptons)
	if err != nil {
		return nil, err
	}
	sortByCriticalEnergy(catalog)

	projectiles := make(map[int]bool, len(opts.Projectiles))
	for _, id := range opts.Projectiles {
		projectiles[id] = true
	}

	idx := &Index{
		bins:     len(energies),
		energies: append([]float64(nil), energies...),
		byID:     make(map[int]*Species, len(catalog)),
		byName:   make(map[string]*Species, len(catalog)),
	}

	for _, e := range catalog {
		s := &Species{
			ID:         e.ID,
			Name:       e.Name,
			Mass:       e.Mass,
			CTau:       e.CTau,
			ECrit:      e.CriticalEnergy(),
			Projectile: projectiles[e.ID],
			Base:       aliasBase(e.ID),
			index:      -1,
			bins:       len(energies),
		}
		s.invInt = interactionLengths(e, xs, len(energies))
		s.invDec = decayLengths(e, energies)
		classify(s, e, opts)
		maskResonanceBins(s)

		// resonances decay in place; their yields are never used
		if s.Class == Resonance {
			s.Projectile = false
		}

		idx.species = append(idx.species, s)
		idx.byID[s.ID] = s
		idx.byName[s.Name] = s
	}

	for _, s := range idx.species {
		if !s.Tracked() {
			idx.resonances = append(idx.resonances, s)
			continue
		}
		s.index = len(idx.cascade)
		s.block = Range{Lo: s.index * idx.bins, Hi: (s.index + 1) * idx.bins}
		idx.cascade = append(idx.cascade, s)
	}

	return idx, nil
}

func withAliases(entries []Entry, leptons []int) ([]Entry, error) {
	aliased := make(map[int]bool, len(leptons))
	for _, l := range leptons {
		aliased[abs(l)] = true
	}

	seenID := make(map[int]bool, len(entries))
	seenName := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries)*2)
	var extra []Entry

	for _, e := range entries {
		if e.Name == "" {
			return nil, dynamo.Configf("catalog entry %d has no name", e.ID)
		}
		if seenID[e.ID] || seenName[e.Name] {
			return nil, dynamo.Configf("duplicate catalog entry %s (%d)", e.Name, e.ID)
		}
		seenID[e.ID] = true
		seenName[e.Name] = true
		out = append(out, e)

		if !e.Lepton || !aliased[abs(e.ID)] {
			continue
		}
		for _, p := range AliasPrefixes {
			extra = append(extra, Entry{
				ID:     sign(e.ID) * (p.Offset + abs(e.ID)),
				Name:   p.Prefix + e.Name,
				Mass:   e.Mass,
				Lepton: true,
			})
		}
	}

	for _, e := range extra {
		if seenID[e.ID] || seenName[e.Name] {
			return nil, dynamo.Configf("alias %s (%d) collides with a catalog entry", e.Name, e.ID)
		}
		seenID[e.ID] = true
		seenName[e.Name] = true
	}

	return append(out, extra...), nil
}

func aliasBase(id int) int {
	a := abs(id)
	if a < PromptOffset || a >= ObserverOffset+100 {
		return 0
	}
	return sign(id) * (a % 100)
}

func interactionLengths(e Entry, xs CrossSections, bins int) []float64 {
	out := make([]float64, bins)
	if xs == nil || e.Lepton {
		return out
	}
	copy(out, xs.InverseInteractionLength(e.ID))
	return out
}

func decayLengths(e Entry, energies []float64) []float64 {
	out := make([]float64, len(energies))
	if !e.Unstable() {
		return out
	}
	for i, E := range energies {
		out[i] = e.Mass / (E * e.CTau)
	}
	return out
}

// classify applies the transition rules: leptons and aliases never mix,
// forced resonances never propagate, stable or non-interacting hadrons
// always propagate, everything else mixes where its decay depth at maximum
// density falls below the crossover fraction of its interaction length.
func classify(s *Species, e Entry, opts Options) {
	switch {
	case s.Base != 0:
		s.Class = Alias
		return
	case e.Lepton:
		s.Class = Lepton
		return
	case e.ForceResonance:
		s.Class = Resonance
		s.MixIdx = s.bins
		return
	case !e.Unstable() || opts.NoMixing || !anyPositive(s.invInt):
		s.Class = Hadron
		return
	}

	mix := 0
	for k := 0; k < s.bins; k++ {
		decayDepth := opts.MaxDensity / s.invDec[k]
		intLength := math.Inf(1)
		if s.invInt[k] > 0 {
			intLength = 1 / s.invInt[k]
		}
		if decayDepth >= opts.Crossover*intLength {
			break
		}
		mix = k + 1
	}

	s.MixIdx = mix
	switch {
	case mix == 0:
		s.Class = Hadron
	case mix >= s.bins:
		s.Class = Resonance
	default:
		s.Class = Mixed
	}
}

func maskResonanceBins(s *Species) {
	for k := 0; k < s.MixIdx && k < s.bins; k++ {
		s.invInt[k] = 0
		s.invDec[k] = 0
	}
	if s.Class == Lepton || s.Class == Alias {
		for k := range s.invDec {
			s.invDec[k] = 0
		}
	}
}

func anyPositive(v []float64) bool {
	for _, x := range v {
		if x > 0 {
			return true
		}
	}
	return false
}

// Bins is the energy-grid size, the width of every species block.
func (x *Index) Bins() int { return x.bins }

// Energies returns the energy-grid bin centers in GeV.
func (x *Index) Energies() []float64 { return x.energies }

// Dim is the length of the state vector.
func (x *Index) Dim() int { return len(x.cascade) * x.bins }

// Species returns tracked species followed by resonances.
func (x *Index) Species() []*Species {
	out := make([]*Species, 0, len(x.species))
	out = append(out, x.cascade...)
	return append(out, x.resonances...)
}

// Cascade returns the tracked species in state-vector order.
func (x *Index) Cascade() []*Species { return x.cascade }

// Resonances returns the species without a state block.
func (x *Index) Resonances() []*Species { return x.resonances }

// ByID resolves a signed identifier.
func (x *Index) ByID(id int) (*Species, error) {
	s, ok := x.byID[id]
	if !ok {
		return nil, dynamo.NotFoundf("species id %d", id)
	}
	return s, nil
}

// ByName resolves a species name.
func (x *Index) ByName(name string) (*Species, error) {
	s, ok := x.byName[name]
	if !ok {
		return nil, dynamo.NotFoundf("species %q", name)
	}
	return s, nil
}

// IndexOfID returns the tracked position of id, -1 for resonances.
func (x *Index) IndexOfID(id int) (int, error) {
	s, err := x.ByID(id)
	if err != nil {
		return 0, err
	}
	return s.index, nil
}

// IndexOfName returns the tracked position of name, -1 for resonances.
func (x *Index) IndexOfName(name string) (int, error) {
	s, err := x.ByName(name)
	if err != nil {
		return 0, err
	}
	return s.index, nil
}

// At returns the tracked species at position i.
func (x *Index) At(i int) (*Species, error) {
	if i < 0 || i >= len(x.cascade) {
		return nil, dynamo.NotFoundf("species index %d", i)
	}
	return x.cascade[i], nil
}

// Has reports whether id is part of the catalog.
func (x *Index) Has(id int) bool {
	_, ok := x.byID[id]
	return ok
}

// LambdaInt concatenates the inverse interaction lengths in state order.
func (x *Index) LambdaInt() []float64 {
	return x.concat(func(s *Species) []float64 { return s.invInt })
}

// LambdaDec concatenates the inverse decay lengths in state order.
func (x *Index) LambdaDec() []float64 {
	return x.concat(func(s *Species) []float64 { return s.invDec })
}

func (x *Index) concat(field func(*Species) []float64) []float64 {
	out := make([]float64, 0, x.Dim())
	for _, s := range x.cascade {
		out = append(out, field(s)...)
	}
	return out
}

func (x *Index) String() string {
	return fmt.Sprintf("Index(%d tracked, %d resonances, %d bins)", len(x.cascade), len(x.resonances), x.bins)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	if v < 0 {
		return -1
	}
	return 1
}

// NotFound is the lookup error for an unknown identifier.
func NotFound(id int) error {
	return dynamo.NotFoundf("species id %d", id)
}
