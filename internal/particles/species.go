package particles

import "fmt"

// Class is the transport classification of a species. It is fixed when the
// index is built and never re-derived downstream.
type Class int

const (
	// Hadron is tracked in the state vector over the whole energy grid.
	Hadron Class = iota
	// Mixed is resonance-like below its mixing bin and tracked above it.
	Mixed
	// Resonance decays in place: no state block, only chain algebra.
	Resonance
	// Lepton is tracked and never decays or interacts.
	Lepton
	// Alias is a synthetic lepton bucket scoring a subset of decay chains.
	Alias
)

func (c Class) String() string {
	switch c {
	case Hadron:
		return "hadron"
	case Mixed:
		return "mixed"
	case Resonance:
		return "resonance"
	case Lepton:
		return "lepton"
	case Alias:
		return "alias"
	default:
		return fmt.Sprintf("Class(%d)", int(c))
	}
}

// Range is a half-open interval [Lo, Hi).
type Range struct {
	Lo, Hi int
}

func (r Range) Len() int {
	if r.Hi <= r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

func (r Range) Empty() bool { return r.Len() == 0 }

func (r Range) Contains(i int) bool { return i >= r.Lo && i < r.Hi }

func (r Range) String() string { return fmt.Sprintf("[%d,%d)", r.Lo, r.Hi) }

// Species is one particle of the catalog after classification.
type Species struct {
	ID    int
	Name  string
	Class Class

	// Mass in GeV and proper decay length cτ in cm; CTau == 0 means stable.
	Mass float64
	CTau float64

	// ECrit is the critical energy m·h0/cτ in GeV, 0 for stable species.
	ECrit float64

	// MixIdx is the first energy bin in which the species propagates.
	// Bins below it are resonance-like.
	MixIdx int

	// Projectile marks species with interaction yields in the selected model.
	Projectile bool

	// Base is the lepton id an alias bucket scores, 0 otherwise.
	Base int

	index  int
	bins   int
	block  Range
	invInt []float64
	invDec []float64
}

// Tracked reports whether the species owns a block of the state vector.
func (s *Species) Tracked() bool { return s.Class != Resonance }

// Index is the position among tracked species, -1 for resonances.
func (s *Species) Index() int { return s.index }

// Block is the state-vector range owned by the species.
func (s *Species) Block() Range { return s.block }

func (s *Species) Lower() int { return s.block.Lo }
func (s *Species) Upper() int { return s.block.Hi }

// HadronBins is the energy-bin range in which the species propagates.
func (s *Species) HadronBins() Range {
	if s.Class == Resonance {
		return Range{}
	}
	return Range{Lo: s.MixIdx, Hi: s.bins}
}

// ResonanceBins is the energy-bin range in which the species decays in place.
func (s *Species) ResonanceBins() Range {
	switch s.Class {
	case Resonance:
		return Range{Lo: 0, Hi: s.bins}
	case Mixed:
		return Range{Lo: 0, Hi: s.MixIdx}
	default:
		return Range{}
	}
}

// InverseInteractionLength is 1/λ_int per energy bin in cm²/g.
func (s *Species) InverseInteractionLength() []float64 { return s.invInt }

// InverseDecayLength is 1/λ_dec per energy bin in 1/cm.
func (s *Species) InverseDecayLength() []float64 { return s.invDec }

func (s *Species) String() string {
	return fmt.Sprintf("%s(%d,%s)", s.Name, s.ID, s.Class)
}
