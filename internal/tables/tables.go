package tables

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/particles"
)

// YieldTable provides interaction yields of a hadronic interaction model.
type YieldTable interface {
	Projectiles() []int
	Secondaries(projectile int) []int
	IsYield(projectile, secondary int) bool
	YieldBlock(projectile, secondary int) (*mat.Dense, error)
	AssignBlock(projectile int, pBins particles.Range, secondary int, sBins particles.Range, out *mat.Dense)
}

// DecayTable provides decay spectra.
type DecayTable interface {
	Daughters(mother int) []int
	AssignBlock(mother int, mBins particles.Range, daughter int, dBins particles.Range, out *mat.Dense)
}

type link struct{ parent, child int }

// Transfers stores energy-redistribution blocks keyed by parent/child ids.
// Rows index the child energy, columns the parent energy.
type Transfers struct {
	bins     int
	blocks   map[link]*mat.Dense
	children map[int][]int
}

func NewTransfers(bins int) *Transfers {
	return &Transfers{
		bins:     bins,
		blocks:   make(map[link]*mat.Dense),
		children: make(map[int][]int),
	}
}

// Add accumulates block into the parent→child transfer.
func (t *Transfers) Add(parent, child int, block *mat.Dense) error {
	r, c := block.Dims()
	if r != t.bins || c != t.bins {
		return fmt.Errorf("transfer %d->%d: block %dx%d, grid has %d bins", parent, child, r, c, t.bins)
	}

	key := link{parent, child}
	if existing, ok := t.blocks[key]; ok {
		existing.Add(existing, block)
		return nil
	}

	t.blocks[key] = mat.DenseCopyOf(block)
	t.children[parent] = append(t.children[parent], child)
	return nil
}

func (t *Transfers) Has(parent, child int) bool {
	_, ok := t.blocks[link{parent, child}]
	return ok
}

// Children returns the children of parent in insertion order.
func (t *Transfers) Children(parent int) []int {
	return t.children[parent]
}

// Parents returns every id with at least one child, sorted.
func (t *Transfers) Parents() []int {
	out := make([]int, 0, len(t.children))
	for p := range t.children {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Block returns a copy of the parent→child block.
func (t *Transfers) Block(parent, child int) (*mat.Dense, error) {
	b, ok := t.blocks[link{parent, child}]
	if !ok {
		return nil, particles.NotFound(child)
	}
	return mat.DenseCopyOf(b), nil
}

// AssignBlock zeroes out and copies the parent→child block restricted to
// rows in childBins and columns in parentBins.
func (t *Transfers) AssignBlock(parent int, parentBins particles.Range, child int, childBins particles.Range, out *mat.Dense) {
	out.Zero()
	b, ok := t.blocks[link{parent, child}]
	if !ok || parentBins.Empty() || childBins.Empty() {
		return
	}
	for i := childBins.Lo; i < childBins.Hi; i++ {
		for j := parentBins.Lo; j < parentBins.Hi; j++ {
			out.Set(i, j, b.At(i, j))
		}
	}
}

// Yields is the in-memory YieldTable.
type Yields struct {
	*Transfers
}

func NewYields(bins int) *Yields { return &Yields{NewTransfers(bins)} }

func (y *Yields) Projectiles() []int                     { return y.Parents() }
func (y *Yields) Secondaries(projectile int) []int       { return y.Children(projectile) }
func (y *Yields) IsYield(projectile, secondary int) bool { return y.Has(projectile, secondary) }
func (y *Yields) YieldBlock(projectile, secondary int) (*mat.Dense, error) {
	return y.Block(projectile, secondary)
}

// Decays is the in-memory DecayTable.
type Decays struct {
	*Transfers
}

func NewDecays(bins int) *Decays { return &Decays{NewTransfers(bins)} }

func (d *Decays) Daughters(mother int) []int { return d.Children(mother) }

// CrossSectionTable maps species ids to inverse interaction lengths in cm²/g.
type CrossSectionTable map[int][]float64

func (c CrossSectionTable) InverseInteractionLength(id int) []float64 {
	return c[id]
}
