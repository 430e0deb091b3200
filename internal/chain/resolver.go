// Package chain expands decay and interaction daughters through
// resonance-like intermediate states into operator blocks.
package chain

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/particles"
	"github.com/san-kum/cascade/internal/tables"
)

// Sink receives transfer blocks. rows is the destination state range, cols
// the origin state range; block is bins×bins and must be added, not stored.
type Sink interface {
	Accumulate(rows, cols particles.Range, block *mat.Dense)
}

// Resolver follows mother→daughter chains over the particle index.
type Resolver struct {
	idx     *particles.Index
	routing *particles.Routing
	decays  tables.DecayTable
	yields  tables.YieldTable
	bins    int
}

// New returns a resolver. decays or yields may be nil, in which case the
// corresponding process contributes nothing.
func New(idx *particles.Index, routing *particles.Routing, decays tables.DecayTable, yields tables.YieldTable) *Resolver {
	return &Resolver{
		idx:     idx,
		routing: routing,
		decays:  decays,
		yields:  yields,
		bins:    idx.Bins(),
	}
}

// hop is one pending expansion: the daughters of species, entered in bins
// entry, carrying prod which maps origin energies to species energies.
type hop struct {
	species *particles.Species
	prod    *mat.Dense
	entry   particles.Range
}

// Decays expands every decay chain starting at p. It returns the number of
// mother→daughter hops visited.
func (r *Resolver) Decays(p *particles.Species, sink Sink) (int, error) {
	if r.decays == nil || !p.Tracked() || len(r.decays.Daughters(p.ID)) == 0 {
		return 0, nil
	}
	entry := p.HadronBins()
	if entry.Empty() {
		return 0, nil
	}
	return r.follow(p, []hop{{species: p, prod: identity(r.bins), entry: entry}}, sink)
}

// Interactions adds the secondary production of projectile p: direct
// yields into tracked secondaries and the decay chains of secondaries
// produced in their resonance bins.
func (r *Resolver) Interactions(p *particles.Species, sink Sink) (int, error) {
	if r.yields == nil || !p.Projectile || !p.Tracked() {
		return 0, nil
	}

	pBins := p.HadronBins()
	var pending []hop
	for _, id := range r.yields.Secondaries(p.ID) {
		s, err := r.idx.ByID(id)
		if err != nil {
			return 0, fmt.Errorf("secondary of %s: %w", p.Name, err)
		}

		if had := s.HadronBins(); s.Tracked() && !had.Empty() {
			block := mat.NewDense(r.bins, r.bins, nil)
			r.yields.AssignBlock(p.ID, pBins, s.ID, had, block)
			sink.Accumulate(s.Block(), p.Block(), block)
		}

		if res := s.ResonanceBins(); !res.Empty() {
			block := mat.NewDense(r.bins, r.bins, nil)
			r.yields.AssignBlock(p.ID, pBins, s.ID, res, block)
			pending = append(pending, hop{species: s, prod: block, entry: res})
		}
	}

	if len(pending) == 0 || r.decays == nil {
		return 0, nil
	}
	return r.follow(p, pending, sink)
}

// follow drains the worklist. Each daughter d of a hop's species m adds
// dprop·prod into d's block (or m→d's alias bucket) and into the observer
// bucket if one matches; daughters with resonance bins are pushed again.
func (r *Resolver) follow(origin *particles.Species, work []hop, sink Sink) (int, error) {
	cols := origin.Block()
	dprop := mat.NewDense(r.bins, r.bins, nil)
	var hops int

	for len(work) > 0 {
		h := work[len(work)-1]
		work = work[:len(work)-1]
		m := h.species

		for _, id := range r.decays.Daughters(m.ID) {
			d, err := r.idx.ByID(id)
			if err != nil {
				return hops, fmt.Errorf("daughter of %s: %w", m.Name, err)
			}
			hops++

			if had := d.HadronBins(); d.Tracked() && !had.Empty() {
				r.decays.AssignBlock(m.ID, h.entry, d.ID, had, dprop)
				contrib := mat.NewDense(r.bins, r.bins, nil)
				contrib.Mul(dprop, h.prod)

				rows := d.Block()
				if alias, ok := r.routing.Alias(m.ID, d.ID); ok {
					rows = alias.Block()
				}
				sink.Accumulate(rows, cols, contrib)

				if obs, ok := r.routing.Observer(m.ID, d.ID); ok {
					sink.Accumulate(obs.Block(), cols, contrib)
				}
			}

			if res := d.ResonanceBins(); !res.Empty() {
				r.decays.AssignBlock(m.ID, h.entry, d.ID, res, dprop)
				next := mat.NewDense(r.bins, r.bins, nil)
				next.Mul(dprop, h.prod)
				work = append(work, hop{species: d, prod: next, entry: res})
			}
		}
	}
	return hops, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
