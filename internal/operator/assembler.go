// Package operator assembles the interaction and decay operators
//
//	int = (-I + C)·diag(Λint)
//	dec = (-I + D)·diag(Λdec)
//
// from resolved chain blocks.
package operator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/cascade/internal/chain"
	"github.com/san-kum/cascade/internal/particles"
)

// blocks accumulates bins×bins blocks keyed by their state-vector offsets.
type blocks struct {
	bins int
	m    map[[2]int]*mat.Dense
}

func newBlocks(bins int) *blocks {
	return &blocks{bins: bins, m: make(map[[2]int]*mat.Dense)}
}

func (b *blocks) Accumulate(rows, cols particles.Range, block *mat.Dense) {
	if rows.Empty() || cols.Empty() {
		return
	}
	k := [2]int{rows.Lo, cols.Lo}
	if acc, ok := b.m[k]; ok {
		acc.Add(acc, block)
		return
	}
	b.m[k] = mat.DenseCopyOf(block)
}

// keys returns the block offsets in row-major order.
func (b *blocks) keys() [][2]int {
	out := make([][2]int, 0, len(b.m))
	for k := range b.m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Assembler builds operator sets for an index.
type Assembler struct {
	idx      *particles.Index
	resolver *chain.Resolver
	logger   *slog.Logger
}

func NewAssembler(idx *particles.Index, resolver *chain.Resolver, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Assembler{idx: idx, resolver: resolver, logger: logger}
}

// Build resolves every cascade species and materializes both operators,
// as CSR when sparse is set and dense otherwise.
func (a *Assembler) Build(ctx context.Context, sparse bool) (*Set, error) {
	start := time.Now()
	C := newBlocks(a.idx.Bins())
	D := newBlocks(a.idx.Bins())

	var hops int
	for _, p := range a.idx.Cascade() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := a.resolver.Decays(p, D)
		if err != nil {
			return nil, err
		}
		hops += n
		n, err = a.resolver.Interactions(p, C)
		if err != nil {
			return nil, err
		}
		hops += n
	}

	lint := a.idx.LambdaInt()
	ldec := a.idx.LambdaDec()
	dim := a.idx.Dim()

	set := &Set{
		Sparse: sparse,
		Dim:    dim,
	}
	if dim > 0 {
		set.MaxLdec = floats.Max(ldec)
	}
	if sparse {
		set.Int = a.sparse(C, lint)
		set.Dec = a.sparse(D, ldec)
	} else {
		set.Int = a.dense(C, lint)
		set.Dec = a.dense(D, ldec)
	}

	a.logger.Debug("operators assembled",
		"species", len(a.idx.Cascade()),
		"hops", hops,
		"stats", set.Stats().String(),
		"elapsed", time.Since(start))
	return set, nil
}

func (a *Assembler) sparse(b *blocks, lambda []float64) *CSR {
	dim := len(lambda)
	ts := make([]triplet, 0, dim+len(b.m)*b.bins)
	for j, l := range lambda {
		if l != 0 {
			ts = append(ts, triplet{j, j, -l})
		}
	}
	for _, k := range b.keys() {
		block := b.m[k]
		r0, c0 := k[0], k[1]
		for i := 0; i < b.bins; i++ {
			row := block.RawRowView(i)
			for j, v := range row[:b.bins] {
				if v == 0 || lambda[c0+j] == 0 {
					continue
				}
				ts = append(ts, triplet{r0 + i, c0 + j, v * lambda[c0+j]})
			}
		}
	}
	return newCSR(dim, dim, ts)
}

func (a *Assembler) dense(b *blocks, lambda []float64) Dense {
	dim := len(lambda)
	if dim == 0 {
		return Dense{&mat.Dense{}}
	}
	m := mat.NewDense(dim, dim, nil)
	for j, l := range lambda {
		m.Set(j, j, -l)
	}
	for _, k := range b.keys() {
		block := b.m[k]
		r0, c0 := k[0], k[1]
		for i := 0; i < b.bins; i++ {
			for j := 0; j < b.bins; j++ {
				if v := block.At(i, j); v != 0 {
					m.Set(r0+i, c0+j, m.At(r0+i, c0+j)+v*lambda[c0+j])
				}
			}
		}
	}
	return Dense{m}
}
