package tables

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/cascade/internal/dynamo"
)

// Grid is a logarithmic energy grid in GeV.
type Grid struct {
	Edges   []float64
	Centers []float64
	Widths  []float64
}

// LogGrid builds perDecade bins per decade between min and max.
func LogGrid(min, max float64, perDecade int) (Grid, error) {
	if min <= 0 || max <= min || perDecade <= 0 {
		return Grid{}, dynamo.Configf("energy grid [%g, %g] with %d bins/decade", min, max, perDecade)
	}

	n := int(math.Round(math.Log10(max/min) * float64(perDecade)))
	if n < 1 {
		n = 1
	}

	edges := floats.LogSpan(make([]float64, n+1), min, max)
	g := Grid{
		Edges:   edges,
		Centers: make([]float64, n),
		Widths:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		g.Centers[i] = math.Sqrt(edges[i] * edges[i+1])
		g.Widths[i] = edges[i+1] - edges[i]
	}
	return g, nil
}

func (g Grid) Len() int { return len(g.Centers) }

// Bin returns the bin containing E, or -1 outside the grid.
func (g Grid) Bin(E float64) int {
	if len(g.Edges) < 2 || E < g.Edges[0] || E >= g.Edges[len(g.Edges)-1] {
		return -1
	}
	return sort.Search(len(g.Edges), func(i int) bool { return g.Edges[i] > E }) - 1
}
