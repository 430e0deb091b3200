package operator

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix. It is immutable once built.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var _ Matrix = (*CSR)(nil)

type triplet struct {
	i, j int
	v    float64
}

// newCSR sorts triplets, sums duplicates in input order and drops exact zeros.
func newCSR(rows, cols int, ts []triplet) *CSR {
	sort.SliceStable(ts, func(a, b int) bool {
		if ts[a].i != ts[b].i {
			return ts[a].i < ts[b].i
		}
		return ts[a].j < ts[b].j
	})

	m := &CSR{
		rows:    rows,
		cols:    cols,
		indptr:  make([]int, rows+1),
		indices: make([]int, 0, len(ts)),
		data:    make([]float64, 0, len(ts)),
	}

	for k := 0; k < len(ts); {
		t := ts[k]
		v := t.v
		k++
		for k < len(ts) && ts[k].i == t.i && ts[k].j == t.j {
			v += ts[k].v
			k++
		}
		if v == 0 {
			continue
		}
		m.indices = append(m.indices, t.j)
		m.data = append(m.data, v)
		m.indptr[t.i+1]++
	}
	for i := 0; i < rows; i++ {
		m.indptr[i+1] += m.indptr[i]
	}
	return m
}

func (m *CSR) Dims() (int, int) { return m.rows, m.cols }

func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := lo + sort.SearchInts(m.indices[lo:hi], j)
	if k < hi && m.indices[k] == j {
		return m.data[k]
	}
	return 0
}

func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

func (m *CSR) NNZ() int { return len(m.data) }

// MulVecTo sets dst = m·x.
func (m *CSR) MulVecTo(dst, x []float64) {
	m.MulVecRows(dst, x, 0, m.rows)
}

// MulVecRows computes rows [lo, hi) of m·x into dst.
func (m *CSR) MulVecRows(dst, x []float64, lo, hi int) {
	for i := lo; i < hi; i++ {
		var sum float64
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			sum += m.data[k] * x[m.indices[k]]
		}
		dst[i] = sum
	}
}

// DoNonZero calls fn for every stored element in row-major order.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for k := m.indptr[i]; k < m.indptr[i+1]; k++ {
			fn(i, m.indices[k], m.data[k])
		}
	}
}

// ToDense expands m.
func (m *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	m.DoNonZero(d.Set)
	return d
}

// FromDense compresses m, dropping zeros.
func FromDense(m mat.Matrix) *CSR {
	r, c := m.Dims()
	var ts []triplet
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				ts = append(ts, triplet{i, j, v})
			}
		}
	}
	return newCSR(r, c, ts)
}
