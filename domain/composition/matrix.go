package composition

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CountMatrix is a K (cell types) x J (samples) matrix of cell counts together with
// the sequencing depths drawn for the samples.
type CountMatrix struct {
	Labels []string
	Depths []int
	data   *mat.Dense
}

// NewCountMatrix allocates a zeroed K x J matrix with rows labelled c0..c{K-1}.
func NewCountMatrix(k, j int) *CountMatrix {
	labels := make([]string, k)
	for i := range labels {
		labels[i] = CellLabel(i)
	}
	return &CountMatrix{
		Labels: labels,
		Depths: make([]int, j),
		data:   mat.NewDense(k, j, nil),
	}
}

// CountMatrixFromRows builds a matrix from row slices; every row must have the same length.
// Depths are set to the column sums.
func CountMatrixFromRows(rows [][]float64) (*CountMatrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("count matrix needs at least one row and one column")
	}
	j := len(rows[0])
	m := NewCountMatrix(len(rows), j)
	for k, row := range rows {
		if len(row) != j {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", k, len(row), j)
		}
		m.data.SetRow(k, row)
	}
	for c, s := range m.ColSums() {
		m.Depths[c] = int(s)
	}
	return m, nil
}

// Dims returns (cell types, samples)
func (m *CountMatrix) Dims() (int, int) {
	return m.data.Dims()
}

// CellTypes returns K
func (m *CountMatrix) CellTypes() int {
	k, _ := m.data.Dims()
	return k
}

// Samples returns J
func (m *CountMatrix) Samples() int {
	_, j := m.data.Dims()
	return j
}

// At returns the count of cell type k in sample j
func (m *CountMatrix) At(k, j int) float64 {
	return m.data.At(k, j)
}

// Set stores the count of cell type k in sample j
func (m *CountMatrix) Set(k, j int, v float64) {
	m.data.Set(k, j, v)
}

// Row returns a copy of the counts for cell type k across samples.
func (m *CountMatrix) Row(k int) []float64 {
	return mat.Row(nil, k, m.data)
}

// Col returns a copy of the counts of sample j across cell types.
func (m *CountMatrix) Col(j int) []float64 {
	return mat.Col(nil, j, m.data)
}

// ColSums returns the observed total per sample.
func (m *CountMatrix) ColSums() []float64 {
	k, j := m.data.Dims()
	sums := make([]float64, j)
	for c := 0; c < j; c++ {
		for r := 0; r < k; r++ {
			sums[c] += m.data.At(r, c)
		}
	}
	return sums
}

// Proportions returns the column-normalised matrix as row slices. Columns with a
// zero total stay zero.
func (m *CountMatrix) Proportions() [][]float64 {
	k, j := m.data.Dims()
	sums := m.ColSums()
	out := make([][]float64, k)
	for r := 0; r < k; r++ {
		out[r] = make([]float64, j)
		for c := 0; c < j; c++ {
			if sums[c] > 0 {
				out[r][c] = m.data.At(r, c) / sums[c]
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (m *CountMatrix) Clone() *CountMatrix {
	labels := make([]string, len(m.Labels))
	copy(labels, m.Labels)
	depths := make([]int, len(m.Depths))
	copy(depths, m.Depths)
	return &CountMatrix{
		Labels: labels,
		Depths: depths,
		data:   mat.DenseCopyOf(m.data),
	}
}

// WithZeroReplaced returns a private copy in which every zero count becomes value.
// The receiver is left untouched.
func (m *CountMatrix) WithZeroReplaced(value float64) *CountMatrix {
	out := m.Clone()
	out.data.Apply(func(_, _ int, v float64) float64 {
		if v == 0 {
			return value
		}
		return v
	}, out.data)
	return out
}

// HasZeros reports whether any count is zero.
func (m *CountMatrix) HasZeros() bool {
	k, j := m.data.Dims()
	for r := 0; r < k; r++ {
		for c := 0; c < j; c++ {
			if m.data.At(r, c) == 0 {
				return true
			}
		}
	}
	return false
}
