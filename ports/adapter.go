package ports

import (
	"context"

	"compbench/domain/composition"
)

// TestAdapter maps a count matrix and its group labels to one p-value per cell type.
// A NaN element marks a cell type the adapter could not test; a returned error marks
// the whole trial as failed for this adapter.
type TestAdapter interface {
	Name() string
	Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error)
}

// ZeroSubstituting is implemented by adapters that take logarithms of counts.
// They receive a private copy of the matrix with zeros replaced by Pseudocount().
type ZeroSubstituting interface {
	Pseudocount() float64
}

// AdapterFunc is the plain function form of a test adapter
type AdapterFunc func(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error)

type namedFunc struct {
	name string
	fn   AdapterFunc
}

// NewAdapterFunc wraps a function as a named TestAdapter
func NewAdapterFunc(name string, fn AdapterFunc) TestAdapter {
	return &namedFunc{name: name, fn: fn}
}

func (f *namedFunc) Name() string {
	return f.name
}

func (f *namedFunc) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	return f.fn(ctx, counts, groups)
}
