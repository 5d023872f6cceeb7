// Package seed supplies baseline compositions for simulations, either fixed in
// memory or read from an observed count table.
package seed

import (
	"context"

	"compbench/domain/composition"
	"compbench/ports"
)

// Static is an in-memory ProportionSource
type Static struct {
	props    composition.Proportions
	observed *composition.CountMatrix
}

// NewStatic returns a source that always yields props. observed may be nil.
func NewStatic(props composition.Proportions, observed *composition.CountMatrix) *Static {
	return &Static{props: props, observed: observed}
}

// Proportions returns a copy of the configured proportions
func (s *Static) Proportions(ctx context.Context) (composition.Proportions, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.props.Validate(); err != nil {
		return nil, err
	}
	out := make(composition.Proportions, len(s.props))
	copy(out, s.props)
	return out, nil
}

// Observed returns a copy of the configured matrix, or nil
func (s *Static) Observed(ctx context.Context) (*composition.CountMatrix, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.observed == nil {
		return nil, nil
	}
	return s.observed.Clone(), nil
}

var _ ports.ProportionSource = (*Static)(nil)
