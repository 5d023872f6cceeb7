package ports

import (
	"context"

	"compbench/domain/composition"
)

// ProportionSource supplies the baseline composition a benchmark is seeded with.
// Observed may return nil when no count matrix is available.
type ProportionSource interface {
	Proportions(ctx context.Context) (composition.Proportions, error)
	Observed(ctx context.Context) (*composition.CountMatrix, error)
}
