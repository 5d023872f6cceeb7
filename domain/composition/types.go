package composition

import (
	"fmt"
	"math"

	"compbench/domain/core"
)

// ProportionTolerance bounds how far a proportion vector may drift from summing to 1.
const ProportionTolerance = 1e-6

// Proportions is the true cell-type composition; index k is the cell-type identity
// for the whole run.
type Proportions []float64

// Len returns the number of cell types
func (p Proportions) Len() int {
	return len(p)
}

// Validate checks that every entry is strictly positive and that the vector sums to 1.
func (p Proportions) Validate() error {
	if len(p) < 2 {
		return core.NewConfigurationError("proportions", "at least two cell types are required")
	}
	sum := 0.0
	for i, v := range p {
		if !(v > 0) || math.IsInf(v, 0) {
			return core.NewProportionError(i, v)
		}
		sum += v
	}
	if math.Abs(sum-1) > ProportionTolerance {
		return fmt.Errorf("%w: sum is %.9f", core.ErrInvalidProportions, sum)
	}
	return nil
}

// Normalize returns a copy scaled to sum to 1. A zero-sum vector is returned unchanged.
func (p Proportions) Normalize() Proportions {
	sum := 0.0
	for _, v := range p {
		sum += v
	}
	out := make(Proportions, len(p))
	copy(out, p)
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// BetaParams holds one Beta(alpha, beta) pair per cell type.
type BetaParams struct {
	Alpha []float64 `json:"alpha"`
	Beta  []float64 `json:"beta"`
}

// Len returns the number of cell types covered
func (b BetaParams) Len() int {
	return len(b.Alpha)
}

// Validate checks shapes and strict positivity.
func (b BetaParams) Validate(k int) error {
	if len(b.Alpha) != k || len(b.Beta) != k {
		return fmt.Errorf("%w: expected %d pairs, got alpha=%d beta=%d",
			core.ErrInvalidHyperParams, k, len(b.Alpha), len(b.Beta))
	}
	for i := 0; i < k; i++ {
		if !(b.Alpha[i] > 0) || !(b.Beta[i] > 0) || math.IsInf(b.Alpha[i], 0) || math.IsInf(b.Beta[i], 0) {
			return fmt.Errorf("%w: cell type %d has alpha=%g beta=%g",
				core.ErrInvalidHyperParams, i, b.Alpha[i], b.Beta[i])
		}
	}
	return nil
}

// Broadcast repeats a scalar pair across k cell types.
func Broadcast(alpha, beta float64, k int) BetaParams {
	params := BetaParams{Alpha: make([]float64, k), Beta: make([]float64, k)}
	for i := 0; i < k; i++ {
		params.Alpha[i] = alpha
		params.Beta[i] = beta
	}
	return params
}

// BetaFromProportions fixes alpha per cell type and derives beta = alpha(1-p)/p so that
// the Beta mean equals p.
func BetaFromProportions(alpha []float64, props Proportions) (BetaParams, error) {
	if len(alpha) == 1 && len(props) > 1 {
		scalar := alpha[0]
		alpha = make([]float64, len(props))
		for i := range alpha {
			alpha[i] = scalar
		}
	}
	if len(alpha) != len(props) {
		return BetaParams{}, fmt.Errorf("%w: %d alphas for %d cell types",
			core.ErrInvalidHyperParams, len(alpha), len(props))
	}
	params := BetaParams{Alpha: make([]float64, len(props)), Beta: make([]float64, len(props))}
	for i, p := range props {
		if !(p > 0) {
			return BetaParams{}, core.NewProportionError(i, p)
		}
		params.Alpha[i] = alpha[i]
		params.Beta[i] = alpha[i] * (1 - p) / p
	}
	return params, params.Validate(len(props))
}

// GroundTruth marks the cell types whose proportion differs between groups by construction.
type GroundTruth []bool

// Positives counts truly differential cell types
func (g GroundTruth) Positives() int {
	n := 0
	for _, v := range g {
		if v {
			n++
		}
	}
	return n
}

// Negatives counts cell types with no true difference
func (g GroundTruth) Negatives() int {
	return len(g) - g.Positives()
}

// AllNull reports whether no cell type differs
func (g GroundTruth) AllNull() bool {
	return g.Positives() == 0
}

// Discriminable reports whether both classes are present, which recall, precision,
// AUC and ROC require.
func (g GroundTruth) Discriminable() bool {
	return g.Positives() > 0 && g.Negatives() > 0
}

// CellLabel returns the stable row identifier for cell type k.
func CellLabel(k int) string {
	return fmt.Sprintf("c%d", k)
}
