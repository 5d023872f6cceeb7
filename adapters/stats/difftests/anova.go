package difftests

import (
	"context"
	"math"

	"compbench/domain/composition"

	"gonum.org/v1/gonum/stat"
)

// ArcsineANOVA runs a one-way ANOVA on arcsine-square-root transformed proportions
type ArcsineANOVA struct{}

// NewArcsineANOVA creates the ANOVA adapter
func NewArcsineANOVA() *ArcsineANOVA {
	return &ArcsineANOVA{}
}

// Name returns the adapter name
func (t *ArcsineANOVA) Name() string {
	return "anova_arcsine"
}

// Description returns a human-readable description
func (t *ArcsineANOVA) Description() string {
	return "One-way ANOVA F-test on asin(sqrt(p))"
}

// Test runs one F-test per cell type; it accepts any number of groups
func (t *ArcsineANOVA) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	idx, err := splitGroups(counts, groups)
	if err != nil {
		return nil, err
	}
	props := counts.Proportions()
	pvals := make([]float64, len(props))
	for r, row := range props {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		transformed := make([]float64, len(row))
		for j, p := range row {
			transformed[j] = math.Asin(math.Sqrt(p))
		}
		pvals[r] = oneWayANOVA(transformed, idx)
	}
	return pvals, nil
}

// oneWayANOVA returns the p-value of the between-group F statistic
func oneWayANOVA(values []float64, idx [][]int) float64 {
	n := len(values)
	g := len(idx)
	if n <= g {
		return math.NaN()
	}
	grand := stat.Mean(values, nil)

	var between, within float64
	for _, cols := range idx {
		group := pick(values, cols)
		m := stat.Mean(group, nil)
		between += float64(len(group)) * (m - grand) * (m - grand)
		for _, v := range group {
			within += (v - m) * (v - m)
		}
	}
	dfB, dfW := g-1, n-g
	if within == 0 {
		return math.NaN()
	}
	f := (between / float64(dfB)) / (within / float64(dfW))
	return fSurvival(f, dfB, dfW)
}
