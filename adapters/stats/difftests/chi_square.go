package difftests

import (
	"context"
	"math"

	"compbench/domain/composition"

	"gonum.org/v1/gonum/floats"
)

// ChiSquareProportionTest compares, per cell type, the group-summed counts of that
// cell type against all other cells in a G x 2 contingency table. Sample-to-sample
// variability is ignored, so the test is anti-conservative on overdispersed data.
type ChiSquareProportionTest struct {
	// Yates applies the continuity correction on 2 x 2 tables
	Yates bool
}

// NewChiSquareProportionTest creates the test with Yates correction enabled
func NewChiSquareProportionTest() *ChiSquareProportionTest {
	return &ChiSquareProportionTest{Yates: true}
}

// Name returns the adapter name
func (t *ChiSquareProportionTest) Name() string {
	return "chisq_prop"
}

// Description returns a human-readable description
func (t *ChiSquareProportionTest) Description() string {
	return "Pearson chi-square on pooled counts, cell type vs. rest"
}

// Test runs one chi-square test per cell type
func (t *ChiSquareProportionTest) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	idx, err := splitGroups(counts, groups)
	if err != nil {
		return nil, err
	}
	colSums := counts.ColSums()
	groupTotals := make([]float64, len(idx))
	for g, cols := range idx {
		groupTotals[g] = floats.Sum(pick(colSums, cols))
	}

	k := counts.CellTypes()
	pvals := make([]float64, k)
	for r := 0; r < k; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := counts.Row(r)
		in := make([]float64, len(idx))
		for g, cols := range idx {
			in[g] = floats.Sum(pick(row, cols))
		}
		pvals[r] = t.pValue(in, groupTotals)
	}
	return pvals, nil
}

// pValue tests independence of group and {cell type, rest} given the in-type counts
// and the group totals.
func (t *ChiSquareProportionTest) pValue(in, totals []float64) float64 {
	grand := floats.Sum(totals)
	inTotal := floats.Sum(in)
	outTotal := grand - inTotal
	if grand <= 0 || inTotal <= 0 || outTotal <= 0 {
		return math.NaN()
	}

	correct := t.Yates && len(in) == 2
	var statistic float64
	for g := range in {
		observed := [2]float64{in[g], totals[g] - in[g]}
		expected := [2]float64{totals[g] * inTotal / grand, totals[g] * outTotal / grand}
		for c := 0; c < 2; c++ {
			if expected[c] == 0 {
				return math.NaN()
			}
			diff := math.Abs(observed[c] - expected[c])
			if correct {
				diff -= math.Min(0.5, diff)
			}
			statistic += diff * diff / expected[c]
		}
	}
	return chiSquareSurvival(statistic, len(in)-1)
}
