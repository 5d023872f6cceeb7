// Package difftests holds the built-in differential abundance tests. Each adapter
// maps a K x J count matrix and its group labels to K p-values; NaN marks a cell
// type the test could not evaluate.
package difftests

import (
	"fmt"
	"math"

	"compbench/domain/composition"
	"compbench/domain/core"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// splitGroups validates the labels and returns the sample indices of each group
func splitGroups(counts *composition.CountMatrix, groups composition.Groups) ([][]int, error) {
	if counts == nil {
		return nil, core.NewConfigurationError("counts", "nil matrix")
	}
	if err := groups.Validate(counts.Samples()); err != nil {
		return nil, err
	}
	idx := make([][]int, groups.NumGroups())
	for g := range idx {
		idx[g] = groups.Indices(g)
	}
	return idx, nil
}

// requireTwoGroups is for tests that only compare two groups
func requireTwoGroups(name string, idx [][]int) error {
	if len(idx) != 2 {
		return fmt.Errorf("%s compares exactly two groups, got %d", name, len(idx))
	}
	return nil
}

// pick returns values[i] for every i in idx
func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for n, i := range idx {
		out[n] = values[i]
	}
	return out
}

func nanSlice(k int) []float64 {
	out := make([]float64, k)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// welchTTest returns the two-sided p-value of Welch's unequal-variance t-test.
// NaN when either side has fewer than two values or both variances vanish.
func welchTTest(x, y []float64) float64 {
	n1, n2 := float64(len(x)), float64(len(y))
	if n1 < 2 || n2 < 2 {
		return math.NaN()
	}
	m1, v1 := stat.MeanVariance(x, nil)
	m2, v2 := stat.MeanVariance(y, nil)

	se1, se2 := v1/n1, v2/n2
	se := se1 + se2
	if se == 0 || math.IsNaN(se) {
		return math.NaN()
	}
	t := (m1 - m2) / math.Sqrt(se)
	df := se * se / (se1*se1/(n1-1) + se2*se2/(n2-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return clampP(2 * dist.Survival(math.Abs(t)))
}

// chiSquareSurvival is P(X >= stat) for X ~ chi-square(df)
func chiSquareSurvival(statistic float64, df int) float64 {
	if math.IsNaN(statistic) || df < 1 {
		return math.NaN()
	}
	if statistic <= 0 {
		return 1
	}
	return clampP(distuv.ChiSquared{K: float64(df)}.Survival(statistic))
}

// fSurvival is P(X >= stat) for X ~ F(d1, d2)
func fSurvival(statistic float64, d1, d2 int) float64 {
	if math.IsNaN(statistic) || math.IsInf(statistic, 0) || d1 < 1 || d2 < 1 {
		return math.NaN()
	}
	if statistic <= 0 {
		return 1
	}
	return clampP(distuv.F{D1: float64(d1), D2: float64(d2)}.Survival(statistic))
}

func clampP(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return p
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
