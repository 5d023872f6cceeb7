package difftests

import (
	"context"
	"math"

	"compbench/domain/composition"

	"gonum.org/v1/gonum/floats"
)

// PoissonLRT fits log(mu_j) = log(N_j) + beta_g per cell type, with N_j the sample
// total, and tests the group effect with a likelihood-ratio chi-square.
type PoissonLRT struct{}

// NewPoissonLRT creates the Poisson GLM test
func NewPoissonLRT() *PoissonLRT {
	return &PoissonLRT{}
}

// Name returns the adapter name
func (t *PoissonLRT) Name() string {
	return "poisson_lrt"
}

// Description returns a human-readable description
func (t *PoissonLRT) Description() string {
	return "Poisson GLM with library-size offset, group likelihood-ratio test"
}

// Test runs one LRT per cell type
func (t *PoissonLRT) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	return perCellGLM(ctx, counts, groups, func(y, offset []float64, idx [][]int) float64 {
		fit, ok := fitPoisson(y, offset, idx)
		if !ok {
			return math.NaN()
		}
		return chiSquareSurvival(fit.deviance, len(idx)-1)
	})
}

// QuasiPoissonFTest uses the Poisson fit but scales the deviance difference by the
// Pearson dispersion of the full model and refers it to an F distribution.
type QuasiPoissonFTest struct{}

// NewQuasiPoissonFTest creates the quasi-Poisson test
func NewQuasiPoissonFTest() *QuasiPoissonFTest {
	return &QuasiPoissonFTest{}
}

// Name returns the adapter name
func (t *QuasiPoissonFTest) Name() string {
	return "quasipoisson_f"
}

// Description returns a human-readable description
func (t *QuasiPoissonFTest) Description() string {
	return "Quasi-Poisson GLM with Pearson dispersion, group F-test"
}

// Test runs one F-test per cell type
func (t *QuasiPoissonFTest) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	return perCellGLM(ctx, counts, groups, func(y, offset []float64, idx [][]int) float64 {
		fit, ok := fitPoisson(y, offset, idx)
		if !ok {
			return math.NaN()
		}
		dfGroup := len(idx) - 1
		dfResid := len(y) - len(idx)
		if dfResid < 1 {
			return math.NaN()
		}
		dispersion := fit.pearson / float64(dfResid)
		if dispersion <= 0 {
			return math.NaN()
		}
		return fSurvival(fit.deviance/float64(dfGroup)/dispersion, dfGroup, dfResid)
	})
}

type poissonFit struct {
	rates    []float64 // per-group rate under the full model
	pooled   float64   // shared rate under the null model
	deviance float64   // null minus full deviance
	pearson  float64   // Pearson chi-square of the full model
}

// fitPoisson has closed-form MLEs: each rate is the group's count total over its
// offset total.
func fitPoisson(y, offset []float64, idx [][]int) (poissonFit, bool) {
	totalY, totalN := floats.Sum(y), floats.Sum(offset)
	if totalY <= 0 || totalN <= 0 {
		return poissonFit{}, false
	}
	fit := poissonFit{rates: make([]float64, len(idx)), pooled: totalY / totalN}
	for g, cols := range idx {
		n := floats.Sum(pick(offset, cols))
		if n <= 0 {
			return poissonFit{}, false
		}
		fit.rates[g] = floats.Sum(pick(y, cols)) / n
	}

	for g, cols := range idx {
		rate := fit.rates[g]
		for _, j := range cols {
			mu := rate * offset[j]
			if y[j] > 0 {
				fit.deviance += 2 * y[j] * math.Log(rate/fit.pooled)
			}
			if mu > 0 {
				d := y[j] - mu
				fit.pearson += d * d / mu
			}
		}
	}
	if fit.deviance < 0 {
		fit.deviance = 0
	}
	return fit, true
}

type cellFunc func(y, offset []float64, idx [][]int) float64

// perCellGLM feeds each cell type's counts with the sample totals as offsets to fn
func perCellGLM(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups, fn cellFunc) ([]float64, error) {
	idx, err := splitGroups(counts, groups)
	if err != nil {
		return nil, err
	}
	offset := counts.ColSums()
	k := counts.CellTypes()
	pvals := make([]float64, k)
	for r := 0; r < k; r++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pvals[r] = fn(counts.Row(r), offset, idx)
	}
	return pvals, nil
}
