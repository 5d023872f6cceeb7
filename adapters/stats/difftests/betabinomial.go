package difftests

import (
	"context"
	"math"

	"compbench/domain/composition"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
)

// BetaBinomialLRT treats each cell type's count as successes out of the sample total
// with a Beta-distributed per-sample probability. Groups get their own mean and share
// one precision; the group effect is tested by likelihood ratio.
type BetaBinomialLRT struct {
	// InitialPrecision seeds the shared precision a+b
	InitialPrecision float64
}

// NewBetaBinomialLRT creates the beta-binomial GLM test
func NewBetaBinomialLRT() *BetaBinomialLRT {
	return &BetaBinomialLRT{InitialPrecision: 50}
}

// Name returns the adapter name
func (t *BetaBinomialLRT) Name() string {
	return "betabinomial_lrt"
}

// Description returns a human-readable description
func (t *BetaBinomialLRT) Description() string {
	return "Beta-binomial GLM with shared precision, group likelihood-ratio test"
}

// Test fits the null and full models per cell type; a failed fit gives NaN for that cell
func (t *BetaBinomialLRT) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	return perCellGLM(ctx, counts, groups, t.cellPValue)
}

func (t *BetaBinomialLRT) cellPValue(y, trials []float64, idx [][]int) float64 {
	totalY, totalN := floats.Sum(y), floats.Sum(trials)
	if totalY <= 0 || totalY >= totalN {
		return math.NaN()
	}
	logPrecision := math.Log(t.InitialPrecision)

	llNull, ok := maximize(func(x []float64) float64 {
		mean := logistic(clamp(x[0], -logLimit, logLimit))
		precision := math.Exp(clamp(x[1], logPrecisionLo, logPrecisionHi))
		var ll float64
		for j := range y {
			ll += betaBinomialLogPMF(y[j], trials[j], mean, precision)
		}
		return ll
	}, []float64{logit(totalY / totalN), logPrecision})
	if !ok {
		return math.NaN()
	}

	g := len(idx)
	init := make([]float64, g+1)
	for gi, cols := range idx {
		// half-count adjustment keeps the starting logit finite
		p := (floats.Sum(pick(y, cols)) + 0.5) / (floats.Sum(pick(trials, cols)) + 1)
		init[gi] = logit(p)
	}
	init[g] = logPrecision
	llFull, ok := maximize(func(x []float64) float64 {
		precision := math.Exp(clamp(x[g], logPrecisionLo, logPrecisionHi))
		var ll float64
		for gi, cols := range idx {
			mean := logistic(clamp(x[gi], -logLimit, logLimit))
			for _, j := range cols {
				ll += betaBinomialLogPMF(y[j], trials[j], mean, precision)
			}
		}
		return ll
	}, init)
	if !ok {
		return math.NaN()
	}
	return likelihoodRatio(llFull, llNull, g-1)
}

// betaBinomialLogPMF drops the binomial coefficient, which cancels in the ratio
func betaBinomialLogPMF(y, n, mean, precision float64) float64 {
	a := mean * precision
	b := (1 - mean) * precision
	if a <= 0 || b <= 0 {
		return math.Inf(-1)
	}
	return mathext.Lbeta(y+a, n-y+b) - mathext.Lbeta(a, b)
}
