package difftests

import (
	"context"
	"math"

	"compbench/domain/composition"

	"gonum.org/v1/gonum/floats"
)

// NegBinLRT fits a negative binomial GLM with a library-size offset, a per-group
// rate and a size parameter shared by all samples of the cell type, then compares
// it to the single-rate model with a likelihood-ratio test.
type NegBinLRT struct {
	// InitialSize seeds the shared size parameter
	InitialSize float64
}

// NewNegBinLRT creates the NB GLM test
func NewNegBinLRT() *NegBinLRT {
	return &NegBinLRT{InitialSize: 10}
}

// Name returns the adapter name
func (t *NegBinLRT) Name() string {
	return "negbin_lrt"
}

// Description returns a human-readable description
func (t *NegBinLRT) Description() string {
	return "Negative binomial GLM with shared size, group likelihood-ratio test"
}

// Test fits the null and full models per cell type; a failed fit gives NaN for that cell
func (t *NegBinLRT) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	return perCellGLM(ctx, counts, groups, t.cellPValue)
}

func (t *NegBinLRT) cellPValue(y, offset []float64, idx [][]int) float64 {
	start, ok := fitPoisson(y, offset, idx)
	if !ok {
		return math.NaN()
	}
	floor := 0.5 / floats.Sum(offset)
	logSize := math.Log(t.InitialSize)

	// null: x = [log rate, log size]
	llNull, ok := maximize(func(x []float64) float64 {
		rate := math.Exp(clamp(x[0], -logLimit, logLimit))
		size := math.Exp(clamp(x[1], logPrecisionLo, logPrecisionHi))
		var ll float64
		for j := range y {
			ll += negBinLogPMF(y[j], rate*offset[j], size)
		}
		return ll
	}, []float64{safeLog(start.pooled, floor), logSize})
	if !ok {
		return math.NaN()
	}

	// full: x = [log rate_0 .. log rate_{G-1}, log size]
	g := len(idx)
	init := make([]float64, g+1)
	for i, rate := range start.rates {
		init[i] = safeLog(rate, floor)
	}
	init[g] = logSize
	llFull, ok := maximize(func(x []float64) float64 {
		size := math.Exp(clamp(x[g], logPrecisionLo, logPrecisionHi))
		var ll float64
		for gi, cols := range idx {
			rate := math.Exp(clamp(x[gi], -logLimit, logLimit))
			for _, j := range cols {
				ll += negBinLogPMF(y[j], rate*offset[j], size)
			}
		}
		return ll
	}, init)
	if !ok {
		return math.NaN()
	}
	return likelihoodRatio(llFull, llNull, g-1)
}

// negBinLogPMF is log P(Y = y) for the NB with mean mu and size parameter size
func negBinLogPMF(y, mu, size float64) float64 {
	a, _ := math.Lgamma(y + size)
	b, _ := math.Lgamma(size)
	c, _ := math.Lgamma(y + 1)
	ll := a - b - c + size*math.Log(size/(size+mu))
	if y > 0 {
		ll += y * math.Log(mu/(size+mu))
	}
	return ll
}
