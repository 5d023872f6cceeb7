package difftests

import (
	"math"

	"gonum.org/v1/gonum/optimize"
)

const (
	maxIterations  = 4000
	logLimit       = 30.0 // bound on log rates and logits
	logPrecisionLo = -10.0
	logPrecisionHi = 15.0
)

// maximize finds the maximum of logLik with Nelder-Mead starting from init.
// ok is false when the optimiser fails or ends on a non-finite value.
func maximize(logLik func(x []float64) float64, init []float64) (float64, bool) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			v := -logLik(x)
			if math.IsNaN(v) {
				return math.Inf(1)
			}
			return v
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-9,
			Iterations: 200,
		},
	}
	result, err := optimize.Minimize(problem, init, settings, &optimize.NelderMead{})
	if err != nil || result == nil {
		return math.NaN(), false
	}
	if math.IsNaN(result.F) || math.IsInf(result.F, 0) {
		return math.NaN(), false
	}
	return -result.F, true
}

// likelihoodRatio returns the LRT p-value for nested fits; a full model that fits
// worse than the null within tolerance counts as no evidence.
func likelihoodRatio(llFull, llNull float64, df int) float64 {
	stat := 2 * (llFull - llNull)
	if stat < 0 {
		stat = 0
	}
	return chiSquareSurvival(stat, df)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// safeLog keeps starting values finite for groups with zero counts
func safeLog(v, floor float64) float64 {
	if v <= floor {
		return math.Log(floor)
	}
	return math.Log(v)
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
