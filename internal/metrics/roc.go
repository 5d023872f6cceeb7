package metrics

import (
	"fmt"
	"math"
	"sort"

	"compbench/domain/benchmark"
	"compbench/domain/composition"
	"compbench/domain/core"
)

// ROCCurve is the pointwise average of per-trial empirical ROC step functions. It
// has K+1 points; point 0 is (0, 0) and point i follows the i cell types with the
// smallest p-values.
type ROCCurve struct {
	FPR      []float64 `json:"fpr"`
	TPR      []float64 `json:"tpr"`
	Trials   int       `json:"trials"`
	Excluded int       `json:"excluded"`
}

// ROC builds the averaged curve. Missing p-values sort after every observed one,
// ties keep cell order. Trials with no observed p-value are excluded.
func ROC(tensor *benchmark.PValueTensor, test string, truth composition.GroundTruth) (*ROCCurve, error) {
	if err := validateTruth(tensor, truth); err != nil {
		return nil, err
	}
	if err := requireDiscriminable(truth); err != nil {
		return nil, err
	}
	ti, err := tensor.TestIndex(test)
	if err != nil {
		return nil, err
	}

	k := tensor.CellTypes()
	curve := &ROCCurve{FPR: make([]float64, k+1), TPR: make([]float64, k+1)}
	for s := 0; s < tensor.NSim(); s++ {
		fpr, tpr, err := TrialROC(tensor.Trial(ti, s), truth)
		if err != nil {
			curve.Excluded++
			continue
		}
		curve.Trials++
		for i := range fpr {
			curve.FPR[i] += fpr[i]
			curve.TPR[i] += tpr[i]
		}
	}
	if curve.Trials == 0 {
		for i := range curve.FPR {
			curve.FPR[i] = math.NaN()
			curve.TPR[i] = math.NaN()
		}
		return curve, nil
	}
	for i := range curve.FPR {
		curve.FPR[i] /= float64(curve.Trials)
		curve.TPR[i] /= float64(curve.Trials)
	}
	return curve, nil
}

// TrialROC returns the K+1 cumulative (FPR, TPR) points of one trial, normalised
// by the number of null and positive cell types. A trial with every p-value
// missing returns core.ErrDegenerateMetric.
func TrialROC(pvals []float64, truth composition.GroundTruth) (fpr, tpr []float64, err error) {
	k := len(pvals)
	observed := 0
	for _, p := range pvals {
		if !math.IsNaN(p) {
			observed++
		}
	}
	if observed == 0 {
		return nil, nil, fmt.Errorf("%w: no observed p-values", core.ErrDegenerateMetric)
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := pvals[order[a]], pvals[order[b]]
		if math.IsNaN(pb) {
			return !math.IsNaN(pa)
		}
		if math.IsNaN(pa) {
			return false
		}
		return pa < pb
	})

	nPos := float64(truth.Positives())
	nNull := float64(truth.Negatives())
	fpr = make([]float64, k+1)
	tpr = make([]float64, k+1)
	var tp, fp float64
	for i, c := range order {
		if truth[c] {
			tp++
		} else {
			fp++
		}
		tpr[i+1] = tp / nPos
		fpr[i+1] = fp / nNull
	}
	return fpr, tpr, nil
}
