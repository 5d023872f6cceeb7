package metrics

import (
	"fmt"
	"math"
	"sort"

	"compbench/domain/benchmark"
	"compbench/domain/composition"
	"compbench/domain/core"
)

// AUC averages the per-trial Mann-Whitney AUC of the score 1-p between truly
// different and null cell types. Trials where dropping missing p-values leaves one
// class empty are excluded.
func AUC(tensor *benchmark.PValueTensor, test string, truth composition.GroundTruth) (Summary, error) {
	if err := validateTruth(tensor, truth); err != nil {
		return notApplicable(), err
	}
	if err := requireDiscriminable(truth); err != nil {
		return notApplicable(), err
	}
	ti, err := tensor.TestIndex(test)
	if err != nil {
		return notApplicable(), err
	}

	var m runningMean
	for s := 0; s < tensor.NSim(); s++ {
		auc, err := TrialAUC(tensor.Trial(ti, s), truth)
		m.add(auc, err == nil)
	}
	return m.summary(), nil
}

// TrialAUC computes
//
//	AUC = 1 - (R_null - n1(n1+1)/2) / (n1 n2)
//
// with n1 null and n2 positive cell types, R_null the rank sum of the null scores
// and mid-ranks for ties. A trial where either class is empty after dropping
// missing p-values returns core.ErrDegenerateMetric.
func TrialAUC(pvals []float64, truth composition.GroundTruth) (float64, error) {
	scores := make([]float64, 0, len(pvals))
	null := make([]bool, 0, len(pvals))
	for c, p := range pvals {
		if math.IsNaN(p) {
			continue
		}
		scores = append(scores, 1-p)
		null = append(null, !truth[c])
	}

	var n1, n2 int
	for _, isNull := range null {
		if isNull {
			n1++
		} else {
			n2++
		}
	}
	if n1 == 0 || n2 == 0 {
		return math.NaN(), fmt.Errorf("%w: %d null and %d positive cell types observed",
			core.ErrDegenerateMetric, n1, n2)
	}

	ranks := midRanks(scores)
	var rNull float64
	for i, isNull := range null {
		if isNull {
			rNull += ranks[i]
		}
	}
	u := rNull - float64(n1*(n1+1))/2
	return 1 - u/float64(n1*n2), nil
}

// midRanks returns 1-based ranks in ascending order, ties sharing their mean rank
func midRanks(values []float64) []float64 {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] < values[order[b]]
	})

	ranks := make([]float64, len(values))
	for i := 0; i < len(order); {
		j := i
		for j+1 < len(order) && values[order[j+1]] == values[order[i]] {
			j++
		}
		// positions i..j (0-based) share ranks i+1..j+1
		mid := float64(i+j)/2 + 1
		for t := i; t <= j; t++ {
			ranks[order[t]] = mid
		}
		i = j + 1
	}
	return ranks
}
