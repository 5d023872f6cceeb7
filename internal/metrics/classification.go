package metrics

import (
	"fmt"
	"math"

	"compbench/domain/benchmark"
	"compbench/domain/composition"
	"compbench/domain/core"
)

// Classification holds the per-trial averaged recall, precision and F1
type Classification struct {
	Recall    Summary `json:"recall"`
	Precision Summary `json:"precision"`
	F1        Summary `json:"f1"`
}

// requireDiscriminable rejects all-null and all-positive ground truth
func requireDiscriminable(truth composition.GroundTruth) error {
	if !truth.Discriminable() {
		return fmt.Errorf("%w: ground truth has %d positive and %d null cell types",
			core.ErrMetricNotApplicable, truth.Positives(), truth.Negatives())
	}
	return nil
}

// Classify calls every cell with p < alphaCut and scores the calls against truth,
// trial by trial. Missing cells are dropped from the trial; a trial whose recall or
// precision denominator is zero is excluded from that metric and from F1.
func Classify(tensor *benchmark.PValueTensor, test string, truth composition.GroundTruth, alphaCut float64) (Classification, error) {
	na := Classification{Recall: notApplicable(), Precision: notApplicable(), F1: notApplicable()}
	if err := validateAlpha(alphaCut); err != nil {
		return na, err
	}
	if err := validateTruth(tensor, truth); err != nil {
		return na, err
	}
	if err := requireDiscriminable(truth); err != nil {
		return na, err
	}
	ti, err := tensor.TestIndex(test)
	if err != nil {
		return na, err
	}

	var recall, precision, f1 runningMean
	for s := 0; s < tensor.NSim(); s++ {
		r, rok, p, pok := classifyTrial(tensor.Trial(ti, s), truth, alphaCut)
		recall.add(r, rok)
		precision.add(p, pok)
		switch {
		case !rok || !pok:
			f1.add(math.NaN(), false)
		case r+p == 0:
			f1.add(0, true)
		default:
			f1.add(2*p*r/(p+r), true)
		}
	}
	return Classification{
		Recall:    recall.summary(),
		Precision: precision.summary(),
		F1:        f1.summary(),
	}, nil
}

func classifyTrial(pvals []float64, truth composition.GroundTruth, alphaCut float64) (recall float64, recallOK bool, precision float64, precisionOK bool) {
	var tp, positives, called int
	for c, p := range pvals {
		if math.IsNaN(p) {
			continue
		}
		hit := p < alphaCut
		if truth[c] {
			positives++
			if hit {
				tp++
			}
		}
		if hit {
			called++
		}
	}
	if positives > 0 {
		recall, recallOK = float64(tp)/float64(positives), true
	}
	if called > 0 {
		precision, precisionOK = float64(tp)/float64(called), true
	}
	return
}
