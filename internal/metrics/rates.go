// Package metrics turns a p-value tensor and ground-truth labels into calibration
// and discrimination metrics: rejection rates, type-I error, recall, precision,
// F1, Mann-Whitney AUC and averaged ROC curves.
package metrics

import (
	"fmt"
	"math"

	"compbench/domain/benchmark"
	"compbench/domain/composition"
	"compbench/domain/core"
)

// DefaultAlphaCut is the default significance threshold
const DefaultAlphaCut = 0.05

// Summary is a mean over trials. Trials counts the contributions to Mean and
// Excluded the trials for which the metric was undefined. Applicable is false when
// the ground truth makes the metric meaningless; Mean is then NaN.
type Summary struct {
	Mean       float64 `json:"mean"`
	Trials     int     `json:"trials"`
	Excluded   int     `json:"excluded"`
	Applicable bool    `json:"applicable"`
}

func notApplicable() Summary {
	return Summary{Mean: math.NaN()}
}

// runningMean accumulates per-trial values and exclusions
type runningMean struct {
	sum      float64
	n        int
	excluded int
}

func (m *runningMean) add(v float64, ok bool) {
	if !ok || math.IsNaN(v) {
		m.excluded++
		return
	}
	m.sum += v
	m.n++
}

func (m *runningMean) summary() Summary {
	s := Summary{Trials: m.n, Excluded: m.excluded, Applicable: true, Mean: math.NaN()}
	if m.n > 0 {
		s.Mean = m.sum / float64(m.n)
	}
	return s
}

// CellRate is the fraction of trials with p < alphaCut for one cell type. Missing
// p-values are left out of both numerator and denominator.
type CellRate struct {
	Cell       int     `json:"cell"`
	Label      string  `json:"label"`
	Rate       float64 `json:"rate"`
	Rejections int     `json:"rejections"`
	Trials     int     `json:"trials"`
	Missing    int     `json:"missing"`
	Null       bool    `json:"null"`
}

func validateAlpha(alphaCut float64) error {
	if !(alphaCut > 0 && alphaCut < 1) {
		return core.NewConfigurationError("alphaCut", fmt.Sprintf("must lie in (0, 1), got %g", alphaCut))
	}
	return nil
}

func validateTruth(tensor *benchmark.PValueTensor, truth composition.GroundTruth) error {
	if len(truth) != tensor.CellTypes() {
		return core.NewConfigurationError("truth",
			fmt.Sprintf("%d labels for %d cell types", len(truth), tensor.CellTypes()))
	}
	return nil
}

// RejectionRates returns one CellRate per cell type. truth may be nil, in which
// case every cell is reported as null.
func RejectionRates(tensor *benchmark.PValueTensor, test string, truth composition.GroundTruth, alphaCut float64) ([]CellRate, error) {
	if err := validateAlpha(alphaCut); err != nil {
		return nil, err
	}
	if truth != nil {
		if err := validateTruth(tensor, truth); err != nil {
			return nil, err
		}
	}
	ti, err := tensor.TestIndex(test)
	if err != nil {
		return nil, err
	}

	k := tensor.CellTypes()
	rates := make([]CellRate, k)
	for c := 0; c < k; c++ {
		rate := CellRate{Cell: c, Label: composition.CellLabel(c), Null: truth == nil || !truth[c]}
		for _, p := range tensor.Cell(ti, c) {
			if math.IsNaN(p) {
				rate.Missing++
				continue
			}
			rate.Trials++
			if p < alphaCut {
				rate.Rejections++
			}
		}
		rate.Rate = math.NaN()
		if rate.Trials > 0 {
			rate.Rate = float64(rate.Rejections) / float64(rate.Trials)
		}
		rates[c] = rate
	}
	return rates, nil
}

// TypeIError pools the rejection rate over all null cell types and trials.
// Mean is rejections over non-missing null p-values; Trials counts those p-values
// and Excluded the missing ones. It is not applicable when no cell type is null.
func TypeIError(tensor *benchmark.PValueTensor, test string, truth composition.GroundTruth, alphaCut float64) (Summary, error) {
	if err := validateTruth(tensor, truth); err != nil {
		return Summary{}, err
	}
	if truth.Negatives() == 0 {
		return notApplicable(), fmt.Errorf("%w: no null cell types", core.ErrMetricNotApplicable)
	}
	rates, err := RejectionRates(tensor, test, truth, alphaCut)
	if err != nil {
		return Summary{}, err
	}

	var rejections, trials, missing int
	for _, r := range rates {
		if !r.Null {
			continue
		}
		rejections += r.Rejections
		trials += r.Trials
		missing += r.Missing
	}
	s := Summary{Trials: trials, Excluded: missing, Applicable: true, Mean: math.NaN()}
	if trials > 0 {
		s.Mean = float64(rejections) / float64(trials)
	}
	return s, nil
}
