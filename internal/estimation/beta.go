// Package estimation fits Beta hyperparameters to observed cell-type counts.
package estimation

import (
	"fmt"
	"math"

	"compbench/domain/composition"
	"compbench/domain/core"

	"github.com/montanaflynn/stats"
)

// relativeVarianceFloor is the smallest v/(m(1-m)) treated as real spread.
// Constant rows with non-dyadic proportions leave rounding noise far below it.
const relativeVarianceFloor = 1e-12

// RowEstimate is the method-of-moments fit for one cell type.
type RowEstimate struct {
	Alpha    float64
	Beta     float64
	Mean     float64
	Variance float64
	Samples  int
	Valid    bool
	Err      error
}

// BetaEstimate holds one RowEstimate per cell type, in row order.
type BetaEstimate struct {
	Rows []RowEstimate
}

// EstimateBetaParams matches the mean m and sample variance v of each row's
// column-normalised proportions to a Beta distribution:
//
//	cf    = m(1-m)/v - 1
//	alpha = m * cf
//	beta  = (1-m) * cf
//
// Rows whose variance is zero up to rounding (v <= 1e-12 * m(1-m)), cf <= 0 or fewer than two usable columns are returned with
// Valid=false and an Err wrapping core.ErrDegenerateEstimation. Columns summing
// to zero carry no proportion information and are skipped.
func EstimateBetaParams(counts *composition.CountMatrix) BetaEstimate {
	k, j := counts.Dims()
	sums := counts.ColSums()

	est := BetaEstimate{Rows: make([]RowEstimate, k)}
	for r := 0; r < k; r++ {
		props := make([]float64, 0, j)
		for c := 0; c < j; c++ {
			if sums[c] > 0 {
				props = append(props, counts.At(r, c)/sums[c])
			}
		}
		est.Rows[r] = estimateRow(r, props)
	}
	return est
}

func estimateRow(row int, props []float64) RowEstimate {
	est := RowEstimate{Samples: len(props)}
	if len(props) < 2 {
		est.Err = core.NewEstimationError(row, fmt.Sprintf("%d usable samples", len(props)))
		return est
	}

	m, err := stats.Mean(props)
	if err != nil {
		est.Err = core.NewEstimationError(row, err.Error())
		return est
	}
	v, err := stats.SampleVariance(props)
	if err != nil {
		est.Err = core.NewEstimationError(row, err.Error())
		return est
	}
	est.Mean = m
	est.Variance = v

	if v <= relativeVarianceFloor*m*(1-m) {
		est.Err = core.NewEstimationError(row, fmt.Sprintf("zero variance (%.3g)", v))
		return est
	}

	commonFactor := m*(1-m)/v - 1
	if math.IsInf(commonFactor, 0) || math.IsNaN(commonFactor) {
		est.Err = core.NewEstimationError(row, "non-finite concentration")
		return est
	}
	est.Alpha = m * commonFactor
	est.Beta = (1 - m) * commonFactor

	if commonFactor <= 0 {
		est.Err = core.NewEstimationError(row,
			fmt.Sprintf("variance %.3g exceeds the Beta bound m(1-m)=%.3g", v, m*(1-m)))
		return est
	}
	if !(est.Alpha > 0) || !(est.Beta > 0) {
		est.Err = core.NewEstimationError(row, fmt.Sprintf("mean %.3g on the boundary", m))
		return est
	}
	est.Valid = true
	return est
}

// Invalid returns the indices of rows whose estimate is unusable.
func (e BetaEstimate) Invalid() []int {
	var idx []int
	for i, r := range e.Rows {
		if !r.Valid {
			idx = append(idx, i)
		}
	}
	return idx
}

// AllValid reports whether every row produced a usable estimate.
func (e BetaEstimate) AllValid() bool {
	return len(e.Invalid()) == 0
}

// Params returns strictly positive hyperparameters, substituting fallback for
// invalid rows. The second return value lists the substituted rows.
func (e BetaEstimate) Params(fallback composition.BetaParams) (composition.BetaParams, []int, error) {
	k := len(e.Rows)
	out := composition.BetaParams{Alpha: make([]float64, k), Beta: make([]float64, k)}
	var replaced []int
	for i, r := range e.Rows {
		if r.Valid {
			out.Alpha[i] = r.Alpha
			out.Beta[i] = r.Beta
			continue
		}
		if len(fallback.Alpha) != k || len(fallback.Beta) != k {
			return composition.BetaParams{}, nil, fmt.Errorf("%w: row %d needs a fallback but %d were supplied",
				r.Err, i, len(fallback.Alpha))
		}
		out.Alpha[i] = fallback.Alpha[i]
		out.Beta[i] = fallback.Beta[i]
		replaced = append(replaced, i)
	}
	if err := out.Validate(k); err != nil {
		return composition.BetaParams{}, nil, err
	}
	return out, replaced, nil
}
