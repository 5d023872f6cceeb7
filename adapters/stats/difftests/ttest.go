package difftests

import (
	"context"
	"fmt"
	"math"

	"compbench/domain/composition"
)

// DefaultPseudocount replaces zero counts before log-ratio transforms
const DefaultPseudocount = 0.5

// ProportionTTest runs Welch's t-test on column-normalised proportions
type ProportionTTest struct{}

// NewProportionTTest creates the proportion t-test
func NewProportionTTest() *ProportionTTest {
	return &ProportionTTest{}
}

// Name returns the adapter name
func (t *ProportionTTest) Name() string {
	return "ttest_prop"
}

// Description returns a human-readable description
func (t *ProportionTTest) Description() string {
	return "Welch t-test on per-sample proportions"
}

// Test runs one Welch test per cell type
func (t *ProportionTTest) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	idx, err := splitGroups(counts, groups)
	if err != nil {
		return nil, err
	}
	if err := requireTwoGroups(t.Name(), idx); err != nil {
		return nil, err
	}
	return welchPerRow(ctx, counts.Proportions(), idx)
}

// LogRatioTTest runs Welch's t-test on centred log-ratios. It needs strictly
// positive counts and advertises a pseudocount so the runner can substitute zeros.
type LogRatioTTest struct {
	pseudocount float64
}

// NewLogRatioTTest creates the CLR t-test with the default pseudocount
func NewLogRatioTTest() *LogRatioTTest {
	return &LogRatioTTest{pseudocount: DefaultPseudocount}
}

// Name returns the adapter name
func (t *LogRatioTTest) Name() string {
	return "ttest_logratio"
}

// Description returns a human-readable description
func (t *LogRatioTTest) Description() string {
	return "Welch t-test on centred log-ratio transformed counts"
}

// Pseudocount is the value zero counts are replaced with
func (t *LogRatioTTest) Pseudocount() float64 {
	return t.pseudocount
}

// Test transforms each sample to CLR coordinates and runs one Welch test per cell type
func (t *LogRatioTTest) Test(ctx context.Context, counts *composition.CountMatrix, groups composition.Groups) ([]float64, error) {
	idx, err := splitGroups(counts, groups)
	if err != nil {
		return nil, err
	}
	if err := requireTwoGroups(t.Name(), idx); err != nil {
		return nil, err
	}
	clr, err := centredLogRatio(counts)
	if err != nil {
		return nil, err
	}
	return welchPerRow(ctx, clr, idx)
}

// centredLogRatio returns log(x_kj) minus the column mean of the logs
func centredLogRatio(counts *composition.CountMatrix) ([][]float64, error) {
	k, j := counts.Dims()
	out := make([][]float64, k)
	for r := range out {
		out[r] = make([]float64, j)
	}
	for c := 0; c < j; c++ {
		var meanLog float64
		for r := 0; r < k; r++ {
			v := counts.At(r, c)
			if v <= 0 {
				return nil, fmt.Errorf("count %g at (%d, %d): log-ratio needs positive counts", v, r, c)
			}
			out[r][c] = math.Log(v)
			meanLog += out[r][c]
		}
		meanLog /= float64(k)
		for r := 0; r < k; r++ {
			out[r][c] -= meanLog
		}
	}
	return out, nil
}

func welchPerRow(ctx context.Context, rows [][]float64, idx [][]int) ([]float64, error) {
	pvals := make([]float64, len(rows))
	for r, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pvals[r] = welchTTest(pick(row, idx[0]), pick(row, idx[1]))
	}
	return pvals, nil
}
