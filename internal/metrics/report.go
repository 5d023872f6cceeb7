package metrics

import (
	"fmt"
	"strings"

	"compbench/domain/benchmark"
	"compbench/domain/composition"
	"compbench/domain/core"
)

// TestReport collects every metric for one adapter
type TestReport struct {
	Name            string     `json:"name"`
	RejectionRates  []CellRate `json:"rejection_rates"`
	TypeIError      Summary    `json:"type_i_error"`
	Recall          Summary    `json:"recall"`
	Precision       Summary    `json:"precision"`
	F1              Summary    `json:"f1"`
	AUC             Summary    `json:"auc"`
	ROC             *ROCCurve  `json:"roc,omitempty"`
	AdapterFailures int        `json:"adapter_failures"`
	MissingPValues  int        `json:"missing_p_values"`
}

// Report is the in-memory metrics table of one run, keyed by test name
type Report struct {
	RunID         core.RunID              `json:"run_id"`
	Scenario      string                  `json:"scenario"`
	NSamples      int                     `json:"n_samples"`
	NSim          int                     `json:"nsim"`
	AlphaCut      float64                 `json:"alpha_cut"`
	Truth         composition.GroundTruth `json:"truth"`
	Discriminable bool                    `json:"discriminable"`
	Tests         []TestReport            `json:"tests"`
}

// Test looks a test report up by name
func (r *Report) Test(name string) (TestReport, bool) {
	for _, t := range r.Tests {
		if t.Name == name {
			return t, true
		}
	}
	return TestReport{}, false
}

// Aggregator computes reports from run results
type Aggregator struct{}

// NewAggregator creates an aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Report computes every metric for every test in the run. Metrics that the ground
// truth makes meaningless are returned with Applicable=false rather than as errors.
func (a *Aggregator) Report(result *benchmark.RunResult, truth composition.GroundTruth, alphaCut float64) (*Report, error) {
	if result == nil || result.PValues == nil {
		return nil, core.NewConfigurationError("result", "missing p-values")
	}
	if err := validateAlpha(alphaCut); err != nil {
		return nil, err
	}
	tensor := result.PValues
	if err := validateTruth(tensor, truth); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:         result.RunID,
		Scenario:      result.Scenario,
		NSamples:      result.NSamples,
		NSim:          result.NSim,
		AlphaCut:      alphaCut,
		Truth:         truth,
		Discriminable: truth.Discriminable(),
		Tests:         make([]TestReport, 0, len(tensor.Tests())),
	}
	for ti, name := range tensor.Tests() {
		tr, err := a.testReport(tensor, ti, name, truth, alphaCut)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", name, err)
		}
		report.Tests = append(report.Tests, tr)
	}
	return report, nil
}

func (a *Aggregator) testReport(tensor *benchmark.PValueTensor, ti int, name string, truth composition.GroundTruth, alphaCut float64) (TestReport, error) {
	tr := TestReport{
		Name:            name,
		AdapterFailures: tensor.Failures(ti),
		MissingPValues:  tensor.Missing(ti),
	}

	rates, err := RejectionRates(tensor, name, truth, alphaCut)
	if err != nil {
		return tr, err
	}
	tr.RejectionRates = rates

	tr.TypeIError, err = TypeIError(tensor, name, truth, alphaCut)
	if err != nil && !core.IsMetricError(err) {
		return tr, err
	}

	cls, err := Classify(tensor, name, truth, alphaCut)
	if err != nil && !core.IsMetricError(err) {
		return tr, err
	}
	tr.Recall, tr.Precision, tr.F1 = cls.Recall, cls.Precision, cls.F1

	tr.AUC, err = AUC(tensor, name, truth)
	if err != nil && !core.IsMetricError(err) {
		return tr, err
	}

	roc, err := ROC(tensor, name, truth)
	if err != nil && !core.IsMetricError(err) {
		return tr, err
	}
	tr.ROC = roc
	return tr, nil
}

// Table renders the report as fixed-width text, one row per test
func (r *Report) Table() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-18s %8s %8s %8s %8s %8s %6s %6s\n",
		"test", "typeI", "recall", "prec", "f1", "auc", "fail", "miss")
	for _, t := range r.Tests {
		fmt.Fprintf(&b, "%-18s %8s %8s %8s %8s %8s %6d %6d\n",
			t.Name, cell(t.TypeIError), cell(t.Recall), cell(t.Precision), cell(t.F1), cell(t.AUC),
			t.AdapterFailures, t.MissingPValues)
	}
	return b.String()
}

func cell(s Summary) string {
	if !s.Applicable {
		return "n/a"
	}
	if s.Trials == 0 {
		return "-"
	}
	return fmt.Sprintf("%.4f", s.Mean)
}
