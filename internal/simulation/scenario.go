package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"

	"compbench/domain/composition"
	"compbench/domain/core"
)

// Scenario fixes the true composition of each group and the Beta hyperparameters
// derived from it. Truth marks the cell types whose proportion differs by construction.
type Scenario struct {
	Name        string
	Props       []composition.Proportions // one per group; Props[0] is the baseline
	Params      []composition.BetaParams  // one per group
	FoldChanges []float64
	Truth       composition.GroundTruth
	TrueDiff    bool
}

// NullScenario shares one composition across both groups. a holds one
// concentration per cell type or a single broadcast value; beta = a(1-p)/p.
func NullScenario(name string, props composition.Proportions, a []float64) (*Scenario, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	params, err := composition.BetaFromProportions(a, props)
	if err != nil {
		return nil, err
	}
	return &Scenario{
		Name:   name,
		Props:  []composition.Proportions{props, props},
		Params: []composition.BetaParams{params, params},
		Truth:  make(composition.GroundTruth, props.Len()),
	}, nil
}

// FoldChangeScenario multiplies the baseline by foldChanges for group 2 and
// renormalises so the group-2 vector sums to 1. Ground truth is read off the fold
// changes (fc != 1), not off the renormalised proportions.
func FoldChangeScenario(name string, props composition.Proportions, foldChanges []float64, a []float64) (*Scenario, error) {
	if err := props.Validate(); err != nil {
		return nil, err
	}
	if len(foldChanges) != props.Len() {
		return nil, core.NewConfigurationError("foldChanges",
			fmt.Sprintf("%d fold changes for %d cell types", len(foldChanges), props.Len()))
	}

	scaled := make(composition.Proportions, props.Len())
	truth := make(composition.GroundTruth, props.Len())
	for k, fc := range foldChanges {
		if !(fc > 0) || math.IsInf(fc, 0) {
			return nil, core.NewConfigurationError("foldChanges", fmt.Sprintf("entry %d is %g", k, fc))
		}
		scaled[k] = props[k] * fc
		truth[k] = math.Abs(fc-1) > 1e-12
	}
	props2 := scaled.Normalize()
	if err := props2.Validate(); err != nil {
		return nil, err
	}

	params1, err := composition.BetaFromProportions(a, props)
	if err != nil {
		return nil, err
	}
	params2, err := composition.BetaFromProportions(a, props2)
	if err != nil {
		return nil, err
	}

	fcs := make([]float64, len(foldChanges))
	copy(fcs, foldChanges)
	return &Scenario{
		Name:        name,
		Props:       []composition.Proportions{props, props2},
		Params:      []composition.BetaParams{params1, params2},
		FoldChanges: fcs,
		Truth:       truth,
		TrueDiff:    truth.Positives() > 0,
	}, nil
}

// ScenarioFromParams builds a null scenario directly from Beta hyperparameters,
// e.g. ones estimated from an observed matrix. The baseline composition is the
// normalised vector of Beta means.
func ScenarioFromParams(name string, params composition.BetaParams) (*Scenario, error) {
	if err := params.Validate(params.Len()); err != nil {
		return nil, err
	}
	means := make(composition.Proportions, params.Len())
	for k := range means {
		means[k] = params.Alpha[k] / (params.Alpha[k] + params.Beta[k])
	}
	props := means.Normalize()
	return &Scenario{
		Name:   name,
		Props:  []composition.Proportions{props, props},
		Params: []composition.BetaParams{params, params},
		Truth:  make(composition.GroundTruth, params.Len()),
	}, nil
}

// CellTypes returns K
func (s *Scenario) CellTypes() int {
	return s.Props[0].Len()
}

// Validate checks every group's composition and hyperparameters.
func (s *Scenario) Validate() error {
	if len(s.Props) < 2 || len(s.Params) != len(s.Props) {
		return core.NewConfigurationError("scenario", "needs one composition and one parameter set per group")
	}
	k := s.CellTypes()
	for g, props := range s.Props {
		if props.Len() != k {
			return core.NewConfigurationError("scenario", fmt.Sprintf("group %d has %d cell types, expected %d", g, props.Len(), k))
		}
		if err := props.Validate(); err != nil {
			return err
		}
		if err := s.Params[g].Validate(k); err != nil {
			return err
		}
	}
	if len(s.Truth) != k {
		return core.NewConfigurationError("scenario", fmt.Sprintf("ground truth has %d entries, expected %d", len(s.Truth), k))
	}
	return nil
}

// Simulate draws one matrix for the given design. Balanced two-group designs go
// through SimulateNull / SimulateTrueDiff; anything else through SimulateGroups.
func (s *Scenario) Simulate(sim *Simulator, rng *rand.Rand, groups composition.Groups) (*composition.CountMatrix, error) {
	nSamples := len(groups)
	if !s.TrueDiff {
		return sim.SimulateNull(rng, s.Props[0], nSamples, s.Params[0].Alpha, s.Params[0].Beta)
	}
	if groups.IsHalves() {
		return sim.SimulateTrueDiff(rng, s.Props[0], nSamples, s.Params[0].Alpha, s.Params[0].Beta, s.Params[1].Beta)
	}
	return sim.SimulateGroups(rng, s.Props[0], groups, s.Params)
}

// Describe returns the parameters that identify the scenario for hashing.
func (s *Scenario) Describe() map[string]interface{} {
	return map[string]interface{}{
		"scenario":     s.Name,
		"props":        s.Props,
		"alpha":        s.Params[0].Alpha,
		"beta":         betas(s.Params),
		"fold_changes": s.FoldChanges,
		"true_diff":    s.TrueDiff,
	}
}

func betas(params []composition.BetaParams) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = p.Beta
	}
	return out
}
