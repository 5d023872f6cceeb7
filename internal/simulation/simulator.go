// Package simulation draws cell-type count matrices from the hierarchical
// Negative-Binomial / Beta / Binomial model.
package simulation

import (
	"fmt"
	"math/rand/v2"

	"compbench/domain/composition"
	"compbench/domain/core"

	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultDepth is the mean number of cells sequenced per sample
	DefaultDepth = 5000.0
	// DefaultDispersion is the negative-binomial size parameter of the depth draw
	DefaultDispersion = 20.0
)

// Simulator holds the sequencing-depth model shared by every trial. It is read-only
// after construction and safe to use from concurrent trials, each with its own rng.
type Simulator struct {
	Depth      float64
	Dispersion float64
}

// NewSimulator creates a simulator with the given mean depth and NB dispersion
func NewSimulator(depth, dispersion float64) (*Simulator, error) {
	if !(depth > 0) {
		return nil, core.NewConfigurationError("depth", fmt.Sprintf("must be positive, got %g", depth))
	}
	if !(dispersion > 0) {
		return nil, core.NewConfigurationError("dispersion", fmt.Sprintf("must be positive, got %g", dispersion))
	}
	return &Simulator{Depth: depth, Dispersion: dispersion}, nil
}

// DefaultSimulator uses depth 5000 and dispersion 20
func DefaultSimulator() *Simulator {
	return &Simulator{Depth: DefaultDepth, Dispersion: DefaultDispersion}
}

// DrawDepths draws n sample depths from NB(mean=Depth, size=Dispersion) as a
// Gamma-Poisson mixture.
func (s *Simulator) DrawDepths(rng *rand.Rand, n int) []int {
	gamma := distuv.Gamma{Alpha: s.Dispersion, Beta: s.Dispersion / s.Depth, Src: rng}
	depths := make([]int, n)
	for j := range depths {
		lambda := gamma.Rand()
		depths[j] = int(distuv.Poisson{Lambda: lambda, Src: rng}.Rand())
	}
	return depths
}

// SimulateNull draws one matrix in which every sample shares Beta(a_k, b_k).
// a and b hold one value per cell type, or a single value broadcast to all of them.
// props only fixes K and is validated; the draws depend on a and b alone, whose
// ratio already encodes the mean proportion.
func (s *Simulator) SimulateNull(rng *rand.Rand, props composition.Proportions, nSamples int, a, b []float64) (*composition.CountMatrix, error) {
	if err := s.validate(props, nSamples); err != nil {
		return nil, err
	}
	params, err := pairParams(a, b, props.Len())
	if err != nil {
		return nil, err
	}
	return s.simulate(rng, props.Len(), nSamples, func(int) composition.BetaParams { return params }), nil
}

// SimulateTrueDiff draws one matrix whose first nSamples/2 columns use
// Beta(a_k, bGroup1_k) and whose remaining columns use Beta(a_k, bGroup2_k).
func (s *Simulator) SimulateTrueDiff(rng *rand.Rand, props composition.Proportions, nSamples int, a, bGroup1, bGroup2 []float64) (*composition.CountMatrix, error) {
	if nSamples%2 != 0 {
		return nil, fmt.Errorf("%w: %d", core.ErrOddSampleCount, nSamples)
	}
	if err := s.validate(props, nSamples); err != nil {
		return nil, err
	}
	group1, err := pairParams(a, bGroup1, props.Len())
	if err != nil {
		return nil, err
	}
	group2, err := pairParams(a, bGroup2, props.Len())
	if err != nil {
		return nil, err
	}
	half := nSamples / 2
	return s.simulate(rng, props.Len(), nSamples, func(j int) composition.BetaParams {
		if j < half {
			return group1
		}
		return group2
	}), nil
}

// SimulateGroups draws one matrix where sample j uses params[groups[j]]. It
// generalises SimulateTrueDiff to arbitrary, possibly unbalanced, designs.
func (s *Simulator) SimulateGroups(rng *rand.Rand, props composition.Proportions, groups composition.Groups, params []composition.BetaParams) (*composition.CountMatrix, error) {
	if err := s.validate(props, len(groups)); err != nil {
		return nil, err
	}
	if err := groups.Validate(len(groups)); err != nil {
		return nil, err
	}
	if len(params) < groups.NumGroups() {
		return nil, fmt.Errorf("%w: %d groups but %d parameter sets",
			core.ErrInvalidHyperParams, groups.NumGroups(), len(params))
	}
	for _, p := range params {
		if err := p.Validate(props.Len()); err != nil {
			return nil, err
		}
	}
	return s.simulate(rng, props.Len(), len(groups), func(j int) composition.BetaParams {
		return params[groups[j]]
	}), nil
}

// simulate runs the three stochastic layers: depths, latent proportions, counts.
// Each count is an independent binomial, so columns only approximately sum to depth.
func (s *Simulator) simulate(rng *rand.Rand, k, nSamples int, paramsFor func(j int) composition.BetaParams) *composition.CountMatrix {
	counts := composition.NewCountMatrix(k, nSamples)
	copy(counts.Depths, s.DrawDepths(rng, nSamples))

	latent := make([][]float64, k)
	for c := 0; c < k; c++ {
		latent[c] = make([]float64, nSamples)
		for j := 0; j < nSamples; j++ {
			p := paramsFor(j)
			latent[c][j] = distuv.Beta{Alpha: p.Alpha[c], Beta: p.Beta[c], Src: rng}.Rand()
		}
	}

	for c := 0; c < k; c++ {
		for j := 0; j < nSamples; j++ {
			draw := distuv.Binomial{N: float64(counts.Depths[j]), P: latent[c][j], Src: rng}.Rand()
			counts.Set(c, j, draw)
		}
	}
	return counts
}

func (s *Simulator) validate(props composition.Proportions, nSamples int) error {
	if err := props.Validate(); err != nil {
		return err
	}
	if nSamples < 2 {
		return core.NewConfigurationError("nSamples", fmt.Sprintf("need at least 2 samples, got %d", nSamples))
	}
	return nil
}

// pairParams expands a and b to k entries and validates the pairs.
func pairParams(a, b []float64, k int) (composition.BetaParams, error) {
	params := composition.BetaParams{Alpha: expand(a, k), Beta: expand(b, k)}
	if err := params.Validate(k); err != nil {
		return composition.BetaParams{}, err
	}
	return params, nil
}

func expand(v []float64, k int) []float64 {
	if len(v) != 1 {
		return v
	}
	out := make([]float64, k)
	for i := range out {
		out[i] = v[0]
	}
	return out
}
