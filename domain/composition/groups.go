package composition

import (
	"fmt"

	"compbench/domain/core"
)

// Groups assigns each of the J samples to an experimental group 0..G-1.
type Groups []int

// Halves is the two-group layout used everywhere a design is not given
// explicitly: the first nSamples/2 (rounded down) samples are group 0, the rest
// group 1. With balanced set an odd nSamples is rejected with core.ErrOddSampleCount.
func Halves(nSamples int, balanced bool) (Groups, error) {
	if nSamples < 2 {
		return nil, fmt.Errorf("%w: %d samples cannot form two groups", core.ErrInvalidGroups, nSamples)
	}
	if balanced && nSamples%2 != 0 {
		return nil, fmt.Errorf("%w: %d samples cannot be split into two equal groups",
			core.ErrOddSampleCount, nSamples)
	}
	groups := make(Groups, nSamples)
	for j := nSamples / 2; j < nSamples; j++ {
		groups[j] = 1
	}
	return groups, nil
}

// IsHalves reports whether g is the balanced Halves layout.
func (g Groups) IsHalves() bool {
	n := len(g)
	if n < 2 || n%2 != 0 {
		return false
	}
	for j, label := range g {
		if label != j/(n/2) {
			return false
		}
	}
	return true
}

// BalancedGroups puts the first n/g samples in group 0, the next n/g in group 1, and so on.
// Two groups follow Halves.
func BalancedGroups(nSamples, nGroups int) (Groups, error) {
	if nGroups < 2 {
		return nil, core.NewConfigurationError("groups", "at least two groups are required")
	}
	if nGroups == 2 {
		return Halves(nSamples, true)
	}
	if nSamples < nGroups || nSamples%nGroups != 0 {
		return nil, fmt.Errorf("%w: %d samples cannot be split into %d equal groups",
			core.ErrInvalidGroups, nSamples, nGroups)
	}
	size := nSamples / nGroups
	groups := make(Groups, nSamples)
	for j := range groups {
		groups[j] = j / size
	}
	return groups, nil
}

// NumGroups returns the number of distinct groups (max label + 1).
func (g Groups) NumGroups() int {
	maxLabel := -1
	for _, label := range g {
		if label > maxLabel {
			maxLabel = label
		}
	}
	return maxLabel + 1
}

// Indices returns the sample indices belonging to group label.
func (g Groups) Indices(label int) []int {
	var idx []int
	for j, l := range g {
		if l == label {
			idx = append(idx, j)
		}
	}
	return idx
}

// Sizes returns the number of samples per group.
func (g Groups) Sizes() []int {
	sizes := make([]int, g.NumGroups())
	for _, l := range g {
		sizes[l]++
	}
	return sizes
}

// Validate checks the assignment against the expected sample count: labels must be
// dense in 0..G-1, G >= 2, and every group non-empty.
func (g Groups) Validate(nSamples int) error {
	if len(g) != nSamples {
		return fmt.Errorf("%w: %d labels for %d samples", core.ErrInvalidGroups, len(g), nSamples)
	}
	for j, l := range g {
		if l < 0 {
			return fmt.Errorf("%w: sample %d has negative label %d", core.ErrInvalidGroups, j, l)
		}
	}
	if g.NumGroups() < 2 {
		return fmt.Errorf("%w: at least two groups are required", core.ErrInvalidGroups)
	}
	for label, size := range g.Sizes() {
		if size == 0 {
			return fmt.Errorf("%w: group %d is empty", core.ErrInvalidGroups, label)
		}
	}
	return nil
}
