package composition

import (
	"testing"

	"compbench/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProportions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		props   Proportions
		wantErr bool
	}{
		{"valid", Proportions{0.2, 0.8}, false},
		{"within tolerance", Proportions{0.2, 0.8 + 1e-9}, false},
		{"zero entry", Proportions{0, 1}, true},
		{"negative entry", Proportions{-0.1, 1.1}, true},
		{"does not sum to one", Proportions{0.2, 0.7}, true},
		{"single cell type", Proportions{1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.props.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, core.IsConfigurationError(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProportions_Normalize(t *testing.T) {
	p := Proportions{1, 3}
	n := p.Normalize()
	assert.InDelta(t, 0.25, n[0], 1e-12)
	assert.InDelta(t, 0.75, n[1], 1e-12)
	assert.Equal(t, 1.0, p[0], "receiver must not be modified")
}

func TestBetaFromProportions(t *testing.T) {
	params, err := BetaFromProportions([]float64{10}, Proportions{0.2, 0.8})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 10}, params.Alpha)
	assert.InDelta(t, 40, params.Beta[0], 1e-9)
	assert.InDelta(t, 2.5, params.Beta[1], 1e-9)

	_, err = BetaFromProportions([]float64{1, 2, 3}, Proportions{0.2, 0.8})
	assert.ErrorIs(t, err, core.ErrInvalidHyperParams)
}

func TestBetaParams_Validate(t *testing.T) {
	assert.NoError(t, Broadcast(1, 2, 3).Validate(3))
	assert.ErrorIs(t, Broadcast(1, 2, 3).Validate(4), core.ErrInvalidHyperParams)
	assert.ErrorIs(t, Broadcast(-1, 2, 3).Validate(3), core.ErrInvalidHyperParams)
	assert.ErrorIs(t, Broadcast(1, 0, 3).Validate(3), core.ErrInvalidHyperParams)
}

func TestGroundTruth(t *testing.T) {
	truth := GroundTruth{true, false, false}
	assert.Equal(t, 1, truth.Positives())
	assert.Equal(t, 2, truth.Negatives())
	assert.False(t, truth.AllNull())
	assert.True(t, truth.Discriminable())

	assert.True(t, GroundTruth{false, false}.AllNull())
	assert.False(t, GroundTruth{false, false}.Discriminable())
	assert.False(t, GroundTruth{true, true}.Discriminable())
}

func TestBalancedGroups(t *testing.T) {
	groups, err := BalancedGroups(10, 2)
	require.NoError(t, err)
	assert.Equal(t, Groups{0, 0, 0, 0, 0, 1, 1, 1, 1, 1}, groups)
	assert.Equal(t, 2, groups.NumGroups())
	assert.Equal(t, []int{5, 6, 7, 8, 9}, groups.Indices(1))
	assert.Equal(t, []int{5, 5}, groups.Sizes())
	assert.NoError(t, groups.Validate(10))

	_, err = BalancedGroups(9, 2)
	assert.ErrorIs(t, err, core.ErrOddSampleCount)
	_, err = BalancedGroups(8, 3)
	assert.ErrorIs(t, err, core.ErrInvalidGroups)

	three, err := BalancedGroups(9, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, three.NumGroups())
}

func TestHalves(t *testing.T) {
	odd, err := Halves(5, false)
	require.NoError(t, err)
	assert.Equal(t, Groups{0, 0, 1, 1, 1}, odd)
	assert.False(t, odd.IsHalves())

	_, err = Halves(5, true)
	assert.ErrorIs(t, err, core.ErrOddSampleCount)
	_, err = Halves(1, false)
	assert.ErrorIs(t, err, core.ErrInvalidGroups)

	even, err := Halves(6, true)
	require.NoError(t, err)
	balanced, err := BalancedGroups(6, 2)
	require.NoError(t, err)
	assert.Equal(t, balanced, even)
	assert.True(t, even.IsHalves())
	assert.False(t, Groups{0, 1, 0, 1}.IsHalves())
}

func TestGroups_Validate(t *testing.T) {
	assert.ErrorIs(t, Groups{0, 0, 0}.Validate(3), core.ErrInvalidGroups)
	assert.ErrorIs(t, Groups{0, 2, 2}.Validate(3), core.ErrInvalidGroups)
	assert.ErrorIs(t, Groups{0, 1}.Validate(3), core.ErrInvalidGroups)
	assert.ErrorIs(t, Groups{0, -1}.Validate(2), core.ErrInvalidGroups)
}

func TestCountMatrix(t *testing.T) {
	m, err := CountMatrixFromRows([][]float64{
		{0, 2, 5},
		{10, 8, 5},
	})
	require.NoError(t, err)

	k, j := m.Dims()
	assert.Equal(t, 2, k)
	assert.Equal(t, 3, j)
	assert.Equal(t, []string{"c0", "c1"}, m.Labels)
	assert.Equal(t, []int{10, 10, 10}, m.Depths)
	assert.Equal(t, []float64{0, 2, 5}, m.Row(0))
	assert.Equal(t, []float64{2, 8}, m.Col(1))
	assert.True(t, m.HasZeros())

	props := m.Proportions()
	assert.InDelta(t, 0.2, props[0][1], 1e-12)
	assert.InDelta(t, 0.5, props[1][2], 1e-12)

	replaced := m.WithZeroReplaced(0.5)
	assert.Equal(t, 0.5, replaced.At(0, 0))
	assert.Equal(t, 0.0, m.At(0, 0), "zero replacement must work on a private copy")
	assert.False(t, replaced.HasZeros())

	_, err = CountMatrixFromRows([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}
