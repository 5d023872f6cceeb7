package container

import (
	"testing"

	"compbench/internal"
	"compbench/internal/config"
	"compbench/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWiresDefaultGraph(t *testing.T) {
	cfg := config.Default()
	c, err := New(cfg, WithLogger(internal.NewNopLogger()))
	require.NoError(t, err)

	assert.Equal(t, 8, c.Registry.Len())
	assert.NotNil(t, c.Simulator)
	assert.NotNil(t, c.Runner)
	assert.NotNil(t, c.Service)
	assert.Nil(t, c.ProportionSource())
}

func TestNewRestrictsTests(t *testing.T) {
	c, err := New(config.Default(),
		WithLogger(internal.NewNopLogger()),
		WithTests("ttest_prop", "chisq_prop"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ttest_prop", "chisq_prop"}, c.Registry.Names())

	_, err = New(config.Default(), WithTests("missing"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	cfg := config.Default()
	cfg.Metrics.AlphaCut = 1.5
	_, err = New(cfg)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestProportionSourceFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Data.CountsFile = "counts.csv"
	c, err := New(cfg, WithLogger(internal.NewNopLogger()))
	require.NoError(t, err)
	assert.NotNil(t, c.ProportionSource())
}
