package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors abort a run before any trial executes
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrOddSampleCount       = fmt.Errorf("%w: odd sample count", ErrInvalidConfiguration)
	ErrInvalidProportions   = fmt.Errorf("%w: invalid proportions", ErrInvalidConfiguration)
	ErrInvalidHyperParams   = fmt.Errorf("%w: invalid beta hyperparameters", ErrInvalidConfiguration)
	ErrInvalidGroups        = fmt.Errorf("%w: invalid group assignment", ErrInvalidConfiguration)
	ErrDuplicateAdapter     = fmt.Errorf("%w: duplicate adapter", ErrInvalidConfiguration)
	ErrNoAdapters           = fmt.Errorf("%w: no adapters registered", ErrInvalidConfiguration)

	// Estimation errors are reported per cell type and never abort a run
	ErrDegenerateEstimation = errors.New("degenerate beta estimate")

	// Adapter errors are local to one (adapter, trial) pair
	ErrAdapterFailure = errors.New("test adapter failure")

	// Metric errors
	ErrMetricNotApplicable = errors.New("metric not applicable")
	ErrDegenerateMetric    = errors.New("degenerate metric")

	ErrNotFound = errors.New("resource not found")
)

// Error constructors with context
func NewConfigurationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfiguration, field, reason)
}

func NewProportionError(index int, value float64) error {
	return fmt.Errorf("%w: entry %d is %g", ErrInvalidProportions, index, value)
}

func NewEstimationError(row int, reason string) error {
	return fmt.Errorf("%w for row %d: %s", ErrDegenerateEstimation, row, reason)
}

func NewAdapterError(adapter string, trial int, err error) error {
	return fmt.Errorf("%w: %s on trial %d: %v", ErrAdapterFailure, adapter, trial, err)
}

func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration)
}

func IsEstimationError(err error) bool {
	return errors.Is(err, ErrDegenerateEstimation)
}

func IsAdapterError(err error) bool {
	return errors.Is(err, ErrAdapterFailure)
}

func IsMetricError(err error) bool {
	return errors.Is(err, ErrMetricNotApplicable) ||
		errors.Is(err, ErrDegenerateMetric)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
