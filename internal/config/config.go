package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"compbench/internal/errors"

	"github.com/go-playground/validator/v10"
)

// Config represents the complete application configuration
type Config struct {
	Simulation SimulationConfig
	Metrics    MetricsConfig
	Run        RunConfig
	Log        LogConfig
	Data       DataConfig
}

// SimulationConfig holds the count simulator defaults
type SimulationConfig struct {
	NSim            int     `validate:"gte=1"`
	SamplesPerGroup int     `validate:"gte=1"`
	Depth           float64 `validate:"gt=0"`
	Dispersion      float64 `validate:"gt=0"`
	Concentration   float64 `validate:"gt=0"`
}

// MetricsConfig holds the classification threshold
type MetricsConfig struct {
	AlphaCut float64 `validate:"gt=0,lt=1"`
}

// RunConfig holds execution settings
type RunConfig struct {
	Seed    uint64
	Workers int `validate:"gte=1"`
	Timeout time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `validate:"omitempty,oneof=ERROR WARN INFO DEBUG TRACE"`
	Color bool
}

// DataConfig points at an optional observed count table used to seed simulations
type DataConfig struct {
	CountsFile string
	Sheet      string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Simulation: loadSimulationConfig(),
		Metrics:    loadMetricsConfig(),
		Run:        loadRunConfig(),
		Log:        loadLogConfig(),
		Data:       loadDataConfig(),
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// Default returns the configuration Load produces with an empty environment
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			NSim:            1000,
			SamplesPerGroup: 5,
			Depth:           5000,
			Dispersion:      20,
			Concentration:   10,
		},
		Metrics: MetricsConfig{AlphaCut: 0.05},
		Run: RunConfig{
			Seed:    42,
			Workers: runtime.NumCPU(),
		},
		Log:  LogConfig{Level: "INFO", Color: true},
		Data: DataConfig{Sheet: "Sheet1"},
	}
}

func loadSimulationConfig() SimulationConfig {
	d := Default().Simulation
	return SimulationConfig{
		NSim:            getEnvIntOrDefault("BENCH_NSIM", d.NSim),
		SamplesPerGroup: getEnvIntOrDefault("BENCH_SAMPLES_PER_GROUP", d.SamplesPerGroup),
		Depth:           getEnvFloatOrDefault("BENCH_DEPTH", d.Depth),
		Dispersion:      getEnvFloatOrDefault("BENCH_DISPERSION", d.Dispersion),
		Concentration:   getEnvFloatOrDefault("BENCH_CONCENTRATION", d.Concentration),
	}
}

func loadMetricsConfig() MetricsConfig {
	return MetricsConfig{
		AlphaCut: getEnvFloatOrDefault("BENCH_ALPHA_CUT", Default().Metrics.AlphaCut),
	}
}

func loadRunConfig() RunConfig {
	d := Default().Run
	return RunConfig{
		Seed:    getEnvUint64OrDefault("BENCH_SEED", d.Seed),
		Workers: getEnvIntOrDefault("BENCH_WORKERS", d.Workers),
		Timeout: getEnvDurationOrDefault("BENCH_TIMEOUT", d.Timeout),
	}
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level: strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		Color: getEnvBoolOrDefault("LOG_COLOR", true),
	}
}

func loadDataConfig() DataConfig {
	return DataConfig{
		CountsFile: getEnvOrDefault("BENCH_COUNTS_FILE", ""),
		Sheet:      getEnvOrDefault("BENCH_COUNTS_SHEET", "Sheet1"),
	}
}

var validate = validator.New()

// Validate checks struct tags and reports the first failing field as CONFIG_INVALID
func Validate(config *Config) error {
	if err := validate.Struct(config); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errors.ConfigInvalid(fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
		}
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUint64OrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if u, err := strconv.ParseUint(value, 10, 64); err == nil {
			return u
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
