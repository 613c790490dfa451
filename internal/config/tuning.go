package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for the fusion filter.
// Only the process noise and the numerical recovery knobs are tunable; the
// sensor measurement noise is fixed by the sensor manufacturer and lives
// in the ukf package as constants.
type TuningConfig struct {
	// Process noise
	StdA     *float64 `json:"std_a,omitempty"`     // longitudinal acceleration σ (m/s²)
	StdYawdd *float64 `json:"std_yawdd,omitempty"` // yaw acceleration σ (rad/s²)

	// Sensor enable flags. A disabled sensor can still initialise the filter.
	UseLaser *bool `json:"use_laser,omitempty"`
	UseRadar *bool `json:"use_radar,omitempty"`

	// Numerical recovery
	MinRange                  *float64 `json:"min_range,omitempty"` // metres, floor for range-rate division
	CholeskyJitter            *float64 `json:"cholesky_jitter,omitempty"`
	MaxRegularizationAttempts *int     `json:"max_regularization_attempts,omitempty"`

	// Evaluation
	NISConfidence *float64 `json:"nis_confidence,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in defaults. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		StdA:                      ptrFloat64(defaultStdA),
		StdYawdd:                  ptrFloat64(defaultStdYawdd),
		UseLaser:                  ptrBool(true),
		UseRadar:                  ptrBool(true),
		MinRange:                  ptrFloat64(defaultMinRange),
		CholeskyJitter:            ptrFloat64(defaultCholeskyJitter),
		MaxRegularizationAttempts: ptrInt(defaultMaxRegAttempts),
		NISConfidence:             ptrFloat64(defaultNISConfidence),
	}
}

const (
	defaultStdA           = 1.5
	defaultStdYawdd       = 0.57
	defaultMinRange       = 1e-6
	defaultCholeskyJitter = 1e-9
	defaultMaxRegAttempts = 5
	defaultNISConfidence  = 0.95
)

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.StdA != nil && *c.StdA <= 0 {
		return fmt.Errorf("std_a must be positive, got %f", *c.StdA)
	}
	if c.StdYawdd != nil && *c.StdYawdd <= 0 {
		return fmt.Errorf("std_yawdd must be positive, got %f", *c.StdYawdd)
	}
	if c.MinRange != nil && *c.MinRange <= 0 {
		return fmt.Errorf("min_range must be positive, got %g", *c.MinRange)
	}
	if c.CholeskyJitter != nil && *c.CholeskyJitter <= 0 {
		return fmt.Errorf("cholesky_jitter must be positive, got %g", *c.CholeskyJitter)
	}
	if c.MaxRegularizationAttempts != nil && *c.MaxRegularizationAttempts < 0 {
		return fmt.Errorf("max_regularization_attempts must be non-negative, got %d", *c.MaxRegularizationAttempts)
	}
	if c.NISConfidence != nil {
		if *c.NISConfidence <= 0 || *c.NISConfidence >= 1 {
			return fmt.Errorf("nis_confidence must be between 0 and 1 (exclusive), got %f", *c.NISConfidence)
		}
	}
	if !c.GetUseLaser() && !c.GetUseRadar() {
		return fmt.Errorf("at least one of use_laser and use_radar must be enabled")
	}
	return nil
}

// GetStdA returns the std_a value or the default.
func (c *TuningConfig) GetStdA() float64 {
	if c.StdA == nil {
		return defaultStdA
	}
	return *c.StdA
}

// GetStdYawdd returns the std_yawdd value or the default.
func (c *TuningConfig) GetStdYawdd() float64 {
	if c.StdYawdd == nil {
		return defaultStdYawdd
	}
	return *c.StdYawdd
}

// GetUseLaser returns the use_laser value or the default.
func (c *TuningConfig) GetUseLaser() bool {
	if c.UseLaser == nil {
		return true
	}
	return *c.UseLaser
}

// GetUseRadar returns the use_radar value or the default.
func (c *TuningConfig) GetUseRadar() bool {
	if c.UseRadar == nil {
		return true
	}
	return *c.UseRadar
}

// GetMinRange returns the min_range value or the default.
func (c *TuningConfig) GetMinRange() float64 {
	if c.MinRange == nil {
		return defaultMinRange
	}
	return *c.MinRange
}

// GetCholeskyJitter returns the cholesky_jitter value or the default.
func (c *TuningConfig) GetCholeskyJitter() float64 {
	if c.CholeskyJitter == nil {
		return defaultCholeskyJitter
	}
	return *c.CholeskyJitter
}

// GetMaxRegularizationAttempts returns the max_regularization_attempts value or the default.
func (c *TuningConfig) GetMaxRegularizationAttempts() int {
	if c.MaxRegularizationAttempts == nil {
		return defaultMaxRegAttempts
	}
	return *c.MaxRegularizationAttempts
}

// GetNISConfidence returns the nis_confidence value or the default.
func (c *TuningConfig) GetNISConfidence() float64 {
	if c.NISConfidence == nil {
		return defaultNISConfidence
	}
	return *c.NISConfidence
}

// MarshalIndent renders the effective configuration (defaults applied) as
// JSON. Stored alongside each run so results can be reproduced.
func (c *TuningConfig) MarshalIndent() ([]byte, error) {
	eff := &TuningConfig{
		StdA:                      ptrFloat64(c.GetStdA()),
		StdYawdd:                  ptrFloat64(c.GetStdYawdd()),
		UseLaser:                  ptrBool(c.GetUseLaser()),
		UseRadar:                  ptrBool(c.GetUseRadar()),
		MinRange:                  ptrFloat64(c.GetMinRange()),
		CholeskyJitter:            ptrFloat64(c.GetCholeskyJitter()),
		MaxRegularizationAttempts: ptrInt(c.GetMaxRegularizationAttempts()),
		NISConfidence:             ptrFloat64(c.GetNISConfidence()),
	}
	return json.MarshalIndent(eff, "", "  ")
}
