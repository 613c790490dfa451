package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	// Test that defaults are set via pointers
	if cfg.StdA == nil || *cfg.StdA != 1.5 {
		t.Errorf("Expected StdA 1.5, got %v", cfg.StdA)
	}
	if cfg.StdYawdd == nil || *cfg.StdYawdd != 0.57 {
		t.Errorf("Expected StdYawdd 0.57, got %v", cfg.StdYawdd)
	}
	if cfg.UseLaser == nil || *cfg.UseLaser != true {
		t.Errorf("Expected UseLaser true, got %v", cfg.UseLaser)
	}
	if cfg.UseRadar == nil || *cfg.UseRadar != true {
		t.Errorf("Expected UseRadar true, got %v", cfg.UseRadar)
	}

	// Test getter methods
	if cfg.GetMaxRegularizationAttempts() != 5 {
		t.Errorf("GetMaxRegularizationAttempts() = %d, want 5", cfg.GetMaxRegularizationAttempts())
	}
	if cfg.GetNISConfidence() != 0.95 {
		t.Errorf("GetNISConfidence() = %f, want 0.95", cfg.GetNISConfidence())
	}
	require.NoError(t, cfg.Validate())
}

func TestDefaultsFileMatchesBuiltins(t *testing.T) {
	fromFile := MustLoadDefaultConfig()
	builtin := DefaultTuningConfig()

	assert.Equal(t, builtin.GetStdA(), fromFile.GetStdA())
	assert.Equal(t, builtin.GetStdYawdd(), fromFile.GetStdYawdd())
	assert.Equal(t, builtin.GetUseLaser(), fromFile.GetUseLaser())
	assert.Equal(t, builtin.GetUseRadar(), fromFile.GetUseRadar())
	assert.Equal(t, builtin.GetMinRange(), fromFile.GetMinRange())
	assert.Equal(t, builtin.GetCholeskyJitter(), fromFile.GetCholeskyJitter())
	assert.Equal(t, builtin.GetMaxRegularizationAttempts(), fromFile.GetMaxRegularizationAttempts())
	assert.Equal(t, builtin.GetNISConfidence(), fromFile.GetNISConfidence())
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "std_a": 2.0,
  "std_yawdd": 0.8,
  "use_radar": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	assert.Equal(t, 2.0, cfg.GetStdA())
	assert.Equal(t, 0.8, cfg.GetStdYawdd())
	assert.True(t, cfg.GetUseLaser(), "omitted use_laser keeps its default")
	assert.False(t, cfg.GetUseRadar())
	assert.Equal(t, 1e-6, cfg.GetMinRange())
}

func TestLoadTuningConfigMissing(t *testing.T) {
	_, err := LoadTuningConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadTuningConfigWrongExtension(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("std_a: 1"), 0644))

	_, err := LoadTuningConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadTuningConfigInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "std_a": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := LoadTuningConfig(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadTuningConfigRejectsInvalidValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad_values.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{"std_a": -1}`), 0644))

	_, err := LoadTuningConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *TuningConfig
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     DefaultTuningConfig(),
			wantErr: false,
		},
		{
			name:    "empty config is valid",
			cfg:     &TuningConfig{},
			wantErr: false,
		},
		{
			name:    "zero std_a",
			cfg:     &TuningConfig{StdA: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative std_yawdd",
			cfg:     &TuningConfig{StdYawdd: ptrFloat64(-0.1)},
			wantErr: true,
		},
		{
			name:    "zero min range",
			cfg:     &TuningConfig{MinRange: ptrFloat64(0)},
			wantErr: true,
		},
		{
			name:    "negative jitter",
			cfg:     &TuningConfig{CholeskyJitter: ptrFloat64(-1e-9)},
			wantErr: true,
		},
		{
			name:    "negative regularization attempts",
			cfg:     &TuningConfig{MaxRegularizationAttempts: ptrInt(-1)},
			wantErr: true,
		},
		{
			name:    "zero regularization attempts is allowed",
			cfg:     &TuningConfig{MaxRegularizationAttempts: ptrInt(0)},
			wantErr: false,
		},
		{
			name:    "nis confidence of one",
			cfg:     &TuningConfig{NISConfidence: ptrFloat64(1)},
			wantErr: true,
		},
		{
			name:    "both sensors disabled",
			cfg:     &TuningConfig{UseLaser: ptrBool(false), UseRadar: ptrBool(false)},
			wantErr: true,
		},
		{
			name:    "one sensor disabled",
			cfg:     &TuningConfig{UseLaser: ptrBool(false)},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMarshalIndentAppliesDefaults(t *testing.T) {
	cfg := &TuningConfig{StdA: ptrFloat64(2.5)}

	data, err := cfg.MarshalIndent()
	require.NoError(t, err)

	var decoded TuningConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.StdA)
	require.NotNil(t, decoded.StdYawdd)
	assert.Equal(t, 2.5, *decoded.StdA)
	assert.Equal(t, 0.57, *decoded.StdYawdd)
	require.NotNil(t, decoded.UseRadar)
	assert.True(t, *decoded.UseRadar)
}
