package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
input:
  path: raw_transactions.json
  mapping_path: mapping.yaml
output:
  dataset_path: out.json
  transactions_csv: transactions.csv
anonymization:
  volume_multiplier_min: 1.1
  volume_multiplier_max: 1.9
  time_shift_days: 45
  sensitive_fields:
    - internal_id
  seed: 7
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Input.Path != "raw_transactions.json" {
		t.Errorf("Input.Path = %q", cfg.Input.Path)
	}
	if cfg.Anonymization.VolumeMultiplierMin != 1.1 || cfg.Anonymization.VolumeMultiplierMax != 1.9 {
		t.Errorf("multipliers = %v, %v",
			cfg.Anonymization.VolumeMultiplierMin, cfg.Anonymization.VolumeMultiplierMax)
	}
	if cfg.Anonymization.TimeShiftDays != 45 {
		t.Errorf("TimeShiftDays = %d", cfg.Anonymization.TimeShiftDays)
	}
	if len(cfg.Anonymization.SensitiveFields) != 1 || cfg.Anonymization.SensitiveFields[0] != "internal_id" {
		t.Errorf("SensitiveFields = %v", cfg.Anonymization.SensitiveFields)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
input:
  path: raw.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Anonymization.VolumeMultiplierMin != 1.2 || cfg.Anonymization.VolumeMultiplierMax != 1.8 {
		t.Errorf("default multipliers = %v, %v",
			cfg.Anonymization.VolumeMultiplierMin, cfg.Anonymization.VolumeMultiplierMax)
	}
	if cfg.Anonymization.TimeShiftDays != 30 {
		t.Errorf("default TimeShiftDays = %d", cfg.Anonymization.TimeShiftDays)
	}
	if len(cfg.Anonymization.SensitiveFields) == 0 {
		t.Error("expected default sensitive fields")
	}
	if cfg.Output.DatasetPath != "processed_transactions.json" {
		t.Errorf("default DatasetPath = %q", cfg.Output.DatasetPath)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing input path",
			content: "output:\n  dataset_path: out.json\n",
			wantErr: ErrMissingInput,
		},
		{
			name: "negative multiplier",
			content: `
input:
  path: raw.json
anonymization:
  volume_multiplier_min: -0.5
`,
			wantErr: ErrInvalidMultiplierMin,
		},
		{
			name: "max below min",
			content: `
input:
  path: raw.json
anonymization:
  volume_multiplier_min: 2.0
  volume_multiplier_max: 1.5
`,
			wantErr: ErrInvalidMultiplierMax,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_FileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "input: [not: valid")
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestAnonymizerConfig(t *testing.T) {
	path := writeConfig(t, `
input:
  path: raw.json
anonymization:
  volume_multiplier_min: 1.3
  volume_multiplier_max: 1.6
  time_shift_days: 10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	anonCfg := cfg.AnonymizerConfig()
	if err := anonCfg.Validate(); err != nil {
		t.Errorf("converted config invalid: %v", err)
	}
	if anonCfg.VolumeMultiplierMin != 1.3 || anonCfg.VolumeMultiplierMax != 1.6 || anonCfg.TimeShiftDays != 10 {
		t.Errorf("converted config = %+v", anonCfg)
	}
}
