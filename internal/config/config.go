// Package config loads run configuration for the processing pipeline.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/insightcart/demopipe/internal/anonymizer"
	"github.com/insightcart/demopipe/internal/ingest"
)

// Configuration validation errors.
var (
	ErrInvalidMultiplierMin = errors.New("anonymization.volume_multiplier_min must be positive")
	ErrInvalidMultiplierMax = errors.New("anonymization.volume_multiplier_max must be >= volume_multiplier_min")
	ErrMissingInput         = errors.New("input.path is required")
)

// Config is the complete run configuration.
type Config struct {
	Input         InputConfig   `yaml:"input"`
	Output        OutputConfig  `yaml:"output"`
	Anonymization AnonConfig    `yaml:"anonymization"`
	Logging       LoggingConfig `yaml:"logging"`
}

// InputConfig describes where the raw dataset comes from.
type InputConfig struct {
	// Path is a local file path or a gs:// URI.
	Path string `yaml:"path"`
	// MappingPath points at the product name mapping table. Optional;
	// without it product names pass through unmapped.
	MappingPath string `yaml:"mapping_path"`
}

// OutputConfig describes which artifacts a run writes.
type OutputConfig struct {
	DatasetPath     string `yaml:"dataset_path"`
	TransactionsCSV string `yaml:"transactions_csv"`
	ProductsCSV     string `yaml:"products_csv"`
	UploadURI       string `yaml:"upload_uri"`
	BigQueryEnabled bool   `yaml:"bigquery_enabled"`
}

// AnonConfig mirrors the anonymizer knobs.
type AnonConfig struct {
	VolumeMultiplierMin float64  `yaml:"volume_multiplier_min"`
	VolumeMultiplierMax float64  `yaml:"volume_multiplier_max"`
	TimeShiftDays       int      `yaml:"time_shift_days"`
	SensitiveFields     []string `yaml:"sensitive_fields"`
	Seed                int64    `yaml:"seed"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("Load: failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("Load: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	defaults := anonymizer.DefaultConfig()
	if c.Anonymization.VolumeMultiplierMin == 0 {
		c.Anonymization.VolumeMultiplierMin = defaults.VolumeMultiplierMin
	}
	if c.Anonymization.VolumeMultiplierMax == 0 {
		c.Anonymization.VolumeMultiplierMax = defaults.VolumeMultiplierMax
	}
	if c.Anonymization.TimeShiftDays == 0 {
		c.Anonymization.TimeShiftDays = defaults.TimeShiftDays
	}
	if len(c.Anonymization.SensitiveFields) == 0 {
		c.Anonymization.SensitiveFields = append([]string(nil), ingest.DefaultSensitiveFields...)
	}
	if c.Output.DatasetPath == "" {
		c.Output.DatasetPath = "processed_transactions.json"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Input.Path == "" {
		return ErrMissingInput
	}
	if c.Anonymization.VolumeMultiplierMin <= 0 {
		return ErrInvalidMultiplierMin
	}
	if c.Anonymization.VolumeMultiplierMax < c.Anonymization.VolumeMultiplierMin {
		return ErrInvalidMultiplierMax
	}
	return nil
}

// AnonymizerConfig converts the YAML block into the processor's config.
func (c *Config) AnonymizerConfig() anonymizer.Config {
	return anonymizer.Config{
		VolumeMultiplierMin: c.Anonymization.VolumeMultiplierMin,
		VolumeMultiplierMax: c.Anonymization.VolumeMultiplierMax,
		TimeShiftDays:       c.Anonymization.TimeShiftDays,
		SensitiveFields:     append([]string(nil), c.Anonymization.SensitiveFields...),
	}
}
