// Package config provides configuration loading and management for mrsiproc.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Grid parameters
	Grid struct {
		// X, Y, Z are the fixed raster dimensions used for coordinate rotation
		X int `yaml:"x"`
		Y int `yaml:"y"`
		Z int `yaml:"z"`
	} `yaml:"grid"`

	// Heatmap parameters
	Heatmap struct {
		// VMin is the lower bound of the intensity color window
		VMin float64 `yaml:"vmin"`

		// VMax is the upper bound of the intensity color window
		VMax float64 `yaml:"vmax"`
	} `yaml:"heatmap"`

	// Fit parameters for the relaxometry solver
	Fit struct {
		// MaxIterations bounds the damped least-squares iteration count
		MaxIterations int `yaml:"maxIterations"`

		// Tolerance is the relative cost-decrease convergence threshold
		Tolerance float64 `yaml:"tolerance"`

		// AlphaMax is the upper bound of the efficiency factor
		AlphaMax float64 `yaml:"alphaMax"`
	} `yaml:"fit"`

	// Sequence timing parameters seeded into the report workbook.
	// Zero values leave the corresponding parameter cells blank for the
	// analyst to fill in.
	Sequence struct {
		// TRPhantom, T1Phantom, TEPhantom are the phantom acquisition timings in ms
		TRPhantom float64 `yaml:"trPhantom"`
		T1Phantom float64 `yaml:"t1Phantom"`
		TEPhantom float64 `yaml:"tePhantom"`

		// TRSubject, T1Subject, TESubject are the subject acquisition timings in ms
		TRSubject float64 `yaml:"trSubject"`
		T1Subject float64 `yaml:"t1Subject"`
		TESubject float64 `yaml:"teSubject"`

		// PhantomConcentration is the reference concentration in mM
		PhantomConcentration float64 `yaml:"phantomConcentration"`
	} `yaml:"sequence"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// Brightness scales exported DICOM frame intensities
		Brightness float64 `yaml:"brightness"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Raster dimensions of the MRSI acquisitions this tooling was built for
	cfg.Grid.X = 32
	cfg.Grid.Y = 32
	cfg.Grid.Z = 8

	cfg.Heatmap.VMin = 0.0
	cfg.Heatmap.VMax = 10.0

	cfg.Fit.MaxIterations = 200
	cfg.Fit.Tolerance = 1e-10
	cfg.Fit.AlphaMax = 1.5

	cfg.Output.Verbose = false
	cfg.Output.Brightness = 1.0

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
