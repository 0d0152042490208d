package config

import (
	"fmt"
	"math"
	"os"

	"github.com/dougsko/qamd/pkg/qam"
	"gopkg.in/yaml.v2"
)

// Config represents the qamd configuration
type Config struct {
	Codec struct {
		BitsPerSymbol     int     `yaml:"bits_per_symbol"`
		RotationDegrees   float64 `yaml:"rotation_degrees"`
		Saturate          bool    `yaml:"saturate"`
		Workers           int     `yaml:"workers"`
		CSVMaxSymbols     int     `yaml:"csv_max_symbols"`
		DropPartialRecord bool    `yaml:"drop_partial_record"`
		TrimToOriginal    bool    `yaml:"trim_to_original"`
	} `yaml:"codec"`

	Noise struct {
		// SNRDB enables noise on every modulation when set
		SNRDB *float64 `yaml:"snr_db"`
		Seed  int64    `yaml:"seed"`
	} `yaml:"noise"`

	Web struct {
		Port        int    `yaml:"port"`
		BindAddress string `yaml:"bind_address"`
	} `yaml:"web"`

	Storage struct {
		DatabasePath string `yaml:"database_path"`
		MaxJobs      int    `yaml:"max_jobs"`
	} `yaml:"storage"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAge     int    `yaml:"max_age"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Default returns the built-in configuration
func Default() *Config {
	var config Config

	config.Codec.BitsPerSymbol = 4
	config.Codec.RotationDegrees = qam.DefaultRotationDegrees
	config.Codec.Workers = 1
	config.Codec.CSVMaxSymbols = 500

	config.Web.Port = 8080
	config.Web.BindAddress = "0.0.0.0"

	config.Storage.DatabasePath = "./qamd.db"
	config.Storage.MaxJobs = 1000

	config.Logging.Level = "info"
	config.Logging.Console = true
	config.Logging.MaxSize = 100
	config.Logging.MaxBackups = 5
	config.Logging.MaxAge = 30
	config.Logging.Compress = true

	return &config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Keys missing from the file keep their Default() value, so an explicit
	// rotation_degrees: 0 or saturate: false is honored.
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults for values that have no meaningful zero
	if config.Codec.BitsPerSymbol == 0 {
		config.Codec.BitsPerSymbol = 4
	}
	if config.Codec.Workers == 0 {
		config.Codec.Workers = 1
	}
	if config.Web.Port == 0 {
		config.Web.Port = 8080
	}
	if config.Web.BindAddress == "" {
		config.Web.BindAddress = "0.0.0.0"
	}
	if config.Storage.DatabasePath == "" {
		config.Storage.DatabasePath = "./qamd.db"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := qam.NewConstellation(c.Codec.BitsPerSymbol, c.Codec.RotationDegrees, c.Codec.Saturate); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	if c.Codec.Workers < 1 {
		return fmt.Errorf("codec workers must be at least 1")
	}
	if c.Codec.CSVMaxSymbols < 0 {
		return fmt.Errorf("codec csv_max_symbols must not be negative")
	}
	if c.Noise.SNRDB != nil && (math.IsNaN(*c.Noise.SNRDB) || math.IsInf(*c.Noise.SNRDB, 0)) {
		return fmt.Errorf("noise snr_db must be finite")
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port %d is out of range", c.Web.Port)
	}
	if c.Storage.MaxJobs < 0 {
		return fmt.Errorf("storage max_jobs must not be negative")
	}
	return nil
}

// QAMOptions returns the modulator/demodulator options described by the codec section
func (c *Config) QAMOptions() []qam.Option {
	return []qam.Option{
		qam.WithRotation(c.Codec.RotationDegrees),
		qam.WithSaturation(c.Codec.Saturate),
		qam.WithWorkers(c.Codec.Workers),
	}
}
