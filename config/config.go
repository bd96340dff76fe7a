package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jaki95/audio-converter/internal/audio"
	"github.com/jaki95/audio-converter/internal/storage"
)

var ErrInvalidConfig = errors.New("invalid config")

// Log formats
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

type Config struct {
	// LogLevel uses slog's numeric levels: -4 debug, 0 info, 4 warn, 8 error.
	LogLevel int `yaml:"log_level" toml:"log_level"`
	// LogFormat is "json", "text" or empty to pick by terminal.
	LogFormat string `yaml:"log_format" toml:"log_format"`

	Encoder string `yaml:"encoder" toml:"encoder"`
	// Quality holds a quality per encoder name, on that encoder's scale.
	Quality map[string]float64 `yaml:"quality" toml:"quality"`
	Workers int                `yaml:"workers" toml:"workers"`

	Tools   audio.Tools    `yaml:"tools" toml:"tools"`
	Storage storage.Config `yaml:"storage" toml:"storage"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	config := &Config{}
	config.setDefaults()
	return config
}

// Load reads a YAML file, or TOML when path ends in .toml. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, &config)
	} else {
		err = yaml.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Encoder == "" {
		c.Encoder = audio.EncoderOgg
	}

	if c.Storage.Type == "" {
		c.Storage.Type = storage.TypeLocal
	}

	c.Tools = c.Tools.WithDefaults()
}

// Validate checks values that the defaults cannot repair.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "", LogFormatJSON, LogFormatText:
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}

	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}

	if _, err := audio.NewEncoder(c.Encoder, c.Tools); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for name, q := range c.Quality {
		encoder, err := audio.NewEncoder(name, c.Tools)
		if err != nil {
			return fmt.Errorf("%w: quality: %w", ErrInvalidConfig, err)
		}
		if err := encoder.ValidateQuality(q); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// QualityFor returns the configured quality of encoder, or its default.
func (c *Config) QualityFor(encoder audio.Encoder) float64 {
	if q, ok := c.Quality[encoder.Name]; ok {
		return q
	}
	return encoder.DefaultQuality
}
