package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. HAPPINESS_DATA_PATH.
const EnvPrefix = "HAPPINESS"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" split_words:"true" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true" validate:"gte=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true" validate:"gt=0"`
	AllowedOrigins  []string      `yaml:"allowed_origins" split_words:"true"`
}

type DataConfig struct {
	Path string `yaml:"path" split_words:"true" validate:"required"`
	// Rows per Arrow record batch while parsing.
	Chunk int `yaml:"chunk" split_words:"true" validate:"gte=1"`
}

type DashboardConfig struct {
	TopN          int    `yaml:"top_n" split_words:"true" validate:"gte=1,lte=100"`
	HistogramBins int    `yaml:"histogram_bins" split_words:"true" validate:"gte=1,lte=200"`
	Title         string `yaml:"title" split_words:"true"`
	DataSource    string `yaml:"data_source" split_words:"true"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" split_words:"true" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" split_words:"true"`
}

// Default returns the configuration used when no file or environment says otherwise.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
		},
		Data: DataConfig{
			Path:  "world_happiness_combined.csv",
			Chunk: 512,
		},
		Dashboard: DashboardConfig{
			TopN:          10,
			HistogramBins: 20,
			Title:         "World Happiness Dashboard",
			DataSource:    "World Happiness Report",
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			RPS:     50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load layers defaults, the optional YAML file at path and HAPPINESS_* environment
// variables, in that order, then validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s does not exist", path)
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	return validate.Struct(c)
}
