package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sjawhar/audiocat/internal/pipeline"
)

// EnvPrefix is the namespace prefix for all audiocat environment variables.
const EnvPrefix = "AUDIOCAT_"

const defaultStatusInterval = time.Second

// Config holds all application configuration. Command-line flags are applied
// on top of it by the caller.
type Config struct {
	OutputPrefix          string `yaml:"output_prefix"`
	BlockSize             int    `yaml:"block_size"`
	QueueCapacity         int    `yaml:"queue_capacity"`
	Backpressure          string `yaml:"backpressure"`
	FailurePolicy         string `yaml:"failure_policy"`
	StatusInterval        string `yaml:"status_interval"`
	DBPath                string `yaml:"db_path"`
	HTTPAddr              string `yaml:"http_addr"`
	GDriveFolderID        string `yaml:"gdrive_folder_id"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
}

func Defaults() Config {
	return Config{
		OutputPrefix:          "recording",
		BlockSize:             pipeline.DefaultBlockSize,
		Backpressure:          pipeline.Unbounded.String(),
		FailurePolicy:         pipeline.FailFast.String(),
		StatusInterval:        "1s",
		GoogleCredentialsFile: "./service-account.json",
	}
}

// Load reads configuration from a YAML file (if it exists), applies
// environment variable overrides, and validates the result.
// It returns the config, any validation warnings, and an error if the file
// exists but cannot be read or parsed.
func Load(path string) (Config, []string, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, nil, fmt.Errorf("read config file: %w", err)
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	warnings := cfg.Validate()
	return cfg, warnings, nil
}

// ParsedStatusInterval returns StatusInterval as a time.Duration,
// falling back to 1s if the value is invalid.
func (c *Config) ParsedStatusInterval() time.Duration {
	d, err := time.ParseDuration(c.StatusInterval)
	if err != nil || d <= 0 {
		return defaultStatusInterval
	}
	return d
}

// ParsedBackpressure falls back to unbounded for unknown values.
func (c *Config) ParsedBackpressure() pipeline.Backpressure {
	b, err := pipeline.ParseBackpressure(c.Backpressure)
	if err != nil {
		return pipeline.Unbounded
	}
	return b
}

// ParsedFailurePolicy falls back to fail-fast for unknown values.
func (c *Config) ParsedFailurePolicy() pipeline.FailurePolicy {
	p, err := pipeline.ParseFailurePolicy(c.FailurePolicy)
	if err != nil {
		return pipeline.FailFast
	}
	return p
}

// PipelineOptions converts the config into pipeline options.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		BlockSize:     c.BlockSize,
		QueueCapacity: c.QueueCapacity,
		Backpressure:  c.ParsedBackpressure(),
		FailurePolicy: c.ParsedFailurePolicy(),
	}
}

// Validate repairs invalid values in place and describes each repair. A
// second call on the result returns no warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.OutputPrefix == "" {
		c.OutputPrefix = Defaults().OutputPrefix
		warnings = append(warnings, "Empty output_prefix, using \"recording\".")
	}
	if c.BlockSize <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid block_size %d, using %d.", c.BlockSize, pipeline.DefaultBlockSize))
		c.BlockSize = pipeline.DefaultBlockSize
	}
	if c.QueueCapacity < 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid queue_capacity %d, using an unbounded queue.", c.QueueCapacity))
		c.QueueCapacity = 0
	}
	if d, err := time.ParseDuration(c.StatusInterval); err != nil || d <= 0 {
		warnings = append(warnings, fmt.Sprintf("Invalid status_interval %q, using default 1s.", c.StatusInterval))
		c.StatusInterval = defaultStatusInterval.String()
	}
	if _, err := pipeline.ParseFailurePolicy(c.FailurePolicy); err != nil {
		warnings = append(warnings, fmt.Sprintf("Unknown failure_policy %q, using fail-fast.", c.FailurePolicy))
		c.FailurePolicy = pipeline.FailFast.String()
	}

	b, err := pipeline.ParseBackpressure(c.Backpressure)
	switch {
	case err != nil:
		warnings = append(warnings, fmt.Sprintf("Unknown backpressure %q, using unbounded.", c.Backpressure))
		c.Backpressure = pipeline.Unbounded.String()
		c.QueueCapacity = 0
	case b != pipeline.Unbounded && c.QueueCapacity == 0:
		warnings = append(warnings, fmt.Sprintf("backpressure %q needs queue_capacity > 0, the queue stays unbounded.", c.Backpressure))
		c.Backpressure = pipeline.Unbounded.String()
	case b == pipeline.Unbounded && c.QueueCapacity > 0:
		warnings = append(warnings, "queue_capacity is ignored while backpressure is unbounded.")
		c.QueueCapacity = 0
	}

	return warnings
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "OUTPUT_PREFIX"); v != "" {
		cfg.OutputPrefix = v
	}
	if v := os.Getenv(EnvPrefix + "BLOCK_SIZE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.BlockSize = n
		}
	}
	if v := os.Getenv(EnvPrefix + "QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.QueueCapacity = n
		}
	}
	if v := os.Getenv(EnvPrefix + "BACKPRESSURE"); v != "" {
		cfg.Backpressure = v
	}
	if v := os.Getenv(EnvPrefix + "FAILURE_POLICY"); v != "" {
		cfg.FailurePolicy = v
	}
	if v := os.Getenv(EnvPrefix + "STATUS_INTERVAL"); v != "" {
		cfg.StatusInterval = v
	}
	if v := os.Getenv(EnvPrefix + "DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(EnvPrefix + "HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv(EnvPrefix + "GDRIVE_FOLDER_ID"); v != "" {
		cfg.GDriveFolderID = v
	}
	if v := os.Getenv(EnvPrefix + "GOOGLE_CREDENTIALS_FILE"); v != "" {
		cfg.GoogleCredentialsFile = v
	}
}
