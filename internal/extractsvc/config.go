package extractsvc

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the complete extractsvc configuration.
type Config struct {
	WorkerPoolSize int       `yaml:"worker_pool_size"`
	OutputDir      string    `yaml:"output_dir"`
	JobTimeoutS    int       `yaml:"job_timeout_s"`
	Log            LogConfig `yaml:"log"`
}

// LogConfig controls the structured logger the service shell builds.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads and parses a YAML configuration file, then validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
