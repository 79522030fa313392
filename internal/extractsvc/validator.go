package extractsvc

import "fmt"

const (
	defaultWorkerPoolSize = 4
	defaultOutputDir      = "./output"
	defaultJobTimeoutS    = 30
)

// Validate checks the configuration and fills in defaults for anything
// left unset. Mirrors the defaulting style used for stream buffer sizes
// and MQTT topics in the reference daemon's own config validator.
func Validate(cfg *Config) error {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.JobTimeoutS <= 0 {
		cfg.JobTimeoutS = defaultJobTimeoutS
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug|info|warn|error, got %q", cfg.Log.Level)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	switch cfg.Log.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("log.format must be one of json|text, got %q", cfg.Log.Format)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	return nil
}
