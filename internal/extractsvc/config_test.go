package extractsvc

import "testing"

func TestValidate_Defaults(t *testing.T) {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	if cfg.WorkerPoolSize != defaultWorkerPoolSize {
		t.Errorf("WorkerPoolSize = %d, want %d", cfg.WorkerPoolSize, defaultWorkerPoolSize)
	}
	if cfg.OutputDir != defaultOutputDir {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, defaultOutputDir)
	}
	if cfg.JobTimeoutS != defaultJobTimeoutS {
		t.Errorf("JobTimeoutS = %d, want %d", cfg.JobTimeoutS, defaultJobTimeoutS)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "verbose"}}
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() succeeded, want error for unknown log level")
	}
}

func TestValidate_RejectsUnknownLogFormat(t *testing.T) {
	cfg := &Config{Log: LogConfig{Format: "xml"}}
	if err := Validate(cfg); err == nil {
		t.Fatal("Validate() succeeded, want error for unknown log format")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Fatal("Load() succeeded, want error for missing file")
	}
}
