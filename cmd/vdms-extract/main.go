package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/primkey7607/vdms/extractfanout"
	"github.com/primkey7607/vdms/internal/extractsvc"
)

const defaultConfigPath = "config/vdms-extract.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	debug := flag.Bool("debug", false, "enable debug logging")
	file := flag.String("file", "", "path to the H.264 container to extract frames from")
	framesFlag := flag.String("frames", "", "comma-separated list of wanted frame indices")
	outDir := flag.String("out", "", "override the configured output directory")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "vdms-extract: -file is required")
		os.Exit(2)
	}
	wanted, err := parseFrameList(*framesFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdms-extract: -frames: %v\n", err)
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vdms-extract: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if *outDir != "" {
		cfg.OutputDir = *outDir
	}

	logger := extractsvc.NewLogger(cfg.Log)
	logger.Info("vdms-extract starting", "file", *file, "wanted_count", len(wanted))

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		logger.Error("failed to create output directory", "dir", cfg.OutputDir, "err", err)
		os.Exit(1)
	}

	bus := extractfanout.New()
	defer bus.Close()

	results := make(chan extractfanout.ExtractResult, 1)
	if err := bus.Subscribe("cli", results); err != nil {
		logger.Error("failed to subscribe", "err", err)
		os.Exit(1)
	}

	pool := extractsvc.NewPool(cfg, bus, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.JobTimeoutS)*time.Second)
	defer cancel()

	jobID := uuid.New()
	pool.Submit(ctx, extractfanout.ExtractJob{JobID: jobID, Path: *file, Wanted: wanted})
	pool.Wait()

	select {
	case result := <-results:
		if err := writeFrames(cfg.OutputDir, result); err != nil {
			logger.Error("failed to write frames", "err", err)
			os.Exit(1)
		}
		logger.Info("vdms-extract done", "job_id", result.JobID, "frames_written", len(result.Frames), "duration", result.Duration)
	default:
		stats := pool.Stats()
		logger.Error("no result produced", "failed", stats.Failed, "abandoned", stats.Abandoned)
		os.Exit(1)
	}
}

func loadConfig(path string) (*extractsvc.Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := &extractsvc.Config{}
		if verr := extractsvc.Validate(cfg); verr != nil {
			return nil, verr
		}
		return cfg, nil
	}
	return extractsvc.Load(path)
}

func parseFrameList(s string) ([]uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("at least one wanted frame index is required")
	}
	parts := strings.Split(s, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a valid frame index: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// writeFrames dumps each decoded frame's raw planes to
// <outputDir>/frame_<idx>_plane<n>.raw. No colorspace conversion or
// container format is applied; the core never converts pixel format,
// and this CLI does not reimplement that work either.
func writeFrames(outputDir string, result extractfanout.ExtractResult) error {
	for _, f := range result.Frames {
		for n, plane := range f.Frame.Planes {
			name := filepath.Join(outputDir, fmt.Sprintf("frame_%d_plane%d.raw", f.Idx, n))
			if err := os.WriteFile(name, plane, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", name, err)
			}
		}
	}
	return nil
}
