package extractsvc

import (
	"log/slog"
	"os"
)

// NewLogger builds a structured logger from LogConfig: JSON when
// running as a daemon (the common case), text for interactive use.
// The JSON handler on stdout is the one the reference daemon's main.go
// uses; that file has no text option.
func NewLogger(cfg LogConfig) *slog.Logger {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
