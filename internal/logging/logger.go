package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"saillogger/internal/config"
)

func level(s string) slog.Level {
	switch s {
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

// New builds the process logger: colorized text for the console, JSON when
// running under a supervisor.
func New(cfg config.LogConfig, appName string) *slog.Logger {
	if cfg.Format == "json" {
		h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level(cfg.Level),
		})
		return slog.New(h).With("app", appName)
	}

	h := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level(cfg.Level),
		TimeFormat: time.Kitchen,
	})
	return slog.New(h).With("app", appName)
}
