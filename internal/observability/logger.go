package observability

import (
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"strings"
)

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string
	Format string
	// Output is stdout, stderr or syslog.
	Output string
	// Tag identifies the process in syslog output.
	Tag string
}

// NewLogger creates a new structured logger based on configuration.
// If syslog is requested but unavailable, logs go to stderr.
func NewLogger(config LoggingConfig) *slog.Logger {
	output, err := openOutput(config)
	if err != nil {
		output = os.Stderr
		defer func() {
			slog.New(slog.NewTextHandler(os.Stderr, nil)).Warn("syslog unavailable, logging to stderr", "error", err)
		}()
	}
	return newLogger(config, output)
}

func newLogger(config LoggingConfig, output io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(config.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(config.Format) {
	case "text":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewJSONHandler(output, opts)
	}

	return slog.New(handler)
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openOutput(config LoggingConfig) (io.Writer, error) {
	switch strings.ToLower(config.Output) {
	case "stderr":
		return os.Stderr, nil
	case "syslog":
		tag := config.Tag
		if tag == "" {
			tag = "ringlog"
		}
		w, err := syslog.New(syslog.LOG_INFO|syslog.LOG_USER, tag)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		return w, nil
	default:
		return os.Stdout, nil
	}
}
