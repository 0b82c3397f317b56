package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns the process-wide logger: slog with a JSON handler
// on stdout, source locations attached, leveled from LOG_LEVEL. Every
// component takes it as a dependency rather than using the default.
func NewLogger(level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromString(level),
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

func levelFromString(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
