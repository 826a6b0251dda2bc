package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Level comes from
// CHAINRELAY_LOG_LEVEL (debug/info/warn/error), defaulting to info.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
	}))
}

func levelFromEnv() slog.Level {
	switch os.Getenv("CHAINRELAY_LOG_LEVEL") {
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
