package observability

import (
	"log/slog"
	"os"
)

// NewLogger creates a logger based on environment. Production and staging
// emit JSON for log pipelines; everything else gets human-readable text at
// debug level.
func NewLogger(environment string) *slog.Logger {
	var handler slog.Handler

	switch environment {
	case "production", "staging":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: true,
		})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	return slog.New(handler).With(slog.String("env", orDevelopment(environment)))
}

func orDevelopment(environment string) string {
	if environment == "" {
		return "development"
	}
	return environment
}
