package logger

import (
	"log/slog"
	"os"

	"corrflow/internal/config"
)

// New builds the service logger: JSON in production, text for local
// development. The returned logger is also installed as the slog default.
func New(cfg *config.Config) *slog.Logger {
	var handler slog.Handler
	if cfg.Server.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	log := slog.New(handler).With(
		"service", "corrflow",
		"environment", cfg.Server.Environment,
	)
	slog.SetDefault(log)
	return log
}
