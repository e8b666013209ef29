package logging

import (
	"fmt"
	"log/slog"

	"aeye-server-go/internal/platform/config"
	"aeye-server-go/internal/utils"
)

// Logger provides access to both slog and the tagged utils logging API.
type Logger struct {
	legacy *utils.Logger
}

// New creates a Logger from the log section of the configuration.
func New(cfg config.LogConfig) (*Logger, error) {
	legacy, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.File,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &Logger{legacy: legacy}, nil
}

// Legacy exposes the tagged logger that domain components take.
func (l *Logger) Legacy() *utils.Logger {
	if l == nil {
		return nil
	}
	return l.legacy
}

// Slog exposes the structured logger for new integrations.
func (l *Logger) Slog() *slog.Logger {
	return l.Legacy().Slog()
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	return l.Legacy().Close()
}
