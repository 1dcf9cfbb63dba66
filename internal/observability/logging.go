package observability

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/traffictacos/ticketing-core/internal/config"
)

// NewLogger builds the process-wide zerolog.Logger, leveled from
// config and writing structured JSON to stdout. Domain errors carry no
// stack traces by design: Kind/Code/Message are already the
// machine-stable shape callers need (spec.md §7).
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.Observability.ServiceName).
		Str("version", cfg.Observability.ServiceVersion).
		Logger()
}
