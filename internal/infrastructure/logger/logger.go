// Package logger provides structured logging utilities.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration.
type Config struct {
	Level  string
	Format string // "json" or "console"
	Caller bool
}

// Setup initializes the global logger.
func Setup(cfg Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		})
	}

	if cfg.Caller {
		log.Logger = log.With().Caller().Logger()
	}
}

// ForAlert returns a logger pre-populated with the fields every alert-tick
// log line carries.
func ForAlert(alertID, alertName, hostUUID string) zerolog.Logger {
	return log.With().
		Str("alert_id", alertID).
		Str("alert_name", alertName).
		Str("host_uuid", hostUUID).
		Logger()
}
