package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger: console output, RFC3339 timestamps,
// debug level everywhere except production.
func New(environment string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	level := zerolog.DebugLevel
	if environment == "production" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("env", environment).
		Logger()
}
